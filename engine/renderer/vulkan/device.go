package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	ComputeQueueIndex  uint32
	GraphicsQueueIndex uint32

	ComputeQueue  vk.Queue
	GraphicsQueue vk.Queue

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties

	portabilitySubset bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	ComputeFamilyIndex  int32
	GraphicsFamilyIndex int32
}

// queueFamilies prefers a compute family without graphics, so the compute
// stream lands on a separate hardware queue where the device has one.
func queueFamilies(physicalDevice vk.PhysicalDevice) VulkanPhysicalDeviceQueueFamilyInfo {
	info := VulkanPhysicalDeviceQueueFamilyInfo{ComputeFamilyIndex: -1, GraphicsFamilyIndex: -1}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, families)

	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		flags := families[i].QueueFlags
		hasGraphics := flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		hasCompute := flags&vk.QueueFlags(vk.QueueComputeBit) != 0

		if hasGraphics && hasCompute && info.GraphicsFamilyIndex == -1 {
			info.GraphicsFamilyIndex = int32(i)
		}
		if hasCompute && !hasGraphics && info.ComputeFamilyIndex == -1 {
			info.ComputeFamilyIndex = int32(i)
		}
	}
	if info.ComputeFamilyIndex == -1 {
		info.ComputeFamilyIndex = info.GraphicsFamilyIndex
	}
	return info
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if err := vkCheck("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil)); err != nil {
		return err
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("%w: no devices which support Vulkan were found", ErrNoSuitableDevice)
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := vkCheck("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices)); err != nil {
		return err
	}

	// first suitable device wins, discrete GPUs are tried first
	order := make([]vk.PhysicalDevice, 0, len(physicalDevices))
	var rest []vk.PhysicalDevice
	for _, pd := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			order = append(order, pd)
		} else {
			rest = append(rest, pd)
		}
	}
	order = append(order, rest...)

	for _, pd := range order {
		families := queueFamilies(pd)
		if families.GraphicsFamilyIndex == -1 {
			continue
		}

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
		memory.Deref()

		end := FindFirstZeroInByteArray(properties.DeviceName[:])
		core.LogInfo("Selected device: '%s'.", string(properties.DeviceName[:end]))
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.ApiVersion)),
			vk.Version.Minor(vk.Version(properties.ApiVersion)),
			vk.Version.Patch(vk.Version(properties.ApiVersion)),
		)
		for j := 0; j < int(memory.MemoryHeapCount); j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := memory.MemoryHeaps[j].Size / 1024 / 1024 / 1024
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit > 0 {
				core.LogInfo("Local GPU memory: %d GiB", memorySizeGib)
			} else {
				core.LogInfo("Shared System memory: %d GiB", memorySizeGib)
			}
		}

		context.Device = &VulkanDevice{
			PhysicalDevice:     pd,
			ComputeQueueIndex:  uint32(families.ComputeFamilyIndex),
			GraphicsQueueIndex: uint32(families.GraphicsFamilyIndex),
			Properties:         properties,
			Memory:             memory,
		}
		return nil
	}
	return ErrNoSuitableDevice
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")

	indices := device.queueFamilyIndices()
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	var availableExtensionCount uint32
	if err := vkCheck("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device.PhysicalDevice, "", &availableExtensionCount, nil)); err != nil {
		return err
	}
	if availableExtensionCount != 0 {
		availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
		if err := vkCheck("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device.PhysicalDevice, "", &availableExtensionCount, availableExtensions)); err != nil {
			return err
		}
		for i := range availableExtensions {
			availableExtensions[i].Deref()
			end := FindFirstZeroInByteArray(availableExtensions[i].ExtensionName[:])
			if string(availableExtensions[i].ExtensionName[:end]) == "VK_KHR_portability_subset" {
				core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
				device.portabilitySubset = true
				break
			}
		}
	}

	var extensionNames []string
	if device.portabilitySubset {
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if err := vkCheck("vkCreateDevice", vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical)); err != nil {
		return err
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var graphicsQueue, computeQueue vk.Queue
	vk.GetDeviceQueue(logical, device.GraphicsQueueIndex, 0, &graphicsQueue)
	vk.GetDeviceQueue(logical, device.ComputeQueueIndex, 0, &computeQueue)
	device.GraphicsQueue = graphicsQueue
	device.ComputeQueue = computeQueue

	context.Locks.SetQueueFamily(device.GraphicsQueueIndex)
	context.Locks.SetQueueFamily(device.ComputeQueueIndex)
	core.LogInfo("Queues obtained (graphics family %d, compute family %d).", device.GraphicsQueueIndex, device.ComputeQueueIndex)
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil {
		return
	}
	context.Device.GraphicsQueue = nil
	context.Device.ComputeQueue = nil

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}
	context.Device.PhysicalDevice = nil
}

// queueFamilyIndices lists each distinct family the streams submit to.
func (device *VulkanDevice) queueFamilyIndices() []uint32 {
	indices := []uint32{device.GraphicsQueueIndex}
	if device.ComputeQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, device.ComputeQueueIndex)
	}
	return indices
}

// sharing returns the sharing mode for images and buffers. Both streams touch
// every resource, so with two families they are shared concurrently and no
// ownership transfer is recorded.
func (device *VulkanDevice) sharing() (vk.SharingMode, []uint32) {
	indices := device.queueFamilyIndices()
	if len(indices) == 1 {
		return vk.SharingModeExclusive, nil
	}
	return vk.SharingModeConcurrent, indices
}
