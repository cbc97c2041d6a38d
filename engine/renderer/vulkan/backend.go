// Package vulkan implements the renderer contract on a Vulkan device. It
// needs no surface: the instance is created headless and the device exposes
// one compute and one graphics stream.
package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

const (
	LoaderSystem = "system"
	LoaderGLFW   = "glfw"
)

type Options struct {
	AppName string
	// Validation enables VK_LAYER_KHRONOS_validation and the debug report callback.
	Validation bool
	// Loader selects how the Vulkan entry point is found. GLFW must be used
	// from the main thread.
	Loader string
}

type allocation struct {
	image  *VulkanImage
	buffer *VulkanBuffer
}

// Device owns a Vulkan instance, logical device and the two streams.
type Device struct {
	context *VulkanContext
	opts    Options
	ids     *core.IdentifierPool

	mu        sync.RWMutex
	allocs    map[uint32]*allocation
	destroyed bool

	semaMu sync.Mutex
	// signal semaphores that no submission has waited on yet
	semas map[*Semaphore]struct{}

	compute  *Stream
	graphics *Stream
}

var _ renderer.GraphicsDevice = (*Device)(nil)

func loadVulkan(loader string) error {
	switch loader {
	case LoaderGLFW:
		if err := glfw.Init(); err != nil {
			return err
		}
		procAddr := glfw.GetVulkanGetInstanceProcAddress()
		if procAddr == nil {
			glfw.Terminate()
			return fmt.Errorf("GetInstanceProcAddress is nil")
		}
		vk.SetGetInstanceProcAddr(procAddr)
	case LoaderSystem, "":
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLoader, loader)
	}
	return vk.Init()
}

func NewDevice(opts Options) (*Device, error) {
	if opts.AppName == "" {
		opts.AppName = "gfxbridge"
	}
	if err := loadVulkan(opts.Loader); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	d := &Device{
		context: &VulkanContext{
			Allocator: nil,
			Locks:     NewVulkanLockPool(),
		},
		opts:   opts,
		ids:    core.NewIdentifierPool(),
		allocs: make(map[uint32]*allocation),
		semas:  make(map[*Semaphore]struct{}),
	}

	if err := d.createInstance(); err != nil {
		d.terminate()
		return nil, err
	}
	if err := DeviceCreate(d.context); err != nil {
		core.LogError("Failed to create device!")
		d.destroyInstance()
		d.terminate()
		return nil, err
	}

	var err error
	if d.graphics, err = newStream(d, "graphics", d.context.Device.GraphicsQueueIndex, d.context.Device.GraphicsQueue); err == nil {
		d.compute, err = newStream(d, "compute", d.context.Device.ComputeQueueIndex, d.context.Device.ComputeQueue)
	}
	if err != nil {
		if d.graphics != nil {
			d.graphics.close()
		}
		DeviceDestroy(d.context)
		d.destroyInstance()
		d.terminate()
		return nil, err
	}

	core.LogInfo("Vulkan device initialized successfully.")
	return d, nil
}

func (d *Device) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(d.opts.AppName),
		PEngineName:        VulkanSafeString("gfxbridge"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	var requiredExtensions []string
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var requiredLayers []string
	if d.opts.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkLayers(requiredLayers); err != nil {
			return err
		}
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var instance vk.Instance
	if err := vkCheck("vkCreateInstance", vk.CreateInstance(&createInfo, d.context.Allocator, &instance)); err != nil {
		core.LogError(err.Error())
		return err
	}
	d.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if d.opts.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		d.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")
	var count uint32
	if err := vkCheck("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := vkCheck("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, available)); err != nil {
		return err
	}
	for _, name := range required {
		found := false
		for j := range available {
			available[j].Deref()
			end := FindFirstZeroInByteArray(available[j].LayerName[:])
			if name == vk.ToString(available[j].LayerName[:end+1]) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (d *Device) destroyInstance() {
	if d.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(d.context.Instance, d.context.debugMessenger, d.context.Allocator)
		d.context.debugMessenger = vk.NullDebugReportCallback
	}
	if d.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(d.context.Instance, d.context.Allocator)
		d.context.Instance = nil
	}
}

func (d *Device) terminate() {
	if d.opts.Loader == LoaderGLFW {
		glfw.Terminate()
	}
}

// buffer and image must be called with d.mu held.
func (d *Device) buffer(alloc metadata.DeviceAllocation) (*VulkanBuffer, error) {
	a, ok := d.allocs[alloc.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", alloc, renderer.ErrUnknownAllocation)
	}
	if a.buffer == nil {
		return nil, fmt.Errorf("%s: %w", alloc, ErrNotBuffer)
	}
	return a.buffer, nil
}

func (d *Device) image(alloc metadata.DeviceAllocation) (*VulkanImage, error) {
	a, ok := d.allocs[alloc.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", alloc, renderer.ErrUnknownAllocation)
	}
	if a.image == nil {
		return nil, fmt.Errorf("%s: %w", alloc, ErrNotImage)
	}
	return a.image, nil
}

func (d *Device) CreateImage(params metadata.ImageParams) (metadata.DeviceAllocation, error) {
	if err := params.Validate(); err != nil {
		return metadata.DeviceAllocation{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return metadata.DeviceAllocation{}, renderer.ErrDeviceDestroyed
	}

	var image *VulkanImage
	err := d.context.Locks.SafeCall(ResourceManagement, func() error {
		var err error
		image, err = NewVulkanImage(d.context, params)
		return err
	})
	if err != nil {
		return metadata.DeviceAllocation{}, fmt.Errorf("create image %dx%dx%d %s: %w", params.X, params.Y, params.Z, params.Format, err)
	}
	a := &allocation{image: image}
	id := d.ids.AcquireNewID(a)
	d.allocs[id] = a
	return metadata.DeviceAllocation{ID: id}, nil
}

func (d *Device) DestroyImage(alloc metadata.DeviceAllocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[alloc.ID]
	if !ok || a.image == nil {
		core.Fatalf("vulkan: destroy of unknown image %s", alloc)
	}
	d.release(alloc.ID, a)
}

func (d *Device) AllocateMemory(params metadata.AllocParams) (metadata.DeviceAllocation, error) {
	if err := params.Validate(); err != nil {
		return metadata.DeviceAllocation{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return metadata.DeviceAllocation{}, renderer.ErrDeviceDestroyed
	}

	var buffer *VulkanBuffer
	err := d.context.Locks.SafeCall(ResourceManagement, func() error {
		var err error
		buffer, err = NewVulkanBuffer(d.context, params)
		return err
	})
	if err != nil {
		return metadata.DeviceAllocation{}, fmt.Errorf("allocate %d bytes: %w", params.Size, err)
	}
	a := &allocation{buffer: buffer}
	id := d.ids.AcquireNewID(a)
	d.allocs[id] = a
	return metadata.DeviceAllocation{ID: id}, nil
}

func (d *Device) DeallocMemory(alloc metadata.DeviceAllocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[alloc.ID]
	if !ok || a.buffer == nil {
		core.Fatalf("vulkan: dealloc of unknown buffer %s", alloc)
	}
	d.release(alloc.ID, a)
}

// release must be called with d.mu held. The caller guarantees no pending
// work still uses the allocation.
func (d *Device) release(id uint32, a *allocation) {
	delete(d.allocs, id)
	_ = d.context.Locks.SafeCall(ResourceManagement, func() error {
		if a.image != nil {
			a.image.Destroy(d.context)
		}
		if a.buffer != nil {
			a.buffer.Destroy(d.context)
		}
		return nil
	})
	if err := d.ids.ReleaseID(id); err != nil {
		core.LogWarn("vulkan: %s", err)
	}
}

// Map returns the persistent host mapping of a buffer. Buffers are coherent,
// so no flush or invalidate is needed around host access.
func (d *Device) Map(alloc metadata.DeviceAllocation) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	buffer, err := d.buffer(alloc)
	if err != nil {
		return nil, fmt.Errorf("map %w", err)
	}
	return buffer.Bytes(), nil
}

func (d *Device) Unmap(alloc metadata.DeviceAllocation) {}

func (d *Device) GetComputeStream() renderer.Stream {
	return d.compute
}

func (d *Device) GetGraphicsStream() renderer.Stream {
	return d.graphics
}

func (d *Device) WaitIdle() error {
	return errors.Join(d.compute.CommandSync(), d.graphics.CommandSync())
}

func (d *Device) track(s *Semaphore) {
	d.semaMu.Lock()
	d.semas[s] = struct{}{}
	d.semaMu.Unlock()
}

func (d *Device) forget(s *Semaphore) {
	d.semaMu.Lock()
	delete(d.semas, s)
	d.semaMu.Unlock()
}

// Destroy drains both streams, then releases allocations, the logical device
// and the instance in the opposite order of creation.
func (d *Device) Destroy() error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return nil
	}
	d.destroyed = true
	d.mu.Unlock()

	err := errors.Join(d.compute.close(), d.graphics.close())
	vk.DeviceWaitIdle(d.context.Device.LogicalDevice)

	d.semaMu.Lock()
	for s := range d.semas {
		s.destroy(d.context)
	}
	d.semas = nil
	d.semaMu.Unlock()

	d.mu.Lock()
	if n := len(d.allocs); n > 0 {
		core.LogWarn("vulkan device destroyed with %d live allocations", n)
	}
	for id, a := range d.allocs {
		d.release(id, a)
	}
	d.mu.Unlock()

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(d.context)
	d.destroyInstance()
	d.terminate()
	return err
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
