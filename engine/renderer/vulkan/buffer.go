package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

// VulkanBuffer is a host-visible, coherent linear buffer. It stays mapped for
// its whole life.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Params metadata.AllocParams
	mapped []byte
}

func bufferUsage(usage metadata.AllocUsage) vk.BufferUsageFlags {
	flags := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit)
	if usage&metadata.AllocUsageStorage != 0 || usage == 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	if usage&metadata.AllocUsageUniform != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if usage&metadata.AllocUsageVertex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if usage&metadata.AllocUsageIndex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	return flags
}

// buffer/image copy offsets must be multiples of four bytes
const copyAlignment = 4

// bufferSize pads a requested size to whole words; the mapping still exposes
// only the requested bytes.
func bufferSize(size uint64) vk.DeviceSize {
	return vk.DeviceSize(metadata.GetAligned(size, copyAlignment))
}

func NewVulkanBuffer(context *VulkanContext, params metadata.AllocParams) (*VulkanBuffer, error) {
	sharingMode, families := context.Device.sharing()
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:                 vk.StructureTypeBufferCreateInfo,
		Usage:                 bufferUsage(params.Usage),
		Size:                  bufferSize(params.Size),
		SharingMode:           sharingMode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
	}

	buffer := &VulkanBuffer{Params: params}
	var handle vk.Buffer
	if err := vkCheck("vkCreateBuffer", vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	buffer.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &memoryRequirements)
	memoryRequirements.Deref()

	properties := uint32(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, properties)
	if memoryType == -1 {
		buffer.Destroy(context)
		return nil, fmt.Errorf("buffer of %d bytes: %w", params.Size, ErrNoMemoryType)
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := vkCheck("vkAllocateMemory", vk.AllocateMemory(context.Device.LogicalDevice, &memoryAllocateInfo, context.Allocator, &memory)); err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	buffer.Memory = memory

	if err := vkCheck("vkBindBufferMemory", vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0)); err != nil {
		buffer.Destroy(context)
		return nil, err
	}

	var ptr unsafe.Pointer
	if err := vkCheck("vkMapMemory", vk.MapMemory(context.Device.LogicalDevice, memory, 0, vk.DeviceSize(params.Size), 0, &ptr)); err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	buffer.mapped = unsafe.Slice((*byte)(ptr), params.Size)
	return buffer, nil
}

func (buffer *VulkanBuffer) Bytes() []byte {
	return buffer.mapped
}

func (buffer *VulkanBuffer) Destroy(context *VulkanContext) {
	if buffer.mapped != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, buffer.Memory)
		buffer.mapped = nil
	}
	if buffer.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, buffer.Memory, context.Allocator)
		buffer.Memory = vk.NullDeviceMemory
	}
	if buffer.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		buffer.Handle = vk.NullBuffer
	}
}
