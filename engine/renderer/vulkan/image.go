package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

// VulkanImage is a device-local image in optimal tiling. The current layout
// is tracked by whoever records transitions, not here.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	Params metadata.ImageParams
	Format vk.Format
}

func NewVulkanImage(context *VulkanContext, params metadata.ImageParams) (*VulkanImage, error) {
	format, ok := vkFormat(params.Format)
	if !ok {
		return nil, fmt.Errorf("image format %s: %w", params.Format, metadata.ErrUnsupportedFormat)
	}
	imageType := vk.ImageType2d
	if params.Dimension == metadata.ImageDimension3D {
		imageType = vk.ImageType3d
	}

	sharingMode, families := context.Device.sharing()
	// only undefined and preinitialized are legal initial layouts
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  params.X,
			Height: params.Y,
			Depth:  params.Z,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage: vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit |
			vk.ImageUsageSampledBit | vk.ImageUsageStorageBit),
		Samples:               vk.SampleCount1Bit,
		SharingMode:           sharingMode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
	}

	image := &VulkanImage{Params: params, Format: format}
	var handle vk.Image
	if err := vkCheck("vkCreateImage", vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	image.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryType == -1 {
		image.Destroy(context)
		return nil, fmt.Errorf("image %s: %w", params.Format, ErrNoMemoryType)
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := vkCheck("vkAllocateMemory", vk.AllocateMemory(context.Device.LogicalDevice, &memoryAllocateInfo, context.Allocator, &memory)); err != nil {
		image.Destroy(context)
		return nil, err
	}
	image.Memory = memory

	if err := vkCheck("vkBindImageMemory", vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0)); err != nil {
		image.Destroy(context)
		return nil, err
	}
	return image, nil
}

func (image *VulkanImage) Destroy(context *VulkanContext) {
	if image.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, image.Memory, context.Allocator)
		image.Memory = vk.NullDeviceMemory
	}
	if image.Handle != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, image.Handle, context.Allocator)
		image.Handle = vk.NullImage
	}
}
