package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

var bufferFormats = map[metadata.BufferFormat]vk.Format{
	metadata.BufferFormatR8:      vk.FormatR8Unorm,
	metadata.BufferFormatRG8:     vk.FormatR8g8Unorm,
	metadata.BufferFormatRGBA8:   vk.FormatR8g8b8a8Unorm,
	metadata.BufferFormatR16:     vk.FormatR16Unorm,
	metadata.BufferFormatRG16:    vk.FormatR16g16Unorm,
	metadata.BufferFormatRGBA16:  vk.FormatR16g16b16a16Unorm,
	metadata.BufferFormatR16F:    vk.FormatR16Sfloat,
	metadata.BufferFormatRG16F:   vk.FormatR16g16Sfloat,
	metadata.BufferFormatRGBA16F: vk.FormatR16g16b16a16Sfloat,
	metadata.BufferFormatR32F:    vk.FormatR32Sfloat,
	metadata.BufferFormatRG32F:   vk.FormatR32g32Sfloat,
	metadata.BufferFormatRGB32F:  vk.FormatR32g32b32Sfloat,
	metadata.BufferFormatRGBA32F: vk.FormatR32g32b32a32Sfloat,
}

func vkFormat(f metadata.BufferFormat) (vk.Format, bool) {
	format, ok := bufferFormats[f]
	return format, ok
}

func vkLayout(l metadata.ImageLayout) vk.ImageLayout {
	switch l {
	case metadata.ImageLayoutGeneral:
		return vk.ImageLayoutGeneral
	case metadata.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case metadata.ImageLayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case metadata.ImageLayoutShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

// layoutAccess returns the access mask and pipeline stage that use an image
// in layout l, for the source or destination half of a barrier.
func layoutAccess(l metadata.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch l {
	case metadata.ImageLayoutTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case metadata.ImageLayoutTransferSrc:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case metadata.ImageLayoutShaderRead:
		return vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit)
	case metadata.ImageLayoutGeneral:
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	case metadata.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

func colorSubresource() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
}
