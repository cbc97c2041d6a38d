package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := vkCheck("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles)); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY
	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle != nil {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

// Begin starts a one-time-submit recording.
func (v *VulkanCommandBuffer) Begin() error {
	vBeginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vkCheck("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, vBeginInfo)); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := vkCheck("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

type opKind int

const (
	opBufferBarrier opKind = iota
	opImageTransition
	opBufferToImage
	opImageToBuffer
)

type op struct {
	kind     opKind
	buffer   metadata.DevicePtr
	image    metadata.DeviceAllocation
	from, to metadata.ImageLayout
	copy     metadata.BufferImageCopyParams
}

// CommandList collects operations on the caller's goroutine. They are encoded
// into a Vulkan command buffer at submit time, under the command pool lock.
type CommandList struct {
	stream    *Stream
	ops       []op
	submitted bool
}

var _ renderer.CommandList = (*CommandList)(nil)

func (cl *CommandList) BufferBarrier(ptr metadata.DevicePtr) {
	cl.ops = append(cl.ops, op{kind: opBufferBarrier, buffer: ptr})
}

func (cl *CommandList) ImageTransition(img metadata.DeviceAllocation, from, to metadata.ImageLayout) {
	cl.ops = append(cl.ops, op{kind: opImageTransition, image: img, from: from, to: to})
}

func (cl *CommandList) BufferToImage(dst metadata.DeviceAllocation, src metadata.DevicePtr, dstLayout metadata.ImageLayout, params metadata.BufferImageCopyParams) {
	cl.ops = append(cl.ops, op{kind: opBufferToImage, buffer: src, image: dst, to: dstLayout, copy: params})
}

func (cl *CommandList) ImageToBuffer(dst metadata.DevicePtr, src metadata.DeviceAllocation, srcLayout metadata.ImageLayout, params metadata.BufferImageCopyParams) {
	cl.ops = append(cl.ops, op{kind: opImageToBuffer, buffer: dst, image: src, from: srcLayout, copy: params})
}

// encode records every op into cmd. Allocations are resolved here, so a list
// naming a destroyed allocation fails at submit.
func (cl *CommandList) encode(d *Device, cmd vk.CommandBuffer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for i, o := range cl.ops {
		var err error
		switch o.kind {
		case opBufferBarrier:
			err = d.encodeBufferBarrier(cmd, o.buffer)
		case opImageTransition:
			err = d.encodeTransition(cmd, o.image, o.from, o.to)
		case opBufferToImage:
			err = d.encodeCopy(cmd, o, true)
		case opImageToBuffer:
			err = d.encodeCopy(cmd, o, false)
		}
		if err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}
	return nil
}

func (d *Device) encodeBufferBarrier(cmd vk.CommandBuffer, ptr metadata.DevicePtr) error {
	buffer, err := d.buffer(ptr.Alloc)
	if err != nil {
		return err
	}
	srcStage := vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit | vk.PipelineStageTransferBit | vk.PipelineStageHostBit)
	dstStage := vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit | vk.PipelineStageTransferBit)
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 1, []vk.BufferMemoryBarrier{{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessShaderWriteBit | vk.AccessTransferWriteBit | vk.AccessHostWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessTransferReadBit),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buffer.Handle,
		Offset:              vk.DeviceSize(ptr.Offset),
		Size:                vk.DeviceSize(vk.WholeSize),
	}}, 0, nil)
	return nil
}

func (d *Device) encodeTransition(cmd vk.CommandBuffer, alloc metadata.DeviceAllocation, from, to metadata.ImageLayout) error {
	image, err := d.image(alloc)
	if err != nil {
		return err
	}
	srcAccess, srcStage := layoutAccess(from)
	dstAccess, dstStage := layoutAccess(to)
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           vkLayout(from),
		NewLayout:           vkLayout(to),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image.Handle,
		SubresourceRange:    colorSubresource(),
	}})
	return nil
}

func (d *Device) encodeCopy(cmd vk.CommandBuffer, o op, toImage bool) error {
	buffer, err := d.buffer(o.buffer.Alloc)
	if err != nil {
		return err
	}
	image, err := d.image(o.image)
	if err != nil {
		return err
	}
	layers := o.copy.ImageLayerCount
	if layers == 0 {
		layers = 1
	}
	span := o.copy.BufferSpan(image.Params.Format.BytesPerPixel())
	if o.buffer.Offset+span > buffer.Params.Size {
		return fmt.Errorf("copy of %d bytes at %s exceeds buffer of %d bytes", span, o.buffer, buffer.Params.Size)
	}
	regions := []vk.BufferImageCopy{{
		BufferOffset:      vk.DeviceSize(o.buffer.Offset),
		BufferRowLength:   o.copy.BufferRowLength,
		BufferImageHeight: o.copy.BufferImageHeight,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       o.copy.ImageMipLevel,
			BaseArrayLayer: o.copy.ImageBaseLayer,
			LayerCount:     layers,
		},
		ImageOffset: vk.Offset3D{
			X: int32(o.copy.ImageOffset.X),
			Y: int32(o.copy.ImageOffset.Y),
			Z: int32(o.copy.ImageOffset.Z),
		},
		ImageExtent: vk.Extent3D{
			Width:  o.copy.ImageExtent.X,
			Height: o.copy.ImageExtent.Y,
			Depth:  o.copy.ImageExtent.Z,
		},
	}}
	if toImage {
		vk.CmdCopyBufferToImage(cmd, buffer.Handle, image.Handle, vkLayout(o.to), 1, regions)
	} else {
		vk.CmdCopyImageToBuffer(cmd, image.Handle, vkLayout(o.from), buffer.Handle, 1, regions)
	}
	return nil
}
