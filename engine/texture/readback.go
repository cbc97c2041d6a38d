package texture

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

var ErrNoRuntime = errors.New("texture has no runtime")

// ReadPixels copies the image back to the host through a staging buffer.
// Texels are tightly packed, x fastest, components interleaved.
func (t *Texture) ReadPixels() ([]byte, error) {
	if t.rt == nil {
		return nil, fmt.Errorf("read %s: %w", t, ErrNoRuntime)
	}
	if t.destroyed {
		return nil, fmt.Errorf("read %s: texture destroyed", t)
	}
	device := t.rt.Device()
	size := t.ByteSize()

	staging, err := device.AllocateMemory(metadata.AllocParams{Size: size, HostRead: true})
	if err != nil {
		return nil, fmt.Errorf("read %s: staging buffer: %w", t, err)
	}
	defer device.DeallocMemory(staging)

	wait := t.rt.Flush()
	stream := device.GetComputeStream()
	cmdlist, err := stream.NewCommandList()
	if err != nil {
		return nil, err
	}
	cmdlist.ImageTransition(t.alloc, t.layout, metadata.ImageLayoutTransferSrc)
	cmdlist.ImageToBuffer(staging.At(0), t.alloc, metadata.ImageLayoutTransferSrc, metadata.BufferImageCopyParams{
		ImageExtent: metadata.Extent{X: uint32(t.width), Y: uint32(t.height), Z: uint32(t.depth)},
	})
	if err := stream.SubmitSynced(cmdlist, []renderer.Semaphore{wait}); err != nil {
		return nil, fmt.Errorf("read %s: %w", t, err)
	}
	t.layout = metadata.ImageLayoutTransferSrc

	mapped, err := device.Map(staging)
	if err != nil {
		return nil, err
	}
	defer device.Unmap(staging)
	out := make([]byte, size)
	copy(out, mapped)
	return out, nil
}
