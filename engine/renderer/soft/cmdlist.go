package soft

import (
	"fmt"

	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

type OpKind int

const (
	OpBufferBarrier OpKind = iota
	OpImageTransition
	OpBufferToImage
	OpImageToBuffer
)

func (k OpKind) String() string {
	switch k {
	case OpBufferBarrier:
		return "buffer_barrier"
	case OpImageTransition:
		return "image_transition"
	case OpBufferToImage:
		return "buffer_to_image"
	case OpImageToBuffer:
		return "image_to_buffer"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one recorded operation. Which fields matter depends on Kind.
type Op struct {
	Kind   OpKind
	Buffer metadata.DevicePtr
	Image  metadata.DeviceAllocation
	// From and To are the transition layouts; To is also the layout a copy expects.
	From metadata.ImageLayout
	To   metadata.ImageLayout
	Copy metadata.BufferImageCopyParams
}

// Submission is what History reports for every accepted submit.
type Submission struct {
	Stream string
	Waits  int
	Synced bool
	Ops    []Op
}

type CommandList struct {
	stream    *Stream
	ops       []Op
	submitted bool
}

var _ renderer.CommandList = (*CommandList)(nil)

func (cl *CommandList) BufferBarrier(ptr metadata.DevicePtr) {
	cl.ops = append(cl.ops, Op{Kind: OpBufferBarrier, Buffer: ptr})
}

func (cl *CommandList) ImageTransition(img metadata.DeviceAllocation, from, to metadata.ImageLayout) {
	cl.ops = append(cl.ops, Op{Kind: OpImageTransition, Image: img, From: from, To: to})
}

func (cl *CommandList) BufferToImage(dst metadata.DeviceAllocation, src metadata.DevicePtr, dstLayout metadata.ImageLayout, params metadata.BufferImageCopyParams) {
	cl.ops = append(cl.ops, Op{Kind: OpBufferToImage, Image: dst, Buffer: src, To: dstLayout, Copy: params})
}

func (cl *CommandList) ImageToBuffer(dst metadata.DevicePtr, src metadata.DeviceAllocation, srcLayout metadata.ImageLayout, params metadata.BufferImageCopyParams) {
	cl.ops = append(cl.ops, Op{Kind: OpImageToBuffer, Image: src, Buffer: dst, To: srcLayout, Copy: params})
}

// Ops returns a copy of the recorded operations.
func (cl *CommandList) Ops() []Op {
	out := make([]Op, len(cl.ops))
	copy(out, cl.ops)
	return out
}

// execute runs on the stream goroutine. It stops at the first failing op.
func (cl *CommandList) execute(d *Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, op := range cl.ops {
		var err error
		switch op.Kind {
		case OpBufferBarrier:
			// host memory is coherent; the stream's channel hand-off already orders it
			_, err = d.buffer(op.Buffer.Alloc)
		case OpImageTransition:
			err = d.transition(op)
		case OpBufferToImage, OpImageToBuffer:
			err = d.copyBufferImage(op)
		}
		if err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
	}
	return nil
}

// buffer and imageOf must be called with d.mu held.
func (d *Device) buffer(alloc metadata.DeviceAllocation) (*allocation, error) {
	a, ok := d.allocs[alloc.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", alloc, renderer.ErrUnknownAllocation)
	}
	if a.image != nil {
		return nil, fmt.Errorf("%s: %w", alloc, ErrNotBuffer)
	}
	return a, nil
}

func (d *Device) imageOf(alloc metadata.DeviceAllocation) (*allocation, error) {
	a, ok := d.allocs[alloc.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", alloc, renderer.ErrUnknownAllocation)
	}
	if a.image == nil {
		return nil, fmt.Errorf("%s: %w", alloc, ErrNotImage)
	}
	return a, nil
}

func (d *Device) transition(op Op) error {
	img, err := d.imageOf(op.Image)
	if err != nil {
		return err
	}
	// undefined is always a legal source: the previous contents are discarded
	if op.From != metadata.ImageLayoutUndefined && op.From != img.image.layout {
		return fmt.Errorf("%w: transition from %s but image is %s", ErrLayoutMismatch, op.From, img.image.layout)
	}
	img.image.layout = op.To
	return nil
}

func (d *Device) copyBufferImage(op Op) error {
	img, err := d.imageOf(op.Image)
	if err != nil {
		return err
	}
	buf, err := d.buffer(op.Buffer.Alloc)
	if err != nil {
		return err
	}
	if img.image.layout != op.To {
		return fmt.Errorf("%w: copy expects %s but image is %s", ErrLayoutMismatch, op.To, img.image.layout)
	}

	p := op.Copy
	ip := img.image.params
	if p.ImageMipLevel != 0 || p.ImageBaseLayer != 0 || p.ImageLayerCount > 1 {
		return fmt.Errorf("%w: mip %d, layers %d+%d", ErrUnsupported, p.ImageMipLevel, p.ImageBaseLayer, p.ImageLayerCount)
	}
	e, o := p.ImageExtent, p.ImageOffset
	if uint64(o.X)+uint64(e.X) > uint64(ip.X) || uint64(o.Y)+uint64(e.Y) > uint64(ip.Y) || uint64(o.Z)+uint64(e.Z) > uint64(ip.Z) {
		return fmt.Errorf("%w: region %v+%v exceeds image %dx%dx%d", ErrCopyBounds, o, e, ip.X, ip.Y, ip.Z)
	}
	if p.RowLength() < e.X || p.ImageHeight() < e.Y {
		return fmt.Errorf("%w: buffer row length %d / image height %d smaller than extent", ErrCopyBounds, p.RowLength(), p.ImageHeight())
	}
	bpp := uint64(ip.Format.BytesPerPixel())
	if span := p.BufferSpan(int(bpp)); op.Buffer.Offset+span > uint64(len(buf.data)) {
		return fmt.Errorf("%w: %d bytes from %s exceed buffer of %d bytes", ErrCopyBounds, span, op.Buffer, len(buf.data))
	}

	rowBytes := uint64(e.X) * bpp
	bufRow := uint64(p.RowLength())
	bufSlice := bufRow * uint64(p.ImageHeight())
	for z := uint64(0); z < uint64(e.Z); z++ {
		for y := uint64(0); y < uint64(e.Y); y++ {
			b := op.Buffer.Offset + (z*bufSlice+y*bufRow)*bpp
			i := (((uint64(o.Z)+z)*uint64(ip.Y)+uint64(o.Y)+y)*uint64(ip.X) + uint64(o.X)) * bpp
			if op.Kind == OpBufferToImage {
				copy(img.data[i:i+rowBytes], buf.data[b:b+rowBytes])
			} else {
				copy(buf.data[b:b+rowBytes], img.data[i:i+rowBytes])
			}
		}
	}
	return nil
}
