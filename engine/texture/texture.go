// Package texture moves compute results into device images. A Texture owns
// (or wraps) one image and fills it from ndarrays or dense fields with a
// flush, barrier, transition, copy and synced submit on the compute stream.
package texture

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/program"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

// Runtime is what a texture needs from the compute runtime: the device, a
// flush that yields a semaphore, and field address resolution.
type Runtime interface {
	Device() renderer.GraphicsDevice
	Flush() renderer.Semaphore
	SNodeTreeDevicePtr(treeID int) metadata.DevicePtr
	FieldInTreeOffset(treeID int, place *program.SNode) uint64
}

var _ Runtime = (*program.Program)(nil)

type Texture struct {
	Name string

	dtype    program.DataType
	channels int
	width    int
	height   int
	depth    int
	format   metadata.BufferFormat
	alloc    metadata.DeviceAllocation

	// nil when the image is wrapped rather than owned
	rt Runtime
	// last layout this texture moved its image to
	layout    metadata.ImageLayout
	destroyed bool
}

func checkShape(channels, width, height, depth int) {
	core.Assert(channels > 0 && channels <= 4, "texture channels must be in [1,4], got %d", channels)
	core.Assert(width > 0 && height > 0 && depth > 0, "texture extent %dx%dx%d must be positive", width, height, depth)
}

// New allocates an image on the runtime's device. A depth above 1 selects a
// 3-D image.
func New(rt Runtime, dtype program.DataType, channels, width, height, depth int) *Texture {
	device := rt.Device()
	core.LogDebug("create image, gfx device %p, type=%s, channels=%d, w=%d, h=%d, d=%d",
		device, dtype, channels, width, height, depth)

	checkShape(channels, width, height, depth)

	params := metadata.ImageParams{
		Dimension:     metadata.ImageDimension2D,
		Format:        GetFormat(dtype, channels),
		X:             uint32(width),
		Y:             uint32(height),
		Z:             uint32(depth),
		InitialLayout: metadata.ImageLayoutUndefined,
	}
	if depth > 1 {
		params.Dimension = metadata.ImageDimension3D
	}
	alloc, err := device.CreateImage(params)
	core.Must(err, "create image")

	t := &Texture{
		Name:     "texture-" + uuid.NewString(),
		dtype:    dtype,
		channels: channels,
		width:    width,
		height:   height,
		depth:    depth,
		format:   params.Format,
		alloc:    alloc,
		rt:       rt,
		layout:   params.InitialLayout,
	}
	core.LogDebug("image created, gfx device %p, %s", device, t)
	return t
}

// Wrap adopts an image created elsewhere. The texture never destroys it and
// has no runtime, so it cannot run transfers either.
func Wrap(alloc metadata.DeviceAllocation, dtype program.DataType, channels, width, height, depth int) *Texture {
	checkShape(channels, width, height, depth)
	return &Texture{
		Name:     "wrapped-" + uuid.NewString(),
		dtype:    dtype,
		channels: channels,
		width:    width,
		height:   height,
		depth:    depth,
		format:   GetFormat(dtype, channels),
		alloc:    alloc,
	}
}

func (t *Texture) DType() program.DataType {
	return t.dtype
}

func (t *Texture) Channels() int {
	return t.channels
}

func (t *Texture) Width() int {
	return t.width
}

func (t *Texture) Height() int {
	return t.height
}

func (t *Texture) Depth() int {
	return t.depth
}

func (t *Texture) Format() metadata.BufferFormat {
	return t.format
}

func (t *Texture) Layout() metadata.ImageLayout {
	return t.layout
}

// Allocation returns the image handle.
func (t *Texture) Allocation() metadata.DeviceAllocation {
	return t.alloc
}

// DeviceAllocationID exposes the image identity to code that shares the
// image with another API.
func (t *Texture) DeviceAllocationID() uint32 {
	return t.alloc.ID
}

func (t *Texture) Dimension() metadata.ImageDimension {
	if t.depth > 1 {
		return metadata.ImageDimension3D
	}
	return metadata.ImageDimension2D
}

// Owned reports whether Destroy releases the image.
func (t *Texture) Owned() bool {
	return t.rt != nil
}

// ByteSize is the size of the image contents in bytes.
func (t *Texture) ByteSize() uint64 {
	return uint64(t.format.BytesPerPixel()) * metadata.Product(uint64(t.width), uint64(t.height), uint64(t.depth))
}

// Destroy releases an owned image. Later calls, and calls on wrapped
// textures, do nothing.
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if t.rt != nil {
		t.rt.Device().DestroyImage(t.alloc)
	}
}

func (t *Texture) String() string {
	return fmt.Sprintf("%s(%s, %dx%dx%d, %s)", t.Name, t.format, t.width, t.height, t.depth, t.alloc)
}
