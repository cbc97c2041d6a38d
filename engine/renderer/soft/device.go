// Package soft implements the renderer contract on host memory. Every stream
// runs on its own goroutine and cross-stream ordering exists only through
// semaphores, so it behaves like a device with independent hardware queues.
package soft

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

var (
	ErrOutOfMemory    = errors.New("soft: device memory budget exhausted")
	ErrNotBuffer      = errors.New("soft: allocation is not a buffer")
	ErrNotImage       = errors.New("soft: allocation is not an image")
	ErrLayoutMismatch = errors.New("soft: image layout mismatch")
	ErrCopyBounds     = errors.New("soft: copy region out of bounds")
	ErrUnsupported    = errors.New("soft: unsupported copy parameters")
)

const (
	ComputeStreamName  = "compute"
	GraphicsStreamName = "graphics"
)

type Options struct {
	// MaxMemory bounds the bytes held by images and buffers. Zero means unbounded.
	MaxMemory uint64
	// Label names the device in logs; a random one is generated when empty.
	Label string
	// QueueDepth is the number of submissions a stream buffers before Submit blocks.
	QueueDepth int
}

type Stats struct {
	LiveImages       int
	LiveBuffers      int
	ImagesCreated    int
	ImagesDestroyed  int
	BuffersAllocated int
	BuffersFreed     int
	BytesInUse       uint64
}

type allocation struct {
	data   []byte
	image  *imageState
	params metadata.AllocParams
	mapped bool
}

type imageState struct {
	params metadata.ImageParams
	layout metadata.ImageLayout
}

type Device struct {
	label string
	ids   *core.IdentifierPool

	mu        sync.RWMutex
	allocs    map[uint32]*allocation
	maxMemory uint64
	stats     Stats
	history   []Submission
	destroyed bool

	compute  *Stream
	graphics *Stream
}

var _ renderer.GraphicsDevice = (*Device)(nil)

func NewDevice(opts Options) *Device {
	label := opts.Label
	if label == "" {
		label = "soft-" + uuid.NewString()
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = 64
	}
	d := &Device{
		label:     label,
		ids:       core.NewIdentifierPool(),
		allocs:    make(map[uint32]*allocation),
		maxMemory: opts.MaxMemory,
	}
	d.compute = newStream(d, ComputeStreamName, depth)
	d.graphics = newStream(d, GraphicsStreamName, depth)
	core.LogDebug("soft device %s created (max memory %d bytes)", label, opts.MaxMemory)
	return d
}

func (d *Device) Label() string {
	return d.label
}

func (d *Device) reserve(size uint64) error {
	if d.maxMemory != 0 && d.stats.BytesInUse+size > d.maxMemory {
		return fmt.Errorf("%w: requested %d bytes, %d of %d in use", ErrOutOfMemory, size, d.stats.BytesInUse, d.maxMemory)
	}
	d.stats.BytesInUse += size
	return nil
}

func (d *Device) CreateImage(params metadata.ImageParams) (metadata.DeviceAllocation, error) {
	if err := params.Validate(); err != nil {
		return metadata.DeviceAllocation{}, err
	}
	size := params.ByteSize()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return metadata.DeviceAllocation{}, renderer.ErrDeviceDestroyed
	}
	if err := d.reserve(size); err != nil {
		return metadata.DeviceAllocation{}, err
	}
	a := &allocation{
		data:  make([]byte, size),
		image: &imageState{params: params, layout: params.InitialLayout},
	}
	id := d.ids.AcquireNewID(a)
	d.allocs[id] = a
	d.stats.LiveImages++
	d.stats.ImagesCreated++
	return metadata.DeviceAllocation{ID: id}, nil
}

func (d *Device) DestroyImage(alloc metadata.DeviceAllocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[alloc.ID]
	if !ok || a.image == nil {
		core.Fatalf("soft: destroy of unknown image %s", alloc)
	}
	d.release(alloc.ID, a)
	d.stats.LiveImages--
	d.stats.ImagesDestroyed++
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
	if err := d.reserve(params.Size); err != nil {
		return metadata.DeviceAllocation{}, err
	}
	a := &allocation{data: make([]byte, params.Size), params: params}
	id := d.ids.AcquireNewID(a)
	d.allocs[id] = a
	d.stats.LiveBuffers++
	d.stats.BuffersAllocated++
	return metadata.DeviceAllocation{ID: id}, nil
}

func (d *Device) DeallocMemory(alloc metadata.DeviceAllocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[alloc.ID]
	if !ok || a.image != nil {
		core.Fatalf("soft: dealloc of unknown buffer %s", alloc)
	}
	d.release(alloc.ID, a)
	d.stats.LiveBuffers--
	d.stats.BuffersFreed++
}

// release must be called with d.mu held.
func (d *Device) release(id uint32, a *allocation) {
	delete(d.allocs, id)
	d.stats.BytesInUse -= uint64(len(a.data))
	if err := d.ids.ReleaseID(id); err != nil {
		core.LogWarn("soft: %s", err)
	}
}

func (d *Device) Map(alloc metadata.DeviceAllocation) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[alloc.ID]
	if !ok {
		return nil, fmt.Errorf("map %s: %w", alloc, renderer.ErrUnknownAllocation)
	}
	if a.image != nil {
		return nil, fmt.Errorf("map %s: %w", alloc, ErrNotBuffer)
	}
	a.mapped = true
	return a.data, nil
}

func (d *Device) Unmap(alloc metadata.DeviceAllocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.allocs[alloc.ID]; ok {
		a.mapped = false
	}
}

func (d *Device) GetComputeStream() renderer.Stream {
	return d.compute
}

func (d *Device) GetGraphicsStream() renderer.Stream {
	return d.graphics
}

func (d *Device) WaitIdle() error {
	return errors.Join(d.compute.CommandSync(), d.graphics.CommandSync())
}

// Destroy drains both streams and drops every allocation still alive.
func (d *Device) Destroy() error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return nil
	}
	d.destroyed = true
	d.mu.Unlock()

	d.compute.close()
	d.graphics.close()

	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.allocs); n > 0 {
		core.LogWarn("soft device %s destroyed with %d live allocations (%d images, %d buffers)",
			d.label, n, d.stats.LiveImages, d.stats.LiveBuffers)
	}
	for id, a := range d.allocs {
		d.release(id, a)
	}
	core.LogDebug("soft device %s destroyed", d.label)
	return nil
}

func (d *Device) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// History returns every submission accepted so far, oldest first.
func (d *Device) History() []Submission {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Submission, len(d.history))
	copy(out, d.history)
	return out
}

// ImageLayout reports the layout the image is in after all completed work.
func (d *Device) ImageLayout(alloc metadata.DeviceAllocation) (metadata.ImageLayout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, err := d.imageOf(alloc)
	if err != nil {
		return metadata.ImageLayoutUndefined, err
	}
	return a.image.layout, nil
}

// ImageParams returns the creation parameters of an image.
func (d *Device) ImageParams(alloc metadata.DeviceAllocation) (metadata.ImageParams, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, err := d.imageOf(alloc)
	if err != nil {
		return metadata.ImageParams{}, err
	}
	return a.image.params, nil
}

// ImageBytes returns a copy of the level-0 image contents.
func (d *Device) ImageBytes(alloc metadata.DeviceAllocation) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, err := d.imageOf(alloc)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out, nil
}

func (d *Device) record(s Submission) {
	d.mu.Lock()
	d.history = append(d.history, s)
	d.mu.Unlock()
}
