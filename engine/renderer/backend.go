package renderer

import (
	"errors"

	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

var (
	ErrCommandListSubmitted = errors.New("command list already submitted")
	ErrForeignCommandList   = errors.New("command list was created by another stream")
	ErrDeviceDestroyed      = errors.New("device destroyed")
	ErrUnknownAllocation    = errors.New("unknown device allocation")
)

// Semaphore marks completion of everything a submission enqueued on a stream.
// It is consumed by passing it as a wait to a later submission. Wait blocks
// the host until the point is reached.
type Semaphore interface {
	Wait() error
}

// CommandList records device operations. Nothing executes until the list is
// submitted; operations run in recorded order relative to each other only.
type CommandList interface {
	// BufferBarrier makes writes to the buffer by earlier-submitted work
	// visible to the operations that follow in this list. It does not order
	// against other streams.
	BufferBarrier(ptr metadata.DevicePtr)
	// ImageTransition changes the layout of img. from must match the image's
	// actual layout, or be ImageLayoutUndefined to discard its contents.
	ImageTransition(img metadata.DeviceAllocation, from, to metadata.ImageLayout)
	// BufferToImage copies from a linear buffer region into dst, which must
	// already be in dstLayout.
	BufferToImage(dst metadata.DeviceAllocation, src metadata.DevicePtr, dstLayout metadata.ImageLayout, params metadata.BufferImageCopyParams)
	// ImageToBuffer copies from src, which must be in srcLayout, into a
	// linear buffer region.
	ImageToBuffer(dst metadata.DevicePtr, src metadata.DeviceAllocation, srcLayout metadata.ImageLayout, params metadata.BufferImageCopyParams)
}

// Stream is an ordered execution queue. Lists submitted to one stream execute
// in submission order; ordering across streams exists only through semaphores.
type Stream interface {
	NewCommandList() (CommandList, error)
	// Submit enqueues cmdlist after every semaphore in waits and returns a
	// semaphore signalled when it completes. It does not block.
	Submit(cmdlist CommandList, waits []Semaphore) (Semaphore, error)
	// SubmitSynced is Submit followed by a host wait: when it returns the
	// effects of cmdlist are complete and visible.
	SubmitSynced(cmdlist CommandList, waits []Semaphore) error
	// CommandSync blocks until everything submitted so far has completed.
	CommandSync() error
}

// GraphicsDevice owns images, buffers and streams.
type GraphicsDevice interface {
	CreateImage(params metadata.ImageParams) (metadata.DeviceAllocation, error)
	// DestroyImage releases the image. Calling it twice for one handle is a caller bug.
	DestroyImage(alloc metadata.DeviceAllocation)
	AllocateMemory(params metadata.AllocParams) (metadata.DeviceAllocation, error)
	DeallocMemory(alloc metadata.DeviceAllocation)
	// Map exposes a host-visible buffer allocation. The slice is valid until Unmap.
	Map(alloc metadata.DeviceAllocation) ([]byte, error)
	Unmap(alloc metadata.DeviceAllocation)
	GetComputeStream() Stream
	GetGraphicsStream() Stream
	WaitIdle() error
	Destroy() error
}
