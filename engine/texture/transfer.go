package texture

import (
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/program"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

// ArraySource is a linear device array. Its first two dimensions give the
// buffer row length and image height of the copy.
type ArraySource interface {
	DevicePtr() metadata.DevicePtr
	Shape() []int
}

var _ ArraySource = (*program.Ndarray)(nil)

var transferMetrics = core.NewMetrics()

// TransferStats returns how many transfers completed and their rolling
// average duration in milliseconds.
func TransferStats() (uint64, float64) {
	return transferMetrics.Snapshot()
}

func (t *Texture) runtime(op string) Runtime {
	core.Assert(!t.destroyed, "%s on destroyed %s", op, t)
	core.Assert(t.rt != nil, "%s on wrapped %s: no runtime to flush", op, t)
	return t.rt
}

// FromNdarray overwrites the image with the contents of arr.
func (t *Texture) FromNdarray(arr ArraySource) {
	rt := t.runtime("from_ndarray")
	shape := arr.Shape()
	core.Assert(len(shape) >= 2, "from_ndarray needs at least 2 dimensions, got shape %v", shape)

	sema := rt.Flush()
	t.upload(rt, sema, arr.DevicePtr(), shape[0], shape[1])
}

// FromSNode overwrites the image with the contents of a place. Every ancestor
// of place must be dense; otherwise there is no linear buffer to copy from.
func (t *Texture) FromSNode(place *program.SNode) {
	rt := t.runtime("from_snode")
	core.Assert(place.IsPathAllDense(), "from_snode: %s is not dense along its path", place)
	treeID := place.TreeID()
	core.Assert(treeID != program.NoTree, "from_snode: %s is not materialized", place)

	sema := rt.Flush()
	src := rt.SNodeTreeDevicePtr(treeID).At(rt.FieldInTreeOffset(treeID, place))
	t.upload(rt, sema, src, place.ShapeAlongAxis(0), place.ShapeAlongAxis(1))
}

// upload records and runs the copy into the image. The image always moves
// from undefined since the copy replaces its whole contents.
func (t *Texture) upload(rt Runtime, wait renderer.Semaphore, src metadata.DevicePtr, rowLength, imageHeight int) {
	clock := core.NewClock()
	clock.Start()

	stream := rt.Device().GetComputeStream()
	cmdlist, err := stream.NewCommandList()
	core.Must(err, "transfer: new command list")

	params := metadata.BufferImageCopyParams{
		BufferRowLength:   uint32(rowLength),
		BufferImageHeight: uint32(imageHeight),
		ImageMipLevel:     0,
		ImageExtent: metadata.Extent{
			X: uint32(t.width),
			Y: uint32(t.height),
			Z: uint32(t.depth),
		},
	}

	cmdlist.BufferBarrier(src)
	cmdlist.ImageTransition(t.alloc, metadata.ImageLayoutUndefined, metadata.ImageLayoutTransferDst)
	cmdlist.BufferToImage(t.alloc, src, metadata.ImageLayoutTransferDst, params)

	core.Must(stream.SubmitSynced(cmdlist, []renderer.Semaphore{wait}), "transfer: submit")
	t.layout = metadata.ImageLayoutTransferDst

	clock.Update()
	transferMetrics.Update(clock.Elapsed())
	core.LogDebug("%s filled from %s in %.3fms", t, src, clock.Elapsed()*1000)
}
