package soft

import (
	"testing"

	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillBuffer(t *testing.T, d *Device, data []byte) metadata.DeviceAllocation {
	t.Helper()
	buf, err := d.AllocateMemory(metadata.AllocParams{Size: uint64(len(data)), HostWrite: true, HostRead: true})
	require.NoError(t, err)
	mapped, err := d.Map(buf)
	require.NoError(t, err)
	copy(mapped, data)
	d.Unmap(buf)
	return buf
}

func recordUpload(t *testing.T, s renderer.Stream, img metadata.DeviceAllocation, src metadata.DevicePtr, params metadata.BufferImageCopyParams) renderer.CommandList {
	t.Helper()
	cl, err := s.NewCommandList()
	require.NoError(t, err)
	cl.BufferBarrier(src)
	cl.ImageTransition(img, metadata.ImageLayoutUndefined, metadata.ImageLayoutTransferDst)
	cl.BufferToImage(img, src, metadata.ImageLayoutTransferDst, params)
	return cl
}

func TestUploadAndReadback(t *testing.T) {
	d := newTestDevice(t, Options{})
	stream := d.GetGraphicsStream()

	img, err := d.CreateImage(image2D(metadata.BufferFormatR8, 3, 2))
	require.NoError(t, err)
	// rows padded to 4 texels
	src := fillBuffer(t, d, []byte{1, 2, 3, 0, 4, 5, 6, 0})
	params := metadata.BufferImageCopyParams{
		BufferRowLength:   4,
		BufferImageHeight: 2,
		ImageExtent:       metadata.Extent{X: 3, Y: 2, Z: 1},
	}
	require.NoError(t, stream.SubmitSynced(recordUpload(t, stream, img, src.At(0), params), nil))

	pixels, err := d.ImageBytes(img)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, pixels)

	layout, err := d.ImageLayout(img)
	require.NoError(t, err)
	assert.Equal(t, metadata.ImageLayoutTransferDst, layout)

	dst, err := d.AllocateMemory(metadata.AllocParams{Size: 6, HostRead: true})
	require.NoError(t, err)
	cl, err := stream.NewCommandList()
	require.NoError(t, err)
	cl.ImageTransition(img, metadata.ImageLayoutTransferDst, metadata.ImageLayoutTransferSrc)
	cl.ImageToBuffer(dst.At(0), img, metadata.ImageLayoutTransferSrc, metadata.BufferImageCopyParams{
		ImageExtent: metadata.Extent{X: 3, Y: 2, Z: 1},
	})
	require.NoError(t, stream.SubmitSynced(cl, nil))

	out, err := d.Map(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, out)
}

func TestUpload3DWithOffset(t *testing.T) {
	d := newTestDevice(t, Options{})
	stream := d.GetComputeStream()

	img, err := d.CreateImage(metadata.ImageParams{
		Dimension: metadata.ImageDimension3D,
		Format:    metadata.BufferFormatR16,
		X:         2, Y: 2, Z: 2,
	})
	require.NoError(t, err)
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i + 1)
	}
	src := fillBuffer(t, d, append(make([]byte, 4), data...))
	params := metadata.BufferImageCopyParams{
		BufferRowLength:   2,
		BufferImageHeight: 2,
		ImageExtent:       metadata.Extent{X: 2, Y: 2, Z: 2},
	}
	require.NoError(t, stream.SubmitSynced(recordUpload(t, stream, img, src.At(4), params), nil))

	pixels, err := d.ImageBytes(img)
	require.NoError(t, err)
	assert.Equal(t, data, pixels)
}

func TestCopyRequiresMatchingLayout(t *testing.T) {
	d := newTestDevice(t, Options{})
	stream := d.GetGraphicsStream()

	img, err := d.CreateImage(image2D(metadata.BufferFormatR8, 2, 2))
	require.NoError(t, err)
	src := fillBuffer(t, d, make([]byte, 4))

	cl, err := stream.NewCommandList()
	require.NoError(t, err)
	cl.BufferToImage(img, src.At(0), metadata.ImageLayoutTransferDst, metadata.BufferImageCopyParams{
		ImageExtent: metadata.Extent{X: 2, Y: 2, Z: 1},
	})
	assert.ErrorIs(t, stream.SubmitSynced(cl, nil), ErrLayoutMismatch)

	cl, err = stream.NewCommandList()
	require.NoError(t, err)
	cl.ImageTransition(img, metadata.ImageLayoutShaderRead, metadata.ImageLayoutTransferDst)
	assert.ErrorIs(t, stream.SubmitSynced(cl, nil), ErrLayoutMismatch)
}

func TestCopyBounds(t *testing.T) {
	d := newTestDevice(t, Options{})
	stream := d.GetGraphicsStream()

	img, err := d.CreateImage(image2D(metadata.BufferFormatRG8, 2, 2))
	require.NoError(t, err)
	small := fillBuffer(t, d, make([]byte, 6))

	cl := recordUpload(t, stream, img, small.At(0), metadata.BufferImageCopyParams{
		ImageExtent: metadata.Extent{X: 2, Y: 2, Z: 1},
	})
	assert.ErrorIs(t, stream.SubmitSynced(cl, nil), ErrCopyBounds)

	big := fillBuffer(t, d, make([]byte, 64))
	cl = recordUpload(t, stream, img, big.At(0), metadata.BufferImageCopyParams{
		ImageExtent: metadata.Extent{X: 3, Y: 2, Z: 1},
	})
	assert.ErrorIs(t, stream.SubmitSynced(cl, nil), ErrCopyBounds)

	cl = recordUpload(t, stream, img, big.At(0), metadata.BufferImageCopyParams{
		ImageMipLevel: 1,
		ImageExtent:   metadata.Extent{X: 1, Y: 1, Z: 1},
	})
	assert.ErrorIs(t, stream.SubmitSynced(cl, nil), ErrUnsupported)
}

func TestSubmitValidatesList(t *testing.T) {
	d := newTestDevice(t, Options{})
	compute, graphics := d.GetComputeStream(), d.GetGraphicsStream()

	cl, err := compute.NewCommandList()
	require.NoError(t, err)
	_, err = graphics.Submit(cl, nil)
	assert.ErrorIs(t, err, renderer.ErrForeignCommandList)

	require.NoError(t, compute.SubmitSynced(cl, nil))
	_, err = compute.Submit(cl, nil)
	assert.ErrorIs(t, err, renderer.ErrCommandListSubmitted)
}

func TestCrossStreamWaitPropagatesFailure(t *testing.T) {
	d := newTestDevice(t, Options{})
	compute, graphics := d.GetComputeStream(), d.GetGraphicsStream()

	bad, err := compute.NewCommandList()
	require.NoError(t, err)
	bad.BufferBarrier(metadata.DeviceAllocation{ID: 4242}.At(0))
	sema, err := compute.Submit(bad, nil)
	require.NoError(t, err)

	img, err := d.CreateImage(image2D(metadata.BufferFormatR8, 1, 1))
	require.NoError(t, err)
	cl, err := graphics.NewCommandList()
	require.NoError(t, err)
	cl.ImageTransition(img, metadata.ImageLayoutUndefined, metadata.ImageLayoutTransferDst)

	err = graphics.SubmitSynced(cl, []renderer.Semaphore{sema})
	assert.ErrorIs(t, err, renderer.ErrUnknownAllocation)

	// the waiting list never ran
	layout, err := d.ImageLayout(img)
	require.NoError(t, err)
	assert.Equal(t, metadata.ImageLayoutUndefined, layout)
}

func TestCrossStreamOrdering(t *testing.T) {
	d := newTestDevice(t, Options{})
	compute, graphics := d.GetComputeStream(), d.GetGraphicsStream()

	img, err := d.CreateImage(image2D(metadata.BufferFormatR8, 2, 1))
	require.NoError(t, err)
	src := fillBuffer(t, d, []byte{7, 9})

	first, err := compute.NewCommandList()
	require.NoError(t, err)
	first.ImageTransition(img, metadata.ImageLayoutUndefined, metadata.ImageLayoutTransferDst)
	sema, err := compute.Submit(first, nil)
	require.NoError(t, err)

	second, err := graphics.NewCommandList()
	require.NoError(t, err)
	// valid only once the compute transition has executed
	second.BufferToImage(img, src.At(0), metadata.ImageLayoutTransferDst, metadata.BufferImageCopyParams{
		ImageExtent: metadata.Extent{X: 2, Y: 1, Z: 1},
	})
	require.NoError(t, graphics.SubmitSynced(second, []renderer.Semaphore{sema, nil}))

	pixels, err := d.ImageBytes(img)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 9}, pixels)
	assert.True(t, sema.(*Semaphore).IsSignaled())
}

func TestHistoryAndCommandSync(t *testing.T) {
	d := newTestDevice(t, Options{})
	compute := d.GetComputeStream()
	assert.NoError(t, compute.CommandSync())

	for i := 0; i < 3; i++ {
		cl, err := compute.NewCommandList()
		require.NoError(t, err)
		cl.BufferBarrier(fillBuffer(t, d, []byte{byte(i)}).At(0))
		_, err = compute.Submit(cl, nil)
		require.NoError(t, err)
	}
	require.NoError(t, compute.CommandSync())
	require.NoError(t, d.WaitIdle())

	hist := d.History()
	require.Len(t, hist, 3)
	for _, sub := range hist {
		assert.Equal(t, ComputeStreamName, sub.Stream)
		assert.False(t, sub.Synced)
		require.Len(t, sub.Ops, 1)
		assert.Equal(t, OpBufferBarrier, sub.Ops[0].Kind)
	}
}
