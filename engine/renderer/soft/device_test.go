package soft

import (
	"io"
	"testing"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = core.ConfigureLogger(core.LoggerOptions{Level: "fatal", Output: io.Discard})
}

func newTestDevice(t *testing.T, opts Options) *Device {
	t.Helper()
	d := NewDevice(opts)
	t.Cleanup(func() { _ = d.Destroy() })
	return d
}

func image2D(format metadata.BufferFormat, w, h uint32) metadata.ImageParams {
	return metadata.ImageParams{
		Dimension: metadata.ImageDimension2D,
		Format:    format,
		X:         w,
		Y:         h,
		Z:         1,
	}
}

func TestCreateAndDestroyImage(t *testing.T) {
	d := newTestDevice(t, Options{})

	img, err := d.CreateImage(image2D(metadata.BufferFormatRGBA8, 4, 4))
	require.NoError(t, err)
	assert.False(t, img.IsNull())

	layout, err := d.ImageLayout(img)
	require.NoError(t, err)
	assert.Equal(t, metadata.ImageLayoutUndefined, layout)

	st := d.Stats()
	assert.Equal(t, 1, st.LiveImages)
	assert.Equal(t, uint64(64), st.BytesInUse)

	d.DestroyImage(img)
	st = d.Stats()
	assert.Equal(t, 0, st.LiveImages)
	assert.Equal(t, 1, st.ImagesDestroyed)
	assert.Zero(t, st.BytesInUse)
}

func TestDestroyImageTwiceIsFatal(t *testing.T) {
	d := newTestDevice(t, Options{})
	img, err := d.CreateImage(image2D(metadata.BufferFormatR8, 2, 2))
	require.NoError(t, err)
	d.DestroyImage(img)

	assert.PanicsWithError(t, "fatal: soft: destroy of unknown image "+img.String(), func() {
		d.DestroyImage(img)
	})
}

func TestCreateImageRejectsBadParams(t *testing.T) {
	d := newTestDevice(t, Options{})

	p := image2D(metadata.BufferFormatR8, 4, 4)
	p.Z = 2
	_, err := d.CreateImage(p)
	assert.ErrorIs(t, err, metadata.ErrInvalidExtent)

	_, err = d.CreateImage(image2D(metadata.BufferFormatUnknown, 4, 4))
	assert.ErrorIs(t, err, metadata.ErrUnsupportedFormat)
}

func TestMemoryBudget(t *testing.T) {
	d := newTestDevice(t, Options{MaxMemory: 100})

	buf, err := d.AllocateMemory(metadata.AllocParams{Size: 80})
	require.NoError(t, err)

	_, err = d.CreateImage(image2D(metadata.BufferFormatRGBA8, 4, 4))
	assert.ErrorIs(t, err, ErrOutOfMemory)

	d.DeallocMemory(buf)
	_, err = d.CreateImage(image2D(metadata.BufferFormatRGBA8, 4, 4))
	assert.NoError(t, err)
}

func TestMapOnlyBuffers(t *testing.T) {
	d := newTestDevice(t, Options{})

	img, err := d.CreateImage(image2D(metadata.BufferFormatR8, 2, 2))
	require.NoError(t, err)
	_, err = d.Map(img)
	assert.ErrorIs(t, err, ErrNotBuffer)

	_, err = d.Map(metadata.DeviceAllocation{ID: 999})
	assert.ErrorIs(t, err, renderer.ErrUnknownAllocation)

	buf, err := d.AllocateMemory(metadata.AllocParams{Size: 16, HostWrite: true})
	require.NoError(t, err)
	data, err := d.Map(buf)
	require.NoError(t, err)
	assert.Len(t, data, 16)
	d.Unmap(buf)
}

func TestDestroyReleasesLeakedAllocations(t *testing.T) {
	d := NewDevice(Options{Label: "leaky"})
	_, err := d.CreateImage(image2D(metadata.BufferFormatR8, 2, 2))
	require.NoError(t, err)
	_, err = d.AllocateMemory(metadata.AllocParams{Size: 8})
	require.NoError(t, err)

	require.NoError(t, d.Destroy())
	assert.Zero(t, d.Stats().BytesInUse)
	assert.NoError(t, d.Destroy())

	_, err = d.AllocateMemory(metadata.AllocParams{Size: 8})
	assert.ErrorIs(t, err, renderer.ErrDeviceDestroyed)
	_, err = d.GetComputeStream().NewCommandList()
	assert.ErrorIs(t, err, renderer.ErrDeviceDestroyed)
}
