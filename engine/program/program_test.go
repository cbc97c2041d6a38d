package program

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = core.ConfigureLogger(core.LoggerOptions{Level: "fatal", Output: io.Discard})
}

func newTestProgram(t *testing.T) (*Program, *soft.Device) {
	t.Helper()
	dev := soft.NewDevice(soft.Options{})
	prog, err := New(dev, Options{ComputeWorkers: 2, JobQueueSize: 8})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = prog.Destroy()
		_ = dev.Destroy()
	})
	return prog, dev
}

func TestFlushWaitsForKernels(t *testing.T) {
	prog, dev := newTestProgram(t)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, prog.Launch("inc", func() error {
			ran.Add(1)
			return nil
		}))
	}
	sema := prog.Flush()
	assert.Equal(t, int32(10), ran.Load())
	require.NoError(t, sema.Wait())
	assert.Equal(t, 10, prog.Launched())

	hist := dev.History()
	require.Len(t, hist, 1)
	assert.Equal(t, soft.ComputeStreamName, hist[0].Stream)
	assert.Empty(t, hist[0].Ops)
}

func TestSynchronizeReportsFirstKernelError(t *testing.T) {
	prog, _ := newTestProgram(t)
	boom := errors.New("boom")

	require.NoError(t, prog.Launch("fails", func() error { return boom }))
	err := prog.Synchronize()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "kernel fails")

	assert.NoError(t, prog.Synchronize())
}

func TestSynchronizeSubmitsWithoutSignal(t *testing.T) {
	prog, dev := newTestProgram(t)

	require.NoError(t, prog.Launch("noop", func() error { return nil }))
	require.NoError(t, prog.Synchronize())
	require.NoError(t, prog.Synchronize())

	hist := dev.History()
	require.Len(t, hist, 2)
	for _, sub := range hist {
		assert.Equal(t, soft.ComputeStreamName, sub.Stream)
		assert.True(t, sub.Synced)
		assert.Empty(t, sub.Ops)
	}
}

func TestDestroyReleasesResources(t *testing.T) {
	dev := soft.NewDevice(soft.Options{})
	defer dev.Destroy()
	prog, err := New(dev, Options{})
	require.NoError(t, err)

	_, err = prog.CreateNdarray(F32, []int{4, 4})
	require.NoError(t, err)
	root := NewRoot()
	root.Dense(8).Place("x", U8)
	_, err = prog.MaterializeTree(root)
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Stats().LiveBuffers)

	require.NoError(t, prog.Destroy())
	assert.Zero(t, dev.Stats().LiveBuffers)
	assert.ErrorIs(t, prog.Launch("late", func() error { return nil }), ErrDestroyed)
	assert.NoError(t, prog.Destroy())
}

func TestNdarrayWriteRead(t *testing.T) {
	prog, dev := newTestProgram(t)

	arr, err := prog.CreateNdarray(U8, []int{3, 2}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, arr.Shape())
	assert.Equal(t, 6, arr.NumElements())
	assert.Equal(t, 4, arr.ElementSize())
	assert.Equal(t, uint64(24), arr.ByteSize())

	data := make([]byte, 24)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, arr.Write(data))
	back, err := arr.Read()
	require.NoError(t, err)
	assert.Equal(t, data, back)

	assert.ErrorIs(t, arr.Write(data[:3]), ErrSizeMismatch)

	arr.Destroy()
	arr.Destroy()
	assert.Equal(t, 1, dev.Stats().BuffersFreed)
}

func TestCreateNdarrayRejectsBadShape(t *testing.T) {
	prog, _ := newTestProgram(t)

	_, err := prog.CreateNdarray(F32, nil)
	assert.Error(t, err)
	_, err = prog.CreateNdarray(F32, []int{4, 0})
	assert.Error(t, err)
	_, err = prog.CreateNdarray(DataTypeUnknown, []int{4})
	assert.Error(t, err)
}

func TestDataType(t *testing.T) {
	assert.Equal(t, 2, F16.Size())
	assert.Equal(t, 1, U8.Size())
	assert.Equal(t, "u16", U16.String())
	assert.Equal(t, "DataType(99)", DataType(99).String())
	assert.Zero(t, DataType(99).Size())
}
