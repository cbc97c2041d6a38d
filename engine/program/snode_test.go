package program

import (
	"testing"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeAlongAxis(t *testing.T) {
	root := NewRoot()
	block := root.Dense(4, 2)
	x := block.Dense(8, 8, 3).Place("x", F32)

	assert.Equal(t, 32, x.ShapeAlongAxis(0))
	assert.Equal(t, 16, x.ShapeAlongAxis(1))
	assert.Equal(t, 3, x.ShapeAlongAxis(2))
	assert.Equal(t, 1, x.ShapeAlongAxis(3))
	assert.Equal(t, []int{32, 16, 3}, x.Shape())
	assert.Equal(t, 32*16*3, x.NumElements())
}

func TestIsPathAllDense(t *testing.T) {
	root := NewRoot()
	dense := root.Dense(16).Place("a", F32)
	ptr := root.Pointer(4).Dense(4).Place("b", F32)
	masked := root.Dense(4).Bitmasked(4).Place("c", F32)
	dyn := root.Dynamic(32).Place("d", I32)

	assert.True(t, dense.IsPathAllDense())
	assert.False(t, ptr.IsPathAllDense())
	assert.False(t, masked.IsPathAllDense())
	assert.False(t, dyn.IsPathAllDense())
	assert.True(t, root.IsPathAllDense())
}

func TestSNodeBuilderAsserts(t *testing.T) {
	root := NewRoot()
	leaf := root.Dense(4).Place("x", U8)

	assert.Panics(t, func() { leaf.Dense(2) })
	assert.Panics(t, func() { root.Dense(0) })
	assert.Panics(t, func() { root.Place("bad", DataTypeUnknown) })
	assert.Panics(t, func() { root.PlaceVector("bad", U8, 0) })
}

func TestMaterializeTreeLayout(t *testing.T) {
	prog, _ := newTestProgram(t)

	root := NewRoot()
	grid := root.Dense(10, 10)
	a := grid.Place("a", U8)
	b := grid.PlaceVector("b", F32, 2)
	sparse := root.Pointer(4).Place("s", F32)

	id, err := prog.MaterializeTree(root)
	require.NoError(t, err)
	assert.Equal(t, id, a.TreeID())
	assert.Equal(t, id, sparse.TreeID())

	assert.Zero(t, prog.FieldInTreeOffset(id, a))
	// 100 bytes of a, rounded to the field alignment
	assert.Equal(t, uint64(256), prog.FieldInTreeOffset(id, b))
	assert.Equal(t, uint64(0), prog.SNodeTreeDevicePtr(id).Offset)

	assert.PanicsWithError(t, "fatal: assertion failed: "+sparse.String()+" has no linear storage in tree 0", func() {
		prog.FieldInTreeOffset(id, sparse)
	})

	_, err = prog.MaterializeTree(root)
	assert.Error(t, err)
	assert.Panics(t, func() { grid.Place("late", U8) })
}

func TestTreeIDsAreDistinct(t *testing.T) {
	prog, _ := newTestProgram(t)

	r1, r2 := NewRoot(), NewRoot()
	r1.Dense(4).Place("x", U8)
	r2.Dense(4).Place("y", U8)
	id1, err := prog.MaterializeTree(r1)
	require.NoError(t, err)
	id2, err := prog.MaterializeTree(r2)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, prog.SNodeTreeDevicePtr(id1).Alloc, prog.SNodeTreeDevicePtr(id2).Alloc)

	assert.Panics(t, func() { prog.SNodeTreeDevicePtr(42) })
}

func TestWriteReadField(t *testing.T) {
	prog, _ := newTestProgram(t)

	root := NewRoot()
	grid := root.Dense(4, 4)
	a := grid.Place("a", U16)
	b := grid.Place("b", U8)
	_, err := prog.MaterializeTree(root)
	require.NoError(t, err)

	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(100 + i)
	}
	require.NoError(t, prog.WriteField(a, data))
	require.NoError(t, prog.WriteField(b, make([]byte, 16)))

	back, err := prog.ReadField(a)
	require.NoError(t, err)
	assert.Equal(t, data, back)
	assert.ErrorIs(t, prog.WriteField(b, data), ErrSizeMismatch)

	unmaterialized := NewRoot().Dense(2).Place("z", U8)
	assert.Panics(t, func() { _, _ = prog.ReadField(unmaterialized) })

	var fe *core.FatalError
	func() {
		defer func() { fe, _ = recover().(*core.FatalError) }()
		_ = prog.WriteField(unmaterialized, nil)
	}()
	require.NotNil(t, fe)
	assert.Contains(t, fe.Error(), "not materialized")
}
