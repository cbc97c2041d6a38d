package program

import (
	"fmt"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

type SNodeType int

const (
	SNodeRoot SNodeType = iota
	SNodeDense
	SNodePointer
	SNodeBitmasked
	SNodeDynamic
	SNodePlace
)

func (t SNodeType) String() string {
	switch t {
	case SNodeRoot:
		return "root"
	case SNodeDense:
		return "dense"
	case SNodePointer:
		return "pointer"
	case SNodeBitmasked:
		return "bitmasked"
	case SNodeDynamic:
		return "dynamic"
	case SNodePlace:
		return "place"
	}
	return fmt.Sprintf("SNodeType(%d)", int(t))
}

// NoTree is the tree ID of a hierarchy that has not been materialized.
const NoTree = -1

/**
 * @brief A node of a hierarchical data field. Interior nodes split their
 * index space along one or more axes; Place leaves hold the actual elements.
 */
type SNode struct {
	ID       int
	Type     SNodeType
	Name     string
	Parent   *SNode
	Children []*SNode

	/** @brief Extent per axis contributed by this node. Axis 0 varies fastest. */
	Extents []int
	/** @brief Element type and component count of a place. */
	DType    DataType
	Channels int

	// only meaningful on the root
	treeID int
	nextID *int
}

func NewRoot() *SNode {
	next := 1
	return &SNode{Type: SNodeRoot, treeID: NoTree, nextID: &next}
}

func (s *SNode) root() *SNode {
	n := s
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

func (s *SNode) child(t SNodeType, extents []int) *SNode {
	core.Assert(s.Type != SNodePlace, "cannot add %s below place %q", t, s.Name)
	core.Assert(s.root().treeID == NoTree, "cannot extend materialized tree %d", s.root().treeID)
	for axis, e := range extents {
		core.Assert(e > 0, "%s extent along axis %d must be positive, got %d", t, axis, e)
	}
	r := s.root()
	c := &SNode{ID: *r.nextID, Type: t, Parent: s, Extents: extents}
	*r.nextID++
	s.Children = append(s.Children, c)
	return c
}

// Dense adds a fully materialized level with the given extent per axis.
func (s *SNode) Dense(extents ...int) *SNode {
	return s.child(SNodeDense, extents)
}

// Pointer adds a level whose cells are allocated on demand.
func (s *SNode) Pointer(extents ...int) *SNode {
	return s.child(SNodePointer, extents)
}

// Bitmasked adds a level whose cells carry an activation mask.
func (s *SNode) Bitmasked(extents ...int) *SNode {
	return s.child(SNodeBitmasked, extents)
}

// Dynamic adds a variable-length level along axis 0 bounded by length.
func (s *SNode) Dynamic(length int) *SNode {
	return s.child(SNodeDynamic, []int{length})
}

// Place adds a scalar leaf.
func (s *SNode) Place(name string, dtype DataType) *SNode {
	return s.PlaceVector(name, dtype, 1)
}

// PlaceVector adds a leaf whose elements hold channels interleaved components.
func (s *SNode) PlaceVector(name string, dtype DataType, channels int) *SNode {
	core.Assert(dtype.Size() > 0, "place %q with unknown dtype %s", name, dtype)
	core.Assert(channels > 0, "place %q needs at least one channel", name)
	p := s.child(SNodePlace, nil)
	p.Name = name
	p.DType = dtype
	p.Channels = channels
	return p
}

// TreeID returns the ID assigned when the hierarchy was materialized, or NoTree.
func (s *SNode) TreeID() int {
	return s.root().treeID
}

// IsPathAllDense reports whether every ancestor of s is a root or dense node.
func (s *SNode) IsPathAllDense() bool {
	for n := s.Parent; n != nil; n = n.Parent {
		if n.Type != SNodeDense && n.Type != SNodeRoot {
			return false
		}
	}
	return true
}

// ShapeAlongAxis is the total index range along axis accumulated over s and
// its ancestors.
func (s *SNode) ShapeAlongAxis(axis int) int {
	shape := 1
	for n := s; n != nil; n = n.Parent {
		if axis < len(n.Extents) {
			shape *= n.Extents[axis]
		}
	}
	return shape
}

// Shape returns ShapeAlongAxis for every axis any ancestor splits.
func (s *SNode) Shape() []int {
	axes := 0
	for n := s; n != nil; n = n.Parent {
		axes = max(axes, len(n.Extents))
	}
	shape := make([]int, axes)
	for i := range shape {
		shape[i] = s.ShapeAlongAxis(i)
	}
	return shape
}

func (s *SNode) NumElements() int {
	return metadata.Product(s.Shape()...)
}

// ElementSize is the byte size of one element of a place.
func (s *SNode) ElementSize() int {
	return s.DType.Size() * s.Channels
}

func (s *SNode) String() string {
	if s.Type == SNodePlace {
		return fmt.Sprintf("place %q (%s x%d)", s.Name, s.DType, s.Channels)
	}
	return fmt.Sprintf("%s#%d%v", s.Type, s.ID, s.Extents)
}

func (s *SNode) walk(fn func(*SNode)) {
	fn(s)
	for _, c := range s.Children {
		c.walk(fn)
	}
}
