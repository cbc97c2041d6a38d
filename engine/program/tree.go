package program

import (
	"fmt"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

// Places are laid out on this boundary inside a tree's buffer.
const fieldAlignment uint64 = 256

type snodeTree struct {
	root  *SNode
	alloc metadata.DeviceAllocation
	size  uint64
	// byte offset of each place with linear storage, keyed by SNode ID
	offsets map[int]uint64
}

// MaterializeTree assigns root a tree ID and backs it with one buffer. Every
// place reachable through dense nodes only gets its own contiguous region;
// places under sparse levels get no linear storage.
func (p *Program) MaterializeTree(root *SNode) (int, error) {
	core.Assert(root.Type == SNodeRoot, "materialize expects a root, got %s", root)
	if root.treeID != NoTree {
		return NoTree, fmt.Errorf("snode tree already materialized as %d", root.treeID)
	}

	tree := &snodeTree{root: root, offsets: make(map[int]uint64)}
	root.walk(func(n *SNode) {
		if n.Type != SNodePlace || !n.IsPathAllDense() {
			return
		}
		offset := metadata.GetAligned(tree.size, fieldAlignment)
		tree.offsets[n.ID] = offset
		tree.size = offset + uint64(n.NumElements())*uint64(n.ElementSize())
	})

	if tree.size > 0 {
		alloc, err := p.allocate(tree.size)
		if err != nil {
			return NoTree, fmt.Errorf("snode tree of %d bytes: %w", tree.size, err)
		}
		tree.alloc = alloc
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextTree
	p.nextTree++
	p.trees[id] = tree
	root.treeID = id
	core.LogDebug("snode tree %d materialized: %d bytes, %d dense places", id, tree.size, len(tree.offsets))
	return id, nil
}

func (p *Program) tree(treeID int) *snodeTree {
	p.mu.Lock()
	defer p.mu.Unlock()
	tree, ok := p.trees[treeID]
	core.Assert(ok, "unknown snode tree %d", treeID)
	return tree
}

// SNodeTreeDevicePtr returns the start of the tree's backing buffer.
func (p *Program) SNodeTreeDevicePtr(treeID int) metadata.DevicePtr {
	return p.tree(treeID).alloc.At(0)
}

// FieldInTreeOffset returns the byte offset of place inside its tree's buffer.
func (p *Program) FieldInTreeOffset(treeID int, place *SNode) uint64 {
	offset, ok := p.tree(treeID).offsets[place.ID]
	core.Assert(ok, "%s has no linear storage in tree %d", place, treeID)
	return offset
}

func (p *Program) fieldPtr(place *SNode) (metadata.DevicePtr, uint64) {
	treeID := place.TreeID()
	core.Assert(treeID != NoTree, "%s belongs to a tree that is not materialized", place)
	ptr := p.SNodeTreeDevicePtr(treeID).At(p.FieldInTreeOffset(treeID, place))
	return ptr, uint64(place.NumElements()) * uint64(place.ElementSize())
}

// WriteField replaces the contents of a dense place. Elements are ordered with
// axis 0 fastest and components interleaved.
func (p *Program) WriteField(place *SNode, data []byte) error {
	ptr, size := p.fieldPtr(place)
	if uint64(len(data)) != size {
		return fmt.Errorf("%w: got %d bytes, %s holds %d", ErrSizeMismatch, len(data), place, size)
	}
	return p.writeAt(ptr, data)
}

func (p *Program) ReadField(place *SNode) ([]byte, error) {
	ptr, size := p.fieldPtr(place)
	return p.readAt(ptr, size)
}
