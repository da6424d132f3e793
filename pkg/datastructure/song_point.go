package datastructure

import (
	"fmt"
)

// MergedID id of every point created by a merge. only leaves carry a song id.
const MergedID = -1

type songNode struct {
	id  int
	pos Point

	parent int32
	left   int32
	right  int32

	selected bool
	removed  bool
	hidden   bool

	// actor render layer handle, never read by the engine.
	actor any
}

// SongForest owns every point of a level ladder. points address each other by index, a merge
// appends the new parent to the same forest.
type SongForest struct {
	nodes []songNode
}

func NewSongForest() *SongForest {
	return &SongForest{
		nodes: make([]songNode, 0),
	}
}

func NewSongForestWithCap(capacity int) *SongForest {
	return &SongForest{
		nodes: make([]songNode, 0, capacity),
	}
}

// NewPoint creates a leaf point.
func (f *SongForest) NewPoint(x, y float64, id int) SongPoint {
	return f.add(songNode{
		id:     id,
		pos:    Point{X: x, Y: y},
		parent: nilNode,
		left:   nilNode,
		right:  nilNode,
	})
}

// Len number of points (leaves and merged points) in the forest.
func (f *SongForest) Len() int {
	return len(f.nodes)
}

func (f *SongForest) add(n songNode) SongPoint {
	idx := int32(len(f.nodes))
	f.nodes = append(f.nodes, n)
	return SongPoint{forest: f, idx: idx}
}

func (f *SongForest) point(idx int32) SongPoint {
	if idx == nilNode {
		return SongPoint{}
	}
	return SongPoint{forest: f, idx: idx}
}

// SongPoint is a song (leaf) or a cluster of songs (merged point) in a SongForest.
// the zero value is the nil point.
type SongPoint struct {
	forest *SongForest
	idx    int32
}

func (p SongPoint) node() *songNode {
	return &p.forest.nodes[p.idx]
}

func (p SongPoint) IsNil() bool {
	return p.forest == nil
}

func (p SongPoint) ID() int {
	return p.node().id
}

func (p SongPoint) Position() Point {
	return p.node().pos
}

func (p SongPoint) X() float64 {
	return p.node().pos.X
}

func (p SongPoint) Y() float64 {
	return p.node().pos.Y
}

func (p SongPoint) Parent() SongPoint {
	return p.forest.point(p.node().parent)
}

// LeftChild the receiver of the merge that created p. nil point for leaves.
func (p SongPoint) LeftChild() SongPoint {
	return p.forest.point(p.node().left)
}

// RightChild the merge partner. nil point for leaves and lone merges.
func (p SongPoint) RightChild() SongPoint {
	return p.forest.point(p.node().right)
}

func (p SongPoint) IsLeaf() bool {
	n := p.node()
	return n.left == nilNode && n.right == nilNode
}

func (p SongPoint) IsSelected() bool {
	return p.node().selected
}

func (p SongPoint) IsRemoved() bool {
	return p.node().removed
}

func (p SongPoint) IsHidden() bool {
	return p.node().hidden
}

func (p SongPoint) Actor() any {
	return p.node().actor
}

func (p SongPoint) SetActor(actor any) {
	p.node().actor = actor
}

func (p SongPoint) String() string {
	if p.IsNil() {
		return "SongPoint<nil>"
	}
	return fmt.Sprintf("SongPoint{id: %d, pos: %s}", p.ID(), p.Position())
}

// Merge creates the parent of p and other. the parent keeps the position of p.
// other may be nil, the parent then has p as its only child.
func (p SongPoint) Merge(other *SongPoint) SongPoint {
	f := p.forest
	right := nilNode
	if other != nil && !other.IsNil() {
		if other.forest != f {
			panic("datastructure: merging points of different forests")
		}
		right = other.idx
	}

	parent := f.add(songNode{
		id:     MergedID,
		pos:    p.node().pos,
		parent: nilNode,
		left:   p.idx,
		right:  right,
	})

	f.nodes[p.idx].parent = parent.idx
	if right != nilNode {
		f.nodes[right].parent = parent.idx
	}
	return parent
}

// Unmerge undoes the Merge that created p: its children lose their parent and p is dropped
// from the forest when it is the last point added. p must not be used afterwards.
func (p SongPoint) Unmerge() {
	f := p.forest
	n := f.nodes[p.idx]
	if n.left != nilNode && f.nodes[n.left].parent == p.idx {
		f.nodes[n.left].parent = nilNode
	}
	if n.right != nilNode && f.nodes[n.right].parent == p.idx {
		f.nodes[n.right].parent = nilNode
	}
	if int(p.idx) == len(f.nodes)-1 {
		f.nodes = f.nodes[:p.idx]
	}
}

// children appends the existing children of idx to stack, right child first so that a
// stack walk visits the left subtree first.
func (f *SongForest) children(idx int32, stack []int32) []int32 {
	n := &f.nodes[idx]
	if n.right != nilNode {
		stack = append(stack, n.right)
	}
	if n.left != nilNode {
		stack = append(stack, n.left)
	}
	return stack
}

// walk visits p and its subtree in preorder. descend decides whether the children of a visited point are pushed.
func (p SongPoint) walk(visit func(n *songNode) (descend bool)) {
	f := p.forest
	stack := []int32{p.idx}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visit(&f.nodes[cur]) {
			stack = f.children(cur, stack)
		}
	}
}

/*
MarkAsSelected selects p and every point below it. afterwards the ancestors of p are
selected as long as all of their children are selected, stopping at the first ancestor
that is already selected or still has an unselected child.
*/
func (p SongPoint) MarkAsSelected() {
	p.walk(func(n *songNode) bool {
		n.selected = true
		return true
	})

	f := p.forest
	for cur := f.nodes[p.idx].parent; cur != nilNode; cur = f.nodes[cur].parent {
		n := &f.nodes[cur]
		if n.selected {
			return
		}
		if n.left != nilNode && !f.nodes[n.left].selected {
			return
		}
		if n.right != nilNode && !f.nodes[n.right].selected {
			return
		}
		n.selected = true
	}
}

// ClearSelection unselects p and every point below it. ancestors keep their flag.
func (p SongPoint) ClearSelection() {
	p.walk(func(n *songNode) bool {
		n.selected = false
		return true
	})
}

// MarkRemovedIfSelected flags every selected point of the subtree as removed.
func (p SongPoint) MarkRemovedIfSelected() {
	p.walk(func(n *songNode) bool {
		if n.selected {
			n.removed = true
		}
		return true
	})
}

func (p SongPoint) UnmarkRemoved() {
	p.walk(func(n *songNode) bool {
		n.removed = false
		return true
	})
}

// GetAllIDs returns the song ids of the non removed leaves below p, left subtree first.
// removed subtrees are skipped entirely.
func (p SongPoint) GetAllIDs() []int {
	ids := make([]int, 0)
	if p.node().removed {
		return ids
	}
	p.walk(func(n *songNode) bool {
		if n.removed {
			return false
		}
		if n.left == nilNode && n.right == nilNode {
			ids = append(ids, n.id)
		}
		return true
	})
	return ids
}

func (p SongPoint) MarkHidden() {
	p.walk(func(n *songNode) bool {
		n.hidden = true
		return true
	})
}

func (p SongPoint) MarkShown() {
	p.walk(func(n *songNode) bool {
		n.hidden = false
		return true
	})
}

// RevealAncestors clears the hidden flag on every ancestor of p.
func (p SongPoint) RevealAncestors() {
	f := p.forest
	for cur := f.nodes[p.idx].parent; cur != nilNode; cur = f.nodes[cur].parent {
		f.nodes[cur].hidden = false
	}
}

// IsVisible a leaf is visible if it is neither hidden nor removed, a merged point is
// visible if any leaf below it is.
func (p SongPoint) IsVisible() bool {
	visible := false
	p.walk(func(n *songNode) bool {
		if visible {
			return false
		}
		if n.left == nilNode && n.right == nilNode {
			visible = !n.hidden && !n.removed
			return false
		}
		return true
	})
	return visible
}

// LeafCount number of songs below p (1 for a leaf).
func (p SongPoint) LeafCount() int {
	count := 0
	p.walk(func(n *songNode) bool {
		if n.left == nilNode && n.right == nilNode {
			count++
		}
		return true
	})
	return count
}

// Leaves returns the leaf points below p, left subtree first.
func (p SongPoint) Leaves() []SongPoint {
	leaves := make([]SongPoint, 0)
	f := p.forest
	stack := []int32{p.idx}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &f.nodes[cur]
		if n.left == nilNode && n.right == nilNode {
			leaves = append(leaves, f.point(cur))
			continue
		}
		stack = f.children(cur, stack)
	}
	return leaves
}
