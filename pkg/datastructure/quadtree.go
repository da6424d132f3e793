package datastructure

import (
	"github.com/go-logr/logr"
)

// Storable is anything the quadtree can index and the clustering passes can merge.
// Merge returns a new parent object for the receiver and other. other == nil means
// the receiver found no partner, the result then has a single child.
type Storable[T any] interface {
	comparable
	Position() Point
	Merge(other *T) T
}

const (
	// number of objects a node holds before it is subdivided
	maxObjects = 20
	// nodes at this depth never subdivide
	maxLevel = 20

	nilNode int32 = -1

	// number of removed item slots before the item arena is compacted
	compactThreshold = 64
)

// child quadrant offsets inside a children block. the order is also the nearest neighbour traversal order.
const (
	topLeft = iota
	topRight
	bottomLeft
	bottomRight
)

type quadNode struct {
	rect   Rectangle
	level  int
	parent int32
	// children index of the top-left child. the four children of a node are allocated as one
	// contiguous block (top-left, top-right, bottom-left, bottom-right). nilNode for leaf nodes.
	children int32
	// objects indices into QuadTree.items
	objects []int32
	// count number of items in this subtree
	count int
}

func (n *quadNode) isLeaf() bool {
	return n.children == nilNode
}

// quadItem wraps a stored object with its owner node.
type quadItem[T any] struct {
	value T
	owner int32
	// slot position of this item in owner.objects
	slot  int32
	alive bool
}

/*
QuadTree is a point quadtree over a fixed bounding rectangle.

nodes and items live in two arenas addressed by int32 handles. a node knows its
parent (for the upward cleanup after a removal) and each item knows its owner node,
so Remove never searches from the root.
*/
type QuadTree[T Storable[T]] struct {
	nodes      []quadNode
	freeBlocks []int32

	items  []quadItem[T]
	lookup map[T]int32
	dead   int

	outOfBounds int
	log         logr.Logger
}

func NewQuadTree[T Storable[T]](rect Rectangle, log logr.Logger) *QuadTree[T] {
	qt := &QuadTree[T]{
		nodes:  make([]quadNode, 1, 64),
		items:  make([]quadItem[T], 0, 64),
		lookup: make(map[T]int32),
		log:    log,
	}
	qt.nodes[0] = quadNode{
		rect:     rect,
		parent:   nilNode,
		children: nilNode,
	}
	return qt
}

func NewQuadTreeFromDimensions[T Storable[T]](x, y, width, height float64, log logr.Logger) *QuadTree[T] {
	return NewQuadTree[T](NewRectangle(x, y, width, height), log)
}

func (qt *QuadTree[T]) Rectangle() Rectangle {
	return qt.nodes[0].rect
}

func (qt *QuadTree[T]) Count() int {
	return len(qt.lookup)
}

// OutOfBounds number of stored items that were added outside the root rectangle.
func (qt *QuadTree[T]) OutOfBounds() int {
	return qt.outOfBounds
}

func (qt *QuadTree[T]) Logger() logr.Logger {
	return qt.log
}

func (qt *QuadTree[T]) Contains(item T) bool {
	_, ok := qt.lookup[item]
	return ok
}

// All returns every stored item in insertion order.
func (qt *QuadTree[T]) All() []T {
	result := make([]T, 0, len(qt.lookup))
	for i := range qt.items {
		if qt.items[i].alive {
			result = append(result, qt.items[i].value)
		}
	}
	return result
}

// Add inserts item. items outside the root rectangle are still stored at the root.
// adding an item that is already stored is a no-op.
func (qt *QuadTree[T]) Add(item T) {
	if _, ok := qt.lookup[item]; ok {
		return
	}

	idx := int32(len(qt.items))
	qt.items = append(qt.items, quadItem[T]{value: item, owner: nilNode, alive: true})
	qt.lookup[item] = idx

	pos := item.Position()
	if !qt.nodes[0].rect.Contains(pos) {
		qt.log.Info("added item is outside tree boundaries", "x", pos.X, "y", pos.Y,
			"bounds", qt.nodes[0].rect.String())
		qt.outOfBounds++
		qt.nodes[0].count++
		qt.attach(0, idx)
		return
	}

	qt.insert(0, idx)
}

// Remove detaches item from its owner node and collapses emptied quads upwards.
func (qt *QuadTree[T]) Remove(item T) bool {
	idx, ok := qt.lookup[item]
	if !ok {
		return false
	}

	it := &qt.items[idx]
	owner := it.owner
	qt.detach(owner, it.slot)

	if !qt.nodes[0].rect.Contains(it.value.Position()) && owner == 0 {
		qt.outOfBounds--
	}

	it.alive = false
	it.owner = nilNode
	var zero T
	it.value = zero
	delete(qt.lookup, item)
	qt.dead++

	for n := owner; n != nilNode; n = qt.nodes[n].parent {
		qt.nodes[n].count--
	}
	qt.cleanUpwards(owner)

	if qt.dead > compactThreshold && qt.dead > len(qt.items)/2 {
		qt.compact()
	}
	return true
}

// Clear removes every item and every quad below the root.
func (qt *QuadTree[T]) Clear() {
	root := qt.nodes[0]
	root.children = nilNode
	root.objects = nil
	root.count = 0
	qt.nodes = qt.nodes[:1]
	qt.nodes[0] = root
	qt.freeBlocks = qt.freeBlocks[:0]
	qt.items = qt.items[:0]
	qt.lookup = make(map[T]int32)
	qt.dead = 0
	qt.outOfBounds = 0
}

// Clone returns a new tree with the same rectangle holding the same items. the items are not copied.
func (qt *QuadTree[T]) Clone() *QuadTree[T] {
	clone := NewQuadTree[T](qt.Rectangle(), qt.log)
	for i := range qt.items {
		if qt.items[i].alive {
			clone.Add(qt.items[i].value)
		}
	}
	return clone
}

func (qt *QuadTree[T]) insert(n int32, idx int32) {
	pos := qt.items[idx].value.Position()
	for {
		qt.nodes[n].count++
		node := &qt.nodes[n]
		if (node.isLeaf() && len(node.objects) < maxObjects) || node.level >= maxLevel {
			qt.attach(n, idx)
			return
		}

		if node.isLeaf() {
			qt.subdivide(n)
		}

		dest := qt.destination(n, pos)
		if dest == n {
			// only extended shapes can straddle the children.
			qt.attach(n, idx)
			return
		}
		n = dest
	}
}

func (qt *QuadTree[T]) attach(n int32, idx int32) {
	node := &qt.nodes[n]
	qt.items[idx].owner = n
	qt.items[idx].slot = int32(len(node.objects))
	node.objects = append(node.objects, idx)
}

// detach swap-removes objects[slot] from node n. counts are left untouched.
func (qt *QuadTree[T]) detach(n int32, slot int32) {
	node := &qt.nodes[n]
	last := int32(len(node.objects) - 1)
	if slot != last {
		moved := node.objects[last]
		node.objects[slot] = moved
		qt.items[moved].slot = slot
	}
	node.objects = node.objects[:last]
}

func (qt *QuadTree[T]) allocChildren() int32 {
	if len(qt.freeBlocks) > 0 {
		block := qt.freeBlocks[len(qt.freeBlocks)-1]
		qt.freeBlocks = qt.freeBlocks[:len(qt.freeBlocks)-1]
		return block
	}
	block := int32(len(qt.nodes))
	qt.nodes = append(qt.nodes, quadNode{}, quadNode{}, quadNode{}, quadNode{})
	return block
}

func (qt *QuadTree[T]) subdivide(n int32) {
	block := qt.allocChildren()

	rect := qt.nodes[n].rect
	level := qt.nodes[n].level + 1

	xHalf := rect.X() + rect.Width()/2
	yHalf := rect.Y() + rect.Height()/2
	x, y := rect.X(), rect.Y()
	xRight, yTop := rect.TopRight.X, rect.TopRight.Y

	quads := [4]Rectangle{
		topLeft:     NewRectangleFromCorners(Point{x, yHalf}, Point{xHalf, yTop}),
		topRight:    NewRectangleFromCorners(Point{xHalf, yHalf}, Point{xRight, yTop}),
		bottomLeft:  NewRectangleFromCorners(Point{x, y}, Point{xHalf, yHalf}),
		bottomRight: NewRectangleFromCorners(Point{xHalf, y}, Point{xRight, yHalf}),
	}
	for i, q := range quads {
		qt.nodes[block+int32(i)] = quadNode{
			rect:     q,
			level:    level,
			parent:   n,
			children: nilNode,
		}
	}
	qt.nodes[n].children = block

	// redistribute the objects of n into the new quads
	old := qt.nodes[n].objects
	qt.nodes[n].objects = make([]int32, 0, len(old))
	for _, idx := range old {
		dest := qt.destination(n, qt.items[idx].value.Position())
		if dest == n {
			qt.attach(n, idx)
			continue
		}
		qt.insert(dest, idx)
	}
}

// destination returns the first child of n whose rectangle contains p, or n itself.
func (qt *QuadTree[T]) destination(n int32, p Point) int32 {
	block := qt.nodes[n].children
	for q := int32(topLeft); q <= bottomRight; q++ {
		if qt.nodes[block+q].rect.Contains(p) {
			return block + q
		}
	}
	return n
}

// cleanUpwards collapses the children of every node on the path to the root whose subtree became empty.
// an empty subtree below n has already been collapsed, so the children of an empty node are empty leaves.
func (qt *QuadTree[T]) cleanUpwards(n int32) {
	for n != nilNode {
		node := &qt.nodes[n]
		if node.count > 0 {
			return
		}
		if !node.isLeaf() {
			qt.freeBlocks = append(qt.freeBlocks, node.children)
			node.children = nilNode
		}
		n = node.parent
	}
}

// compact drops removed items from the item arena, keeping insertion order.
func (qt *QuadTree[T]) compact() {
	live := make([]quadItem[T], 0, len(qt.lookup))
	for i := range qt.items {
		it := qt.items[i]
		if !it.alive {
			continue
		}
		newIdx := int32(len(live))
		qt.nodes[it.owner].objects[it.slot] = newIdx
		qt.lookup[it.value] = newIdx
		live = append(live, it)
	}
	qt.items = live
	qt.dead = 0
}

func (qt *QuadTree[T]) collectAll(n int32, results []T) []T {
	stack := []int32{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &qt.nodes[cur]
		for _, idx := range node.objects {
			results = append(results, qt.items[idx].value)
		}
		if !node.isLeaf() {
			for q := int32(bottomRight); q >= topLeft; q-- {
				stack = append(stack, node.children+q)
			}
		}
	}
	return results
}

// GetObjects returns all items inside rect. quads completely covered by rect are copied
// without testing each item, disjoint quads are pruned.
func (qt *QuadTree[T]) GetObjects(rect Rectangle) []T {
	results := make([]T, 0)
	return qt.getObjectsRect(0, rect, results)
}

func (qt *QuadTree[T]) getObjectsRect(n int32, rect Rectangle, results []T) []T {
	node := &qt.nodes[n]
	if rect.ContainsRect(node.rect) && (n != 0 || qt.outOfBounds == 0) {
		return qt.collectAll(n, results)
	}
	if !rect.Intersects(node.rect) && n != 0 {
		return results
	}

	for _, idx := range node.objects {
		if rect.Contains(qt.items[idx].value.Position()) {
			results = append(results, qt.items[idx].value)
		}
	}
	if !node.isLeaf() {
		block := node.children
		for q := int32(topLeft); q <= bottomRight; q++ {
			results = qt.getObjectsRect(block+q, rect, results)
		}
	}
	return results
}

// GetObjectsInCircle returns all items inside circle.
func (qt *QuadTree[T]) GetObjectsInCircle(circle Circle) []T {
	results := make([]T, 0)
	return qt.getObjectsCircle(0, circle, results)
}

func (qt *QuadTree[T]) getObjectsCircle(n int32, circle Circle, results []T) []T {
	node := &qt.nodes[n]
	if circle.ContainsRect(node.rect) && (n != 0 || qt.outOfBounds == 0) {
		return qt.collectAll(n, results)
	}
	if !node.rect.IntersectsCircle(circle) && n != 0 {
		return results
	}

	for _, idx := range node.objects {
		if circle.Contains(qt.items[idx].value.Position()) {
			results = append(results, qt.items[idx].value)
		}
	}
	if !node.isLeaf() {
		block := node.children
		for q := int32(topLeft); q <= bottomRight; q++ {
			results = qt.getObjectsCircle(block+q, circle, results)
		}
	}
	return results
}

// GetNearest returns the item closest to item (item itself excluded) that lies strictly
// closer than startRadius. ok is false if there is none.
func (qt *QuadTree[T]) GetNearest(item T, startRadius float64) (T, bool) {
	return qt.nearest(item.Position(), startRadius, &item)
}

// NearestTo returns the item closest to p that lies strictly closer than radius.
func (qt *QuadTree[T]) NearestTo(p Point, radius float64) (T, bool) {
	return qt.nearest(p, radius, nil)
}

/*
nearest is an iterative depth first search. a quad is visited only if it still intersects the
search circle, and the circle radius shrinks every time a closer item is found, which prunes the
remaining quads. children are visited top-left, top-right, bottom-left, bottom-right and the first
item found at the minimal distance wins, so the result is reproducible for a fixed insertion order.

the root is always visited because out of bounds items are stored there.
*/
func (qt *QuadTree[T]) nearest(center Point, radius float64, except *T) (T, bool) {
	var (
		result T
		found  bool
	)
	if len(qt.lookup) == 0 {
		return result, false
	}

	stack := make([]int32, 0, 4*maxLevel)
	stack = append(stack, 0)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &qt.nodes[cur]
		if cur != 0 && !node.rect.IntersectsCircle(Circle{Center: center, Radius: radius}) {
			continue
		}

		for _, idx := range node.objects {
			v := qt.items[idx].value
			if except != nil && v == *except {
				continue
			}
			d := v.Position().DistanceTo(center)
			if d < radius {
				radius = d
				result = v
				found = true
			}
		}

		if !node.isLeaf() {
			circle := Circle{Center: center, Radius: radius}
			for q := int32(bottomRight); q >= topLeft; q-- {
				child := node.children + q
				if qt.nodes[child].rect.IntersectsCircle(circle) {
					stack = append(stack, child)
				}
			}
		}
	}
	return result, found
}

// WindowDimensions returns the size of the smallest quad that holds fewer than numOfPoints
// items. it is used to choose a zoom level that shows about numOfPoints points on screen.
func (qt *QuadTree[T]) WindowDimensions(numOfPoints int) (float64, float64) {
	return qt.window(0, numOfPoints)
}

func (qt *QuadTree[T]) window(n int32, numOfPoints int) (float64, float64) {
	node := &qt.nodes[n]
	if node.count < numOfPoints || node.isLeaf() {
		return node.rect.Width(), node.rect.Height()
	}

	block := node.children
	width, height := qt.window(block+topLeft, numOfPoints)
	for q := int32(topRight); q <= bottomRight; q++ {
		w, h := qt.window(block+q, numOfPoints)
		width = min(width, w)
		height = min(height, h)
	}
	return width, height
}

// VisitNodes walks every quad depth first. fn gets the quad rectangle, its depth and the
// items stored directly in it. returning false stops the walk.
func (qt *QuadTree[T]) VisitNodes(fn func(rect Rectangle, level int, items []T) bool) {
	stack := []int32{0}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &qt.nodes[cur]

		items := make([]T, 0, len(node.objects))
		for _, idx := range node.objects {
			items = append(items, qt.items[idx].value)
		}
		if !fn(node.rect, node.level, items) {
			return
		}
		if !node.isLeaf() {
			for q := int32(bottomRight); q >= topLeft; q-- {
				stack = append(stack, node.children+q)
			}
		}
	}
}

// Depth returns the level of the deepest quad.
func (qt *QuadTree[T]) Depth() int {
	depth := 0
	qt.VisitNodes(func(_ Rectangle, level int, _ []T) bool {
		depth = max(depth, level)
		return true
	})
	return depth
}
