package quadtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcast/geom"
)

const (
	// The number of children of an internal node.
	NumChildren = 4

	// The largest supported root size. Side lengths up to 2^30 stay exact in
	// both int and float64.
	MaxSize = 30
)

// Classification is the occupancy of a leaf.
type Classification uint8

const (
	Empty Classification = iota
	Solid
)

func (c Classification) String() string {
	if c == Solid {
		return "solid"
	}
	return "empty"
}

// Node is one square region of a tree. A node is either a leaf carrying a
// classification or an internal node with exactly four children of size-1.
// Nodes are immutable once their tree is built.
type Node struct {
	size           int
	origin         geom.Vec2
	children       []*Node
	classification Classification
}

// NewLeaf returns a leaf of the given size. Used to assemble fixtures; the
// leaf gets its world position when the fixture is turned into a Tree.
func NewLeaf(size int, c Classification) (*Node, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}

	return &Node{
		size:           size,
		classification: c,
	}, nil
}

// NewInternal returns an internal node of the given size holding the given
// children in ChildIndex order.
func NewInternal(size int, children ...*Node) (*Node, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}

	if len(children) != NumChildren {
		return nil, errors.New("an internal node must have exactly four children").
			WithType(ErrTypeInvalidChildCount).
			WithTag("size", size).
			WithTag("child_count", len(children))
	}

	for i, c := range children {
		if c == nil {
			return nil, errors.New("nil child").
				WithType(ErrTypeInvalidChildCount).
				WithTag("size", size).
				WithTag("child_index", i)
		}

		if c.size != size-1 {
			return nil, errors.New("child size must be one less than its parent").
				WithType(ErrTypeInvalidSize).
				WithTag("size", size).
				WithTag("child_index", i).
				WithTag("child_size", c.size)
		}
	}

	return &Node{
		size:     size,
		children: append([]*Node(nil), children...),
	}, nil
}

func checkSize(size int) error {
	if size < 0 || size > MaxSize {
		return errors.New("invalid node size").
			WithType(ErrTypeInvalidSize).
			WithTag("size", size).
			WithTag("max_size", MaxSize)
	}
	return nil
}

func (n *Node) Size() int {
	return n.size
}

// SideLength returns 2^size.
func (n *Node) SideLength() int {
	return 1 << n.size
}

func (n *Node) IsLeaf() bool {
	return n.children == nil
}

// Children returns the four children in ChildIndex order, or nil for a leaf.
// The returned slice is a copy.
func (n *Node) Children() []*Node {
	if n.children == nil {
		return nil
	}
	return append([]*Node(nil), n.children...)
}

// Child returns the child at the given index, or nil for a leaf.
func (n *Node) Child(index int) *Node {
	if n.children == nil || index < 0 || index >= len(n.children) {
		return nil
	}
	return n.children[index]
}

// Classification is meaningful for leaves only; internal nodes report Empty.
func (n *Node) Classification() Classification {
	return n.classification
}

func (n *Node) IsSolid() bool {
	return n.IsLeaf() && n.classification == Solid
}

// Region returns the world-space square covered by the node.
func (n *Node) Region() Region {
	return Region{
		Origin: n.origin,
		Side:   float64(n.SideLength()),
	}
}

// Locate returns the leaf containing (x, y), expressed in the node's local
// frame where the node covers [0, side) on both axes.
func (n *Node) Locate(x, y float64) (*Node, error) {
	side := float64(n.SideLength())

	if math.IsNaN(x) || math.IsNaN(y) || x < 0 || y < 0 || x >= side || y >= side {
		return nil, errors.New("point out of bounds").
			WithType(ErrTypeOutOfBounds).
			WithTag("x", x).
			WithTag("y", y).
			WithTag("side", side)
	}

	return n.locate(x, y), nil
}

func (n *Node) locate(x, y float64) *Node {
	if n.IsLeaf() {
		return n
	}

	half := float64(int(1) << (n.size - 1))
	qx := quadrantOf(x, half)
	qy := quadrantOf(y, half)

	child := n.children[ChildIndex(qx, qy)]
	return child.locate(x-float64(qx)*half, y-float64(qy)*half)
}

func quadrantOf(v, half float64) int {
	if q := int(math.Floor(v / half)); q > 0 {
		return 1
	}
	return 0
}

// Walk visits the node and its descendants depth first in ChildIndex order.
// Returning false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}

	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// clone copies the subtree rooted at n, placing it at origin.
func (n *Node) clone(origin geom.Vec2) *Node {
	c := &Node{
		size:           n.size,
		origin:         origin,
		classification: n.classification,
	}

	if n.children != nil {
		c.children = make([]*Node, len(n.children))
		region := c.Region()
		for i, child := range n.children {
			c.children[i] = child.clone(region.Quadrant(i).Origin)
		}
	}

	return c
}
