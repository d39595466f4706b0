package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcast/geom"
)

// Stats summarizes the shape of a tree.
type Stats struct {
	Size          int `json:"size"`
	Side          int `json:"side"`
	Depth         int `json:"depth"`
	InternalNodes int `json:"internal_nodes"`
	Leaves        int `json:"leaves"`
	SolidLeaves   int `json:"solid_leaves"`
	MinLeafSide   int `json:"min_leaf_side"`
	MaxLeafSide   int `json:"max_leaf_side"`
}

// Tree is a built quadtree over the domain [0, 2^size) x [0, 2^size). It is
// immutable and safe for concurrent readers once published.
type Tree struct {
	root  *Node
	stats Stats
}

// NewTree validates a hand-assembled root and returns a tree placed at the
// world origin. The tree owns a copy of the nodes, so fixtures may share
// subtrees.
func NewTree(root *Node) (*Tree, error) {
	if root == nil {
		return nil, errors.New("nil root").WithType(ErrTypeInvalidChildCount)
	}

	if err := Validate(root); err != nil {
		return nil, err
	}

	return newTree(root.clone(geom.Vec2{})), nil
}

func newTree(root *Node) *Tree {
	return &Tree{
		root:  root,
		stats: computeStats(root),
	}
}

func (t *Tree) Root() *Node {
	return t.root
}

func (t *Tree) Size() int {
	return t.root.size
}

func (t *Tree) Side() int {
	return t.root.SideLength()
}

func (t *Tree) MinLeafSide() int {
	return t.stats.MinLeafSide
}

func (t *Tree) Stats() Stats {
	return t.stats
}

func (t *Tree) Region() Region {
	return t.root.Region()
}

func (t *Tree) InRange(x, y float64) bool {
	side := float64(t.Side())
	return x >= 0 && y >= 0 && x < side && y < side
}

func (t *Tree) Locate(x, y float64) (*Node, error) {
	return t.root.Locate(x, y)
}

// StepSizeAt returns the side length of the leaf containing (x, y). Within
// that leaf the classification is constant, which makes it the largest stride
// a traversal can take before querying the tree again.
func (t *Tree) StepSizeAt(x, y float64) (int, error) {
	leaf, err := t.Locate(x, y)
	if err != nil {
		return 0, err
	}
	return leaf.SideLength(), nil
}

// Leaves calls fn for every leaf in ChildIndex order until fn returns false.
func (t *Tree) Leaves(fn func(*Node) bool) {
	t.root.Walk(func(n *Node) bool {
		if !n.IsLeaf() {
			return true
		}
		return fn(n)
	})
}

// Validate checks the structural invariants of the tree together with the
// tiling of every internal node's region by its children.
func (t *Tree) Validate() error {
	if err := Validate(t.root); err != nil {
		return err
	}

	var err error
	t.root.Walk(func(n *Node) bool {
		if n.IsLeaf() {
			return true
		}

		region := n.Region()
		for i, c := range n.children {
			if c.Region() != region.Quadrant(i) {
				err = errors.New("child region does not tile its parent").
					WithType(ErrTypeInvalidRegion).
					WithTag("parent_origin", region.Origin.String()).
					WithTag("child_index", i).
					WithTag("child_origin", c.origin.String())
				return false
			}
		}
		return true
	})
	return err
}

func computeStats(root *Node) Stats {
	stats := Stats{
		Size:        root.size,
		Side:        root.SideLength(),
		MinLeafSide: root.SideLength(),
	}

	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		if depth > stats.Depth {
			stats.Depth = depth
		}

		if !n.IsLeaf() {
			stats.InternalNodes++
			for _, c := range n.children {
				visit(c, depth+1)
			}
			return
		}

		stats.Leaves++
		if n.classification == Solid {
			stats.SolidLeaves++
		}

		side := n.SideLength()
		if side < stats.MinLeafSide {
			stats.MinLeafSide = side
		}
		if side > stats.MaxLeafSide {
			stats.MaxLeafSide = side
		}
	}
	visit(root, 0)

	return stats
}
