package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcast/geom"
)

// Decision is what a generator decides for a candidate region.
type Decision int

const (
	DecideEmpty Decision = iota
	DecideSolid
	DecideSubdivide
)

func (d Decision) String() string {
	switch d {
	case DecideSolid:
		return "solid"
	case DecideSubdivide:
		return "subdivide"
	default:
		return "empty"
	}
}

// Generator is the construction policy of a tree. It is asked once per
// candidate region, top-down, whether to split the region into four quadrants
// or to turn it into a solid or empty leaf.
type Generator interface {
	Decide(region Region, size int) Decision
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(region Region, size int) Decision

func (f GeneratorFunc) Decide(region Region, size int) Decision {
	return f(region, size)
}

// Build constructs a tree of the given root size. Unit regions (size 0) cannot
// be split: a subdivide decision for them yields an empty leaf.
func Build(size int, generator Generator) (*Tree, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}

	if generator == nil {
		return nil, errors.New("a generator is required to build a tree").
			WithType(ErrTypeNilGenerator)
	}

	return newTree(build(size, geom.Vec2{}, generator)), nil
}

func build(size int, origin geom.Vec2, generator Generator) *Node {
	n := &Node{
		size:           size,
		origin:         origin,
		classification: Empty,
	}

	region := n.Region()

	switch generator.Decide(region, size) {
	case DecideSubdivide:
		if size == 0 {
			return n
		}

		n.children = make([]*Node, NumChildren)
		for i := range n.children {
			n.children[i] = build(size-1, region.Quadrant(i).Origin, generator)
		}

	case DecideSolid:
		n.classification = Solid
	}

	return n
}
