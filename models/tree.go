package models

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcast/quadtree"
)

// Generator names reported with published trees.
const (
	GeneratorRandom    = "random"
	GeneratorOccupancy = "occupancy"
)

// DefaultMaxTreeSize is the largest random tree a TreeStore builds when no
// limit is set. A fully subdivided tree of this size takes about 100 MB.
const DefaultMaxTreeSize = 10

// BuildParams describes a randomly generated tree.
type BuildParams struct {
	Size      int     `json:"size"`
	Seed      int64   `json:"seed"`
	Subdivide float64 `json:"subdivide"`
	Solid     float64 `json:"solid"`
	UnitSolid float64 `json:"unit_solid,omitempty"`
}

// DefaultBuildParams returns the fair coin parameters of the random
// generator.
func DefaultBuildParams(size int, seed int64) BuildParams {
	return BuildParams{
		Size:      size,
		Seed:      seed,
		Subdivide: 0.5,
		Solid:     0.5,
	}
}

func (p BuildParams) Validate() error {
	if p.Size < 0 || p.Size > quadtree.MaxSize {
		return errors.New("tree size out of range").
			WithType(ErrTypeInvalidParams).
			WithTag("size", p.Size).
			WithTag("max_size", quadtree.MaxSize)
	}

	for name, v := range map[string]float64{
		"subdivide":  p.Subdivide,
		"solid":      p.Solid,
		"unit_solid": p.UnitSolid,
	} {
		if !(v >= 0 && v <= 1) {
			return errors.New("probability must be within [0, 1]").
				WithType(ErrTypeInvalidParams).
				WithTag("param", name).
				WithTag("value", v)
		}
	}
	return nil
}

// CheckSizeLimit rejects sizes above maxTreeSize. Zero uses
// DefaultMaxTreeSize. Every size step quadruples the worst case memory of a
// random tree.
func (p BuildParams) CheckSizeLimit(maxTreeSize int) error {
	if maxTreeSize <= 0 {
		maxTreeSize = DefaultMaxTreeSize
	}

	if p.Size > maxTreeSize {
		return errors.New("tree size above limit").
			WithType(ErrTypeInvalidParams).
			WithTag("size", p.Size).
			WithTag("max_tree_size", maxTreeSize)
	}
	return nil
}

func (p BuildParams) Generator() *quadtree.RandomGenerator {
	g := quadtree.NewRandomGenerator(p.Seed)
	g.Subdivide = p.Subdivide
	g.Solid = p.Solid
	g.UnitSolid = p.UnitSolid
	return g
}

// Tree is a tree published in a TreeStore. It is immutable and can be cast
// against by any number of goroutines.
type Tree struct {
	*quadtree.Tree

	ID        string
	Number    uint32
	Generator string
	Params    BuildParams
	CreatedAt time.Time
}

// TreeSummary is the description of a published tree returned to clients.
type TreeSummary struct {
	ID        string         `json:"id"`
	Number    uint32         `json:"number"`
	Generator string         `json:"generator"`
	Params    *BuildParams   `json:"params,omitempty"`
	Stats     quadtree.Stats `json:"stats"`
	CreatedAt time.Time      `json:"created_at"`
}

func (t *Tree) Summary() TreeSummary {
	s := TreeSummary{
		ID:        t.ID,
		Number:    t.Number,
		Generator: t.Generator,
		Stats:     t.Stats(),
		CreatedAt: t.CreatedAt,
	}

	if t.Generator == GeneratorRandom {
		params := t.Params
		s.Params = &params
	}
	return s
}

// Leaf is a leaf of a published tree, as drawn by renderers.
type Leaf struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Side  float64 `json:"side"`
	Solid bool    `json:"solid"`
}

// Leaves returns the leaves of the tree in quadrant order. When solidOnly
// is set, empty leaves are skipped.
func (t *Tree) Leaves(solidOnly bool) []Leaf {
	var leaves []Leaf
	t.Tree.Leaves(func(n *quadtree.Node) bool {
		if solidOnly && !n.IsSolid() {
			return true
		}

		r := n.Region()
		leaves = append(leaves, Leaf{
			X:     r.Origin.X,
			Y:     r.Origin.Y,
			Side:  r.Side,
			Solid: n.IsSolid(),
		})
		return true
	})
	return leaves
}
