package quadtree

import (
	"math/rand"
	"strings"
)

// RandomGenerator decides at random: a region splits with probability
// Subdivide, otherwise it becomes solid with probability Solid. Unit regions
// are empty unless UnitSolid is set. A RandomGenerator is not safe for
// concurrent use; two generators created with the same seed build the same
// tree.
type RandomGenerator struct {
	Subdivide float64
	Solid     float64
	UnitSolid float64

	rand *rand.Rand
}

// NewRandomGenerator returns a generator flipping fair coins for both the
// subdivision and the classification decisions.
func NewRandomGenerator(seed int64) *RandomGenerator {
	return &RandomGenerator{
		Subdivide: 0.5,
		Solid:     0.5,
		rand:      rand.New(rand.NewSource(seed)),
	}
}

func (g *RandomGenerator) Decide(region Region, size int) Decision {
	if size == 0 {
		if g.UnitSolid > 0 && g.rand.Float64() < g.UnitSolid {
			return DecideSolid
		}
		return DecideEmpty
	}

	if g.rand.Float64() < g.Subdivide {
		return DecideSubdivide
	}

	if g.rand.Float64() < g.Solid {
		return DecideSolid
	}
	return DecideEmpty
}

// OccupancyGenerator builds the coarsest tree matching a per unit cell
// predicate: a region becomes a leaf as soon as all its unit cells agree.
type OccupancyGenerator func(x, y int) bool

func (g OccupancyGenerator) Decide(region Region, size int) Decision {
	x0 := int(region.Origin.X)
	y0 := int(region.Origin.Y)
	side := int(region.Side)

	first := g(x0, y0)
	for y := y0; y < y0+side; y++ {
		for x := x0; x < x0+side; x++ {
			if g(x, y) != first {
				return DecideSubdivide
			}
		}
	}

	if first {
		return DecideSolid
	}
	return DecideEmpty
}

// OccupancyFromRows returns an occupancy generator drawn as text: '#' is a
// solid unit cell, anything else is empty. The last row is y = 0, so the
// picture reads the same way as the world space.
func OccupancyFromRows(rows ...string) OccupancyGenerator {
	grid := make([]string, len(rows))
	for i, r := range rows {
		grid[len(rows)-1-i] = strings.TrimSpace(r)
	}

	return func(x, y int) bool {
		if y < 0 || y >= len(grid) || x < 0 || x >= len(grid[y]) {
			return false
		}
		return grid[y][x] == '#'
	}
}
