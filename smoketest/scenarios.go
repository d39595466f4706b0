package smoketest

import (
	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/quadtree"
	"github.com/aukilabs/quadcast/raycast"
)

// Scenario is a ray cast through a small hand-drawn tree with a known
// outcome.
type Scenario struct {
	Name      string
	Size      int
	Rows      []string
	Origin    geom.Vec2
	Direction geom.Vec2

	Kind   raycast.Kind
	Reason string

	// Checked for collisions only.
	Point  geom.Vec2
	Normal geom.Vec2
}

func (s Scenario) Build() (*quadtree.Tree, error) {
	return quadtree.Build(s.Size, quadtree.OccupancyFromRows(s.Rows...))
}

// Check returns whether res is the expected outcome of the scenario.
func (s Scenario) Check(res raycast.Result) bool {
	if res.Kind != s.Kind {
		return false
	}

	if s.Reason != "" && res.Reason != s.Reason {
		return false
	}

	if s.Kind == raycast.Collision {
		return res.Point.Equal(s.Point) && res.Normal.Equal(s.Normal)
	}
	return true
}

var (
	emptyRows = []string{
		"....",
		"....",
		"....",
		"....",
	}

	solidRows = []string{
		"####",
		"####",
		"####",
		"####",
	}
)

// Scenarios returns the reference scenarios run by the smoke test.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:      "empty_domain_crossed",
			Size:      2,
			Rows:      emptyRows,
			Origin:    geom.NewVec2(-1, 2),
			Direction: geom.NewVec2(1, 0),
			Kind:      raycast.NoCollision,
			Reason:    raycast.ReasonExitedDomain,
		},
		{
			Name:      "domain_missed",
			Size:      2,
			Rows:      emptyRows,
			Origin:    geom.NewVec2(-5, -5),
			Direction: geom.NewVec2(-1, -1),
			Kind:      raycast.NoCollision,
			Reason:    raycast.ReasonMissedDomain,
		},
		{
			Name: "adjacent_solid_unit_leaf",
			Size: 2,
			Rows: []string{
				"....",
				"....",
				"..#.",
				"....",
			},
			Origin:    geom.NewVec2(1.5, 1.5),
			Direction: geom.NewVec2(1, 0),
			Kind:      raycast.Collision,
			Point:     geom.NewVec2(2, 1.5),
			Normal:    geom.NewVec2(-1, 0),
		},
		{
			Name: "coarse_to_fine",
			Size: 3,
			Rows: []string{
				"........",
				"........",
				"........",
				"........",
				"........",
				"........",
				"...#....",
				"........",
			},
			Origin:    geom.NewVec2(3.5, 7.5),
			Direction: geom.NewVec2(0, -1),
			Kind:      raycast.Collision,
			Point:     geom.NewVec2(3.5, 2),
			Normal:    geom.NewVec2(0, 1),
		},
		{
			Name:      "entry_into_solid",
			Size:      2,
			Rows:      solidRows,
			Origin:    geom.NewVec2(-1, 2),
			Direction: geom.NewVec2(1, 0),
			Kind:      raycast.Collision,
			Point:     geom.NewVec2(0, 2),
			Normal:    geom.NewVec2(-1, 0),
		},
		{
			Name:      "embedded_origin",
			Size:      2,
			Rows:      solidRows,
			Origin:    geom.NewVec2(1, 1),
			Direction: geom.NewVec2(1, 0),
			Kind:      raycast.Collision,
			Reason:    raycast.ReasonEmbedded,
			Point:     geom.NewVec2(1, 1),
		},
		{
			Name:      "degenerate_direction",
			Size:      2,
			Rows:      solidRows,
			Origin:    geom.NewVec2(-1, 2),
			Direction: geom.NewVec2(0, 0),
			Kind:      raycast.NoCollision,
			Reason:    raycast.ReasonDegenerateDirection,
		},
	}
}
