package raycast

import (
	"github.com/aukilabs/quadcast/geom"
)

// Kind is the outcome of a cast.
type Kind string

const (
	NoCollision Kind = "no_collision"
	Collision   Kind = "collision"

	// Inconclusive means the step budget ran out before the ray either hit a
	// solid leaf or left the domain. Callers must not read it as a miss.
	Inconclusive Kind = "inconclusive"
)

// Reasons reported alongside a result.
const (
	ReasonDegenerateDirection = "degenerate_direction"
	ReasonMissedDomain        = "missed_domain"
	ReasonExitedDomain        = "exited_domain"
	ReasonDesync              = "desync"
	ReasonSolidLeaf           = "solid_leaf"
	ReasonEmbedded            = "embedded"
	ReasonStepCap             = "step_cap"
)

// Result describes how a ray ended. Point, Cell and Normal are set for
// collisions only. Trace lists the positions the traversal went through, the
// starting position included.
type Result struct {
	Kind   Kind        `json:"kind"`
	Reason string      `json:"reason,omitempty"`
	Point  geom.Vec2   `json:"point"`
	Cell   geom.Vec2   `json:"cell"`
	// Unit vector facing the ray on the crossed boundary. It is zero for the
	// embedded reason, where no boundary was crossed.
	Normal geom.Vec2   `json:"normal"`
	Steps  int         `json:"steps"`
	Trace  []geom.Vec2 `json:"trace,omitempty"`
}

func (r Result) IsCollision() bool {
	return r.Kind == Collision
}
