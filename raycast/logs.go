package raycast

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/quadtree"
)

// CasterWithLogs logs every cast at debug level and every failed cast as an
// error.
func CasterWithLogs(c Caster) Caster {
	return &casterWithLogs{Caster: c}
}

type casterWithLogs struct {
	Caster
}

func (c *casterWithLogs) Cast(ctx context.Context, index quadtree.SpatialIndex, ray geom.Ray) (Result, error) {
	start := time.Now()

	res, err := c.Caster.Cast(ctx, index, ray)
	entry := logs.WithTag("origin", ray.Origin.String()).
		WithTag("direction", ray.Direction.String()).
		WithTag("duration", time.Since(start))

	if err != nil {
		entry.Error(err)
		return res, err
	}

	entry.
		WithTag("kind", res.Kind).
		WithTag("reason", res.Reason).
		WithTag("steps", res.Steps).
		Debug("ray cast")
	return res, nil
}
