package raycast

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/quadtree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindLabel    = "kind"
	reasonLabel  = "reason"
	errTypeLabel = "error_type"
)

var (
	castsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raycast_casts_total",
		Help: "The number of rays cast, by outcome.",
	}, []string{
		kindLabel,
		reasonLabel,
	})

	castErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raycast_cast_errors",
		Help: "The errors that occured while casting a ray.",
	}, []string{
		errTypeLabel,
	})

	castSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "raycast_cast_steps",
		Help:    "The number of boundary crossings of a cast.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	castLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "raycast_cast_latency",
		Help:    "The time to cast a ray.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12),
	})
)

// CasterWithMetrics records the outcome, step count and latency of every
// cast.
func CasterWithMetrics(c Caster) Caster {
	return &casterWithMetrics{Caster: c}
}

type casterWithMetrics struct {
	Caster
}

func (c *casterWithMetrics) Cast(ctx context.Context, index quadtree.SpatialIndex, ray geom.Ray) (Result, error) {
	start := time.Now()

	res, err := c.Caster.Cast(ctx, index, ray)
	if err != nil {
		castErrors.
			With(prometheus.Labels{
				errTypeLabel: errors.Type(err),
			}).
			Inc()
		return res, err
	}

	castLatency.Observe(time.Since(start).Seconds())
	castSteps.Observe(float64(res.Steps))
	castsTotal.
		With(prometheus.Labels{
			kindLabel:   string(res.Kind),
			reasonLabel: res.Reason,
		}).
		Inc()

	return res, nil
}
