package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	generatorLabel = "generator"
)

var (
	treeCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tree_count",
		Help: "The number of published trees.",
	}, []string{generatorLabel})

	treeCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tree_count_total",
		Help: "The total number of published trees.",
	}, []string{generatorLabel})

	treeBuildLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "tree_build_latency",
		Help: "The time to build a tree.",
	}, []string{generatorLabel})
)

func instrumentIncreaseTreeGauge(generator string) {
	treeCount.
		With(prometheus.Labels{generatorLabel: generator}).
		Inc()
}

func instrumentDecreaseTreeGauge(generator string) {
	treeCount.
		With(prometheus.Labels{generatorLabel: generator}).
		Dec()
}

func instrumentCountTree(generator string) {
	treeCountTotal.
		With(prometheus.Labels{generatorLabel: generator}).
		Inc()
}

func instrumentBuildLatency(generator string, d time.Duration) {
	treeBuildLatency.
		With(prometheus.Labels{generatorLabel: generator}).
		Observe(d.Seconds())
}
