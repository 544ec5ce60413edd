package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome (complete, structuring_failed).",
		},
		[]string{"outcome"},
	)

	stageCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_stage_calls_total",
			Help: "Total number of collaborator calls by stage and status.",
		},
		[]string{"stage", "status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_stage_duration_seconds",
			Help:    "Duration of individual collaborator calls by stage.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"},
	)

	orphansReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_orphan_dirs_reclaimed_total",
		Help: "Total number of orphaned story directories removed by the reconciliation sweep.",
	})
)
