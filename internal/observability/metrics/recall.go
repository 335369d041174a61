package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

// RecallMetrics records pipeline stage timings and outcomes. It implements
// ports.RecallMetrics and is registered on the owning binary's registry.
type RecallMetrics struct {
	service string

	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	candidates    *prometheus.HistogramVec
	degradedTotal *prometheus.CounterVec
}

func NewRecallMetrics(service string, registerer prometheus.Registerer) *RecallMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "run",
			Name:      "total",
			Help:      "Finished recall runs by terminal state.",
		},
		[]string{"service", "state"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "run",
			Name:      "stage_duration_seconds",
			Help:      "Recall pipeline stage duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "stage"},
	)
	candidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "run",
			Name:      "channel_candidates",
			Help:      "Candidates produced per retrieval channel.",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 20, 25, 40},
		},
		[]string{"service", "channel"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "run",
			Name:      "degraded_total",
			Help:      "Stages that failed and fell back to a degraded result.",
		},
		[]string{"service", "stage"},
	)

	registerer.MustRegister(runsTotal, stageDuration, candidates, degradedTotal)

	return &RecallMetrics{
		service:       service,
		runsTotal:     runsTotal,
		stageDuration: stageDuration,
		candidates:    candidates,
		degradedTotal: degradedTotal,
	}
}

func (m *RecallMetrics) ObserveStage(stage string, duration time.Duration) {
	if duration < 0 {
		return
	}
	m.stageDuration.WithLabelValues(m.service, stage).Observe(duration.Seconds())
}

func (m *RecallMetrics) ObserveCandidates(channel domain.Channel, count int) {
	m.candidates.WithLabelValues(m.service, string(channel)).Observe(float64(count))
}

func (m *RecallMetrics) IncDegraded(stage string) {
	m.degradedTotal.WithLabelValues(m.service, stage).Inc()
}

func (m *RecallMetrics) IncRun(state domain.RunState) {
	m.runsTotal.WithLabelValues(m.service, string(state)).Inc()
}
