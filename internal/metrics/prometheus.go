package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Click metrics
	ClicksTotal         *prometheus.CounterVec
	ClickConflictsTotal prometheus.Counter
	ContentionExhausted prometheus.Counter
	RecordDuration      prometheus.Histogram

	// Scheduling metrics
	TicksTotal            prometheus.Counter
	SchedulesTotal        *prometheus.CounterVec
	ScheduleFailuresTotal *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ClicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wildbutton_clicks_total",
				Help: "Total number of recorded clicks",
			},
			[]string{"tenant_id", "first"},
		),

		ClickConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wildbutton_click_conflicts_total",
				Help: "Total number of conditional-write conflicts during click recording",
			},
		),

		ContentionExhausted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wildbutton_contention_exhausted_total",
				Help: "Total number of clicks dropped after exhausting the retry bound",
			},
		),

		RecordDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wildbutton_record_click_duration_seconds",
				Help:    "Duration of click recording including retries",
				Buckets: prometheus.DefBuckets,
			},
		),

		TicksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wildbutton_schedule_ticks_total",
				Help: "Total number of schedule driver ticks",
			},
		),

		SchedulesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wildbutton_schedules_total",
				Help: "Total number of announces scheduled",
			},
			[]string{"tenant_id"},
		),

		ScheduleFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wildbutton_schedule_failures_total",
				Help: "Total number of per-tenant scheduling failures",
			},
			[]string{"tenant_id", "reason"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wildbutton_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"path", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wildbutton_http_request_duration_seconds",
				Help:    "Duration of HTTP request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}
}
