package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the bot's Prometheus collectors.
type Metrics struct {
	UpdatesTotal         *prometheus.CounterVec
	UpdateProcessingTime prometheus.Histogram
	ErrorsTotal          prometheus.Counter
	RateLimited          prometheus.Counter
	AppointmentsCreated  prometheus.Counter
	StatusChanges        *prometheus.CounterVec
	Exports              prometheus.Counter
}

// NewMetrics registers the collectors on reg; nil means the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "petagenda_bot_updates_total",
			Help: "Telegram updates processed, by kind",
		}, []string{"kind"}),

		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "petagenda_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "petagenda_bot_errors_total",
			Help: "Failed operations and recovered panics",
		}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "petagenda_bot_rate_limited_total",
			Help: "Updates dropped by the flood limit",
		}),

		AppointmentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "petagenda_bot_appointments_created_total",
			Help: "Appointments booked through the bot",
		}),

		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "petagenda_bot_status_changes_total",
			Help: "Appointment status changes, by new status",
		}, []string{"status"}),

		Exports: factory.NewCounter(prometheus.CounterOpts{
			Name: "petagenda_bot_exports_total",
			Help: "Workbooks exported",
		}),
	}
}

func (b *Bot) countUpdate(kind string) {
	if b.metrics != nil {
		b.metrics.UpdatesTotal.WithLabelValues(kind).Inc()
	}
}
