package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for draws, radii and report reuse.
type Metrics struct {
	Draws         *prometheus.CounterVec
	Pops          *prometheus.CounterVec
	Radius        *prometheus.GaugeVec
	RadiusErrors  *prometheus.CounterVec
	ReportHits    prometheus.Counter
	ReportMisses  prometheus.Counter
	SimulateArms  prometheus.Gauge
	SimulateRound prometheus.Counter
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Draws: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bestarm_draws_total",
				Help: "Reward draws by policy and outcome (ok or exhausted)",
			},
			[]string{"policy", "ok"},
		),
		Pops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bestarm_pops_total",
				Help: "Rewards removed from a system's pool",
			},
			[]string{"system"},
		),
		Radius: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bestarm_confidence_radius",
				Help: "Last computed confidence radius per estimator and system (normalized scale)",
			},
			[]string{"estimator", "system"},
		),
		RadiusErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bestarm_radius_errors_total",
				Help: "Confidence radius computations that failed",
			},
			[]string{"estimator"},
		),
		ReportHits: f.NewCounter(prometheus.CounterOpts{
			Name: "bestarm_report_store_hits_total",
			Help: "Reports served from the report store",
		}),
		ReportMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "bestarm_report_store_misses_total",
			Help: "Reports computed because the store had none",
		}),
		SimulateArms: f.NewGauge(prometheus.GaugeOpts{
			Name: "bestarm_simulate_arms",
			Help: "Arms driven by the simulation; the uniform driver never eliminates one",
		}),
		SimulateRound: f.NewCounter(prometheus.CounterOpts{
			Name: "bestarm_simulate_rounds_total",
			Help: "Completed simulation rounds",
		}),
	}
}

// ObserveDraw counts one draw attempt.
func (m *Metrics) ObserveDraw(policy string, ok bool) {
	m.Draws.WithLabelValues(policy, strconv.FormatBool(ok)).Inc()
}

// ObservePop counts one popped reward.
func (m *Metrics) ObservePop(system string) {
	m.Pops.WithLabelValues(system).Inc()
}

// ObserveRadius records a computed radius, or counts the failure.
func (m *Metrics) ObserveRadius(estimator, system string, radius float64, err error) {
	if err != nil {
		m.RadiusErrors.WithLabelValues(estimator).Inc()
		return
	}
	m.Radius.WithLabelValues(estimator, system).Set(radius)
}
