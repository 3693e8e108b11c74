// Package metrics keeps per-daemon counters and exports them as a
// node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srodi/loadreaper/pkg/session"
	"github.com/srodi/loadreaper/pkg/types"
)

const namespace = "loadreaper"

// Recorder owns a private registry so tests and the daemon never share state.
type Recorder struct {
	registry     *prometheus.Registry
	cycles       *prometheus.CounterVec
	terminations *prometheus.CounterVec
	load         *prometheus.GaugeVec
	lastCycle    prometheus.Gauge
}

// NewRecorder registers all collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed scheduler cycles by final session status.",
		}, []string{"status"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Termination attempts by outcome.",
		}, []string{"outcome"}),
		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_average",
			Help:      "Load average observed at the start of the last cycle.",
		}, []string{"window"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished.",
		}),
	}
	r.registry.MustRegister(r.cycles, r.terminations, r.load, r.lastCycle)
	for _, status := range []session.Status{session.OK, session.Failed} {
		r.cycles.WithLabelValues(status.String())
	}
	for _, o := range []types.Outcome{types.Terminated, types.PermissionDenied, types.NotFound} {
		r.terminations.WithLabelValues(o.String())
	}
	return r
}

// ObserveLoad records the sample taken at the start of a cycle.
func (r *Recorder) ObserveLoad(s types.LoadSample) {
	r.load.WithLabelValues("1m").Set(s.One)
	r.load.WithLabelValues("5m").Set(s.Five)
	r.load.WithLabelValues("15m").Set(s.Fifteen)
}

// ObserveCycle records the end of a cycle.
func (r *Recorder) ObserveCycle(status session.Status, outcomes []types.TerminationOutcome, finished time.Time) {
	r.cycles.WithLabelValues(status.String()).Inc()
	for _, o := range outcomes {
		r.terminations.WithLabelValues(o.Outcome.String()).Inc()
	}
	r.lastCycle.Set(float64(finished.Unix()))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes the current values to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
