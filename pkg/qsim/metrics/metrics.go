// Package metrics exposes per-tick timing and occupancy as Prometheus
// metrics, mirroring the phase-by-phase timing the original
// performance-profiling module recorded into a custom binary format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/config"
)

// Phase names a tick sub-step timed by Recorder.StepDuration.
type Phase string

const (
	PhaseActivity Phase = "activity"
	PhaseLeg      Phase = "leg"
	PhaseNetwork  Phase = "network"
	PhaseBroker   Phase = "broker"
)

// Recorder is what the per-partition worker (sim.Worker) depends on to
// report timing and occupancy. NopRecorder is installed when metrics are
// disabled, so the hot path never branches on whether they are.
type Recorder interface {
	// StepDuration records how long phase took on partition this tick.
	StepDuration(partition int, phase Phase, d time.Duration)

	// TickCompleted increments the completed-tick counter for
	// partition.
	TickCompleted(partition int)

	// InFlightVehicles sets the current in-flight vehicle gauge for
	// partition.
	InFlightVehicles(partition int, count int)
}

// NopRecorder discards every observation.
type NopRecorder struct{}

func (NopRecorder) StepDuration(int, Phase, time.Duration) {}
func (NopRecorder) TickCompleted(int)                      {}
func (NopRecorder) InFlightVehicles(int, int)               {}

// PrometheusRecorder records into a dedicated registry: a Histogram
// per phase name, a Counter of ticks completed, and a Gauge of
// in-flight vehicles, each labeled by partition.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	phaseDuration   *prometheus.HistogramVec
	ticksCompleted  *prometheus.CounterVec
	inFlightVehicles *prometheus.GaugeVec
}

// NewPrometheusRecorder builds a recorder with a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	phaseDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qsim_tick_phase_duration_seconds",
		Help:    "Duration of one tick-loop phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"partition", "phase"})

	ticksCompleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qsim_ticks_completed_total",
		Help: "Number of simulation ticks completed.",
	}, []string{"partition"})

	inFlightVehicles := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "qsim_in_flight_vehicles",
		Help: "Vehicles currently on the network or teleporting.",
	}, []string{"partition"})

	reg.MustRegister(phaseDuration, ticksCompleted, inFlightVehicles)

	return &PrometheusRecorder{
		registry:         reg,
		phaseDuration:    phaseDuration,
		ticksCompleted:   ticksCompleted,
		inFlightVehicles: inFlightVehicles,
	}
}

// Registry returns the registry these metrics were registered on, for
// the driver to expose over an HTTP handler.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

func itoa(p int) string {
	if p == 0 {
		return "0"
	}
	neg := p < 0
	if neg {
		p = -p
	}
	var buf [20]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = byte('0' + p%10)
		p /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (r *PrometheusRecorder) StepDuration(partition int, phase Phase, d time.Duration) {
	r.phaseDuration.WithLabelValues(itoa(partition), string(phase)).Observe(d.Seconds())
}

func (r *PrometheusRecorder) TickCompleted(partition int) {
	r.ticksCompleted.WithLabelValues(itoa(partition)).Inc()
}

func (r *PrometheusRecorder) InFlightVehicles(partition int, count int) {
	r.inFlightVehicles.WithLabelValues(itoa(partition)).Set(float64(count))
}

// NewRecorder builds the recorder named by cfg.Output.Profiling.
func NewRecorder(cfg config.Output) Recorder {
	switch cfg.Profiling {
	case config.ProfilingPrometheus:
		return NewPrometheusRecorder()
	default:
		return NopRecorder{}
	}
}
