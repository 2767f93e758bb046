// Package telemetry exports the decision engine's per-tick readings as
// Prometheus metrics. It observes monitor ticks rather than sampling on
// scrape so the exported values are exactly what the decisions used.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ColinIanKing/intel-lpmd/pkg/monitor"
)

// Telemetry implements monitor.Observer. Busy gauges report plain
// percent (0..100) or -1 when the source gave no reading this round.
type Telemetry struct {
	busySys  prometheus.Gauge
	busyCPU  prometheus.Gauge
	busyGfx  prometheus.Gauge
	interval prometheus.Gauge
	stateID  prometheus.Gauge

	ticks       prometheus.Counter
	transitions prometheus.Counter

	burstRate     prometheus.Gauge
	burstBreaches prometheus.Counter

	lastState string
}

// New registers the daemon metrics on reg and returns the observer.
func New(reg prometheus.Registerer) *Telemetry {
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lpmd", Subsystem: "monitor", Name: name, Help: help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: "lpmd", Subsystem: "monitor", Name: name, Help: help,
		})
	}

	return &Telemetry{
		busySys:  gauge("busy_sys_percent", "System-wide CPU busy percent (-1 when unavailable)"),
		busyCPU:  gauge("busy_cpu_percent", "Busiest-core CPU busy percent (-1 when unavailable)"),
		busyGfx:  gauge("busy_gfx_percent", "Graphics busy percent (-1 when unavailable)"),
		interval: gauge("poll_interval_ms", "Next poll interval chosen by the last tick"),
		stateID:  gauge("state_id", "Identifier of the active power-profile state"),

		ticks:       counter("ticks_total", "Total decision ticks processed"),
		transitions: counter("state_transitions_total", "Total power-state transitions"),

		burstRate:     gauge("spike_burst_rate_per_min", "Detected spike bursts per minute"),
		burstBreaches: counter("spike_burst_breaches_total", "Rounds where the burst rate crossed the demotion threshold"),
	}
}

// ObserveTick records one decision round.
func (t *Telemetry) ObserveTick(s monitor.Summary) {
	t.ticks.Inc()
	t.busySys.Set(s.BusySys.Float())
	t.busyCPU.Set(s.BusyCPU.Float())
	t.busyGfx.Set(s.BusyGfx.Float())
	t.interval.Set(float64(s.IntervalMS))
	t.stateID.Set(float64(s.StateID))

	if s.StateName != t.lastState {
		if t.lastState != "" {
			t.transitions.Inc()
		}
		t.lastState = s.StateName
	}
}

// ObserveBurst publishes the spike detector's burst state after one
// classification round.
func (t *Telemetry) ObserveBurst(ratePerMin int, breach bool) {
	t.burstRate.Set(float64(ratePerMin))
	if breach {
		t.burstBreaches.Inc()
	}
}
