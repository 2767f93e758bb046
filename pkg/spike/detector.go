// Package spike tracks bursts of CPU load spikes. A burst is two or
// more consecutive spiking samples; single spikes are noise. Burst
// count and strength separate random noise that deserves no
// performance response from bursty workloads that do.
//
// Sampling of spikes (|) and non-spikes (.):
//
//	...||..||||...|...|||.....
//
// has bursts of 2, 4 and 3 spikes; the lone spike in between is not a
// burst. The detector does not classify samples itself: the caller
// decides per tick whether load spiked and feeds RecordSpike or
// RecordNonSpike accordingly.
package spike

import "time"

const (
	// maxTrackedSpikeTime caps the spike-time accumulator; spike rate
	// is the accumulator's share of this window.
	maxTrackedSpikeTime = 1000
	maxBurstCount       = 1000

	// burstCountThreshold is the bursts-per-window rate at which the
	// burst signal is considered breached.
	burstCountThreshold = 3
)

// Detector carries all burst-tracking state. Construct one per
// simulated timeline; it is not safe for concurrent use.
type Detector struct {
	// DemoteActive gates counting a burst on its second consecutive
	// spike: only while the platform sits in a demoted (low-power)
	// state does an early burst deserve counting. Nil means always.
	DemoteActive func() bool

	// CountAllowed gates burst-count increments on the current
	// actuation state. Nil means always.
	CountAllowed func() bool

	now func() time.Time

	totalSpikeTime int

	// Running average of observed spike rates over the current burst.
	spikeRateTotal   int
	spikeRateSamples int

	burstCount      int
	burstRatePerMin int
	inBurst         bool
	counted         bool // this burst already incremented burstCount

	// bcResetMin is the adaptive memory window: how long past bursts
	// stay counted. Retuned on every burst falling edge; the more
	// prominent the spiking, the longer it is remembered.
	bcResetMin float64

	lastCount   time.Time
	haveLast    bool
	strikeCount int
}

// New returns a detector with the initial 90-unit memory window.
func New() *Detector {
	return &Detector{
		now:        time.Now,
		bcResetMin: 90.0,
	}
}

func (d *Detector) demoteActive() bool {
	return d.DemoteActive == nil || d.DemoteActive()
}

func (d *Detector) countAllowed() bool {
	return d.CountAllowed == nil || d.CountAllowed()
}

// SpikeRate returns accumulated spike time as a percentage of the
// tracked window, clamped to 100.
func (d *Detector) SpikeRate() int {
	pct := d.totalSpikeTime * 100 / maxTrackedSpikeTime
	if pct > 100 {
		return 100
	}
	return pct
}

// RecordSpike accumulates one spiking sample of the given duration
// (same unit as the tracked window). The first spike of a run only
// flags the rising edge; the second consecutive spike makes it a burst.
func (d *Detector) RecordSpike(duration int) {
	if d.totalSpikeTime < maxTrackedSpikeTime {
		d.totalSpikeTime += duration
	}

	if !d.inBurst {
		// rising edge: not yet a burst
		d.inBurst = true
	} else if d.demoteActive() && !d.counted {
		d.updateBurstCount(true)
		d.counted = true
	}

	d.spikeRateTotal += d.SpikeRate()
	d.spikeRateSamples++
}

// RecordNonSpike drains one non-spiking sample. When the spike rate
// reaches zero while a burst was in progress this is the falling edge:
// the burst is counted if it never was, the per-burst spike-rate
// average resets, and the memory window retunes toward it.
func (d *Detector) RecordNonSpike(duration int) {
	d.totalSpikeTime -= duration
	if d.totalSpikeTime < 0 {
		d.totalSpikeTime = 0
	}

	if d.SpikeRate() == 0 && d.inBurst {
		d.inBurst = false

		avg := 0
		if d.spikeRateSamples > 0 {
			avg = d.spikeRateTotal / d.spikeRateSamples
		}
		if !d.counted {
			d.updateBurstCount(true)
		}

		// A 0 average halves the window; a 100 average keeps it.
		d.bcResetMin = 60.0 - float64(int(float64(100-avg)*d.bcResetMin/200.0))

		d.spikeRateTotal, d.spikeRateSamples = 0, 0
		d.counted = false
		return
	}

	d.updateBurstCount(false)
	d.counted = false
}

// updateBurstCount refreshes burst-count bookkeeping. realBurst marks
// an actual new burst rather than a decay refresh. The count decays to
// zero when more than one memory window elapses without bursts, or
// when it saturates.
func (d *Detector) updateBurstCount(realBurst bool) int {
	ts := d.now()
	if !d.haveLast {
		d.lastCount = ts
		d.haveLast = true
		return 0
	}
	windows := ts.Sub(d.lastCount).Seconds() / d.bcResetMin

	if realBurst && d.countAllowed() {
		d.burstCount++
		d.lastCount = ts
	} else if windows > 1 || d.burstCount > maxBurstCount {
		d.burstCount = 0
		d.lastCount = ts
	}

	if windows < 1 {
		d.burstRatePerMin = d.burstCount
	} else if windows > 1 {
		d.burstRatePerMin = int(float64(d.burstCount) / windows)
	}
	return d.burstRatePerMin
}

// BurstRatePerMin returns the burst rate over the memory window.
func (d *Detector) BurstRatePerMin() int { return d.burstRatePerMin }

// BurstRateBreach reports whether the burst rate has reached the
// breach threshold.
func (d *Detector) BurstRateBreach() bool {
	return d.burstRatePerMin >= burstCountThreshold
}

// FreshBurstResponse reports whether bursts are accelerating relative
// to a baseline rate snapshotted earlier. A zero baseline never
// responds.
func (d *Detector) FreshBurstResponse(initialRate int) bool {
	if initialRate == 0 {
		return false
	}
	return initialRate >= burstCountThreshold || d.burstRatePerMin > initialRate
}

// Debounce seeds a countdown at n on first use and decrements on every
// later call, holding at zero: an "ignore the next n signals" utility
// independent of the burst state.
func (d *Detector) Debounce(n int) int {
	if d.strikeCount == 0 {
		d.strikeCount = n
	} else {
		d.strikeCount--
	}
	if d.strikeCount < 0 {
		d.strikeCount = 0
	}
	return d.strikeCount
}
