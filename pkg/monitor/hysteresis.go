package monitor

import (
	"log/slog"
	"time"
)

// decayPeriod is the sample count of the exponential-decay dwell
// averages.
const decayPeriod = 5

// hysteresis ignores a candidate transition when the system left the
// target state too recently or the target state's decayed dwell
// average is too low. Setting both thresholds to zero disables it.
//
// The damping is deliberately asymmetric: a rejected candidate
// inflates the *target-side* average by (N+1)/N, making the next
// acceptance progressively harder, while an accepted candidate only
// decays the opposite average toward the fresh dwell sample.
type hysteresis struct {
	now    func() time.Time
	logger *slog.Logger

	// thresholds in milliseconds; the mins are the half-thresholds
	// applied to the fresh dwell time
	inHyst, outHyst uint64
	inMin, outMin   uint64

	avgIn, avgOut   uint64
	lastIn, lastOut time.Time
}

func newHysteresis(entryHystMS, exitHystMS int, now func() time.Time, logger *slog.Logger) *hysteresis {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &hysteresis{
		now:     now,
		logger:  logger,
		inHyst:  uint64(max(entryHystMS, 0)),
		outHyst: uint64(max(exitHystMS, 0)),
	}
	h.inMin, h.outMin = h.inHyst/2, h.outHyst/2
	h.avgIn, h.avgOut = h.inHyst, h.outHyst
	t := h.now()
	h.lastIn, h.lastOut = t, t
	return h
}

func (h *hysteresis) msSince(t time.Time) uint64 {
	d := h.now().Sub(t).Milliseconds()
	if d < 0 {
		return 0
	}
	return uint64(d)
}

// shouldProceed decides whether a candidate Idle/Overload transition is
// accepted this tick. Normal (and Unknown) never transition.
func (h *hysteresis) shouldProceed(status Status) bool {
	if h.inHyst == 0 && h.outHyst == 0 {
		return true
	}

	switch status {
	case StatusIdle:
		curOut := h.msSince(h.lastOut)
		h.avgOut = h.avgOut*(decayPeriod-1)/decayPeriod + curOut/decayPeriod
		if h.avgIn >= h.inHyst && curOut >= h.outMin {
			return true
		}
		h.logger.Info("ignore idle transition",
			"avg_in", h.avgIn, "avg_out", h.avgOut, "cur_out", curOut)
		h.avgIn = h.avgIn * (decayPeriod + 1) / decayPeriod
		return false

	case StatusOverload:
		curIn := h.msSince(h.lastIn)
		h.avgIn = h.avgIn*(decayPeriod-1)/decayPeriod + curIn/decayPeriod
		if h.avgOut >= h.outHyst && curIn >= h.inMin {
			return true
		}
		h.logger.Info("ignore overload transition",
			"avg_in", h.avgIn, "avg_out", h.avgOut, "cur_in", curIn)
		h.avgOut = h.avgOut * (decayPeriod + 1) / decayPeriod
		return false
	}
	return false
}

// markIn records the moment a low-power entry was executed.
func (h *hysteresis) markIn() { h.lastIn = h.now() }

// markOut records the moment a low-power exit was executed.
func (h *hysteresis) markOut() { h.lastOut = h.now() }
