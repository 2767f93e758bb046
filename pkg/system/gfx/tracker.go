// Package gfx derives a graphics utilization percentage from
// cumulative idle-residency counters. Two interchangeable backends are
// probed in order: DRM gtidle sysfs residency files, then a package
// C0-residency MSR. A failed probe falls back permanently; a failed
// read only degrades that round.
package gfx

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ColinIanKing/intel-lpmd/pkg/types"
)

// Source computes one gfx utilization reading per tick in basis
// points. It owns whatever previous-counter state the computation
// needs; the first call after construction (or probing) reports
// types.Unavailable while it warms up.
type Source interface {
	Sample(now time.Time) (types.Percent, error)
}

// Tracker multiplexes the sysfs and MSR sources with one-time
// capability probing.
type Tracker struct {
	sysfs  Source
	msr    Source
	logger *slog.Logger

	sysfsUsable bool
	now         func() time.Time
}

func newTracker(sysfs, msr Source, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		sysfs:       sysfs,
		msr:         msr,
		logger:      logger,
		sysfsUsable: sysfs != nil,
		now:         time.Now,
	}
}

// Sample returns the current gfx utilization, or types.Unavailable if
// neither backend produced a reading this round. It never fails the
// caller's tick.
func (t *Tracker) Sample() types.Percent {
	now := t.now()

	if t.sysfsUsable {
		p, err := t.sysfs.Sample(now)
		if err == nil {
			return p
		}
		if !errors.Is(err, ErrUnsupported) {
			t.logger.Debug("gfx sysfs sample failed", "err", err)
			return types.Unavailable
		}
		// Probe failed: the sysfs residency files are not coming back.
		t.logger.Debug("gfx sysfs residency unsupported, using msr", "err", err)
		t.sysfsUsable = false
	}

	if t.msr == nil {
		return types.Unavailable
	}
	p, err := t.msr.Sample(now)
	if err != nil {
		t.logger.Debug("gfx msr sample failed", "err", err)
		return types.Unavailable
	}
	return p
}
