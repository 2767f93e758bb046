// Package monitor is the decision engine of the power daemon: it
// samples CPU/GPU utilization once per tick, classifies system load
// and decides when to move the platform between the low-power profile
// and normal operation. Profile-based matching runs when the
// configuration carries enough valid states; otherwise a simple
// threshold classifier with hysteresis damping takes over.
package monitor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ColinIanKing/intel-lpmd/pkg/config"
	"github.com/ColinIanKing/intel-lpmd/pkg/types"
)

// BlockForever is the interval meaning "do not poll again": the caller
// blocks until an external event wakes it.
const BlockForever = -1

// CPUSampler produces the system-wide and worst-core busy percentages
// for one tick.
type CPUSampler interface {
	Sample() (busySys, busyCPU types.Percent, err error)
}

// GfxSampler produces the graphics busy percentage for one tick,
// types.Unavailable when no source can.
type GfxSampler interface {
	Sample() types.Percent
}

// Summary is the per-tick observability record.
type Summary struct {
	StateID    int
	StateCount int
	StateName  string

	BusySys types.Percent
	BusyCPU types.Percent
	BusyGfx types.Percent

	EPP  int
	EPB  int
	ITMT int

	IntervalMS int
}

// Observer receives a Summary once per tick that produced a decision.
type Observer interface {
	ObserveTick(Summary)
}

// Monitor is the control-loop driver. All mutable decision state lives
// here so independent simulated timelines can coexist in one process.
// It is driven by exactly one logical thread.
type Monitor struct {
	cfg     *config.Config
	cpu     CPUSampler
	gfx     GfxSampler
	act     Actuator
	matcher *Matcher
	hyst    *hysteresis
	obs     Observer
	logger  *slog.Logger
	now     func() time.Time

	firstRun bool
	bsys     types.Percent
	bcpu     types.Percent
	bgfx     types.Percent
}

// New builds a monitor over validated configuration and tick sources.
// A nil logger falls back to slog.Default().
func New(cfg *config.Config, cpu CPUSampler, gfx GfxSampler, act Actuator, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:      cfg,
		cpu:      cpu,
		gfx:      gfx,
		act:      act,
		matcher:  NewMatcher(cfg.States, logger),
		logger:   logger,
		now:      time.Now,
		firstRun: true,
		bsys:     types.Unavailable,
		bcpu:     types.Unavailable,
		bgfx:     types.Unavailable,
	}
}

// SetObserver attaches a per-tick summary consumer.
func (m *Monitor) SetObserver(o Observer) { m.obs = o }

// Reset restores the cold-start state between runs: no active profile,
// warm-up round pending, hysteresis re-seeded on next use.
func (m *Monitor) Reset() {
	m.matcher.Reset()
	m.hyst = nil
	m.firstRun = true
	m.bsys, m.bcpu, m.bgfx = types.Unavailable, types.Unavailable, types.Unavailable
}

// Last returns the most recent utilization sample.
func (m *Monitor) Last() (busySys, busyCPU, busyGfx types.Percent) {
	return m.bsys, m.bcpu, m.bgfx
}

// Tick runs one decision round and returns the next poll interval in
// milliseconds, or BlockForever. A non-negative wltHint selects the
// profile matcher keyed to that workload type; a negative hint runs
// the utilization monitor.
func (m *Monitor) Tick(wltHint int) int {
	if wltHint >= 0 {
		if m.cfg.WLTHintPollEnable {
			m.bgfx = m.sampleGfx()
			return m.advance(wltHint)
		}
		m.advance(wltHint)
		return BlockForever
	}

	if !m.cfg.MonitorEnabled {
		return BlockForever
	}

	if m.hyst == nil {
		m.hyst = newHysteresis(m.cfg.UtilEntryHystMS, m.cfg.UtilExitHystMS, m.now, m.logger)
	}

	m.sampleCPU()
	m.bgfx = m.sampleGfx()

	if !m.cfg.ProfilesEnabled() {
		return m.simpleTick()
	}
	return m.advance(wltHint)
}

func (m *Monitor) sampleCPU() {
	bsys, bcpu, err := m.cpu.Sample()
	if err != nil {
		m.logger.Warn("cpu utilization sample failed", "err", err)
		m.bsys, m.bcpu = types.Unavailable, types.Unavailable
		return
	}
	m.bsys, m.bcpu = bsys, bcpu
}

func (m *Monitor) sampleGfx() types.Percent {
	if m.gfx == nil {
		return types.Unavailable
	}
	return m.gfx.Sample()
}

// classify is the simple three-way load classifier. The first round
// after (re)start is forced Normal: its deltas span the whole uptime
// and mean nothing.
func (m *Monitor) classify() Status {
	if m.firstRun {
		return StatusNormal
	}
	if !m.act.InLowPower() && m.bsys.Available() &&
		int(m.bsys) <= m.cfg.UtilEntryThreshold*100 {
		return StatusIdle
	}
	if m.act.InLowPower() && m.bcpu.Available() &&
		int(m.bcpu) > m.cfg.UtilExitThreshold*100 {
		return StatusOverload
	}
	return StatusNormal
}

// utilInterval picks the next poll interval for the simple path:
// fixed configured intervals win; otherwise in low-power mode the
// interval shrinks with CPU load. Result is floored to 100ms steps.
func (m *Monitor) utilInterval() int {
	var interval int
	if m.act.InLowPower() {
		interval = m.cfg.UtilExitInterval
		if interval != 0 {
			return interval
		}
		if !m.bcpu.Available() || m.firstRun {
			return config.DefaultPollMS
		}
		interval = config.DefaultPollMS * (10000 - int(m.bcpu)) / 10000
	} else {
		interval = m.cfg.UtilEntryInterval
		if interval != 0 {
			return interval
		}
		interval = config.DefaultPollMS
	}

	interval = interval / 100 * 100
	if interval == 0 {
		interval = 100
	}
	return interval
}

func (m *Monitor) simpleTick() (interval int) {
	status := m.classify()
	interval = m.utilInterval()

	m.logger.Info("utilization",
		"busy_sys", m.bsys.String(), "entry_threshold", m.cfg.UtilEntryThreshold,
		"busy_cpu", m.bcpu.String(), "exit_threshold", m.cfg.UtilExitThreshold,
		"interval_ms", interval)

	defer func() {
		if m.obs != nil {
			m.obs.ObserveTick(Summary{
				StateName: status.String(),
				BusySys:   m.bsys, BusyCPU: m.bcpu, BusyGfx: m.bgfx,
				EPP: -1, EPB: -1, ITMT: -1,
				IntervalMS: interval,
			})
		}
	}()

	m.firstRun = false

	if !m.hyst.shouldProceed(status) {
		return interval
	}

	switch status {
	case StatusIdle:
		if err := m.act.EnterLowPower("utilization"); err != nil {
			m.logger.Warn("low power entry failed", "err", err)
		}
		m.firstRun = true
		m.hyst.markIn()
		interval = config.DefaultPollMS
	case StatusOverload:
		if err := m.act.ExitLowPower("utilization"); err != nil {
			m.logger.Warn("low power exit failed", "err", err)
		}
		m.firstRun = true
		m.hyst.markOut()
	}
	return interval
}

func (m *Monitor) advance(wltHint int) int {
	interval := m.matcher.Advance(m.bsys, m.bcpu, m.bgfx, wltHint, m.act)

	cur := m.matcher.Current()
	if cur == nil {
		return interval
	}

	s := Summary{
		StateID:    cur.ID,
		StateCount: len(m.cfg.States),
		StateName:  cur.Name,
		BusySys:    m.bsys,
		BusyCPU:    m.bcpu,
		BusyGfx:    m.bgfx,
		EPP:        cur.EPP,
		EPB:        cur.EPB,
		ITMT:       cur.ITMTState,
		IntervalMS: interval,
	}
	m.logger.Info("state",
		"state", fmt.Sprintf("[%d/%d] %s", s.StateID, s.StateCount, s.StateName),
		"bsys", s.BusySys.String(), "bcpu", s.BusyCPU.String(), "bgfx", s.BusyGfx.String(),
		"epp", s.EPP, "epb", s.EPB, "itmt", s.ITMT, "interval", s.IntervalMS)
	if m.obs != nil {
		m.obs.ObserveTick(s)
	}
	return interval
}
