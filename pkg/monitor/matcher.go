package monitor

import (
	"log/slog"

	"github.com/ColinIanKing/intel-lpmd/pkg/config"
	"github.com/ColinIanKing/intel-lpmd/pkg/types"
)

// Matcher is the priority-ordered multi-profile state machine. On each
// tick it selects the first state in configuration order whose
// predicate matches; ties break by order, never by specificity.
type Matcher struct {
	states  []*config.State
	current *config.State
	logger  *slog.Logger

	// interval persists across ticks so a fixed increment can ramp it.
	interval int
}

func NewMatcher(states []*config.State, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{states: states, logger: logger, interval: config.DefaultPollMS}
}

// Reset clears the active-state selection between runs.
func (m *Matcher) Reset() {
	m.current = nil
	m.interval = config.DefaultPollMS
}

// Current returns the active state, nil before the first match.
func (m *Matcher) Current() *config.State { return m.current }

// matches evaluates one state's entry predicate. An unavailable gfx
// reading never disqualifies a match. The system-load check carries
// sticky hysteresis: the active state tolerates a bounded overshoot
// above its threshold, a newly challenged state does not.
func (m *Matcher) matches(st *config.State, bsys, bcpu, bgfx types.Percent, wltHint int) bool {
	if !st.Valid {
		return false
	}

	if st.WLTType != -1 {
		if st.WLTType != wltHint {
			return false
		}
		// A hint-bound state with no gfx threshold matches on the
		// hint alone.
		if st.EnterGfxLoadThres == 0 {
			return true
		}
	}

	// No thresholds at all: a catch-all profile.
	if st.EnterCPULoadThres == 0 && st.EntrySystemLoadThres == 0 && st.EnterGfxLoadThres == 0 {
		return true
	}

	if st.EnterCPULoadThres != 0 && int(bcpu) > st.EnterCPULoadThres {
		m.ignore(st, bsys, bcpu, bgfx)
		return false
	}

	if st.EnterGfxLoadThres != 0 {
		if !bgfx.Available() {
			m.logger.Debug("gfx utilization unavailable, ignoring gfx threshold", "state", st.Name)
		} else if int(bgfx) > st.EnterGfxLoadThres {
			m.ignore(st, bsys, bcpu, bgfx)
			return false
		}
	}

	if st.EntrySystemLoadThres != 0 && int(bsys) > st.EntrySystemLoadThres {
		if st.ExitSystemLoadHyst == 0 || st != m.current {
			m.ignore(st, bsys, bcpu, bgfx)
			return false
		}
		if int(bsys) > st.EntryLoadSys+st.ExitSystemLoadHyst &&
			int(bsys) > st.EntrySystemLoadThres+st.ExitSystemLoadHyst {
			m.ignore(st, bsys, bcpu, bgfx)
			return false
		}
	}

	m.logger.Debug("state matched", "state", st.Name,
		"sys_thres", st.EntrySystemLoadThres, "cpu_thres", st.EnterCPULoadThres,
		"gfx_thres", st.EnterGfxLoadThres, "hyst", st.ExitSystemLoadHyst)
	return true
}

func (m *Matcher) ignore(st *config.State, bsys, bcpu, bgfx types.Percent) {
	m.logger.Debug("state ignored", "state", st.Name,
		"bsys", bsys.String(), "bcpu", bcpu.String(), "bgfx", bgfx.String())
}

// enter records the entry loads and either fires the transition side
// effects (new state) or recomputes only the polling interval (state
// unchanged).
func (m *Matcher) enter(st *config.State, bsys, bcpu types.Percent, act Actuator) int {
	st.EntryLoadSys = int(bsys)
	st.EntryLoadCPU = int(bcpu)

	if st == m.current {
		if st.PollIntervalIncrement > 0 {
			m.interval += st.PollIntervalIncrement
		}
		if st.PollIntervalIncrement == config.AdaptiveIncrement {
			// Busier CPU polls sooner.
			m.interval = st.MaxPollInterval * (10000 - int(bcpu)) / 10000
			m.interval = m.interval / 100 * 100
		}
		if st.MinPollInterval != 0 && m.interval < st.MinPollInterval {
			m.interval = st.MinPollInterval
		}
		if st.MaxPollInterval != 0 && m.interval > st.MaxPollInterval {
			m.interval = st.MaxPollInterval
		}
		return m.interval
	}

	m.actuate(st, act)

	if st.MinPollInterval != 0 {
		m.interval = st.MinPollInterval
	} else {
		m.interval = config.DefaultPollMS
	}
	m.current = st
	return m.interval
}

func (m *Matcher) actuate(st *config.State, act Actuator) {
	check := func(op string, err error) {
		if err != nil {
			m.logger.Warn("actuation failed", "op", op, "state", st.Name, "err", err)
		}
	}

	check("epp", act.SetEPP(st.EPP))
	check("epb", act.SetEPB(st.EPB))
	check("itmt", act.SetITMT(st.ITMTState))

	if set := st.CPUs; set != nil {
		if st.IRQMigrate != config.IRQIgnore {
			check("irq", act.SetIRQAffinity(set))
		} else {
			check("irq", act.SetIRQAffinity(nil))
		}
		check("cpus", act.SetActiveCPUs(set))
	} else {
		check("irq", act.SetIRQAffinity(nil))
		check("cpus", act.SetActiveCPUs(nil))
	}

	check("enter", act.EnterLowPower("config state"))
}

// Advance runs one matching round and returns the next poll interval,
// or BlockForever when no state matched.
func (m *Matcher) Advance(bsys, bcpu, bgfx types.Percent, wltHint int, act Actuator) int {
	for _, st := range m.states {
		if m.matches(st, bsys, bcpu, bgfx, wltHint) {
			return m.enter(st, bsys, bcpu, act)
		}
	}
	return BlockForever
}
