package monitor

import (
	"log/slog"

	"github.com/ColinIanKing/intel-lpmd/pkg/cpuset"
)

// Actuator is the platform side of the decision engine: it applies
// power-performance knobs and enters/exits the low-power operating
// profile. Implementations own the actual sysfs/MSR writes; the
// decision core only ever calls through this interface.
type Actuator interface {
	SetEPP(v int) error
	SetEPB(v int) error
	SetITMT(v int) error

	// SetActiveCPUs restricts scheduling to the given set; nil lifts
	// the restriction.
	SetActiveCPUs(set *cpuset.Set) error

	// SetIRQAffinity migrates IRQs onto the given set; nil leaves IRQ
	// affinity untouched.
	SetIRQAffinity(set *cpuset.Set) error

	EnterLowPower(reason string) error
	ExitLowPower(reason string) error

	// InLowPower reports whether the platform currently runs the
	// low-power profile.
	InLowPower() bool
}

// LogActuator records the decisions without touching hardware. It
// serves dry runs and platforms where the real actuation layer is
// managed elsewhere.
type LogActuator struct {
	logger *slog.Logger
	inLPM  bool
}

func NewLogActuator(logger *slog.Logger) *LogActuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogActuator{logger: logger}
}

func (a *LogActuator) SetEPP(v int) error {
	a.logger.Debug("set epp", "value", v)
	return nil
}

func (a *LogActuator) SetEPB(v int) error {
	a.logger.Debug("set epb", "value", v)
	return nil
}

func (a *LogActuator) SetITMT(v int) error {
	a.logger.Debug("set itmt", "value", v)
	return nil
}

func (a *LogActuator) SetActiveCPUs(set *cpuset.Set) error {
	if set == nil {
		a.logger.Debug("lift cpu restriction")
		return nil
	}
	a.logger.Debug("restrict cpus", "cpus", set.String())
	return nil
}

func (a *LogActuator) SetIRQAffinity(set *cpuset.Set) error {
	if set == nil {
		a.logger.Debug("leave irq affinity untouched")
		return nil
	}
	a.logger.Debug("migrate irqs", "cpus", set.String())
	return nil
}

func (a *LogActuator) EnterLowPower(reason string) error {
	a.logger.Info("enter low power mode", "reason", reason)
	a.inLPM = true
	return nil
}

func (a *LogActuator) ExitLowPower(reason string) error {
	a.logger.Info("exit low power mode", "reason", reason)
	a.inLPM = false
	return nil
}

func (a *LogActuator) InLowPower() bool { return a.inLPM }
