package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ColinIanKing/intel-lpmd/pkg/cpuset"
)

// IRQMode controls whether a profile drags IRQ affinity along with its
// CPU restriction.
type IRQMode int

const (
	// IRQIgnore leaves IRQ affinity untouched on profile entry.
	IRQIgnore IRQMode = iota
	// IRQEnable migrates IRQs onto the profile's CPU set.
	IRQEnable
	// IRQDisable restores default IRQ spreading.
	IRQDisable
)

func (m IRQMode) String() string {
	switch m {
	case IRQEnable:
		return "enable"
	case IRQDisable:
		return "disable"
	default:
		return "ignore"
	}
}

// UnmarshalYAML accepts the textual tri-state used in config files.
func (m *IRQMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "", "ignore":
		*m = IRQIgnore
	case "enable":
		*m = IRQEnable
	case "disable":
		*m = IRQDisable
	default:
		return fmt.Errorf("config: bad irq_migrate %q", s)
	}
	return nil
}

// AdaptiveIncrement is the poll_interval_increment sentinel selecting
// the utilization-scaled interval formula instead of a fixed step.
const AdaptiveIncrement = -1

// State is one named power profile. Thresholds are configured in whole
// percent and rescaled to basis points by Config.Validate. EntryLoadSys
// and EntryLoadCPU are annotations refreshed by the matcher on every
// match; only the sticky system-load hysteresis rule reads them back.
type State struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`

	// WLTType is the workload-type hint this profile binds to, -1 = any.
	WLTType int `yaml:"wlt_type"`

	EntrySystemLoadThres int `yaml:"entry_system_load_thres"`
	EnterCPULoadThres    int `yaml:"enter_cpu_load_thres"`
	ExitCPULoadThres     int `yaml:"exit_cpu_load_thres"`
	EnterGfxLoadThres    int `yaml:"enter_gfx_load_thres"`
	ExitSystemLoadHyst   int `yaml:"exit_system_load_hyst"`

	MinPollInterval       int `yaml:"min_poll_interval"`
	MaxPollInterval       int `yaml:"max_poll_interval"`
	PollIntervalIncrement int `yaml:"poll_interval_increment"`

	ActiveCPUs string  `yaml:"active_cpus"`
	IRQMigrate IRQMode `yaml:"irq_migrate"`

	EPP       int `yaml:"epp"`
	EPB       int `yaml:"epb"`
	ITMTState int `yaml:"itmt_state"`

	Valid        bool `yaml:"-"`
	EntryLoadSys int  `yaml:"-"`
	EntryLoadCPU int  `yaml:"-"`

	// CPUs is the parsed form of ActiveCPUs, filled in by
	// Config.Validate; nil leaves the CPU set unrestricted.
	CPUs *cpuset.Set `yaml:"-"`
}

// UnmarshalYAML fills the "unset" defaults before decoding so that a
// zero in the file stays distinguishable from an omitted field where
// zero is meaningful.
func (s *State) UnmarshalYAML(value *yaml.Node) error {
	type rawState State
	raw := rawState{
		WLTType:   -1,
		EPP:       -1,
		EPB:       -1,
		ITMTState: -1,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*s = State(raw)
	return nil
}
