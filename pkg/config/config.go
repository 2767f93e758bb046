// Package config holds the daemon configuration: global utilization
// monitor tunables plus the ordered list of power-profile states the
// matcher scans. Loading normalizes thresholds to basis points and
// validates each state; broken states are excluded rather than fatal.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ColinIanKing/intel-lpmd/pkg/cpuset"
)

// DefaultPollMS is the poll interval used when nothing better is
// configured or derivable.
const DefaultPollMS = 1000

// Config is the full daemon configuration. Thresholds are whole
// percent, hysteresis values milliseconds, intervals milliseconds
// (0 = unset).
type Config struct {
	// Simple-classifier tunables.
	UtilEntryThreshold int `yaml:"util_entry_threshold"`
	UtilExitThreshold  int `yaml:"util_exit_threshold"`
	UtilEntryHystMS    int `yaml:"util_entry_hyst_ms"`
	UtilExitHystMS     int `yaml:"util_exit_hyst_ms"`
	UtilEntryInterval  int `yaml:"util_entry_interval"`
	UtilExitInterval   int `yaml:"util_exit_interval"`

	// MonitorEnabled gates the whole utilization monitor; when false
	// Tick returns the block-forever interval.
	MonitorEnabled bool `yaml:"util_monitor"`

	// WLTHintPollEnable keeps utilization polling alive while an
	// external workload-type hint drives profile selection.
	WLTHintPollEnable bool `yaml:"wlt_hint_poll_enable"`

	States []*State `yaml:"states"`

	profilesEnabled bool
}

// UnmarshalYAML applies defaults the zero value would otherwise
// swallow (the monitor defaults to enabled).
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig Config
	raw := rawConfig{MonitorEnabled: true}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = Config(raw)
	return nil
}

// Load reads and validates a YAML config file.
func Load(path string, logger *slog.Logger) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Validate(logger)
	return &c, nil
}

// Validate normalizes every state and decides whether profile matching
// is usable. A state with an unparseable CPU list is marked invalid and
// skipped by the matcher. Thresholds move from percent to basis points,
// absent poll intervals default against DefaultPollMS, and a zero
// increment becomes the adaptive sentinel. Fewer than two valid states
// disables profile matching in favor of the simple classifier; that is
// a logged condition, not an error.
func (c *Config) Validate(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	valid := 0
	for _, st := range c.States {
		st.Valid = true

		if st.ActiveCPUs != "" {
			set, err := cpuset.Parse(st.ActiveCPUs)
			if err != nil {
				logger.Warn("invalid state cpu list", "state", st.Name, "cpus", st.ActiveCPUs, "err", err)
				st.Valid = false
				continue
			}
			st.CPUs = set
		}

		if st.MinPollInterval == 0 {
			if st.MaxPollInterval > DefaultPollMS {
				st.MinPollInterval = DefaultPollMS
			} else {
				st.MinPollInterval = st.MaxPollInterval
			}
		}
		if st.MaxPollInterval == 0 {
			if st.MinPollInterval > DefaultPollMS {
				st.MaxPollInterval = st.MinPollInterval
			} else {
				st.MaxPollInterval = DefaultPollMS
			}
		}
		if st.PollIntervalIncrement == 0 {
			st.PollIntervalIncrement = AdaptiveIncrement
		}

		// Percent -> basis points, matching the sampler resolution.
		st.EntrySystemLoadThres *= 100
		st.EnterCPULoadThres *= 100
		st.ExitCPULoadThres *= 100
		st.EnterGfxLoadThres *= 100
		st.ExitSystemLoadHyst *= 100

		valid++
	}

	c.profilesEnabled = valid >= 2
	if !c.profilesEnabled && len(c.States) > 0 {
		logger.Info("too few valid config states, profile matching disabled", "valid", valid)
	}
}

// ProfilesEnabled reports whether enough valid states survived
// validation for the profile matcher to run.
func (c *Config) ProfilesEnabled() bool { return c.profilesEnabled }
