// Package schedule holds the detector's per-environment cadence profiles,
// loaded from an embedded YAML file at startup.
package schedule

import (
	"embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Profile is one environment's detector cadence.
type Profile struct {
	// SweepInterval is the gap between full detection passes.
	SweepInterval time.Duration
	// InitialDelay postpones the first pass after startup.
	InitialDelay time.Duration
	// NudgeBacklog bounds the queue of opportunistic single-node checks.
	NudgeBacklog int
}

// UnmarshalYAML parses durations from Go duration strings ("30m", "5s").
func (p *Profile) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		SweepInterval string `yaml:"sweep_interval"`
		InitialDelay  string `yaml:"initial_delay"`
		NudgeBacklog  int    `yaml:"nudge_backlog"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	var err error
	if raw.SweepInterval != "" {
		if p.SweepInterval, err = time.ParseDuration(raw.SweepInterval); err != nil {
			return fmt.Errorf("sweep_interval: %w", err)
		}
	}
	if raw.InitialDelay != "" {
		if p.InitialDelay, err = time.ParseDuration(raw.InitialDelay); err != nil {
			return fmt.Errorf("initial_delay: %w", err)
		}
	}
	p.NudgeBacklog = raw.NudgeBacklog
	return nil
}

type profilesFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load returns the profile for the given environment, falling back to the
// dev profile for unknown environments.
func Load(environment string) (*Profile, error) {
	data, err := configFiles.ReadFile("config/profiles.yaml")
	if err != nil {
		return nil, fmt.Errorf("read schedule profiles: %w", err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal schedule profiles: %w", err)
	}

	profile, ok := file.Profiles[environment]
	if !ok {
		profile, ok = file.Profiles["dev"]
		if !ok {
			return nil, fmt.Errorf("no schedule profile for %q and no dev fallback", environment)
		}
	}

	if profile.SweepInterval <= 0 {
		return nil, fmt.Errorf("schedule profile %q: sweep_interval must be positive", environment)
	}
	if profile.NudgeBacklog <= 0 {
		profile.NudgeBacklog = 64
	}
	return &profile, nil
}
