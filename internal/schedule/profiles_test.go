package schedule

import (
	"testing"
	"time"
)

func TestLoadKnownEnvironments(t *testing.T) {
	tests := []struct {
		env          string
		wantInterval time.Duration
	}{
		{"dev", time.Minute},
		{"test", 30 * time.Second},
		{"prod", 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			p, err := Load(tt.env)
			if err != nil {
				t.Fatalf("Load(%q) failed: %v", tt.env, err)
			}
			if p.SweepInterval != tt.wantInterval {
				t.Errorf("SweepInterval = %v, want %v", p.SweepInterval, tt.wantInterval)
			}
			if p.NudgeBacklog <= 0 {
				t.Errorf("NudgeBacklog = %d, want positive", p.NudgeBacklog)
			}
		})
	}
}

func TestLoadUnknownEnvironmentFallsBackToDev(t *testing.T) {
	p, err := Load("staging")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dev, err := Load("dev")
	if err != nil {
		t.Fatalf("Load(dev) failed: %v", err)
	}
	if p.SweepInterval != dev.SweepInterval {
		t.Errorf("fallback SweepInterval = %v, want dev %v", p.SweepInterval, dev.SweepInterval)
	}
}
