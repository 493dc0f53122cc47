package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/bft-labs/keel/internal/cliconfig"
)

func TestOwnedTrees(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cliconfig.Config)
		want   []string
	}{
		{
			name:   "default layout is one tree",
			mutate: func(c *cliconfig.Config) {},
			want:   []string{"/app"},
		},
		{
			name:   "state dir outside app dir",
			mutate: func(c *cliconfig.Config) { c.StateDir = "/var/lib/keel" },
			want:   []string{"/app", "/var/lib/keel"},
		},
		{
			name:   "sibling with common prefix",
			mutate: func(c *cliconfig.Config) { c.SourceDir = "/application/src" },
			want:   []string{"/app", "/application/src"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cliconfig.DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}
			if got := ownedTrees(cfg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ownedTrees() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthSettings(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	cfg.HealthRetries = 7

	s := healthSettings(cfg)
	if s.Interval != 30*time.Second || s.Timeout != 10*time.Second || s.StartPeriod != 5*time.Second || s.Retries != 7 {
		t.Errorf("healthSettings() = %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
