package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/surropt/surropt/internal/param"
)

func unitBounds(t *testing.T) *param.Bounds {
	t.Helper()

	b, err := param.NewBounds(
		param.Spec{Name: "x", Lower: 0, Upper: 1, Kind: param.Continuous},
	)
	if err != nil {
		t.Fatalf("NewBounds failed: %v", err)
	}
	return b
}

func baseConfig(t *testing.T) Config {
	t.Helper()

	cfg := Config{
		Bounds: unitBounds(t),
		Objective: func(_ context.Context, x []float64) (Result, error) {
			return Result{Score: x[0]}, nil
		},
		TargetEvals: 10,
		Initialize:  true,
		InitPoints:  4,
	}
	cfg.withDefaults()
	return cfg
}

func TestWithDefaultsPreservesExplicitZeroes(t *testing.T) {
	zero := 0.0
	cfg := Config{Kappa: &zero, Seed: 0}
	cfg.withDefaults()

	if *cfg.Kappa != 0 {
		t.Errorf("explicit zero kappa was overwritten to %g", *cfg.Kappa)
	}
	if cfg.Seed != 0 {
		t.Errorf("seed 0 was overwritten to %d", cfg.Seed)
	}

	unset := Config{}
	unset.withDefaults()
	if unset.Kappa == nil || *unset.Kappa != 2.576 {
		t.Error("unset kappa must default to 2.576")
	}
}

func TestValidateAcceptsBaseConfig(t *testing.T) {
	cfg := baseConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing bounds", func(c *Config) { c.Bounds = nil }},
		{"missing objective", func(c *Config) { c.Objective = nil }},
		{"non-positive target", func(c *Config) { c.TargetEvals = 0 }},
		{"unknown acquisition", func(c *Config) { c.Acquisition = "thompson" }},
		{"unknown replacement", func(c *Config) {
			c.Switch = &SwitchRule{Threshold: 5, Replacement: "nope"}
		}},
		{"unknown strategy", func(c *Config) { c.SearchStrategy = "annealing" }},
		{"no init and no resume", func(c *Config) { c.Initialize = false }},
		{"init without points or grid", func(c *Config) { c.InitPoints = 0 }},
		{"grid and points together", func(c *Config) {
			c.InitGrid = [][]float64{{0.5}}
		}},
		{"parallel without workers", func(c *Config) { c.Parallel = true }},
		{"target already met", func(c *Config) { c.TargetEvals = 4 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig(t)
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestValidateGridOutOfBounds(t *testing.T) {
	cfg := baseConfig(t)
	cfg.InitPoints = 0
	cfg.InitGrid = [][]float64{{0.5}, {2.5}}

	err := cfg.Validate()
	var be *BoundsError
	if !errors.As(err, &be) {
		t.Fatalf("expected BoundsError, got %v", err)
	}
	if be.Row != 1 {
		t.Errorf("expected row 1 flagged, got %d", be.Row)
	}
}

func TestValidateResumeOutOfBounds(t *testing.T) {
	resumed := NewLog([]string{"x"})
	if err := resumed.AppendBatch([]Observation{obsRow(0, []float64{5}, 1, nil)}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	cfg := baseConfig(t)
	cfg.Resume = resumed

	err := cfg.Validate()
	var be *BoundsError
	if !errors.As(err, &be) {
		t.Fatalf("expected BoundsError, got %v", err)
	}
}

func TestValidateResumePlusPlannedMeetsTarget(t *testing.T) {
	resumed := NewLog([]string{"x"})
	batch := []Observation{
		obsRow(0, []float64{0.1}, 1, nil),
		obsRow(0, []float64{0.2}, 2, nil),
	}
	if err := resumed.AppendBatch(batch); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	cfg := baseConfig(t)
	cfg.Resume = resumed
	cfg.TargetEvals = 6 // 4 planned + 2 resumed

	var ce *ConfigError
	if !errors.As(cfg.Validate(), &ce) {
		t.Fatal("expected ConfigError when resumed plus planned reaches the target")
	}
}
