package trust

import (
	"errors"
	"math"
	"testing"
)

func TestUpdateScore(t *testing.T) {
	tests := []struct {
		name        string
		current     float64
		senderTrust float64
		alpha       float64
		feedback    float64
		want        float64
	}{
		{"positive feedback from fully trusted sender", 1.0, 1.0, 0.1, 0.3, 1.03},
		{"negative feedback from fully trusted sender", 1.0, 1.0, 0.1, -0.5, 0.95},
		{"sender trust scales the signal", 1.0, 0.5, 0.1, 0.4, 1.02},
		{"zero sender trust ignores feedback", 0.7, 0.0, 0.1, 0.9, 0.7},
		{"negative sender trust inverts feedback", 1.0, -1.0, 0.1, 0.2, 0.98},
		{"not clamped above one", 1.0, 1.0, 1.0, 0.5, 1.5},
		{"not clamped below zero", 0.01, 1.0, 1.0, -0.5, -0.49},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpdateScore(tt.current, tt.senderTrust, tt.alpha, tt.feedback)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("UpdateScore(%f, %f, %f, %f) = %f, want %f", tt.current, tt.senderTrust, tt.alpha, tt.feedback, got, tt.want)
			}
		})
	}
}

func TestUpdateScore_ZeroFeedbackIsNoop(t *testing.T) {
	if got := UpdateScore(0.42, 3.0, 0.5, 0); got != 0.42 {
		t.Errorf("expected unchanged score 0.42, got %f", got)
	}
}

func TestValidAlpha(t *testing.T) {
	tests := []struct {
		alpha float64
		want  bool
	}{
		{0.1, true},
		{1.0, true},
		{0.0, false},
		{-0.1, false},
		{1.01, false},
	}

	for _, tt := range tests {
		if got := ValidAlpha(tt.alpha); got != tt.want {
			t.Errorf("ValidAlpha(%f) = %v, want %v", tt.alpha, got, tt.want)
		}
	}
}

func TestTableGetDefaults(t *testing.T) {
	tbl := Table{1: 0.4}
	if got := tbl.Get(1); got != 0.4 {
		t.Errorf("expected stored 0.4, got %f", got)
	}
	if got := tbl.Get(7); got != DefaultScore {
		t.Errorf("expected default %f for unknown id, got %f", DefaultScore, got)
	}
	if _, ok := tbl[7]; ok {
		t.Error("Get must not create entries")
	}
}

func TestTableCloneIsIndependent(t *testing.T) {
	tbl := Table{1: 0.5, 2: 0.9}
	cp := tbl.Clone()
	cp[1] = 0.0
	if tbl[1] != 0.5 {
		t.Errorf("clone mutation leaked into original: %f", tbl[1])
	}

	var nilTable Table
	if got := nilTable.Clone(); got == nil {
		t.Error("clone of nil table should be an empty, writable table")
	}
}

func TestTableKeysSorted(t *testing.T) {
	tbl := Table{5: 1, 2: 1, 9: 1, 0: 1}
	keys := tbl.Keys()
	want := []NodeID{0, 2, 5, 9}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %d, want %d", i, keys[i], want[i])
		}
	}
}

func TestTableMean(t *testing.T) {
	if got := (Table{}).Mean(); got != DefaultScore {
		t.Errorf("empty mean = %f, want %f", got, DefaultScore)
	}
	if got := (Table{1: 0.5, 2: 1.5}).Mean(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("mean = %f, want 1.0", got)
	}
}

func TestDelta(t *testing.T) {
	before := Table{1: 1.0}
	after := Table{1: 1.2, 2: 0.9}
	d := Delta(before, after)
	if math.Abs(d[1]-0.2) > 1e-9 {
		t.Errorf("delta[1] = %f, want 0.2", d[1])
	}
	// 2 was not in before, so it counts from the default of 1.0
	if math.Abs(d[2]+0.1) > 1e-9 {
		t.Errorf("delta[2] = %f, want -0.1", d[2])
	}
}

func TestConfigErrorWrapsSentinel(t *testing.T) {
	err := Invalid("topology", "ring", "unsupported topology")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatal("expected errors.Is(err, ErrConfiguration)")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatal("expected errors.As to find *ConfigError")
	}
	if cfgErr.Field != "topology" {
		t.Errorf("expected field topology, got %q", cfgErr.Field)
	}
	want := "configuration error: topology=ring: unsupported topology"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
