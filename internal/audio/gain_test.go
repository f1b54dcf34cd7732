package audio

import (
	"math"
	"testing"
)

func TestParseGainInvalid(t *testing.T) {
	bad := []string{"db", "-db", "+db", "+", "-", "", ".", "1..", "0x2", "-0.5"}
	for _, s := range bad {
		if _, err := ParseGain(s); err == nil {
			t.Errorf("ParseGain(%q): expected error", s)
		}
	}
}

func TestParseGainValid(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		tol  float64
	}{
		{"0.5", 0.5, 0.01},
		{".5", 0.5, 0.01},
		{"2.5", 2.5, 0.01},
		{"6db", 2.0, 0.01},
		{"+6db", 2.0, 0.01},
		{"-6db", 0.5, 0.01},
		{"+12db", 4.0, 0.10},
		{"-12db", 0.25, 0.01},
	}
	for _, tt := range tests {
		got, err := ParseGain(tt.in)
		if err != nil {
			t.Errorf("ParseGain(%q): %v", tt.in, err)
			continue
		}
		if math.Abs(float64(got)-tt.want) > tt.tol {
			t.Errorf("ParseGain(%q) = %v, want %v ± %v", tt.in, got, tt.want, tt.tol)
		}
	}
}

func TestGainRoundTrip(t *testing.T) {
	if got := ScalarToDb(DbToScalar(-6)); math.Abs(float64(got)+6) > 0.001 {
		t.Errorf("ScalarToDb(DbToScalar(-6)) = %v", got)
	}
}
