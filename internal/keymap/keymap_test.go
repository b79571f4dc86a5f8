package keymap

import (
	"math"
	"testing"
)

func TestPitchFactor(t *testing.T) {
	tests := []struct {
		semitones float64
		want      float64
	}{
		{0, 1.0},
		{12, 1.5},
		{-12, 0.5},
		{7, math.Pow(2, 7.0/12)},
		{8, 1.5},
		{-6, math.Pow(2, -0.5)},
		{24, 1.5},
		{-24, 0.5},
	}
	for _, tt := range tests {
		got := PitchFactor(tt.semitones)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PitchFactor(%v) = %v, want %v", tt.semitones, got, tt.want)
		}
		if got < MinPitchFactor || got > MaxPitchFactor {
			t.Errorf("PitchFactor(%v) = %v outside [%v, %v]", tt.semitones, got, MinPitchFactor, MaxPitchFactor)
		}
	}
}

func TestSemitonesForKey(t *testing.T) {
	tests := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"C", 0, true},
		{"G", 7, true},
		{"B", 11, true},
		{"Am", 6, true},
		{"Cm", -3, true},
		{"C#m", -2, true},
		{" D ", 2, true},
		{"H", 0, false},
		{"", 0, false},
		{"Dbm", 0, false},
	}
	for _, tt := range tests {
		got, ok := SemitonesForKey(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("SemitonesForKey(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestKeyIndexRoundTrip(t *testing.T) {
	for i, k := range Keys {
		if KeyIndex(k) != i {
			t.Errorf("KeyIndex(%q) = %d, want %d", k, KeyIndex(k), i)
		}
		if KeyByIndex(i) != k {
			t.Errorf("KeyByIndex(%d) = %q, want %q", i, KeyByIndex(i), k)
		}
	}
	if len(Keys) != 24 {
		t.Errorf("Expected 24 keys, got %d", len(Keys))
	}
}

func TestKeyFallbacks(t *testing.T) {
	if KeyIndex("X#") != 0 {
		t.Errorf("Expected unknown key index 0, got %d", KeyIndex("X#"))
	}
	if KeyByIndex(-1) != "C" || KeyByIndex(len(Keys)) != "C" {
		t.Error("Expected out-of-range index to fall back to C")
	}
}

func TestClampSemitones(t *testing.T) {
	for in, want := range map[int]int{-9: -6, -6: -6, 0: 0, 5: 5, 6: 6, 12: 6} {
		if got := ClampSemitones(in); got != want {
			t.Errorf("ClampSemitones(%d) = %d, want %d", in, got, want)
		}
	}
}
