package verifier

import (
	"errors"
	"testing"

	"regent/internal/candidate"
)

func TestAll(t *testing.T) {
	tests := []struct {
		keys [NumKeys]bool
		want bool
	}{
		{[NumKeys]bool{true, true, true}, true},
		{[NumKeys]bool{true, false, true}, false},
		{[NumKeys]bool{false, false, false}, false},
	}
	for _, tt := range tests {
		if got := All(tt.keys); got != tt.want {
			t.Errorf("All(%v) = %v, want %v", tt.keys, got, tt.want)
		}
	}
}

func TestParseKey(t *testing.T) {
	for k := Key(0); k < NumKeys; k++ {
		got, err := ParseKey(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKey(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKey("C3"); err == nil {
		t.Error("expected error for C3")
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	s, err := NewSynthetic(99, [NumKeys]uint32{900_000, 800_000, 950_000}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for e := uint64(0); e < 500; e++ {
		a := s.Evaluate("alpha", e)
		b := s.Evaluate("alpha", e)
		if a.Keys != b.Keys {
			t.Fatalf("epoch %d: %v != %v", e, a.Keys, b.Keys)
		}
		if a.SemPass() != All(a.Keys) {
			t.Fatalf("epoch %d: SemPass disagrees with All", e)
		}
	}
}

func TestSynthetic_Overrides(t *testing.T) {
	s, err := NewSynthetic(1, [NumKeys]uint32{1_000_000, 1_000_000, 1_000_000},
		map[candidate.ID][NumKeys]uint32{"weak": {0, 1_000_000, 1_000_000}})
	if err != nil {
		t.Fatal(err)
	}
	for e := uint64(0); e < 100; e++ {
		if !s.Evaluate("strong", e).SemPass() {
			t.Fatalf("strong failed at epoch %d", e)
		}
		if s.Evaluate("weak", e).Keys[C0] {
			t.Fatalf("weak passed C0 at epoch %d", e)
		}
	}
}

func TestSynthetic_RejectsRateAboveScale(t *testing.T) {
	if _, err := NewSynthetic(1, [NumKeys]uint32{1_000_001, 0, 0}, nil); err == nil {
		t.Error("expected error")
	}
}

func TestSynthetic_AggregatePassPPM(t *testing.T) {
	s, _ := NewSynthetic(1, [NumKeys]uint32{500_000, 500_000, 1_000_000}, nil)
	if got := s.AggregatePassPPM("x"); got != 250_000 {
		t.Errorf("AggregatePassPPM = %d, want 250000", got)
	}
}

func TestSynthetic_Calibrate(t *testing.T) {
	ok, _ := NewSynthetic(1, [NumKeys]uint32{900_000, 900_000, 900_000}, nil)
	if err := ok.Calibrate([]candidate.ID{"a", "b"}); err != nil {
		t.Errorf("Calibrate: %v", err)
	}

	always, _ := NewSynthetic(1, [NumKeys]uint32{1_000_000, 1_000_000, 1_000_000}, nil)
	if err := always.Calibrate([]candidate.ID{"a"}); !errors.Is(err, ErrMiscalibrated) {
		t.Errorf("always-pass: err = %v, want ErrMiscalibrated", err)
	}

	never, _ := NewSynthetic(1, [NumKeys]uint32{900_000, 900_000, 900_000},
		map[candidate.ID][NumKeys]uint32{"b": {900_000, 0, 900_000}})
	if err := never.Calibrate([]candidate.ID{"a", "b"}); !errors.Is(err, ErrMiscalibrated) {
		t.Errorf("never-pass: err = %v, want ErrMiscalibrated", err)
	}
}
