package eligibility

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"regent/internal/candidate"
)

func newTracker(t *testing.T, k int, ids ...candidate.ID) *Tracker {
	t.Helper()
	tr, err := NewTracker(k, ids)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestNewTracker_RejectsZeroK(t *testing.T) {
	if _, err := NewTracker(0, nil); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestTracker_StreakAndEligibility(t *testing.T) {
	tr := newTracker(t, 3, "a", "b")
	seq := []struct {
		pass     bool
		streak   int
		eligible bool
	}{
		{false, 1, true},
		{false, 2, true},
		{true, 0, true},
		{false, 1, true},
		{false, 2, true},
		{false, 3, false},
		{false, 4, false},
		{true, 0, true},
	}
	for i, s := range seq {
		got := tr.Record("a", s.pass)
		if got != s.streak || tr.Eligible("a") != s.eligible {
			t.Fatalf("step %d: streak=%d eligible=%v, want %d/%v", i, got, tr.Eligible("a"), s.streak, s.eligible)
		}
	}
	if tr.streak("b") != 0 || !tr.Eligible("b") {
		t.Error("b was never evaluated and must stay eligible")
	}
}

func TestAmnesty_Validate(t *testing.T) {
	tests := []struct {
		name string
		a    Amnesty
		ok   bool
	}{
		{"disabled", Amnesty{}, true},
		{"ok", Amnesty{Enabled: true, Interval: 10, Decay: 1}, true},
		{"zero interval", Amnesty{Enabled: true, Decay: 1}, false},
		{"zero decay", Amnesty{Enabled: true, Interval: 10}, false},
	}
	for _, tt := range tests {
		if err := tt.a.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: err = %v", tt.name, err)
		}
	}
}

func TestAmnesty_TickDecaysOnlyIneligible(t *testing.T) {
	tr := newTracker(t, 3, "a", "b", "c")
	for i := 0; i < 5; i++ {
		tr.Record("a", false)
	}
	for i := 0; i < 3; i++ {
		tr.Record("b", false)
	}
	tr.Record("c", false)

	a := Amnesty{Enabled: true, Interval: 10, Decay: 1}
	if got := a.Tick(7, tr); got != nil {
		t.Fatalf("epoch 7 is not a tick; decayed %v", got)
	}
	got := a.Tick(20, tr)
	if diff := cmp.Diff([]candidate.ID{"a", "b"}, got); diff != "" {
		t.Errorf("decayed (-want +got):\n%s", diff)
	}
	want := map[candidate.ID]int{"a": 4, "b": 2, "c": 1}
	if diff := cmp.Diff(want, tr.streaks); diff != "" {
		t.Errorf("streaks (-want +got):\n%s", diff)
	}
	if !tr.Eligible("b") || tr.Eligible("a") {
		t.Error("b should recover, a should not")
	}
}

func TestAmnesty_FloorsAtZero(t *testing.T) {
	tr := newTracker(t, 1, "a")
	tr.Record("a", false)
	a := Amnesty{Enabled: true, Interval: 1, Decay: 5}
	a.Tick(0, tr)
	if tr.streak("a") != 0 {
		t.Errorf("streak = %d, want 0", tr.streak("a"))
	}
}

func TestAmnesty_DisabledNeverTicks(t *testing.T) {
	tr := newTracker(t, 1, "a")
	tr.Record("a", false)
	a := Amnesty{Enabled: false, Interval: 1, Decay: 1}
	for e := uint64(0); e < 50; e++ {
		if a.Tick(e, tr) != nil {
			t.Fatalf("disabled amnesty ticked at %d", e)
		}
	}
	if tr.streak("a") != 1 {
		t.Error("disabled amnesty changed a streak")
	}
}
