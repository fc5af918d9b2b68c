package detrand

import "testing"

func TestHash_Stable(t *testing.T) {
	a := Hash(1, 2, 3)
	b := Hash(1, 2, 3)
	if a != b {
		t.Fatalf("Hash not stable: %d != %d", a, b)
	}
	if Hash(1, 2, 3) == Hash(3, 2, 1) {
		t.Error("Hash should depend on part order")
	}
}

func TestLabel_LengthPrefixed(t *testing.T) {
	if Hash(Label("ab"), Label("c")) == Hash(Label("a"), Label("bc")) {
		t.Error("label boundaries should change the hash")
	}
}

func TestDerive_SeparatesStreams(t *testing.T) {
	seed := uint64(42)
	cases := []uint64{
		Derive(seed, "interference", ""),
		Derive(seed, "interference", "alt"),
		Derive(seed, "selection", ""),
		Derive(seed, "verifier", ""),
	}
	seen := map[uint64]bool{}
	for _, c := range cases {
		if seen[c] {
			t.Fatalf("derived seeds collide: %v", cases)
		}
		seen[c] = true
	}
	if Derive(seed, "interference", "") != cases[0] {
		t.Error("Derive should be deterministic")
	}
}

func TestUniformPPM_Range(t *testing.T) {
	for e := uint64(0); e < 5000; e++ {
		if u := UniformPPM(7, e, 1, 2); u >= PPMScale {
			t.Fatalf("UniformPPM(%d) = %d, out of range", e, u)
		}
	}
}

func TestFlip_Extremes(t *testing.T) {
	for e := uint64(0); e < 1000; e++ {
		if Flip(9, e, 0, 0, 0) {
			t.Fatalf("p=0 flipped at epoch %d", e)
		}
		if !Flip(9, e, 0, 0, PPMScale) {
			t.Fatalf("p=1e6 did not flip at epoch %d", e)
		}
	}
}

func TestFlip_ApproximateRate(t *testing.T) {
	const n = 200_000
	flips := 0
	for e := uint64(0); e < n; e++ {
		if Flip(11, e, 3, 4, 250_000) {
			flips++
		}
	}
	rate := Rate(uint64(flips), n)
	if rate < 240_000 || rate > 260_000 {
		t.Errorf("observed rate %d ppm, want about 250000", rate)
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		num, den uint64
		want     uint32
	}{
		{0, 0, 0},
		{1, 4, 250_000},
		{5, 50, 100_000},
		{3, 3, 1_000_000},
	}
	for _, tt := range tests {
		if got := Rate(tt.num, tt.den); got != tt.want {
			t.Errorf("Rate(%d, %d) = %d, want %d", tt.num, tt.den, got, tt.want)
		}
	}
}
