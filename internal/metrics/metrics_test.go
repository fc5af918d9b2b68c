package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"regent/internal/detrand"
)

// parse builds a trace from "1"/"0" characters; other runes are ignored.
func parse(s string) Trace {
	var tr Trace
	for _, r := range s {
		switch r {
		case '1':
			tr = append(tr, true)
		case '0':
			tr = append(tr, false)
		}
	}
	return tr
}

func repeat(s string, n int) string { return strings.Repeat(s, n) }

func TestTailWindow(t *testing.T) {
	tests := []struct {
		horizon, want uint64
	}{
		{200, 5000},
		{25_000, 5000},
		{30_000, 6000},
		{100_000, 20_000},
	}
	for _, tt := range tests {
		if got := TailWindow(tt.horizon); got != tt.want {
			t.Errorf("TailWindow(%d) = %d, want %d", tt.horizon, got, tt.want)
		}
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		n    uint64
		want int
	}{
		{1, 0}, {2, 1}, {3, 2}, {4, 3}, {5, 3}, {6, 4}, {10, 4}, {11, 5},
		{5000, 12}, {5001, 13}, {math.MaxUint64, 13},
	}
	for _, tt := range tests {
		if got := BucketFor(tt.n); got != tt.want {
			t.Errorf("BucketFor(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
	if BucketLabel(0) != "1" || BucketLabel(NumRTDBuckets-1) != "INF" {
		t.Error("bucket labels wrong")
	}
}

func TestLapses(t *testing.T) {
	got := Lapses(parse("1100111000100"))
	want := []Lapse{
		{Start: 2, Length: 2, Closed: true},
		{Start: 7, Length: 3, Closed: true},
		{Start: 11, Length: 2, Closed: false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Lapses (-want +got):\n%s", diff)
	}
}

func TestSummarize_Small(t *testing.T) {
	s := Summarize(parse("11001110001"))
	var rtd RTD
	rtd[1], rtd[2] = 1, 1
	want := Summary{
		HorizonEpochs:        11,
		AuthorityEpochs:      6,
		AAPPM:                545_454,
		AAAPPM:               545_454,
		AAAWindowEpochs:      5000,
		RTD:                  rtd,
		LapseCount:           2,
		TotalLapseEpochs:     5,
		MaxSingleLapseEpochs: 3,
		TailLapseEntries:     2,
		MedianLapseEpochs:    3,
		FailureClass:         ClassBounded,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Summarize (-want +got):\n%s", diff)
	}
}

func TestSummarize_OpenLapseExcludedFromRTD(t *testing.T) {
	s := Summarize(parse("1101000"))
	if s.LapseCount != 1 || s.RTD.Total() != 1 {
		t.Errorf("LapseCount = %d, RTD total = %d; want 1", s.LapseCount, s.RTD.Total())
	}
	if s.TerminalLapseEpochs != 3 || s.TotalLapseEpochs != 4 {
		t.Errorf("terminal = %d, total = %d", s.TerminalLapseEpochs, s.TotalLapseEpochs)
	}
}

func TestSummarize_RTDSumEqualsLapseCount(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		tr := make(Trace, 3000)
		auth := true
		for i := range tr {
			// Switch state with ~3% probability per epoch.
			if detrand.Flip(seed, uint64(i), 0, 0, 30_000) {
				auth = !auth
			}
			tr[i] = auth
		}
		s := Summarize(tr)
		if s.RTD.Total() != s.LapseCount {
			t.Fatalf("seed %d: RTD total %d != lapse count %d", seed, s.RTD.Total(), s.LapseCount)
		}
		if s.AAPPM > 1_000_000 || s.AAAPPM > 1_000_000 {
			t.Fatalf("seed %d: ppm out of range: %d %d", seed, s.AAPPM, s.AAAPPM)
		}
		if s.AAAWindowEpochs != TailWindow(3000) {
			t.Fatalf("seed %d: window %d", seed, s.AAAWindowEpochs)
		}
	}
}

func TestClassify_Precedence(t *testing.T) {
	// Horizon 30000 puts the tail window at the last 6000 epochs.
	head := repeat("1", 24_000)
	tests := []struct {
		name  string
		trace string
		want  Class
	}{
		{"stable", repeat("1", 30_000), ClassStable},
		{"terminal collapse", repeat("1", 20_000) + repeat("0", 10_000), ClassTerminal},
		{"asymptotic dos", head + repeat(repeat("0", 19)+"1", 300), ClassDoS},
		{"structural thrashing", head + repeat("0", 2000) + repeat("1011", 1000), ClassThrashing},
		{"bounded degradation", head + repeat("1011", 1500), ClassBounded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := parse(tt.trace)
			if len(tr) != 30_000 {
				t.Fatalf("fixture length %d", len(tr))
			}
			s := Summarize(tr)
			if s.FailureClass != tt.want {
				t.Errorf("class = %s, want %s (AA=%d AAA=%d lapses=%d max=%d median=%d tail=%d)",
					s.FailureClass, tt.want, s.AAPPM, s.AAAPPM, s.LapseCount,
					s.MaxSingleLapseEpochs, s.MedianLapseEpochs, s.TailLapseEntries)
			}
		})
	}
}

func TestClassify_TerminalIndependentOfHorizon(t *testing.T) {
	// Authority is lost for good after epoch 29.
	for _, h := range []int{200, 5000, 10_000, 30_000} {
		tr := parse(repeat("1", 30) + repeat("0", h-30))
		if got := Summarize(tr).FailureClass; got != ClassTerminal {
			t.Errorf("horizon %d: class = %s, want %s", h, got, ClassTerminal)
		}
	}
}

func TestTerminalThreshold(t *testing.T) {
	tests := []struct {
		horizon uint64
		want    uint64
	}{
		{1, 1},
		{7, 4},
		{200, 100},
		{5000, 2500},
		{30_000, 3000},
	}
	for _, tt := range tests {
		if got := TerminalThreshold(tt.horizon); got != tt.want {
			t.Errorf("TerminalThreshold(%d) = %d, want %d", tt.horizon, got, tt.want)
		}
	}
}

func TestClassify_ShortOpenLapseNotTerminal(t *testing.T) {
	// 99 open lapse epochs at H=200 stay below the threshold of 100.
	s := Summarize(parse(repeat("1", 101) + repeat("0", 99)))
	if s.FailureClass == ClassTerminal {
		t.Errorf("open lapse of %d epochs at H=200 classified terminal", s.TerminalLapseEpochs)
	}
}

func TestDescribeLapses(t *testing.T) {
	ls := []Lapse{
		{Length: 1, Closed: true},
		{Length: 2, Closed: true},
		{Length: 3, Closed: true},
		{Length: 4, Closed: true},
		{Length: 100, Closed: false},
	}
	st, err := DescribeLapses(ls)
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 4 || st.Mean != 2.5 || st.Median != 2.5 {
		t.Errorf("stats = %+v", st)
	}
	empty, err := DescribeLapses(nil)
	if err != nil || empty.Count != 0 {
		t.Errorf("empty stats = %+v, %v", empty, err)
	}
}
