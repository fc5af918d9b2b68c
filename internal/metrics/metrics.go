// Package metrics turns the per-epoch authority trace into availability and
// recovery statistics and one frozen failure label. Every function here is a
// pure function of the trace.
package metrics

import (
	"math"
	"sort"
	"strconv"

	"regent/internal/detrand"
)

// Trace is AUTH(epoch) for epochs 0..len-1: true when someone held authority.
type Trace []bool

// Tail window constants. They are not configurable.
const (
	TailWindowFloor   = 5000
	TailWindowDivisor = 5
)

// TailWindow is the AAA window for a horizon: max(5000, horizon/5).
func TailWindow(horizon uint64) uint64 {
	w := horizon / TailWindowDivisor
	if w < TailWindowFloor {
		w = TailWindowFloor
	}
	return w
}

// effectiveTail is the part of the tail window that lies inside the horizon.
func effectiveTail(horizon uint64) uint64 {
	w := TailWindow(horizon)
	if w > horizon {
		return horizon
	}
	return w
}

// RTDBounds are the frozen upper bounds of the recovery-time buckets. The last
// bucket is unbounded.
var RTDBounds = [...]uint64{1, 2, 3, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, math.MaxUint64}

// NumRTDBuckets is the number of RTD buckets.
const NumRTDBuckets = len(RTDBounds)

// RTD is a histogram of closed lapse lengths.
type RTD [NumRTDBuckets]uint64

// BucketFor returns the index of the bucket holding a lapse of length n.
func BucketFor(n uint64) int {
	return sort.Search(NumRTDBuckets, func(i int) bool { return n <= RTDBounds[i] })
}

// BucketLabel returns the bucket's upper bound, or "INF" for the last one.
func BucketLabel(i int) string {
	if i == NumRTDBuckets-1 {
		return "INF"
	}
	return strconv.FormatUint(RTDBounds[i], 10)
}

// Total returns the number of lapses in the histogram.
func (r RTD) Total() uint64 {
	var n uint64
	for _, c := range r {
		n += c
	}
	return n
}

// Lapse is a maximal run of NullAuthority epochs.
type Lapse struct {
	Start  uint64 `json:"start"`
	Length uint64 `json:"length"`
	// Closed is false when the lapse was still open at the end of the horizon.
	Closed bool `json:"closed"`
}

// Lapses extracts every lapse interval from the trace in order.
func Lapses(tr Trace) []Lapse {
	var (
		out  []Lapse
		open bool
		cur  Lapse
	)
	for i, auth := range tr {
		switch {
		case !auth && !open:
			open = true
			cur = Lapse{Start: uint64(i), Length: 1}
		case !auth:
			cur.Length++
		case open:
			cur.Closed = true
			out = append(out, cur)
			open = false
		}
	}
	if open {
		out = append(out, cur)
	}
	return out
}

// Summary is the derived, read-only view of one run's trace.
type Summary struct {
	HorizonEpochs        uint64 `json:"horizon_epochs"`
	AuthorityEpochs      uint64 `json:"authority_epochs"`
	AAPPM                uint32 `json:"aa_ppm"`
	AAAPPM               uint32 `json:"aaa_ppm"`
	AAAWindowEpochs      uint64 `json:"aaa_window_epochs"`
	RTD                  RTD    `json:"rtd"`
	LapseCount           uint64 `json:"lapse_count"`
	TotalLapseEpochs     uint64 `json:"total_lapse_epochs"`
	MaxSingleLapseEpochs uint64 `json:"max_single_lapse_epochs"`
	TerminalLapseEpochs  uint64 `json:"terminal_lapse_epochs"`
	TailLapseEntries     uint64 `json:"tail_lapse_entries"`
	MedianLapseEpochs    uint64 `json:"median_lapse_epochs"`
	FailureClass         Class  `json:"failure_class"`
}

// Summarize computes every run-level statistic and the failure class.
// LapseCount and RTD cover closed lapses only; a lapse still open at the
// horizon is reported as TerminalLapseEpochs.
func Summarize(tr Trace) Summary {
	h := uint64(len(tr))
	s := Summary{HorizonEpochs: h, AAAWindowEpochs: TailWindow(h)}

	for _, auth := range tr {
		if auth {
			s.AuthorityEpochs++
		}
	}
	s.AAPPM = detrand.Rate(s.AuthorityEpochs, h)

	tail := effectiveTail(h)
	tailStart := h - tail
	var tailAuth uint64
	for _, auth := range tr[tailStart:] {
		if auth {
			tailAuth++
		}
	}
	s.AAAPPM = detrand.Rate(tailAuth, tail)

	var closed []uint64
	for _, l := range Lapses(tr) {
		s.TotalLapseEpochs += l.Length
		if l.Start >= tailStart {
			s.TailLapseEntries++
		}
		if !l.Closed {
			s.TerminalLapseEpochs = l.Length
			continue
		}
		closed = append(closed, l.Length)
		s.RTD[BucketFor(l.Length)]++
		if l.Length > s.MaxSingleLapseEpochs {
			s.MaxSingleLapseEpochs = l.Length
		}
	}
	s.LapseCount = uint64(len(closed))
	if len(closed) > 0 {
		sort.Slice(closed, func(i, j int) bool { return closed[i] < closed[j] })
		s.MedianLapseEpochs = closed[len(closed)/2]
	}

	s.FailureClass = Classify(s)
	return s
}
