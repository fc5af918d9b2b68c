package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"regent/internal/experiment"
	"regent/internal/kernel"
)

// JSONLSink writes one JSON object per epoch record. It is safe for
// concurrent use; records of parallel seeds interleave line by line.
type JSONLSink struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

var _ kernel.Sink = (*JSONLSink)(nil)

// NewJSONLSink wraps w. Call Flush when the experiment is done.
func NewJSONLSink(w io.Writer) *JSONLSink {
	bw := bufio.NewWriter(w)
	return &JSONLSink{w: bw, enc: json.NewEncoder(bw)}
}

// RecordEpoch implements kernel.Sink.
func (s *JSONLSink) RecordEpoch(rec kernel.EpochRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode epoch %d seed %d: %w", rec.Epoch, rec.Seed, err)
	}
	return nil
}

// Flush writes buffered lines to the underlying writer.
func (s *JSONLSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// WriteJSON writes the experiment result with its totals as indented JSON.
func WriteJSON(w io.Writer, res *experiment.Result) error {
	out := struct {
		*experiment.Result
		Totals experiment.Totals `json:"totals"`
	}{res, res.Totals()}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// MultiSink fans each record out to every non-nil sink in order.
type MultiSink []kernel.Sink

// RecordEpoch implements kernel.Sink.
func (m MultiSink) RecordEpoch(rec kernel.EpochRecord) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.RecordEpoch(rec); err != nil {
			return err
		}
	}
	return nil
}
