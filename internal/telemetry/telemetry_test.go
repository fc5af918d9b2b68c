package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"regent/internal/kernel"
	"regent/internal/metrics"
)

func TestObserveRun(t *testing.T) {
	c := New("unit")
	tr := metrics.Trace{true, false, false, true, false, true, true}
	sum := metrics.Summarize(tr)
	valid := &kernel.RunResult{Seed: 1, Status: kernel.StatusValid, Summary: &sum, Lapses: metrics.Lapses(tr)}
	valid.Interference.TargetsByKey[1] = 7
	valid.Interference.FlipsByKey[1] = 2
	invalid := &kernel.RunResult{Seed: 2, Status: kernel.StatusInvalid, InvalidReason: "x"}

	c.ObserveRun(valid)
	c.ObserveRun(invalid)

	if got := testutil.ToFloat64(c.runs.WithLabelValues("VALID", string(sum.FailureClass))); got != 1 {
		t.Errorf("valid runs = %v", got)
	}
	if got := testutil.ToFloat64(c.runs.WithLabelValues("INVALID_RUN", "")); got != 1 {
		t.Errorf("invalid runs = %v", got)
	}
	if got := testutil.ToFloat64(c.epochs); got != 7 {
		t.Errorf("epochs = %v, want 7 (invalid runs contribute none)", got)
	}
	if got := testutil.ToFloat64(c.authorityEpochs); got != 4 {
		t.Errorf("authority epochs = %v", got)
	}
	if got := testutil.ToFloat64(c.flips.WithLabelValues("C1")); got != 2 {
		t.Errorf("C1 flips = %v", got)
	}
	if got := testutil.ToFloat64(c.aa.WithLabelValues("1")); got != float64(sum.AAPPM) {
		t.Errorf("aa = %v, want %d", got, sum.AAPPM)
	}
	if n := testutil.CollectAndCount(c.aa); n != 1 {
		t.Errorf("aa series = %d, want 1", n)
	}
}

func TestWriteTextfile(t *testing.T) {
	c := New("textfile")
	sum := metrics.Summarize(metrics.Trace{true, true})
	c.ObserveRun(&kernel.RunResult{Seed: 9, Status: kernel.StatusValid, Summary: &sum})

	path := filepath.Join(t.TempDir(), "regent.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`regent_runs_total{class="STABLE_AUTHORITY",experiment="textfile",status="VALID"} 1`, "regent_lapse_length_epochs_bucket"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("missing %q in:\n%s", want, data)
		}
	}
}
