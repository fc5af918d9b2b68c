// Package telemetry exposes experiment results as Prometheus metrics. Each
// experiment gets its own registry; nothing is registered globally.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"regent/internal/experiment"
	"regent/internal/interference"
	"regent/internal/kernel"
	"regent/internal/metrics"
)

const namespace = "regent"

// lapseBuckets are the finite RTD bounds; +Inf is implicit.
func lapseBuckets() []float64 {
	out := make([]float64, 0, metrics.NumRTDBuckets-1)
	for _, b := range metrics.RTDBounds[:metrics.NumRTDBuckets-1] {
		out = append(out, float64(b))
	}
	return out
}

// Collector holds the metrics of one experiment.
type Collector struct {
	reg *prometheus.Registry

	runs            *prometheus.CounterVec
	epochs          prometheus.Counter
	authorityEpochs prometheus.Counter
	targets         *prometheus.CounterVec
	flips           *prometheus.CounterVec
	lapseLength     prometheus.Histogram
	aa              *prometheus.GaugeVec
	aaa             *prometheus.GaugeVec
}

// New returns a collector whose series carry the experiment name.
func New(experimentName string) *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"experiment": experimentName}, reg))
	return &Collector{
		reg: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by status and failure class",
		}, []string{"status", "class"}),
		epochs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Epochs simulated by valid runs",
		}),
		authorityEpochs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authority_epochs_total",
			Help:      "Epochs with an authority holder in valid runs",
		}),
		targets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interference",
			Name:      "targets_total",
			Help:      "Interference targets evaluated, by target",
		}, []string{"target"}),
		flips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interference",
			Name:      "flips_total",
			Help:      "Interference flips applied, by target",
		}, []string{"target"}),
		lapseLength: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lapse_length_epochs",
			Help:      "Closed lapse lengths on the frozen RTD bounds",
			Buckets:   lapseBuckets(),
		}),
		aa: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aa_ppm",
			Help:      "Authority availability per seed, parts per million",
		}, []string{"seed"}),
		aaa: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aaa_ppm",
			Help:      "Asymptotic authority availability per seed, parts per million",
		}, []string{"seed"}),
	}
}

// Registry returns the experiment's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// ObserveRun records one run. Metrics of invalid runs are never observed;
// only their status and interference counters are.
func (c *Collector) ObserveRun(r *kernel.RunResult) {
	class := ""
	if r.Summary != nil {
		class = string(r.Summary.FailureClass)
	}
	c.runs.WithLabelValues(string(r.Status), class).Inc()
	for t := 0; t < interference.NumTargets; t++ {
		name := interference.TargetName(t)
		c.targets.WithLabelValues(name).Add(float64(r.Interference.TargetsByKey[t]))
		c.flips.WithLabelValues(name).Add(float64(r.Interference.FlipsByKey[t]))
	}
	if !r.Valid() || r.Summary == nil {
		return
	}
	s := r.Summary
	c.epochs.Add(float64(s.HorizonEpochs))
	c.authorityEpochs.Add(float64(s.AuthorityEpochs))
	seed := fmt.Sprint(r.Seed)
	c.aa.WithLabelValues(seed).Set(float64(s.AAPPM))
	c.aaa.WithLabelValues(seed).Set(float64(s.AAAPPM))
	for _, l := range r.Lapses {
		if l.Closed {
			c.lapseLength.Observe(float64(l.Length))
		}
	}
}

// ObserveResult records every run of an experiment.
func (c *Collector) ObserveResult(res *experiment.Result) {
	for _, r := range res.Runs {
		c.ObserveRun(r)
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
