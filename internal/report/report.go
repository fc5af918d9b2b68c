// Package report renders experiment results for humans and machines.
package report

import (
	"fmt"
	"strings"

	"regent/internal/display"
	"regent/internal/experiment"
	"regent/internal/format"
	"regent/internal/interference"
	"regent/internal/lease"
	"regent/internal/metrics"
)

// digestWidth is how many hex characters of a trace digest are shown.
const digestWidth = 12

func shortDigest(d string) string {
	if len(d) > digestWidth {
		return d[:digestWidth]
	}
	return d
}

// FormatReport produces the human-readable experiment report.
func FormatReport(res *experiment.Result, mode format.Mode) string {
	var b strings.Builder
	exp := res.Experiment
	tot := res.Totals()

	b.WriteString("=== Regent Experiment Report ===\n")
	b.WriteString(fmt.Sprintf("Experiment:   %s (%s)\n", exp.Name, res.ID))
	b.WriteString(fmt.Sprintf("Interference: %s\n", describeInterference(exp.Interference)))
	b.WriteString(fmt.Sprintf("Horizon:      %d epochs (AAA window %d)\n", exp.Kernel.MaxCycles, metrics.TailWindow(exp.Kernel.MaxCycles)))
	b.WriteString(fmt.Sprintf("Seeds:        %d\n", len(exp.Seeds)))
	b.WriteString(fmt.Sprintf("Elapsed:      %s\n\n", format.Duration(res.Elapsed)))

	b.WriteString(runsTable(res, tot, mode))
	b.WriteString("\n")
	if tot.Valid > 0 {
		b.WriteString(classTable(tot, mode))
		b.WriteString("\n")
		b.WriteString(rtdTable(tot.RTD, mode))
		b.WriteString("\n")
		b.WriteString(transitionTable(res, mode))
		b.WriteString("\n")
	}
	if exp.Interference.Enabled {
		b.WriteString(interferenceTable(res, mode))
		b.WriteString("\n")
	}

	if tot.Invalid > 0 {
		b.WriteString("--- Invalid runs ---\n")
		for _, r := range res.Runs {
			if !r.Valid() {
				b.WriteString(fmt.Sprintf("seed %-6d %s\n", r.Seed, r.InvalidReason))
			}
		}
		b.WriteString("\n")
	}

	result := "PASS"
	if tot.Invalid > 0 {
		result = "INVALID"
	}
	b.WriteString(fmt.Sprintf("RESULT: %s (%d/%d runs valid)\n", result, tot.Valid, tot.Runs))
	return b.String()
}

func describeInterference(c interference.Config) string {
	if !c.Enabled {
		return display.Model("")
	}
	spec, err := interference.Build(c)
	if err != nil {
		return fmt.Sprintf("%s (invalid: %v)", display.Model(c.Model), err)
	}
	return fmt.Sprintf("%s, scope %s, stream %q", display.Model(c.Model), spec.Scope, spec.StreamLabel)
}

func runsTable(res *experiment.Result, tot experiment.Totals, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Title("Runs")
	tb.Header("Seed", "Status", "Class", "AA", "AAA", "Lapses", "Max lapse", "Terminal", "Flip rate", "Digest")
	for _, r := range res.Runs {
		digest := shortDigest(r.TraceDigest)
		flipRate := format.PPM(r.Interference.ObservedFlipRatePPM)
		if s := r.Summary; s != nil {
			tb.Row(r.Seed, display.Status(string(r.Status)), display.Class(string(s.FailureClass)),
				format.PPM(s.AAPPM), format.PPM(s.AAAPPM), s.LapseCount, s.MaxSingleLapseEpochs,
				s.TerminalLapseEpochs, flipRate, digest)
			continue
		}
		tb.Row(r.Seed, display.Status(string(r.Status)), "-", "-", "-", "-", "-", "-", flipRate, digest)
	}
	tb.Footer("mean", fmt.Sprintf("%d/%d", tot.Valid, tot.Runs), "", format.PPM(tot.MeanAAPPM),
		format.PPM(tot.MeanAAAPPM), tot.LapseCount, "", "", "", "")
	tb.Columns(
		format.Column{Number: 4, Align: format.AlignRight},
		format.Column{Number: 5, Align: format.AlignRight},
		format.Column{Number: 6, Align: format.AlignRight},
		format.Column{Number: 9, Align: format.AlignRight},
	)
	return tb.String() + "\n"
}

var classOrder = []metrics.Class{
	metrics.ClassStable, metrics.ClassBounded, metrics.ClassThrashing, metrics.ClassDoS, metrics.ClassTerminal,
}

func classTable(tot experiment.Totals, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Title("Failure classes")
	tb.Header("Class", "Runs")
	for _, c := range classOrder {
		tb.Row(display.ClassWithCode(string(c)), tot.Classes[c])
	}
	return tb.String() + "\n"
}

func rtdTable(rtd metrics.RTD, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Title("Recovery time distribution (closed lapses)")
	tb.Header("Length <=", "Lapses")
	for i, n := range rtd {
		tb.Row(metrics.BucketLabel(i), n)
	}
	tb.Footer("total", rtd.Total())
	return tb.String() + "\n"
}

var transitionOrder = []lease.Kind{
	lease.KindRenew, lease.KindSuccession, lease.KindRegrant, lease.KindLapse, lease.KindRecover,
}

func transitionTable(res *experiment.Result, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Title("Lease transitions")
	header := []string{"Seed"}
	for _, k := range transitionOrder {
		header = append(header, display.Transition(string(k)))
	}
	tb.Header(header...)
	for _, r := range res.Runs {
		if !r.Valid() {
			continue
		}
		row := []any{r.Seed}
		for _, k := range transitionOrder {
			row = append(row, r.Transitions[k])
		}
		tb.Row(row...)
	}
	return tb.String() + "\n"
}

func interferenceTable(res *experiment.Result, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Title("Interference")
	tb.Header("Seed", "Targets", "Flips", "Observed", "Active", "Quiet", "Duty", "Phases")
	for _, r := range res.Runs {
		in := r.Interference
		tb.Row(r.Seed, in.Targets, in.Flips, format.PPM(in.ObservedFlipRatePPM),
			format.PPM(in.ActivePhaseFlipRatePPM), format.PPM(in.QuietPhaseFlipRatePPM),
			format.PPM(in.BurstDutyCyclePPM), display.PhaseList(in.PhaseLabels()))
	}
	return tb.String() + "\n"
}

// FormatVerification renders a replay verification.
func FormatVerification(v *experiment.Verification, mode format.Mode) string {
	var b strings.Builder
	b.WriteString("=== Regent Replay Verification ===\n")
	b.WriteString(fmt.Sprintf("Experiment: %s\n", v.Experiment))
	if v.NullModel {
		b.WriteString("Null model: every seed compared with the disabled baseline\n")
	}
	b.WriteString("\n")

	tb := format.NewTable(mode)
	tb.Header("Seed", "Status", "Digest", "Replay", "Baseline")
	for _, c := range v.Checks {
		base := "-"
		if c.Baseline != "" {
			base = shortDigest(c.Baseline)
		}
		tb.Row(c.Seed, display.Status(string(c.Status)), shortDigest(c.Digest),
			shortDigest(c.Replay), base)
	}
	b.WriteString(tb.String())
	b.WriteString(fmt.Sprintf("\n\nRESULT: PASS (%d seeds replayed bit-identically)\n", len(v.Checks)))
	return b.String()
}
