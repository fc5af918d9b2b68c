package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"regent/internal/experiment"
	"regent/internal/format"
	"regent/internal/report"
)

var verifyFlags struct {
	scenario string
	config   string
	parallel int
	jsonOut  bool
	format   string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay every seed and check determinism",
	Long: `Run each seed twice and require identical trace digests. For a null
interference model each seed is also compared against a run with
interference disabled. Any mismatch is fatal.`,
	RunE: runVerify,
}

func init() {
	f := verifyCmd.Flags()
	f.StringVar(&verifyFlags.scenario, "scenario", "baseline", "Built-in scenario name")
	f.StringVar(&verifyFlags.config, "config", "", "Path to an experiment YAML file (overrides --scenario)")
	f.IntVar(&verifyFlags.parallel, "parallel", 0, "Seeds verified concurrently (0 = GOMAXPROCS)")
	f.BoolVar(&verifyFlags.jsonOut, "json", false, "Print the verification as JSON")
	f.StringVar(&verifyFlags.format, "format", "text", "Report format: text, markdown, csv")
}

func runVerify(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(verifyFlags.format)
	if err != nil {
		return err
	}
	exp, err := loadExperiment(verifyFlags.scenario, verifyFlags.config)
	if err != nil {
		return err
	}
	v, err := experiment.Verify(cmd.Context(), exp, verifyFlags.parallel)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if verifyFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Fprint(out, report.FormatVerification(v, mode))
	return nil
}
