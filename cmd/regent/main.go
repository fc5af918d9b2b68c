// regent runs sovereignty-kernel experiments: seeded authority-lease
// simulations under configurable verifier interference.
//
// Usage:
//
//	regent run [--scenario=<name> | --config=<path>] [--db=<path>] [--epochs-out=<path>]
//	regent verify [--scenario=<name> | --config=<path>]
//	regent scenarios
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"regent/internal/experiment"
	"regent/internal/logging"
)

var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "regent",
	Short: "Deterministic authority-lease experiments under verifier interference",
	Long: `Regent runs a seeded constitutional kernel for a fixed horizon of epochs.
A single holder carries authority under a renewable lease; a verifier checks
its commitments every epoch and an interference model flips verifier outcomes.
Every run is a pure function of its seed and configuration.`,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		format, err := logging.ParseFormat(rootFlags.logFormat)
		if err != nil {
			return err
		}
		logging.Init(level, format, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(runCmd, verifyCmd, scenariosCmd)
	rootCmd.Version = version
}

// loadExperiment resolves --config over --scenario.
func loadExperiment(scenario, config string) (*experiment.Experiment, error) {
	if config != "" {
		return experiment.Load(config)
	}
	if scenario == "" {
		return nil, fmt.Errorf("one of --scenario or --config is required")
	}
	return experiment.LoadScenario(scenario)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
