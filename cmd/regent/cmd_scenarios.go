package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"regent/internal/display"
	"regent/internal/experiment"
	"regent/internal/format"
)

var scenariosFlags struct {
	format string
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List built-in scenarios",
	RunE:  runScenarios,
}

func init() {
	scenariosCmd.Flags().StringVar(&scenariosFlags.format, "format", "text", "Output format: text, markdown, csv")
}

func runScenarios(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(scenariosFlags.format)
	if err != nil {
		return err
	}
	tbl := format.NewTable(mode)
	tbl.Header("Name", "Seeds", "Horizon", "Interference", "Description")
	for _, name := range experiment.ListScenarios() {
		exp, err := experiment.LoadScenario(name)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
		tbl.Row(name, len(exp.Seeds), exp.Kernel.MaxCycles, display.Model(exp.Interference.Model), format.Truncate(strings.TrimSpace(exp.Description), 72))
	}
	fmt.Fprint(cmd.OutOrStdout(), tbl.String())
	return nil
}
