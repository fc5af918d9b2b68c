package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"regent/internal/experiment"
	"regent/internal/format"
	"regent/internal/logging"
	"regent/internal/report"
	"regent/internal/store"
	"regent/internal/telemetry"
)

var runFlags struct {
	scenario   string
	config     string
	parallel   int
	dbPath     string
	noDB       bool
	epochsOut  string
	metricsOut string
	jsonOut    bool
	format     string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an experiment over all of its seeds",
	Long: `Run every seed of an experiment, persist per-run summaries to SQLite and
print a report. The command exits non-zero when any run is INVALID_RUN.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.scenario, "scenario", "baseline", "Built-in scenario name (see 'regent scenarios')")
	f.StringVar(&runFlags.config, "config", "", "Path to an experiment YAML file (overrides --scenario)")
	f.IntVar(&runFlags.parallel, "parallel", 0, "Seeds run concurrently (0 = GOMAXPROCS)")
	f.StringVar(&runFlags.dbPath, "db", store.DefaultDBPath, "SQLite database path")
	f.BoolVar(&runFlags.noDB, "no-db", false, "Do not persist results")
	f.StringVar(&runFlags.epochsOut, "epochs-out", "", "Write every epoch record as JSONL to this file")
	f.StringVar(&runFlags.metricsOut, "metrics-out", "", "Write Prometheus textfile metrics to this file")
	f.BoolVar(&runFlags.jsonOut, "json", false, "Print the result as JSON")
	f.StringVar(&runFlags.format, "format", "text", "Report format: text, markdown, csv")
}

func runRun(cmd *cobra.Command, _ []string) error {
	log := logging.New("cli")
	mode, err := format.ParseMode(runFlags.format)
	if err != nil {
		return err
	}
	exp, err := loadExperiment(runFlags.scenario, runFlags.config)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	var sinks report.MultiSink

	var (
		st     store.Store
		epochs *store.EpochWriter
	)
	if !runFlags.noDB {
		sqlStore, err := store.Open(runFlags.dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer sqlStore.Close()
		st = sqlStore

		cfgJSON, err := json.Marshal(exp)
		if err != nil {
			return fmt.Errorf("encode experiment: %w", err)
		}
		if err := st.CreateExperiment(&store.Experiment{ID: id, Name: exp.Name, Config: string(cfgJSON)}); err != nil {
			return fmt.Errorf("create experiment: %w", err)
		}
		epochs = sqlStore.EpochWriter(id)
		sinks = append(sinks, epochs)
	}

	var jsonl *report.JSONLSink
	if runFlags.epochsOut != "" {
		out, err := os.Create(runFlags.epochsOut)
		if err != nil {
			return fmt.Errorf("create epochs file: %w", err)
		}
		defer out.Close()
		jsonl = report.NewJSONLSink(out)
		sinks = append(sinks, jsonl)
	}

	opts := experiment.Options{ID: id, Parallel: runFlags.parallel}
	if len(sinks) > 0 {
		opts.Sink = sinks
	}

	start := time.Now()
	res, err := experiment.Run(cmd.Context(), exp, opts)
	if err != nil {
		return err
	}
	log.Info("experiment finished", "id", id, "name", exp.Name, "runs", len(res.Runs), "elapsed", time.Since(start))

	if jsonl != nil {
		if err := jsonl.Flush(); err != nil {
			return fmt.Errorf("flush epochs: %w", err)
		}
	}
	if st != nil {
		if err := epochs.Close(); err != nil {
			return fmt.Errorf("flush epochs to store: %w", err)
		}
		for _, r := range res.Runs {
			if err := st.SaveRun(id, r); err != nil {
				return fmt.Errorf("save run %d: %w", r.Seed, err)
			}
		}
	}
	if runFlags.metricsOut != "" {
		col := telemetry.New(exp.Name)
		col.ObserveResult(res)
		if err := col.WriteTextfile(runFlags.metricsOut); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if runFlags.jsonOut {
		if err := report.WriteJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, report.FormatReport(res, mode))
	}
	return res.Err()
}
