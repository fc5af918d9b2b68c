package store

import (
	"regent/internal/kernel"
	"regent/internal/metrics"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open creates the parent dir if needed.
const DefaultDBPath = ".regent/regent.db"

// Experiment is one executed experiment.
type Experiment struct {
	ID        string
	Name      string
	Config    string // experiment file as JSON
	CreatedAt string
}

// Run is the stored summary of one seed. Metric columns are zero for
// invalid runs.
type Run struct {
	ExperimentID        string
	Seed                uint64
	Status              kernel.Status
	InvalidReason       string
	FailureClass        metrics.Class
	AAPPM               uint32
	AAAPPM              uint32
	HorizonEpochs       uint64
	LapseCount          uint64
	MaxLapseEpochs      uint64
	TerminalLapseEpochs uint64
	Flips               uint64
	Targets             uint64
	TraceDigest         string
}

// Store persists experiment results. Domain and CLI use only this
// interface.
type Store interface {
	CreateExperiment(e *Experiment) error
	GetExperiment(id string) (*Experiment, error)
	SaveRun(experimentID string, r *kernel.RunResult) error
	ListRuns(experimentID string) ([]*Run, error)
	GetRTD(experimentID string, seed uint64) (metrics.RTD, error)
	CountEpochs(experimentID string, seed uint64) (int, error)
	Close() error
}
