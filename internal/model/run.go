// Package model holds the run records shared by the pipeline and the stores.
package model

import "time"

// Mode selects the pipeline flavour.
type Mode string

const (
	// ModeApplication grids a department at a user-chosen resolution.
	ModeApplication Mode = "application"
	// ModeModel grids the Mobiliscope sectors at the training resolution.
	ModeModel Mode = "model"
)

// RunStatus represents the current state of a feature run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusLoading    RunStatus = "loading"
	RunStatusGridding   RunStatus = "gridding"
	RunStatusComputing  RunStatus = "computing"
	RunStatusValidating RunStatus = "validating"
	RunStatusWriting    RunStatus = "writing"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// RunSpec describes what a run computes.
type RunSpec struct {
	Mode       Mode   `json:"mode"`
	Territory  string `json:"territory"`
	SRID       int    `json:"srid"`
	Resolution int    `json:"resolution"`
	Output     string `json:"output"`
}

// Run represents a single feature computation run.
type Run struct {
	ID        string     `json:"id"`
	Spec      RunSpec    `json:"spec"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Cells     int            `json:"cells"`
	Variables []string       `json:"variables"`
	NoData    map[string]int `json:"nodata,omitempty"`
	Phases    []PhaseResult  `json:"phases"`
	Error     string         `json:"error,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
