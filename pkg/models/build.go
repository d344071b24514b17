// Package models contains shared data models used across the triage codebase.
package models

// BuildResult is the terminal state of a CI build.
type BuildResult string

const (
	BuildResultSuccess BuildResult = "SUCCESS"
	BuildResultFailure BuildResult = "FAILURE"
)

// Build is a single CI job run, keyed by its storage path.
// Optional fields are nil or empty when the export did not carry them.
type Build struct {
	Path        string      `json:"path"`
	Job         string      `json:"job"`
	Number      int         `json:"number"`
	Started     int64       `json:"started"`
	Elapsed     *int64      `json:"elapsed,omitempty"`
	TestsRun    *int        `json:"tests_run,omitempty"`
	TestsFailed *int        `json:"tests_failed,omitempty"`
	Result      BuildResult `json:"result,omitempty"`
	Executor    string      `json:"executor,omitempty"`
	PR          string      `json:"pr,omitempty"`
}

// Builds is the read-only lookup table of every build in a run, keyed by path.
type Builds map[string]Build

// BuildColumns is the columnar rendering of a build table. Each job maps
// either to {build number: column index} or, for dense sequential runs, to
// the triple [first build number, count, first index].
type BuildColumns struct {
	Jobs     map[string]any    `json:"jobs"`
	Cols     map[string][]any  `json:"cols"`
	JobPaths map[string]string `json:"job_paths"`
}
