// Package ingest reads the inputs of a triage run: the build table, the
// newline-delimited failure exports, a previous run's output and the owners
// table.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/triage/pkg/models"
)

// ErrInvalidInput wraps every decoding failure of an input file.
var ErrInvalidInput = errors.New("invalid input")

// flexInt decodes a JSON number, a numeric string or null. Warehouse exports
// encode integers as strings and elapsed times as floats.
type flexInt struct {
	value int64
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		f.value, f.set = n, true
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %s: %w", data, err)
	}
	f.value, f.set = int64(n), true
	return nil
}

func (f flexInt) intPtr() *int {
	if !f.set {
		return nil
	}
	n := int(f.value)
	return &n
}

func (f flexInt) int64Ptr() *int64 {
	if !f.set {
		return nil
	}
	n := f.value
	return &n
}

type rawBuild struct {
	Path        string  `json:"path"`
	Job         string  `json:"job"`
	Number      flexInt `json:"number"`
	Started     flexInt `json:"started"`
	Elapsed     flexInt `json:"elapsed"`
	TestsRun    flexInt `json:"tests_run"`
	TestsFailed flexInt `json:"tests_failed"`
	Result      string  `json:"result"`
	Executor    string  `json:"executor"`
}

// LoadBuilds reads a JSON array of builds keyed by path. Builds without a
// start time or build number are skipped.
func LoadBuilds(path string) (models.Builds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read builds: %w", err)
	}

	var raw []rawBuild
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode builds %s: %v", ErrInvalidInput, path, err)
	}

	builds := make(models.Builds, len(raw))
	skipped := 0
	for _, r := range raw {
		if r.Path == "" || r.Started.value == 0 || r.Number.value == 0 {
			skipped++
			continue
		}
		b := models.Build{
			Path:        r.Path,
			Job:         r.Job,
			Number:      int(r.Number.value),
			Started:     r.Started.value,
			Elapsed:     r.Elapsed.int64Ptr(),
			TestsRun:    r.TestsRun.intPtr(),
			TestsFailed: r.TestsFailed.intPtr(),
			Result:      models.BuildResult(r.Result),
			Executor:    r.Executor,
			PR:          prFromPath(r.Path),
		}
		if b.Job == "" {
			b.Job = jobFromPath(r.Path)
		}
		builds[b.Path] = b
	}

	slog.Info("builds loaded", "path", path, "builds", len(builds), "skipped", skipped)
	return builds, nil
}

// prFromPath extracts the pull request number from presubmit paths of the
// form .../pr-logs/pull/<org_repo>/<pr>/<job>/<number>.
func prFromPath(path string) string {
	if !strings.Contains(path, "pr-logs") {
		return ""
	}
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-3]
}

func jobFromPath(path string) string {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
