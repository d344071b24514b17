package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/triage/pkg/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBuilds(t *testing.T) {
	path := writeFile(t, "builds.json", `[
		{"path": "gs://logs/ci-a/1", "job": "ci-a", "number": "1", "started": "1500000000",
		 "elapsed": "12.7", "tests_run": 100, "tests_failed": "2", "result": "FAILURE", "executor": "pod-1"},
		{"path": "gs://logs/pr-logs/pull/org_repo/123/pull-a/7", "number": 7, "started": 1500000100},
		{"path": "gs://logs/ci-a/2", "job": "ci-a", "number": "2", "started": null},
		{"path": "gs://logs/ci-a/3", "job": "ci-a", "number": "0", "started": 1500000200}
	]`)

	builds, err := LoadBuilds(path)
	require.NoError(t, err)
	require.Len(t, builds, 2)

	elapsed, testsRun, testsFailed := int64(12), 100, 2
	want := models.Build{
		Path:        "gs://logs/ci-a/1",
		Job:         "ci-a",
		Number:      1,
		Started:     1500000000,
		Elapsed:     &elapsed,
		TestsRun:    &testsRun,
		TestsFailed: &testsFailed,
		Result:      models.BuildResultFailure,
		Executor:    "pod-1",
	}
	if diff := cmp.Diff(want, builds["gs://logs/ci-a/1"]); diff != "" {
		t.Errorf("build mismatch (-want +got):\n%s", diff)
	}

	pr := builds["gs://logs/pr-logs/pull/org_repo/123/pull-a/7"]
	assert.Equal(t, "123", pr.PR)
	assert.Equal(t, "pull-a", pr.Job)
	assert.Nil(t, pr.Elapsed)
}

func TestLoadBuilds_Invalid(t *testing.T) {
	_, err := LoadBuilds(writeFile(t, "builds.json", `{"not": "an array"}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = LoadBuilds(writeFile(t, "builds.json", `[{"path": "p/1", "number": "seven"}]`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = LoadBuilds(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadFailures(t *testing.T) {
	first := writeFile(t, "a.json", strings.Join([]string{
		`{"name": "t1", "build": "gs://logs/ci-a/2", "failure_text": "boom"}`,
		``,
		`{"name": "t2", "build": "gs://logs/ci-a/1", "failure_text": "bang"}`,
	}, "\n"))
	second := writeFile(t, "b.json",
		`{"name": "t1", "build": "gs://logs/ci-a/1", "failure_text": "boom again"}`+"\n")

	byTest, err := LoadFailures(context.Background(), first, second)
	require.NoError(t, err)

	want := models.FailuresByTest{
		"t1": {
			{Name: "t1", Build: "gs://logs/ci-a/1", FailureText: "boom again"},
			{Name: "t1", Build: "gs://logs/ci-a/2", FailureText: "boom"},
		},
		"t2": {
			{Name: "t2", Build: "gs://logs/ci-a/1", FailureText: "bang"},
		},
	}
	if diff := cmp.Diff(want, byTest); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFailures_MalformedLine(t *testing.T) {
	path := writeFile(t, "bad.json", `{"name": "t1", "build": "b", "failure_text": "x"}`+"\n{broken\n")

	_, err := LoadFailures(context.Background(), path)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "bad.json:2")
}

func TestLoadFailures_Cancelled(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20000; i++ {
		sb.WriteString(`{"name": "t", "build": "b", "failure_text": "x"}` + "\n")
	}
	path := writeFile(t, "many.json", sb.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadFailures(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadPrevious(t *testing.T) {
	path := writeFile(t, "failure_data.json", `{
		"clustered": [{"key": "exit 1", "id": "abc", "tests": []}, {"key": "panic: boom"}],
		"builds": {"jobs": {}, "cols": {}, "job_paths": {}}
	}`)

	keys, err := LoadPrevious(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"exit 1", "panic: boom"}, keys)
}

func TestLoadOwners(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "yaml",
			content: "node:\n  - Pods\n  - Kubelet\nstorage:\n  - Volumes\n",
		},
		{
			name:    "json",
			content: `{"node": ["Pods", "Kubelet"], "storage": ["Volumes"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owners, err := LoadOwners(writeFile(t, "owners", tt.content))
			require.NoError(t, err)
			assert.Equal(t, models.Owners{
				"node":    {"Pods", "Kubelet"},
				"storage": {"Volumes"},
			}, owners)
		})
	}
}

func TestLoadOwners_Invalid(t *testing.T) {
	_, err := LoadOwners(writeFile(t, "owners", "node: [unterminated"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
