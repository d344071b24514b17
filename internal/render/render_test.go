package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/triage/internal/analysis"
	"github.com/kiranshivaraju/triage/pkg/models"
)

func intPtr(n int) *int { return &n }

// testBuilds has two dense ci-a builds started long before two sparse ci-b
// builds.
func testBuilds() models.Builds {
	return models.Builds{
		"gs://logs/ci-a/1":  {Path: "gs://logs/ci-a/1", Job: "ci-a", Number: 1, Started: 1000},
		"gs://logs/ci-a/2":  {Path: "gs://logs/ci-a/2", Job: "ci-a", Number: 2, Started: 2000},
		"gs://logs/ci-b/10": {Path: "gs://logs/ci-b/10", Job: "ci-b", Number: 10, Started: 200000, TestsFailed: intPtr(3)},
		"gs://logs/ci-b/12": {Path: "gs://logs/ci-b/12", Job: "ci-b", Number: 12, Started: 200100, Result: models.BuildResultFailure},
	}
}

func testGlobal() models.GlobalClusters {
	return models.GlobalClusters{
		"timeout waiting for pod": {
			"Pods should mount volume": {
				{Name: "Pods should mount volume", Build: "gs://logs/ci-a/1", FailureText: "timeout waiting for pod web-1"},
				{Name: "Pods should mount volume", Build: "gs://logs/ci-a/2", FailureText: "timeout waiting for pod web-2"},
			},
			"[sig-network] DNS works": {
				{Name: "[sig-network] DNS works", Build: "gs://logs/ci-b/10", FailureText: "timeout waiting for pod dns-1"},
			},
		},
		"exit status 1": {
			"Unknown test": {
				{Name: "Unknown test", Build: "gs://logs/ci-b/10", FailureText: "exit status 1"},
				{Name: "Unknown test", Build: "gs://logs/gone/5", FailureText: "exit status 1"},
			},
		},
		"panic: boom": {
			"Pods should run": {
				{Name: "Pods should run", Build: "gs://logs/ci-a/1", FailureText: "panic: boom"},
			},
		},
	}
}

func renderFixture(t *testing.T) (*models.Output, *analysis.Profiler) {
	t.Helper()
	p := analysis.NewProfiler()
	out := Render(testBuilds(), testGlobal(), p, Options{})
	require.Len(t, out.Clustered, 2)
	return out, p
}

func TestRender_OrdersAndFilters(t *testing.T) {
	out, p := renderFixture(t)

	assert.Equal(t, "timeout waiting for pod", out.Clustered[0].Key)
	assert.Equal(t, "exit status 1", out.Clustered[1].Key)
	assert.Equal(t, p.Digest("timeout waiting for pod"), out.Clustered[0].ID)
	assert.Equal(t, "timeout waiting for pod web-1", out.Clustered[0].Text)
}

func TestRender_Tests(t *testing.T) {
	out, _ := renderFixture(t)

	want := []models.RenderedTest{
		{Name: "Pods should mount volume", Jobs: []models.RenderedJob{{Name: "ci-a", Builds: []string{"2", "1"}}}},
		{Name: "[sig-network] DNS works", Jobs: []models.RenderedJob{{Name: "ci-b", Builds: []string{"10"}}}},
	}
	if diff := cmp.Diff(want, out.Clustered[0].Tests); diff != "" {
		t.Errorf("tests mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, out.Clustered[0].FailureCount())
}

func TestRender_SkipsDanglingBuilds(t *testing.T) {
	out, _ := renderFixture(t)

	want := []models.RenderedJob{{Name: "ci-b", Builds: []string{"10"}}}
	if diff := cmp.Diff(want, out.Clustered[1].Tests[0].Jobs); diff != "" {
		t.Errorf("jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_MinClusterSize(t *testing.T) {
	out := Render(testBuilds(), testGlobal(), analysis.NewProfiler(), Options{MinClusterSize: 1})
	assert.Len(t, out.Clustered, 3)

	out = Render(testBuilds(), testGlobal(), analysis.NewProfiler(), Options{MinClusterSize: 3})
	assert.Len(t, out.Clustered, 1)
}

func TestGroupByJob_OrdersByCountThenName(t *testing.T) {
	builds := testBuilds()
	failures := []models.Failure{
		{Build: "gs://logs/ci-b/10"},
		{Build: "gs://logs/ci-a/1"},
		{Build: "gs://logs/ci-b/12"},
		{Build: "gs://logs/ci-b/12"},
	}

	want := []models.RenderedJob{
		{Name: "ci-b", Builds: []string{"12", "10"}},
		{Name: "ci-a", Builds: []string{"1"}},
	}
	if diff := cmp.Diff(want, GroupByJob(failures, builds)); diff != "" {
		t.Errorf("jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildColumns(t *testing.T) {
	cols := BuildColumns(testBuilds())

	want := models.BuildColumns{
		Jobs: map[string]any{
			"ci-a": []int{1, 2, 0},
			"ci-b": map[string]int{"10": 2, "12": 3},
		},
		Cols: map[string][]any{
			"started":      {int64(1000), int64(2000), int64(200000), int64(200100)},
			"tests_failed": {nil, nil, 3, nil},
			"elapsed":      {nil, nil, nil, nil},
			"tests_run":    {nil, nil, nil, nil},
			"result":       {nil, nil, nil, "FAILURE"},
			"executor":     {nil, nil, nil, nil},
			"pr":           {nil, nil, nil, nil},
		},
		JobPaths: map[string]string{
			"ci-a": "gs://logs/ci-a",
			"ci-b": "gs://logs/ci-b",
		},
	}
	if diff := cmp.Diff(want, cols); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildColumns_Empty(t *testing.T) {
	cols := BuildColumns(models.Builds{})
	assert.Empty(t, cols.Jobs)
	assert.Len(t, cols.Cols, len(columnNames))
	assert.Empty(t, cols.Cols["started"])
}
