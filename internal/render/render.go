// Package render turns global clusters into the dashboard artifact: ordered,
// display-ready clusters, a columnar build table, owner attribution and
// sharded slices.
package render

import (
	"sort"
	"strconv"

	"github.com/kiranshivaraju/triage/internal/analysis"
	"github.com/kiranshivaraju/triage/pkg/models"
)

// DefaultMinClusterSize is the smallest cluster that is rendered.
const DefaultMinClusterSize = 2

// Options configures Render.
type Options struct {
	// MinClusterSize drops clusters with fewer failures. Values below 1 use
	// DefaultMinClusterSize.
	MinClusterSize int
}

type testFailures struct {
	name     string
	failures []models.Failure
}

// Render produces the output artifact. Clusters are ordered by failure count
// descending then key; each carries a digest id, a representative text, the
// spans shared by all its failure texts, and its tests grouped by job.
func Render(builds models.Builds, global models.GlobalClusters, profiler *analysis.Profiler, opts Options) *models.Output {
	minSize := opts.MinClusterSize
	if minSize < 1 {
		minSize = DefaultMinClusterSize
	}

	keys := make([]string, 0, len(global))
	for key := range global {
		if global.Size(key) >= minSize {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		si, sj := global.Size(keys[i]), global.Size(keys[j])
		if si != sj {
			return si > sj
		}
		return keys[i] < keys[j]
	})

	out := &models.Output{
		Clustered: make([]models.RenderedCluster, 0, len(keys)),
		Builds:    BuildColumns(builds),
	}
	for _, key := range keys {
		out.Clustered = append(out.Clustered, renderCluster(key, global[key], builds, profiler))
	}
	return out
}

func renderCluster(key string, byTest map[string][]models.Failure, builds models.Builds, profiler *analysis.Profiler) models.RenderedCluster {
	tests := make([]testFailures, 0, len(byTest))
	for name, failures := range byTest {
		tests = append(tests, testFailures{name: name, failures: failures})
	}
	sort.Slice(tests, func(i, j int) bool {
		if len(tests[i].failures) != len(tests[j].failures) {
			return len(tests[i].failures) > len(tests[j].failures)
		}
		return tests[i].name < tests[j].name
	})

	var texts []string
	rendered := make([]models.RenderedTest, 0, len(tests))
	for _, t := range tests {
		for _, f := range t.failures {
			texts = append(texts, f.FailureText)
		}
		rendered = append(rendered, models.RenderedTest{
			Name: t.name,
			Jobs: GroupByJob(t.failures, builds),
		})
	}

	return models.RenderedCluster{
		ID:    profiler.Digest(key),
		Key:   key,
		Text:  tests[0].failures[0].FailureText,
		Spans: CommonSpans(texts),
		Tests: rendered,
	}
}

// GroupByJob groups failures by the job of their build. Failures whose build
// is missing from the table are skipped. Jobs are ordered by build count
// descending then name; build numbers are descending.
func GroupByJob(failures []models.Failure, builds models.Builds) []models.RenderedJob {
	numbers := make(map[string]map[int]struct{})
	for _, f := range failures {
		b, ok := builds[f.Build]
		if !ok {
			continue
		}
		set, ok := numbers[b.Job]
		if !ok {
			set = make(map[int]struct{})
			numbers[b.Job] = set
		}
		set[b.Number] = struct{}{}
	}

	jobs := make([]models.RenderedJob, 0, len(numbers))
	for job, set := range numbers {
		sorted := make([]int, 0, len(set))
		for n := range set {
			sorted = append(sorted, n)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

		rendered := models.RenderedJob{Name: job, Builds: make([]string, len(sorted))}
		for i, n := range sorted {
			rendered.Builds[i] = strconv.Itoa(n)
		}
		jobs = append(jobs, rendered)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if len(jobs[i].Builds) != len(jobs[j].Builds) {
			return len(jobs[i].Builds) > len(jobs[j].Builds)
		}
		return jobs[i].Name < jobs[j].Name
	})
	return jobs
}
