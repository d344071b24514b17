package render

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/triage/pkg/models"
)

// Column names of the build table, in output order.
var columnNames = []string{"started", "tests_failed", "elapsed", "tests_run", "result", "executor", "pr"}

// BuildColumns converts a build table into columns so the dashboard can ship
// hundreds of thousands of builds compactly. Jobs whose builds are numbered
// and indexed sequentially collapse to [first number, count, first index].
func BuildColumns(builds models.Builds) models.BuildColumns {
	sorted := make([]models.Build, 0, len(builds))
	for _, b := range builds {
		sorted = append(sorted, b)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Job != sorted[j].Job {
			return sorted[i].Job < sorted[j].Job
		}
		if sorted[i].Number != sorted[j].Number {
			return sorted[i].Number < sorted[j].Number
		}
		return sorted[i].Path < sorted[j].Path
	})

	out := models.BuildColumns{
		Jobs:     make(map[string]any),
		Cols:     make(map[string][]any, len(columnNames)),
		JobPaths: make(map[string]string),
	}
	for _, name := range columnNames {
		out.Cols[name] = []any{}
	}

	indexes := make(map[string]map[int]int)
	for i, b := range sorted {
		for _, name := range columnNames {
			out.Cols[name] = append(out.Cols[name], columnValue(b, name))
		}
		job, ok := indexes[b.Job]
		if !ok {
			job = make(map[int]int)
			indexes[b.Job] = job
			out.JobPaths[b.Job] = jobPath(b.Path)
		}
		if _, dup := job[b.Number]; !dup {
			job[b.Number] = i
		}
	}

	for name, job := range indexes {
		out.Jobs[name] = compressJob(job)
	}
	return out
}

// compressJob returns [first, count, base] when build numbers are contiguous
// and map to contiguous indexes, and the explicit number->index map otherwise.
func compressJob(job map[int]int) any {
	numbers := make([]int, 0, len(job))
	for n := range job {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	first, count := numbers[0], len(numbers)
	base := job[first]
	dense := numbers[count-1] == first+count-1
	for _, n := range numbers {
		if !dense {
			break
		}
		dense = job[n] == base+(n-first)
	}
	if dense {
		return []int{first, count, base}
	}

	explicit := make(map[string]int, len(job))
	for n, idx := range job {
		explicit[strconv.Itoa(n)] = idx
	}
	return explicit
}

func columnValue(b models.Build, name string) any {
	switch name {
	case "started":
		return b.Started
	case "tests_failed":
		if b.TestsFailed != nil {
			return *b.TestsFailed
		}
	case "elapsed":
		if b.Elapsed != nil {
			return *b.Elapsed
		}
	case "tests_run":
		if b.TestsRun != nil {
			return *b.TestsRun
		}
	case "result":
		if b.Result != "" {
			return string(b.Result)
		}
	case "executor":
		if b.Executor != "" {
			return b.Executor
		}
	case "pr":
		if b.PR != "" {
			return b.PR
		}
	}
	return nil
}

// jobPath is the build path up to its last separator.
func jobPath(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return path
}
