package analysis

import (
	"sort"
	"time"

	"github.com/kiranshivaraju/triage/pkg/models"
)

// clusterSet is an insertion-ordered set of clusters keyed by normalized text.
type clusterSet struct {
	clusters []models.Cluster
	index    map[string]int
	keys     []string
}

func newClusterSet() *clusterSet {
	return &clusterSet{index: make(map[string]int)}
}

func (s *clusterSet) add(key string, f models.Failure) {
	i, ok := s.index[key]
	if !ok {
		i = len(s.clusters)
		s.index[key] = i
		s.keys = append(s.keys, key)
		s.clusters = append(s.clusters, models.Cluster{Key: key})
	}
	s.clusters[i].Failures = append(s.clusters[i].Failures, f)
}

// ClusterTest groups one test's failures by similar normalized text. Each
// failure joins the cluster with an identical key, else the first key
// FindMatch accepts, else starts a new cluster keyed by its own text.
//
// If clustering runs past TestTimeBudget the remaining failures are dropped
// for this run and a warning is logged.
func (e *Engine) ClusterTest(failures []models.Failure) []models.Cluster {
	set := newClusterSet()
	start := e.opts.Now()

	for i, f := range failures {
		norm := e.Normalize(f.FailureText)
		if _, ok := set.index[norm]; ok {
			set.add(norm, f)
		} else if key, ok := e.FindMatch(norm, set.keys); ok {
			set.add(key, f)
		} else {
			set.add(norm, f)
		}

		if e.opts.TestTimeBudget <= 0 || i == len(failures)-1 {
			continue
		}
		if elapsed := e.opts.Now().Sub(start); elapsed > e.opts.TestTimeBudget {
			e.opts.Logger.Warn("test clustering exceeded time budget, dropping remaining failures",
				"test", f.Name,
				"clustered", i+1,
				"dropped", len(failures)-i-1,
				"elapsed", elapsed,
			)
			break
		}
	}
	return set.clusters
}

// ClusterLocal clusters each test independently, largest tests first.
func (e *Engine) ClusterLocal(byTest models.FailuresByTest) models.LocalClusters {
	names := make([]string, 0, len(byTest))
	for name := range byTest {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ni, nj := len(byTest[names[i]]), len(byTest[names[j]])
		if ni != nj {
			return ni > nj
		}
		return names[i] < names[j]
	})

	start := time.Now()
	out := make(models.LocalClusters, len(names))
	for n, name := range names {
		clusters := e.ClusterTest(byTest[name])
		out[name] = clusters
		e.opts.Logger.Debug("clustered test",
			"progress", n+1,
			"tests", len(names),
			"test", name,
			"failures", len(byTest[name]),
			"clusters", len(clusters),
		)
	}
	e.opts.Logger.Info("local clustering complete",
		"tests", len(names),
		"failures", byTest.Count(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out
}

type localEntry struct {
	test     string
	clusters []models.Cluster
	total    int
}

// ClusterGlobal merges per-test clusters across tests. Keys from a previous
// run are seeded first so recurring clusters keep their keys; seeds that are
// not themselves normalized are skipped and counted in a warning. Seeds that
// gather no failures are pruned from the result.
func (e *Engine) ClusterGlobal(local models.LocalClusters, previous []string) models.GlobalClusters {
	global := make(models.GlobalClusters)
	var keys []string

	drifted := 0
	for _, key := range previous {
		if key != e.Normalize(key) {
			drifted++
			continue
		}
		if _, ok := global[key]; ok {
			continue
		}
		global[key] = make(map[string][]models.Failure)
		keys = append(keys, key)
	}
	if len(previous) > 0 {
		e.opts.Logger.Info("seeded clusters from previous run", "seeded", len(keys), "previous", len(previous))
	}
	if drifted > 0 {
		e.opts.Logger.Warn("skipped previous cluster keys that no longer normalize to themselves", "count", drifted)
	}

	entries := make([]localEntry, 0, len(local))
	for test, clusters := range local {
		total := 0
		for _, c := range clusters {
			total += len(c.Failures)
		}
		entries = append(entries, localEntry{test: test, clusters: clusters, total: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].total != entries[j].total {
			return entries[i].total > entries[j].total
		}
		return entries[i].test < entries[j].test
	})

	start := time.Now()
	for _, entry := range entries {
		clusters := make([]models.Cluster, len(entry.clusters))
		copy(clusters, entry.clusters)
		sort.SliceStable(clusters, func(i, j int) bool {
			if len(clusters[i].Failures) != len(clusters[j].Failures) {
				return len(clusters[i].Failures) > len(clusters[j].Failures)
			}
			return clusters[i].Key < clusters[j].Key
		})

		for _, c := range clusters {
			key := c.Key
			if _, ok := global[key]; !ok {
				if match, ok := e.FindMatch(key, keys); ok {
					key = match
				} else {
					global[key] = make(map[string][]models.Failure)
					keys = append(keys, key)
				}
			}
			global[key][entry.test] = append(global[key][entry.test], c.Failures...)
		}
	}

	pruned := 0
	for key, tests := range global {
		if len(tests) == 0 {
			delete(global, key)
			pruned++
		}
	}

	e.opts.Logger.Info("global clustering complete",
		"clusters", len(global),
		"pruned_seeds", pruned,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return global
}
