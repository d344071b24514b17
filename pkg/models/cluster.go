package models

// Cluster is a group of failures of a single test whose normalized failure
// text is within the edit-distance threshold of Key.
type Cluster struct {
	Key      string    `json:"key"`
	Failures []Failure `json:"failures"`
}

// LocalClusters maps a test name to its clusters in creation order.
type LocalClusters map[string][]Cluster

// GlobalClusters maps a cluster key to the failures of every test that
// landed in it, grouped by test name.
type GlobalClusters map[string]map[string][]Failure

// Size returns the number of failures in the cluster stored under key.
func (g GlobalClusters) Size(key string) int {
	n := 0
	for _, fs := range g[key] {
		n += len(fs)
	}
	return n
}
