package models

// Output is the rendered artifact consumed by the dashboard and fed back as
// the seed of the next run.
type Output struct {
	Clustered []RenderedCluster `json:"clustered"`
	Builds    BuildColumns      `json:"builds"`
}

// RenderedCluster is a display-ready global cluster.
type RenderedCluster struct {
	ID    string         `json:"id"`
	Key   string         `json:"key"`
	Text  string         `json:"text"`
	Spans []int          `json:"spans"`
	Tests []RenderedTest `json:"tests"`
	Owner string         `json:"owner,omitempty"`
}

// RenderedTest lists the jobs and build numbers in which one test failed
// with the cluster's failure.
type RenderedTest struct {
	Name string        `json:"name"`
	Jobs []RenderedJob `json:"jobs"`
}

// RenderedJob holds build numbers in descending order, as strings.
type RenderedJob struct {
	Name   string   `json:"name"`
	Builds []string `json:"builds"`
}

// FailureCount returns the number of builds the cluster was seen in.
func (c RenderedCluster) FailureCount() int {
	n := 0
	for _, t := range c.Tests {
		for _, j := range t.Jobs {
			n += len(j.Builds)
		}
	}
	return n
}
