package models

// Failure is one failed test case inside one build.
// Build may reference a path that is absent from the build table.
type Failure struct {
	Name        string `json:"name"`
	Build       string `json:"build"`
	FailureText string `json:"failure_text"`
}

// FailuresByTest groups every failure of a run by test name.
type FailuresByTest map[string][]Failure

// Count returns the total number of failures across all tests.
func (f FailuresByTest) Count() int {
	n := 0
	for _, fs := range f {
		n += len(fs)
	}
	return n
}
