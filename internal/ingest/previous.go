package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kiranshivaraju/triage/pkg/models"
)

// LoadPrevious returns the cluster keys of a previous run's output, in their
// rendered order. Everything else in the file is ignored.
func LoadPrevious(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open previous output: %w", err)
	}
	defer f.Close()

	var prev struct {
		Clustered []struct {
			Key string `json:"key"`
		} `json:"clustered"`
	}
	if err := json.NewDecoder(f).Decode(&prev); err != nil {
		return nil, fmt.Errorf("%w: decode previous output %s: %v", ErrInvalidInput, path, err)
	}

	keys := make([]string, 0, len(prev.Clustered))
	for _, c := range prev.Clustered {
		keys = append(keys, c.Key)
	}
	return keys, nil
}

// LoadOwners reads an owners table mapping owner names to test name
// prefixes. YAML and JSON are both accepted.
func LoadOwners(path string) (models.Owners, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read owners: %w", err)
	}

	var owners models.Owners
	if err := yaml.Unmarshal(data, &owners); err != nil {
		return nil, fmt.Errorf("%w: decode owners %s: %v", ErrInvalidInput, path, err)
	}
	if owners == nil {
		owners = models.Owners{}
	}
	return owners, nil
}
