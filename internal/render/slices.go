package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/triage/pkg/models"
)

// SlicePlaceholder is substituted by the shard name in slice path templates.
const SlicePlaceholder = "PREFIX"

// ErrInvalidSliceTemplate is returned when a slice template lacks the placeholder.
var ErrInvalidSliceTemplate = errors.New("slice template must contain " + SlicePlaceholder)

// Slice returns the subset of out whose clusters are owned by owner or whose
// ids start with prefix, with a build table restricted to the jobs those
// clusters mention. An empty owner or prefix never matches.
func Slice(out *models.Output, builds models.Builds, prefix, owner string) *models.Output {
	slice := &models.Output{Clustered: []models.RenderedCluster{}}
	jobs := make(map[string]struct{})

	for _, c := range out.Clustered {
		switch {
		case owner != "" && c.Owner == owner:
		case prefix != "" && strings.HasPrefix(c.ID, prefix):
		default:
			continue
		}
		slice.Clustered = append(slice.Clustered, c)
		for _, t := range c.Tests {
			for _, j := range t.Jobs {
				jobs[j.Name] = struct{}{}
			}
		}
	}

	subset := make(models.Builds)
	for path, b := range builds {
		if _, ok := jobs[b.Job]; ok {
			subset[path] = b
		}
	}
	slice.Builds = BuildColumns(subset)
	return slice
}

// SliceNames returns the shard names written by WriteSlices: the 256 two-hex
// id prefixes followed by "sig-<owner>" for each owner.
func SliceNames(owners []string) []string {
	names := make([]string, 0, 256+len(owners))
	for i := 0; i < 256; i++ {
		names = append(names, fmt.Sprintf("%02x", i))
	}
	for _, o := range owners {
		names = append(names, "sig-"+o)
	}
	return names
}

// WriteSlices writes one JSON file per shard, naming each by substituting the
// shard name into template. It returns the number of files written.
func WriteSlices(out *models.Output, builds models.Builds, template string, owners []string) (int, error) {
	if !strings.Contains(template, SlicePlaceholder) {
		return 0, ErrInvalidSliceTemplate
	}

	written := 0
	for _, name := range SliceNames(owners) {
		var slice *models.Output
		if owner, ok := strings.CutPrefix(name, "sig-"); ok {
			slice = Slice(out, builds, "", owner)
		} else {
			slice = Slice(out, builds, name, "")
		}

		path := strings.ReplaceAll(template, SlicePlaceholder, name)
		if err := WriteJSON(path, slice); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// WriteJSON encodes v to path, creating parent directories as needed. The
// data is written to a temporary file in the same directory and renamed into
// place, so readers see either the old file or the new one.
func WriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
