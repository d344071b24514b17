package render

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/triage/pkg/models"
)

func TestSlice_ByOwner(t *testing.T) {
	out, _ := renderFixture(t)
	AnnotateOwners(out, testBuilds(), nil, "")

	slice := Slice(out, testBuilds(), "", "network")

	require.Len(t, slice.Clustered, 1)
	assert.Equal(t, "timeout waiting for pod", slice.Clustered[0].Key)
	assert.ElementsMatch(t, []string{"ci-a", "ci-b"}, keysOf(slice.Builds.JobPaths))
}

func TestSlice_ByPrefix(t *testing.T) {
	out, _ := renderFixture(t)
	target := out.Clustered[1]

	slice := Slice(out, testBuilds(), target.ID[:2], "")

	assert.Contains(t, slice.Clustered, target)
	for _, c := range slice.Clustered {
		assert.Equal(t, target.ID[:2], c.ID[:2])
	}
	assert.Equal(t, []string{"ci-b"}, keysOf(slice.Builds.JobPaths))
}

func TestSlice_NoMatch(t *testing.T) {
	out, _ := renderFixture(t)

	slice := Slice(out, testBuilds(), "", "")

	assert.Empty(t, slice.Clustered)
	assert.Empty(t, slice.Builds.Jobs)
}

func TestSliceNames(t *testing.T) {
	names := SliceNames([]string{"node"})
	require.Len(t, names, 257)
	assert.Equal(t, "00", names[0])
	assert.Equal(t, "ff", names[255])
	assert.Equal(t, "sig-node", names[256])
}

func TestWriteSlices(t *testing.T) {
	out, _ := renderFixture(t)
	AnnotateOwners(out, testBuilds(), nil, "")
	dir := t.TempDir()

	n, err := WriteSlices(out, testBuilds(), filepath.Join(dir, "slices", "failure_data_PREFIX.json"), []string{"network", DefaultOwner})
	require.NoError(t, err)
	assert.Equal(t, 258, n)

	data, err := os.ReadFile(filepath.Join(dir, "slices", "failure_data_sig-network.json"))
	require.NoError(t, err)

	var slice models.Output
	require.NoError(t, json.Unmarshal(data, &slice))
	require.Len(t, slice.Clustered, 1)
	assert.Equal(t, "network", slice.Clustered[0].Owner)

	_, err = os.Stat(filepath.Join(dir, "slices", "failure_data_"+out.Clustered[0].ID[:2]+".json"))
	assert.NoError(t, err)
}

func TestWriteSlices_InvalidTemplate(t *testing.T) {
	out, _ := renderFixture(t)

	_, err := WriteSlices(out, testBuilds(), filepath.Join(t.TempDir(), "slices.json"), nil)
	assert.ErrorIs(t, err, ErrInvalidSliceTemplate)
}

func TestWriteJSON_ReplacesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failure_data_ab.json")
	require.NoError(t, WriteJSON(path, map[string]string{"version": "old"}))

	// A reader that opened the old file keeps seeing it whole.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, WriteJSON(path, map[string]string{"version": "new"}))

	old, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "old"}`, string(old))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "new"}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func keysOf(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
