package analysis

import (
	"io"
	"log/slog"
	"testing"
)

func testEngine() *Engine {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(opts)
}

func TestFindMatch(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		keys      []string
		wantKey   string
		wantFound bool
	}{
		{
			name:      "no keys",
			candidate: "exit 1",
		},
		{
			name:      "short strings only match exactly",
			candidate: "exit 1",
			keys:      []string{"exit 2"},
		},
		{
			name:      "short exact match",
			candidate: "exit 1",
			keys:      []string{"exit 2", "exit 1"},
			wantKey:   "exit 1",
			wantFound: true,
		},
		{
			name:      "near match within threshold",
			candidate: "timeout waiting for pod foo-xyz to be ready after 300s",
			keys: []string{
				"connection refused to UNIQ1",
				"timeout waiting for pod foo-abc to be ready after 300s",
			},
			wantKey:   "timeout waiting for pod foo-abc to be ready after 300s",
			wantFound: true,
		},
		{
			name:      "too far apart",
			candidate: "timeout waiting for pod foo to be ready",
			keys:      []string{"panic: runtime error: index out of range"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, found := testEngine().FindMatch(tt.candidate, tt.keys)
			if found != tt.wantFound || key != tt.wantKey {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.wantKey, tt.wantFound, key, found)
			}
		})
	}
}

func TestFindMatch_OrderIndependent(t *testing.T) {
	candidate := "failed to pull image registry/app:v1 after 5 attempts"
	keys := []string{
		"failed to pull image registry/app:v2 after 5 attempts",
		"failed to pull image registry/api:v1 after 5 attempts",
		"failed to pull image registry/app:v1 after 6 attempts",
	}
	reversed := []string{keys[2], keys[1], keys[0]}

	e := testEngine()
	a, okA := e.FindMatch(candidate, keys)
	b, okB := e.FindMatch(candidate, reversed)
	if !okA || !okB {
		t.Fatalf("expected matches, got %v and %v", okA, okB)
	}
	if a != b {
		t.Errorf("match depends on key order: %q vs %q", a, b)
	}
}
