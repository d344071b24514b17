// Package checkpoint memoizes pipeline stages on disk so an interrupted or
// repeated run can resume from the last completed stage.
//
// Each stage is stored as memo_<stage>.json (memo_<stage>.json.zst when
// compressed) holding the stage name, the hash of the stage's inputs and its
// result. A file whose input hash differs from the current one is stale and
// is recomputed; deleting a file forces recomputation.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/danjacques/gofslock/fslock"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrCheckpointLocked is returned by Lock when another run holds the
	// checkpoint directory.
	ErrCheckpointLocked = errors.New("checkpoint directory is locked by another run")

	errStale = errors.New("stale checkpoint")
)

const lockFile = ".lock"

// Store is a directory of stage checkpoints. A nil Store or an empty Dir
// disables checkpointing.
type Store struct {
	Dir      string
	Compress bool
}

type envelope[T any] struct {
	Stage     string `json:"stage"`
	InputHash string `json:"input_hash"`
	Data      T      `json:"data"`
}

// Enabled reports whether stages are persisted.
func (s *Store) Enabled() bool {
	return s != nil && s.Dir != ""
}

// Path returns the checkpoint file of stage.
func (s *Store) Path(stage string) string {
	name := "memo_" + stage + ".json"
	if s.Compress {
		name += ".zst"
	}
	return filepath.Join(s.Dir, name)
}

// Lock takes an exclusive, non-blocking lock on the checkpoint directory and
// returns a function releasing it.
func (s *Store) Lock() (unlock func() error, err error) {
	if !s.Enabled() {
		return func() error { return nil }, nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}

	l := fslock.L{Path: filepath.Join(s.Dir, lockFile)}
	handle, err := l.Lock()
	if err != nil {
		if errors.Is(err, fslock.ErrLockHeld) {
			return nil, ErrCheckpointLocked
		}
		return nil, fmt.Errorf("lock checkpoint directory: %w", err)
	}
	return handle.Unlock, nil
}

// Memoize returns the checkpointed result of stage if one exists for
// inputHash, and otherwise runs fn and checkpoints its result. Unreadable
// checkpoints are logged and recomputed.
func Memoize[T any](ctx context.Context, s *Store, stage, inputHash string, fn func(context.Context) (T, error)) (T, error) {
	if !s.Enabled() {
		return fn(ctx)
	}

	path := s.Path(stage)
	start := time.Now()
	data, err := load[T](s, path, stage, inputHash)
	switch {
	case err == nil:
		slog.Info("checkpoint loaded", "stage", stage, "path", path, "elapsed", time.Since(start).Round(time.Millisecond))
		return data, nil
	case errors.Is(err, os.ErrNotExist):
	case errors.Is(err, errStale):
		slog.Info("checkpoint stale, recomputing", "stage", stage, "path", path)
	default:
		slog.Warn("checkpoint unreadable, recomputing", "stage", stage, "path", path, "error", err)
	}

	data, err = fn(ctx)
	if err != nil {
		return data, err
	}

	size, err := save(s, path, envelope[T]{Stage: stage, InputHash: inputHash, Data: data})
	if err != nil {
		return data, fmt.Errorf("save checkpoint %s: %w", stage, err)
	}
	slog.Info("checkpoint saved", "stage", stage, "path", path, "size", humanize.Bytes(uint64(size)))
	return data, nil
}

func load[T any](s *Store, path, stage, inputHash string) (T, error) {
	var env envelope[T]

	f, err := os.Open(path)
	if err != nil {
		return env.Data, err
	}
	defer f.Close()

	var r io.Reader = f
	if s.Compress {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return env.Data, fmt.Errorf("open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return env.Data, fmt.Errorf("decode checkpoint: %w", err)
	}
	if env.Stage != stage || env.InputHash != inputHash {
		var zero T
		return zero, errStale
	}
	return env.Data, nil
}

// save writes the envelope to a temporary file and renames it into place so
// a crash never leaves a truncated checkpoint.
func save[T any](s *Store, path string, env envelope[T]) (int, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if s.Compress {
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return 0, err
		}
		if err := json.NewEncoder(enc).Encode(env); err != nil {
			enc.Close()
			return 0, err
		}
		if err := enc.Close(); err != nil {
			return 0, err
		}
	} else if err := json.NewEncoder(&buf).Encode(env); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.Dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return buf.Len(), nil
}
