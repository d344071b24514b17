package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/triage/pkg/models"
)

const (
	maxLineBytes = 64 << 20
	// maxConcurrentFiles bounds open failure files.
	maxConcurrentFiles = 8
)

// LoadFailures reads newline-delimited failure records from each path
// concurrently and groups them by test name. Records are merged in path
// order and each test's failures are then ordered by build path. A malformed
// line fails the whole load.
func LoadFailures(ctx context.Context, paths ...string) (models.FailuresByTest, error) {
	perFile := make([][]models.Failure, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)
	for i, path := range paths {
		g.Go(func() error {
			failures, err := readFailures(ctx, path)
			if err != nil {
				return err
			}
			perFile[i] = failures
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTest := make(models.FailuresByTest)
	for _, failures := range perFile {
		for _, f := range failures {
			byTest[f.Name] = append(byTest[f.Name], f)
		}
	}
	for _, failures := range byTest {
		sort.SliceStable(failures, func(i, j int) bool {
			return failures[i].Build < failures[j].Build
		})
	}

	slog.Info("failures loaded", "files", len(paths), "tests", len(byTest), "failures", byTest.Count())
	return byTest, nil
}

func readFailures(ctx context.Context, path string) ([]models.Failure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open failures: %w", err)
	}
	defer f.Close()

	var failures []models.Failure
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var fl models.Failure
		if err := json.Unmarshal(raw, &fl); err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %v", ErrInvalidInput, path, line, err)
		}
		failures = append(failures, fl)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read failures %s: %w", path, err)
	}
	return failures, nil
}
