package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/triage/internal/analysis"
	"github.com/kiranshivaraju/triage/internal/cache"
	"github.com/kiranshivaraju/triage/internal/checkpoint"
	"github.com/kiranshivaraju/triage/internal/config"
	"github.com/kiranshivaraju/triage/internal/fetch"
	"github.com/kiranshivaraju/triage/internal/ingest"
	"github.com/kiranshivaraju/triage/internal/logging"
	"github.com/kiranshivaraju/triage/internal/render"
	"github.com/kiranshivaraju/triage/internal/store"
	"github.com/kiranshivaraju/triage/pkg/models"
)

type summarizeOptions struct {
	previous       string
	previousFromDB bool
	owners         string
	output         string
	outputSlices   string
	publish        bool
}

// loadedInput is the checkpointed result of the load stage.
type loadedInput struct {
	Builds   models.Builds         `json:"builds"`
	Failures models.FailuresByTest `json:"failures"`
}

func newSummarizeCmd(a *app) *cobra.Command {
	var opts summarizeOptions

	cmd := &cobra.Command{
		Use:   "summarize BUILDS TESTS...",
		Short: "Cluster the failures of a set of builds",
		Long: `Summarize reads a JSON build table and one or more newline-delimited
JSON failure files, clusters the failures per test and then across tests,
and writes the rendered clusters to --output. Inputs given as http(s) URLs
are downloaded first.

Pass the previous run's output with --previous to keep cluster keys stable
between runs.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output == "" {
				opts.output = a.cfg.Output.Path
			}
			if opts.outputSlices == "" {
				opts.outputSlices = a.cfg.Output.Slices
			}
			if opts.outputSlices != "" && !strings.Contains(opts.outputSlices, render.SlicePlaceholder) {
				return fmt.Errorf("--output_slices %q: %w", opts.outputSlices, render.ErrInvalidSliceTemplate)
			}
			_, err := runSummarize(cmd.Context(), a.cfg, opts, args[0], args[1:], cmd.ErrOrStderr())
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.previous, "previous", "", "Previous output file whose cluster keys seed this run")
	f.BoolVar(&opts.previousFromDB, "previous-from-db", false, "Seed cluster keys from the latest published run")
	f.StringVar(&opts.owners, "owners", "", "YAML or JSON file mapping owners to test name prefixes")
	f.StringVarP(&opts.output, "output", "o", "", "Output file (default $TRIAGE_OUTPUT or failure_data.json)")
	f.StringVar(&opts.outputSlices, "output_slices", "", "Slice path template containing "+render.SlicePlaceholder)
	f.BoolVar(&opts.publish, "publish", false, "Record the run and its clusters in Postgres")
	cmd.MarkFlagsMutuallyExclusive("previous", "previous-from-db")

	return cmd
}

// runSummarize runs the whole pipeline and returns the rendered output.
func runSummarize(ctx context.Context, cfg *config.Config, opts summarizeOptions, buildsPath string, testPaths []string, w io.Writer) (*models.Output, error) {
	start := time.Now()

	ckpt := &checkpoint.Store{Dir: cfg.Checkpoint.Dir, Compress: cfg.Checkpoint.Compress}
	unlock, err := ckpt.Lock()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			slog.Warn("release checkpoint lock", "error", err)
		}
	}()

	var db store.Store
	if opts.previousFromDB || opts.publish {
		if err := cfg.ValidatePublish(); err != nil {
			return nil, err
		}
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := store.RunMigrations(cfg.Database.URL, migrationsDir); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		db = store.NewPostgresStore(pool)
	}

	if fetch.IsRemote(opts.previous) {
		resolved, err := fetcher(cfg).Resolve(ctx, cfg.Fetch.Dir, []string{opts.previous})
		if err != nil {
			return nil, err
		}
		opts.previous = resolved[0]
	}
	previous, err := loadSeeds(ctx, opts, db)
	if err != nil {
		return nil, err
	}

	var owners models.Owners
	if opts.owners != "" {
		if owners, err = ingest.LoadOwners(opts.owners); err != nil {
			return nil, err
		}
	}

	inputs, err := fetcher(cfg).Resolve(ctx, cfg.Fetch.Dir, append([]string{buildsPath}, testPaths...))
	if err != nil {
		return nil, fmt.Errorf("fetch inputs: %w", err)
	}
	buildsPath, testPaths = inputs[0], inputs[1:]

	loadHash, err := checkpoint.HashFiles(inputs...)
	if err != nil {
		return nil, fmt.Errorf("hash inputs: %w", err)
	}
	in, err := checkpoint.Memoize(ctx, ckpt, "load", loadHash, func(ctx context.Context) (loadedInput, error) {
		builds, err := ingest.LoadBuilds(buildsPath)
		if err != nil {
			return loadedInput{}, err
		}
		failures, err := ingest.LoadFailures(ctx, testPaths...)
		if err != nil {
			return loadedInput{}, err
		}
		return loadedInput{Builds: builds, Failures: failures}, nil
	})
	if err != nil {
		return nil, err
	}

	engine := analysis.NewEngine(analysis.Options{
		TestTimeBudget: cfg.Clustering.TestTimeBudget,
		Logger:         logging.New("analysis"),
	})

	localHash, err := checkpoint.Chain(loadHash, analysis.DefaultThreshold, cfg.Clustering.TestTimeBudget)
	if err != nil {
		return nil, err
	}
	local, err := checkpoint.Memoize(ctx, ckpt, "local", localHash, func(context.Context) (models.LocalClusters, error) {
		return engine.ClusterLocal(in.Failures), nil
	})
	if err != nil {
		return nil, err
	}

	globalHash, err := checkpoint.Chain(localHash, previous)
	if err != nil {
		return nil, err
	}
	global, err := checkpoint.Memoize(ctx, ckpt, "global", globalHash, func(context.Context) (models.GlobalClusters, error) {
		return engine.ClusterGlobal(local, previous), nil
	})
	if err != nil {
		return nil, err
	}

	out := render.Render(in.Builds, global, engine.Profiler(), render.Options{
		MinClusterSize: cfg.Clustering.MinClusterSize,
	})
	render.AnnotateOwners(out, in.Builds, owners, cfg.Clustering.DefaultOwner)

	if err := render.WriteJSON(opts.output, out); err != nil {
		return nil, err
	}
	slog.Info("output written", "path", opts.output, "clusters", len(out.Clustered))

	if opts.outputSlices != "" {
		n, err := render.WriteSlices(out, in.Builds, opts.outputSlices, sliceOwners(owners, cfg.Clustering.DefaultOwner))
		if err != nil {
			return nil, fmt.Errorf("write slices: %w", err)
		}
		slog.Info("slices written", "template", opts.outputSlices, "files", n)
	}

	if opts.publish {
		if err := publish(ctx, db, out, in.Failures.Count(), opts.output); err != nil {
			return nil, err
		}
		invalidateListings(ctx, cfg)
	}

	printReport(w, out, in.Failures.Count(), time.Since(start))
	return out, nil
}

func fetcher(cfg *config.Config) *fetch.Client {
	return fetch.NewClient(cfg.Fetch.Token, cfg.Fetch.Timeout)
}

func loadSeeds(ctx context.Context, opts summarizeOptions, db store.Store) ([]string, error) {
	switch {
	case opts.previous != "":
		return ingest.LoadPrevious(opts.previous)
	case opts.previousFromDB:
		keys, err := db.LatestKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("load previous keys: %w", err)
		}
		slog.Info("previous keys loaded from database", "keys", len(keys))
		return keys, nil
	default:
		return nil, nil
	}
}

// sliceOwners lists every owner that gets its own slice, including the
// default owner when no owner entry claims that name.
func sliceOwners(owners models.Owners, defaultOwner string) []string {
	names := owners.Names()
	if _, ok := owners[defaultOwner]; !ok && defaultOwner != "" {
		names = append(names, defaultOwner)
	}
	return names
}

// invalidateListings drops cached cluster pages so the API serves the new
// run immediately. Failures only delay freshness and are logged.
func invalidateListings(ctx context.Context, cfg *config.Config) {
	if cfg.Redis.URL == "" {
		return
	}
	rc, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		slog.Warn("create redis cache", "error", err)
		return
	}
	defer rc.Close()

	n, err := rc.DeletePrefix(ctx, cache.ClusterListPrefix)
	if err != nil {
		slog.Warn("invalidate cluster listings", "error", err)
		return
	}
	slog.Info("cluster listings invalidated", "keys", n)
}

func publish(ctx context.Context, db store.Store, out *models.Output, failures int, outputPath string) error {
	run := &models.Run{
		ID:         uuid.New(),
		Status:     models.RunStatusRunning,
		OutputPath: outputPath,
		StartedAt:  time.Now().UTC(),
	}
	if err := db.CreateRun(ctx, run); err != nil {
		return err
	}

	if err := db.UpsertClusters(ctx, run.ID, store.Records(out)); err != nil {
		if cerr := db.CompleteRun(ctx, run.ID, models.RunStatusFailed, failures, 0); cerr != nil {
			slog.Error("mark run failed", "run_id", run.ID, "error", cerr)
		}
		return fmt.Errorf("publish clusters: %w", err)
	}

	if err := db.CompleteRun(ctx, run.ID, models.RunStatusCompleted, failures, len(out.Clustered)); err != nil {
		return err
	}
	slog.Info("run published", "run_id", run.ID, "clusters", len(out.Clustered))
	return nil
}
