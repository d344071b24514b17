package analysis

import (
	"log/slog"
	"time"
)

const (
	// DefaultThreshold is the fraction of the mean key length two normalized
	// failures may differ by and still share a cluster.
	DefaultThreshold = 0.10

	// DefaultTestTimeBudget bounds the time spent clustering one test.
	DefaultTestTimeBudget = 60 * time.Second
)

// Options configures an Engine.
type Options struct {
	Threshold float64
	// TestTimeBudget caps wall-clock time spent on a single test's failures.
	// Zero disables the cap.
	TestTimeBudget time.Duration
	// Now is the clock consulted for the budget. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		TestTimeBudget: DefaultTestTimeBudget,
		Now:            time.Now,
		Logger:         slog.Default(),
	}
}

// Engine clusters failures for one run. It owns the normalization cache and
// the ngram memo, both of which live as long as the Engine. An Engine is not
// safe for concurrent use.
type Engine struct {
	opts       Options
	profiler   *Profiler
	normalized map[string]string
}

// NewEngine returns an Engine. Unset fields of opts take their defaults,
// except TestTimeBudget where zero means unlimited.
func NewEngine(opts Options) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		opts:       opts,
		profiler:   NewProfiler(),
		normalized: make(map[string]string),
	}
}

// Profiler exposes the engine's ngram memo so rendering can reuse it for
// cluster ids.
func (e *Engine) Profiler() *Profiler {
	return e.profiler
}

// Normalize is NormalizeFailure memoized by raw text.
func (e *Engine) Normalize(text string) string {
	if n, ok := e.normalized[text]; ok {
		return n
	}
	n := NormalizeFailure(text)
	e.normalized[text] = n
	return n
}
