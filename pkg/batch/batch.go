// Package batch analyzes many methods concurrently. Each method is an
// independent analysis; cancellation is observed between methods.
package batch

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/l3aro/go-liveness/internal/log"
	"github.com/l3aro/go-liveness/internal/scanner"
	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/lva"
	"golang.org/x/sync/errgroup"
)

// Analyzer turns a graph into a liveness summary. The boolean reports a
// cache hit. *cache.Store implements it.
type Analyzer interface {
	Analyze(g *cfg.Graph) (*lva.Summary, bool)
}

type solver struct{}

func (solver) Analyze(g *cfg.Graph) (*lva.Summary, bool) {
	return lva.Solve(g).Summary(), false
}

// Outcome is the result of one method, or of a file that failed to load.
type Outcome struct {
	File    string       `json:"file"`
	Method  string       `json:"method,omitempty"`
	Summary *lva.Summary `json:"summary,omitempty"`
	Cached  bool         `json:"cached,omitempty"`
	Err     error        `json:"-"`
}

// Options configures a Runner.
type Options struct {
	// Workers bounds the number of files processed at once.
	// 0 means GOMAXPROCS.
	Workers int

	// Analyzer defaults to solving every graph without caching.
	Analyzer Analyzer

	// Methods restricts C# files to the named methods. Graph descriptions
	// hold a single method and are filtered by their method name.
	Methods []string

	Logger log.Logger
}

// Runner runs batch analyses.
type Runner struct {
	workers  int
	analyzer Analyzer
	methods  map[string]bool
	logger   log.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	r := &Runner{
		workers:  opts.Workers,
		analyzer: opts.Analyzer,
		logger:   opts.Logger,
	}
	if r.workers <= 0 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	if r.analyzer == nil {
		r.analyzer = solver{}
	}
	if r.logger == nil {
		r.logger = log.Discard()
	}
	if len(opts.Methods) > 0 {
		r.methods = make(map[string]bool, len(opts.Methods))
		for _, m := range opts.Methods {
			r.methods[m] = true
		}
	}
	return r
}

// Run analyzes every method of every file. Outcomes keep file order and,
// within a file, declaration order. Load and analysis failures are
// reported per outcome; the returned error is only set on cancellation.
func (r *Runner) Run(ctx context.Context, files []scanner.FileInfo) ([]Outcome, error) {
	results := make([][]Outcome, len(files))
	semaphore := make(chan struct{}, r.workers)

	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file

		g.Go(func() error {
			select {
			case semaphore <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-semaphore }()

			out, err := r.runFile(gctx, file)
			results[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	for _, out := range results {
		outcomes = append(outcomes, out...)
	}
	return outcomes, nil
}

func (r *Runner) runFile(ctx context.Context, file scanner.FileInfo) ([]Outcome, error) {
	graphs, err := r.load(file)
	if err != nil {
		r.logger.Warn("failed to load input", "path", file.Path, "err", err)
		return []Outcome{{File: file.Path, Err: err}}, nil
	}

	out := make([]Outcome, 0, len(graphs))
	for _, graph := range graphs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.methods != nil && !r.methods[graph.Name] {
			continue
		}
		o := Outcome{File: file.Path, Method: graph.Name}
		o.Summary, o.Cached, o.Err = r.analyze(graph)
		if o.Err != nil {
			r.logger.Warn("analysis failed", "path", file.Path, "method", graph.Name, "err", o.Err)
		} else {
			r.logger.Debug("analyzed", "path", file.Path, "method", graph.Name, "cached", o.Cached)
		}
		out = append(out, o)
	}
	return out, nil
}

// analyze converts a contract panic on a malformed graph into an error so
// that one bad input does not abort the batch.
func (r *Runner) analyze(g *cfg.Graph) (s *lva.Summary, cached bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("analyzing %s: %v", g.Name, p)
		}
	}()
	if err := g.Validate(); err != nil {
		return nil, false, err
	}
	s, cached = r.analyzer.Analyze(g)
	return s, cached, nil
}

func (r *Runner) load(file scanner.FileInfo) ([]*cfg.Graph, error) {
	switch file.Kind {
	case scanner.KindCSharp:
		content, err := os.ReadFile(file.FullPath)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Path, err)
		}
		return cfg.ExtractCSharpCFGs(content)
	case scanner.KindGraph:
		g, err := cfg.LoadGraph(file.FullPath)
		if err != nil {
			return nil, err
		}
		return []*cfg.Graph{g}, nil
	default:
		return nil, fmt.Errorf("%s: unsupported input kind", file.Path)
	}
}

// Totals summarizes a batch run.
type Totals struct {
	Methods int `json:"methods"`
	Cached  int `json:"cached"`
	Failed  int `json:"failed"`
}

// Count tallies outcomes.
func Count(outcomes []Outcome) Totals {
	var t Totals
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			t.Failed++
		case o.Cached:
			t.Methods++
			t.Cached++
		default:
			t.Methods++
		}
	}
	return t
}
