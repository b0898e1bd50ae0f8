package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/l3aro/go-liveness/internal/scanner"
	"github.com/l3aro/go-liveness/pkg/batch"
	"github.com/l3aro/go-liveness/pkg/dirty"
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-analyze files as they change",
	Long: `Analyzes the given files and directories once, then watches them and
their subdirectories and re-analyzes every accepted file that is written or
created. Directories skipped by the scanner are not watched. Changes are
batched for watch_debounce_ms milliseconds. Stop with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		methods, _ := cmd.Flags().GetStringArray("method")
		w := &watcher{
			scanner: newScanner(),
			runner:  newRunner(methods),
			tracker: dirty.New(),
			out:     cmd.OutOrStdout(),
			json:    jsonOutput(cmd),
		}
		return w.run(cmd.Context(), args)
	},
}

type watcher struct {
	scanner *scanner.Scanner
	runner  *batch.Runner
	tracker *dirty.Tracker
	out     io.Writer
	json    bool

	roots []string // absolute directories
	files []string // absolute files named on the command line
}

func (w *watcher) run(ctx context.Context, args []string) error {
	files, err := w.scanner.ScanPaths(args)
	if err != nil {
		return fmt.Errorf("scanning inputs: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	dirs, err := w.watchDirs(args)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	for _, f := range files {
		if err := w.tracker.Seen(f.FullPath); err != nil {
			current.logger.Debug("failed to hash input", "path", f.Path, "error", err)
		}
	}
	if err := w.analyze(ctx, files); err != nil {
		return err
	}

	debounce := time.Duration(current.cfg.WatchDebounceMS) * time.Millisecond
	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := map[string]bool{}

	current.logger.Info("watching for changes", "roots", len(w.roots), "files", len(w.files))
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if w.underRoot(ev.Name) {
						w.watchNewDir(fsw, ev.Name, pending)
						timer.Reset(debounce)
					}
					continue
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !w.inScope(ev.Name) {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			current.logger.Warn("watch error", "error", err)

		case <-timer.C:
			candidates := make([]string, 0, len(pending))
			for p := range pending {
				candidates = append(candidates, p)
			}
			pending = map[string]bool{}
			paths := w.tracker.Filter(candidates)
			if len(paths) == 0 {
				current.logger.Debug("no content changes", "events", len(candidates))
				continue
			}

			changed, err := w.scanner.ScanPaths(paths)
			if err != nil {
				current.logger.Warn("failed to rescan changed files", "error", err)
				continue
			}
			fmt.Fprintf(w.out, "--- %s: %d file(s) changed ---\n", time.Now().Format("15:04:05"), len(changed))
			if err := w.analyze(ctx, changed); err != nil {
				return err
			}
		}
	}
}

// watchDirs records the roots and files named by args and returns every
// directory to register: each root with its non-ignored subdirectories, and
// the parent of each named file.
func (w *watcher) watchDirs(args []string) ([]string, error) {
	seen := map[string]bool{}
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("getting absolute path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			w.files = append(w.files, abs)
			add(filepath.Dir(abs))
			continue
		}
		w.roots = append(w.roots, abs)
		tree, err := w.scanner.Dirs(abs)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", arg, err)
		}
		for _, dir := range tree {
			add(dir)
		}
	}
	return dirs, nil
}

// watchNewDir registers a directory created under a root, with its
// subdirectories, and queues the inputs it already holds.
func (w *watcher) watchNewDir(fsw *fsnotify.Watcher, dir string, pending map[string]bool) {
	tree, err := w.scanner.Dirs(dir)
	if err != nil {
		current.logger.Warn("failed to list directory", "path", dir, "error", err)
		return
	}
	for _, d := range tree {
		if err := fsw.Add(d); err != nil {
			current.logger.Warn("failed to watch directory", "path", d, "error", err)
		}
	}
	files, err := w.scanner.Scan(dir)
	if err != nil {
		current.logger.Warn("failed to scan directory", "path", dir, "error", err)
		return
	}
	for _, f := range files {
		pending[f.FullPath] = true
	}
}

func (w *watcher) underRoot(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range w.roots {
		if strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *watcher) inScope(path string) bool {
	if !w.scanner.Accepts(path) {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, f := range w.files {
		if f == abs {
			return true
		}
	}
	return w.underRoot(abs)
}

func (w *watcher) analyze(ctx context.Context, files []scanner.FileInfo) error {
	outcomes, err := w.runner.Run(ctx, files)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := printOutcomes(w.out, outcomes, w.json); err != nil {
		return err
	}
	if err := saveStore(); err != nil {
		current.logger.Warn("failed to save cache", "error", err)
	}
	return nil
}

func init() {
	watchCmd.Flags().StringArrayP("method", "m", nil, "Only analyze the named method (repeatable)")
	watchCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(watchCmd)
}
