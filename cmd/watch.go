package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/cachemanager"
	"github.com/withglyph/glitch/internal/codegen"
	"github.com/withglyph/glitch/internal/flags"
	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/paths"
	"github.com/withglyph/glitch/internal/pipeline"
	"github.com/withglyph/glitch/internal/presentation"
	"github.com/withglyph/glitch/internal/pubsub"
	"github.com/withglyph/glitch/internal/watcher"
)

// watchEventBuffer bounds the file events queued for printing.
const watchEventBuffer = 1024

var watchOutDir string

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-extract and rewrite on every source change",
	Long: `Extract and rewrite the project, then watch the source tree and repeat
after every debounced batch of changes.

Rewritten files are mirrored into --out-dir (default .glitch/out) and never
written in place, so every rebuild extracts from the original sources. The
generated document-node module is rewritten whenever the artifacts change.

Examples:
  glitch watch
  glitch watch --out-dir .svelte-kit/glitch src/`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutDir, "out-dir", "o", "", "Directory receiving the rewritten tree (default: .glitch/out)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outDir := filepath.Join(cfg.Root, paths.StateDir, "out")
	if watchOutDir != "" {
		abs, err := filepath.Abs(watchOutDir)
		if err != nil {
			return fmt.Errorf("resolving output directory: %w", err)
		}
		outDir = abs
	}
	if err := checkMirror(outDir); err != nil {
		return err
	}

	broker := pubsub.NewBrokerWithBuffer[pipeline.Event](watchEventBuffer)
	defer broker.Close()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printEvents(cmd.OutOrStdout(), broker.Subscribe(ctx))
	}()

	b := &rebuilder{
		args:   args,
		outDir: outDir,
		events: broker,
		cache: cachemanager.NewInMemoryCacheManager[cachemanager.ContentKey, pipeline.Memo](
			"watch", cfg.Cache.TTL, cachemanager.DefaultCleanupInterval),
	}
	if err := b.rebuild(ctx, nil); err != nil {
		return err
	}

	w, err := watcher.New(watcher.Config{Root: cfg.Root, Filter: sourceFilter(), DebounceDur: cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		return fmt.Errorf("watching %s: %w", cfg.Root, err)
	}
	defer func() { _ = w.Stop() }()
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "watching %s, writing to %s\n", cfg.Root, outDir)

	for {
		select {
		case <-ctx.Done():
			stop()
			<-printed
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			log.Debug(log.CatWatcher, "rebuilding", "files", len(change.Paths))
			if err := b.rebuild(ctx, change.Paths); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				// Keep watching; the next save may fix it.
				log.ErrorErr(log.CatWatcher, "rebuild failed", err)
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "rebuild failed: %v\n", err)
			}
		}
	}
}

// checkMirror rejects an output directory that the watcher would see as
// source, which would retrigger a rebuild for every write.
func checkMirror(outDir string) error {
	rel, err := filepath.Rel(cfg.Root, outDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if rel == paths.StateDir || strings.HasPrefix(rel, paths.StateDir+"/") || sourceFilter().Excluded(rel) {
		return nil
	}
	return fmt.Errorf("--out-dir %s is inside the project and not excluded; add it to exclude", outDir)
}

// rebuilder runs one extract, codegen and rewrite pass at a time.
type rebuilder struct {
	args        []string
	outDir      string
	events      pubsub.Publisher[pipeline.Event]
	cache       cachemanager.CacheManager[cachemanager.ContentKey, pipeline.Memo]
	fingerprint uint64
	built       bool
}

// rebuild extracts the whole project, since a change in one file can add or
// remove artifacts used by others, then rewrites the watched files. changed
// lists the paths reported by the watcher; mirrors of deleted files are
// removed.
func (b *rebuilder) rebuild(ctx context.Context, changed []string) error {
	all, err := sourceFiles(nil)
	if err != nil {
		return err
	}
	res, err := newExtractor().Extract(ctx, os.DirFS(cfg.Root), all)
	if err != nil {
		return err
	}
	if err := b.publishArtifacts(ctx, res.Registry); err != nil {
		return err
	}

	for _, rel := range changed {
		if _, err := os.Stat(filepath.Join(cfg.Root, filepath.FromSlash(rel))); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.Remove(filepath.Join(b.outDir, filepath.FromSlash(rel))); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn(log.CatWatcher, "failed to remove mirrored file", "file", rel, "error", err)
		}
	}

	files, err := sourceFiles(b.args)
	if err != nil {
		return err
	}
	p := pipeline.New(res.Registry, pipeline.Config{
		Root:     cfg.Root,
		Workers:  cfg.Workers,
		Rewrite:  cfg.RewriteConfig(),
		Cache:    b.cache,
		CacheTTL: cfg.Cache.TTL,
		Flags:    featureFlags(),
		Tracer:   provider.Tracer(),
		Events:   b.events,
	})
	_, err = p.Run(ctx, files, pipeline.Output{Write: true, OutDir: b.outDir})
	return err
}

// publishArtifacts regenerates the document-node module and records a
// session when the artifacts differ from the previous pass.
func (b *rebuilder) publishArtifacts(ctx context.Context, reg *artifact.Registry) error {
	fp := pipeline.Fingerprint(reg, cfg.RewriteConfig())
	if b.built && fp == b.fingerprint {
		return nil
	}

	if err := codegen.WriteFile(cfg.Resolve(cfg.Codegen.OutFile), reg); err != nil {
		return err
	}
	if featureFlags().Enabled(flags.FlagPersistSessions) {
		db, rec, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if _, _, err := rec.Record(ctx, reg); err != nil {
			return err
		}
	}

	if b.built {
		// Memoised results are keyed by the old fingerprint and can no longer hit.
		b.cache.Flush(ctx)
	}
	b.fingerprint = fp
	b.built = true
	return nil
}

// printEvents writes a line for every file that did not stay unchanged and
// a summary per run.
func printEvents(w io.Writer, events <-chan pubsub.Event[pipeline.Event]) {
	formatter := presentation.NewFormatter(w)
	for ev := range events {
		switch {
		case ev.Payload.Report != nil:
			_ = formatter.FormatRunSummary(presentation.FromReport(ev.Payload.Report))
		case ev.Payload.File != nil && ev.Type != pubsub.FileUnchanged:
			_ = formatter.FormatFileEvent(presentation.FromFileResult(*ev.Payload.File))
		}
	}
}
