// Package pipeline rewrites a batch of source files against one registry.
//
// Files are read from disk, rewritten concurrently and, depending on the
// Output, written back in place or mirrored into a separate directory.
// Results are memoised by file content so unchanged files cost a hash lookup
// on the next run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/cachemanager"
	"github.com/withglyph/glitch/internal/callsite"
	"github.com/withglyph/glitch/internal/flags"
	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/pubsub"
	"github.com/withglyph/glitch/internal/rewrite"
	"github.com/withglyph/glitch/internal/tracing"
)

// Outcome is what happened to one file.
type Outcome string

const (
	OutcomeRewritten Outcome = "rewritten"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// ErrOutDirIsSource is returned when the output directory would be
// rediscovered as source on the next run.
var ErrOutDirIsSource = errors.New("output directory must not be the source root")

// Memo is the memoised rewrite of one file revision.
type Memo struct {
	Output []byte
	State  rewrite.State
}

// Config configures a Pipeline.
type Config struct {
	// Root is the directory file paths are relative to.
	Root string
	// Workers bounds concurrent rewrites. Zero means runtime.NumCPU().
	Workers int
	// Rewrite configures the strategies. OnUnmatched is owned by the pipeline.
	Rewrite rewrite.Config
	// Cache stores rewrite results across runs. Nil creates a private cache.
	Cache cachemanager.CacheManager[cachemanager.ContentKey, Memo]
	// CacheTTL is the lifetime of a memoised result.
	CacheTTL time.Duration
	// Flags toggles optional behaviour. Nil uses the defaults.
	Flags *flags.Registry
	// Tracer receives pipeline spans. Nil disables tracing.
	Tracer trace.Tracer
	// Events receives one event per file and one per run. Optional.
	Events pubsub.Publisher[Event]
}

// Output selects where rewritten files go.
type Output struct {
	// Write stores results on disk. Without it the run only reports.
	Write bool
	// OutDir mirrors every processed file under this directory instead of
	// writing in place. Unchanged files are copied so the mirror is complete.
	OutDir string
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path     string
	Outcome  Outcome
	Cached   bool
	Original []byte
	Output   []byte
	Err      error
	Duration time.Duration
}

// Changed reports whether the file content differs after the run.
func (r FileResult) Changed() bool {
	return r.Outcome == OutcomeRewritten
}

// Report summarises a run. Files is sorted by path.
type Report struct {
	Files     []FileResult
	Rewritten int
	Unchanged int
	Skipped   int
	Failed    int
	Cached    int
	Duration  time.Duration
}

// Event is published for every file and once at the end of a run.
type Event struct {
	File   *FileResult
	Report *Report
}

type input struct {
	path    string
	content []byte
}

// Pipeline rewrites files against a fixed registry.
type Pipeline struct {
	root     string
	workers  int
	rewriter *rewrite.Rewriter
	memo     *cachemanager.ReadThroughCache[cachemanager.ContentKey, Memo, input]
	salt     uint64
	ttl      time.Duration
	tracer   trace.Tracer
	events   pubsub.Publisher[Event]
}

// New creates a pipeline over reg.
func New(reg *artifact.Registry, cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	fl := cfg.Flags
	if fl == nil {
		fl = flags.New(nil)
	}

	rc := cfg.Rewrite
	rc.OnUnmatched = nil
	if fl.Enabled(flags.FlagWarnUnmatched) {
		rc.OnUnmatched = func(filePath string, site callsite.Site) {
			log.Warn(log.CatRewrite, "graphql call-site matches no artifact", "file", filePath, "line", site.Line)
		}
	}

	cache := cfg.Cache
	if cache == nil {
		cache = cachemanager.NewInMemoryCacheManager[cachemanager.ContentKey, Memo](
			"transform", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	}

	p := &Pipeline{
		root:     cfg.Root,
		workers:  workers,
		rewriter: rewrite.New(reg, rc),
		salt:     Fingerprint(reg, rc),
		ttl:      cfg.CacheTTL,
		tracer:   tracer,
		events:   cfg.Events,
	}
	p.memo = cachemanager.NewReadThroughCache(cache, p.transform, !fl.Enabled(flags.FlagTransformCache))
	return p
}

// Fingerprint hashes everything a rewrite result depends on besides the file
// itself: the artifacts and the strategy configuration.
func Fingerprint(reg *artifact.Registry, cfg rewrite.Config) uint64 {
	d := xxhash.New()
	for _, a := range reg.List() {
		_, _ = fmt.Fprintf(d, "%s\x00%s\x00%s\x00%s\x00%x\n", a.Kind(), a.Origin(), a.Name(), a.FilePath(), a.Hash())
	}
	_, _ = fmt.Fprintf(d, "%s\x00%s\x00%s\x00%s\x00%t",
		cfg.Marker, cfg.BaseModule, cfg.RuntimeModule, cfg.StoreFactory, cfg.OnUnmatched != nil)
	return d.Sum64()
}

func (p *Pipeline) transform(ctx context.Context, in input) (Memo, error) {
	out, state := p.rewriter.TransformContext(ctx, in.path, in.content)
	return Memo{Output: out, State: state}, nil
}

// Run rewrites files, given relative to the root with forward slashes.
// Per-file failures are recorded in the report; the returned error is set
// only when the run itself could not complete.
func (p *Pipeline) Run(ctx context.Context, files []string, out Output) (*Report, error) {
	if out.OutDir != "" && samePath(p.root, out.OutDir) {
		return nil, ErrOutDirIsSource
	}

	ctx, span := p.tracer.Start(ctx, tracing.SpanPipelineRun)
	span.SetAttributes(attribute.Int(tracing.AttrFileCount, len(files)))
	start := time.Now()

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	results := make([]FileResult, len(sorted))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, rel := range sorted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := p.runFile(gctx, rel, out)
			results[i] = r
			done.Add(1)
			p.publish(eventType(r.Outcome), Event{File: &r})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.End(span, err)
		log.Warn(log.CatPipeline, "run cancelled", "done", done.Load(), "files", len(sorted))
		return nil, err
	}

	report := &Report{Files: results, Duration: time.Since(start)}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeRewritten:
			report.Rewritten++
		case OutcomeUnchanged:
			report.Unchanged++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
		if r.Cached {
			report.Cached++
		}
	}

	span.SetAttributes(
		attribute.Int("files.rewritten", report.Rewritten),
		attribute.Int("files.failed", report.Failed),
		attribute.Int("files.cached", report.Cached),
	)
	tracing.End(span, nil)
	log.Info(log.CatPipeline, "run complete",
		"files", len(sorted), "rewritten", report.Rewritten, "unchanged", report.Unchanged,
		"skipped", report.Skipped, "failed", report.Failed, "cached", report.Cached,
		"duration", report.Duration)
	p.publish(pubsub.RunCompleted, Event{Report: report})
	return report, nil
}

func (p *Pipeline) runFile(ctx context.Context, rel string, out Output) FileResult {
	ctx, span := p.tracer.Start(ctx, tracing.SpanPipelineFile)
	defer span.End()
	span.SetAttributes(
		attribute.String(tracing.AttrFilePath, rel),
		attribute.String(tracing.AttrFileKind, filepath.Ext(rel)),
	)

	start := time.Now()
	res := FileResult{Path: rel}
	fail := func(err error) FileResult {
		res.Outcome = OutcomeFailed
		res.Err = err
		res.Duration = time.Since(start)
		span.RecordError(err)
		log.ErrorErr(log.CatPipeline, "file failed", err, "file", rel)
		return res
	}

	content, err := os.ReadFile(p.source(rel)) //nolint:gosec // G304: path discovered under the project root
	if err != nil {
		return fail(fmt.Errorf("read %s: %w", rel, err))
	}
	res.Original = content

	c, hit, err := p.memo.Get(ctx, cachemanager.NewContentKey(p.salt, rel, content), input{path: rel, content: content}, p.ttl)
	if err != nil {
		return fail(fmt.Errorf("rewrite %s: %w", rel, err))
	}
	res.Cached = hit
	res.Output = c.Output
	if hit {
		span.AddEvent(tracing.EventCacheHit)
	}

	switch c.State {
	case rewrite.Modified:
		res.Outcome = OutcomeRewritten
	case rewrite.Skipped:
		res.Outcome = OutcomeSkipped
		log.Debug(log.CatPipeline, "file skipped", "file", rel)
	default:
		res.Outcome = OutcomeUnchanged
	}
	span.SetAttributes(
		attribute.Bool(tracing.AttrRewriteChanged, res.Changed()),
		attribute.Bool(tracing.AttrRewriteCached, hit),
	)

	if out.Write {
		if err := p.write(rel, res, out.OutDir); err != nil {
			return fail(err)
		}
	}
	res.Duration = time.Since(start)
	return res
}

func (p *Pipeline) write(rel string, res FileResult, outDir string) error {
	if outDir == "" {
		if !res.Changed() {
			return nil
		}
		return writeFile(p.source(rel), res.Output)
	}
	return writeFile(filepath.Join(outDir, filepath.FromSlash(rel)), res.Output)
}

func (p *Pipeline) source(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

func (p *Pipeline) publish(t pubsub.EventType, e Event) {
	if p.events != nil {
		p.events.Publish(t, e)
	}
}

func eventType(o Outcome) pubsub.EventType {
	switch o {
	case OutcomeRewritten:
		return pubsub.FileRewritten
	case OutcomeSkipped:
		return pubsub.FileSkipped
	case OutcomeFailed:
		return pubsub.FileFailed
	default:
		return pubsub.FileUnchanged
	}
}

// writeFile replaces path atomically, keeping the mode of an existing file.
func writeFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".glitch-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
