// Package extract builds the artifact registry by scanning source files for
// graphql(...) call-sites and parsing each literal as a GraphQL document.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/callsite"
	"github.com/withglyph/glitch/internal/jsast"
	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/tracing"
)

// Literal errors. Literals failing with these are skipped with a warning.
var (
	ErrInvalidDocument = errors.New("invalid graphql document")
	ErrUnnamed         = errors.New("graphql definition has no name")
	ErrMultiple        = errors.New("graphql literal must contain exactly one definition")
)

// Config configures an Extractor.
type Config struct {
	// Marker is the callee identifier of call-sites.
	Marker string
	// Workers bounds concurrent file parsing. Zero means runtime.NumCPU().
	Workers int
	// Tracer receives extract spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Skipped describes a call-site literal that did not become an artifact.
type Skipped struct {
	FilePath string
	Line     uint32
	Err      error
}

// Result is the outcome of an extraction run.
type Result struct {
	Registry *artifact.Registry
	Skipped  []Skipped
}

// Extractor scans sources for artifacts.
type Extractor struct {
	matcher *callsite.Matcher
	workers int
	tracer  trace.Tracer
}

// New creates an extractor.
func New(cfg Config) *Extractor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &Extractor{
		matcher: callsite.New(cfg.Marker),
		workers: workers,
		tracer:  tracer,
	}
}

// fileResult holds what one file contributed.
type fileResult struct {
	artifacts []*artifact.Artifact
	skipped   []Skipped
}

// Extract reads paths from fsys and returns a sealed registry. Files are
// parsed concurrently; artifacts are registered in path order so names and
// registration order do not depend on scheduling. Registry invariant
// violations (duplicate names or sources) fail the run.
func (e *Extractor) Extract(ctx context.Context, fsys fs.FS, paths []string) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, tracing.SpanExtractRun)
	span.SetAttributes(attribute.Int(tracing.AttrFileCount, len(paths)))

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	results := make([]fileResult, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, path := range sorted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := fs.ReadFile(fsys, path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			results[i] = e.extractFile(gctx, path, content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.End(span, err)
		return nil, err
	}

	reg := artifact.NewRegistry()
	res := &Result{Registry: reg}
	for _, fr := range results {
		for _, a := range fr.artifacts {
			if err := reg.Add(a); err != nil {
				err = fmt.Errorf("register %s: %w", a.FilePath(), err)
				tracing.End(span, err)
				return nil, err
			}
		}
		res.Skipped = append(res.Skipped, fr.skipped...)
	}
	reg.Seal()

	span.SetAttributes(attribute.Int(tracing.AttrArtifactCount, reg.Len()))
	tracing.End(span, nil)
	log.Info(log.CatExtract, "extraction complete", "files", len(sorted), "artifacts", reg.Len(), "skipped", len(res.Skipped))
	return res, nil
}

func (e *Extractor) extractFile(ctx context.Context, path string, content []byte) fileResult {
	ctx, span := e.tracer.Start(ctx, tracing.SpanExtractFile)
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrFilePath, path))

	var fr fileResult
	for _, src := range e.programs(ctx, path, content) {
		for _, site := range src.sites {
			a, err := Build(path, site.Source)
			if err != nil {
				log.Warn(log.CatExtract, "skipping graphql literal", "file", path, "line", site.Line+src.lineOffset, "error", err)
				span.AddEvent(tracing.EventLiteralSkipped)
				fr.skipped = append(fr.skipped, Skipped{FilePath: path, Line: site.Line + src.lineOffset, Err: err})
				continue
			}
			fr.artifacts = append(fr.artifacts, a)
		}
	}
	span.SetAttributes(attribute.Int(tracing.AttrArtifactCount, len(fr.artifacts)))
	return fr
}

type programSites struct {
	sites      []callsite.Site
	lineOffset uint32
}

// programs parses content (or each Svelte script block) and collects sites.
func (e *Extractor) programs(ctx context.Context, path string, content []byte) []programSites {
	if jsast.IsSvelte(path) {
		blocks, err := jsast.ScriptBlocks(content)
		if err != nil {
			log.Debug(log.CatExtract, "svelte scan failed", "file", path, "error", err)
			return nil
		}
		var out []programSites
		for _, b := range blocks {
			sites := e.sites(ctx, path, b.Language, b.Content(content))
			if len(sites) == 0 {
				continue
			}
			out = append(out, programSites{sites: sites, lineOffset: lineOf(content, b.Start)})
		}
		return out
	}

	lang, ok := jsast.LanguageForPath(path)
	if !ok {
		return nil
	}
	sites := e.sites(ctx, path, lang, content)
	if len(sites) == 0 {
		return nil
	}
	return []programSites{{sites: sites}}
}

func (e *Extractor) sites(ctx context.Context, path string, lang jsast.Language, src []byte) []callsite.Site {
	p, err := jsast.Parse(ctx, lang, src)
	if err != nil {
		if !errors.Is(err, jsast.ErrEmptyProgram) {
			log.Debug(log.CatExtract, "parse failed", "file", path, "error", err)
		}
		return nil
	}
	defer p.Close()
	return e.matcher.Sites(p)
}

// lineOf counts the newlines in content before offset.
func lineOf(content []byte, offset int) uint32 {
	var n uint32
	for _, c := range content[:offset] {
		if c == '\n' {
			n++
		}
	}
	return n
}

// Build parses source and returns the artifact it declares in path. The
// literal must hold exactly one named operation or fragment.
func Build(path, source string) (*artifact.Artifact, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: path, Input: source})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	kind, name, err := definition(doc)
	if err != nil {
		return nil, err
	}

	return artifact.NewBuilder(kind).
		Origin(artifact.OriginFor(kind, path)).
		Name(name).
		FilePath(path).
		Source(source).
		Document(doc).
		Build()
}

func definition(doc *ast.QueryDocument) (artifact.Kind, string, error) {
	if len(doc.Operations)+len(doc.Fragments) != 1 {
		return "", "", ErrMultiple
	}
	if len(doc.Fragments) == 1 {
		return artifact.KindFragment, doc.Fragments[0].Name, nil
	}
	op := doc.Operations[0]
	if op.Name == "" {
		return "", "", ErrUnnamed
	}
	kind, err := artifact.ParseKind(string(op.Operation))
	if err != nil {
		return "", "", err
	}
	return kind, op.Name, nil
}
