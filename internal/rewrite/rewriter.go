package rewrite

import (
	"bytes"
	"context"
	"errors"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/callsite"
	"github.com/withglyph/glitch/internal/jsast"
	"github.com/withglyph/glitch/internal/log"
)

// State is the outcome of rewriting one file.
type State int

const (
	Unchanged State = iota
	Modified
	// Skipped means the file is not a supported source or could not be parsed.
	// Its content is returned unchanged.
	Skipped
)

func (s State) String() string {
	switch s {
	case Modified:
		return "modified"
	case Skipped:
		return "skipped"
	default:
		return "unchanged"
	}
}

// Rewriter applies every strategy to a file. The registry must not be
// modified while a Rewriter is in use; a Rewriter is safe for concurrent use.
type Rewriter struct {
	reg        *artifact.Registry
	cfg        Config
	matcher    *callsite.Matcher
	strategies []Strategy
}

// New creates a rewriter over reg.
func New(reg *artifact.Registry, cfg Config) *Rewriter {
	cfg = cfg.withDefaults()
	m := callsite.New(cfg.Marker)
	return &Rewriter{
		reg:     reg,
		cfg:     cfg,
		matcher: m,
		strategies: []Strategy{
			&automaticQuery{reg: reg, matcher: m},
			&manualQuery{reg: reg, matcher: m, cfg: cfg},
			newMutation(reg, m, cfg),
			newSubscription(reg, m, cfg),
			newFragment(reg, m, cfg),
		},
	}
}

// Transform rewrites content, which was read from filePath. It returns the
// new content and true when any call-site was rewritten; otherwise content
// is returned as is. Content that cannot be parsed passes through unchanged.
func (r *Rewriter) Transform(filePath string, content []byte) ([]byte, bool) {
	out, state := r.TransformContext(context.Background(), filePath, content)
	return out, state == Modified
}

// TransformContext is Transform with a context for the parser. Files with
// an unsupported extension, or that fail to parse, report Skipped.
func (r *Rewriter) TransformContext(ctx context.Context, filePath string, content []byte) ([]byte, State) {
	if !jsast.Supported(filePath) {
		return content, Skipped
	}
	if !r.reg.HasFile(filePath) && r.cfg.OnUnmatched == nil {
		return content, Unchanged
	}

	if jsast.IsSvelte(filePath) {
		return r.transformSvelte(ctx, filePath, content)
	}

	lang, _ := jsast.LanguageForPath(filePath)
	out, state := r.transformProgram(ctx, filePath, lang, content)
	if state != Modified {
		return content, state
	}
	return out, Modified
}

// transformSvelte rewrites each <script> block as a separate program.
func (r *Rewriter) transformSvelte(ctx context.Context, filePath string, content []byte) ([]byte, State) {
	blocks, err := jsast.ScriptBlocks(content)
	if err != nil {
		return content, Skipped
	}
	if len(blocks) == 0 {
		return content, Unchanged
	}

	var (
		buf     bytes.Buffer
		cursor  int
		changed bool
		failed  bool
	)
	for _, b := range blocks {
		out, state := r.transformProgram(ctx, filePath, b.Language, b.Content(content))
		if state == Skipped {
			failed = true
		}
		if state != Modified {
			continue
		}
		buf.Write(content[cursor:b.Start])
		buf.Write(out)
		cursor = b.End
		changed = true
	}
	if !changed {
		if failed {
			return content, Skipped
		}
		return content, Unchanged
	}
	buf.Write(content[cursor:])
	return buf.Bytes(), Modified
}

func (r *Rewriter) transformProgram(ctx context.Context, filePath string, lang jsast.Language, src []byte) ([]byte, State) {
	p, err := jsast.Parse(ctx, lang, src)
	if errors.Is(err, jsast.ErrEmptyProgram) {
		return nil, Unchanged
	}
	if err != nil {
		return nil, Skipped
	}
	defer p.Close()

	if r.cfg.OnUnmatched != nil {
		r.reportUnmatched(filePath, p)
	}

	for _, s := range r.strategies {
		if s.Apply(filePath, p) {
			log.Debug(log.CatRewrite, "rewrote call-sites", "file", filePath, "strategy", s.Name())
		}
	}
	if !p.Modified() {
		return nil, Unchanged
	}
	return p.Print(), Modified
}

func (r *Rewriter) reportUnmatched(filePath string, p *jsast.Program) {
	for _, site := range r.matcher.Sites(p) {
		// Already rewritten operations carry their kind as the literal.
		if artifact.Kind(site.Source).Valid() || r.known(filePath, site.Source) {
			continue
		}
		r.cfg.OnUnmatched(filePath, site)
	}
}

func (r *Rewriter) known(filePath, source string) bool {
	for _, k := range artifact.Kinds {
		if _, ok := r.reg.FindBySource(k, filePath, source); ok {
			return true
		}
	}
	return false
}
