package rewrite

import (
	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/callsite"
	"github.com/withglyph/glitch/internal/jsast"
)

// operation handles mutations, subscriptions and fragments. The literal
// becomes the kind name and the document reference is appended to the
// argument list.
type operation struct {
	kind    artifact.Kind
	alias   string
	reg     *artifact.Registry
	matcher *callsite.Matcher
	cfg     Config

	// repeatSecond appends a copy of the second argument after the document
	// reference so that it stays the last argument.
	repeatSecond bool
}

func newMutation(reg *artifact.Registry, m *callsite.Matcher, cfg Config) *operation {
	return &operation{kind: artifact.KindMutation, alias: AliasMutation, reg: reg, matcher: m, cfg: cfg}
}

func newSubscription(reg *artifact.Registry, m *callsite.Matcher, cfg Config) *operation {
	return &operation{kind: artifact.KindSubscription, alias: AliasSubscription, reg: reg, matcher: m, cfg: cfg, repeatSecond: true}
}

func newFragment(reg *artifact.Registry, m *callsite.Matcher, cfg Config) *operation {
	return &operation{kind: artifact.KindFragment, alias: AliasFragment, reg: reg, matcher: m, cfg: cfg}
}

func (s *operation) Name() string { return string(s.kind) }

func (s *operation) Apply(filePath string, p *jsast.Program) bool {
	if len(s.reg.Find(s.kind, filePath)) == 0 {
		return false
	}

	rewrote := false
	s.matcher.Each(p, func(site callsite.Site) {
		a, ok := s.reg.FindBySource(s.kind, filePath, site.Source)
		if !ok {
			return
		}
		if !p.Replace(site.Literal(), callsite.Quote(string(s.kind))) {
			return
		}
		rewrote = true

		ref := ", " + documentRef(s.alias, a)
		end := site.Last().EndByte()
		if s.repeatSecond && len(site.Arguments) > 1 {
			p.InsertCopy(end, ref+", ", site.Arguments[1])
			return
		}
		p.Insert(end, ref)
	})
	if !rewrote {
		return false
	}

	p.Prepend(namespaceImport(s.alias, s.cfg.BaseModule))
	return true
}
