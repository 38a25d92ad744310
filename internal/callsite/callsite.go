// Package callsite finds marker call expressions such as
// graphql(`query Home { ... }`) in a parsed program.
//
// Both extraction and rewriting read the literal through this package so the
// text stored on an artifact is byte-for-byte the text the rewriter compares.
package callsite

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/withglyph/glitch/internal/jsast"
)

// DefaultMarker is the callee identifier recognised when none is configured.
const DefaultMarker = "graphql"

// Site is one matched call expression.
type Site struct {
	// Call is the call_expression node.
	Call *sitter.Node
	// Arguments holds the call's argument nodes, comments excluded.
	Arguments []*sitter.Node
	// Source is the raw literal text of the first argument.
	Source string
	// Line is the 1-based line of the call.
	Line uint32
}

// Literal returns the string-like first argument.
func (s Site) Literal() *sitter.Node { return s.Arguments[0] }

// Last returns the final argument.
func (s Site) Last() *sitter.Node { return s.Arguments[len(s.Arguments)-1] }

// Matcher recognises calls to a bare marker identifier.
type Matcher struct {
	marker string
}

// New creates a matcher for marker. An empty marker uses DefaultMarker.
func New(marker string) *Matcher {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Matcher{marker: marker}
}

// Each calls fn for every matching call in document order. fn may record
// edits on p; ranges that have been replaced are not descended into, and a
// call whose literal has already been replaced is not reported.
func (m *Matcher) Each(p *jsast.Program, fn func(Site)) {
	jsast.Walk(p.Root(), func(n *sitter.Node) bool {
		if p.Covered(n) {
			return false
		}
		if n.Type() != "call_expression" {
			return true
		}
		site, ok := m.match(p, n)
		if !ok {
			return true
		}
		fn(site)
		return !p.Covered(n)
	})
}

// Sites returns every matching call in document order without editing p.
func (m *Matcher) Sites(p *jsast.Program) []Site {
	var sites []Site
	m.Each(p, func(s Site) { sites = append(sites, s) })
	return sites
}

func (m *Matcher) match(p *jsast.Program, call *sitter.Node) (Site, bool) {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" || p.Text(callee) != m.marker {
		return Site{}, false
	}

	// Tagged templates parse as call_expression with a template_string in
	// place of the argument list.
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != "arguments" {
		return Site{}, false
	}

	named := jsast.NamedChildren(args)
	if len(named) == 0 || p.Covered(named[0]) {
		return Site{}, false
	}

	source, ok := LiteralText(p, named[0])
	if !ok {
		return Site{}, false
	}

	return Site{
		Call:      call,
		Arguments: named,
		Source:    source,
		Line:      call.StartPoint().Row + 1,
	}, true
}

// LiteralText returns the raw text of a string-like literal node: for a
// template literal the text of its first quasi (up to the first ${), for a
// quoted string the text between the quotes. No escapes are processed.
func LiteralText(p *jsast.Program, n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "template_string":
		start := n.StartByte() + 1
		end := n.EndByte() - 1
		count := int(n.NamedChildCount())
		for i := 0; i < count; i++ {
			c := n.NamedChild(i)
			if c.Type() == "template_substitution" {
				end = c.StartByte()
				break
			}
		}
		if end < start {
			return "", false
		}
		return string(p.Source()[start:end]), true

	case "string":
		text := p.Text(n)
		if len(text) < 2 {
			return "", false
		}
		return text[1 : len(text)-1], true

	default:
		return "", false
	}
}

// Quote renders s as a double-quoted string literal.
func Quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}
