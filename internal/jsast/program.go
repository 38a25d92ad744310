package jsast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrEmptyProgram is returned when Parse receives no content.
var ErrEmptyProgram = errors.New("empty program")

// ParseError reports that the content is not a program in the chosen language.
type ParseError struct {
	Language Language
	Line     uint32 // 1-based
	Column   uint32 // 0-based
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s syntax error at %d:%d", e.Language, e.Line, e.Column)
}

// edit is one pending change against the original source.
// A zero-width edit (start == end) is an insertion.
type edit struct {
	seq   int
	start uint32
	end   uint32
	text  string

	// When copy is set the edit renders text followed by the rendered
	// contents of [copyStart, copyEnd), including edits nested inside it.
	copy      bool
	copyStart uint32
	copyEnd   uint32
}

// Program is a parsed source plus the edits recorded against it.
// A Program is not safe for concurrent use.
type Program struct {
	lang     Language
	source   []byte
	tree     *sitter.Tree
	edits    []edit
	prepends []string
	seq      int
}

// Parse parses source with the grammar for lang.
// A tree containing syntax errors is reported as *ParseError.
func Parse(ctx context.Context, lang Language, source []byte) (*Program, error) {
	if len(bytes.TrimSpace(source)) == 0 {
		return nil, ErrEmptyProgram
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang.grammar())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		perr := &ParseError{Language: lang}
		if bad := firstError(root); bad != nil {
			perr.Line = bad.StartPoint().Row + 1
			perr.Column = bad.StartPoint().Column
		}
		tree.Close()
		return nil, perr
	}

	return &Program{lang: lang, source: source, tree: tree}, nil
}

// firstError finds the first ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	var found *sitter.Node
	Walk(n, func(c *sitter.Node) bool {
		if found != nil {
			return false
		}
		if c.Type() == "ERROR" || c.IsMissing() {
			found = c
			return false
		}
		return c.HasError()
	})
	return found
}

// Close releases the tree-sitter tree.
func (p *Program) Close() {
	if p.tree != nil {
		p.tree.Close()
		p.tree = nil
	}
}

// Language returns the grammar the program was parsed with.
func (p *Program) Language() Language { return p.lang }

// Root returns the program node.
func (p *Program) Root() *sitter.Node { return p.tree.RootNode() }

// Source returns the original, unedited source.
func (p *Program) Source() []byte { return p.source }

// Text returns the original source text of n.
func (p *Program) Text(n *sitter.Node) string {
	return string(p.source[n.StartByte():n.EndByte()])
}

// Modified reports whether any edit or prepend has been recorded.
func (p *Program) Modified() bool {
	return len(p.edits) > 0 || len(p.prepends) > 0
}

// Replace records a replacement of n's text.
// Returns false if n overlaps a range that has already been replaced.
func (p *Program) Replace(n *sitter.Node, text string) bool {
	return p.replaceRange(n.StartByte(), n.EndByte(), text)
}

func (p *Program) replaceRange(start, end uint32, text string) bool {
	for _, e := range p.edits {
		if e.start == e.end {
			continue
		}
		if start < e.end && e.start < end {
			return false
		}
	}
	p.add(edit{start: start, end: end, text: text})
	return true
}

// Insert records an insertion of text at byte offset.
// Insertions at the same offset render in the order they were recorded.
func (p *Program) Insert(offset uint32, text string) {
	p.add(edit{start: offset, end: offset, text: text})
}

// InsertCopy records an insertion at offset of prefix followed by the
// rendered text of n. Edits recorded inside n, before or after this call,
// are reflected in the copy.
func (p *Program) InsertCopy(offset uint32, prefix string, n *sitter.Node) {
	p.add(edit{
		start:     offset,
		end:       offset,
		text:      prefix,
		copy:      true,
		copyStart: n.StartByte(),
		copyEnd:   n.EndByte(),
	})
}

func (p *Program) add(e edit) {
	e.seq = p.seq
	p.seq++
	p.edits = append(p.edits, e)
}

// Covered reports whether n lies inside an already replaced range.
func (p *Program) Covered(n *sitter.Node) bool {
	start, end := n.StartByte(), n.EndByte()
	for _, e := range p.edits {
		if e.start == e.end {
			continue
		}
		if e.start <= start && end <= e.end {
			return true
		}
	}
	return false
}

// Prepend places statements at the top of the program, ahead of any
// statements prepended earlier.
func (p *Program) Prepend(stmts ...string) {
	p.prepends = append(append(make([]string, 0, len(stmts)+len(p.prepends)), stmts...), p.prepends...)
}

// Print renders the source with every recorded edit applied.
func (p *Program) Print() []byte {
	edits := make([]edit, len(p.edits), len(p.edits)+1)
	copy(edits, p.edits)

	// After a hashbang or directive prologue the prepended statements become
	// an insertion, placed ahead of anything else inserted at that offset.
	cut := uint32(0)
	if len(p.prepends) > 0 {
		cut = p.prologueEnd()
	}
	if cut > 0 {
		edits = append(edits, edit{seq: prologueSeq, start: cut, end: cut, text: "\n" + strings.Join(p.prepends, "\n")})
	}

	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i], edits[j]
		if a.start != b.start {
			return a.start < b.start
		}
		// Insertions go ahead of a replacement starting at the same offset.
		if ai, bi := a.start == a.end, b.start == b.end; ai != bi {
			return ai
		}
		return a.seq < b.seq
	})

	if cut > 0 {
		return []byte(p.render(edits, 0, uint32(len(p.source)), topLevel))
	}

	var b strings.Builder
	body := p.render(edits, 0, uint32(len(p.source)), topLevel)

	if len(p.prepends) == 0 {
		b.WriteString(body)
		return []byte(b.String())
	}

	// Keep a leading newline (typical of <script> blocks) ahead of the
	// prepended statements.
	if strings.HasPrefix(body, "\n") {
		b.WriteString("\n")
		body = body[1:]
	}
	for _, stmt := range p.prepends {
		b.WriteString(stmt)
		b.WriteString("\n")
	}
	b.WriteString(body)
	return []byte(b.String())
}

const (
	topLevel    = -1
	prologueSeq = -2
)

// prologueEnd returns the end offset of a leading hashbang line and
// directive prologue, or 0 when the program has neither.
func (p *Program) prologueEnd() uint32 {
	var cut uint32
	root := p.Root()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch {
		case n.Type() == "hash_bang_line", isDirective(n):
			cut = n.EndByte()
		case n.Type() == "comment":
		default:
			return cut
		}
	}
	return cut
}

// isDirective reports whether n is a statement made of a single string
// literal, such as 'use strict'.
func isDirective(n *sitter.Node) bool {
	return n.Type() == "expression_statement" && n.NamedChildCount() == 1 && n.NamedChild(0).Type() == "string"
}

// render writes source[lo:hi) with the edits contained in that range applied.
// self is the seq of the copy edit being rendered (or topLevel); for
// copies, insertions sitting exactly on the boundaries belong to the
// enclosing text and are skipped.
func (p *Program) render(edits []edit, lo, hi uint32, self int) string {
	var b strings.Builder
	cursor := lo
	for _, e := range edits {
		if e.seq == self || e.start < lo || e.end > hi {
			continue
		}
		if self >= 0 && e.start == e.end && (e.start == lo || e.start == hi) {
			continue
		}
		if e.start < cursor {
			// Nested inside a replacement already written.
			continue
		}
		b.Write(p.source[cursor:e.start])
		b.WriteString(e.text)
		if e.copy {
			b.WriteString(p.render(edits, e.copyStart, e.copyEnd, e.seq))
		}
		cursor = e.end
	}
	b.Write(p.source[cursor:hi])
	return b.String()
}

// Walk visits n and its descendants in document order.
// Returning false from fn skips the children of the visited node.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		Walk(n.Child(i), fn)
	}
}

// NamedChildren returns the named children of n, skipping comments.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}
