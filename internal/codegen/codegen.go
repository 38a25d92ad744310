// Package codegen writes the generated base module that rewritten call-sites
// import. It exports one DocumentNode_<name> member per artifact, holding the
// parsed document in graphql-js AST form.
package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/rewrite"
)

// ErrUnknownFragment is returned when a document spreads a fragment that no
// artifact defines.
var ErrUnknownFragment = errors.New("unknown fragment")

const header = "// Code generated by glitch. DO NOT EDIT.\n"

var moduleTemplate = template.Must(template.New("module").Parse(header + `{{range .}}
/** {{.Kind}} {{.Name}} */
export const {{.Export}} = {{.Document}};
{{end}}`))

// Entry is one generated document node.
type Entry struct {
	Export string
	Kind   string
	Name   string
	// Source is the formatted document including every fragment it spreads.
	Source string
	// Document is Source as graphql-js AST JSON. The artifact's own
	// definition comes first.
	Document string
}

// Entries builds the document nodes of reg, sorted by artifact name.
func Entries(reg *artifact.Registry) ([]Entry, error) {
	docs := make(map[string]*ast.QueryDocument, reg.Len())
	fragments := make(map[string]*ast.FragmentDefinition)
	for _, a := range reg.List() {
		doc, err := document(a)
		if err != nil {
			return nil, err
		}
		docs[a.Name()] = doc
		for _, f := range doc.Fragments {
			fragments[f.Name] = f
		}
	}

	entries := make([]Entry, 0, reg.Len())
	for _, a := range reg.List() {
		doc := docs[a.Name()]
		spread, err := spreadFragments(doc, fragments)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name(), err)
		}
		full := &ast.QueryDocument{
			Operations: doc.Operations,
			Fragments:  append(append(ast.FragmentDefinitionList{}, doc.Fragments...), spread...),
		}
		source := format(full)
		encoded, err := encodeDocument(full, source)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name(), err)
		}
		entries = append(entries, Entry{
			Export:   rewrite.DocumentPrefix + a.Name(),
			Kind:     string(a.Kind()),
			Name:     a.Name(),
			Source:   source,
			Document: encoded,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Generate renders the base module for reg.
func Generate(reg *artifact.Registry) ([]byte, error) {
	entries, err := Entries(reg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := moduleTemplate.Execute(&buf, entries); err != nil {
		return nil, fmt.Errorf("render module: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders the module and replaces path atomically.
func WriteFile(path string, reg *artifact.Registry) error {
	out, err := Generate(reg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".glitch-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write module: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close module: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	log.Info(log.CatCodegen, "wrote base module", "path", path, "documents", reg.Len())
	return nil
}

// document returns the parsed document of a, parsing the source when the
// artifact was loaded without one.
func document(a *artifact.Artifact) (*ast.QueryDocument, error) {
	if doc := a.Document(); doc != nil {
		return doc, nil
	}
	doc, err := parser.ParseQuery(&ast.Source{Name: a.FilePath(), Input: a.Source()})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", a.Name(), err)
	}
	return doc, nil
}

// spreadFragments returns the fragments doc spreads, transitively, that doc
// does not define itself. Results are sorted by name.
func spreadFragments(doc *ast.QueryDocument, known map[string]*ast.FragmentDefinition) (ast.FragmentDefinitionList, error) {
	own := make(map[string]bool, len(doc.Fragments))
	for _, f := range doc.Fragments {
		own[f.Name] = true
	}

	seen := make(map[string]bool)
	var walk func(ast.SelectionSet) error
	walk = func(set ast.SelectionSet) error {
		for _, sel := range set {
			switch node := sel.(type) {
			case *ast.Field:
				if err := walk(node.SelectionSet); err != nil {
					return err
				}
			case *ast.InlineFragment:
				if err := walk(node.SelectionSet); err != nil {
					return err
				}
			case *ast.FragmentSpread:
				if seen[node.Name] {
					continue
				}
				seen[node.Name] = true
				def, ok := known[node.Name]
				if !ok {
					return fmt.Errorf("%w: %s", ErrUnknownFragment, node.Name)
				}
				if err := walk(def.SelectionSet); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, op := range doc.Operations {
		if err := walk(op.SelectionSet); err != nil {
			return nil, err
		}
	}
	for _, f := range doc.Fragments {
		if err := walk(f.SelectionSet); err != nil {
			return nil, err
		}
	}

	var out ast.FragmentDefinitionList
	for name := range seen {
		if !own[name] {
			out = append(out, known[name])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func format(doc *ast.QueryDocument) string {
	var b strings.Builder
	formatter.NewFormatter(&b, formatter.WithIndent("  ")).FormatQueryDocument(doc)
	return strings.TrimSpace(b.String())
}
