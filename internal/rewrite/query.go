package rewrite

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/callsite"
	"github.com/withglyph/glitch/internal/jsast"
)

// syntheticData is the binding created when a route file exports no data.
const syntheticData = "__data"

// automaticQuery binds route queries to the page's data export.
type automaticQuery struct {
	reg     *artifact.Registry
	matcher *callsite.Matcher
}

func (s *automaticQuery) Name() string { return "automatic-query" }

func (s *automaticQuery) Apply(filePath string, p *jsast.Program) bool {
	if !artifact.IsRouteFile(filePath) {
		return false
	}
	if len(s.reg.FindByOrigin(artifact.KindQuery, artifact.OriginAutomatic, filePath)) == 0 {
		return false
	}

	binding, found := dataBinding(p)
	if !found {
		binding = syntheticData
	}

	rewrote := false
	s.matcher.Each(p, func(site callsite.Site) {
		a, ok := s.reg.FindBySource(artifact.KindQuery, filePath, site.Source)
		if !ok || a.Origin() != artifact.OriginAutomatic {
			return
		}
		if p.Replace(site.Call, binding+".__glitch_"+a.Name()) {
			rewrote = true
		}
	})
	if !rewrote {
		return false
	}

	if !found {
		p.Prepend(
			fmt.Sprintf("let %s;", syntheticData),
			fmt.Sprintf("export { %s as data };", syntheticData),
		)
	}
	return true
}

// dataBinding finds the local name exported as "data". The last matching
// export wins.
func dataBinding(p *jsast.Program) (string, bool) {
	var (
		local string
		found bool
	)
	jsast.Walk(p.Root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "export_statement":
			decl := n.ChildByFieldName("declaration")
			if decl != nil && declaresData(p, decl) {
				local, found = "data", true
			}
			return true
		case "export_specifier":
			name := n.ChildByFieldName("name")
			if name == nil {
				return false
			}
			exported := name
			if alias := n.ChildByFieldName("alias"); alias != nil {
				exported = alias
			}
			if p.Text(exported) == "data" && name.Type() == "identifier" {
				local, found = p.Text(name), true
			}
			return false
		case "function_declaration", "class_declaration", "arrow_function", "function_expression", "function":
			return false
		}
		return true
	})
	return local, found
}

func declaresData(p *jsast.Program, decl *sitter.Node) bool {
	if decl.Type() != "lexical_declaration" && decl.Type() != "variable_declaration" {
		return false
	}
	for _, d := range jsast.NamedChildren(decl) {
		if d.Type() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		if name != nil && name.Type() == "identifier" && p.Text(name) == "data" {
			return true
		}
	}
	return false
}

// manualQuery turns queries outside route data into explicit stores.
type manualQuery struct {
	reg     *artifact.Registry
	matcher *callsite.Matcher
	cfg     Config
}

func (s *manualQuery) Name() string { return "manual-query" }

func (s *manualQuery) Apply(filePath string, p *jsast.Program) bool {
	if len(s.reg.FindByOrigin(artifact.KindQuery, artifact.OriginManual, filePath)) == 0 {
		return false
	}

	rewrote := false
	s.matcher.Each(p, func(site callsite.Site) {
		a, ok := s.reg.FindBySource(artifact.KindQuery, filePath, site.Source)
		if !ok || a.Origin() != artifact.OriginManual {
			return
		}
		call := fmt.Sprintf("%s(%s)", s.cfg.StoreFactory, documentRef(AliasQuery, a))
		if p.Replace(site.Call, call) {
			rewrote = true
		}
	})
	if !rewrote {
		return false
	}

	p.Prepend(
		fmt.Sprintf("import { %s } from %s;", s.cfg.StoreFactory, callsite.Quote(s.cfg.RuntimeModule)),
		namespaceImport(AliasQuery, s.cfg.BaseModule),
	)
	return true
}
