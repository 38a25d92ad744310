package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// The types below mirror the graphql-js AST so the generated module can be
// handed to any client expecting a parsed DocumentNode.

type node struct {
	Kind string `json:"kind"`
}

type nameNode struct {
	node
	Value string `json:"value"`
}

type documentNode struct {
	node
	Definitions []any    `json:"definitions"`
	Loc         *locNode `json:"loc,omitempty"`
}

// locNode carries the printed document so clients that key requests by
// loc.source.body do not have to print it again.
type locNode struct {
	Start  int        `json:"start"`
	End    int        `json:"end"`
	Source sourceNode `json:"source"`
}

type sourceNode struct {
	Body           string         `json:"body"`
	Name           string         `json:"name"`
	LocationOffset locationOffset `json:"locationOffset"`
}

type locationOffset struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type operationNode struct {
	node
	Operation           string          `json:"operation"`
	Name                *nameNode       `json:"name,omitempty"`
	VariableDefinitions []variableNode  `json:"variableDefinitions"`
	Directives          []directiveNode `json:"directives"`
	SelectionSet        selectionSet    `json:"selectionSet"`
}

type fragmentNode struct {
	node
	Name          *nameNode       `json:"name"`
	TypeCondition typeNode        `json:"typeCondition"`
	Directives    []directiveNode `json:"directives"`
	SelectionSet  selectionSet    `json:"selectionSet"`
}

type variableNode struct {
	node
	Variable     variable        `json:"variable"`
	Type         typeNode        `json:"type"`
	DefaultValue any             `json:"defaultValue,omitempty"`
	Directives   []directiveNode `json:"directives"`
}

type typeNode struct {
	node
	Name *nameNode `json:"name,omitempty"`
	Type *typeNode `json:"type,omitempty"`
}

type selectionSet struct {
	node
	Selections []any `json:"selections"`
}

type fieldNode struct {
	node
	Alias        *nameNode       `json:"alias,omitempty"`
	Name         *nameNode       `json:"name"`
	Arguments    []argumentNode  `json:"arguments"`
	Directives   []directiveNode `json:"directives"`
	SelectionSet *selectionSet   `json:"selectionSet,omitempty"`
}

type spreadNode struct {
	node
	Name       *nameNode       `json:"name"`
	Directives []directiveNode `json:"directives"`
}

type inlineFragmentNode struct {
	node
	TypeCondition *typeNode       `json:"typeCondition,omitempty"`
	Directives    []directiveNode `json:"directives"`
	SelectionSet  selectionSet    `json:"selectionSet"`
}

type directiveNode struct {
	node
	Name      *nameNode      `json:"name"`
	Arguments []argumentNode `json:"arguments"`
}

type argumentNode struct {
	node
	Name  *nameNode `json:"name"`
	Value any       `json:"value"`
}

type variable struct {
	node
	Name *nameNode `json:"name"`
}

type scalarValue struct {
	node
	Value any   `json:"value"`
	Block *bool `json:"block,omitempty"`
}

type listValue struct {
	node
	Values []any `json:"values"`
}

type objectValue struct {
	node
	Fields []objectField `json:"fields"`
}

type objectField struct {
	node
	Name  *nameNode `json:"name"`
	Value any       `json:"value"`
}

func nameOf(v string) *nameNode {
	return &nameNode{node: node{"Name"}, Value: v}
}

// encodeDocument renders doc as graphql-js AST JSON. source is the printed
// form of doc.
func encodeDocument(doc *ast.QueryDocument, source string) (string, error) {
	out := documentNode{
		node:        node{"Document"},
		Definitions: make([]any, 0, len(doc.Operations)+len(doc.Fragments)),
		Loc: &locNode{
			End: len(source),
			Source: sourceNode{
				Body:           source,
				Name:           "GraphQL request",
				LocationOffset: locationOffset{Line: 1, Column: 1},
			},
		},
	}
	for _, op := range doc.Operations {
		out.Definitions = append(out.Definitions, operation(op))
	}
	for _, f := range doc.Fragments {
		out.Definitions = append(out.Definitions, fragment(f))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

func operation(op *ast.OperationDefinition) operationNode {
	n := operationNode{
		node:                node{"OperationDefinition"},
		Operation:           string(op.Operation),
		VariableDefinitions: make([]variableNode, 0, len(op.VariableDefinitions)),
		Directives:          directives(op.Directives),
		SelectionSet:        selections(op.SelectionSet),
	}
	if op.Name != "" {
		n.Name = nameOf(op.Name)
	}
	for _, v := range op.VariableDefinitions {
		vn := variableNode{
			node:       node{"VariableDefinition"},
			Variable:   variable{node: node{"Variable"}, Name: nameOf(v.Variable)},
			Type:       typeRef(v.Type),
			Directives: directives(v.Directives),
		}
		if v.DefaultValue != nil {
			vn.DefaultValue = value(v.DefaultValue)
		}
		n.VariableDefinitions = append(n.VariableDefinitions, vn)
	}
	return n
}

func fragment(f *ast.FragmentDefinition) fragmentNode {
	return fragmentNode{
		node:          node{"FragmentDefinition"},
		Name:          nameOf(f.Name),
		TypeCondition: namedType(f.TypeCondition),
		Directives:    directives(f.Directives),
		SelectionSet:  selections(f.SelectionSet),
	}
}

func namedType(n string) typeNode {
	return typeNode{node: node{"NamedType"}, Name: nameOf(n)}
}

func typeRef(t *ast.Type) typeNode {
	var inner typeNode
	if t.Elem != nil {
		elem := typeRef(t.Elem)
		inner = typeNode{node: node{"ListType"}, Type: &elem}
	} else {
		inner = namedType(t.NamedType)
	}
	if !t.NonNull {
		return inner
	}
	return typeNode{node: node{"NonNullType"}, Type: &inner}
}

func selections(set ast.SelectionSet) selectionSet {
	out := selectionSet{node: node{"SelectionSet"}, Selections: make([]any, 0, len(set))}
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			f := fieldNode{
				node:       node{"Field"},
				Name:       nameOf(s.Name),
				Arguments:  arguments(s.Arguments),
				Directives: directives(s.Directives),
			}
			// The parser sets Alias to Name when the field has no alias.
			if s.Alias != "" && s.Alias != s.Name {
				f.Alias = nameOf(s.Alias)
			}
			if len(s.SelectionSet) > 0 {
				sub := selections(s.SelectionSet)
				f.SelectionSet = &sub
			}
			out.Selections = append(out.Selections, f)
		case *ast.FragmentSpread:
			out.Selections = append(out.Selections, spreadNode{
				node:       node{"FragmentSpread"},
				Name:       nameOf(s.Name),
				Directives: directives(s.Directives),
			})
		case *ast.InlineFragment:
			in := inlineFragmentNode{
				node:         node{"InlineFragment"},
				Directives:   directives(s.Directives),
				SelectionSet: selections(s.SelectionSet),
			}
			if s.TypeCondition != "" {
				tc := namedType(s.TypeCondition)
				in.TypeCondition = &tc
			}
			out.Selections = append(out.Selections, in)
		}
	}
	return out
}

func directives(list ast.DirectiveList) []directiveNode {
	out := make([]directiveNode, 0, len(list))
	for _, d := range list {
		out = append(out, directiveNode{
			node:      node{"Directive"},
			Name:      nameOf(d.Name),
			Arguments: arguments(d.Arguments),
		})
	}
	return out
}

func arguments(list ast.ArgumentList) []argumentNode {
	out := make([]argumentNode, 0, len(list))
	for _, a := range list {
		out = append(out, argumentNode{
			node:  node{"Argument"},
			Name:  nameOf(a.Name),
			Value: value(a.Value),
		})
	}
	return out
}

func value(v *ast.Value) any {
	switch v.Kind {
	case ast.Variable:
		return variable{node: node{"Variable"}, Name: nameOf(v.Raw)}
	case ast.IntValue:
		return scalarValue{node: node{"IntValue"}, Value: v.Raw}
	case ast.FloatValue:
		return scalarValue{node: node{"FloatValue"}, Value: v.Raw}
	case ast.StringValue, ast.BlockValue:
		block := v.Kind == ast.BlockValue
		return scalarValue{node: node{"StringValue"}, Value: v.Raw, Block: &block}
	case ast.BooleanValue:
		return scalarValue{node: node{"BooleanValue"}, Value: v.Raw == "true"}
	case ast.NullValue:
		return node{"NullValue"}
	case ast.EnumValue:
		return scalarValue{node: node{"EnumValue"}, Value: v.Raw}
	case ast.ListValue:
		out := listValue{node: node{"ListValue"}, Values: make([]any, 0, len(v.Children))}
		for _, c := range v.Children {
			out.Values = append(out.Values, value(c.Value))
		}
		return out
	default:
		out := objectValue{node: node{"ObjectValue"}, Fields: make([]objectField, 0, len(v.Children))}
		for _, c := range v.Children {
			out.Fields = append(out.Fields, objectField{node: node{"ObjectField"}, Name: nameOf(c.Name), Value: value(c.Value)})
		}
		return out
	}
}
