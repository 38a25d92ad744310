// Package rewrite turns graphql(...) call-sites that reference extracted
// artifacts into bindings against the generated document-node module.
//
// A Rewriter runs five strategies over each parsed program, always in the same
// order: automatic query, manual query, mutation, subscription, fragment.
// Each strategy only touches call-sites whose literal text equals the source of
// an artifact of its kind declared in the same file.
package rewrite

import (
	"fmt"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/callsite"
	"github.com/withglyph/glitch/internal/jsast"
)

// Namespace aliases for the generated module. The prefix is reserved.
const (
	AliasQuery        = "__glitch_base"
	AliasMutation     = "__glitch_base_m"
	AliasSubscription = "__glitch_base_s"
	AliasFragment     = "__glitch_base_f"
)

// DocumentPrefix prefixes every member exported by the generated module.
const DocumentPrefix = "DocumentNode_"

// Defaults for the module specifiers written into rewritten files.
const (
	DefaultBaseModule    = "$glitch/base"
	DefaultRuntimeModule = "@withglyph/glitch/runtime"
	DefaultStoreFactory  = "createManualQueryStore"
)

// Strategy rewrites the call-sites of one artifact kind.
type Strategy interface {
	// Name identifies the strategy in logs and traces.
	Name() string
	// Apply records edits against p and reports whether it rewrote anything.
	Apply(filePath string, p *jsast.Program) bool
}

// Config controls the text produced by the strategies.
type Config struct {
	// Marker is the callee identifier of call-sites. Defaults to "graphql".
	Marker string
	// BaseModule is the specifier of the generated document-node module.
	BaseModule string
	// RuntimeModule is the specifier that exports StoreFactory.
	RuntimeModule string
	// StoreFactory builds a store for a manual query.
	StoreFactory string
	// OnUnmatched, when set, receives every call-site whose literal matches no
	// artifact declared in the file.
	OnUnmatched func(filePath string, site callsite.Site)
}

func (c Config) withDefaults() Config {
	if c.Marker == "" {
		c.Marker = callsite.DefaultMarker
	}
	if c.BaseModule == "" {
		c.BaseModule = DefaultBaseModule
	}
	if c.RuntimeModule == "" {
		c.RuntimeModule = DefaultRuntimeModule
	}
	if c.StoreFactory == "" {
		c.StoreFactory = DefaultStoreFactory
	}
	return c
}

// documentRef renders alias.DocumentNode_<name>.
func documentRef(alias string, a *artifact.Artifact) string {
	return alias + "." + DocumentPrefix + a.Name()
}

func namespaceImport(alias, module string) string {
	return fmt.Sprintf("import * as %s from %s;", alias, callsite.Quote(module))
}
