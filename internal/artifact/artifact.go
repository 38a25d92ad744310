package artifact

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/cespare/xxhash/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// Kind is the GraphQL construct an artifact was extracted from.
type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
	KindFragment     Kind = "fragment"
)

// Kinds lists every kind in rewrite order.
var Kinds = []Kind{KindQuery, KindMutation, KindSubscription, KindFragment}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindQuery, KindMutation, KindSubscription, KindFragment:
		return true
	}
	return false
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Origin records how an artifact is bound at runtime.
type Origin string

const (
	// OriginAutomatic artifacts are attached to a page or layout data export.
	OriginAutomatic Origin = "automatic"
	// OriginManual artifacts are instantiated explicitly by the developer.
	OriginManual Origin = "manual"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o == OriginAutomatic || o == OriginManual
}

var routeFile = regexp.MustCompile(`^\+(page|layout)`)

// IsRouteFile reports whether path is a page or layout module. Queries
// declared there are bound to the route's data export.
func IsRouteFile(path string) bool {
	return routeFile.MatchString(filepath.Base(path))
}

// OriginFor returns the origin extraction assigns to a kind declared in
// filePath: automatic for route queries, manual otherwise.
func OriginFor(kind Kind, filePath string) Origin {
	if kind == KindQuery && IsRouteFile(filePath) {
		return OriginAutomatic
	}
	return OriginManual
}

// Builder errors
var (
	ErrInvalidKind    = errors.New("invalid artifact kind")
	ErrInvalidOrigin  = errors.New("invalid artifact origin")
	ErrEmptyName      = errors.New("artifact name cannot be empty")
	ErrEmptyFilePath  = errors.New("artifact file path cannot be empty")
	ErrEmptySource    = errors.New("artifact source cannot be empty")
	ErrAutomaticKind  = errors.New("only queries can be automatic")
	ErrDocumentKind   = errors.New("document does not define the artifact kind")
	ErrDocumentLength = errors.New("document must contain exactly one definition")
)

// Artifact is an immutable record describing one extracted GraphQL construct.
type Artifact struct {
	kind     Kind
	origin   Origin
	name     string
	filePath string
	source   string
	hash     uint64
	document *ast.QueryDocument
}

// Kind returns the artifact kind.
func (a *Artifact) Kind() Kind { return a.kind }

// Origin returns whether the artifact is automatic or manual.
func (a *Artifact) Origin() Origin { return a.origin }

// Name returns the generated identifier, unique within a registry.
func (a *Artifact) Name() string { return a.name }

// FilePath returns the file that declared the call-site.
func (a *Artifact) FilePath() string { return a.filePath }

// Source returns the literal text as written at the call-site.
func (a *Artifact) Source() string { return a.source }

// Hash returns the xxhash of the source text.
func (a *Artifact) Hash() uint64 { return a.hash }

// Document returns the parsed GraphQL definition, or nil if the artifact was
// loaded without one.
func (a *Artifact) Document() *ast.QueryDocument { return a.document }

// String implements fmt.Stringer.
func (a *Artifact) String() string {
	return fmt.Sprintf("%s %s (%s) in %s", a.kind, a.name, a.origin, a.filePath)
}

// HashSource returns the hash stored for a source text.
func HashSource(source string) uint64 {
	return xxhash.Sum64String(source)
}

// Builder provides a fluent API for creating artifacts.
type Builder struct {
	kind     Kind
	origin   Origin
	name     string
	filePath string
	source   string
	document *ast.QueryDocument
}

// NewBuilder creates a new artifact builder for the given kind.
// The origin defaults to manual.
func NewBuilder(kind Kind) *Builder {
	return &Builder{kind: kind, origin: OriginManual}
}

// Origin sets the artifact origin.
func (b *Builder) Origin(o Origin) *Builder {
	b.origin = o
	return b
}

// Name sets the generated name.
func (b *Builder) Name(n string) *Builder {
	b.name = n
	return b
}

// FilePath sets the declaring file.
func (b *Builder) FilePath(p string) *Builder {
	b.filePath = p
	return b
}

// Source sets the exact literal text.
func (b *Builder) Source(s string) *Builder {
	b.source = s
	return b
}

// Document attaches the parsed GraphQL document.
func (b *Builder) Document(doc *ast.QueryDocument) *Builder {
	b.document = doc
	return b
}

// Build creates the artifact, validating required fields.
func (b *Builder) Build() (*Artifact, error) {
	if !b.kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, b.kind)
	}
	if !b.origin.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrigin, b.origin)
	}
	if b.origin == OriginAutomatic && b.kind != KindQuery {
		return nil, ErrAutomaticKind
	}
	if b.name == "" {
		return nil, ErrEmptyName
	}
	if b.filePath == "" {
		return nil, ErrEmptyFilePath
	}
	if b.source == "" {
		return nil, ErrEmptySource
	}
	if b.document != nil {
		if err := checkDocument(b.kind, b.document); err != nil {
			return nil, err
		}
	}

	return &Artifact{
		kind:     b.kind,
		origin:   b.origin,
		name:     b.name,
		filePath: b.filePath,
		source:   b.source,
		hash:     HashSource(b.source),
		document: b.document,
	}, nil
}

// checkDocument verifies the document holds a single definition of kind.
func checkDocument(kind Kind, doc *ast.QueryDocument) error {
	if len(doc.Operations)+len(doc.Fragments) != 1 {
		return ErrDocumentLength
	}
	if kind == KindFragment {
		if len(doc.Fragments) != 1 {
			return fmt.Errorf("%w: want fragment", ErrDocumentKind)
		}
		return nil
	}
	if len(doc.Operations) != 1 || string(doc.Operations[0].Operation) != string(kind) {
		return fmt.Errorf("%w: want %s", ErrDocumentKind, kind)
	}
	return nil
}
