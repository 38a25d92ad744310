package artifact

import "errors"

// Registry errors
var (
	ErrNilArtifact     = errors.New("artifact cannot be nil")
	ErrDuplicateName   = errors.New("duplicate artifact name")
	ErrDuplicateSource = errors.New("duplicate artifact source for kind in file")
	ErrSealed          = errors.New("registry is sealed")
)

type fileKey struct {
	kind     Kind
	filePath string
}

type sourceKey struct {
	kind     Kind
	filePath string
	source   string
}

// Registry holds every artifact of one build session.
//
// Add must not be called concurrently with lookups. Once Seal has been called
// the registry rejects writes and is safe for concurrent readers.
type Registry struct {
	artifacts []*Artifact
	byFile    map[fileKey][]*Artifact
	bySource  map[sourceKey]*Artifact
	names     map[string]*Artifact
	sealed    bool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		artifacts: make([]*Artifact, 0),
		byFile:    make(map[fileKey][]*Artifact),
		bySource:  make(map[sourceKey]*Artifact),
		names:     make(map[string]*Artifact),
	}
}

// NewSealedRegistry builds a registry from artifacts and seals it.
func NewSealedRegistry(artifacts ...*Artifact) (*Registry, error) {
	r := NewRegistry()
	for _, a := range artifacts {
		if err := r.Add(a); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}

// Add registers an artifact.
func (r *Registry) Add(a *Artifact) error {
	if r.sealed {
		return ErrSealed
	}
	if a == nil {
		return ErrNilArtifact
	}
	if _, ok := r.names[a.name]; ok {
		return ErrDuplicateName
	}
	sk := sourceKey{kind: a.kind, filePath: a.filePath, source: a.source}
	if _, ok := r.bySource[sk]; ok {
		return ErrDuplicateSource
	}

	fk := fileKey{kind: a.kind, filePath: a.filePath}
	r.artifacts = append(r.artifacts, a)
	r.byFile[fk] = append(r.byFile[fk], a)
	r.bySource[sk] = a
	r.names[a.name] = a
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Len returns the number of artifacts.
func (r *Registry) Len() int {
	return len(r.artifacts)
}

// List returns all artifacts in registration order.
func (r *Registry) List() []*Artifact {
	return r.artifacts
}

// Find returns the artifacts of kind declared in filePath, in registration order.
func (r *Registry) Find(kind Kind, filePath string) []*Artifact {
	return r.byFile[fileKey{kind: kind, filePath: filePath}]
}

// FindByOrigin returns the artifacts of kind and origin declared in filePath.
func (r *Registry) FindByOrigin(kind Kind, origin Origin, filePath string) []*Artifact {
	all := r.Find(kind, filePath)
	result := make([]*Artifact, 0, len(all))
	for _, a := range all {
		if a.origin == origin {
			result = append(result, a)
		}
	}
	return result
}

// FindBySource returns the artifact of kind in filePath whose source equals
// source exactly.
func (r *Registry) FindBySource(kind Kind, filePath, source string) (*Artifact, bool) {
	a, ok := r.bySource[sourceKey{kind: kind, filePath: filePath, source: source}]
	return a, ok
}

// FindByName returns the artifact with the given generated name.
func (r *Registry) FindByName(name string) (*Artifact, bool) {
	a, ok := r.names[name]
	return a, ok
}

// HasFile reports whether any artifact of any kind was declared in filePath.
func (r *Registry) HasFile(filePath string) bool {
	for _, k := range Kinds {
		if len(r.Find(k, filePath)) > 0 {
			return true
		}
	}
	return false
}


// Filter returns artifacts matching kind and filePath; empty values match all.
func (r *Registry) Filter(kind Kind, filePath string) []*Artifact {
	result := make([]*Artifact, 0)
	for _, a := range r.artifacts {
		if kind != "" && a.kind != kind {
			continue
		}
		if filePath != "" && a.filePath != filePath {
			continue
		}
		result = append(result, a)
	}
	return result
}
