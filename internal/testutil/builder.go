// Package testutil provides fixtures for artifact registries and source trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/withglyph/glitch/internal/artifact"
)

// Builder accumulates artifacts and builds a sealed registry from them.
type Builder struct {
	t         *testing.T
	artifacts []artifactData
	files     map[string]string
}

// NewBuilder creates an empty builder.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t, files: make(map[string]string)}
}

// WithArtifact adds an artifact declared in file with the given source.
// Queries default to automatic in route files and manual elsewhere.
func (b *Builder) WithArtifact(kind artifact.Kind, name, file, source string, opts ...ArtifactOption) *Builder {
	a := defaultArtifact(kind, name, file, source)
	for _, opt := range opts {
		opt(&a)
	}
	b.artifacts = append(b.artifacts, a)
	return b
}

// WithFile records a source file to be written by WriteTree.
func (b *Builder) WithFile(path, content string) *Builder {
	b.files[path] = content
	return b
}

// Artifacts builds every accumulated artifact in insertion order.
func (b *Builder) Artifacts() []*artifact.Artifact {
	b.t.Helper()
	out := make([]*artifact.Artifact, 0, len(b.artifacts))
	for _, d := range b.artifacts {
		a, err := artifact.NewBuilder(d.kind).
			Origin(d.origin).
			Name(d.name).
			FilePath(d.filePath).
			Source(d.source).
			Build()
		require.NoError(b.t, err)
		out = append(out, a)
	}
	return out
}

// Build returns a sealed registry holding every accumulated artifact.
func (b *Builder) Build() *artifact.Registry {
	b.t.Helper()
	reg, err := artifact.NewSealedRegistry(b.Artifacts()...)
	require.NoError(b.t, err)
	return reg
}

// WriteTree writes the recorded files below root and returns root.
// Artifact file paths are relative, so callers join them with root when the
// registry must match absolute paths.
func (b *Builder) WriteTree(root string) string {
	b.t.Helper()
	WriteFiles(b.t, root, b.files)
	return root
}

// WriteFiles writes files (relative path to content) below root.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

// ReadFile returns the content of root/rel.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel))) //nolint:gosec // test fixture path
	require.NoError(t, err)
	return string(data)
}
