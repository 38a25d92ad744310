// Package manifest reads and writes the YAML artifact manifest produced by
// `glitch extract --manifest-out` and consumed by `glitch transform --manifest`.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/withglyph/glitch/internal/artifact"
)

// Version is the manifest format version written by Encode.
const Version = 1

// Manifest errors.
var (
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
	ErrHashMismatch       = errors.New("artifact hash does not match source")
)

// File is the root structure of a manifest.
type File struct {
	Version   int           `yaml:"version"`
	Artifacts []ArtifactDef `yaml:"artifacts"`
}

// ArtifactDef is one artifact entry.
type ArtifactDef struct {
	Kind   string `yaml:"kind"`
	Origin string `yaml:"origin"`
	Name   string `yaml:"name"`
	File   string `yaml:"file"`
	Hash   string `yaml:"hash,omitempty"` // hex xxhash of source
	Source string `yaml:"source"`
}

// Encode renders reg as a manifest.
func Encode(reg *artifact.Registry) ([]byte, error) {
	f := File{Version: Version, Artifacts: make([]ArtifactDef, 0, reg.Len())}
	for _, a := range reg.List() {
		f.Artifacts = append(f.Artifacts, ArtifactDef{
			Kind:   string(a.Kind()),
			Origin: string(a.Origin()),
			Name:   a.Name(),
			File:   a.FilePath(),
			Hash:   formatHash(a.Hash()),
			Source: a.Source(),
		})
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// Decode parses a manifest into a sealed registry. Documents are not parsed;
// the returned artifacts carry only their source text.
func Decode(data []byte) (*artifact.Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if f.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}

	reg := artifact.NewRegistry()
	for i, def := range f.Artifacts {
		a, err := buildArtifact(def)
		if err != nil {
			return nil, fmt.Errorf("artifact %d (%s): %w", i, def.Name, err)
		}
		if err := reg.Add(a); err != nil {
			return nil, fmt.Errorf("artifact %d (%s): %w", i, def.Name, err)
		}
	}
	reg.Seal()
	return reg, nil
}

func buildArtifact(def ArtifactDef) (*artifact.Artifact, error) {
	kind, err := artifact.ParseKind(def.Kind)
	if err != nil {
		return nil, err
	}
	origin := artifact.Origin(def.Origin)
	if def.Origin == "" {
		origin = artifact.OriginFor(kind, def.File)
	}

	a, err := artifact.NewBuilder(kind).
		Origin(origin).
		Name(def.Name).
		FilePath(def.File).
		Source(def.Source).
		Build()
	if err != nil {
		return nil, err
	}
	if def.Hash != "" && def.Hash != formatHash(a.Hash()) {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrHashMismatch, def.Hash, formatHash(a.Hash()))
	}
	return a, nil
}

// Load reads the manifest at path within fsys.
func Load(fsys fs.FS, path string) (*artifact.Registry, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	reg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// LoadFile reads the manifest at an OS path.
func LoadFile(path string) (*artifact.Registry, error) {
	return Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// Save writes reg as a manifest to path, creating parent directories.
func Save(path string, reg *artifact.Registry) error {
	data, err := Encode(reg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func formatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParseHash parses a hash written by Encode.
func ParseHash(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}
