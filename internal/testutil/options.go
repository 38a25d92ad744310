package testutil

import "github.com/withglyph/glitch/internal/artifact"

// artifactData holds the fields of an artifact to be built.
type artifactData struct {
	kind     artifact.Kind
	origin   artifact.Origin
	name     string
	filePath string
	source   string
}

// defaultArtifact returns artifactData with the origin extraction would assign.
func defaultArtifact(kind artifact.Kind, name, file, source string) artifactData {
	return artifactData{
		kind:     kind,
		origin:   artifact.OriginFor(kind, file),
		name:     name,
		filePath: file,
		source:   source,
	}
}

// ArtifactOption configures an artifact during builder setup.
type ArtifactOption func(*artifactData)

// Automatic marks a query as bound to route data.
func Automatic() ArtifactOption {
	return func(a *artifactData) { a.origin = artifact.OriginAutomatic }
}

// Manual marks a query as a manual store.
func Manual() ArtifactOption {
	return func(a *artifactData) { a.origin = artifact.OriginManual }
}

// InFile overrides the declaring file.
func InFile(path string) ArtifactOption {
	return func(a *artifactData) { a.filePath = path }
}
