// Package paths provides project root resolution and source file discovery.
package paths

import (
	"os"
	"path/filepath"
)

// StateDir is the per-project directory holding config, store and traces.
const StateDir = ".glitch"

// ResolveRoot resolves the project root from user input.
//
// Input normalization:
//   - "" -> the current directory
//   - "/path/to/project/.glitch" -> "/path/to/project"
//   - "/path/to/project/src/routes" -> "/path/to/project" when an ancestor
//     holds .glitch or package.json
//   - anything else -> the cleaned absolute input
func ResolveRoot(path string) string {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	if filepath.Base(abs) == StateDir {
		return filepath.Dir(abs)
	}

	for dir := abs; ; dir = filepath.Dir(dir) {
		if isProjectRoot(dir) {
			return dir
		}
		if filepath.Dir(dir) == dir {
			return abs
		}
	}
}

func isProjectRoot(dir string) bool {
	if info, err := os.Stat(filepath.Join(dir, StateDir)); err == nil && info.IsDir() {
		return true
	}
	_, err := os.Stat(filepath.Join(dir, "package.json"))
	return err == nil
}

// ConfigPath returns the project config file below root.
func ConfigPath(root string) string {
	return filepath.Join(root, StateDir, "config.yaml")
}
