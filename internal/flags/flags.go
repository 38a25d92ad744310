// Package flags provides feature flags read from the `flags` config section.
// Flags are read-only after initialization and unknown flags are disabled.
package flags

import (
	"maps"
	"slices"

	"github.com/withglyph/glitch/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagWarnUnmatched logs every graphql call-site whose literal matches no
	// artifact of its file.
	FlagWarnUnmatched = "warn-unmatched"

	// FlagTransformCache memoises rewrite results by path and content hash.
	FlagTransformCache = "transform-cache"

	// FlagPersistSessions records extraction runs in the SQLite store. When
	// disabled every command extracts from scratch.
	FlagPersistSessions = "persist-sessions"
)

// Defaults returns the value of every known flag when config leaves it unset.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagWarnUnmatched:   false,
		FlagTransformCache:  true,
		FlagPersistSessions: true,
	}
}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from Defaults overlaid with flags.
func New(flags map[string]bool) *Registry {
	merged := Defaults()
	maps.Copy(merged, flags)
	r := &Registry{flags: merged}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(merged), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled. Unknown flags and a nil
// registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// Names returns the flag names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.flags))
}

// All returns a copy of all flags.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}
