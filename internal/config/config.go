// Package config provides configuration types and defaults for glitch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/withglyph/glitch/internal/jsast"
	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/rewrite"
	"github.com/withglyph/glitch/internal/tracing"
)

// Config holds all configuration options for glitch.
type Config struct {
	Root       string          `mapstructure:"root"`
	Extensions []string        `mapstructure:"extensions"`
	Exclude    []string        `mapstructure:"exclude"`
	Marker     string          `mapstructure:"marker"`
	Workers    int             `mapstructure:"workers"` // 0 = one per CPU
	Runtime    RuntimeConfig   `mapstructure:"runtime"`
	Codegen    CodegenConfig   `mapstructure:"codegen"`
	Store      StoreConfig     `mapstructure:"store"`
	Cache      CacheConfig     `mapstructure:"cache"`
	Watch      WatchConfig     `mapstructure:"watch"`
	Tracing    tracing.Config  `mapstructure:"tracing"`
	Flags      map[string]bool `mapstructure:"flags"`
}

// RuntimeConfig names the runtime module imported by manual queries.
type RuntimeConfig struct {
	Module       string `mapstructure:"module"`
	StoreFactory string `mapstructure:"store_factory"`
}

// CodegenConfig controls the generated document-node module.
type CodegenConfig struct {
	// BaseModule is the import specifier rewritten files use.
	BaseModule string `mapstructure:"base_module"`
	// OutFile is where `glitch codegen` writes the module, relative to Root.
	OutFile string `mapstructure:"out_file"`
}

// StoreConfig locates the build session database.
type StoreConfig struct {
	Path string `mapstructure:"path"` // relative to Root unless absolute
	Keep int    `mapstructure:"keep"` // sessions kept per project
}

// CacheConfig controls transform memoisation.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// RewriteConfig returns the strategy configuration derived from c.
func (c Config) RewriteConfig() rewrite.Config {
	return rewrite.Config{
		Marker:        c.Marker,
		BaseModule:    c.Codegen.BaseModule,
		RuntimeModule: c.Runtime.Module,
		StoreFactory:  c.Runtime.StoreFactory,
	}
}

// Resolve joins a Root-relative path with Root. Absolute paths are returned
// unchanged.
func (c Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = filepath.Join(".glitch", "traces.jsonl")
	return Config{
		Root:       ".",
		Extensions: []string{".svelte", ".ts", ".js"},
		Exclude:    []string{"node_modules", ".svelte-kit", ".git", ".glitch", "build", "dist"},
		Marker:     "graphql",
		Runtime: RuntimeConfig{
			Module:       rewrite.DefaultRuntimeModule,
			StoreFactory: rewrite.DefaultStoreFactory,
		},
		Codegen: CodegenConfig{
			BaseModule: rewrite.DefaultBaseModule,
			OutFile:    filepath.Join(".glitch", "base.js"),
		},
		Store: StoreConfig{
			Path: filepath.Join(".glitch", "glitch.db"),
			Keep: 10,
		},
		Cache:   CacheConfig{TTL: 10 * time.Minute},
		Watch:   WatchConfig{Debounce: 100 * time.Millisecond},
		Tracing: tc,
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Validate checks the configuration for errors.
func Validate(c Config) error {
	if err := ValidateExtensions(c.Extensions); err != nil {
		return err
	}
	if !identifier.MatchString(c.Marker) {
		return fmt.Errorf("marker must be a JavaScript identifier, got %q", c.Marker)
	}
	if !identifier.MatchString(c.Runtime.StoreFactory) {
		return fmt.Errorf("runtime.store_factory must be a JavaScript identifier, got %q", c.Runtime.StoreFactory)
	}
	if c.Runtime.Module == "" {
		return fmt.Errorf("runtime.module is required")
	}
	if c.Codegen.BaseModule == "" {
		return fmt.Errorf("codegen.base_module is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Store.Keep < 0 {
		return fmt.Errorf("store.keep must not be negative, got %d", c.Store.Keep)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateExtensions checks that every extension is one glitch can rewrite.
func ValidateExtensions(exts []string) error {
	if len(exts) == 0 {
		return fmt.Errorf("extensions must list at least one file extension")
	}
	for i, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extensions[%d] must start with a dot, got %q", i, ext)
		}
		if !jsast.Supported("file" + ext) {
			return fmt.Errorf("extensions[%d]: unsupported extension %q", i, ext)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	if tc.Exporter != "" {
		switch tc.Exporter {
		case tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tc.Enabled {
		if tc.Exporter == tracing.ExporterFile && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == tracing.ExporterOTLP && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# glitch configuration

# Project root scanned for call-sites (default: current directory)
# root: .

# File extensions to extract from and rewrite
extensions: [".svelte", ".ts", ".js"]

# Path segments or glob patterns skipped during discovery
exclude: ["node_modules", ".svelte-kit", ".git", ".glitch", "build", "dist"]

# Callee identifier of call-sites
marker: graphql

# Concurrent files (0 = one per CPU)
workers: 0

runtime:
  module: "@withglyph/glitch/runtime"
  store_factory: createManualQueryStore

codegen:
  base_module: "$glitch/base"   # Import specifier used by rewritten files
  out_file: .glitch/base.js     # Written by 'glitch codegen'

store:
  path: .glitch/glitch.db       # Build session database
  keep: 10                      # Sessions kept per project

cache:
  ttl: 10m                      # Transform memo lifetime

watch:
  debounce: 100ms

# Feature flags
# flags:
#   warn-unmatched: false       # Log call-sites that match no artifact
#   transform-cache: true       # Memoise rewrite results by content hash
#   persist-sessions: true      # Record extraction runs in the store

# Tracing (OpenTelemetry)
# tracing:
#   enabled: true
#   exporter: file              # none, file, stdout or otlp
#   file_path: .glitch/traces.jsonl
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
