package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/withglyph/glitch/internal/config"
	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/paths"
	"github.com/withglyph/glitch/internal/tracing"
)

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool

	provider   = tracing.Noop()
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "glitch",
	Short: "Build-time GraphQL call-site rewriter",
	Long: `glitch extracts the GraphQL documents declared in graphql(...) calls of a
SvelteKit project and rewrites those calls to reference pre-generated
document nodes.

Typical flow:
  glitch extract          # scan sources and record a build session
  glitch codegen          # write the generated document-node module
  glitch transform --write`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .glitch/config.yaml, then ~/.config/glitch/config.yaml)")
	rootCmd.PersistentFlags().StringP("root", "r", "",
		"project root (default: nearest directory holding .glitch or package.json)")
	rootCmd.PersistentFlags().IntP("workers", "j", 0,
		"files processed concurrently (default: one per CPU)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write a debug log (also enabled by GLITCH_DEBUG)")

	// Bind flags to viper
	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("root", defaults.Root)
	viper.SetDefault("extensions", defaults.Extensions)
	viper.SetDefault("exclude", defaults.Exclude)
	viper.SetDefault("marker", defaults.Marker)
	viper.SetDefault("workers", defaults.Workers)
	viper.SetDefault("runtime.module", defaults.Runtime.Module)
	viper.SetDefault("runtime.store_factory", defaults.Runtime.StoreFactory)
	viper.SetDefault("codegen.base_module", defaults.Codegen.BaseModule)
	viper.SetDefault("codegen.out_file", defaults.Codegen.OutFile)
	viper.SetDefault("store.path", defaults.Store.Path)
	viper.SetDefault("store.keep", defaults.Store.Keep)
	viper.SetDefault("cache.ttl", defaults.Cache.TTL)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	// Config lookup order:
	// 1. --config
	// 2. <project root>/.glitch/config.yaml
	// 3. ~/.config/glitch/config.yaml
	projectConfig := paths.ConfigPath(paths.ResolveRoot(viper.GetString("root")))
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(projectConfig); err == nil {
		viper.SetConfigFile(projectConfig)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".config", "glitch"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create the project default
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if writeErr := config.WriteDefaultConfig(projectConfig); writeErr == nil {
				viper.SetConfigFile(projectConfig)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	cfg = config.Config{}
	_ = viper.Unmarshal(&cfg)
}

// setup validates the configuration and starts logging and tracing for the
// invoked command.
func setup(_ *cobra.Command, _ []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Root = paths.ResolveRoot(cfg.Root)

	if os.Getenv("GLITCH_DEBUG") != "" || debugFlag {
		logPath := os.Getenv("GLITCH_LOG")
		if logPath == "" {
			logPath = filepath.Join(cfg.Root, paths.StateDir, "debug.log")
		}
		if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		logCleanup = cleanup
		log.Info(log.CatConfig, "glitch starting", "version", version, "root", cfg.Root, "config", viper.ConfigFileUsed())
	}

	tc := cfg.Tracing
	tc.FilePath = cfg.Resolve(tc.FilePath)
	if tc.Enabled && tc.Exporter == tracing.ExporterFile {
		if err := os.MkdirAll(filepath.Dir(tc.FilePath), 0o750); err != nil {
			return fmt.Errorf("creating trace directory: %w", err)
		}
	}
	p, err := tracing.NewProvider(tc)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	provider = p
	if p.Enabled() {
		log.Info(log.CatTrace, "tracing enabled", "exporter", tc.Exporter)
	}
	return nil
}

// shutdown flushes traces and closes the debug log.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		log.ErrorErr(log.CatTrace, "Failed to flush traces", err)
	}
	provider = tracing.Noop()
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
}

// Execute runs the root command
func Execute() error {
	defer shutdown()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
