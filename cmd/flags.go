package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/withglyph/glitch/internal/config"
	"github.com/withglyph/glitch/internal/flags"
	"github.com/withglyph/glitch/internal/paths"
	"github.com/withglyph/glitch/internal/presentation"
)

var flagsListCmd = &cobra.Command{
	Use:   "flags:list",
	Short: "Show feature flags and their effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatJSON(featureFlags().All())
	},
}

var flagsSetCmd = &cobra.Command{
	Use:   "flags:set <name> <on|off>",
	Short: "Enable or disable a feature flag in the config file",
	Long: `Enable or disable a feature flag in the config file in use (or the
project config when none was loaded). Comments in the file are kept.

Examples:
  glitch flags:set warn-unmatched on
  glitch flags:set transform-cache off`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, ok := flags.Defaults()[name]; !ok {
			return fmt.Errorf("unknown flag %q (known: %s)", name, strings.Join(flags.New(nil).Names(), ", "))
		}

		var enabled bool
		switch strings.ToLower(args[1]) {
		case "on", "true", "1":
			enabled = true
		case "off", "false", "0":
		default:
			return fmt.Errorf("flag value must be on or off, got %q", args[1])
		}

		path := viper.ConfigFileUsed()
		if path == "" {
			path = paths.ConfigPath(cfg.Root)
		}
		if err := config.SetFlag(path, name, enabled); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s = %t in %s\n", name, enabled, path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(flagsListCmd)
	rootCmd.AddCommand(flagsSetCmd)
}
