package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/presentation"
)

var (
	listKind     string
	listFile     string
	listManifest string
	listSession  string
)

var artifactsListCmd = &cobra.Command{
	Use:   "artifacts:list",
	Short: "List extracted artifacts as JSON",
	Long: `List the artifacts of the latest build session as JSON.

Use --kind to keep one artifact kind and --file to keep the artifacts
declared in one file (relative to the project root).

Examples:
  # List all artifacts
  glitch artifacts:list

  # Only mutations
  glitch artifacts:list --kind mutation

  # Artifacts of one component
  glitch artifacts:list --file src/lib/Post.svelte

  # Parse specific fields with jq
  glitch artifacts:list | jq '.[].name'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind artifact.Kind
		if listKind != "" {
			k, err := artifact.ParseKind(listKind)
			if err != nil {
				return err
			}
			kind = k
		}
		file := listFile
		if file != "" {
			file = filepath.ToSlash(filepath.Clean(file))
		}

		reg, err := loadRegistry(cmd.Context(), registrySource{manifest: listManifest, session: listSession})
		if err != nil {
			return err
		}

		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		return formatter.FormatArtifacts(presentation.FromArtifacts(reg.Filter(kind, file)))
	},
}

func init() {
	artifactsListCmd.Flags().StringVarP(&listKind, "kind", "k", "", "Filter by kind (query, mutation, subscription, fragment)")
	artifactsListCmd.Flags().StringVarP(&listFile, "file", "f", "", "Filter by declaring file")
	artifactsListCmd.Flags().StringVarP(&listManifest, "manifest", "m", "", "Load artifacts from a manifest file")
	artifactsListCmd.Flags().StringVarP(&listSession, "session", "s", "", "Load artifacts from a stored build session")
	rootCmd.AddCommand(artifactsListCmd)
}
