package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/withglyph/glitch/internal/flags"
	"github.com/withglyph/glitch/internal/manifest"
	"github.com/withglyph/glitch/internal/presentation"
	"github.com/withglyph/glitch/internal/tracing"
)

var extractManifestOut string

var extractCmd = &cobra.Command{
	Use:   "extract [paths...]",
	Short: "Scan sources and record their GraphQL artifacts",
	Long: `Scan source files for graphql(...) call-sites, parse every literal as a
GraphQL document and record the artifacts as a build session.

The summary lists artifacts added, changed or removed since the previous
session. Literals that are not a single named operation or fragment are
reported and skipped.

Examples:
  glitch extract
  glitch extract src/routes
  glitch extract --manifest-out artifacts.yaml`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractManifestOut, "manifest-out", "m", "", "Also write the artifacts to a YAML manifest")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files, err := sourceFiles(args)
	if err != nil {
		return err
	}
	res, err := newExtractor().Extract(ctx, os.DirFS(cfg.Root), files)
	if err != nil {
		return err
	}

	summary := presentation.ExtractSummaryDTO{
		Files:     len(files),
		Artifacts: res.Registry.Len(),
	}
	for _, sk := range res.Skipped {
		summary.Skipped = append(summary.Skipped, presentation.SkippedDTO{File: sk.FilePath, Line: sk.Line, Error: sk.Err.Error()})
	}

	if featureFlags().Enabled(flags.FlagPersistSessions) {
		db, rec, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		ctx, span := provider.Tracer().Start(ctx, tracing.SpanSessionSave)
		session, changes, err := rec.Record(ctx, res.Registry)
		if err == nil {
			span.SetAttributes(attribute.String(tracing.AttrSessionID, session.ID()))
		}
		tracing.End(span, err)
		if err != nil {
			return err
		}
		summary.Session = session.ID()
		summary.Added = changes.Added
		summary.Changed = changes.Changed
		summary.Removed = changes.Removed
	}

	if extractManifestOut != "" {
		if err := manifest.Save(extractManifestOut, res.Registry); err != nil {
			return err
		}
	}

	return presentation.NewFormatter(cmd.OutOrStdout()).FormatExtractSummary(summary)
}
