package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/withglyph/glitch/internal/pipeline"
	"github.com/withglyph/glitch/internal/presentation"
)

var (
	transformWrite    bool
	transformDiff     bool
	transformOutDir   string
	transformManifest string
	transformSession  string
)

var transformCmd = &cobra.Command{
	Use:   "transform [paths...]",
	Short: "Rewrite graphql(...) call-sites against extracted artifacts",
	Long: `Rewrite the graphql(...) call-sites of source files so they reference the
generated document nodes instead of inline GraphQL.

Artifacts come from --manifest when given, otherwise from a stored build
session (--session, or the latest one), otherwise from a fresh extraction.

With a single file and no --write the rewritten text is printed to stdout.
Otherwise one line is printed per file that was rewritten, skipped or failed.

Examples:
  # Preview one file
  glitch transform src/routes/+page.svelte

  # Show what would change
  glitch transform --diff

  # Rewrite in place
  glitch transform --write

  # Mirror the rewritten tree into another directory
  glitch transform --out-dir build/glitch src/`,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().BoolVarP(&transformWrite, "write", "w", false, "Write rewritten files in place")
	transformCmd.Flags().BoolVarP(&transformDiff, "diff", "d", false, "Print unified diffs of rewritten files")
	transformCmd.Flags().StringVarP(&transformOutDir, "out-dir", "o", "", "Write every processed file under this directory instead of in place")
	transformCmd.Flags().StringVarP(&transformManifest, "manifest", "m", "", "Load artifacts from a manifest file")
	transformCmd.Flags().StringVarP(&transformSession, "session", "s", "", "Load artifacts from a stored build session")
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files, single, err := transformTargets(args)
	if err != nil {
		return err
	}

	reg, err := loadRegistry(ctx, registrySource{manifest: transformManifest, session: transformSession})
	if err != nil {
		return err
	}

	output := pipeline.Output{Write: transformWrite}
	if transformOutDir != "" {
		outDir, err := filepath.Abs(transformOutDir)
		if err != nil {
			return fmt.Errorf("resolving output directory: %w", err)
		}
		output = pipeline.Output{Write: true, OutDir: outDir}
	}

	p := pipeline.New(reg, pipeline.Config{
		Root:     cfg.Root,
		Workers:  cfg.Workers,
		Rewrite:  cfg.RewriteConfig(),
		CacheTTL: cfg.Cache.TTL,
		Flags:    featureFlags(),
		Tracer:   provider.Tracer(),
	})
	report, err := p.Run(ctx, files, output)
	if err != nil {
		return err
	}

	formatter := presentation.NewFormatter(cmd.OutOrStdout())
	switch {
	case transformDiff:
		for _, r := range report.Files {
			if !r.Changed() {
				continue
			}
			if err := formatter.FormatDiff(presentation.UnifiedDiff(r.Path, string(r.Original), string(r.Output))); err != nil {
				return err
			}
		}
	case single && !output.Write:
		if r := report.Files[0]; r.Err == nil {
			if _, err := cmd.OutOrStdout().Write(r.Output); err != nil {
				return err
			}
		}
	default:
		for _, r := range report.Files {
			if r.Outcome == pipeline.OutcomeUnchanged {
				continue
			}
			if err := formatter.FormatFileEvent(presentation.FromFileResult(r)); err != nil {
				return err
			}
		}
		if err := formatter.FormatRunSummary(presentation.FromReport(report)); err != nil {
			return err
		}
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, len(report.Files))
	}
	return nil
}

// transformTargets resolves the files to rewrite. A single argument naming a
// regular file is taken as is, even when discovery would skip it.
func transformTargets(args []string) (files []string, single bool, err error) {
	if len(args) == 1 {
		if fi, statErr := os.Stat(args[0]); statErr == nil && fi.Mode().IsRegular() {
			rel, err := relToRoot(args[0])
			if err != nil {
				return nil, false, err
			}
			return []string{rel}, true, nil
		}
	}
	files, err = sourceFiles(args)
	return files, false, err
}
