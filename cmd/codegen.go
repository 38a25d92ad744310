package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/withglyph/glitch/internal/codegen"
	"github.com/withglyph/glitch/internal/tracing"
)

var (
	codegenOut      string
	codegenManifest string
)

var codegenCmd = &cobra.Command{
	Use:   "codegen",
	Short: "Write the generated document-node module",
	Long: `Write the module that rewritten files import. It exports one
DocumentNode_<name> member per artifact, including the fragments each
document spreads.

Artifacts come from --manifest when given, otherwise from the latest build
session, otherwise from a fresh extraction.

Examples:
  glitch codegen
  glitch codegen --out src/lib/glitch/base.js`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reg, err := loadRegistry(ctx, registrySource{manifest: codegenManifest})
		if err != nil {
			return err
		}

		out := cfg.Resolve(cfg.Codegen.OutFile)
		if codegenOut != "" {
			if out, err = filepath.Abs(codegenOut); err != nil {
				return fmt.Errorf("resolving output path: %w", err)
			}
		}

		_, span := provider.Tracer().Start(ctx, tracing.SpanCodegen)
		span.SetAttributes(attribute.Int(tracing.AttrArtifactCount, reg.Len()))
		err = codegen.WriteFile(out, reg)
		tracing.End(span, err)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d documents to %s\n", reg.Len(), out)
		return err
	},
}

func init() {
	codegenCmd.Flags().StringVarP(&codegenOut, "out", "o", "", "Output file (default: codegen.out_file)")
	codegenCmd.Flags().StringVarP(&codegenManifest, "manifest", "m", "", "Load artifacts from a manifest file")
	rootCmd.AddCommand(codegenCmd)
}
