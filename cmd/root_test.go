package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/withglyph/glitch/internal/presentation"
	"github.com/withglyph/glitch/internal/testutil"
)

// resetFlags restores every flag of c and its subcommands to its default,
// since cobra keeps parsed values between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupProject writes the standard fixture tree and a config file outside it.
func setupProject(t *testing.T, configYAML string) (root, configPath string) {
	t.Helper()
	root = testutil.NewBuilder(t).WithStandardArtifacts().WriteTree(t.TempDir())
	testutil.WriteFiles(t, root, map[string]string{"package.json": "{}\n"})

	configPath = filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o600))
	return root, configPath
}

// execute runs the CLI with args against the project at root.
func execute(t *testing.T, root, configPath string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)
	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", configPath, "--root", root}, args...))
	err := rootCmd.Execute()
	shutdown()
	return out.String(), err
}

func TestExtract_RecordsSessions(t *testing.T) {
	root, configPath := setupProject(t, "flags:\n  persist-sessions: true\n")
	manifestPath := filepath.Join(t.TempDir(), "artifacts.yaml")

	out, err := execute(t, root, configPath, "extract", "--manifest-out", manifestPath)
	require.NoError(t, err)
	require.Contains(t, out, "extracted 5 artifacts from 4 files")
	require.Contains(t, out, "+ Home_Query")
	require.FileExists(t, filepath.Join(root, ".glitch", "glitch.db"))
	require.Contains(t, testutil.ReadFile(t, filepath.Dir(manifestPath), "artifacts.yaml"), "Feed_Subscription")

	out, err = execute(t, root, configPath, "extract")
	require.NoError(t, err)
	require.Contains(t, out, "extracted 5 artifacts from 4 files")
	require.NotContains(t, out, "+ Home_Query", "nothing changed since the previous session")

	out, err = execute(t, root, configPath, "sessions:list")
	require.NoError(t, err)
	var sessions []presentation.SessionDTO
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 2)
	require.Equal(t, 5, sessions[0].ArtifactCount)
	require.Equal(t, "completed", sessions[0].State)
}

func TestExtract_WithoutSessions(t *testing.T) {
	root, configPath := setupProject(t, "flags:\n  persist-sessions: false\n")

	out, err := execute(t, root, configPath, "extract")
	require.NoError(t, err)
	require.Contains(t, out, "extracted 5 artifacts from 4 files")
	require.NoFileExists(t, filepath.Join(root, ".glitch", "glitch.db"))
}

func TestArtifactsList_Filters(t *testing.T) {
	root, configPath := setupProject(t, "marker: graphql\n")

	out, err := execute(t, root, configPath, "artifacts:list", "--kind", "mutation")
	require.NoError(t, err)
	var got []presentation.ArtifactDTO
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	require.Equal(t, "Like_Mutation", got[0].Name)

	out, err = execute(t, root, configPath, "artifacts:list", "--file", "src/lib/Post.svelte")
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)

	_, err = execute(t, root, configPath, "artifacts:list", "--kind", "bogus")
	require.Error(t, err)
}

func TestTransform_SingleFilePrintsResult(t *testing.T) {
	root, configPath := setupProject(t, "marker: graphql\n")
	before := testutil.ReadFile(t, root, "src/lib/feed.ts")

	out, err := execute(t, root, configPath, "transform", filepath.Join(root, "src", "lib", "feed.ts"))
	require.NoError(t, err)
	require.Contains(t, out, "__glitch_base_s.DocumentNode_Feed_Subscription")
	require.Equal(t, before, testutil.ReadFile(t, root, "src/lib/feed.ts"))
}

func TestTransform_Diff(t *testing.T) {
	root, configPath := setupProject(t, "marker: graphql\n")

	out, err := execute(t, root, configPath, "transform", "--diff")
	require.NoError(t, err)
	require.Contains(t, out, "--- a/src/lib/feed.ts")
	require.Contains(t, out, "+++ b/src/lib/feed.ts")
	require.NotContains(t, out, "src/lib/util.ts")
}

func TestTransform_WriteThenIdempotent(t *testing.T) {
	root, configPath := setupProject(t, "flags:\n  persist-sessions: true\n")

	_, err := execute(t, root, configPath, "extract")
	require.NoError(t, err)

	out, err := execute(t, root, configPath, "transform", "--write")
	require.NoError(t, err)
	require.Contains(t, out, "3 rewritten, 1 unchanged")
	require.Contains(t, testutil.ReadFile(t, root, "src/lib/feed.ts"), "DocumentNode_Feed_Subscription")

	// Artifacts come from the stored session, so the rewritten sources
	// still resolve and nothing changes.
	out, err = execute(t, root, configPath, "transform", "--write")
	require.NoError(t, err)
	require.Contains(t, out, "0 rewritten, 4 unchanged")
}

func TestTransform_OutDir(t *testing.T) {
	root, configPath := setupProject(t, "marker: graphql\n")
	outDir := t.TempDir()

	_, err := execute(t, root, configPath, "transform", "--out-dir", outDir, filepath.Join(root, "src"))
	require.NoError(t, err)
	require.Contains(t, testutil.ReadFile(t, outDir, "src/lib/feed.ts"), "DocumentNode_Feed_Subscription")
	require.NotContains(t, testutil.ReadFile(t, root, "src/lib/feed.ts"), "DocumentNode_Feed_Subscription")
}

func TestTransform_OutsideRoot(t *testing.T) {
	root, configPath := setupProject(t, "marker: graphql\n")

	_, err := execute(t, root, configPath, "transform", t.TempDir())
	require.ErrorContains(t, err, "outside the project root")
}

func TestCodegen(t *testing.T) {
	root, configPath := setupProject(t, "marker: graphql\n")
	outFile := filepath.Join(t.TempDir(), "base.js")

	out, err := execute(t, root, configPath, "codegen", "--out", outFile)
	require.NoError(t, err)
	require.Contains(t, out, "wrote 5 documents")

	module := testutil.ReadFile(t, filepath.Dir(outFile), "base.js")
	require.Contains(t, module, "export const DocumentNode_Home_Query = {")
	require.Contains(t, module, "export const DocumentNode_Post_fragment = {")
}

func TestFlags_SetAndList(t *testing.T) {
	root, configPath := setupProject(t, "# project config\nmarker: graphql\n")

	out, err := execute(t, root, configPath, "flags:set", "warn-unmatched", "on")
	require.NoError(t, err)
	require.Contains(t, out, "warn-unmatched = true")
	require.Contains(t, testutil.ReadFile(t, filepath.Dir(configPath), "config.yaml"), "# project config")

	out, err = execute(t, root, configPath, "flags:list")
	require.NoError(t, err)
	var got map[string]bool
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.True(t, got["warn-unmatched"])
	require.True(t, got["transform-cache"])

	_, err = execute(t, root, configPath, "flags:set", "nope", "on")
	require.ErrorContains(t, err, "unknown flag")
	_, err = execute(t, root, configPath, "flags:set", "warn-unmatched", "maybe")
	require.ErrorContains(t, err, "on or off")
}

func TestInvalidConfig(t *testing.T) {
	root, configPath := setupProject(t, "marker: \"not an identifier\"\n")

	_, err := execute(t, root, configPath, "extract")
	require.ErrorContains(t, err, "invalid configuration")
}

func TestCheckMirror(t *testing.T) {
	root, configPath := setupProject(t, "marker: graphql\n")
	_, err := execute(t, root, configPath, "flags:list")
	require.NoError(t, err)

	require.NoError(t, checkMirror(filepath.Join(root, ".glitch", "out")))
	require.NoError(t, checkMirror(filepath.Join(root, "build", "glitch")))
	require.NoError(t, checkMirror(t.TempDir()))
	require.Error(t, checkMirror(filepath.Join(root, "src", "out")))
	require.Error(t, checkMirror(root))
}
