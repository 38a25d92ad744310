package cmd

import (
	"github.com/spf13/cobra"

	"github.com/withglyph/glitch/internal/presentation"
)

var sessionsLimit int

var sessionsListCmd = &cobra.Command{
	Use:   "sessions:list",
	Short: "List recorded build sessions as JSON",
	Long: `List the build sessions recorded for this project, newest first.

Examples:
  glitch sessions:list
  glitch sessions:list --limit 1 | jq -r '.[0].id'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter := presentation.NewFormatter(cmd.OutOrStdout())
		if !storeExists() {
			return formatter.FormatJSON([]presentation.SessionDTO{})
		}

		db, rec, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		history, err := rec.History(cmd.Context(), sessionsLimit)
		if err != nil {
			return err
		}
		dtos := make([]presentation.SessionDTO, len(history))
		for i, s := range history {
			dtos[i] = presentation.FromSession(s)
		}
		return formatter.FormatJSON(dtos)
	},
}

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 0, "Maximum number of sessions (0 lists all)")
	rootCmd.AddCommand(sessionsListCmd)
}
