package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/logging"
)

// NewRunsCmd constructs the `semdex runs` command, which lists recent
// ingestion runs from the journal.
func NewRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		Long: `List the most recent ingestion runs recorded in the local journal,
newest first. The journal lives at ~/.semdex/journal.db unless
SEMDEX_JOURNAL_DB overrides it.

Examples:
  semdex runs
  semdex runs --limit 25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			j := openJournal(log)
			if j == nil {
				return fmt.Errorf("runs: journal is disabled or unavailable")
			}
			defer func() { _ = j.Close() }()

			runs, err := j.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}

			for _, r := range runs {
				fmt.Printf("%s  %-8s %-9s %s -> %s  docs=%d failed=%d chunks=%d  (%s)\n",
					r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Status, r.Mode, r.Source, r.Collection,
					r.Documents, r.Failed, r.Chunks, r.Duration)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to list")

	return cmd
}
