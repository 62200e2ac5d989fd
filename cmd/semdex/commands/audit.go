package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/auditor"
	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/logging"
)

// NewAuditCmd constructs the `semdex audit` command, which analyzes an
// ingested agent collection as a portfolio.
func NewAuditCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit an agent collection for coverage and overlap",
		Long: `Aggregate the stored chunks of an agent collection back into their source
agents and report category and complexity coverage, pairs of same-category
agents whose tech stacks overlap enough to suggest consolidation, and an
overall health score.

Examples:
  semdex audit
  semdex audit --collection agents_analysis`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			settings, err := config.Resolve()
			if err != nil {
				return err
			}
			if collection == "" {
				collection = settings.Collections.Agents
			}

			mgr, store := buildStore(settings)
			defer func() { _ = mgr.Close() }()

			aud, err := auditor.New(store)
			if err != nil {
				return fmt.Errorf("audit: %w", err)
			}
			report, err := aud.Audit(ctx, collection)
			if err != nil {
				return fmt.Errorf("audit: %w", err)
			}

			fmt.Printf("collection: %s\n", report.Collection)
			fmt.Printf("agents: %d  chunks: %d  health: %d/100\n\n", len(report.Agents), report.Chunks, report.HealthScore)

			if len(report.Categories) > 0 {
				fmt.Println("categories:")
				for _, name := range sortedKeys(report.Categories) {
					fmt.Printf("  %-16s %d\n", name, report.Categories[name])
				}
			}
			if len(report.Complexities) > 0 {
				fmt.Println("complexity:")
				for _, name := range sortedKeys(report.Complexities) {
					fmt.Printf("  %-16s %d\n", name, report.Complexities[name])
				}
			}

			if len(report.Candidates) == 0 {
				fmt.Println("\nno consolidation candidates")
				return nil
			}
			fmt.Printf("\nconsolidation candidates (%d):\n", len(report.Candidates))
			for _, c := range report.Candidates {
				fmt.Printf("  %s + %s  (%s, overlap %.0f%%)\n", c.A, c.B, c.Category, c.Overlap*100)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Agent collection to audit (default: from config)")

	return cmd
}

// sortedKeys returns the map's keys in lexical order for stable output.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
