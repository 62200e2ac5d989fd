package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/enrich"
	"github.com/54b3r/semdex/internal/logging"
)

// NewEnrichCmd constructs the `semdex enrich` command, which backfills
// inferred metadata on already-ingested documents.
func NewEnrichCmd() *cobra.Command {
	var collection string
	var dryRun bool
	var skipExisting bool
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Backfill inferred metadata on indexed documents",
		Long: `Scan a collection and infer category, tech stack, and a description for
each source document from its stored chunk text. Confident inferences are
written back to every chunk of the document, each with a confidence score.

--dry-run reports what would be written without touching the store.
--skip-existing leaves fields that already hold a value untouched; without
it, confident inferences overwrite.

Examples:
  semdex enrich --dry-run
  semdex enrich --collection code_context --skip-existing
  semdex enrich --min-confidence 0.7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			settings, err := config.Resolve()
			if err != nil {
				return err
			}
			if collection == "" {
				collection = settings.Collections.Default
			}

			mgr, store := buildStore(settings)
			defer func() { _ = mgr.Close() }()

			enricher, err := enrich.New(store)
			if err != nil {
				return fmt.Errorf("enrich: %w", err)
			}
			result, err := enricher.Run(ctx, collection, enrich.Options{
				DryRun:        dryRun,
				SkipExisting:  skipExisting,
				MinConfidence: minConfidence,
			})
			if err != nil {
				return fmt.Errorf("enrich: %w", err)
			}

			prefix := ""
			if result.DryRun {
				prefix = "[dry run] "
			}
			fmt.Printf("%sscanned %d documents: %d enriched, %d skipped, %d chunks written\n",
				prefix, result.Scanned, result.Enriched, result.Skipped, result.PointsUpdated)

			for _, u := range result.Updates {
				fmt.Printf("  %s\n", u.Source)
				for _, inf := range u.Inferences {
					fmt.Printf("    %s=%q (confidence %.2f)\n", inf.Field, inf.Value, inf.Confidence)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection to enrich (default: from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report inferences without writing")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Never overwrite fields that already hold a value")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Discard inferences below this confidence (default: 0.5)")

	return cmd
}
