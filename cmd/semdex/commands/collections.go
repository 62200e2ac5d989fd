package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/logging"
)

// NewCollectionsCmd constructs the `semdex collections` command, which lists
// the collections known to the vector store.
func NewCollectionsCmd() *cobra.Command {
	var info bool
	var deleteName string

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List the collections in the vector store",
		Long: `List every collection in the vector store. With --info, each entry also
shows its point count, vector size, and backend status. --delete drops a
named collection and everything in it; there is no undo.

Examples:
  semdex collections
  semdex collections --info
  semdex collections --delete scratch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			settings, err := config.Resolve()
			if err != nil {
				return err
			}

			mgr, store := buildStore(settings)
			defer func() { _ = mgr.Close() }()

			if deleteName != "" {
				if err := store.DeleteCollection(ctx, deleteName); err != nil {
					return fmt.Errorf("collections: %w", err)
				}
				fmt.Printf("deleted collection %s\n", deleteName)
				return nil
			}

			names, err := store.Collections(ctx)
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}
			if len(names) == 0 {
				fmt.Println("no collections")
				return nil
			}

			for _, name := range names {
				if !info {
					fmt.Println(name)
					continue
				}
				stats, err := store.CollectionInfo(ctx, name)
				if err != nil {
					fmt.Printf("%s  (info unavailable: %v)\n", name, err)
					continue
				}
				fmt.Printf("%s  points=%d vector_size=%d status=%s\n",
					stats.Name, stats.Points, stats.VectorSize, stats.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&info, "info", false, "Show point counts and status per collection")
	cmd.Flags().StringVar(&deleteName, "delete", "", "Delete the named collection instead of listing")

	return cmd
}
