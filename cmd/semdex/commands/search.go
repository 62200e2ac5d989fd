package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/logging"
	"github.com/54b3r/semdex/internal/retrieval"
)

// snippetLength is how much chunk text a search result prints.
const snippetLength = 200

// NewSearchCmd constructs the `semdex search` command, which runs a
// similarity search against one or more collections.
func NewSearchCmd() *cobra.Command {
	var collection string
	var collections []string
	var category string
	var limit int
	var threshold float64
	var filters []string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index by semantic similarity",
		Long: `Embed the query and return the closest indexed chunks, one result per
source document, ordered by ascending cosine distance.

Each result carries an advisory quality band (excellent/good/acceptable/poor)
derived from its distance. --threshold drops results whose distance exceeds
the cutoff; --filter restricts the search to chunks whose metadata matches.

Examples:
  semdex search "how do we rotate credentials"
  semdex search "deployment pipeline" --collection code_context --limit 5
  semdex search "testing strategy" --collections code_context,agents_analysis
  semdex search "react agents" --category frontend
  semdex search "auth" --filter file_type=.md --threshold 1.0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			query := strings.Join(args, " ")

			settings, err := config.Resolve()
			if err != nil {
				return err
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			mgr, store := buildStore(settings)
			defer func() { _ = mgr.Close() }()

			retriever, err := buildRetriever(store, emb, settings)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			filter, err := parseFilterFlags(filters)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			req := retrieval.SearchRequest{
				Query:      query,
				Collection: collection,
				Limit:      limit,
				Filter:     filter,
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			if req.Collection == "" {
				req.Collection = settings.Collections.Default
			}

			var docs []retrieval.Document
			switch {
			case len(collections) > 0:
				docs, err = retriever.SearchAll(ctx, collections, req)
			case category != "":
				if !cmd.Flags().Changed("collection") {
					req.Collection = settings.Collections.Agents
				}
				docs, err = retriever.SearchCategory(ctx, req, category)
			default:
				docs, err = retriever.Search(ctx, req)
			}
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(docs) == 0 {
				fmt.Println("no results")
				return nil
			}

			for i, d := range docs {
				header := fmt.Sprintf("%d. %s  (distance %.4f, %s)", i+1, d.Source, d.Distance, d.Band)
				if d.Collection != "" {
					header += "  [" + d.Collection + "]"
				}
				fmt.Println(header)
				fmt.Println("   " + snippet(d.Text))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection to search (default: from config)")
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "Fan the search out across these collections")
	cmd.Flags().StringVar(&category, "category", "", "Restrict to one agent category")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Drop results with distance above this cutoff")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Metadata filter as key=value (repeatable)")

	return cmd
}

// snippet returns the head of text flattened to one line.
func snippet(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if len(flat) <= snippetLength {
		return flat
	}
	return flat[:snippetLength] + "…"
}
