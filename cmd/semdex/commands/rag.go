package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/logging"
	"github.com/54b3r/semdex/internal/provider"
	"github.com/54b3r/semdex/internal/ragchain"
	"github.com/54b3r/semdex/internal/tracing"
)

// NewRagCmd constructs the `semdex rag` command, which answers a question
// from the indexed corpus with cited sources.
func NewRagCmd() *cobra.Command {
	var collection string
	var topK int
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "rag <question>",
		Short: "Answer a question from the indexed corpus",
		Long: `Retrieve the best-matching chunks for the question, assemble them into a
token-budgeted context, and have the configured chat model answer from that
context only. Sources are cited with their distances and quality bands.

When no retrieved chunk clears the confidence floor the command reports
that instead of letting the model guess — a thin index never produces
invented answers.

Model provider is selected via MODEL_PROVIDER (ollama, openai, azure,
bedrock, gemini) with each provider's native credential env vars.

Examples:
  semdex rag "how does the ingestion pipeline handle failed batches"
  semdex rag "which agents cover kubernetes" --collection agents_analysis
  semdex rag "what calls the chunker" --top-k 8 --min-confidence 0.3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			question := strings.Join(args, " ")

			settings, err := config.Resolve()
			if err != nil {
				return err
			}

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("rag: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("rag: %w", err)
			}

			mgr, store := buildStore(settings)
			defer func() { _ = mgr.Close() }()

			retriever, err := buildRetriever(store, emb, settings)
			if err != nil {
				return fmt.Errorf("rag: %w", err)
			}

			if collection == "" {
				collection = settings.Collections.Default
			}
			if minConfidence == 0 {
				minConfidence = settings.RAG.MinConfidence
			}

			chain, err := ragchain.New(chatModel, retriever, ragchain.Config{
				Collection:       collection,
				TopK:             topK,
				MinConfidence:    minConfidence,
				MaxContextTokens: settings.RAG.MaxContextTokens,
			})
			if err != nil {
				return fmt.Errorf("rag: %w", err)
			}

			answer, err := chain.Ask(ctx, question)
			if err != nil {
				return fmt.Errorf("rag: %w", err)
			}

			fmt.Println(answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range answer.Sources {
					fmt.Printf("  %s  (distance %.4f, confidence %.2f, %s)\n",
						src.Path, src.Distance, src.Confidence, src.Band)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection to answer from (default: from config)")
	cmd.Flags().IntVar(&topK, "top-k", 5, "Number of chunks retrieved per question")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Context admission floor (default: from config)")

	return cmd
}
