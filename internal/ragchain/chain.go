// Package ragchain implements the retrieval-augmented answer chain behind
// `semdex rag`: retrieve the best-matching chunks for a question, admit
// those above a confidence floor into a token-budgeted context, and have
// the configured chat model answer from that context with cited sources.
package ragchain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/semdex/internal/budget"
	"github.com/54b3r/semdex/internal/logging"
	"github.com/54b3r/semdex/internal/retrieval"
)

// systemPrompt instructs the model to answer strictly from the retrieved
// context and admit when the context does not cover the question.
const systemPrompt = `You are a precise technical assistant answering questions about an indexed document corpus.
Answer using ONLY the provided context. If the context does not contain the answer, say so plainly instead of guessing.
Be concise and cite the source paths you drew from.`

// FallbackAnswer is returned without a model call when no retrieved chunk
// clears the confidence floor.
const FallbackAnswer = "I don't have enough indexed context to answer that confidently. Try ingesting more sources or lowering the confidence floor."

// Searcher is the slice of the retriever the chain reads through.
type Searcher interface {
	Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.Document, error)
}

// Generator is the slice of the chat model the chain calls. Satisfied by
// any eino chat model.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the chain's tunables.
type Config struct {
	// Collection is the collection questions are answered from.
	Collection string

	// TopK is the number of documents retrieved per question. Defaults to 5.
	TopK int

	// MinConfidence is the admission floor: a retrieved document enters the
	// context only when 1 - distance reaches it. Defaults to 0.5.
	MinConfidence float64

	// MaxContextTokens caps the estimated token size of the assembled
	// context. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Source cites one document that contributed to an answer.
type Source struct {
	// Path is the source document path.
	Path string `json:"path"`
	// Distance is the chunk's distance to the question.
	Distance float64 `json:"distance"`
	// Confidence is max(0, 1 - Distance).
	Confidence float64 `json:"confidence"`
	// Band is the advisory calibration label for Distance.
	Band string `json:"band"`
}

// Answer is the chain's result for one question.
type Answer struct {
	// Text is the model's answer, or FallbackAnswer when nothing cleared
	// the confidence floor.
	Text string `json:"text"`
	// Confidence is the best source confidence backing the answer, 0 for a
	// fallback answer.
	Confidence float64 `json:"confidence"`
	// Sources lists the documents whose chunks made it into the context,
	// best first.
	Sources []Source `json:"sources"`
}

// Chain answers questions over one collection. Safe for concurrent use.
type Chain struct {
	// generator produces the answer text.
	generator Generator
	// searcher retrieves candidate context.
	searcher Searcher
	// cfg holds the resolved chain configuration.
	cfg Config
}

// New constructs a Chain from its dependencies and config.
func New(generator Generator, searcher Searcher, cfg Config) (*Chain, error) {
	if generator == nil {
		return nil, fmt.Errorf("ragchain: generator must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("ragchain: searcher must not be nil")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("ragchain: collection must not be empty")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.5
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Chain{generator: generator, searcher: searcher, cfg: cfg}, nil
}

// Ask retrieves context for question and generates an answer from it. When
// no retrieved chunk clears the confidence floor the fallback answer is
// returned without a model call, so a thin index never produces invented
// answers.
func (c *Chain) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("ragchain: question must not be empty")
	}
	log := logging.FromContext(ctx)

	docs, err := c.searcher.Search(ctx, retrieval.SearchRequest{
		Query:      question,
		Collection: c.cfg.Collection,
		Limit:      c.cfg.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("ragchain: retrieval failed: %w", err)
	}

	// Admit documents above the confidence floor, best first.
	var admitted []retrieval.Document
	for _, d := range docs {
		if confidence(d.Distance) >= c.cfg.MinConfidence {
			admitted = append(admitted, d)
		}
	}
	if len(admitted) == 0 {
		log.Info("ragchain: no context above confidence floor",
			slog.Int("retrieved", len(docs)),
			slog.Float64("min_confidence", c.cfg.MinConfidence),
		)
		return &Answer{Text: FallbackAnswer}, nil
	}

	// Trim the context to the token budget, dropping worst-ranked first.
	contexts := make([]string, len(admitted))
	for i, d := range admitted {
		contexts[i] = fmt.Sprintf("[source: %s]\n%s", d.Source, d.Text)
	}
	reserved := budget.Estimate(systemPrompt) + budget.Estimate(question) + 64
	contexts = budget.TrimContext(contexts, reserved, c.cfg.MaxContextTokens)
	if len(contexts) == 0 {
		// The single best chunk alone blows the budget; answer from its head
		// rather than nothing.
		contexts = []string{truncateTokens(fmt.Sprintf("[source: %s]\n%s", admitted[0].Source, admitted[0].Text), c.cfg.MaxContextTokens-reserved)}
	}
	admitted = admitted[:min(len(admitted), len(contexts))]

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Context:\n\n%s\n\nQuestion: %s", strings.Join(contexts, "\n\n---\n\n"), question)),
	}

	log.Debug("ragchain: generating answer",
		slog.Int("context_chunks", len(contexts)),
		slog.Int("estimated_tokens", budget.EstimateMessages(msgs)),
	)

	resp, err := c.generator.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("ragchain: generate failed: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return nil, fmt.Errorf("ragchain: model returned an empty answer")
	}

	answer := &Answer{
		Text:       resp.Content,
		Confidence: confidence(admitted[0].Distance),
	}
	for _, d := range admitted {
		answer.Sources = append(answer.Sources, Source{
			Path:       d.Source,
			Distance:   d.Distance,
			Confidence: confidence(d.Distance),
			Band:       d.Band,
		})
	}
	return answer, nil
}

// confidence converts a distance to the [0,1] confidence scale.
func confidence(distance float64) float64 {
	c := 1 - distance
	if c < 0 {
		return 0
	}
	return c
}

// truncateTokens cuts s to roughly maxTokens of estimated content.
func truncateTokens(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * 4
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
