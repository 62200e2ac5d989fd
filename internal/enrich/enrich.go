// Package enrich backfills metadata on already-ingested documents. Documents
// indexed before the metadata extractors existed, or ingested from bare text,
// carry sparse payloads; the enricher infers category, tech stack, and a
// description from the stored chunk content and writes the inferred fields
// back to every chunk of the document, each with a confidence score.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/54b3r/semdex/internal/logging"
	"github.com/54b3r/semdex/internal/vectordb"
)

// fetchLimit bounds how many chunks one enrichment run scans.
const fetchLimit = 10000

// descriptionLimit caps inferred descriptions.
const descriptionLimit = 200

// Store is the slice of the vector store the enricher needs.
type Store interface {
	Fetch(ctx context.Context, collection string, filter vectordb.Filter, limit int) ([]vectordb.Hit, error)
	SetPayload(ctx context.Context, collection, id string, fields map[string]any) error
}

// Options control one enrichment run.
type Options struct {
	// DryRun computes and reports inferences without writing anything.
	DryRun bool
	// SkipExisting leaves fields that already hold a value untouched. When
	// false, confident inferences overwrite existing values.
	SkipExisting bool
	// MinConfidence is the floor below which an inference is discarded
	// rather than written. Defaults to 0.5.
	MinConfidence float64
}

// Inference is one inferred field with its confidence.
type Inference struct {
	// Field is the payload field name.
	Field string `json:"field"`
	// Value is the inferred value.
	Value string `json:"value"`
	// Confidence is the inference confidence in [0,1].
	Confidence float64 `json:"confidence"`
}

// Update records the enrichment applied to one source document.
type Update struct {
	// Source is the document's path.
	Source string `json:"source"`
	// Points are the chunk IDs the fields were written to.
	Points []string `json:"points"`
	// Inferences are the fields written, with confidences.
	Inferences []Inference `json:"inferences"`
}

// Result summarizes one enrichment run.
type Result struct {
	// Collection is the enriched collection.
	Collection string `json:"collection"`
	// Scanned is the number of source documents examined.
	Scanned int `json:"scanned"`
	// Enriched is the number of documents that received updates.
	Enriched int `json:"enriched"`
	// Skipped is the number of documents with nothing to infer or nothing
	// missing.
	Skipped int `json:"skipped"`
	// PointsUpdated is the number of chunk payloads written.
	PointsUpdated int `json:"points_updated"`
	// DryRun reports whether writes were suppressed.
	DryRun bool `json:"dry_run"`
	// Updates details the per-document changes, ordered by source path.
	Updates []Update `json:"updates"`
}

// categorySignals score a document into a category by weighted keyword hits
// over its lowercased content. Confidence grows with the score; a document
// matching nothing stays uncategorized rather than defaulting.
var categorySignals = []struct {
	name     string
	keywords map[string]int
}{
	{"frontend", map[string]int{"react": 2, "nextjs": 2, "component": 1, "css": 1, "ui": 1}},
	{"backend", map[string]int{"fastapi": 2, "endpoint": 2, "api": 1, "server": 1, "middleware": 1}},
	{"database", map[string]int{"postgres": 2, "schema": 1, "migration": 2, "sql": 1, "query": 1}},
	{"testing", map[string]int{"playwright": 2, "test": 1, "assertion": 2, "coverage": 1, "e2e": 1}},
	{"ai_ml", map[string]int{"embedding": 2, "llm": 2, "prompt": 1, "rag": 2, "model": 1}},
	{"devops", map[string]int{"kubernetes": 2, "docker": 2, "deploy": 1, "pipeline": 1, "terraform": 2}},
	{"security", map[string]int{"vulnerability": 2, "auth": 1, "oauth": 2, "jwt": 2, "encryption": 1}},
	{"documentation", map[string]int{"readme": 2, "guide": 1, "tutorial": 2, "documentation": 1}},
}

// techTokens are the stack tokens the enricher recognizes by substring.
var techTokens = []string{
	"react", "nextjs", "typescript", "javascript", "python", "fastapi",
	"postgres", "sql", "graphql", "docker", "kubernetes", "terraform",
	"kafka", "redis", "grpc", "prometheus", "playwright", "vitest",
}

// Enricher infers and backfills metadata over one store.
type Enricher struct {
	store Store
}

// New constructs an Enricher writing through store.
func New(store Store) (*Enricher, error) {
	if store == nil {
		return nil, fmt.Errorf("enrich: store must not be nil")
	}
	return &Enricher{store: store}, nil
}

// Run scans the collection, infers missing metadata per source document from
// its combined chunk text, and writes confident inferences back to every
// chunk of that document. Failed writes abort the run with the partial
// result.
func (e *Enricher) Run(ctx context.Context, collection string, opts Options) (*Result, error) {
	if collection == "" {
		return nil, fmt.Errorf("enrich: collection must not be empty")
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.5
	}
	log := logging.FromContext(ctx)

	hits, err := e.store.Fetch(ctx, collection, nil, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("enrich: fetching %q failed: %w", collection, err)
	}

	// Chunks of one document are inferred together from their joined text.
	type docState struct {
		ids     []string
		texts   []string
		payload map[string]any
	}
	docs := map[string]*docState{}
	var sources []string
	for _, h := range hits {
		source, _ := h.Payload["source"].(string)
		if source == "" {
			continue
		}
		d, ok := docs[source]
		if !ok {
			d = &docState{payload: h.Payload}
			docs[source] = d
			sources = append(sources, source)
		}
		d.ids = append(d.ids, h.ID)
		d.texts = append(d.texts, h.Text)
	}
	sort.Strings(sources)

	result := &Result{Collection: collection, DryRun: opts.DryRun, Scanned: len(sources)}
	for _, source := range sources {
		d := docs[source]
		inferences := infer(strings.Join(d.texts, "\n"), d.payload, opts)
		if len(inferences) == 0 {
			result.Skipped++
			continue
		}

		fields := make(map[string]any, len(inferences)*2)
		for _, inf := range inferences {
			fields[inf.Field] = inf.Value
			fields[inf.Field+"_confidence"] = inf.Confidence
		}

		if !opts.DryRun {
			for _, id := range d.ids {
				if err := e.store.SetPayload(ctx, collection, id, fields); err != nil {
					return result, fmt.Errorf("enrich: writing %q failed: %w", source, err)
				}
				result.PointsUpdated++
			}
		}
		result.Enriched++
		result.Updates = append(result.Updates, Update{Source: source, Points: d.ids, Inferences: inferences})

		log.Debug("enrich: document enriched",
			slog.String("source", source),
			slog.Int("fields", len(inferences)),
			slog.Bool("dry_run", opts.DryRun),
		)
	}
	return result, nil
}

// infer computes the confident inferences for one document. Fields already
// present are skipped when SkipExisting is set; inferences below the
// confidence floor are dropped.
func infer(text string, payload map[string]any, opts Options) []Inference {
	lower := strings.ToLower(text)
	var out []Inference

	add := func(field, value string, conf float64) {
		if value == "" || conf < opts.MinConfidence {
			return
		}
		if opts.SkipExisting {
			if existing, _ := payload[field].(string); existing != "" {
				return
			}
		}
		out = append(out, Inference{Field: field, Value: value, Confidence: conf})
	}

	category, conf := inferCategory(lower)
	add("category", category, conf)

	tech := inferTech(lower)
	add("tech_stack", strings.Join(tech, ","), techConfidence(len(tech)))

	desc, conf := inferDescription(text)
	add("description", desc, conf)

	return out
}

// inferCategory scores every category's weighted keywords and returns the
// best, with confidence score/(score+2) so weak single-hit matches stay
// below the default floor.
func inferCategory(lower string) (string, float64) {
	best := ""
	bestScore := 0
	for _, sig := range categorySignals {
		score := 0
		for kw, weight := range sig.keywords {
			if strings.Contains(lower, kw) {
				score += weight
			}
		}
		if score > bestScore {
			best = sig.name
			bestScore = score
		}
	}
	if best == "" {
		return "", 0
	}
	return best, float64(bestScore) / float64(bestScore+2)
}

// inferTech returns the sorted stack tokens found in the document.
func inferTech(lower string) []string {
	var found []string
	for _, tok := range techTokens {
		if strings.Contains(lower, tok) {
			found = append(found, tok)
		}
	}
	sort.Strings(found)
	return found
}

// techConfidence grows with the number of recognized tokens, capped at 0.9.
func techConfidence(n int) float64 {
	if n == 0 {
		return 0
	}
	conf := 0.4 + 0.15*float64(n)
	if conf > 0.9 {
		return 0.9
	}
	return conf
}

// inferDescription takes the first markdown heading when one exists, else
// the first non-empty line. A heading is a deliberate title and scores
// higher than an arbitrary first line.
func inferDescription(text string) (string, float64) {
	firstLine := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if title := strings.TrimSpace(strings.TrimLeft(line, "#")); strings.HasPrefix(line, "#") && title != "" {
			return truncate(title, descriptionLimit), 0.9
		}
		if firstLine == "" {
			firstLine = line
		}
	}
	if firstLine == "" {
		return "", 0
	}
	return truncate(firstLine, descriptionLimit), 0.6
}

// truncate cuts s to at most n bytes without splitting a multi-byte
// character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
