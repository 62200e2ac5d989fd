// Package auditor analyzes an ingested agent-definition collection as a
// portfolio: per-agent summaries, category and complexity coverage, overlap
// between agents' tech stacks, and an overall health score. It reads the
// stored metadata only and never touches source files.
package auditor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/54b3r/semdex/internal/vectordb"
)

// consolidationOverlap is the tech-stack overlap at which two agents in the
// same category become consolidation candidates.
const consolidationOverlap = 0.7

// fetchLimit bounds how many chunks one audit pulls from the collection.
const fetchLimit = 10000

// Fetcher is the slice of the vector store the auditor reads through.
type Fetcher interface {
	Fetch(ctx context.Context, collection string, filter vectordb.Filter, limit int) ([]vectordb.Hit, error)
}

// Agent summarizes one agent definition document from its stored chunks.
type Agent struct {
	// Source is the agent document's path.
	Source string `json:"source"`
	// Name is the agent's declared name.
	Name string `json:"name"`
	// Category is the agent's classification.
	Category string `json:"category"`
	// Complexity is the agent's declared tier.
	Complexity string `json:"complexity"`
	// TechStack are the agent's stack tokens.
	TechStack []string `json:"tech_stack"`
	// Languages are the agent's languages.
	Languages []string `json:"languages"`
	// Chunks is the number of stored chunks for this agent.
	Chunks int `json:"chunks"`
}

// Candidate flags two same-category agents whose tech stacks overlap enough
// that one of them is probably redundant.
type Candidate struct {
	// A and B are the two agents' source paths.
	A string `json:"a"`
	B string `json:"b"`
	// Category is the shared category.
	Category string `json:"category"`
	// Overlap is the tech-stack overlap coefficient in [0,1].
	Overlap float64 `json:"overlap"`
}

// Report is the outcome of one portfolio audit.
type Report struct {
	// Collection is the audited collection.
	Collection string `json:"collection"`
	// Agents are the per-agent summaries, ordered by source path.
	Agents []Agent `json:"agents"`
	// Chunks is the total number of stored chunks seen.
	Chunks int `json:"chunks"`
	// Categories counts agents per category.
	Categories map[string]int `json:"categories"`
	// Complexities counts agents per complexity tier.
	Complexities map[string]int `json:"complexities"`
	// Candidates are the consolidation candidates found.
	Candidates []Candidate `json:"candidates"`
	// HealthScore is 100 minus 10 per consolidation candidate, floored at 0.
	HealthScore int `json:"health_score"`
}

// Auditor runs portfolio audits over agent collections.
type Auditor struct {
	fetcher Fetcher
}

// New constructs an Auditor reading through fetcher.
func New(fetcher Fetcher) (*Auditor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("auditor: fetcher must not be nil")
	}
	return &Auditor{fetcher: fetcher}, nil
}

// Audit fetches every chunk of the collection, aggregates chunks back to
// their source agents, and reports coverage, overlap, and health.
func (a *Auditor) Audit(ctx context.Context, collection string) (*Report, error) {
	if collection == "" {
		return nil, fmt.Errorf("auditor: collection must not be empty")
	}

	hits, err := a.fetcher.Fetch(ctx, collection, nil, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("auditor: fetching %q failed: %w", collection, err)
	}

	// Chunks of one agent share metadata; the first chunk seen wins and
	// later chunks only bump the count.
	bySource := map[string]*Agent{}
	for _, h := range hits {
		source, _ := h.Payload["source"].(string)
		if source == "" {
			continue
		}
		agent, ok := bySource[source]
		if !ok {
			agent = &Agent{
				Source:     source,
				Name:       payloadString(h.Payload, "agent_name"),
				Category:   payloadString(h.Payload, "category"),
				Complexity: payloadString(h.Payload, "complexity"),
				TechStack:  splitTokens(payloadString(h.Payload, "tech_stack")),
				Languages:  splitTokens(payloadString(h.Payload, "languages")),
			}
			bySource[source] = agent
		}
		agent.Chunks++
	}

	report := &Report{
		Collection:   collection,
		Chunks:       len(hits),
		Categories:   map[string]int{},
		Complexities: map[string]int{},
	}
	for _, agent := range bySource {
		report.Agents = append(report.Agents, *agent)
	}
	sort.Slice(report.Agents, func(i, j int) bool {
		return report.Agents[i].Source < report.Agents[j].Source
	})

	for _, agent := range report.Agents {
		if agent.Category != "" {
			report.Categories[agent.Category]++
		}
		if agent.Complexity != "" {
			report.Complexities[agent.Complexity]++
		}
	}

	report.Candidates = findCandidates(report.Agents)
	report.HealthScore = 100 - 10*len(report.Candidates)
	if report.HealthScore < 0 {
		report.HealthScore = 0
	}
	return report, nil
}

// findCandidates pairs same-category agents whose tech stacks overlap at or
// above the consolidation threshold. Agents are pre-sorted by source, so
// candidate order is deterministic.
func findCandidates(agents []Agent) []Candidate {
	var out []Candidate
	for i := 0; i < len(agents); i++ {
		for j := i + 1; j < len(agents); j++ {
			a, b := agents[i], agents[j]
			if a.Category == "" || a.Category != b.Category {
				continue
			}
			overlap := techOverlap(a.TechStack, b.TechStack)
			if overlap >= consolidationOverlap {
				out = append(out, Candidate{
					A:        a.Source,
					B:        b.Source,
					Category: a.Category,
					Overlap:  overlap,
				})
			}
		}
	}
	return out
}

// techOverlap is the overlap coefficient between two token sets: shared
// tokens over the smaller set's size. Two identical stacks score 1; a stack
// fully contained in a larger one also scores 1, which is exactly the
// redundancy signal the audit looks for. Empty stacks score 0.
func techOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	shared := 0
	for _, t := range b {
		if set[t] {
			shared++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(shared) / float64(smaller)
}

// payloadString reads a string field from a payload, "" when absent.
func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// splitTokens splits a comma-joined stored list back into its tokens.
func splitTokens(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
