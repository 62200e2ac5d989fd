package ingestion

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Defaults for agent attributes that the header does not supply.
const (
	defaultCategory   = "general"
	defaultComplexity = "standard"
)

// techKeywords are the stack tokens recognized in agent content, grouped by
// concern. Matching is plain substring over the lowercased document.
var techKeywords = map[string][]string{
	"frontend": {"nextjs", "next.js", "react", "typescript", "tailwind", "css", "html", "ui", "ux"},
	"backend":  {"python", "fastapi", "api", "rest", "graphql", "websocket", "middleware"},
	"database": {"postgresql", "postgres", "sql", "neon", "prisma", "sqlalchemy", "database"},
	"testing":  {"playwright", "vitest", "jest", "testing", "test", "e2e", "unit", "integration"},
	"ai_ml":    {"ai", "ml", "machine learning", "llm", "embeddings", "vector", "rag", "prompt"},
	"devops":   {"docker", "deployment", "ci/cd", "kubernetes", "vercel", "railway", "cloud"},
	"security": {"security", "auth", "authentication", "jwt", "oauth", "vulnerability"},
}

// categoryRules classify an agent document by keyword hits over its filename
// and content. Evaluated in order; the first category with the highest score
// wins, and a document matching nothing falls back to defaultCategory.
var categoryRules = []struct {
	name     string
	keywords []string
}{
	{"frontend", []string{"frontend", "react", "nextjs", "ui", "ux", "component"}},
	{"backend", []string{"backend", "api", "python", "fastapi", "server"}},
	{"architecture", []string{"architect", "system", "design", "infrastructure"}},
	{"testing", []string{"test", "qa", "quality", "playwright", "debug"}},
	{"ai_ml", []string{"ai", "ml", "data", "engineer", "scientist", "prompt"}},
	{"devops", []string{"devops", "deploy", "cloud", "incident", "performance"}},
	{"security", []string{"security", "audit", "vulnerability"}},
	{"quality", []string{"review", "refactor", "code quality", "best practice"}},
	{"database", []string{"database", "sql", "postgres", "neon", "graphql"}},
	{"planning", []string{"plan", "requirement", "pm", "product", "task"}},
}

// languageTokens maps exact (lowercased) word tokens to canonical language
// labels. Token matching avoids the substring false positives that short
// names like "go" would otherwise produce.
var languageTokens = map[string]string{
	"python":     "python",
	"typescript": "typescript",
	"javascript": "javascript",
	"go":         "go",
	"golang":     "go",
	"rust":       "rust",
	"java":       "java",
	"kotlin":     "kotlin",
	"swift":      "swift",
	"ruby":       "ruby",
	"php":        "php",
	"scala":      "scala",
	"sql":        "sql",
	"bash":       "bash",
	"terraform":  "terraform",
	"yaml":       "yaml",
}

// AgentAttrs are the structured attributes derived from an agent definition
// document. List fields are stored comma-joined since the backend accepts
// scalar payload values only.
type AgentAttrs struct {
	// Name identifies the agent, from the header or the filename.
	Name string
	// Description is the agent's free-text summary, truncated for storage.
	Description string
	// Model is the model the agent declares, if any.
	Model string
	// Tools are the tool names the agent declares.
	Tools []string
	// Category is the classification derived from filename and content.
	Category string
	// Complexity is the agent's declared tier, defaultComplexity if absent.
	Complexity string
	// TechStack unions the declared stack entries with tokens found in the
	// content.
	TechStack []string
	// Languages are the programming languages declared or detected.
	Languages []string
}

// Tags returns the attributes as scalar record tags.
func (a AgentAttrs) Tags() map[string]any {
	return map[string]any{
		"agent_name":  a.Name,
		"description": a.Description,
		"model":       a.Model,
		"tools":       strings.Join(a.Tools, ","),
		"category":    a.Category,
		"complexity":  a.Complexity,
		"tech_stack":  strings.Join(a.TechStack, ","),
		"languages":   strings.Join(a.Languages, ","),
	}
}

// ParseFrontmatter splits a leading YAML header block, delimited by "---",
// from content. On success it returns the parsed attributes and the
// remaining body with surrounding whitespace trimmed. When content carries
// no header, attrs is nil and body is content unchanged. A malformed header
// is reported through err, again with the full original content as body, so
// the document can still be ingested as plain text.
func ParseFrontmatter(content string) (attrs map[string]any, body string, err error) {
	if !strings.HasPrefix(content, "---") {
		return nil, content, nil
	}
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return nil, content, nil
	}

	attrs = map[string]any{}
	if err := yaml.Unmarshal([]byte(parts[1]), &attrs); err != nil {
		return nil, content, fmt.Errorf("ingestion: frontmatter parse failed: %w", err)
	}
	return attrs, strings.TrimSpace(parts[2]), nil
}

// ExtractAgentAttrs derives the structured attributes for the agent
// definition document at path. Classification scans the full content, the
// tech stack merges declared entries with content detection, and name,
// description, model, tools, complexity, and declared languages come from
// the header. A document with a missing or malformed
// header yields default attributes and the full original text, per the
// extractor's non-fatal failure contract; err is non-nil only for a
// malformed header.
func ExtractAgentAttrs(path, content string) (AgentAttrs, string, error) {
	attrs := AgentAttrs{
		Name:       agentName(path),
		Category:   defaultCategory,
		Complexity: defaultComplexity,
	}

	fm, body, err := ParseFrontmatter(content)
	if err != nil {
		return attrs, content, err
	}
	if fm == nil {
		return attrs, content, nil
	}

	if name := yamlString(fm["name"]); name != "" {
		attrs.Name = name
	}
	attrs.Description = truncate(yamlString(fm["description"]), 500)
	attrs.Model = yamlString(fm["model"])
	attrs.Tools = dedupPreserve(yamlStringList(fm["tools"]))
	attrs.Category = classifyCategory(filepath.Base(path), content)
	if tier := yamlString(fm["complexity"]); tier != "" {
		attrs.Complexity = tier
	}
	attrs.TechStack = extractTechStack(yamlStringList(fm["tech_stack"]), content)
	if langs := dedupPreserve(yamlStringList(fm["languages"])); len(langs) > 0 {
		attrs.Languages = langs
	} else {
		attrs.Languages = extractLanguages(content)
	}

	return attrs, body, nil
}

// classifyCategory scores every category's keywords against the lowercased
// filename and content and returns the best match, or defaultCategory when
// nothing matches. Rules are evaluated in declaration order and ties keep
// the earlier category, so classification is deterministic.
func classifyCategory(filename, content string) string {
	text := strings.ToLower(filename + " " + content)

	best := defaultCategory
	bestScore := 0
	for _, rule := range categoryRules {
		score := 0
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best = rule.name
			bestScore = score
		}
	}
	return best
}

// extractTechStack returns the sorted union of the declared stack entries
// and the stack tokens appearing in content. Declared entries are lowercased
// so they deduplicate against detected tokens.
func extractTechStack(declared []string, content string) []string {
	found := map[string]bool{}
	for _, d := range declared {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			found[d] = true
		}
	}

	lower := strings.ToLower(content)
	for _, keywords := range techKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				found[kw] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for kw := range found {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// extractLanguages returns the sorted set of canonical language labels whose
// tokens appear in content.
func extractLanguages(content string) []string {
	found := map[string]bool{}
	tokens := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if lang, ok := languageTokens[tok]; ok {
			found[lang] = true
		}
	}

	out := make([]string, 0, len(found))
	for lang := range found {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// agentName derives an agent name from its filename by stripping the
// recognized extensions.
func agentName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".md")
	name = strings.TrimSuffix(name, ".agent")
	name = strings.TrimSuffix(name, ".prompt")
	return name
}

// yamlString renders a scalar frontmatter value as a string, or "" for
// anything else.
func yamlString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", s)
	default:
		return ""
	}
}

// yamlStringList normalizes a frontmatter value into a list of strings. It
// accepts a YAML sequence or a comma-separated scalar.
func yamlStringList(v any) []string {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := yamlString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		parts := strings.Split(list, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// dedupPreserve removes duplicates from items keeping first occurrences in
// their original order.
func dedupPreserve(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

// truncate cuts s to at most n bytes, backing off so a multi-byte character
// is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
