package ingestion

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseFrontmatter(t *testing.T) {
	t.Parallel()

	t.Run("well-formed header", func(t *testing.T) {
		t.Parallel()

		attrs, body, err := ParseFrontmatter("---\nname: reviewer\ndescription: reviews code\n---\n\nThe body.\n")
		if err != nil {
			t.Fatalf("ParseFrontmatter() error = %v", err)
		}
		if attrs["name"] != "reviewer" || attrs["description"] != "reviews code" {
			t.Errorf("attrs = %v", attrs)
		}
		if body != "The body." {
			t.Errorf("body = %q, want trimmed remainder", body)
		}
	})

	t.Run("no header", func(t *testing.T) {
		t.Parallel()

		content := "Just a plain document.\n"
		attrs, body, err := ParseFrontmatter(content)
		if err != nil || attrs != nil || body != content {
			t.Errorf("got attrs=%v body=%q err=%v, want untouched content", attrs, body, err)
		}
	})

	t.Run("unterminated header", func(t *testing.T) {
		t.Parallel()

		content := "---\nname: x\nno closing delimiter"
		attrs, body, err := ParseFrontmatter(content)
		if err != nil || attrs != nil || body != content {
			t.Errorf("got attrs=%v body=%q err=%v, want untouched content", attrs, body, err)
		}
	})

	t.Run("delimiter inside body is preserved", func(t *testing.T) {
		t.Parallel()

		attrs, body, err := ParseFrontmatter("---\nname: x\n---\nTop\n---\nBottom")
		if err != nil {
			t.Fatalf("ParseFrontmatter() error = %v", err)
		}
		if attrs["name"] != "x" {
			t.Errorf("attrs = %v", attrs)
		}
		if body != "Top\n---\nBottom" {
			t.Errorf("body = %q, want full remainder", body)
		}
	})

	t.Run("malformed yaml falls back to full text", func(t *testing.T) {
		t.Parallel()

		content := "---\nname: [unclosed\n---\nbody"
		attrs, body, err := ParseFrontmatter(content)
		if err == nil {
			t.Fatal("ParseFrontmatter() succeeded on malformed header")
		}
		if attrs != nil || body != content {
			t.Errorf("got attrs=%v body=%q, want nil attrs and original content", attrs, body)
		}
	})

	t.Run("non-mapping header is malformed", func(t *testing.T) {
		t.Parallel()

		content := "---\n- a\n- b\n---\nbody"
		_, body, err := ParseFrontmatter(content)
		if err == nil {
			t.Fatal("ParseFrontmatter() accepted a sequence header")
		}
		if body != content {
			t.Errorf("body = %q, want original content", body)
		}
	})
}

func TestExtractAgentAttrs(t *testing.T) {
	t.Parallel()

	content := `---
name: api-reviewer
description: Reviews REST API handlers
model: gpt-4o
tools:
  - Read
  - Grep
  - Read
complexity: advanced
languages: [Python, go]
---

Reviews backend API endpoints written with FastAPI.
`

	attrs, body, err := ExtractAgentAttrs("/agents/api-reviewer.agent.md", content)
	if err != nil {
		t.Fatalf("ExtractAgentAttrs() error = %v", err)
	}

	if attrs.Name != "api-reviewer" {
		t.Errorf("Name = %q", attrs.Name)
	}
	if attrs.Description != "Reviews REST API handlers" {
		t.Errorf("Description = %q", attrs.Description)
	}
	if attrs.Model != "gpt-4o" {
		t.Errorf("Model = %q", attrs.Model)
	}
	if want := []string{"Read", "Grep"}; !reflect.DeepEqual(attrs.Tools, want) {
		t.Errorf("Tools = %v, want deduplicated %v", attrs.Tools, want)
	}
	if attrs.Complexity != "advanced" {
		t.Errorf("Complexity = %q", attrs.Complexity)
	}
	// Declared languages win over detection and keep their declared order.
	if want := []string{"Python", "go"}; !reflect.DeepEqual(attrs.Languages, want) {
		t.Errorf("Languages = %v, want %v", attrs.Languages, want)
	}
	if attrs.Category != "backend" {
		t.Errorf("Category = %q, want backend", attrs.Category)
	}
	if !strings.HasPrefix(body, "Reviews backend") {
		t.Errorf("body = %q", body)
	}
}

func TestExtractAgentAttrs_NoHeader(t *testing.T) {
	t.Parallel()

	content := "A markdown file about React components and UI testing."
	attrs, body, err := ExtractAgentAttrs("/agents/notes.md", content)
	if err != nil {
		t.Fatalf("ExtractAgentAttrs() error = %v", err)
	}

	if body != content {
		t.Errorf("body = %q, want original content", body)
	}
	if attrs.Name != "notes" {
		t.Errorf("Name = %q, want filename fallback", attrs.Name)
	}
	if attrs.Category != "general" || attrs.Complexity != "standard" {
		t.Errorf("defaults = %q/%q, want general/standard", attrs.Category, attrs.Complexity)
	}
	if attrs.Description != "" || attrs.Model != "" || attrs.Tools != nil ||
		attrs.TechStack != nil || attrs.Languages != nil {
		t.Errorf("headerless document carries derived attributes: %+v", attrs)
	}
}

func TestExtractAgentAttrs_MalformedHeader(t *testing.T) {
	t.Parallel()

	content := "---\nname: [broken\n---\nStill useful text."
	attrs, body, err := ExtractAgentAttrs("/agents/broken.prompt.md", content)
	if err == nil {
		t.Fatal("ExtractAgentAttrs() did not report the malformed header")
	}

	if body != content {
		t.Errorf("body = %q, want full original text", body)
	}
	if attrs.Name != "broken" {
		t.Errorf("Name = %q, want filename fallback", attrs.Name)
	}
	if attrs.Category != "general" || attrs.Complexity != "standard" {
		t.Errorf("defaults = %q/%q, want general/standard", attrs.Category, attrs.Complexity)
	}
}

func TestExtractAgentAttrs_DescriptionTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("d", 620)
	content := "---\ndescription: " + long + "\n---\nbody"
	attrs, _, err := ExtractAgentAttrs("/agents/x.md", content)
	if err != nil {
		t.Fatalf("ExtractAgentAttrs() error = %v", err)
	}
	if len(attrs.Description) != 500 {
		t.Errorf("Description length = %d, want 500", len(attrs.Description))
	}
}

func TestExtractAgentAttrs_ToolsFromCommaString(t *testing.T) {
	t.Parallel()

	content := "---\ntools: Read, Write ,Bash\n---\nbody"
	attrs, _, err := ExtractAgentAttrs("/agents/x.md", content)
	if err != nil {
		t.Fatalf("ExtractAgentAttrs() error = %v", err)
	}
	if want := []string{"Read", "Write", "Bash"}; !reflect.DeepEqual(attrs.Tools, want) {
		t.Errorf("Tools = %v, want %v", attrs.Tools, want)
	}
}

func TestClassifyCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		content  string
		want     string
	}{
		{
			name:     "frontend document",
			filename: "ui-helper.md",
			content:  "React component styling with Tailwind",
			want:     "frontend",
		},
		{
			name:     "security document",
			filename: "sec.md",
			content:  "Runs a security audit and reports each vulnerability found",
			want:     "security",
		},
		{
			name:     "tie keeps the earlier category",
			filename: "x.md",
			content:  "api test",
			want:     "backend",
		},
		{
			name:     "no keywords at all",
			filename: "thing.md",
			content:  "zzz qqq",
			want:     "general",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyCategory(tt.filename, tt.content); got != tt.want {
				t.Errorf("classifyCategory(%q, %q) = %q, want %q", tt.filename, tt.content, got, tt.want)
			}
		})
	}
}

func TestExtractTechStack(t *testing.T) {
	t.Parallel()

	// Matching is substring over the lowered content, so "fastapi" also
	// surfaces "api". Output is sorted and deduplicated.
	got := extractTechStack(nil, "A FastAPI service backed by PostgreSQL.")
	want := []string{"api", "fastapi", "postgres", "postgresql", "sql"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractTechStack() = %v, want %v", got, want)
	}

	if got := extractTechStack(nil, "nothing recognizable here"); len(got) != 0 {
		t.Errorf("extractTechStack() = %v, want empty", got)
	}

	// Declared entries merge with detection, lowercased, without duplicates.
	got = extractTechStack([]string{"Neon", " docker ", "api"}, "REST API handlers")
	if want := []string{"api", "docker", "neon", "rest"}; !reflect.DeepEqual(got, want) {
		t.Errorf("extractTechStack() = %v, want declared+detected union %v", got, want)
	}
}

func TestExtractAgentAttrs_TechStackMergesDeclared(t *testing.T) {
	t.Parallel()

	content := "---\nname: deployer\ntech_stack: [Neon, playwright]\n---\nShips containers with docker.\n"
	attrs, _, err := ExtractAgentAttrs("/agents/deployer.md", content)
	if err != nil {
		t.Fatalf("ExtractAgentAttrs() error = %v", err)
	}
	if want := []string{"docker", "neon", "playwright"}; !reflect.DeepEqual(attrs.TechStack, want) {
		t.Errorf("TechStack = %v, want %v", attrs.TechStack, want)
	}
}

func TestExtractLanguages(t *testing.T) {
	t.Parallel()

	got := extractLanguages("We use Golang and Python daily")
	if want := []string{"go", "python"}; !reflect.DeepEqual(got, want) {
		t.Errorf("extractLanguages() = %v, want %v", got, want)
	}

	// Token matching, not substring: "go" inside other words must not hit.
	if got := extractLanguages("category goals argon"); len(got) != 0 {
		t.Errorf("extractLanguages() = %v, want empty", got)
	}
}

func TestAgentAttrsTags(t *testing.T) {
	t.Parallel()

	a := AgentAttrs{
		Name:       "planner",
		Category:   "planning",
		Complexity: "standard",
		Tools:      []string{"Read", "Write"},
		TechStack:  []string{"api", "docker"},
		Languages:  []string{"go"},
	}
	tags := a.Tags()

	if tags["agent_name"] != "planner" || tags["category"] != "planning" {
		t.Errorf("tags = %v", tags)
	}
	if tags["tools"] != "Read,Write" {
		t.Errorf("tools = %v, want comma-joined", tags["tools"])
	}
	if tags["tech_stack"] != "api,docker" || tags["languages"] != "go" {
		t.Errorf("list tags not comma-joined: %v", tags)
	}
}
