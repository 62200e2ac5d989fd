package ingestion

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkerSplit_Windowing(t *testing.T) {
	t.Parallel()

	// 2500 bytes with no semantic boundaries: hard cuts with overlap carry,
	// and the tail below one chunk size comes out bare.
	text := strings.Repeat("ab", 1250)
	chunks := NewChunker(1000, 200).Split(text)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantLens := []int{1000, 1000, 700}
	wantStarts := []int{0, 800, 1800}
	for i, c := range chunks {
		if len(c.Text) != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, len(c.Text), wantLens[i])
		}
		if c.Start != wantStarts[i] {
			t.Errorf("chunk %d start = %d, want %d", i, c.Start, wantStarts[i])
		}
	}
	if last := chunks[2]; last.Start+len(last.Text) != len(text) {
		t.Errorf("chunks end at %d, want %d", last.Start+len(last.Text), len(text))
	}
}

func TestChunkerSplit_Edges(t *testing.T) {
	t.Parallel()

	c := NewChunker(1000, 200)

	if got := c.Split(""); got != nil {
		t.Errorf("empty input produced %d chunks, want 0", len(got))
	}

	short := "a short document"
	chunks := c.Split(short)
	if len(chunks) != 1 || chunks[0].Text != short || chunks[0].Start != 0 {
		t.Errorf("short input produced %+v, want one whole chunk", chunks)
	}

	exact := strings.Repeat("x", 1000)
	chunks = c.Split(exact)
	if len(chunks) != 1 || chunks[0].Text != exact {
		t.Errorf("exact-size input produced %d chunks, want 1", len(chunks))
	}
}

func TestChunkerSplit_BoundaryPreference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		wantEnd int // end offset of the first chunk
	}{
		{
			name:    "heading starts the next chunk",
			text:    strings.Repeat("a", 70) + "\n# Title\n" + strings.Repeat("b", 200),
			wantEnd: 71,
		},
		{
			name:    "paragraph break",
			text:    strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 300),
			wantEnd: 62,
		},
		{
			name:    "line break",
			text:    strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 300),
			wantEnd: 61,
		},
		{
			name:    "sentence end",
			text:    strings.Repeat("a", 74) + ". " + strings.Repeat("b", 300),
			wantEnd: 76,
		},
		{
			name:    "boundary in first half is ignored",
			text:    "aa\n" + strings.Repeat("b", 300),
			wantEnd: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chunks := NewChunker(100, 10).Split(tt.text)
			if len(chunks) < 2 {
				t.Fatalf("got %d chunks, want at least 2", len(chunks))
			}
			if end := chunks[0].Start + len(chunks[0].Text); end != tt.wantEnd {
				t.Errorf("first chunk ends at %d, want %d", end, tt.wantEnd)
			}
		})
	}
}

func TestChunkerSplit_HeadingLandsAtChunkTop(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 70) + "\n# Title\n" + strings.Repeat("b", 200)
	chunks := NewChunker(100, 10).Split(text)

	if !strings.HasSuffix(chunks[0].Text, "\n") {
		t.Errorf("first chunk does not end at the newline before the heading: %q", chunks[0].Text[60:])
	}
	if text[chunks[0].Start+len(chunks[0].Text)] != '#' {
		t.Error("cut did not land immediately before the heading marker")
	}
}

func TestChunkerSplit_Coverage(t *testing.T) {
	t.Parallel()

	texts := []string{
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60),
		"# Doc\n\n" + strings.Repeat("paragraph one\n\nparagraph two\n", 40),
		strings.Repeat("unbroken", 300),
		strings.Repeat("é", 700),
	}
	params := []struct{ size, overlap int }{
		{1000, 200},
		{100, 10},
		{50, 0},
	}

	for _, text := range texts {
		for _, p := range params {
			chunks := NewChunker(p.size, p.overlap).Split(text)
			if len(chunks) == 0 {
				t.Fatalf("size=%d: no chunks for %d bytes", p.size, len(text))
			}
			if chunks[0].Start != 0 {
				t.Errorf("size=%d: first chunk starts at %d", p.size, chunks[0].Start)
			}

			// Rebuild the document by trimming each chunk's overlap with its
			// predecessor; any gap or mismatch corrupts the reconstruction.
			rebuilt := chunks[0].Text
			prevEnd := chunks[0].Start + len(chunks[0].Text)
			for i, c := range chunks[1:] {
				if len(c.Text) > p.size {
					t.Errorf("size=%d: chunk %d has %d bytes", p.size, i+1, len(c.Text))
				}
				shared := prevEnd - c.Start
				if shared < 0 {
					t.Fatalf("size=%d: gap before chunk %d", p.size, i+1)
				}
				if shared >= len(c.Text) {
					t.Fatalf("size=%d: chunk %d advances nowhere", p.size, i+1)
				}
				rebuilt += c.Text[shared:]
				prevEnd = c.Start + len(c.Text)
			}
			if rebuilt != text {
				t.Errorf("size=%d overlap=%d: reconstruction does not match input", p.size, p.overlap)
			}
		}
	}
}

func TestChunkerSplit_Deterministic(t *testing.T) {
	t.Parallel()

	text := "# Title\n\n" + strings.Repeat("Some sentence here. Another one follows.\n", 80)
	c := NewChunker(256, 32)

	first := c.Split(text)
	second := c.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated splits of identical input differ")
	}
}

func TestChunkerSplit_MultibyteNeverSplit(t *testing.T) {
	t.Parallel()

	chunks := NewChunker(101, 0).Split(strings.Repeat("é", 700))
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
}

func TestNewChunker_ClampsOverlap(t *testing.T) {
	t.Parallel()

	// An overlap at or above the chunk size falls back to a tenth of it.
	chunks := NewChunker(100, 100).Split(strings.Repeat("a", 300))
	wantStarts := []int{0, 90, 180, 280}
	if len(chunks) != len(wantStarts) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantStarts))
	}
	for i, c := range chunks {
		if c.Start != wantStarts[i] {
			t.Errorf("chunk %d start = %d, want %d", i, c.Start, wantStarts[i])
		}
	}
}
