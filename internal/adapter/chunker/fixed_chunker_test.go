package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"docqa/internal/domain"
)

func TestFixedChunkerSizes(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		size   int
		expect []string
	}{
		{name: "exact multiple", text: "abcdef", size: 3, expect: []string{"abc", "def"}},
		{name: "short tail", text: "abcdefg", size: 3, expect: []string{"abc", "def", "g"}},
		{name: "larger than text", text: "abc", size: 10, expect: []string{"abc"}},
		{name: "size one", text: "abc", size: 1, expect: []string{"a", "b", "c"}},
		{name: "multibyte", text: "héllo wörld", size: 4, expect: []string{"héll", "o wö", "rld"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewFixedChunker(tc.size)
			if err != nil {
				t.Fatal(err)
			}
			chunks, err := c.Chunk("doc1", tc.text)
			if err != nil {
				t.Fatal(err)
			}
			if len(chunks) != len(tc.expect) {
				t.Fatalf("expected %d chunks, got %d", len(tc.expect), len(chunks))
			}
			for i, chunk := range chunks {
				if chunk.Text != tc.expect[i] {
					t.Errorf("chunk %d: expected %q, got %q", i, tc.expect[i], chunk.Text)
				}
				if chunk.SequenceIndex != i {
					t.Errorf("chunk %d: expected SequenceIndex %d, got %d", i, i, chunk.SequenceIndex)
				}
				if chunk.DocID != "doc1" {
					t.Errorf("chunk %d: expected DocID 'doc1', got '%s'", i, chunk.DocID)
				}
				if tc.text[chunk.ByteStart:chunk.ByteEnd] != chunk.Text {
					t.Errorf("chunk %d: byte range [%d,%d) does not match text", i, chunk.ByteStart, chunk.ByteEnd)
				}
			}
		})
	}
}

func TestFixedChunkerCoverage(t *testing.T) {
	inputs := []string{
		"",
		"a",
		strings.Repeat("lorem ipsum dolor sit amet ", 97),
		strings.Repeat("日本語のテキスト", 33),
		"line one\nline two\n\nline four\r\n",
	}

	for _, size := range []int{1, 2, 7, 64, 500} {
		c, err := NewFixedChunker(size)
		if err != nil {
			t.Fatal(err)
		}
		for _, in := range inputs {
			chunks, err := c.Chunk("doc", in)
			if err != nil {
				t.Fatal(err)
			}

			var sb strings.Builder
			for i, chunk := range chunks {
				if n := utf8.RuneCountInString(chunk.Text); n > size || (i < len(chunks)-1 && n != size) {
					t.Errorf("size %d: chunk %d has %d characters", size, i, n)
				}
				sb.WriteString(chunk.Text)
			}
			if sb.String() != in {
				t.Errorf("size %d: concatenated chunks do not reproduce the input", size)
			}
		}
	}
}

func TestFixedChunkerEmptyContent(t *testing.T) {
	c, _ := NewFixedChunker(500)

	chunks, err := c.Chunk("doc1", "")
	if err != nil {
		t.Fatal(err)
	}
	if chunks == nil || len(chunks) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", chunks)
	}
}

func TestFixedChunkerScenario(t *testing.T) {
	c, _ := NewFixedChunker(500)

	chunks, err := c.Chunk("doc1", strings.Repeat("x", 1200))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, want := range []int{500, 500, 200} {
		if len(chunks[i].Text) != want {
			t.Errorf("chunk %d: expected %d characters, got %d", i, want, len(chunks[i].Text))
		}
	}
}

func TestNewFixedChunkerRejectsNonPositive(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewFixedChunker(size)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("size %d: expected ErrInvalidInput, got %v", size, err)
		}
	}
}
