package chunker

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter is a deterministic TokenCounter for tests: one token per
// whitespace-separated word, plus one per 8 characters of unbroken runs.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	count := 0
	for _, field := range strings.Fields(text) {
		count += 1 + len(field)/8
	}
	return count
}

func newTestTokenizer(t *testing.T) TokenCounter {
	t.Helper()
	return wordCounter{}
}

// TestSanitize tests control character and non-character removal
func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean text unchanged", "hello world", "hello world"},
		{"tab cr lf kept", "a\tb\r\nc", "a\tb\r\nc"},
		{"control chars stripped", "a\x00b\x01c\x1fd", "abcd"},
		{"noncharacters stripped", "a﷐b￾c", "abc"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

// TestSemanticSmallText tests that text under budget stays whole
func TestSemanticSmallText(t *testing.T) {
	s := NewSemantic(newTestTokenizer(t), 128)
	chunks, err := s.Chunk("one small paragraph")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "one small paragraph", chunks[0])
}

// TestSemanticParagraphSplit tests budget-bounded paragraph splitting
func TestSemanticParagraphSplit(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	s := NewSemantic(tokenizer, 40)

	paragraph := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 4)
	text := paragraph + "\n\n" + paragraph + "\n\n" + paragraph

	chunks, err := s.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, tokenizer.Count(chunk), 40)
	}
	// No content lost.
	assert.Equal(t, text, strings.Join(chunks, ""))
}

// TestSemanticUnbrokenRun tests the hard cut path
func TestSemanticUnbrokenRun(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	s := NewSemantic(tokenizer, 16)

	text := strings.Repeat("x", 2000)
	chunks, err := s.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	total := 0
	for _, chunk := range chunks {
		assert.LessOrEqual(t, tokenizer.Count(chunk), 16)
		total += len(chunk)
	}
	assert.Equal(t, 2000, total)
}

// TestSemanticEmpty tests empty and whitespace-only input
func TestSemanticEmpty(t *testing.T) {
	s := NewSemantic(newTestTokenizer(t), 64)
	chunks, err := s.Chunk("   \n\n  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

// TestCodeBlockBoundaries tests that functions stay whole when they fit
func TestCodeBlockBoundaries(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	c := NewCode(tokenizer, 64)

	src := `func add(a, b int) int {
	return a + b
}

func sub(a, b int) int {
	return a - b
}
`
	chunks, err := c.Chunk(src)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, tokenizer.Count(chunk), 64)
	}
	joined := strings.Join(chunks, "")
	assert.Contains(t, joined, "func add")
	assert.Contains(t, joined, "func sub")
}

// TestCodeOversizedBlock tests the semantic fallback for giant blocks
func TestCodeOversizedBlock(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	c := NewCode(tokenizer, 32)

	var b strings.Builder
	b.WriteString("func big() {\n")
	for i := 0; i < 100; i++ {
		b.WriteString("\tdoSomething(i)\n")
	}
	b.WriteString("}\n")

	chunks, err := c.Chunk(b.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, tokenizer.Count(chunk), 32)
	}
}

// TestTokenizerCount tests the BPE tokenizer against the live encoding
// files. Guarded because loading cl100k_base fetches the encoding on first
// use.
func TestTokenizerCount(t *testing.T) {
	if os.Getenv("AIRWEAVE_TIKTOKEN_TESTS") == "" {
		t.Skip("AIRWEAVE_TIKTOKEN_TESTS not set, skipping tokenizer download test")
	}
	tokenizer, err := NewTokenizer()
	require.NoError(t, err)
	assert.Equal(t, 0, tokenizer.Count(""))
	assert.Positive(t, tokenizer.Count("hello world"))
	assert.Greater(t, tokenizer.Count(strings.Repeat("word ", 100)), tokenizer.Count("word"))
}
