package chunker

import (
	"strings"
)

// DefaultCodeMaxTokens is the default chunk budget for code files. Code
// retrieval works better with larger windows than prose.
const DefaultCodeMaxTokens = 1024

// Code is the structure-aware splitter for code files. It cuts at top-level
// block boundaries (a lone closing brace, bracket, or "end" line, or a blank
// line followed by a line starting at column zero) so functions and type
// definitions stay whole, falling back to the semantic splitter for oversized
// blocks.
type Code struct {
	tokenizer TokenCounter
	maxTokens int
	fallback  *Semantic
}

// NewCode creates a code chunker with the given token budget per chunk.
func NewCode(tokenizer TokenCounter, maxTokens int) *Code {
	if maxTokens <= 0 {
		maxTokens = DefaultCodeMaxTokens
	}
	return &Code{
		tokenizer: tokenizer,
		maxTokens: maxTokens,
		fallback:  NewSemantic(tokenizer, maxTokens),
	}
}

// Chunk splits sanitized source text into budget-sized pieces along block
// boundaries.
func (c *Code) Chunk(text string) ([]string, error) {
	text = Sanitize(text)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	blocks := splitBlocks(text)

	var chunks []string
	var current strings.Builder
	currentTokens := 0
	for _, block := range blocks {
		blockTokens := c.tokenizer.Count(block)
		if blockTokens > c.maxTokens {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
				currentTokens = 0
			}
			oversized, err := c.fallback.Chunk(block)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, oversized...)
			continue
		}
		if currentTokens+blockTokens > c.maxTokens && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0
		}
		current.WriteString(block)
		currentTokens += blockTokens
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	result := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// splitBlocks divides source text into top-level blocks. A block ends after a
// line that is exactly "}", ")", "]" or "end", or after a blank line whose next
// line is non-empty and starts at column zero.
func splitBlocks(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	var blocks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			blocks = append(blocks, current.String())
			current.Reset()
		}
	}

	for i, line := range lines {
		current.WriteString(line)
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "}" || trimmed == "end" || trimmed == ")" || trimmed == "]" {
			flush()
			continue
		}
		if trimmed == "" && i+1 < len(lines) {
			next := lines[i+1]
			if len(next) > 0 && next[0] != ' ' && next[0] != '\t' && strings.TrimSpace(next) != "" {
				flush()
			}
		}
	}
	flush()
	return blocks
}
