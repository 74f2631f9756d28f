package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the BPE encoding used for all token budgeting.
const encodingName = "cl100k_base"

// DefaultMaxTokens is the default chunk budget for prose.
const DefaultMaxTokens = 512

// Chunker splits text into pieces that fit an embedding budget.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// TokenCounter measures text against a token budget. The production
// implementation is the BPE Tokenizer; tests substitute deterministic
// counters.
type TokenCounter interface {
	Count(text string) int
}

// Tokenizer counts BPE tokens. Shared by the chunkers and the search query
// cap.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenizer loads the BPE encoding.
func NewTokenizer() (*Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	return &Tokenizer{encoding: encoding}, nil
}

// Count returns the number of BPE tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// Semantic is the token-budgeted recursive splitter for prose. It prefers
// paragraph boundaries, then sentence boundaries, then word boundaries, only
// falling back to a hard cut for pathological unbroken runs.
type Semantic struct {
	tokenizer TokenCounter
	maxTokens int
}

// NewSemantic creates a semantic chunker with the given token budget per
// chunk. A zero budget uses DefaultMaxTokens.
func NewSemantic(tokenizer TokenCounter, maxTokens int) *Semantic {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Semantic{tokenizer: tokenizer, maxTokens: maxTokens}
}

// separators, in preference order, for recursive splitting.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunk splits sanitized text into budget-sized pieces.
func (s *Semantic) Chunk(text string) ([]string, error) {
	text = Sanitize(text)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	pieces := s.split(text, 0)
	result := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) != "" {
			result = append(result, piece)
		}
	}
	return result, nil
}

// split recursively divides text at the preferred separator until every
// piece fits the budget, merging adjacent small pieces back together so
// chunks stay close to the budget instead of fragmenting.
func (s *Semantic) split(text string, level int) []string {
	if s.tokenizer.Count(text) <= s.maxTokens {
		return []string{text}
	}
	if level >= len(separators) {
		return s.hardCut(text)
	}

	sep := separators[level]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return s.split(text, level+1)
	}

	var chunks []string
	var current strings.Builder
	currentTokens := 0
	for _, part := range parts {
		partTokens := s.tokenizer.Count(part)
		if partTokens > s.maxTokens {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
				currentTokens = 0
			}
			chunks = append(chunks, s.split(part, level+1)...)
			continue
		}
		if currentTokens+partTokens > s.maxTokens && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0
		}
		current.WriteString(part)
		currentTokens += partTokens
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// hardCut slices an unbreakable run by runes under the token budget.
func (s *Semantic) hardCut(text string) []string {
	var chunks []string
	runes := []rune(text)
	// Budget in runes, conservatively assuming one token per rune floor.
	step := s.maxTokens
	for start := 0; start < len(runes); {
		end := start + step
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[start:end])
		for s.tokenizer.Count(piece) > s.maxTokens && end > start+1 {
			end = start + (end-start)/2
			piece = string(runes[start:end])
		}
		chunks = append(chunks, piece)
		start = end
	}
	return chunks
}
