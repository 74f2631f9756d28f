// Package chunker splits text-bearing entities into embedding-sized chunks.
// A token-budgeted semantic splitter handles prose; a structure-aware
// splitter handles code files. All chunk text is sanitized before it reaches
// a destination, since some engines reject control characters and Unicode
// non-characters outright.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Sanitize removes control characters below 0x20 (except tab, CR, LF) and
// Unicode non-characters from chunk text.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 0x20 && r != '\t' && r != '\r' && r != '\n' {
			continue
		}
		if isNonCharacter(r) {
			continue
		}
		if r == utf8.RuneError {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isNonCharacter reports Unicode non-characters: U+FDD0..U+FDEF and the last
// two code points of every plane.
func isNonCharacter(r rune) bool {
	if r >= 0xFDD0 && r <= 0xFDEF {
		return true
	}
	return r&0xFFFE == 0xFFFE
}
