// Package segment splits raw novel text into ordered, bounded chunks for
// translation. Splitting prefers paragraph breaks, then sentence-ending
// punctuation, then whitespace, with a hard cut as last resort. Splits are
// computed on runes, so a cut can never land inside a multi-byte character.
package segment

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrLimitTooSmall is returned when the configured chunk limit cannot hold a
// single indivisible unit of text. This is a configuration error and is
// never retried.
var ErrLimitTooSmall = errors.New("chunk limit too small")

// Chunk is one unit of translatable text.
type Chunk struct {
	// Index is the zero-based position within the book. Indices are
	// contiguous with no gaps or duplicates.
	Index int

	// Text is the chunk's source text, trimmed of boundary whitespace.
	Text string

	// Offset is the byte offset of the first byte of Text in the original
	// source. Used to align chapter boundaries to chunks.
	Offset int
}

// Split divides text into chunks of at most maxRunes runes each.
//
// Boundary preference, searched backwards from the limit:
//  1. Paragraph break (blank line)
//  2. Sentence-ending punctuation followed by whitespace
//  3. Any whitespace
//  4. Hard cut at maxRunes
//
// The concatenation of chunk texts reproduces the source up to the boundary
// whitespace trimmed at each split.
func Split(text string, maxRunes int) ([]Chunk, error) {
	if maxRunes < 1 {
		return nil, fmt.Errorf("%w: max %d runes cannot hold any text", ErrLimitTooSmall, maxRunes)
	}

	var chunks []Chunk
	pos := 0 // byte offset into the original text

	remaining := text
	for utf8.RuneCountInString(remaining) > maxRunes {
		cut := findSplit(remaining, maxRunes)
		piece := remaining[:cut]

		if c, ok := makeChunk(piece, pos, len(chunks)); ok {
			chunks = append(chunks, c)
		}
		pos += cut
		remaining = remaining[cut:]
	}

	if c, ok := makeChunk(remaining, pos, len(chunks)); ok {
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// makeChunk trims piece and records the offset of its first retained byte.
// Returns false for whitespace-only pieces.
func makeChunk(piece string, base, index int) (Chunk, bool) {
	trimmed := strings.TrimSpace(piece)
	if trimmed == "" {
		return Chunk{}, false
	}
	lead := strings.IndexFunc(piece, func(r rune) bool { return !unicode.IsSpace(r) })
	return Chunk{Index: index, Text: trimmed, Offset: base + lead}, true
}

// findSplit returns the byte offset at which to split text so the consumed
// prefix holds at most maxRunes runes, searching backwards for the best
// boundary within the candidate window.
func findSplit(text string, maxRunes int) int {
	// Byte length of the first maxRunes runes.
	window := 0
	seen := 0
	for i := range text {
		if seen == maxRunes {
			window = i
			break
		}
		seen++
	}
	if window == 0 {
		return len(text)
	}
	candidate := text[:window]

	// 1. Paragraph break.
	if idx := strings.LastIndex(candidate, "\r\n\r\n"); idx > 0 {
		return idx + 4
	}
	if idx := strings.LastIndex(candidate, "\n\n"); idx > 0 {
		return idx + 2
	}

	// 2. Sentence end followed by whitespace.
	if idx := lastSentenceEnd(candidate); idx > 0 {
		return idx
	}

	// 3. Whitespace.
	if idx := lastSpace(candidate); idx > 0 {
		return idx
	}

	// 4. Hard cut at the rune boundary.
	return window
}

// sentenceEnders covers western and CJK full stops.
const sentenceEnders = ".!?。！？…"

// lastSentenceEnd returns the byte offset just past the last sentence-ending
// rune that is followed by whitespace, or 0 if none exists.
func lastSentenceEnd(s string) int {
	best := 0
	prevEnd := -1 // byte offset past a sentence-ending rune, pending a space check
	for i, r := range s {
		if prevEnd >= 0 {
			if unicode.IsSpace(r) {
				best = prevEnd
			}
			prevEnd = -1
		}
		if strings.ContainsRune(sentenceEnders, r) {
			prevEnd = i + utf8.RuneLen(r)
		}
	}
	return best
}

// lastSpace returns the byte offset of the last whitespace rune, or 0.
func lastSpace(s string) int {
	for i := len(s); i > 0; {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		if unicode.IsSpace(r) {
			return i
		}
	}
	return 0
}
