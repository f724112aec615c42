// Package chapters detects chapter-start boundaries in source text using an
// ordered list of heading-pattern matchers. Boundaries are validated before
// use: a backward or repeated chapter number would corrupt downstream
// table-of-contents generation and is reported instead of accepted.
package chapters

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxHeadingRunes bounds how long a line can be and still be considered a
// heading candidate. Real chapter headings are short; body lines are not.
const maxHeadingRunes = 80

// Boundary is a detected chapter start.
type Boundary struct {
	// Offset is the byte offset of the heading line in the source text.
	Offset int

	// Number is the normalized chapter number.
	Number int

	// Title is the heading title, possibly empty.
	Title string

	// Style names the matcher that produced this boundary.
	Style string
}

// ValidationError reports a boundary sequence that is not strictly
// increasing in chapter number. It is fatal for the book, never retried.
type ValidationError struct {
	Offset int
	Number int
	Prev   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chapter boundary at offset %d: number %d does not follow %d", e.Offset, e.Number, e.Prev)
}

// Detector scans text for chapter boundaries.
type Detector struct {
	matchers []Matcher
}

// NewDetector creates a detector with the given matcher priority order.
// Passing no matchers uses DefaultMatchers.
func NewDetector(matchers ...Matcher) *Detector {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Detector{matchers: matchers}
}

// Detect returns the validated, strictly increasing chapter boundaries of
// text. The returned slice is empty (not an error) when no headings match.
func (d *Detector) Detect(text string) ([]Boundary, error) {
	var bounds []Boundary

	offset := 0
	for offset <= len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		var line string
		if lineEnd < 0 {
			line = text[offset:]
			lineEnd = len(line)
		} else {
			line = text[offset : offset+lineEnd]
		}

		if b, ok := d.matchLine(line, offset); ok {
			bounds = append(bounds, b)
		}

		offset += lineEnd + 1
	}

	if err := Validate(bounds); err != nil {
		return nil, err
	}
	return bounds, nil
}

// matchLine tries each matcher in priority order against one line.
func (d *Detector) matchLine(line string, offset int) (Boundary, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxHeadingRunes {
		return Boundary{}, false
	}

	// Offset points at the heading text, not its leading whitespace.
	lead := strings.Index(line, trimmed)

	for _, m := range d.matchers {
		if h, ok := m.Match(trimmed); ok {
			return Boundary{
				Offset: offset + lead,
				Number: h.Number,
				Title:  h.Title,
				Style:  m.Name(),
			}, true
		}
	}
	return Boundary{}, false
}

// Validate checks that boundaries are strictly increasing in both offset and
// chapter number. Detect output always satisfies the offset ordering; the
// number check is what catches bad detections (prefaces numbered like
// chapters, roman-numeral false positives).
func Validate(bounds []Boundary) error {
	prevOffset, prevNumber := -1, 0
	for _, b := range bounds {
		if b.Offset <= prevOffset {
			return &ValidationError{Offset: b.Offset, Number: b.Number, Prev: prevNumber}
		}
		if b.Number <= prevNumber {
			return &ValidationError{Offset: b.Offset, Number: b.Number, Prev: prevNumber}
		}
		prevOffset, prevNumber = b.Offset, b.Number
	}
	return nil
}

// AssignToChunks maps each boundary to the chunk that contains it.
// chunkOffsets must be the ascending start offsets of a book's chunks.
// The result is indexed like bounds; a value of -1 means the boundary
// precedes every chunk.
func AssignToChunks(bounds []Boundary, chunkOffsets []int) []int {
	assigned := make([]int, len(bounds))
	for i, b := range bounds {
		idx := -1
		for c, off := range chunkOffsets {
			if off > b.Offset {
				break
			}
			idx = c
		}
		assigned[i] = idx
	}
	return assigned
}
