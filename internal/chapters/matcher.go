package chapters

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Heading is a normalized chapter heading extracted from one line.
type Heading struct {
	Number int
	Title  string
}

// Matcher recognizes one chapter-heading style on a single line.
// Matchers are tried in priority order; the first match wins for that line.
// Adding a language or style means adding one implementation, not branching
// detector logic.
type Matcher interface {
	// Name identifies the style, e.g. "numbered", "cjk".
	Name() string

	// Match reports whether line is a chapter heading in this style.
	Match(line string) (Heading, bool)
}

// DefaultMatchers returns the built-in matchers in default priority order.
// A bare roman-numeral line is the most ambiguous style, so it runs last.
func DefaultMatchers() []Matcher {
	return []Matcher{
		&NumberedMatcher{},
		&AbbreviatedMatcher{},
		&SectionMatcher{},
		&CJKMatcher{},
		&RomanMatcher{},
	}
}

// NumberedMatcher matches "Chapter 12", "Chapter 12: Title" and the common
// European chapter words, case-insensitively.
type NumberedMatcher struct{}

var numberedRe = regexp.MustCompile(`(?i)^(?:chapter|chapitre|capítulo|capitulo|capitolo|kapitel|глава)\s+(\d{1,4})\s*[.:—-]?\s*(.*)$`)

func (m *NumberedMatcher) Name() string { return "numbered" }

func (m *NumberedMatcher) Match(line string) (Heading, bool) {
	sub := numberedRe.FindStringSubmatch(line)
	if sub == nil {
		return Heading{}, false
	}
	n, err := strconv.Atoi(sub[1])
	if err != nil || n == 0 {
		return Heading{}, false
	}
	return Heading{Number: n, Title: cleanTitle(sub[2])}, true
}

// AbbreviatedMatcher matches abbreviated markers like "Ch. 3" and "Chap. 3".
type AbbreviatedMatcher struct{}

var abbrevRe = regexp.MustCompile(`(?i)^ch(?:ap)?\.\s*(\d{1,4})\s*[.:—-]?\s*(.*)$`)

func (m *AbbreviatedMatcher) Name() string { return "abbreviated" }

func (m *AbbreviatedMatcher) Match(line string) (Heading, bool) {
	sub := abbrevRe.FindStringSubmatch(line)
	if sub == nil {
		return Heading{}, false
	}
	n, err := strconv.Atoi(sub[1])
	if err != nil || n == 0 {
		return Heading{}, false
	}
	return Heading{Number: n, Title: cleanTitle(sub[2])}, true
}

// SectionMatcher matches section markers like "§ 4" and "§4. Title".
type SectionMatcher struct{}

var sectionRe = regexp.MustCompile(`^§\s*(\d{1,4})\s*[.:]?\s*(.*)$`)

func (m *SectionMatcher) Name() string { return "section" }

func (m *SectionMatcher) Match(line string) (Heading, bool) {
	sub := sectionRe.FindStringSubmatch(line)
	if sub == nil {
		return Heading{}, false
	}
	n, err := strconv.Atoi(sub[1])
	if err != nil || n == 0 {
		return Heading{}, false
	}
	return Heading{Number: n, Title: cleanTitle(sub[2])}, true
}

// CJKMatcher matches Chinese/Japanese numbered chapters: 第十二章, 第3回,
// full-width digits included.
type CJKMatcher struct{}

var cjkRe = regexp.MustCompile(`^第([〇零一二三四五六七八九十百千0-9０-９]+)[章回節话話部]\s*[.:：]?\s*(.*)$`)

func (m *CJKMatcher) Name() string { return "cjk" }

func (m *CJKMatcher) Match(line string) (Heading, bool) {
	sub := cjkRe.FindStringSubmatch(line)
	if sub == nil {
		return Heading{}, false
	}
	n := cjkNumeral(width.Fold.String(sub[1]))
	if n == 0 {
		return Heading{}, false
	}
	return Heading{Number: n, Title: cleanTitle(sub[2])}, true
}

// RomanMatcher matches "Chapter XII" and bare roman-numeral lines ("XII.").
// Bare numerals must end with a period to reduce false positives on lines
// like "I" in dialogue.
type RomanMatcher struct{}

var (
	romanChapterRe = regexp.MustCompile(`(?i)^chapter\s+([ivxlcdm]{1,10})\b\s*[.:—-]?\s*(.*)$`)
	romanBareRe    = regexp.MustCompile(`^([IVXLCDM]{1,10})\.$`)
)

func (m *RomanMatcher) Name() string { return "roman" }

func (m *RomanMatcher) Match(line string) (Heading, bool) {
	if sub := romanChapterRe.FindStringSubmatch(line); sub != nil {
		if n := romanToInt(strings.ToUpper(sub[1])); n > 0 {
			return Heading{Number: n, Title: cleanTitle(sub[2])}, true
		}
	}
	if sub := romanBareRe.FindStringSubmatch(line); sub != nil {
		if n := romanToInt(sub[1]); n > 0 {
			return Heading{Number: n}, true
		}
	}
	return Heading{}, false
}

// cjkNumeral parses CJK numerals (一, 十二, 二百三十) and plain digit runs.
// Returns 0 when s is not a recognizable numeral.
func cjkNumeral(s string) int {
	digits := map[rune]int{
		'〇': 0, '零': 0, '一': 1, '二': 2, '三': 3, '四': 4,
		'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
	}
	units := map[rune]int{'十': 10, '百': 100, '千': 1000}

	total, current := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			current = current*10 + int(r-'0')
		case digits[r] > 0 || r == '〇' || r == '零':
			current = current*10 + digits[r]
		default:
			u, ok := units[r]
			if !ok {
				return 0
			}
			if current == 0 {
				current = 1
			}
			total += current * u
			current = 0
		}
	}
	return total + current
}

// cleanTitle trims separators and decoration from a heading title.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".:：—–-　")
	return strings.TrimSpace(s)
}
