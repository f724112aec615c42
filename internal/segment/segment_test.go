package segment

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitSingleChunk(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."

	chunks, err := Split(text, 1000)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Errorf("expected index 0, got %d", chunks[0].Index)
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text does not match source")
	}
}

func TestSplitLimitTooSmall(t *testing.T) {
	_, err := Split("some text", 0)
	if !errors.Is(err, ErrLimitTooSmall) {
		t.Fatalf("expected ErrLimitTooSmall, got %v", err)
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	text := "Alpha alpha alpha.\n\nBeta beta beta.\n\nGamma gamma gamma."

	chunks, err := Split(text, 40)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Each chunk should be whole paragraphs, never a mid-sentence cut.
	for _, c := range chunks {
		if !strings.HasSuffix(c.Text, ".") {
			t.Errorf("chunk %d ends mid-sentence: %q", c.Index, c.Text)
		}
	}
}

func TestSplitFallsBackToSentences(t *testing.T) {
	// One long paragraph with no blank lines.
	text := "One sentence here. Another sentence here. A third one here. And a fourth."

	chunks, err := Split(text, 30)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	for _, c := range chunks[:len(chunks)-1] {
		last := c.Text[len(c.Text)-1]
		if last != '.' {
			t.Errorf("chunk %d should end at sentence boundary, got %q", c.Index, c.Text)
		}
	}
}

func TestSplitRoundTrip(t *testing.T) {
	cases := map[string]string{
		"plain":      "The quick brown fox jumps over the lazy dog. " + strings.Repeat("Again and again. ", 40),
		"paragraphs": strings.Repeat("A paragraph of modest length sits here.\n\n", 20),
		"unicode":    strings.Repeat("Война и мир. 戦争と平和。 ", 50),
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			chunks, err := Split(text, 64)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}

			var parts []string
			for i, c := range chunks {
				if c.Index != i {
					t.Fatalf("non-contiguous index: chunk %d has index %d", i, c.Index)
				}
				if n := utf8.RuneCountInString(c.Text); n > 64 {
					t.Errorf("chunk %d exceeds limit: %d runes", i, n)
				}
				parts = append(parts, c.Text)
			}

			got := strings.Fields(strings.Join(parts, " "))
			want := strings.Fields(text)
			if len(got) != len(want) {
				t.Fatalf("word count mismatch: got %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("word %d mismatch: got %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestSplitOffsetsPointIntoSource(t *testing.T) {
	text := strings.Repeat("Некоторый текст для проверки смещений. ", 30)

	chunks, err := Split(text, 50)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	prev := -1
	for _, c := range chunks {
		if c.Offset <= prev {
			t.Errorf("offsets not strictly increasing at chunk %d", c.Index)
		}
		prev = c.Offset
		if !strings.HasPrefix(text[c.Offset:], c.Text) {
			t.Errorf("chunk %d offset %d does not point at its text", c.Index, c.Offset)
		}
	}
}

func TestSplitNeverCutsMultiByteRunes(t *testing.T) {
	// No spaces at all, forcing hard cuts in CJK text.
	text := strings.Repeat("戦争と平和物語", 40)

	chunks, err := Split(text, 10)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	for _, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Fatalf("chunk %d contains an invalid UTF-8 sequence", c.Index)
		}
	}
}
