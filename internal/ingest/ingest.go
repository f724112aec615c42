// Package ingest loads source texts and gives them a stable identity.
// The book ID is derived from the normalized content, so re-ingesting the
// same text always resolves to the same persisted book and its state.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Source is a loaded, normalized source text.
type Source struct {
	ID     string
	Title  string
	Author string
	Path   string
	Text   string
}

// Load reads and normalizes a source file. An empty title is derived from
// the file name.
func Load(path, title, author string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	text := Normalize(string(data))
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("source file %s is empty", path)
	}

	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return &Source{
		ID:     BookID(title, text),
		Title:  title,
		Author: author,
		Path:   path,
		Text:   text,
	}, nil
}

// Normalize canonicalizes a raw source text: strips the UTF-8 BOM,
// converts Windows and old Mac line endings to LF, and applies Unicode
// NFC so visually identical texts hash identically.
func Normalize(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}

// BookID derives the stable book identifier from title and normalized
// content: a title slug plus a short content hash.
func BookID(title, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s-%s", slugify(title), hex.EncodeToString(sum[:])[:12])
}

// slugify lowercases and reduces a title to hyphen-separated ASCII
// alphanumerics. Non-ASCII titles fall back to "book".
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || unicode.IsDigit(r) && r < 128:
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "book"
	}
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	return slug
}
