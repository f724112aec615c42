package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "line one\r\nline two\r\n", "line one\nline two\n"},
		{"old mac", "line one\rline two", "line one\nline two"},
		{"bom stripped", "\uFEFFtext", "text"},
		{"nfc composition", "étude", "étude"},
		{"already clean", "plain\ntext\n", "plain\ntext\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestBookIDStable(t *testing.T) {
	a := BookID("My Novel", "some content")
	b := BookID("My Novel", "some content")
	if a != b {
		t.Errorf("same inputs gave different IDs: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "my-novel-") {
		t.Errorf("ID = %q, want my-novel- prefix", a)
	}

	c := BookID("My Novel", "different content")
	if a == c {
		t.Error("different content should give different IDs")
	}
}

func TestBookIDDecomposedEquivalence(t *testing.T) {
	// Identity must survive a round trip through NFD-producing editors.
	a := BookID("T", Normalize("étude"))
	b := BookID("T", Normalize("étude"))
	if a != b {
		t.Errorf("NFC-equivalent texts gave different IDs: %q vs %q", a, b)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My Great Novel", "my-great-novel"},
		{"  spaced   out  ", "spaced-out"},
		{"夜の物語", "book"},
		{"Vol. 2: Return!", "vol-2-return"},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "novel.txt")
	if err := os.WriteFile(path, []byte("Chapter 1\r\n\r\nIt begins.\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Load(path, "", "Author Name")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if src.Title != "novel" {
		t.Errorf("title = %q, want derived %q", src.Title, "novel")
	}
	if strings.Contains(src.Text, "\r") {
		t.Error("line endings should be normalized")
	}
	if src.ID == "" || src.Author != "Author Name" {
		t.Errorf("source: %+v", src)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, []byte("   \n  "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, "t", ""); err == nil {
		t.Fatal("expected error for empty source")
	}
}
