package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/folio/internal/assemble"
)

var (
	exportDir     string
	exportPartial bool
)

// exportManifest is the book-level metadata written alongside the chapter
// files for downstream packaging.
type exportManifest struct {
	BookID     string          `yaml:"book_id"`
	Title      string          `yaml:"title"`
	Author     string          `yaml:"author,omitempty"`
	SourceLang string          `yaml:"source_lang,omitempty"`
	TargetLang string          `yaml:"target_lang,omitempty"`
	CostUSD    float64         `yaml:"cost_usd"`
	ExportedAt time.Time       `yaml:"exported_at"`
	Partial    bool            `yaml:"partial,omitempty"`
	Missing    []int           `yaml:"missing_chunks,omitempty"`
	Chapters   []exportChapter `yaml:"chapters"`
}

type exportChapter struct {
	Number int    `yaml:"number"`
	Title  string `yaml:"title,omitempty"`
	File   string `yaml:"file"`
}

var exportCmd = &cobra.Command{
	Use:   "export <book-id>",
	Short: "Assemble a translated book into chapter files",
	Long: `Assemble a book's translated chunks into per-chapter text files plus a
YAML manifest. Fails on incomplete books unless --partial is set, in
which case gaps are marked in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		asm := assemble.New(assemble.Config{
			Store:        a.store,
			AllowPartial: exportPartial,
			Logger:       logger,
		})
		res, err := asm.Assemble(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		dir := exportDir
		if dir == "" {
			dir = res.Book.ID
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}

		manifest := exportManifest{
			BookID:     res.Book.ID,
			Title:      res.Book.Title,
			Author:     res.Book.Author,
			SourceLang: res.Book.SourceLang,
			TargetLang: res.Book.TargetLang,
			CostUSD:    res.Book.CostUSD,
			ExportedAt: time.Now().UTC(),
			Partial:    len(res.MissingSeqs) > 0,
			Missing:    res.MissingSeqs,
		}

		for _, ch := range res.Chapters {
			name := fmt.Sprintf("chapter-%03d.txt", ch.Number)
			if err := os.WriteFile(filepath.Join(dir, name), []byte(ch.Text+"\n"), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", name, err)
			}
			manifest.Chapters = append(manifest.Chapters, exportChapter{
				Number: ch.Number,
				Title:  ch.Title,
				File:   name,
			})
		}

		data, err := yaml.Marshal(manifest)
		if err != nil {
			return fmt.Errorf("failed to marshal manifest: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), data, 0o644); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}

		fmt.Printf("exported %d chapters to %s\n", len(res.Chapters), dir)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default: ./<book-id>)")
	exportCmd.Flags().BoolVar(&exportPartial, "partial", false, "export incomplete books with gap markers")
}
