package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/ingest"
	"github.com/jackzampolin/folio/internal/store"
)

var (
	translateTitle  string
	translateAuthor string
)

var translateCmd = &cobra.Command{
	Use:   "translate <source-file>",
	Short: "Ingest a source text and translate it",
	Long: `Ingest a plain-text novel, segment it into chunks, and translate it
with the configured provider. Re-running on the same text resumes from
persisted state instead of starting over.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := ingest.Load(args[0], translateTitle, translateAuthor)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		book := &store.Book{
			ID:         src.ID,
			Title:      src.Title,
			Author:     src.Author,
			SourceLang: a.cfg.Translate.SourceLang,
			TargetLang: a.cfg.Translate.TargetLang,
		}

		logger.Info("starting translation",
			"book", book.ID,
			"title", book.Title,
			"workers", a.cfg.Translate.Workers)

		if err := a.pipeline.Start(cmd.Context(), book, src.Text); err != nil {
			return err
		}

		prog, err := a.store.BookProgress(cmd.Context(), book.ID)
		if err != nil {
			return err
		}
		printProgress(prog)
		if prog.Failed > 0 {
			return fmt.Errorf("%d chunks failed; run 'folio reset %s' to retry them", prog.Failed, book.ID)
		}
		return nil
	},
}

func init() {
	translateCmd.Flags().StringVar(&translateTitle, "title", "", "book title (default: derived from file name)")
	translateCmd.Flags().StringVar(&translateAuthor, "author", "", "book author")
}
