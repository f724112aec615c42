package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/usage"
)

var statusCmd = &cobra.Command{
	Use:   "status [book-id]",
	Short: "Show translation progress and spend",
	Long: `Without arguments, list all books. With a book ID, show its chunk
state breakdown, failed chunk detail, and usage totals.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			return listBooks(cmd, a)
		}
		return bookStatus(cmd, a, args[0])
	},
}

func listBooks(cmd *cobra.Command, a *app) error {
	books, err := a.store.ListBooks(cmd.Context())
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Println("no books")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCOST")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t$%.4f\n", b.ID, b.Title, b.Status, b.CostUSD)
	}
	return w.Flush()
}

func bookStatus(cmd *cobra.Command, a *app, bookID string) error {
	prog, err := a.store.BookProgress(cmd.Context(), bookID)
	if err != nil {
		return err
	}
	printProgress(prog)

	recs, err := a.store.UsageForBook(cmd.Context(), bookID)
	if err != nil {
		return err
	}
	sum := usage.Summarize(recs)
	fmt.Printf("\ncalls: %d (%d failed)\n", sum.Calls, sum.Failures)
	fmt.Printf("tokens: %d prompt, %d completion\n", sum.PromptTokens, sum.CompletionTokens)
	fmt.Printf("cost: $%.4f\n", sum.CostUSD)
	return nil
}

func printProgress(p *store.Progress) {
	fmt.Printf("%s: %s\n", p.BookID, p.Status)
	fmt.Printf("chunks: %d total, %d done, %d pending, %d in flight, %d failed\n",
		p.Total, p.Done, p.Pending, p.InFlight, p.Failed)
	for _, f := range p.FailedChunks {
		fmt.Printf("  chunk %d failed: %s\n", f.Seq, f.Reason)
	}
}
