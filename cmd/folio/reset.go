package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <book-id>",
	Short: "Return a book's failed chunks to pending",
	Long: `Failed chunks stay failed until explicitly reset. Reset returns them
to pending so a following 'folio resume' retries them with a fresh
attempt budget.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.ResetFailed(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("reset %d failed chunks\n", n)
		return nil
	},
}
