package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <book-id>",
	Short: "Resume translating a book's pending chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.pipeline.Resume(cmd.Context(), args[0]); err != nil {
			return err
		}

		prog, err := a.store.BookProgress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printProgress(prog)
		if prog.Failed > 0 {
			return fmt.Errorf("%d chunks failed; run 'folio reset %s' to retry them", prog.Failed, args[0])
		}
		return nil
	},
}
