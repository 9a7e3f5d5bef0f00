package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/khata-ledger/khata/internal/report"
)

func newExportCmd(rc *rootConfig) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <party-id>",
		Short: "Write a party's ledger as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rc.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			view, err := s.book.LedgerView(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("ledger view: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := report.WriteCSV(w, view.Postings); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}
