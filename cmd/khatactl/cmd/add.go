package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khata-ledger/khata/internal/book"
)

func newAddCmd(rc *rootConfig) *cobra.Command {
	var in book.EntryInput
	cmd := &cobra.Command{
		Use:   "add <party-id>",
		Short: "Record a credit or debit for a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rc.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			entry, err := s.book.AddEntry(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", entry.ID, entry.Kind, entry.Amount)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Kind, "kind", "", "credit or debit")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "positive amount with at most two decimals")
	cmd.Flags().StringVar(&in.Description, "description", "", "what the entry is for")
	return cmd
}
