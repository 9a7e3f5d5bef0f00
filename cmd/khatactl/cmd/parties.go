package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khata-ledger/khata/internal/party"
)

func newPartiesCmd(rc *rootConfig) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "parties",
		Short: "List parties, optionally filtered by name or number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rc.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			parties, err := s.parties.List(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("list parties: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tNUMBER\tADDRESS")
			for _, p := range parties {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Number, p.Address)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&query, "q", "", "case-insensitive search over name and number")
	cmd.AddCommand(newPartyCreateCmd(rc))
	return cmd
}

func newPartyCreateCmd(rc *rootConfig) *cobra.Command {
	var f party.Fields
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a party",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rc.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.parties.Create(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "party name")
	cmd.Flags().StringVar(&f.Number, "number", "", "contact number, unique across parties")
	cmd.Flags().StringVar(&f.Address, "address", "", "postal address")
	return cmd
}
