package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khata-ledger/khata/internal/report"
)

func newViewCmd(rc *rootConfig) *cobra.Command {
	var (
		currency string
		kind     string
		search   string
	)
	cmd := &cobra.Command{
		Use:   "view <party-id>",
		Short: "Print a party's ledger with running balances and totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rc.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if currency == "" {
				currency = s.cfg.Currency
			}
			view, err := s.book.LedgerView(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("ledger view: %w", err)
			}
			q, err := report.ParseQuery(func(key string) string {
				switch key {
				case "kind":
					return kind
				case "q":
					return search
				}
				return ""
			})
			if err != nil {
				return err
			}
			q.Size = 0

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n%s\n\n", view.Party.Name, view.Party.Number, view.Party.Address)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "DATE\tTYPE\tDESCRIPTION\tAMOUNT\tBALANCE\t")
			for _, p := range report.Apply(view.Postings, q).Postings {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
					p.CreatedAt.Format(report.CSVTimeLayout), p.Kind, p.Description,
					p.Amount.Display(currency), p.BalanceAfter.Display(currency))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, strings.Repeat("-", 40))
			fmt.Fprintf(out, "credit %s  debit %s  net %s\n",
				view.TotalCredit.Display(currency), view.TotalDebit.Display(currency), view.NetBalance.Display(currency))
			return nil
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 code used for display (default from CURRENCY)")
	cmd.Flags().StringVar(&kind, "kind", "", "only show credit or debit entries")
	cmd.Flags().StringVar(&search, "q", "", "only show entries whose description contains this text")
	return cmd
}
