package report

import (
	"encoding/csv"
	"io"

	"github.com/khata-ledger/khata/internal/ledger"
)

// CSVTimeLayout formats the date column.
const CSVTimeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"date", "type", "description", "amount", "balance"}

// WriteCSV writes one row per posting after a header row. Amounts use the
// locale-stable two-digit form.
func WriteCSV(w io.Writer, postings []ledger.Posting) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range postings {
		err := cw.Write([]string{
			p.CreatedAt.UTC().Format(CSVTimeLayout),
			string(p.Kind),
			p.Description,
			p.Amount.String(),
			p.BalanceAfter.String(),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
