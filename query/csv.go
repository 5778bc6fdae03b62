package query

import (
	"encoding/csv"
	"io"

	"github.com/finflow/cashflow-engine/ledger"
)

// ExportCSV implements the supplemented export_transactions_to_csv: one
// line per row (date_payed, description, account, category, budget,
// status, amount), optionally followed by the running balance column.
func ExportCSV(w io.Writer, rows []Row, includeBalance bool) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"date_payed", "description", "account", "category", "budget", "status", "amount"}
	if includeBalance {
		header = append(header, "balance")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		tx := r.Transaction
		record := []string{
			tx.DatePayed.String(),
			tx.Description,
			tx.Account,
			tx.Category,
			tx.Budget,
			string(tx.Status),
			tx.Amount.String(),
		}
		if includeBalance {
			record = append(record, r.Balance.String())
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return cw.Error()
}
