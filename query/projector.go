/*
Package query implements the query projector (C7): read-only views over
the transaction ledger. Nothing here mutates the store — every function
takes an already-loaded slice of transactions (or loads one internally
for convenience) and returns an annotated projection.

VIEWS (spec.md §4.6):
  Running balance          - RunningBalance
  Monthly minimum          - MonthlyMinimums
  Month-over-month delta   - MonthlyMinimums (Delta field)
  Credit-card summary mode - Summarize

Plus two supplemented reports drawn from the original CLI's reporting
surface: ExportCSV and BudgetStatus.
*/
package query

import (
	"context"
	"sort"

	"github.com/finflow/cashflow-engine/ledger"
)

// Row is one projected line: a transaction (real or synthetic, in
// credit-card summary mode) annotated with its running balance.
type Row struct {
	Transaction ledger.Transaction
	Balance     ledger.Money
}

// RunningBalance implements spec.md §4.6's running balance: transactions
// sorted by (date_payed, id) ascending, accumulating amount over every
// row whose status != Pending.
func RunningBalance(txs []ledger.Transaction) []Row {
	sorted := sortedByPayedThenID(txs)
	rows := make([]Row, 0, len(sorted))
	running := ledger.Zero()
	for _, tx := range sorted {
		if tx.Status.ContributesToBalance() {
			running = running.Add(tx.Amount)
		}
		rows = append(rows, Row{Transaction: tx, Balance: running})
	}
	return rows
}

func sortedByPayedThenID(txs []ledger.Transaction) []ledger.Transaction {
	sorted := make([]ledger.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DatePayed.Equal(sorted[j].DatePayed) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].DatePayed.Before(sorted[j].DatePayed)
	})
	return sorted
}

// MonthlyMinimum is the lowest running balance observed within a
// calendar month, plus its delta from the previous month's minimum.
type MonthlyMinimum struct {
	Month   ledger.Date // first of month
	Minimum ledger.Money
	Delta   ledger.Money // Minimum - previous month's Minimum; zero for the first month
}

// MonthlyMinimums implements spec.md §4.6's monthly minimum and
// month-over-month delta, computed from an already-projected Row slice
// (see RunningBalance).
func MonthlyMinimums(rows []Row) []MonthlyMinimum {
	var out []MonthlyMinimum
	var curMonth ledger.Date
	var curMin ledger.Money
	started := false

	flush := func() {
		if !started {
			return
		}
		delta := ledger.Zero()
		if n := len(out); n > 0 {
			delta = curMin.Sub(out[n-1].Minimum)
		}
		out = append(out, MonthlyMinimum{Month: curMonth, Minimum: curMin, Delta: delta})
	}

	for _, r := range rows {
		month := r.Transaction.DatePayed.MonthOf()
		if !started || !month.Equal(curMonth) {
			flush()
			curMonth = month
			curMin = r.Balance
			started = true
			continue
		}
		curMin = curMin.Min(r.Balance)
	}
	flush()
	return out
}

// Summarize implements spec.md §4.6's credit-card summary mode: rows
// belonging to credit-card accounts are grouped by (account, date_payed)
// and collapsed into one synthetic "<account> Payment" row; cash rows
// pass through unchanged. includePlanning controls whether Planning rows
// of credit-card accounts are folded in or passed through individually.
func Summarize(rows []Row, accounts map[string]ledger.Account, includePlanning bool) []Row {
	type groupKey struct {
		account string
		payed   string
	}
	groups := make(map[groupKey][]Row)
	var order []groupKey
	var out []Row

	for _, r := range rows {
		acct, ok := accounts[r.Transaction.Account]
		if !ok || acct.Kind != ledger.AccountCreditCard {
			out = append(out, r)
			continue
		}
		if r.Transaction.Status == ledger.StatusPlanning && !includePlanning {
			out = append(out, r)
			continue
		}
		key := groupKey{account: acct.ID, payed: r.Transaction.DatePayed.String()}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	for _, key := range order {
		members := groups[key]
		sum := ledger.Zero()
		var statuses []ledger.Status
		last := members[len(members)-1]
		for _, m := range members {
			sum = sum.Add(m.Transaction.Amount)
			statuses = append(statuses, m.Transaction.Status)
		}
		synthetic := ledger.Transaction{
			DatePayed:   last.Transaction.DatePayed,
			Description: key.account + " Payment",
			Account:     key.account,
			Amount:      sum,
			Status:      ledger.StrongestStatus(statuses),
		}
		out = append(out, Row{Transaction: synthetic, Balance: last.Balance})
	}

	return sortedRows(out)
}

func sortedRows(rows []Row) []Row {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Transaction.DatePayed.Before(rows[j].Transaction.DatePayed)
	})
	return rows
}

// BudgetSnapshot is one line of the supplemented get_all_budgets_with_status
// report: a budget subscription annotated with whether its current-month
// allocation is fully capped.
type BudgetSnapshot struct {
	Budget     ledger.Subscription
	Month      ledger.Date
	Allocation ledger.Money // the allocation row's signed amount, or -monthly_amount if none exists yet
	IsCapped   bool         // spent >= entitlement, i.e. the allocation has reached zero
}

// BudgetStatus implements the supplemented get_all_budgets_with_status
// report: every budget subscription active in month, annotated with its
// allocation and cap state.
func BudgetStatus(ctx context.Context, store ledger.Store, month ledger.Date) ([]BudgetSnapshot, error) {
	month = month.MonthOf()
	subs, err := store.ListActiveSubscriptions(ctx, month, month)
	if err != nil {
		return nil, err
	}

	var out []BudgetSnapshot
	for _, sub := range subs {
		if !sub.IsBudget {
			continue
		}
		alloc, err := store.GetBudgetAllocation(ctx, sub.ID, month)
		amount := sub.MonthlyAmount.Neg()
		if err == nil {
			amount = alloc.Amount
		} else if !ledger.IsNotFound(err) {
			return nil, err
		}
		out = append(out, BudgetSnapshot{
			Budget:     sub,
			Month:      month,
			Allocation: amount,
			IsCapped:   !amount.IsNegative(),
		})
	}
	return out, nil
}
