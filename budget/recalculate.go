/*
Package budget implements the budget recalculator (C4) — the central
invariant of the engine: a budget-month's allocation row is always the
negative, capped distance between what the envelope would otherwise hold
and what was actually spent.

INVARIANT (spec.md §4.3):
  Let A = budget.monthly_amount (positive).
  Let S = sum(|tx.amount|) over non-allocation, non-Pending transactions
          linked to the budget in the month.
  allocation.amount = -A + min(S, A)

This is a pure function of (A, S); Recalculate's only job is to read A and
S from the store, find or create the allocation row, and write the result.
It never inspects the ledger beyond what §4.3 requires — callers (the
transaction controller, the forecast scheduler) are responsible for
invoking it at the right (budget_id, month) pairs.
*/
package budget

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/finflow/cashflow-engine/ledger"
)

// Pair identifies one (budget, month) recalculation target.
type Pair struct {
	BudgetID string
	Month    ledger.Date // must already be truncated to the first of month
}

// Recalculate implements spec.md §4.3's recalculate(budget_id, month).
// If the budget id does not resolve, or does not name a budget
// subscription, this is a no-op (logged) rather than an error — per
// spec.md's stated failure condition.
func Recalculate(ctx context.Context, store ledger.Store, budgetID string, month ledger.Date) error {
	month = month.MonthOf()

	sub, err := store.GetSubscription(ctx, budgetID)
	if err != nil {
		if ledger.IsNotFound(err) {
			log.Ctx(ctx).Warn().Str("budget_id", budgetID).Msg("recalculate: budget subscription not found, skipping")
			return nil
		}
		return err
	}
	if !sub.IsBudget {
		log.Ctx(ctx).Warn().Str("budget_id", budgetID).Msg("recalculate: subscription is not a budget, skipping")
		return nil
	}

	spent, err := store.SumAmountsLinkedToBudget(ctx, budgetID, month)
	if err != nil {
		return err
	}

	capped := sub.MonthlyAmount.Min(spent)
	target := sub.MonthlyAmount.Neg().Add(capped) // -A + min(S, A)

	alloc, err := store.GetBudgetAllocation(ctx, budgetID, month)
	switch {
	case err == nil:
		// fall through to update below
	case ledger.IsNotFound(err):
		alloc, err = createAllocation(ctx, store, sub, month)
		if err != nil {
			return err
		}
	default:
		return err
	}

	if alloc.Amount.Value.Equal(target.Value) {
		return nil
	}

	newAmount := target
	return store.UpdateTransaction(ctx, alloc.ID, ledger.TransactionUpdate{Amount: &newAmount})
}

// RecalculateAll is a convenience for healing several (budget, month)
// pairs after a single controller operation (spec.md §4.4's "heal" step).
// Duplicate pairs are only recalculated once.
func RecalculateAll(ctx context.Context, store ledger.Store, pairs []Pair) error {
	seen := make(map[Pair]bool, len(pairs))
	var firstErr error
	for _, p := range pairs {
		if p.BudgetID == "" || seen[p] {
			continue
		}
		seen[p] = true
		if err := Recalculate(ctx, store, p.BudgetID, p.Month); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func createAllocation(ctx context.Context, store ledger.Store, sub ledger.Subscription, month ledger.Date) (ledger.Transaction, error) {
	account, err := store.GetAccount(ctx, sub.PaymentAccountID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	dateCreated := month // "dated the first of the month", spec.md §4.4.1
	datePayed := ledger.SimulatePaymentDate(account, dateCreated, 0)

	row := ledger.Transaction{
		DateCreated: dateCreated,
		DatePayed:   datePayed,
		Description: sub.Name,
		Account:     account.ID,
		Amount:      sub.MonthlyAmount.Neg(),
		Category:    sub.Category,
		Budget:      sub.ID,
		Status:      ledger.StatusForecast,
		OriginID:    sub.ID,
	}

	inserted, err := store.InsertTransactions(ctx, []ledger.Transaction{row})
	if err != nil {
		return ledger.Transaction{}, err
	}
	if len(inserted) != 1 {
		return ledger.Transaction{}, &ledger.InvariantViolationError{Reason: "allocation insert did not return exactly one row"}
	}
	return inserted[0], nil
}

// AssertSingleAllocation is a defensive check callers (tests, store
// implementations) can use to confirm spec.md invariant #3: at most one
// allocation row per (budget_id, month).
func AssertSingleAllocation(ctx context.Context, store ledger.Store, budgetID string, month ledger.Date) error {
	_, err := store.GetBudgetAllocation(ctx, budgetID, month)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return err
	}
	return nil
}
