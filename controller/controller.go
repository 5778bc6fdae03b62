/*
Package controller implements the transaction controller (C5) — the
collect/mutate/heal cycle every mutating operation follows (spec.md
§4.4):

  1. collect  — load the rows and budget pairs a mutation touches
  2. mutate   — insert/update/delete the rows themselves
  3. heal     — recalculate every (budget, month) pair collected, so the
                budget invariant (C4) never observes a stale allocation

Every exported method here is one spec.md §4.4 operation. None of them
reach into the store directly for budget math — they all funnel through
budget.Recalculate so the formula lives in exactly one place.
*/
package controller

import (
	"context"
	"strconv"

	"github.com/finflow/cashflow-engine/budget"
	"github.com/finflow/cashflow-engine/forecast"
	"github.com/finflow/cashflow-engine/ledger"
)

// epsilon is the statement-fix no-op threshold (spec.md §4.4.7).
var epsilon = ledger.NewMoney(0.01)

// Controller wires a Store to the budget recalculator and is the
// entry point the API layer drives.
type Controller struct {
	Store ledger.Store
}

func New(store ledger.Store) *Controller {
	return &Controller{Store: store}
}

// withTx runs fn inside a transaction when the underlying store supports
// it (ledger.TxStore); otherwise it runs fn against the store directly,
// best-effort, per spec.md §5.
func (c *Controller) withTx(ctx context.Context, fn func(s ledger.Store) error) error {
	if tx, ok := c.Store.(ledger.TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(c.Store)
}

func budgetPair(budgetID string, month ledger.Date) []budget.Pair {
	if budgetID == "" {
		return nil
	}
	return []budget.Pair{{BudgetID: budgetID, Month: month.MonthOf()}}
}

// isSubscriptionID returns a predicate ClassifyGroup uses to recognize a
// Subscription group: originID names a live subscription row.
func isSubscriptionID(ctx context.Context, s ledger.Store) func(string) bool {
	return func(id string) bool {
		_, err := s.GetSubscription(ctx, id)
		return err == nil
	}
}

// snapshotGroup loads tx and every sibling sharing its origin (just tx
// itself when ungrouped) and classifies the group, per spec.md §4.4.5
// step 1.
func (c *Controller) snapshotGroup(ctx context.Context, s ledger.Store, id int64) (ledger.Transaction, []ledger.Transaction, ledger.GroupKind, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return ledger.Transaction{}, nil, "", err
	}
	if tx.OriginID == "" {
		return tx, []ledger.Transaction{tx}, ledger.GroupSimple, nil
	}
	siblings, err := s.ListByOrigin(ctx, tx.OriginID)
	if err != nil {
		return ledger.Transaction{}, nil, "", err
	}
	kind := ledger.ClassifyGroup(tx.OriginID, siblings, isSubscriptionID(ctx, s))
	return tx, siblings, kind, nil
}

// disbandGroup deletes every sibling row directly (bypassing §4.4.3's
// recalc) and recalculates the (budget, month) pairs they touched,
// returning the budget to its pre-group state (spec.md §4.4.5 steps 2-4).
func (c *Controller) disbandGroup(ctx context.Context, s ledger.Store, siblings []ledger.Transaction) error {
	if len(siblings) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(siblings))
	var pairs []budget.Pair
	for _, tx := range siblings {
		ids = append(ids, tx.ID)
		pairs = append(pairs, budgetPair(tx.Budget, tx.DateCreated)...)
	}
	if err := s.DeleteTransactions(ctx, ids); err != nil {
		return err
	}
	return budget.RecalculateAll(ctx, s, pairs)
}

// ---------------------------------------------------------------------
// Add (spec.md §4.4.1)
// ---------------------------------------------------------------------

// AddSimple builds and inserts a single transaction, healing its budget
// month (creating the allocation row if this is the first expense
// linked to that budget this month).
func (c *Controller) AddSimple(ctx context.Context, req ledger.SimpleRequest) ([]ledger.Transaction, error) {
	account, err := c.Store.GetAccount(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	rows, err := ledger.BuildSingle(req, account)
	if err != nil {
		return nil, err
	}
	return c.insertAndHeal(ctx, rows)
}

// AddInstallment builds and inserts an installment series.
func (c *Controller) AddInstallment(ctx context.Context, req ledger.InstallmentRequest) ([]ledger.Transaction, error) {
	account, err := c.Store.GetAccount(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	rows, err := ledger.BuildInstallment(req, account)
	if err != nil {
		return nil, err
	}
	return c.insertAndHeal(ctx, rows)
}

// AddSplit builds and inserts a split transaction.
func (c *Controller) AddSplit(ctx context.Context, req ledger.SplitRequest) ([]ledger.Transaction, error) {
	account, err := c.Store.GetAccount(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	rows, err := ledger.BuildSplit(req, account)
	if err != nil {
		return nil, err
	}
	return c.insertAndHeal(ctx, rows)
}

func (c *Controller) insertAndHeal(ctx context.Context, rows []ledger.Transaction) ([]ledger.Transaction, error) {
	var inserted []ledger.Transaction
	err := c.withTx(ctx, func(s ledger.Store) error {
		var err error
		inserted, err = s.InsertTransactions(ctx, rows)
		if err != nil {
			return err
		}
		var pairs []budget.Pair
		for _, tx := range inserted {
			pairs = append(pairs, budgetPair(tx.Budget, tx.DateCreated)...)
		}
		return budget.RecalculateAll(ctx, s, pairs)
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// ---------------------------------------------------------------------
// Edit (spec.md §4.4.2)
// ---------------------------------------------------------------------

// EditFields applies a non-date partial update to a single transaction and
// heals both its old and its new (budget, month) pair, so a budget change
// releases the spend from the old envelope and charges it to the new one.
func (c *Controller) EditFields(ctx context.Context, id int64, update ledger.TransactionUpdate) (ledger.Transaction, error) {
	var result ledger.Transaction
	err := c.withTx(ctx, func(s ledger.Store) error {
		before, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := s.UpdateTransaction(ctx, id, update); err != nil {
			return err
		}
		result, err = s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		var pairs []budget.Pair
		pairs = append(pairs, budgetPair(before.Budget, before.DateCreated)...)
		pairs = append(pairs, budgetPair(result.Budget, result.DateCreated)...)
		return budget.RecalculateAll(ctx, s, pairs)
	})
	return result, err
}

// ChangeDate implements the delete-and-recreate rule for a date_created
// change (spec.md §4.4.2, §4.4.5): since date_payed is derived from
// date_created through the billing cycle, a date change is modeled as
// disbanding the whole group and rebuilding every sibling shifted by the
// same number of days, so an installment's date-change moves every
// installment's payment date together. Forbidden on a Subscription group.
func (c *Controller) ChangeDate(ctx context.Context, id int64, newDateCreated ledger.Date) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	err := c.withTx(ctx, func(s ledger.Store) error {
		tx, siblings, kind, err := c.snapshotGroup(ctx, s, id)
		if err != nil {
			return err
		}
		if kind == ledger.GroupSubscription {
			return &ledger.InvalidRequestError{Reason: "cannot change the date of a subscription-generated row"}
		}

		deltaDays := ledger.DaysBetween(tx.DateCreated, newDateCreated)
		if err := c.disbandGroup(ctx, s, siblings); err != nil {
			return err
		}

		replacements := make([]ledger.Transaction, len(siblings))
		for i, sib := range siblings {
			account, err := s.GetAccount(ctx, sib.Account)
			if err != nil {
				return err
			}
			replacement := sib
			replacement.ID = 0
			replacement.DateCreated = sib.DateCreated.AddDays(deltaDays)
			replacement.DatePayed = ledger.SimulatePaymentDate(account, replacement.DateCreated, 0)
			replacements[i] = replacement
		}

		inserted, err := s.InsertTransactions(ctx, replacements)
		if err != nil {
			return err
		}
		result = inserted

		var pairs []budget.Pair
		for _, r := range inserted {
			pairs = append(pairs, budgetPair(r.Budget, r.DateCreated)...)
		}
		return budget.RecalculateAll(ctx, s, pairs)
	})
	return result, err
}

// Convert implements spec.md §4.4.5's convert (type-change) operation:
// disband the group containing id and rebuild it as req.Kind. Forbidden on
// a Subscription group.
func (c *Controller) Convert(ctx context.Context, id int64, req ledger.ConvertRequest) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	err := c.withTx(ctx, func(s ledger.Store) error {
		tx, siblings, kind, err := c.snapshotGroup(ctx, s, id)
		if err != nil {
			return err
		}
		if kind == ledger.GroupSubscription {
			return &ledger.InvalidRequestError{Reason: "cannot convert a subscription-generated group"}
		}

		account, err := s.GetAccount(ctx, tx.Account)
		if err != nil {
			return err
		}
		if err := c.disbandGroup(ctx, s, siblings); err != nil {
			return err
		}

		rows, err := ledger.BuildFromConvert(req, account)
		if err != nil {
			return err
		}
		inserted, err := s.InsertTransactions(ctx, rows)
		if err != nil {
			return err
		}
		result = inserted

		var pairs []budget.Pair
		for _, r := range inserted {
			pairs = append(pairs, budgetPair(r.Budget, r.DateCreated)...)
		}
		return budget.RecalculateAll(ctx, s, pairs)
	})
	return result, err
}

// ---------------------------------------------------------------------
// Delete (spec.md §4.4.3)
// ---------------------------------------------------------------------

// Delete removes one or more transactions (a whole group when deleting
// by origin) and heals every budget month they touched. Allocation rows
// are never user-deletable; callers should not pass their IDs here, but
// as a defensive measure this refuses to delete an IsAllocationRow row.
func (c *Controller) Delete(ctx context.Context, ids []int64) error {
	return c.withTx(ctx, func(s ledger.Store) error {
		var pairs []budget.Pair
		for _, id := range ids {
			tx, err := s.GetTransaction(ctx, id)
			if err != nil {
				return err
			}
			if tx.IsAllocationRow() {
				return &ledger.InvalidRequestError{Reason: "allocation rows cannot be deleted directly"}
			}
			pairs = append(pairs, budgetPair(tx.Budget, tx.DateCreated)...)
		}
		if err := s.DeleteTransactions(ctx, ids); err != nil {
			return err
		}
		return budget.RecalculateAll(ctx, s, pairs)
	})
}

// DeleteGroup deletes every transaction sharing originID. Like Delete, it
// refuses a group that contains allocation rows.
func (c *Controller) DeleteGroup(ctx context.Context, originID string) error {
	return c.withTx(ctx, func(s ledger.Store) error {
		siblings, err := s.ListByOrigin(ctx, originID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(siblings))
		var pairs []budget.Pair
		for _, tx := range siblings {
			if tx.IsAllocationRow() {
				return &ledger.InvalidRequestError{Reason: "allocation rows cannot be deleted directly"}
			}
			ids = append(ids, tx.ID)
			pairs = append(pairs, budgetPair(tx.Budget, tx.DateCreated)...)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := s.DeleteTransactions(ctx, ids); err != nil {
			return err
		}
		return budget.RecalculateAll(ctx, s, pairs)
	})
}

// ---------------------------------------------------------------------
// Clear / commit (spec.md §4.4.4)
// ---------------------------------------------------------------------

// Commit transitions a Pending or Planning row to Committed and heals
// its budget month (Pending rows join the budget spend total for the
// first time on commit).
func (c *Controller) Commit(ctx context.Context, id int64) (ledger.Transaction, error) {
	committed := ledger.StatusCommitted
	return c.EditFields(ctx, id, ledger.TransactionUpdate{Status: &committed})
}

// ---------------------------------------------------------------------
// Budget mutation (spec.md §4.4.6)
// ---------------------------------------------------------------------

// ChangeBudgetAmount updates a budget subscription's monthly_amount and
// wipes and regenerates every allocation row from effectiveDate forward
// (via the Forecast Scheduler, so regenerated months get pre-seeded
// against any committed future spend), so past months keep their
// already-settled envelopes and only the future reflects the new amount.
// retroactive additionally wipes and regenerates every pre-effective-month
// allocation, for correcting a past amount rather than changing it going
// forward (spec.md §4.4.6).
func (c *Controller) ChangeBudgetAmount(ctx context.Context, budgetID string, newAmount ledger.Money, effectiveDate ledger.Date, retroactive bool) error {
	effectiveMonth := effectiveDate.MonthOf()
	return c.withTx(ctx, func(s ledger.Store) error {
		if err := s.UpdateSubscription(ctx, budgetID, ledger.SubscriptionUpdate{MonthlyAmount: &newAmount}); err != nil {
			return err
		}

		if retroactive {
			sub, err := s.GetSubscription(ctx, budgetID)
			if err != nil {
				return err
			}
			startMonth := sub.StartDate.MonthOf()
			priorEnd := effectiveMonth.AddMonths(-1)
			if !startMonth.After(priorEnd) {
				if err := s.DeleteAllocationsFrom(ctx, budgetID, startMonth); err != nil {
					return err
				}
				var pairs []budget.Pair
				for _, month := range ledger.MonthRange(startMonth, priorEnd) {
					pairs = append(pairs, budget.Pair{BudgetID: budgetID, Month: month})
				}
				if err := budget.RecalculateAll(ctx, s, pairs); err != nil {
					return err
				}
			}
		}

		if err := s.DeleteAllocationsFrom(ctx, budgetID, effectiveMonth); err != nil {
			return err
		}

		horizon := ledger.DefaultForecastHorizonMonths
		if raw, ok, err := s.GetSetting(ctx, ledger.SettingForecastHorizonMonths); err != nil {
			return err
		} else if ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				horizon = n
			}
		}
		return forecast.GenerateForecasts(ctx, s, effectiveDate, horizon)
	})
}

// ---------------------------------------------------------------------
// Balance adjustment / statement reconciliation (spec.md §4.4.7)
// ---------------------------------------------------------------------

// BalanceFix books a one-off adjustment transaction against account so the
// sum of its Committed and Pending transactions matches targetTotal. The
// engine computes the current sum itself rather than trusting a
// caller-supplied balance (spec.md §4.4.7 balance fix).
func (c *Controller) BalanceFix(ctx context.Context, accountID string, targetTotal ledger.Money, today ledger.Date) (ledger.Transaction, error) {
	var result ledger.Transaction
	err := c.withTx(ctx, func(s ledger.Store) error {
		current, err := s.SumAmountsForAccount(ctx, accountID, []ledger.Status{ledger.StatusCommitted, ledger.StatusPending})
		if err != nil {
			return err
		}
		delta := targetTotal.Sub(current)
		if delta.IsZero() {
			return nil
		}
		row := ledger.Transaction{
			DateCreated: today,
			DatePayed:   today,
			Description: "Balance adjustment",
			Account:     accountID,
			Amount:      delta,
			Status:      ledger.StatusCommitted,
		}
		rows, err := s.InsertTransactions(ctx, []ledger.Transaction{row})
		if err != nil {
			return err
		}
		result = rows[0]
		return nil
	})
	return result, err
}

// StatementFix books a one-off adjustment on account's payment date within
// month so the sum of that day's Committed and Forecast transactions
// matches statementTotal. No-op when the required adjustment is below
// epsilon (spec.md §4.4.7 statement fix).
func (c *Controller) StatementFix(ctx context.Context, accountID string, month ledger.Date, statementTotal ledger.Money) (ledger.Transaction, error) {
	var result ledger.Transaction
	err := c.withTx(ctx, func(s ledger.Store) error {
		account, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		monthStart := month.MonthOf()
		var paymentDate ledger.Date
		if account.Kind == ledger.AccountCreditCard {
			paymentDate = monthStart.WithDay(account.PaymentDay)
		} else {
			paymentDate = monthStart.EndOfMonth()
		}

		current, err := s.SumAmountsForAccountOnDate(ctx, accountID, paymentDate, []ledger.Status{ledger.StatusCommitted, ledger.StatusForecast})
		if err != nil {
			return err
		}
		delta := statementTotal.Sub(current)
		if delta.Abs().LessThan(epsilon) {
			return nil
		}
		row := ledger.Transaction{
			DateCreated: paymentDate,
			DatePayed:   paymentDate,
			Description: "Statement adjustment",
			Account:     accountID,
			Amount:      delta,
			Status:      ledger.StatusCommitted,
		}
		rows, err := s.InsertTransactions(ctx, []ledger.Transaction{row})
		if err != nil {
			return err
		}
		result = rows[0]
		return nil
	})
	return result, err
}
