/*
Package forecast implements the forecast scheduler (C6): the component
that keeps each subscription's Forecast rows populated out to a rolling
horizon, rolls them over into Committed transactions as their payment
date arrives, and releases unspent "Return" budgets at month end.

Operations (spec.md §4.5):
  GenerateForecasts                     - fills forecast rows to horizon
  RunRollover                           - commits due forecasts, regenerates
  RunMonthEndBudgetReconciliation       - Return-policy envelope release

Determinism: GenerateForecasts only fills months strictly beyond the last
existing forecast for each subscription, so repeat calls with an
unchanged store and the same (today, horizon) are no-ops.
*/
package forecast

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/finflow/cashflow-engine/budget"
	"github.com/finflow/cashflow-engine/ledger"
)

// GenerateForecasts implements spec.md §4.5 generate_forecasts.
func GenerateForecasts(ctx context.Context, store ledger.Store, fromDate ledger.Date, horizonMonths int) error {
	fromMonth := fromDate.MonthOf()
	horizonEnd := fromMonth.AddMonths(horizonMonths - 1)

	subs, err := store.ListActiveSubscriptions(ctx, fromMonth, horizonEnd)
	if err != nil {
		return err
	}

	var pairs []budget.Pair
	for _, sub := range subs {
		if sub.StartDate.After(horizonEnd) {
			continue
		}

		lastMonth, hasLast, err := store.LastForecastMonth(ctx, sub.ID)
		if err != nil {
			return err
		}

		startMonth := sub.StartDate.MonthOf()
		if fromMonth.After(startMonth) {
			startMonth = fromMonth
		}
		if hasLast {
			nextAfterLast := lastMonth.AddMonths(1)
			if nextAfterLast.After(startMonth) {
				startMonth = nextAfterLast
			}
		}

		endMonth := horizonEnd
		if sub.EndDate != nil {
			subEnd := sub.EndDate.MonthOf()
			if subEnd.Before(endMonth) {
				endMonth = subEnd
			}
		}

		if startMonth.After(endMonth) {
			continue // nothing left to generate for this subscription
		}

		account, err := store.GetAccount(ctx, sub.PaymentAccountID)
		if err != nil {
			return err
		}

		initialAmountByMonth, err := seedInitialAmounts(ctx, store, sub, startMonth, endMonth)
		if err != nil {
			return err
		}

		rows, err := ledger.BuildRecurrent(sub, account, startMonth, endMonth, initialAmountByMonth)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		if _, err := store.InsertTransactions(ctx, rows); err != nil {
			return err
		}

		if sub.IsBudget {
			for _, month := range ledger.MonthRange(startMonth, endMonth) {
				pairs = append(pairs, budget.Pair{BudgetID: sub.ID, Month: month})
			}
		}
	}

	return budget.RecalculateAll(ctx, store, pairs)
}

// seedInitialAmounts implements the §4.5 seeding rule: a budget month
// that already has committed non-allocation spend recorded against it
// (e.g. from an edit made before the forecast row existed) starts its
// allocation capped at that spend instead of the full envelope.
func seedInitialAmounts(ctx context.Context, store ledger.Store, sub ledger.Subscription, startMonth, endMonth ledger.Date) (map[string]ledger.Money, error) {
	if !sub.IsBudget {
		return nil, nil
	}
	out := make(map[string]ledger.Money)
	for _, month := range ledger.MonthRange(startMonth, endMonth) {
		committed, err := store.SumCommittedAmountsLinkedToBudgetByPaymentDate(ctx, sub.ID, month)
		if err != nil {
			return nil, err
		}
		if committed.IsPositive() || committed.IsZero() {
			if committed.IsPositive() {
				seeded := sub.MonthlyAmount.Neg().Add(committed)
				out[month.String()] = seeded.Min(ledger.Zero())
			}
		}
	}
	return out, nil
}

// RunRollover implements spec.md §4.5 run_rollover: commits every due
// forecast row, then refills the horizon.
func RunRollover(ctx context.Context, store ledger.Store, today ledger.Date) error {
	cutoff := today.EndOfMonth()

	committed, err := store.CommitForecastsOnOrBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	var pairs []budget.Pair
	for _, tx := range committed {
		if tx.Budget != "" {
			pairs = append(pairs, budget.Pair{BudgetID: tx.Budget, Month: tx.DateCreated.MonthOf()})
		}
	}
	if err := budget.RecalculateAll(ctx, store, pairs); err != nil {
		return err
	}

	horizon := ledger.DefaultForecastHorizonMonths
	if raw, ok, err := store.GetSetting(ctx, ledger.SettingForecastHorizonMonths); err != nil {
		return err
	} else if ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			horizon = n
		}
	}

	return GenerateForecasts(ctx, store, today, horizon)
}

// RunMonthEndBudgetReconciliation implements spec.md §4.5
// run_month_end_budget_reconciliation: for every active budget with
// underspend_behavior = Return whose allocation for month is still
// negative, book a "Budget Release" inflow for the unspent amount and
// zero the allocation.
func RunMonthEndBudgetReconciliation(ctx context.Context, store ledger.Store, month ledger.Date) error {
	month = month.MonthOf()

	subs, err := store.ListActiveSubscriptions(ctx, month, month)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		if !sub.IsBudget || sub.UnderspendBehavior != ledger.UnderspendReturn {
			continue
		}

		alloc, err := store.GetBudgetAllocation(ctx, sub.ID, month)
		if err != nil {
			if ledger.IsNotFound(err) {
				continue
			}
			return err
		}
		if !alloc.Amount.IsNegative() {
			continue
		}

		release := ledger.Transaction{
			DateCreated: alloc.DateCreated,
			DatePayed:   alloc.DatePayed,
			Description: "Budget Release",
			Account:     alloc.Account,
			Amount:      alloc.Amount.Abs(),
			Category:    sub.Category,
			Status:      ledger.StatusCommitted,
		}
		if _, err := store.InsertTransactions(ctx, []ledger.Transaction{release}); err != nil {
			return err
		}

		zero := ledger.Zero()
		if err := store.UpdateTransaction(ctx, alloc.ID, ledger.TransactionUpdate{Amount: &zero}); err != nil {
			return err
		}
	}
	return nil
}

// Scheduler drives RunRollover on a daily cron trigger, grounded on the
// same start/stop lifecycle as a ticker-based scheduler but backed by
// robfig/cron so the trigger expression is configurable.
type Scheduler struct {
	Store ledger.Store
	Spec  string // cron expression, e.g. "0 5 * * *" (05:00 daily)

	cron *cron.Cron
}

// NewScheduler builds a Scheduler with a default daily-at-05:00 trigger.
func NewScheduler(store ledger.Store) *Scheduler {
	return &Scheduler{Store: store, Spec: "0 5 * * *"}
}

// Start begins the cron loop. Call Stop to drain it.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.Spec, s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("spec", s.Spec).Msg("forecast scheduler started")
	return nil
}

// Stop waits for any in-flight run to finish before returning.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("forecast scheduler stopped")
}

// RunNow triggers an immediate rollover (used by tests and an admin
// endpoint), bypassing the cron trigger.
func (s *Scheduler) RunNow(ctx context.Context, today ledger.Date) error {
	if err := RunRollover(ctx, s.Store, today); err != nil {
		return err
	}
	return RunMonthEndBudgetReconciliation(ctx, s.Store, today.MonthOf().AddMonths(-1))
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	today := ledger.Today()
	if err := s.RunNow(ctx, today); err != nil {
		log.Error().Err(err).Time("today", time.Now()).Msg("forecast scheduler run failed")
	}
}
