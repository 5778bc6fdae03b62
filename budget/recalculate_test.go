package budget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow/cashflow-engine/ledger"
	"github.com/finflow/cashflow-engine/store/memory"
)

func newStoreWithBudget(t *testing.T) (*memory.Store, ledger.Subscription) {
	t.Helper()
	store := memory.New()
	store.PutAccount(ledger.Account{ID: "checking", Kind: ledger.AccountCash})

	budget := ledger.Subscription{
		ID:               "budget_food",
		Name:             "Food",
		MonthlyAmount:    ledger.NewMoney(300),
		PaymentAccountID: "checking",
		StartDate:        ledger.NewDate(2026, time.January, 1),
		IsBudget:         true,
	}
	require.NoError(t, store.InsertSubscription(context.Background(), budget))
	return store, budget
}

func TestRecalculateCreatesAllocationWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store, budget := newStoreWithBudget(t)
	month := ledger.NewDate(2026, time.January, 1)

	require.NoError(t, Recalculate(ctx, store, budget.ID, month))

	alloc, err := store.GetBudgetAllocation(ctx, budget.ID, month)
	require.NoError(t, err)
	assert.Equal(t, "-300.00", alloc.Amount.String())
	assert.Equal(t, "2026-01-01", alloc.DateCreated.String())
	assert.Equal(t, ledger.StatusForecast, alloc.Status)
}

func TestRecalculateAppliesUnderBudgetFormula(t *testing.T) {
	ctx := context.Background()
	store, budget := newStoreWithBudget(t)
	month := ledger.NewDate(2026, time.January, 1)

	require.NoError(t, Recalculate(ctx, store, budget.ID, month))

	spend := ledger.Transaction{
		DateCreated: month,
		DatePayed:   month,
		Account:     "checking",
		Amount:      ledger.NewMoney(-120),
		Budget:      budget.ID,
		Status:      ledger.StatusCommitted,
	}
	_, err := store.InsertTransactions(ctx, []ledger.Transaction{spend})
	require.NoError(t, err)

	require.NoError(t, Recalculate(ctx, store, budget.ID, month))

	alloc, err := store.GetBudgetAllocation(ctx, budget.ID, month)
	require.NoError(t, err)
	// A=300, S=120 -> -300 + min(120,300) = -180
	assert.Equal(t, "-180.00", alloc.Amount.String())
}

func TestRecalculateCapsAtZeroWhenOverspent(t *testing.T) {
	ctx := context.Background()
	store, budget := newStoreWithBudget(t)
	month := ledger.NewDate(2026, time.January, 1)

	spend := ledger.Transaction{
		DateCreated: month,
		DatePayed:   month,
		Account:     "checking",
		Amount:      ledger.NewMoney(-500),
		Budget:      budget.ID,
		Status:      ledger.StatusCommitted,
	}
	_, err := store.InsertTransactions(ctx, []ledger.Transaction{spend})
	require.NoError(t, err)

	require.NoError(t, Recalculate(ctx, store, budget.ID, month))

	alloc, err := store.GetBudgetAllocation(ctx, budget.ID, month)
	require.NoError(t, err)
	// A=300, S=500 -> -300 + min(500,300) = 0
	assert.Equal(t, "0.00", alloc.Amount.String())
}

func TestRecalculateIgnoresPendingSpend(t *testing.T) {
	ctx := context.Background()
	store, budget := newStoreWithBudget(t)
	month := ledger.NewDate(2026, time.January, 1)

	spend := ledger.Transaction{
		DateCreated: month,
		DatePayed:   month,
		Account:     "checking",
		Amount:      ledger.NewMoney(-120),
		Budget:      budget.ID,
		Status:      ledger.StatusPending,
	}
	_, err := store.InsertTransactions(ctx, []ledger.Transaction{spend})
	require.NoError(t, err)

	require.NoError(t, Recalculate(ctx, store, budget.ID, month))

	alloc, err := store.GetBudgetAllocation(ctx, budget.ID, month)
	require.NoError(t, err)
	assert.Equal(t, "-300.00", alloc.Amount.String())
}

func TestRecalculateNoOpForMissingBudget(t *testing.T) {
	store := memory.New()
	err := Recalculate(context.Background(), store, "nonexistent", ledger.Today())
	assert.NoError(t, err)
}

func TestRecalculateNoOpForNonBudgetSubscription(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.PutAccount(ledger.Account{ID: "checking", Kind: ledger.AccountCash})
	sub := ledger.Subscription{
		ID:               "sub_netflix",
		Name:             "Netflix",
		MonthlyAmount:    ledger.NewMoney(15),
		PaymentAccountID: "checking",
		StartDate:        ledger.Today(),
	}
	require.NoError(t, store.InsertSubscription(ctx, sub))

	err := Recalculate(ctx, store, sub.ID, ledger.Today())
	assert.NoError(t, err)

	_, err = store.GetBudgetAllocation(ctx, sub.ID, ledger.Today())
	assert.True(t, ledger.IsNotFound(err))
}

func TestRecalculateAllDedupesPairs(t *testing.T) {
	ctx := context.Background()
	store, budget := newStoreWithBudget(t)
	month := ledger.NewDate(2026, time.January, 1)

	pairs := []Pair{{BudgetID: budget.ID, Month: month}, {BudgetID: budget.ID, Month: month}}
	require.NoError(t, RecalculateAll(ctx, store, pairs))

	_, err := store.GetBudgetAllocation(ctx, budget.ID, month)
	require.NoError(t, err)
}
