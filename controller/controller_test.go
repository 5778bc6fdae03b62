package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow/cashflow-engine/budget"
	"github.com/finflow/cashflow-engine/forecast"
	"github.com/finflow/cashflow-engine/ledger"
	"github.com/finflow/cashflow-engine/store/memory"
)

func newTestController(t *testing.T) (*Controller, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.PutAccount(ledger.Account{ID: "checking", Kind: ledger.AccountCash})
	return New(store), store
}

func TestAddSimpleInsertsAndReturnsRow(t *testing.T) {
	ctx := context.Background()
	ctrl, _ := newTestController(t)

	txs, err := ctrl.AddSimple(ctx, ledger.SimpleRequest{
		Description: "Coffee",
		Amount:      ledger.NewMoney(5),
		Account:     "checking",
		DateCreated: ledger.Today(),
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.NotZero(t, txs[0].ID)
	assert.Equal(t, "-5.00", txs[0].Amount.String())
}

func TestAddSimpleCreatesBudgetAllocation(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	budgetID := "budget_food"
	require.NoError(t, store.InsertSubscription(ctx, ledger.Subscription{
		ID:               budgetID,
		Name:             "Food",
		MonthlyAmount:    ledger.NewMoney(300),
		PaymentAccountID: "checking",
		StartDate:        ledger.NewDate(2026, time.January, 1),
		IsBudget:         true,
	}))

	month := ledger.NewDate(2026, time.January, 15)
	_, err := ctrl.AddSimple(ctx, ledger.SimpleRequest{
		Description: "Groceries",
		Amount:      ledger.NewMoney(80),
		Account:     "checking",
		Budget:      budgetID,
		DateCreated: month,
	})
	require.NoError(t, err)

	alloc, err := store.GetBudgetAllocation(ctx, budgetID, month.MonthOf())
	require.NoError(t, err)
	assert.Equal(t, "-220.00", alloc.Amount.String())
}

func TestEditFieldsHealsOldAndNewBudget(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	for _, id := range []string{"budget_a", "budget_b"} {
		require.NoError(t, store.InsertSubscription(ctx, ledger.Subscription{
			ID:               id,
			Name:             id,
			MonthlyAmount:    ledger.NewMoney(100),
			PaymentAccountID: "checking",
			StartDate:        ledger.NewDate(2026, time.January, 1),
			IsBudget:         true,
		}))
	}

	month := ledger.NewDate(2026, time.January, 10)
	txs, err := ctrl.AddSimple(ctx, ledger.SimpleRequest{
		Amount:      ledger.NewMoney(40),
		Account:     "checking",
		Budget:      "budget_a",
		DateCreated: month,
	})
	require.NoError(t, err)

	newBudget := "budget_b"
	_, err = ctrl.EditFields(ctx, txs[0].ID, ledger.TransactionUpdate{Budget: &newBudget})
	require.NoError(t, err)

	allocA, err := store.GetBudgetAllocation(ctx, "budget_a", month.MonthOf())
	require.NoError(t, err)
	assert.Equal(t, "-100.00", allocA.Amount.String())

	allocB, err := store.GetBudgetAllocation(ctx, "budget_b", month.MonthOf())
	require.NoError(t, err)
	assert.Equal(t, "-60.00", allocB.Amount.String())
}

func TestChangeDateDeletesAndRecreates(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	txs, err := ctrl.AddSimple(ctx, ledger.SimpleRequest{
		Amount:      ledger.NewMoney(20),
		Account:     "checking",
		DateCreated: ledger.NewDate(2026, time.January, 1),
	})
	require.NoError(t, err)
	originalID := txs[0].ID

	newDate := ledger.NewDate(2026, time.February, 1)
	updated, err := ctrl.ChangeDate(ctx, originalID, newDate)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.NotEqual(t, originalID, updated[0].ID)
	assert.Equal(t, "2026-02-01", updated[0].DateCreated.String())

	_, err = store.GetTransaction(ctx, originalID)
	assert.True(t, ledger.IsNotFound(err))
}

func TestChangeDateShiftsEveryInstallmentSibling(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	txs, err := ctrl.AddInstallment(ctx, ledger.InstallmentRequest{
		TotalAmount:  ledger.NewMoney(300),
		Installments: 3,
		Account:      "checking",
		DateCreated:  ledger.NewDate(2026, time.January, 1),
	})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	originID := txs[0].OriginID

	// shift the first installment's date_created by 14 days; every sibling
	// should move by the same offset (spec.md §4.4.2, §4.4.5).
	newDate := txs[0].DateCreated.AddDays(14)
	updated, err := ctrl.ChangeDate(ctx, txs[0].ID, newDate)
	require.NoError(t, err)
	require.Len(t, updated, 3)

	remaining, err := store.ListByOrigin(ctx, originID)
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	for i, tx := range remaining {
		want := txs[i].DateCreated.AddDays(14)
		assert.Equal(t, want.String(), tx.DateCreated.String())
	}
}

func TestChangeDateRejectsSubscriptionGroup(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	require.NoError(t, store.InsertSubscription(ctx, ledger.Subscription{
		ID:               "sub_rent",
		Name:             "Rent",
		MonthlyAmount:    ledger.NewMoney(1000),
		PaymentAccountID: "checking",
		StartDate:        ledger.NewDate(2026, time.January, 1),
	}))
	require.NoError(t, forecast.GenerateForecasts(ctx, store, ledger.NewDate(2026, time.January, 1), 1))

	rows, err := store.ListByOrigin(ctx, "sub_rent")
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	_, err = ctrl.ChangeDate(ctx, rows[0].ID, ledger.NewDate(2026, time.January, 20))
	assert.True(t, ledger.IsInvalidRequest(err))
}

func TestConvertInstallmentToSimple(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	txs, err := ctrl.AddInstallment(ctx, ledger.InstallmentRequest{
		TotalAmount:  ledger.NewMoney(300),
		Installments: 3,
		Account:      "checking",
		DateCreated:  ledger.NewDate(2026, time.January, 1),
	})
	require.NoError(t, err)
	originID := txs[0].OriginID

	converted, err := ctrl.Convert(ctx, txs[0].ID, ledger.ConvertRequest{
		Kind: ledger.GroupSimple,
		Simple: &ledger.SimpleRequest{
			Description: "Paid in full",
			Amount:      ledger.NewMoney(300),
			Account:     "checking",
			DateCreated: ledger.NewDate(2026, time.January, 1),
		},
	})
	require.NoError(t, err)
	require.Len(t, converted, 1)
	assert.Equal(t, "-300.00", converted[0].Amount.String())

	remaining, err := store.ListByOrigin(ctx, originID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestConvertRejectsSubscriptionGroup(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	require.NoError(t, store.InsertSubscription(ctx, ledger.Subscription{
		ID:               "sub_rent",
		Name:             "Rent",
		MonthlyAmount:    ledger.NewMoney(1000),
		PaymentAccountID: "checking",
		StartDate:        ledger.NewDate(2026, time.January, 1),
	}))
	require.NoError(t, forecast.GenerateForecasts(ctx, store, ledger.NewDate(2026, time.January, 1), 1))

	rows, err := store.ListByOrigin(ctx, "sub_rent")
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	_, err = ctrl.Convert(ctx, rows[0].ID, ledger.ConvertRequest{
		Kind: ledger.GroupSimple,
		Simple: &ledger.SimpleRequest{
			Amount:      ledger.NewMoney(1000),
			Account:     "checking",
			DateCreated: ledger.NewDate(2026, time.January, 1),
		},
	})
	assert.True(t, ledger.IsInvalidRequest(err))
}

func TestDeleteRefusesAllocationRow(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	require.NoError(t, store.InsertSubscription(ctx, ledger.Subscription{
		ID:               "budget_food",
		Name:             "Food",
		MonthlyAmount:    ledger.NewMoney(300),
		PaymentAccountID: "checking",
		StartDate:        ledger.NewDate(2026, time.January, 1),
		IsBudget:         true,
	}))
	month := ledger.NewDate(2026, time.January, 1)
	require.NoError(t, budget.Recalculate(ctx, store, "budget_food", month))

	alloc, err := store.GetBudgetAllocation(ctx, "budget_food", month)
	require.NoError(t, err)

	err = ctrl.Delete(ctx, []int64{alloc.ID})
	assert.True(t, ledger.IsInvalidRequest(err))
}

func TestDeleteGroupRemovesAllSiblings(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	txs, err := ctrl.AddInstallment(ctx, ledger.InstallmentRequest{
		TotalAmount:  ledger.NewMoney(300),
		Installments: 3,
		Account:      "checking",
		DateCreated:  ledger.NewDate(2026, time.January, 1),
	})
	require.NoError(t, err)
	originID := txs[0].OriginID

	require.NoError(t, ctrl.DeleteGroup(ctx, originID))

	remaining, err := store.ListByOrigin(ctx, originID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestCommitTransitionsStatus(t *testing.T) {
	ctx := context.Background()
	ctrl, _ := newTestController(t)

	txs, err := ctrl.AddSimple(ctx, ledger.SimpleRequest{
		Amount:      ledger.NewMoney(10),
		Account:     "checking",
		IsPending:   true,
		DateCreated: ledger.Today(),
	})
	require.NoError(t, err)

	committed, err := ctrl.Commit(ctx, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCommitted, committed.Status)
}

func TestBalanceFixNoOpWhenAlreadyAtTarget(t *testing.T) {
	ctx := context.Background()
	ctrl, _ := newTestController(t)

	tx, err := ctrl.BalanceFix(ctx, "checking", ledger.Zero(), ledger.Today())
	require.NoError(t, err)
	assert.Zero(t, tx.ID)
}

func TestBalanceFixBooksAdjustmentFromComputedSum(t *testing.T) {
	ctx := context.Background()
	ctrl, _ := newTestController(t)

	_, err := ctrl.AddSimple(ctx, ledger.SimpleRequest{
		Amount:      ledger.NewMoney(100),
		Account:     "checking",
		IsIncome:    true,
		DateCreated: ledger.Today(),
	})
	require.NoError(t, err)

	// engine computes the current sum (100.00) itself; target 90 implies -10
	tx, err := ctrl.BalanceFix(ctx, "checking", ledger.NewMoney(90), ledger.Today())
	require.NoError(t, err)
	assert.Equal(t, "-10.00", tx.Amount.String())
	assert.Equal(t, ledger.StatusCommitted, tx.Status)
}

func TestStatementFixBooksAdjustmentOnPaymentDate(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	month := ledger.NewDate(2026, time.January, 1)
	monthEnd := month.EndOfMonth()
	_, err := ctrl.AddSimple(ctx, ledger.SimpleRequest{
		Amount:      ledger.NewMoney(50),
		Account:     "checking",
		DateCreated: monthEnd,
	})
	require.NoError(t, err)

	tx, err := ctrl.StatementFix(ctx, "checking", month, ledger.NewMoney(-75))
	require.NoError(t, err)
	assert.Equal(t, "-25.00", tx.Amount.String())
	assert.Equal(t, monthEnd.String(), tx.DatePayed.String())

	rows, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestStatementFixNoOpBelowEpsilon(t *testing.T) {
	ctx := context.Background()
	ctrl, _ := newTestController(t)

	month := ledger.NewDate(2026, time.January, 1)
	tx, err := ctrl.StatementFix(ctx, "checking", month, ledger.NewMoney(0.001))
	require.NoError(t, err)
	assert.Zero(t, tx.ID)
}

func TestChangeBudgetAmountRegeneratesFromEffectiveMonth(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	require.NoError(t, store.InsertSubscription(ctx, ledger.Subscription{
		ID:               "budget_food",
		Name:             "Food",
		MonthlyAmount:    ledger.NewMoney(300),
		PaymentAccountID: "checking",
		StartDate:        ledger.NewDate(2026, time.January, 1),
		IsBudget:         true,
	}))

	jan := ledger.NewDate(2026, time.January, 1)
	feb := ledger.NewDate(2026, time.February, 1)
	require.NoError(t, budget.Recalculate(ctx, store, "budget_food", jan))
	require.NoError(t, budget.Recalculate(ctx, store, "budget_food", feb))

	newAmount := ledger.NewMoney(200)
	require.NoError(t, ctrl.ChangeBudgetAmount(ctx, "budget_food", newAmount, feb, false))

	allocFeb, err := store.GetBudgetAllocation(ctx, "budget_food", feb)
	require.NoError(t, err)
	assert.Equal(t, "-200.00", allocFeb.Amount.String())

	// January predates effective_month and retroactive is false, so it
	// keeps its original allocation
	allocJan, err := store.GetBudgetAllocation(ctx, "budget_food", jan)
	require.NoError(t, err)
	assert.Equal(t, "-300.00", allocJan.Amount.String())
}

func TestChangeBudgetAmountRetroactiveRewritesPastMonths(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(t)

	require.NoError(t, store.InsertSubscription(ctx, ledger.Subscription{
		ID:               "budget_food",
		Name:             "Food",
		MonthlyAmount:    ledger.NewMoney(300),
		PaymentAccountID: "checking",
		StartDate:        ledger.NewDate(2026, time.January, 1),
		IsBudget:         true,
	}))

	jan := ledger.NewDate(2026, time.January, 1)
	feb := ledger.NewDate(2026, time.February, 1)
	require.NoError(t, budget.Recalculate(ctx, store, "budget_food", jan))
	require.NoError(t, budget.Recalculate(ctx, store, "budget_food", feb))

	newAmount := ledger.NewMoney(200)
	require.NoError(t, ctrl.ChangeBudgetAmount(ctx, "budget_food", newAmount, feb, true))

	allocFeb, err := store.GetBudgetAllocation(ctx, "budget_food", feb)
	require.NoError(t, err)
	assert.Equal(t, "-200.00", allocFeb.Amount.String())

	// retroactive also rewrites January, which predates effective_month
	allocJan, err := store.GetBudgetAllocation(ctx, "budget_food", jan)
	require.NoError(t, err)
	assert.Equal(t, "-200.00", allocJan.Amount.String())
}
