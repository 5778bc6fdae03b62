package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow/cashflow-engine/ledger"
	"github.com/finflow/cashflow-engine/store/memory"
)

func d(year int, month time.Month, day int) ledger.Date {
	return ledger.NewDate(year, month, day)
}

func TestRunningBalanceAccumulatesInOrder(t *testing.T) {
	txs := []ledger.Transaction{
		{ID: 2, DatePayed: d(2026, time.January, 5), Amount: ledger.NewMoney(-20), Status: ledger.StatusCommitted},
		{ID: 1, DatePayed: d(2026, time.January, 1), Amount: ledger.NewMoney(100), Status: ledger.StatusCommitted},
	}
	rows := RunningBalance(txs)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].Transaction.ID)
	assert.Equal(t, "100.00", rows[0].Balance.String())
	assert.Equal(t, "80.00", rows[1].Balance.String())
}

func TestRunningBalanceExcludesPending(t *testing.T) {
	txs := []ledger.Transaction{
		{ID: 1, DatePayed: d(2026, time.January, 1), Amount: ledger.NewMoney(100), Status: ledger.StatusCommitted},
		{ID: 2, DatePayed: d(2026, time.January, 2), Amount: ledger.NewMoney(-50), Status: ledger.StatusPending},
	}
	rows := RunningBalance(txs)
	require.Len(t, rows, 2)
	assert.Equal(t, "100.00", rows[1].Balance.String())
}

func TestMonthlyMinimumsComputesDelta(t *testing.T) {
	txs := []ledger.Transaction{
		{ID: 1, DatePayed: d(2026, time.January, 1), Amount: ledger.NewMoney(100), Status: ledger.StatusCommitted},
		{ID: 2, DatePayed: d(2026, time.January, 15), Amount: ledger.NewMoney(-80), Status: ledger.StatusCommitted},
		{ID: 3, DatePayed: d(2026, time.February, 1), Amount: ledger.NewMoney(50), Status: ledger.StatusCommitted},
	}
	rows := RunningBalance(txs)
	mins := MonthlyMinimums(rows)
	require.Len(t, mins, 2)
	assert.Equal(t, "20.00", mins[0].Minimum.String())
	assert.Equal(t, "0.00", mins[0].Delta.String())
	assert.Equal(t, "70.00", mins[1].Minimum.String())
	assert.Equal(t, "50.00", mins[1].Delta.String())
}

func TestSummarizeGroupsCreditCardByPaymentDate(t *testing.T) {
	accounts := map[string]ledger.Account{
		"visa":     {ID: "visa", Kind: ledger.AccountCreditCard, CutOffDay: 14, PaymentDay: 25},
		"checking": {ID: "checking", Kind: ledger.AccountCash},
	}
	txs := []ledger.Transaction{
		{ID: 1, Account: "visa", DatePayed: d(2026, time.March, 25), Amount: ledger.NewMoney(-30), Status: ledger.StatusCommitted},
		{ID: 2, Account: "visa", DatePayed: d(2026, time.March, 25), Amount: ledger.NewMoney(-20), Status: ledger.StatusCommitted},
		{ID: 3, Account: "checking", DatePayed: d(2026, time.March, 1), Amount: ledger.NewMoney(-10), Status: ledger.StatusCommitted},
	}
	rows := RunningBalance(txs)
	summarized := Summarize(rows, accounts, true)

	require.Len(t, summarized, 2)
	var payment Row
	for _, r := range summarized {
		if r.Transaction.Account == "visa" {
			payment = r
		}
	}
	assert.Equal(t, "visa Payment", payment.Transaction.Description)
	assert.Equal(t, "-50.00", payment.Transaction.Amount.String())
}

func TestSummarizeExcludesPlanningWhenNotIncluded(t *testing.T) {
	accounts := map[string]ledger.Account{
		"visa": {ID: "visa", Kind: ledger.AccountCreditCard, CutOffDay: 14, PaymentDay: 25},
	}
	txs := []ledger.Transaction{
		{ID: 1, Account: "visa", DatePayed: d(2026, time.March, 25), Amount: ledger.NewMoney(-30), Status: ledger.StatusPlanning},
	}
	rows := RunningBalance(txs)
	summarized := Summarize(rows, accounts, false)
	require.Len(t, summarized, 1)
	assert.Equal(t, ledger.StatusPlanning, summarized[0].Transaction.Status)
}

func TestBudgetStatusReportsCappedState(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.PutAccount(ledger.Account{ID: "checking", Kind: ledger.AccountCash})

	budget := ledger.Subscription{
		ID:               "budget_food",
		Name:             "Food",
		MonthlyAmount:    ledger.NewMoney(300),
		PaymentAccountID: "checking",
		StartDate:        d(2026, time.January, 1),
		IsBudget:         true,
	}
	require.NoError(t, store.InsertSubscription(ctx, budget))

	month := d(2026, time.January, 1)
	alloc := ledger.Transaction{
		DateCreated: month,
		DatePayed:   month,
		Account:     "checking",
		Amount:      ledger.NewMoney(0),
		Budget:      budget.ID,
		OriginID:    budget.ID,
		Status:      ledger.StatusForecast,
	}
	_, err := store.InsertTransactions(ctx, []ledger.Transaction{alloc})
	require.NoError(t, err)

	snaps, err := BudgetStatus(ctx, store, month)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].IsCapped)
}

func TestBudgetStatusDefaultsToUncappedWhenNoAllocationYet(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.PutAccount(ledger.Account{ID: "checking", Kind: ledger.AccountCash})

	budget := ledger.Subscription{
		ID:               "budget_food",
		Name:             "Food",
		MonthlyAmount:    ledger.NewMoney(300),
		PaymentAccountID: "checking",
		StartDate:        d(2026, time.January, 1),
		IsBudget:         true,
	}
	require.NoError(t, store.InsertSubscription(ctx, budget))

	month := d(2026, time.January, 1)
	snaps, err := BudgetStatus(ctx, store, month)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "-300.00", snaps[0].Allocation.String())
	assert.False(t, snaps[0].IsCapped)
}
