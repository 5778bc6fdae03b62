package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow/cashflow-engine/ledger"
	"github.com/finflow/cashflow-engine/store/memory"
)

func newTestRouter(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	store.PutAccount(ledger.Account{ID: "checking", Kind: ledger.AccountCash})
	h := NewHandler(store, nil, nil)
	return store, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListAccounts(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/accounts/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dtos []AccountDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, "checking", dtos[0].ID)
}

func TestAddSimpleAndListTransactions(t *testing.T) {
	_, router := newTestRouter(t)

	req := CreateSimpleRequest{
		Description: "Groceries",
		Amount:      "-42.50",
		Account:     "checking",
		Category:    "food",
		DateCreated: "2026-01-05",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/simple", req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created []TransactionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created, 1)
	assert.Equal(t, "-42.50", created[0].Amount)

	rec = doJSON(t, router, http.MethodGet, "/api/transactions/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []TransactionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Groceries", rows[0].Description)
	assert.Equal(t, "-42.50", rows[0].Balance)
}

func TestAddSimpleUnknownAccountReturns404(t *testing.T) {
	_, router := newTestRouter(t)

	req := CreateSimpleRequest{
		Description: "Mystery",
		Amount:      "-1.00",
		Account:     "nope",
		DateCreated: "2026-01-05",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/simple", req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddSimpleInvalidAmountReturns400(t *testing.T) {
	_, router := newTestRouter(t)

	req := CreateSimpleRequest{
		Description: "Bad",
		Amount:      "not-a-number",
		Account:     "checking",
		DateCreated: "2026-01-05",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/simple", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitAndDeleteTransaction(t *testing.T) {
	_, router := newTestRouter(t)

	req := CreateSimpleRequest{
		Description: "Pending charge",
		Amount:      "-10.00",
		Account:     "checking",
		IsPending:   true,
		DateCreated: "2026-01-05",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/transactions/simple", req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created []TransactionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created[0].ID
	assert.Equal(t, "pending", created[0].Status)

	rec = doJSON(t, router, http.MethodPost, apiPath("/api/transactions/%d/commit", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var committed TransactionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &committed))
	assert.Equal(t, "committed", committed.Status)

	rec = doJSON(t, router, http.MethodDelete, apiPath("/api/transactions/%d", id), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, apiPath("/api/transactions/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryCRUD(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/categories/", CreateCategoryRequest{Name: "food", Description: "Groceries and dining"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/categories/", CreateCategoryRequest{Name: "food"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/categories/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var categories []ledger.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories, 1)

	rec = doJSON(t, router, http.MethodDelete, "/api/categories/food", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateSubscriptionAndBudgetStatus(t *testing.T) {
	_, router := newTestRouter(t)

	sub := SubscriptionDTO{
		ID:               "budget_food",
		Name:             "Food",
		MonthlyAmount:    "300.00",
		PaymentAccountID: "checking",
		StartDate:        "2026-01-01",
		IsBudget:         true,
	}
	rec := doJSON(t, router, http.MethodPost, "/api/subscriptions/", sub)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/subscriptions/budget_food/status?month=2026-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []BudgetStatusDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "budget_food", statuses[0].Budget.ID)
}

func TestBalanceFixBooksAdjustment(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/simple", CreateSimpleRequest{
		Description: "Paycheck",
		Amount:      "100.00",
		Account:     "checking",
		IsIncome:    true,
		DateCreated: "2026-01-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/admin/balance-fix", BalanceFixRequest{
		Account:     "checking",
		TargetTotal: "90.00",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var tx TransactionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, "-10.00", tx.Amount)
}

func TestBalanceFixNoOpReturns204(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/admin/balance-fix", BalanceFixRequest{
		Account:     "checking",
		TargetTotal: "0.00",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStatementFixBooksAdjustment(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/simple", CreateSimpleRequest{
		Description: "Groceries",
		Amount:      "-50.00",
		Account:     "checking",
		DateCreated: "2026-01-31",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/admin/statement-fix", StatementFixRequest{
		Account:        "checking",
		Month:          "2026-01-01",
		StatementTotal: "-75.00",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var tx TransactionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, "-25.00", tx.Amount)
}

func TestConvertInstallmentToSimpleRoute(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/installment", CreateInstallmentRequest{
		Description:  "Laptop",
		TotalAmount:  "300.00",
		Installments: 3,
		Account:      "checking",
		DateCreated:  "2026-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created []TransactionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created[0].ID

	rec = doJSON(t, router, http.MethodPost, apiPath("/api/transactions/%d/convert", id), ConvertRequest{
		Kind: "simple",
		Simple: &CreateSimpleRequest{
			Description: "Laptop (paid in full)",
			Amount:      "-300.00",
			Account:     "checking",
			DateCreated: "2026-01-01",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var converted []TransactionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &converted))
	require.Len(t, converted, 1)
	assert.Equal(t, "-300.00", converted[0].Amount)
}

func TestTriggerRolloverWithoutSchedulerReturns503(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/admin/rollover", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExportCSV(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/simple", CreateSimpleRequest{
		Description: "Groceries",
		Amount:      "-10.00",
		Account:     "checking",
		DateCreated: "2026-01-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions/export.csv", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Groceries")
}

func apiPath(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
