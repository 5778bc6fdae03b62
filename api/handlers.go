/*
handlers.go - HTTP API handlers for the cash-flow engine

ENDPOINTS:
  Accounts:
    GET    /api/accounts                      List accounts

  Subscriptions (recurring obligations, income, budgets):
    GET    /api/subscriptions                 List active subscriptions
    POST   /api/subscriptions                 Create subscription
    GET    /api/subscriptions/{id}/status     Budget status (supplemented)
    PUT    /api/subscriptions/{id}/amount     Change budget amount (retroactive wipe+regen)
    DELETE /api/subscriptions/{id}             Delete subscription

  Transactions:
    POST   /api/transactions/simple            Add a single transaction
    POST   /api/transactions/installment       Add an installment series
    POST   /api/transactions/split             Add a split transaction
    GET    /api/transactions                   Running balance projection
    PATCH  /api/transactions/{id}               Edit fields
    PUT    /api/transactions/{id}/date          Change date_created (shifts whole group)
    POST   /api/transactions/{id}/convert       Convert a group to a different kind
    POST   /api/transactions/{id}/commit        Commit a pending/planning row
    DELETE /api/transactions/{id}               Delete one transaction
    DELETE /api/transactions/group/{originID}   Delete a whole group
    GET    /api/transactions/export.csv         CSV export

  Categories:
    GET    /api/categories                     List
    POST   /api/categories                     Create
    DELETE /api/categories/{name}               Delete

  Admin:
    POST   /api/admin/rollover                 Trigger forecast rollover now
    POST   /api/admin/balance-fix               Balance adjustment against an account
    POST   /api/admin/statement-fix             Statement reconciliation for a month

ERROR HANDLING:
  ledger.NotFoundError -> 404, ledger.InvalidRequestError -> 400,
  ledger.InvariantViolationError -> 500 (logged as a bug, not user error),
  everything else -> 500.

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router wiring
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/finflow/cashflow-engine/controller"
	"github.com/finflow/cashflow-engine/forecast"
	"github.com/finflow/cashflow-engine/ledger"
	"github.com/finflow/cashflow-engine/query"
)

var errMissingConvertBody = errors.New("missing request body for convert kind")

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      ledger.Store
	Controller *controller.Controller
	Scheduler  *forecast.Scheduler
	Cache      *query.Cache
}

func NewHandler(store ledger.Store, scheduler *forecast.Scheduler, cache *query.Cache) *Handler {
	return &Handler{
		Store:      store,
		Controller: controller.New(store),
		Scheduler:  scheduler,
		Cache:      cache,
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.ListAccounts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	today := ledger.Today()
	subs, err := h.Store.ListActiveSubscriptions(r.Context(), today, today)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]SubscriptionDTO, len(subs))
	for i, s := range subs {
		dtos[i] = toSubscriptionDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var dto SubscriptionDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	amount, err := decimal.NewFromString(dto.MonthlyAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid monthly_amount", err)
		return
	}
	startDate, err := ledger.ParseDate(dto.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date", err)
		return
	}
	sub := ledger.Subscription{
		ID:                 dto.ID,
		Name:               dto.Name,
		Category:           dto.Category,
		MonthlyAmount:      ledger.MoneyFromDecimal(amount),
		PaymentAccountID:   dto.PaymentAccountID,
		StartDate:          startDate,
		IsBudget:           dto.IsBudget,
		IsIncome:           dto.IsIncome,
		UnderspendBehavior: ledger.UnderspendBehavior(dto.UnderspendBehavior),
	}
	if dto.EndDate != nil {
		d, err := ledger.ParseDate(*dto.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date", err)
			return
		}
		sub.EndDate = &d
	}
	if err := sub.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.InsertSubscription(r.Context(), sub); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionDTO(sub))
}

func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteSubscription(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BudgetStatus(w http.ResponseWriter, r *http.Request) {
	month := ledger.Today().MonthOf()
	if m := r.URL.Query().Get("month"); m != "" {
		if parsed, err := ledger.ParseDate(m); err == nil {
			month = parsed
		}
	}
	snaps, err := query.BudgetStatus(r.Context(), h.Store, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetStatusDTOs(snaps))
}

func (h *Handler) ChangeBudgetAmount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ChangeBudgetAmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.NewAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid new_amount", err)
		return
	}
	fromMonth, err := ledger.ParseDate(req.FromMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from_month", err)
		return
	}
	if err := h.Controller.ChangeBudgetAmount(r.Context(), id, ledger.MoneyFromDecimal(amount), fromMonth, req.Retroactive); err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTIONS - create
// =============================================================================

// parseSimpleRequest converts the wire DTO to the domain request shared by
// AddSimple and Convert (to a simple transaction).
func parseSimpleRequest(req CreateSimpleRequest) (ledger.SimpleRequest, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ledger.SimpleRequest{}, err
	}
	dateCreated, err := parseDateOrToday(req.DateCreated)
	if err != nil {
		return ledger.SimpleRequest{}, err
	}
	return ledger.SimpleRequest{
		Description:       req.Description,
		Amount:            ledger.MoneyFromDecimal(amount),
		Account:           req.Account,
		Category:          req.Category,
		Budget:            req.Budget,
		IsIncome:          req.IsIncome,
		IsPending:         req.IsPending,
		IsPlanning:        req.IsPlanning,
		GracePeriodMonths: req.GracePeriodMonths,
		DateCreated:       dateCreated,
	}, nil
}

// parseInstallmentRequest converts the wire DTO to the domain request
// shared by AddInstallment and Convert (to an installment series).
func parseInstallmentRequest(req CreateInstallmentRequest) (ledger.InstallmentRequest, error) {
	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		return ledger.InstallmentRequest{}, err
	}
	dateCreated, err := parseDateOrToday(req.DateCreated)
	if err != nil {
		return ledger.InstallmentRequest{}, err
	}
	return ledger.InstallmentRequest{
		Description:          req.Description,
		TotalAmount:           ledger.MoneyFromDecimal(total),
		Installments:          req.Installments,
		Account:               req.Account,
		Category:              req.Category,
		Budget:                req.Budget,
		StartFromInstallment:  req.StartFromInstallment,
		TotalInstallments:     req.TotalInstallments,
		GracePeriodMonths:     req.GracePeriodMonths,
		IsPending:             req.IsPending,
		IsPlanning:            req.IsPlanning,
		DateCreated:           dateCreated,
	}, nil
}

// parseSplitRequest converts the wire DTO to the domain request shared by
// AddSplit and Convert (to a split transaction).
func parseSplitRequest(req CreateSplitRequest) (ledger.SplitRequest, error) {
	dateCreated, err := parseDateOrToday(req.DateCreated)
	if err != nil {
		return ledger.SplitRequest{}, err
	}
	splits := make([]ledger.SplitElement, len(req.Splits))
	for i, el := range req.Splits {
		amt, err := decimal.NewFromString(el.Amount)
		if err != nil {
			return ledger.SplitRequest{}, err
		}
		splits[i] = ledger.SplitElement{Amount: ledger.MoneyFromDecimal(amt), Category: el.Category, Budget: el.Budget}
	}
	return ledger.SplitRequest{
		Description: req.Description,
		Account:     req.Account,
		Splits:      splits,
		IsPending:   req.IsPending,
		IsPlanning:  req.IsPlanning,
		DateCreated: dateCreated,
	}, nil
}

func (h *Handler) AddSimple(w http.ResponseWriter, r *http.Request) {
	var req CreateSimpleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	domainReq, err := parseSimpleRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	rows, err := h.Controller.AddSimple(r.Context(), domainReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	writeTransactions(w, http.StatusCreated, rows)
}

func (h *Handler) AddInstallment(w http.ResponseWriter, r *http.Request) {
	var req CreateInstallmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	domainReq, err := parseInstallmentRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	rows, err := h.Controller.AddInstallment(r.Context(), domainReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	writeTransactions(w, http.StatusCreated, rows)
}

func (h *Handler) AddSplit(w http.ResponseWriter, r *http.Request) {
	var req CreateSplitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	domainReq, err := parseSplitRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	rows, err := h.Controller.AddSplit(r.Context(), domainReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	writeTransactions(w, http.StatusCreated, rows)
}

func (h *Handler) ConvertTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var req ConvertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	domainReq := ledger.ConvertRequest{Kind: ledger.GroupKind(req.Kind)}
	var err error
	switch domainReq.Kind {
	case ledger.GroupSimple:
		if req.Simple == nil {
			writeError(w, http.StatusBadRequest, "invalid request", errMissingConvertBody)
			return
		}
		var simple ledger.SimpleRequest
		simple, err = parseSimpleRequest(*req.Simple)
		domainReq.Simple = &simple
	case ledger.GroupInstallment:
		if req.Installment == nil {
			writeError(w, http.StatusBadRequest, "invalid request", errMissingConvertBody)
			return
		}
		var installment ledger.InstallmentRequest
		installment, err = parseInstallmentRequest(*req.Installment)
		domainReq.Installment = &installment
	case ledger.GroupSplit:
		if req.Split == nil {
			writeError(w, http.StatusBadRequest, "invalid request", errMissingConvertBody)
			return
		}
		var split ledger.SplitRequest
		split, err = parseSplitRequest(*req.Split)
		domainReq.Split = &split
	default:
		writeError(w, http.StatusBadRequest, "unsupported convert kind", errMissingConvertBody)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return
	}

	rows, err := h.Controller.Convert(r.Context(), id, domainReq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	writeTransactions(w, http.StatusOK, rows)
}

// =============================================================================
// TRANSACTIONS - mutate
// =============================================================================

func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var req EditTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	update := ledger.TransactionUpdate{Description: req.Description, Category: req.Category, Budget: req.Budget}
	if req.Amount != nil {
		amt, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount", err)
			return
		}
		m := ledger.MoneyFromDecimal(amt)
		update.Amount = &m
	}
	if req.Status != nil {
		st := ledger.Status(*req.Status)
		update.Status = &st
	}
	tx, err := h.Controller.EditFields(r.Context(), id, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func (h *Handler) ChangeDate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var req ChangeDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	newDate, err := ledger.ParseDate(req.DateCreated)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_created", err)
		return
	}
	rows, err := h.Controller.ChangeDate(r.Context(), id, newDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	writeTransactions(w, http.StatusOK, rows)
}

func (h *Handler) CommitTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	tx, err := h.Controller.Commit(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	if err := h.Controller.Delete(r.Context(), []int64{id}); err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	originID := chi.URLParam(r, "originID")
	if err := h.Controller.DeleteGroup(r.Context(), originID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// QUERIES
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.runningBalance(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("summarize") == "true" {
		accounts, err := h.Store.ListAccounts(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		byID := make(map[string]ledger.Account, len(accounts))
		for _, a := range accounts {
			byID[a.ID] = a
		}
		includePlanning := r.URL.Query().Get("include_planning") == "true"
		rows = query.Summarize(rows, byID, includePlanning)
	}

	writeJSON(w, http.StatusOK, toRowDTOs(rows))
}

func (h *Handler) MonthlyMinimums(w http.ResponseWriter, r *http.Request) {
	rows, err := h.runningBalance(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyMinimumDTOs(query.MonthlyMinimums(rows)))
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.runningBalance(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	includeBalance := r.URL.Query().Get("include_balance") != "false"
	if err := query.ExportCSV(w, rows, includeBalance); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("csv export failed")
	}
}

func (h *Handler) runningBalance(r *http.Request) ([]query.Row, error) {
	if h.Cache != nil {
		if cached, _ := h.Cache.GetRunningBalance(r.Context(), "all"); cached != nil {
			return cached, nil
		}
	}
	txs, err := h.Store.ListAll(r.Context())
	if err != nil {
		return nil, err
	}
	rows := query.RunningBalance(txs)
	if h.Cache != nil {
		h.Cache.SetRunningBalance(r.Context(), "all", rows)
	}
	return rows, nil
}

func (h *Handler) invalidateCache(r *http.Request) {
	if h.Cache != nil {
		h.Cache.InvalidateAll(r.Context())
	}
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	exists, err := h.Store.CategoryExists(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "category already exists", nil)
		return
	}
	c := ledger.Category{Name: req.Name, Description: req.Description}
	if err := h.Store.InsertCategory(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.Store.DeleteCategory(r.Context(), name); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured", nil)
		return
	}
	if err := h.Scheduler.RunNow(r.Context(), ledger.Today()); err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BalanceFix(w http.ResponseWriter, r *http.Request) {
	var req BalanceFixRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target, err := decimal.NewFromString(req.TargetTotal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target_total", err)
		return
	}
	tx, err := h.Controller.BalanceFix(r.Context(), req.Account, ledger.MoneyFromDecimal(target), ledger.Today())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	if tx.ID == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func (h *Handler) StatementFix(w http.ResponseWriter, r *http.Request) {
	var req StatementFixRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	month, err := ledger.ParseDate(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month", err)
		return
	}
	total, err := decimal.NewFromString(req.StatementTotal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid statement_total", err)
		return
	}
	tx, err := h.Controller.StatementFix(r.Context(), req.Account, month, ledger.MoneyFromDecimal(total))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.invalidateCache(r)
	if tx.ID == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a ledger error kind to its HTTP status, per
// spec.md §7.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case ledger.IsInvalidRequest(err):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	case ledger.IsInvariantViolation(err):
		log.Error().Err(err).Msg("invariant violation")
		writeError(w, http.StatusInternalServerError, "invariant violation", err)
	default:
		log.Error().Err(err).Msg("store failure")
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body", err)
		return false
	}
	return true
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id", err)
		return 0, false
	}
	return id, true
}

func parseDateOrToday(s string) (ledger.Date, error) {
	if s == "" {
		return ledger.Today(), nil
	}
	return ledger.ParseDate(s)
}

func writeTransactions(w http.ResponseWriter, status int, txs []ledger.Transaction) {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, status, dtos)
}
