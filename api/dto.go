/*
dto.go - HTTP request/response shapes

PURPOSE:
  JSON-friendly mirrors of the ledger domain types. Handlers translate
  between these and ledger.* values; the engine packages never see an
  http.Request.
*/
package api

import (
	"github.com/finflow/cashflow-engine/ledger"
	"github.com/finflow/cashflow-engine/query"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type AccountDTO struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	CutOffDay  int    `json:"cut_off_day,omitempty"`
	PaymentDay int    `json:"payment_day,omitempty"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{ID: a.ID, Kind: string(a.Kind), CutOffDay: a.CutOffDay, PaymentDay: a.PaymentDay}
}

type SubscriptionDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Category           string  `json:"category,omitempty"`
	MonthlyAmount      string  `json:"monthly_amount"`
	PaymentAccountID   string  `json:"payment_account_id"`
	StartDate          string  `json:"start_date"`
	EndDate            *string `json:"end_date,omitempty"`
	IsBudget           bool    `json:"is_budget"`
	IsIncome           bool    `json:"is_income"`
	UnderspendBehavior string  `json:"underspend_behavior,omitempty"`
}

func toSubscriptionDTO(s ledger.Subscription) SubscriptionDTO {
	dto := SubscriptionDTO{
		ID:                 s.ID,
		Name:               s.Name,
		Category:           s.Category,
		MonthlyAmount:      s.MonthlyAmount.String(),
		PaymentAccountID:   s.PaymentAccountID,
		StartDate:          s.StartDate.String(),
		IsBudget:           s.IsBudget,
		IsIncome:           s.IsIncome,
		UnderspendBehavior: string(s.UnderspendBehavior),
	}
	if s.EndDate != nil {
		d := s.EndDate.String()
		dto.EndDate = &d
	}
	return dto
}

type TransactionDTO struct {
	ID          int64  `json:"id"`
	DateCreated string `json:"date_created"`
	DatePayed   string `json:"date_payed"`
	Description string `json:"description"`
	Account     string `json:"account"`
	Amount      string `json:"amount"`
	Category    string `json:"category,omitempty"`
	Budget      string `json:"budget,omitempty"`
	Status      string `json:"status"`
	OriginID    string `json:"origin_id,omitempty"`
	Balance     string `json:"balance,omitempty"`
}

func toTransactionDTO(t ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          t.ID,
		DateCreated: t.DateCreated.String(),
		DatePayed:   t.DatePayed.String(),
		Description: t.Description,
		Account:     t.Account,
		Amount:      t.Amount.String(),
		Category:    t.Category,
		Budget:      t.Budget,
		Status:      string(t.Status),
		OriginID:    t.OriginID,
	}
}

func toRowDTO(r query.Row) TransactionDTO {
	dto := toTransactionDTO(r.Transaction)
	dto.Balance = r.Balance.String()
	return dto
}

func toRowDTOs(rows []query.Row) []TransactionDTO {
	out := make([]TransactionDTO, len(rows))
	for i, r := range rows {
		out[i] = toRowDTO(r)
	}
	return out
}

type MonthlyMinimumDTO struct {
	Month   string `json:"month"`
	Minimum string `json:"minimum"`
	Delta   string `json:"delta"`
}

func toMonthlyMinimumDTOs(mins []query.MonthlyMinimum) []MonthlyMinimumDTO {
	out := make([]MonthlyMinimumDTO, len(mins))
	for i, m := range mins {
		out[i] = MonthlyMinimumDTO{Month: m.Month.String(), Minimum: m.Minimum.String(), Delta: m.Delta.String()}
	}
	return out
}

type BudgetStatusDTO struct {
	Budget     SubscriptionDTO `json:"budget"`
	Month      string          `json:"month"`
	Allocation string          `json:"allocation"`
	IsCapped   bool            `json:"is_capped"`
}

func toBudgetStatusDTOs(snaps []query.BudgetSnapshot) []BudgetStatusDTO {
	out := make([]BudgetStatusDTO, len(snaps))
	for i, s := range snaps {
		out[i] = BudgetStatusDTO{
			Budget:     toSubscriptionDTO(s.Budget),
			Month:      s.Month.String(),
			Allocation: s.Allocation.String(),
			IsCapped:   s.IsCapped,
		}
	}
	return out
}

// ---------------------------------------------------------------------
// Request bodies
// ---------------------------------------------------------------------

type CreateSimpleRequest struct {
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	Account           string `json:"account"`
	Category          string `json:"category"`
	Budget            string `json:"budget"`
	IsIncome          bool   `json:"is_income"`
	IsPending         bool   `json:"is_pending"`
	IsPlanning        bool   `json:"is_planning"`
	GracePeriodMonths int    `json:"grace_period_months"`
	DateCreated       string `json:"date_created"`
}

type CreateInstallmentRequest struct {
	Description          string `json:"description"`
	TotalAmount           string `json:"total_amount"`
	Installments          int    `json:"installments"`
	Account               string `json:"account"`
	Category              string `json:"category"`
	Budget                string `json:"budget"`
	StartFromInstallment  int    `json:"start_from_installment"`
	TotalInstallments     int    `json:"total_installments"`
	GracePeriodMonths     int    `json:"grace_period_months"`
	IsPending             bool   `json:"is_pending"`
	IsPlanning            bool   `json:"is_planning"`
	DateCreated           string `json:"date_created"`
}

type SplitElementRequest struct {
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Budget   string `json:"budget"`
}

type CreateSplitRequest struct {
	Description string                `json:"description"`
	Account     string                `json:"account"`
	Splits      []SplitElementRequest `json:"splits"`
	IsPending   bool                  `json:"is_pending"`
	IsPlanning  bool                  `json:"is_planning"`
	DateCreated string                `json:"date_created"`
}

type EditTransactionRequest struct {
	Description *string `json:"description,omitempty"`
	Amount      *string `json:"amount,omitempty"`
	Category    *string `json:"category,omitempty"`
	Budget      *string `json:"budget,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type ChangeDateRequest struct {
	DateCreated string `json:"date_created"`
}

type ChangeBudgetAmountRequest struct {
	NewAmount     string `json:"new_amount"`
	FromMonth     string `json:"from_month"`
	Retroactive   bool   `json:"retroactive"`
}

type ConvertRequest struct {
	Kind        string                 `json:"kind"`
	Simple      *CreateSimpleRequest   `json:"simple,omitempty"`
	Installment *CreateInstallmentRequest `json:"installment,omitempty"`
	Split       *CreateSplitRequest    `json:"split,omitempty"`
}

type BalanceFixRequest struct {
	Account     string `json:"account"`
	TargetTotal string `json:"target_total"`
}

type StatementFixRequest struct {
	Account         string `json:"account"`
	Month           string `json:"month"`
	StatementTotal  string `json:"statement_total"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
