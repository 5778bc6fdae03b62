/*
factory.go - Transaction factory (C2)

PURPOSE:
  Builds one or more Transaction records from a typed request (spec.md
  §6.1's tagged union). Pure and side-effect free: callers insert the
  returned rows via the Store themselves.

REQUEST KINDS:
  SimpleRequest      -> BuildSingle:      one row
  InstallmentRequest -> BuildInstallment: N rows sharing a fresh OriginID
  SplitRequest       -> BuildSplit:       one row per split element, sharing
                                          a fresh OriginID and one date_payed
  (Subscription, ...) -> BuildRecurrent:  one Forecast row per month,
                                          OriginID = subscription ID

All tie-breaks are deterministic; N, M, K must be > 0.
*/
package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// NewGroupID mints a fresh origin_id for an installment or split group.
func NewGroupID() string {
	return "grp_" + uuid.NewString()
}

// SimpleRequest builds one Transaction (spec.md §4.2 build_single).
type SimpleRequest struct {
	Description       string
	Amount             Money // unsigned magnitude
	Account            string
	Category           string
	Budget             string
	IsIncome           bool
	IsPending          bool
	IsPlanning         bool
	GracePeriodMonths  int
	DateCreated        Date
}

func statusFor(isPending, isPlanning bool) Status {
	switch {
	case isPending:
		return StatusPending
	case isPlanning:
		return StatusPlanning
	default:
		return StatusCommitted
	}
}

func signedAmount(magnitude Money, isIncome bool) Money {
	mag := magnitude.Abs()
	if isIncome {
		return mag
	}
	return mag.Neg()
}

// BuildSingle implements spec.md §4.2 build_single.
func BuildSingle(req SimpleRequest, account Account) ([]Transaction, error) {
	if req.Amount.IsZero() {
		return nil, &InvalidRequestError{Reason: "amount must be non-zero"}
	}
	datePayed := SimulatePaymentDate(account, req.DateCreated, req.GracePeriodMonths)
	tx := Transaction{
		DateCreated: req.DateCreated,
		DatePayed:   datePayed,
		Description: req.Description,
		Account:     account.ID,
		Amount:      signedAmount(req.Amount, req.IsIncome),
		Category:    req.Category,
		Budget:      req.Budget,
		Status:      statusFor(req.IsPending, req.IsPlanning),
	}
	return []Transaction{tx}, nil
}

// InstallmentRequest builds N sibling transactions sharing one origin_id.
type InstallmentRequest struct {
	Description          string
	TotalAmount           Money // unsigned magnitude
	Installments          int   // N: how many rows to actually create
	Account               string
	Category              string
	Budget                string
	StartFromInstallment  int // 1-indexed; default 1
	TotalInstallments     int // K: denominator for per-installment amount; default = Installments
	GracePeriodMonths     int
	IsPending             bool
	IsPlanning            bool
	DateCreated           Date
}

// BuildInstallment implements spec.md §4.2 build_installment.
func BuildInstallment(req InstallmentRequest, account Account) ([]Transaction, error) {
	if req.Installments <= 0 {
		return nil, &InvalidRequestError{Reason: "installments must be > 0"}
	}
	if req.TotalAmount.IsZero() {
		return nil, &InvalidRequestError{Reason: "total_amount must be non-zero"}
	}
	startFrom := req.StartFromInstallment
	if startFrom <= 0 {
		startFrom = 1
	}
	k := req.TotalInstallments
	if k <= 0 {
		k = req.Installments
	}

	perInstallment := req.TotalAmount.Abs().DivInt(k)
	status := statusFor(req.IsPending, req.IsPlanning)
	originID := NewGroupID()

	var txs []Transaction
	for i := 0; i < req.Installments; i++ {
		n := startFrom + i
		if n > k {
			break // series truncates past K, per spec.md §4.2
		}
		purchaseDate := req.DateCreated.AddMonths(i + req.GracePeriodMonths)
		datePayed := SimulatePaymentDate(account, purchaseDate, 0)
		txs = append(txs, Transaction{
			DateCreated: purchaseDate,
			DatePayed:   datePayed,
			Description: fmt.Sprintf("%s (%d/%d)", req.Description, n, k),
			Account:     account.ID,
			Amount:      perInstallment.Neg(), // installments are always outflows
			Category:    req.Category,
			Budget:      req.Budget,
			Status:      status,
			OriginID:    originID,
		})
	}
	return txs, nil
}

// SplitElement is one line of a split transaction.
type SplitElement struct {
	Amount   Money // unsigned magnitude
	Category string
	Budget   string
}

// SplitRequest builds one row per element, all sharing date_created (and
// therefore date_payed) and a fresh origin_id.
type SplitRequest struct {
	Description string
	Account     string
	Splits      []SplitElement
	IsPending   bool
	IsPlanning  bool
	DateCreated Date
}

// BuildSplit implements spec.md §4.2 build_split.
func BuildSplit(req SplitRequest, account Account) ([]Transaction, error) {
	if len(req.Splits) == 0 {
		return nil, &InvalidRequestError{Reason: "split requires at least one element"}
	}
	datePayed := SimulatePaymentDate(account, req.DateCreated, 0)
	status := statusFor(req.IsPending, req.IsPlanning)
	originID := NewGroupID()

	txs := make([]Transaction, 0, len(req.Splits))
	for _, el := range req.Splits {
		if el.Amount.IsZero() {
			return nil, &InvalidRequestError{Reason: "split element amount must be non-zero"}
		}
		txs = append(txs, Transaction{
			DateCreated: req.DateCreated,
			DatePayed:   datePayed,
			Description: req.Description,
			Account:     account.ID,
			Amount:      el.Amount.Abs().Neg(),
			Category:    el.Category,
			Budget:      el.Budget,
			Status:      status,
			OriginID:    originID,
		})
	}
	return txs, nil
}

// ConvertRequest rebuilds a group as a (possibly different) kind. Kind
// selects which of the three sub-requests is populated; used by the final
// add step of spec.md §4.4.5's convert/date-change procedure.
type ConvertRequest struct {
	Kind        GroupKind
	Simple      *SimpleRequest
	Installment *InstallmentRequest
	Split       *SplitRequest
}

// BuildFromConvert dispatches to the BuildX matching req.Kind. Subscription
// groups are never converted (the controller rejects them before this is
// reached).
func BuildFromConvert(req ConvertRequest, account Account) ([]Transaction, error) {
	switch req.Kind {
	case GroupSimple:
		if req.Simple == nil {
			return nil, &InvalidRequestError{Reason: "convert to simple requires a simple request"}
		}
		return BuildSingle(*req.Simple, account)
	case GroupInstallment:
		if req.Installment == nil {
			return nil, &InvalidRequestError{Reason: "convert to installment requires an installment request"}
		}
		return BuildInstallment(*req.Installment, account)
	case GroupSplit:
		if req.Split == nil {
			return nil, &InvalidRequestError{Reason: "convert to split requires a split request"}
		}
		return BuildSplit(*req.Split, account)
	default:
		return nil, &InvalidRequestError{Reason: "unsupported convert target kind: " + string(req.Kind)}
	}
}

// BuildRecurrent implements spec.md §4.2 build_recurrent: one Forecast row
// per month in [startMonth, endMonth] whose day equals the subscription's
// start-date day (clamped to month-end). initialAmountByMonth, keyed by
// month.String(), overrides sub.MonthlyAmount's signed value for that
// month when present — used by the forecast scheduler (§4.5) to seed
// allocations against already-committed future expenses.
func BuildRecurrent(sub Subscription, account Account, startMonth, endMonth Date, initialAmountByMonth map[string]Money) ([]Transaction, error) {
	if startMonth.After(endMonth) {
		return nil, nil
	}
	anchorDay := sub.StartDate.Day()
	var txs []Transaction
	for _, month := range MonthRange(startMonth, endMonth) {
		dateCreated := month.WithDay(anchorDay)
		datePayed := SimulatePaymentDate(account, dateCreated, 0)

		amount := signedAmount(sub.MonthlyAmount, sub.IsIncome)
		if override, ok := initialAmountByMonth[month.String()]; ok {
			amount = override
		}

		budget := ""
		if sub.IsBudget {
			budget = sub.ID
		}

		txs = append(txs, Transaction{
			DateCreated: dateCreated,
			DatePayed:   datePayed,
			Description: sub.Name,
			Account:     account.ID,
			Amount:      amount,
			Category:    sub.Category,
			Budget:      budget,
			Status:      StatusForecast,
			OriginID:    sub.ID,
		})
	}
	return txs, nil
}
