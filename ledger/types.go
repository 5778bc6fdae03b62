/*
types.go - Core domain types for the cash-flow ledger

PURPOSE:
  Accounts, subscriptions, transactions, categories and settings — the
  five persisted collections described in the data model. This package
  has no notion of "budget math" or "forecasting"; it only knows how to
  represent a dated monetary movement and derive its payment date.

KEY CONCEPTS:
  - Money: a signed decimal amount (negative = outflow, positive = inflow)
  - Account: cash or credit-card-with-billing-cycle
  - Subscription: a recurring obligation or budget envelope
  - Transaction: a single ledger row; groups (installments/splits/
    subscriptions) are derived from shared OriginID, not a separate table

SEE ALSO:
  - payment.go: the billing-cycle simulator (C1)
  - factory.go: builds Transaction rows from typed requests (C2)
  - store.go: the persistence interface the rest of the engine is built on
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// Money is a signed decimal quantity. Negative values are outflows,
// positive values are inflows — there is a single currency and no
// conversion (see spec Non-goals).
type Money struct {
	Value decimal.Decimal
}

func NewMoney(v float64) Money                { return Money{Value: decimal.NewFromFloat(v)} }
func MoneyFromDecimal(v decimal.Decimal) Money { return Money{Value: v} }
func Zero() Money                             { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money       { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money       { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money              { return Money{Value: m.Value.Neg()} }
func (m Money) Abs() Money              { return Money{Value: m.Value.Abs()} }
func (m Money) IsZero() bool            { return m.Value.IsZero() }
func (m Money) IsNegative() bool        { return m.Value.IsNegative() }
func (m Money) IsPositive() bool        { return m.Value.IsPositive() }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool    { return m.Value.LessThan(o.Value) }
func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}
func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}
func (m Money) Round(places int32) Money { return Money{Value: m.Value.Round(places)} }
func (m Money) DivInt(n int) Money {
	return Money{Value: m.Value.DivRound(decimal.NewFromInt(int64(n)), 2)}
}
func (m Money) String() string { return m.Value.StringFixed(2) }

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountKind string

const (
	AccountCash       AccountKind = "cash"
	AccountCreditCard AccountKind = "credit_card"
)

// Account identifies an unsecured cash pool or a credit card with a billing
// cycle. CutOffDay/PaymentDay are both 1..31 and only meaningful for
// AccountCreditCard.
type Account struct {
	ID         string
	Kind       AccountKind
	CutOffDay  int
	PaymentDay int
}

// Validate enforces the invariant that credit cards carry both cycle days
// and cash accounts carry neither.
func (a Account) Validate() error {
	switch a.Kind {
	case AccountCreditCard:
		if a.CutOffDay < 1 || a.CutOffDay > 31 || a.PaymentDay < 1 || a.PaymentDay > 31 {
			return &InvalidRequestError{Reason: "credit card account requires cut_off_day and payment_day in 1..31"}
		}
	case AccountCash:
		if a.CutOffDay != 0 || a.PaymentDay != 0 {
			return &InvalidRequestError{Reason: "cash account must not set cut_off_day or payment_day"}
		}
	default:
		return &InvalidRequestError{Reason: "unknown account kind: " + string(a.Kind)}
	}
	return nil
}

// =============================================================================
// SUBSCRIPTIONS (recurring obligations and budget envelopes)
// =============================================================================

type UnderspendBehavior string

const (
	UnderspendKeep   UnderspendBehavior = "keep"
	UnderspendReturn UnderspendBehavior = "return"
)

// Subscription is a recurring monthly obligation, income, or (when IsBudget)
// a spending envelope. Its ID conventionally starts with "sub_" or
// "budget_" but the engine does not enforce the prefix, only the
// IsBudget/IsIncome exclusivity.
type Subscription struct {
	ID                 string
	Name               string
	Category           string
	MonthlyAmount      Money // always positive; sign applied by IsIncome
	PaymentAccountID   string
	StartDate          Date
	EndDate             *Date
	IsBudget           bool
	IsIncome           bool
	UnderspendBehavior UnderspendBehavior
}

func (s Subscription) Validate() error {
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return &InvalidRequestError{Reason: "subscription end_date before start_date"}
	}
	if s.IsBudget && s.IsIncome {
		return &InvalidRequestError{Reason: "subscription cannot be both a budget and income"}
	}
	if s.MonthlyAmount.IsNegative() || s.MonthlyAmount.IsZero() {
		return &InvalidRequestError{Reason: "subscription monthly_amount must be positive"}
	}
	return nil
}

// ActiveWithin reports whether the subscription is live at any point within
// [windowStart, windowEnd] — used by store.ListActiveSubscriptions.
func (s Subscription) ActiveWithin(windowStart, windowEnd Date) bool {
	if s.StartDate.After(windowEnd) {
		return false
	}
	if s.EndDate != nil && s.EndDate.Before(windowStart) {
		return false
	}
	return true
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type Status string

const (
	StatusCommitted Status = "committed"
	StatusPending   Status = "pending"
	StatusForecast  Status = "forecast"
	StatusPlanning  Status = "planning"
)

// ContributesToBalance reports whether rows in this status count toward the
// running balance. Per spec.md §3: only Pending is excluded.
func (s Status) ContributesToBalance() bool { return s != StatusPending }

// ContributesToBudget reports whether rows in this status count toward a
// budget's spend total. Per spec.md §4.3/§9: only Pending is excluded
// (Planning counts — the literal, if debated, source behavior).
func (s Status) ContributesToBudget() bool { return s != StatusPending }

// strength orders statuses for the credit-card summary mode
// (Committed > Pending > Planning > Forecast).
func (s Status) strength() int {
	switch s {
	case StatusCommitted:
		return 3
	case StatusPending:
		return 2
	case StatusPlanning:
		return 1
	case StatusForecast:
		return 0
	default:
		return -1
	}
}

// StrongestStatus returns the strongest status present, per the ordering
// Committed > Pending > Planning > Forecast.
func StrongestStatus(statuses []Status) Status {
	best := Status("")
	bestStrength := -2
	for _, s := range statuses {
		if s.strength() > bestStrength {
			bestStrength = s.strength()
			best = s
		}
	}
	return best
}

// GroupKind classifies a set of transactions sharing an OriginID.
type GroupKind string

const (
	GroupSimple       GroupKind = "simple"
	GroupSubscription GroupKind = "subscription"
	GroupSplit        GroupKind = "split"
	GroupInstallment  GroupKind = "installment"
)

// Transaction is a single ledger row. ID is store-assigned (0 means unset,
// pending insertion).
type Transaction struct {
	ID           int64
	DateCreated  Date // purchase date
	DatePayed    Date // cash-impact date, derived via the payment simulator
	Description  string
	Account      string // FK -> Account.ID
	Amount       Money  // signed: negative outflow, positive inflow
	Category     string // optional, "" means unset
	Budget       string // optional FK -> Subscription.ID, "" means unset
	Status       Status
	OriginID     string // optional; links siblings of a group or names a subscription
}

// HasBudget reports whether this row is linked to a budget envelope.
func (t Transaction) HasBudget() bool { return t.Budget != "" }

// IsAllocationRow reports whether t IS the allocation row for its own
// budget (origin_id == budget id), as opposed to an ordinary expense that
// merely links to a budget.
func (t Transaction) IsAllocationRow() bool {
	return t.HasBudget() && t.OriginID == t.Budget
}

// ClassifyGroup infers the GroupKind of a set of sibling transactions that
// share one OriginID, per spec.md §3's derivation rules. isSubscriptionID
// reports whether an ID names a known subscription (a group whose OriginID
// is one is a Subscription group regardless of date_payed topology).
func ClassifyGroup(originID string, siblings []Transaction, isSubscriptionID func(string) bool) GroupKind {
	if originID == "" {
		return GroupSimple
	}
	if isSubscriptionID != nil && isSubscriptionID(originID) {
		return GroupSubscription
	}
	if len(siblings) <= 1 {
		return GroupSimple
	}
	first := siblings[0].DatePayed
	allSame := true
	for _, s := range siblings[1:] {
		if !s.DatePayed.Equal(first) {
			allSame = false
			break
		}
	}
	if allSame {
		return GroupSplit
	}
	return GroupInstallment
}

// =============================================================================
// CATEGORIES & SETTINGS
// =============================================================================

type Category struct {
	Name        string
	Description string
}

// SettingForecastHorizonMonths is the only setting key the core defines.
const SettingForecastHorizonMonths = "forecast_horizon_months"

const DefaultForecastHorizonMonths = 6
