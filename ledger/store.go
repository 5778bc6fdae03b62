/*
store.go - Persistence interface (C6.2)

PURPOSE:
  Defines the interface between the engine (budget, controller, forecast,
  query packages) and persistence. Every method behaves as a single
  logical transaction (spec.md §5) — concrete stores (SQLite, in-memory)
  implement this directly; a store that supports true multi-statement
  transactions additionally implements TxStore so the controller can wrap
  a whole collect/mutate/heal cycle atomically.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite-backed Store
  - store/memory: in-memory Store for tests and demos

SEE ALSO:
  - budget, controller, forecast, query: the engine packages built on Store
*/
package ledger

import "context"

// TransactionUpdate is a partial update; nil fields are left untouched.
// NewDate (date-change) is handled structurally by the controller, not
// through this type — see controller.ChangeDate.
type TransactionUpdate struct {
	Description *string
	Amount      *Money
	Category    *string
	Budget      *string
	Status      *Status
}

// SubscriptionUpdate is a partial update over a subscription's mutable
// fields.
type SubscriptionUpdate struct {
	Name               *string
	Category           *string
	MonthlyAmount      *Money
	PaymentAccountID   *string
	EndDate            **Date
	UnderspendBehavior *UnderspendBehavior
}

// Store is the full persistence surface the engine requires.
type Store interface {
	AccountStore
	SubscriptionStore
	TransactionStore
	CategoryStore
	SettingStore
}

type AccountStore interface {
	GetAccount(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}

type SubscriptionStore interface {
	InsertSubscription(ctx context.Context, sub Subscription) error
	GetSubscription(ctx context.Context, id string) (Subscription, error)
	UpdateSubscription(ctx context.Context, id string, update SubscriptionUpdate) error
	DeleteSubscription(ctx context.Context, id string) error
	// ListActiveSubscriptions returns subscriptions active at any point in
	// [windowStart, windowEnd]: start_date <= window_end AND (end_date is
	// null OR end_date >= window_start).
	ListActiveSubscriptions(ctx context.Context, windowStart, windowEnd Date) ([]Subscription, error)
}

type TransactionStore interface {
	InsertTransactions(ctx context.Context, txs []Transaction) ([]Transaction, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListByOrigin(ctx context.Context, originID string) ([]Transaction, error)
	// ListAll returns every transaction ordered by (date_payed, id).
	ListAll(ctx context.Context) ([]Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, update TransactionUpdate) error
	DeleteTransactions(ctx context.Context, ids []int64) error

	// Specialized queries used by §4.3-4.5.

	// GetBudgetAllocation finds the unique allocation row for (budgetID,
	// month): origin_id = budgetID, date_created within month. Returns
	// ErrNotFound if none exists.
	GetBudgetAllocation(ctx context.Context, budgetID string, month Date) (Transaction, error)

	// SumAmountsLinkedToBudget sums |amount| over transactions with
	// budget = budgetID, origin_id != budgetID, date_created in month,
	// and status != Pending (spec.md §4.3's S).
	SumAmountsLinkedToBudget(ctx context.Context, budgetID string, month Date) (Money, error)

	// SumCommittedAmountsLinkedToBudgetByPaymentDate sums |amount| over
	// committed, non-allocation transactions linked to budgetID whose
	// date_payed falls in month (used to pre-seed forecasts, §4.5).
	SumCommittedAmountsLinkedToBudgetByPaymentDate(ctx context.Context, budgetID string, month Date) (Money, error)

	// DeleteAllocationsFrom deletes every allocation row (origin_id =
	// budgetID) with date_created >= fromMonth, regardless of status.
	DeleteAllocationsFrom(ctx context.Context, budgetID string, fromMonth Date) error

	// CommitForecastsOnOrBefore transitions every Forecast row with
	// date_payed <= cutoff to Committed, returning the affected rows.
	CommitForecastsOnOrBefore(ctx context.Context, cutoff Date) ([]Transaction, error)

	// LastForecastMonth returns the latest date_created month among rows
	// with origin_id = subscriptionID, or zero Date if none exist.
	LastForecastMonth(ctx context.Context, subscriptionID string) (Date, bool, error)

	// SumAmountsForAccount sums signed amount over every transaction on
	// accountID whose status is one of statuses (spec.md §4.4.7 balance fix).
	SumAmountsForAccount(ctx context.Context, accountID string, statuses []Status) (Money, error)

	// SumAmountsForAccountOnDate sums signed amount over transactions on
	// accountID whose date_payed equals date and whose status is one of
	// statuses (spec.md §4.4.7 statement fix).
	SumAmountsForAccountOnDate(ctx context.Context, accountID string, date Date, statuses []Status) (Money, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]Category, error)
	InsertCategory(ctx context.Context, c Category) error
	UpdateCategory(ctx context.Context, name, description string) error
	DeleteCategory(ctx context.Context, name string) error
	CategoryExists(ctx context.Context, name string) (bool, error)
}

type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// TxStore wraps Store with atomic multi-step execution. Stores that can't
// support real transactions (e.g. a naive KV store) may omit this; the
// controller falls back to best-effort sequential calls per spec.md §5.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
