/*
Package memory provides an in-memory ledger.Store for tests and demos.

Grounded on the teacher's generic/store/memory.go: a sync.RWMutex-guarded
map, sorted by the field queries filter on. Unlike the teacher's
append-only ledger, this store's transactions are fully mutable (the
cash-flow engine edits and deletes rows), so instead of one sorted slice
per key this keeps a flat map by id and computes the needed orderings
on read.

This store does not implement ledger.TxStore: it is single-process and
single-call-path in tests, so the controller's best-effort sequential
fallback (spec.md §5) is sufficient and avoids the ceremony of a real
snapshot/restore transaction.
*/
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/finflow/cashflow-engine/ledger"
)

type Store struct {
	mu sync.RWMutex

	accounts      map[string]ledger.Account
	subscriptions map[string]ledger.Subscription
	transactions  map[int64]ledger.Transaction
	nextID        int64
	categories    map[string]ledger.Category
	settings      map[string]string
}

func New() *Store {
	return &Store{
		accounts:      make(map[string]ledger.Account),
		subscriptions: make(map[string]ledger.Subscription),
		transactions:  make(map[int64]ledger.Transaction),
		categories:    make(map[string]ledger.Category),
		settings:      make(map[string]string),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// PutAccount seeds or replaces an account. Not part of ledger.Store;
// accounts are provisioned out of band (mirrors sqlite.InsertAccount).
func (s *Store) PutAccount(a ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *Store) GetAccount(_ context.Context, id string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, &ledger.NotFoundError{Kind: "account", ID: id}
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func (s *Store) InsertSubscription(_ context.Context, sub ledger.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subscriptions[sub.ID]; exists {
		return &ledger.InvalidRequestError{Reason: "subscription already exists: " + sub.ID}
	}
	s.subscriptions[sub.ID] = sub
	return nil
}

func (s *Store) GetSubscription(_ context.Context, id string) (ledger.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return ledger.Subscription{}, &ledger.NotFoundError{Kind: "subscription", ID: id}
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(_ context.Context, id string, update ledger.SubscriptionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "subscription", ID: id}
	}
	if update.Name != nil {
		sub.Name = *update.Name
	}
	if update.Category != nil {
		sub.Category = *update.Category
	}
	if update.MonthlyAmount != nil {
		sub.MonthlyAmount = *update.MonthlyAmount
	}
	if update.PaymentAccountID != nil {
		sub.PaymentAccountID = *update.PaymentAccountID
	}
	if update.EndDate != nil {
		sub.EndDate = *update.EndDate
	}
	if update.UnderspendBehavior != nil {
		sub.UnderspendBehavior = *update.UnderspendBehavior
	}
	s.subscriptions[id] = sub
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[id]; !ok {
		return &ledger.NotFoundError{Kind: "subscription", ID: id}
	}
	delete(s.subscriptions, id)
	return nil
}

func (s *Store) ListActiveSubscriptions(_ context.Context, windowStart, windowEnd ledger.Date) ([]ledger.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Subscription
	for _, sub := range s.subscriptions {
		if sub.ActiveWithin(windowStart, windowEnd) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) InsertTransactions(_ context.Context, txs []ledger.Transaction) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Transaction, len(txs))
	for i, tx := range txs {
		s.nextID++
		tx.ID = s.nextID
		s.transactions[tx.ID] = tx
		out[i] = tx
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return ledger.Transaction{}, &ledger.NotFoundError{Kind: "transaction", ID: idString(id)}
	}
	return tx, nil
}

func (s *Store) ListByOrigin(_ context.Context, originID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Transaction
	for _, tx := range s.transactions {
		if tx.OriginID == originID {
			out = append(out, tx)
		}
	}
	return sortedByPayedThenID(out), nil
}

func (s *Store) ListAll(_ context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		out = append(out, tx)
	}
	return sortedByPayedThenID(out), nil
}

func sortedByPayedThenID(txs []ledger.Transaction) []ledger.Transaction {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].DatePayed.Equal(txs[j].DatePayed) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].DatePayed.Before(txs[j].DatePayed)
	})
	return txs
}

func (s *Store) UpdateTransaction(_ context.Context, id int64, update ledger.TransactionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "transaction", ID: idString(id)}
	}
	if update.Description != nil {
		tx.Description = *update.Description
	}
	if update.Amount != nil {
		tx.Amount = *update.Amount
	}
	if update.Category != nil {
		tx.Category = *update.Category
	}
	if update.Budget != nil {
		tx.Budget = *update.Budget
	}
	if update.Status != nil {
		tx.Status = *update.Status
	}
	s.transactions[id] = tx
	return nil
}

func (s *Store) DeleteTransactions(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.transactions, id)
	}
	return nil
}

func (s *Store) GetBudgetAllocation(_ context.Context, budgetID string, month ledger.Date) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	month = month.MonthOf()
	var found []ledger.Transaction
	for _, tx := range s.transactions {
		if tx.OriginID == budgetID && tx.Budget == budgetID && tx.DateCreated.MonthOf().Equal(month) {
			found = append(found, tx)
		}
	}
	if len(found) == 0 {
		return ledger.Transaction{}, &ledger.NotFoundError{Kind: "allocation", ID: budgetID + "/" + month.String()}
	}
	if len(found) > 1 {
		return ledger.Transaction{}, &ledger.InvariantViolationError{Reason: "duplicate allocation rows for " + budgetID + "/" + month.String()}
	}
	return found[0], nil
}

func (s *Store) SumAmountsLinkedToBudget(_ context.Context, budgetID string, month ledger.Date) (ledger.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	month = month.MonthOf()
	total := ledger.Zero()
	for _, tx := range s.transactions {
		if tx.Budget == budgetID && tx.OriginID != budgetID && tx.DateCreated.MonthOf().Equal(month) && tx.Status != ledger.StatusPending {
			total = total.Add(tx.Amount.Abs())
		}
	}
	return total, nil
}

func (s *Store) SumCommittedAmountsLinkedToBudgetByPaymentDate(_ context.Context, budgetID string, month ledger.Date) (ledger.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	month = month.MonthOf()
	total := ledger.Zero()
	for _, tx := range s.transactions {
		if tx.Budget == budgetID && tx.OriginID != budgetID && tx.DatePayed.MonthOf().Equal(month) && tx.Status == ledger.StatusCommitted {
			total = total.Add(tx.Amount.Abs())
		}
	}
	return total, nil
}

func (s *Store) DeleteAllocationsFrom(_ context.Context, budgetID string, fromMonth ledger.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromMonth = fromMonth.MonthOf()
	for id, tx := range s.transactions {
		if tx.OriginID == budgetID && tx.Budget == budgetID && tx.DateCreated.MonthOf().AfterOrEqual(fromMonth) {
			delete(s.transactions, id)
		}
	}
	return nil
}

func (s *Store) CommitForecastsOnOrBefore(_ context.Context, cutoff ledger.Date) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var committed []ledger.Transaction
	for id, tx := range s.transactions {
		if tx.Status == ledger.StatusForecast && tx.DatePayed.BeforeOrEqual(cutoff) {
			tx.Status = ledger.StatusCommitted
			s.transactions[id] = tx
			committed = append(committed, tx)
		}
	}
	return sortedByPayedThenID(committed), nil
}

func statusIn(s ledger.Status, statuses []ledger.Status) bool {
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

func (s *Store) SumAmountsForAccount(_ context.Context, accountID string, statuses []ledger.Status) (ledger.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := ledger.Zero()
	for _, tx := range s.transactions {
		if tx.Account == accountID && statusIn(tx.Status, statuses) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (s *Store) SumAmountsForAccountOnDate(_ context.Context, accountID string, date ledger.Date, statuses []ledger.Status) (ledger.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := ledger.Zero()
	for _, tx := range s.transactions {
		if tx.Account == accountID && tx.DatePayed.Equal(date) && statusIn(tx.Status, statuses) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (s *Store) LastForecastMonth(_ context.Context, subscriptionID string) (ledger.Date, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max ledger.Date
	found := false
	for _, tx := range s.transactions {
		if tx.OriginID != subscriptionID {
			continue
		}
		if !found || tx.DateCreated.After(max) {
			max = tx.DateCreated
			found = true
		}
	}
	if !found {
		return ledger.Date{}, false, nil
	}
	return max.MonthOf(), true, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (s *Store) ListCategories(_ context.Context) ([]ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertCategory(_ context.Context, c ledger.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.categories[c.Name]; exists {
		return &ledger.InvalidRequestError{Reason: "category already exists: " + c.Name}
	}
	s.categories[c.Name] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[name]
	if !ok {
		return &ledger.NotFoundError{Kind: "category", ID: name}
	}
	c.Description = description
	s.categories[name] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[name]; !ok {
		return &ledger.NotFoundError{Kind: "category", ID: name}
	}
	delete(s.categories, name)
	return nil
}

func (s *Store) CategoryExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.categories[name]
	return ok, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *Store) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
