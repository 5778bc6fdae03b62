/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

KEY TABLES:
  accounts:      cash pools and credit cards with billing cycles
  subscriptions: recurring obligations, income, and budget envelopes
  transactions:  every ledger row, including allocation and forecast rows
  categories:    free-form spend categories
  settings:      key/value config, one row per key (forecast horizon, ...)

INDEXES:
  idx_transactions_date_payed             - running balance / projections (hot path)
  idx_transactions_budget_date_created    - budget recalculation (hot path)
  idx_transactions_origin_id              - group lookups (installments, splits, subscriptions)

WAL MODE:
  Opened with WAL for concurrent readers and crash-safe writes, same as
  the teacher's store.

MIGRATION:
  Schema is auto-migrated on New(). A production deployment with heavier
  change cadence would reach for golang-migrate/goose instead.

SEE ALSO:
  - ledger/store.go: the interface this implements
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/finflow/cashflow-engine/ledger"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ledger.Store and ledger.TxStore over SQLite.
type Store struct {
	db   *sql.DB
	conn execer
	mu   sync.RWMutex
}

// New opens (and migrates) a SQLite-backed Store. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db, conn: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		cut_off_day INTEGER NOT NULL DEFAULT 0,
		payment_day INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		monthly_amount TEXT NOT NULL,
		payment_account_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		is_budget INTEGER NOT NULL DEFAULT 0,
		is_income INTEGER NOT NULL DEFAULT 0,
		underspend_behavior TEXT NOT NULL DEFAULT 'keep'
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date_created TEXT NOT NULL,
		date_payed TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		account TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		budget TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		origin_id TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date_payed
		ON transactions(date_payed, id);
	CREATE INDEX IF NOT EXISTS idx_transactions_budget_date_created
		ON transactions(budget, date_created) WHERE budget != '';
	CREATE INDEX IF NOT EXISTS idx_transactions_origin_id
		ON transactions(origin_id) WHERE origin_id != '';
	CREATE INDEX IF NOT EXISTS idx_transactions_status
		ON transactions(status);

	CREATE TABLE IF NOT EXISTS categories (
		name TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx implements ledger.TxStore: fn runs against a *sql.Tx-backed
// Store, committed if fn returns nil, rolled back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StoreFailureError{Op: "begin_tx", Err: err}
	}
	child := &Store{db: s.db, conn: tx}
	if err := fn(child); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &ledger.StoreFailureError{Op: "commit_tx", Err: err}
	}
	return nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT id, kind, cut_off_day, payment_day FROM accounts WHERE id = ?`, id)
	var a ledger.Account
	var kind string
	if err := row.Scan(&a.ID, &kind, &a.CutOffDay, &a.PaymentDay); err != nil {
		if err == sql.ErrNoRows {
			return ledger.Account{}, &ledger.NotFoundError{Kind: "account", ID: id}
		}
		return ledger.Account{}, &ledger.StoreFailureError{Op: "get_account", Err: err}
	}
	a.Kind = ledger.AccountKind(kind)
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, kind, cut_off_day, payment_day FROM accounts ORDER BY id`)
	if err != nil {
		return nil, &ledger.StoreFailureError{Op: "list_accounts", Err: err}
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		var a ledger.Account
		var kind string
		if err := rows.Scan(&a.ID, &kind, &a.CutOffDay, &a.PaymentDay); err != nil {
			return nil, &ledger.StoreFailureError{Op: "list_accounts", Err: err}
		}
		a.Kind = ledger.AccountKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAccount is not part of ledger.Store (accounts are provisioned
// out of band) but is exposed for seeding and cmd/server bootstrap.
func (s *Store) InsertAccount(ctx context.Context, a ledger.Account) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, kind, cut_off_day, payment_day) VALUES (?, ?, ?, ?)`,
		a.ID, string(a.Kind), a.CutOffDay, a.PaymentDay,
	)
	if err != nil {
		return &ledger.StoreFailureError{Op: "insert_account", Err: err}
	}
	return nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func (s *Store) InsertSubscription(ctx context.Context, sub ledger.Subscription) error {
	var endDate any
	if sub.EndDate != nil {
		endDate = sub.EndDate.String()
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO subscriptions
		 (id, name, category, monthly_amount, payment_account_id, start_date, end_date, is_budget, is_income, underspend_behavior)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.Category, sub.MonthlyAmount.Value.String(), sub.PaymentAccountID,
		sub.StartDate.String(), endDate, boolToInt(sub.IsBudget), boolToInt(sub.IsIncome), string(sub.UnderspendBehavior),
	)
	if err != nil {
		return &ledger.StoreFailureError{Op: "insert_subscription", Err: err}
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, id string) (ledger.Subscription, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, category, monthly_amount, payment_account_id, start_date, end_date, is_budget, is_income, underspend_behavior
		 FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return ledger.Subscription{}, &ledger.NotFoundError{Kind: "subscription", ID: id}
		}
		return ledger.Subscription{}, &ledger.StoreFailureError{Op: "get_subscription", Err: err}
	}
	return sub, nil
}

func scanSubscription(row *sql.Row) (ledger.Subscription, error) {
	var sub ledger.Subscription
	var monthlyAmount, startDate, underspend string
	var endDate sql.NullString
	var isBudget, isIncome int
	if err := row.Scan(&sub.ID, &sub.Name, &sub.Category, &monthlyAmount, &sub.PaymentAccountID,
		&startDate, &endDate, &isBudget, &isIncome, &underspend); err != nil {
		return ledger.Subscription{}, err
	}
	amt, _ := decimal.NewFromString(monthlyAmount)
	sub.MonthlyAmount = ledger.MoneyFromDecimal(amt)
	sub.StartDate, _ = ledger.ParseDate(startDate)
	if endDate.Valid {
		d, _ := ledger.ParseDate(endDate.String)
		sub.EndDate = &d
	}
	sub.IsBudget = isBudget != 0
	sub.IsIncome = isIncome != 0
	sub.UnderspendBehavior = ledger.UnderspendBehavior(underspend)
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, id string, update ledger.SubscriptionUpdate) error {
	sets := []string{}
	args := []any{}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *update.Category)
	}
	if update.MonthlyAmount != nil {
		sets = append(sets, "monthly_amount = ?")
		args = append(args, update.MonthlyAmount.Value.String())
	}
	if update.PaymentAccountID != nil {
		sets = append(sets, "payment_account_id = ?")
		args = append(args, *update.PaymentAccountID)
	}
	if update.EndDate != nil {
		sets = append(sets, "end_date = ?")
		if *update.EndDate == nil {
			args = append(args, nil)
		} else {
			args = append(args, (*update.EndDate).String())
		}
	}
	if update.UnderspendBehavior != nil {
		sets = append(sets, "underspend_behavior = ?")
		args = append(args, string(*update.UnderspendBehavior))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE subscriptions SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return &ledger.StoreFailureError{Op: "update_subscription", Err: err}
	}
	return checkRowAffected(res, "subscription", id)
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return &ledger.StoreFailureError{Op: "delete_subscription", Err: err}
	}
	return checkRowAffected(res, "subscription", id)
}

func (s *Store) ListActiveSubscriptions(ctx context.Context, windowStart, windowEnd ledger.Date) ([]ledger.Subscription, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, category, monthly_amount, payment_account_id, start_date, end_date, is_budget, is_income, underspend_behavior
		 FROM subscriptions
		 WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		 ORDER BY id`, windowEnd.String(), windowStart.String())
	if err != nil {
		return nil, &ledger.StoreFailureError{Op: "list_active_subscriptions", Err: err}
	}
	defer rows.Close()

	var out []ledger.Subscription
	for rows.Next() {
		var sub ledger.Subscription
		var monthlyAmount, startDate, underspend string
		var endDate sql.NullString
		var isBudget, isIncome int
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Category, &monthlyAmount, &sub.PaymentAccountID,
			&startDate, &endDate, &isBudget, &isIncome, &underspend); err != nil {
			return nil, &ledger.StoreFailureError{Op: "list_active_subscriptions", Err: err}
		}
		amt, _ := decimal.NewFromString(monthlyAmount)
		sub.MonthlyAmount = ledger.MoneyFromDecimal(amt)
		sub.StartDate, _ = ledger.ParseDate(startDate)
		if endDate.Valid {
			d, _ := ledger.ParseDate(endDate.String)
			sub.EndDate = &d
		}
		sub.IsBudget = isBudget != 0
		sub.IsIncome = isIncome != 0
		sub.UnderspendBehavior = ledger.UnderspendBehavior(underspend)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) InsertTransactions(ctx context.Context, txs []ledger.Transaction) ([]ledger.Transaction, error) {
	out := make([]ledger.Transaction, len(txs))
	for i, tx := range txs {
		res, err := s.conn.ExecContext(ctx,
			`INSERT INTO transactions (date_created, date_payed, description, account, amount, category, budget, status, origin_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.DateCreated.String(), tx.DatePayed.String(), tx.Description, tx.Account,
			tx.Amount.Value.String(), tx.Category, tx.Budget, string(tx.Status), tx.OriginID,
		)
		if err != nil {
			return nil, &ledger.StoreFailureError{Op: "insert_transaction", Err: err}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, &ledger.StoreFailureError{Op: "insert_transaction", Err: err}
		}
		tx.ID = id
		out[i] = tx
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, date_created, date_payed, description, account, amount, category, budget, status, origin_id
		 FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return ledger.Transaction{}, &ledger.NotFoundError{Kind: "transaction", ID: fmt.Sprint(id)}
		}
		return ledger.Transaction{}, &ledger.StoreFailureError{Op: "get_transaction", Err: err}
	}
	return tx, nil
}

func scanTransaction(row *sql.Row) (ledger.Transaction, error) {
	var tx ledger.Transaction
	var dateCreated, datePayed, amount, status string
	if err := row.Scan(&tx.ID, &dateCreated, &datePayed, &tx.Description, &tx.Account,
		&amount, &tx.Category, &tx.Budget, &status, &tx.OriginID); err != nil {
		return ledger.Transaction{}, err
	}
	tx.DateCreated, _ = ledger.ParseDate(dateCreated)
	tx.DatePayed, _ = ledger.ParseDate(datePayed)
	amt, _ := decimal.NewFromString(amount)
	tx.Amount = ledger.MoneyFromDecimal(amt)
	tx.Status = ledger.Status(status)
	return tx, nil
}

func scanTransactionRows(rows *sql.Rows) (ledger.Transaction, error) {
	var tx ledger.Transaction
	var dateCreated, datePayed, amount, status string
	if err := rows.Scan(&tx.ID, &dateCreated, &datePayed, &tx.Description, &tx.Account,
		&amount, &tx.Category, &tx.Budget, &status, &tx.OriginID); err != nil {
		return ledger.Transaction{}, err
	}
	tx.DateCreated, _ = ledger.ParseDate(dateCreated)
	tx.DatePayed, _ = ledger.ParseDate(datePayed)
	amt, _ := decimal.NewFromString(amount)
	tx.Amount = ledger.MoneyFromDecimal(amt)
	tx.Status = ledger.Status(status)
	return tx, nil
}

const transactionColumns = `id, date_created, date_payed, description, account, amount, category, budget, status, origin_id`

func (s *Store) ListByOrigin(ctx context.Context, originID string) ([]ledger.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE origin_id = ? ORDER BY date_payed, id`, originID)
	if err != nil {
		return nil, &ledger.StoreFailureError{Op: "list_by_origin", Err: err}
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *Store) ListAll(ctx context.Context) ([]ledger.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY date_payed, id`)
	if err != nil {
		return nil, &ledger.StoreFailureError{Op: "list_all", Err: err}
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransactionRows(rows)
		if err != nil {
			return nil, &ledger.StoreFailureError{Op: "scan_transaction", Err: err}
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTransaction(ctx context.Context, id int64, update ledger.TransactionUpdate) error {
	sets := []string{}
	args := []any{}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, update.Amount.Value.String())
	}
	if update.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *update.Category)
	}
	if update.Budget != nil {
		sets = append(sets, "budget = ?")
		args = append(args, *update.Budget)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE transactions SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return &ledger.StoreFailureError{Op: "update_transaction", Err: err}
	}
	return checkRowAffected(res, "transaction", fmt.Sprint(id))
}

func (s *Store) DeleteTransactions(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM transactions WHERE id IN (%s)", strings.Join(placeholders, ", "))
	_, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return &ledger.StoreFailureError{Op: "delete_transactions", Err: err}
	}
	return nil
}

func (s *Store) GetBudgetAllocation(ctx context.Context, budgetID string, month ledger.Date) (ledger.Transaction, error) {
	monthStart := month.MonthOf()
	monthEnd := monthStart.NextMonth()
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE origin_id = ? AND budget = ? AND date_created >= ? AND date_created < ?`,
		budgetID, budgetID, monthStart.String(), monthEnd.String())
	if err != nil {
		return ledger.Transaction{}, &ledger.StoreFailureError{Op: "get_budget_allocation", Err: err}
	}
	defer rows.Close()

	found, err := collectTransactions(rows)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if len(found) == 0 {
		return ledger.Transaction{}, &ledger.NotFoundError{Kind: "allocation", ID: fmt.Sprintf("%s/%s", budgetID, monthStart)}
	}
	if len(found) > 1 {
		return ledger.Transaction{}, &ledger.InvariantViolationError{Reason: fmt.Sprintf("duplicate allocation rows for budget %s in %s", budgetID, monthStart)}
	}
	return found[0], nil
}

func (s *Store) SumAmountsLinkedToBudget(ctx context.Context, budgetID string, month ledger.Date) (ledger.Money, error) {
	monthStart := month.MonthOf()
	monthEnd := monthStart.NextMonth()
	return scanSumPrecise(ctx, s.conn,
		`SELECT amount FROM transactions WHERE budget = ? AND origin_id != ? AND date_created >= ? AND date_created < ? AND status != ?`,
		budgetID, budgetID, monthStart.String(), monthEnd.String(), string(ledger.StatusPending))
}

func (s *Store) SumCommittedAmountsLinkedToBudgetByPaymentDate(ctx context.Context, budgetID string, month ledger.Date) (ledger.Money, error) {
	monthStart := month.MonthOf()
	monthEnd := monthStart.NextMonth()
	return scanSumPrecise(ctx, s.conn,
		`SELECT amount FROM transactions WHERE budget = ? AND origin_id != ? AND date_payed >= ? AND date_payed < ? AND status = ?`,
		budgetID, budgetID, monthStart.String(), monthEnd.String(), string(ledger.StatusCommitted))
}

// scanSumPrecise sums |amount| using decimal arithmetic rather than
// SQLite's floating-point SUM(), since spec.md's money model must never
// lose cents to float rounding.
func scanSumPrecise(ctx context.Context, conn execer, query string, args ...any) (ledger.Money, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.Money{}, &ledger.StoreFailureError{Op: "sum_amounts", Err: err}
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return ledger.Money{}, &ledger.StoreFailureError{Op: "sum_amounts", Err: err}
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return ledger.Money{}, &ledger.StoreFailureError{Op: "sum_amounts", Err: err}
		}
		total = total.Add(d.Abs())
	}
	if err := rows.Err(); err != nil {
		return ledger.Money{}, &ledger.StoreFailureError{Op: "sum_amounts", Err: err}
	}
	return ledger.MoneyFromDecimal(total), nil
}

func (s *Store) SumAmountsForAccount(ctx context.Context, accountID string, statuses []ledger.Status) (ledger.Money, error) {
	placeholders, statusArgs := statusPlaceholders(statuses)
	query := `SELECT amount FROM transactions WHERE account = ? AND status IN (` + placeholders + `)`
	args := append([]any{accountID}, statusArgs...)
	return scanSumSigned(ctx, s.conn, query, args...)
}

func (s *Store) SumAmountsForAccountOnDate(ctx context.Context, accountID string, date ledger.Date, statuses []ledger.Status) (ledger.Money, error) {
	placeholders, statusArgs := statusPlaceholders(statuses)
	query := `SELECT amount FROM transactions WHERE account = ? AND date_payed = ? AND status IN (` + placeholders + `)`
	args := append([]any{accountID, date.String()}, statusArgs...)
	return scanSumSigned(ctx, s.conn, query, args...)
}

func statusPlaceholders(statuses []ledger.Status) (string, []any) {
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args[i] = string(st)
	}
	return strings.Join(placeholders, ", "), args
}

// scanSumSigned sums amount as-is (no Abs), using decimal arithmetic rather
// than SQLite's floating-point SUM(). Unlike scanSumPrecise's budget-spend
// callers, balance/statement fix math depends on the sign of the total.
func scanSumSigned(ctx context.Context, conn execer, query string, args ...any) (ledger.Money, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.Money{}, &ledger.StoreFailureError{Op: "sum_amounts_signed", Err: err}
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return ledger.Money{}, &ledger.StoreFailureError{Op: "sum_amounts_signed", Err: err}
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return ledger.Money{}, &ledger.StoreFailureError{Op: "sum_amounts_signed", Err: err}
		}
		total = total.Add(d)
	}
	if err := rows.Err(); err != nil {
		return ledger.Money{}, &ledger.StoreFailureError{Op: "sum_amounts_signed", Err: err}
	}
	return ledger.MoneyFromDecimal(total), nil
}

func (s *Store) DeleteAllocationsFrom(ctx context.Context, budgetID string, fromMonth ledger.Date) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM transactions WHERE origin_id = ? AND budget = ? AND date_created >= ?`,
		budgetID, budgetID, fromMonth.MonthOf().String())
	if err != nil {
		return &ledger.StoreFailureError{Op: "delete_allocations_from", Err: err}
	}
	return nil
}

func (s *Store) CommitForecastsOnOrBefore(ctx context.Context, cutoff ledger.Date) ([]ledger.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE status = ? AND date_payed <= ?`,
		string(ledger.StatusForecast), cutoff.String())
	if err != nil {
		return nil, &ledger.StoreFailureError{Op: "commit_forecasts", Err: err}
	}
	due, err := collectTransactions(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	ids := make([]string, len(due))
	args := make([]any, 0, len(due)+1)
	args = append(args, string(ledger.StatusCommitted))
	for i, tx := range due {
		ids[i] = "?"
		args = append(args, tx.ID)
	}
	query := fmt.Sprintf("UPDATE transactions SET status = ? WHERE id IN (%s)", strings.Join(ids, ", "))
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return nil, &ledger.StoreFailureError{Op: "commit_forecasts", Err: err}
	}

	for i := range due {
		due[i].Status = ledger.StatusCommitted
	}
	return due, nil
}

func (s *Store) LastForecastMonth(ctx context.Context, subscriptionID string) (ledger.Date, bool, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT MAX(date_created) FROM transactions WHERE origin_id = ?`, subscriptionID)
	var max sql.NullString
	if err := row.Scan(&max); err != nil {
		return ledger.Date{}, false, &ledger.StoreFailureError{Op: "last_forecast_month", Err: err}
	}
	if !max.Valid || max.String == "" {
		return ledger.Date{}, false, nil
	}
	d, err := ledger.ParseDate(max.String)
	if err != nil {
		return ledger.Date{}, false, &ledger.StoreFailureError{Op: "last_forecast_month", Err: err}
	}
	return d.MonthOf(), true, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (s *Store) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, &ledger.StoreFailureError{Op: "list_categories", Err: err}
	}
	defer rows.Close()

	var out []ledger.Category
	for rows.Next() {
		var c ledger.Category
		if err := rows.Scan(&c.Name, &c.Description); err != nil {
			return nil, &ledger.StoreFailureError{Op: "list_categories", Err: err}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InsertCategory(ctx context.Context, c ledger.Category) error {
	_, err := s.conn.ExecContext(ctx, `INSERT INTO categories (name, description) VALUES (?, ?)`, c.Name, c.Description)
	if err != nil {
		return &ledger.StoreFailureError{Op: "insert_category", Err: err}
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, name, description string) error {
	res, err := s.conn.ExecContext(ctx, `UPDATE categories SET description = ? WHERE name = ?`, description, name)
	if err != nil {
		return &ledger.StoreFailureError{Op: "update_category", Err: err}
	}
	return checkRowAffected(res, "category", name)
}

func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return &ledger.StoreFailureError{Op: "delete_category", Err: err}
	}
	return checkRowAffected(res, "category", name)
}

func (s *Store) CategoryExists(ctx context.Context, name string) (bool, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE name = ?`, name)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, &ledger.StoreFailureError{Op: "category_exists", Err: err}
	}
	return true, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, &ledger.StoreFailureError{Op: "get_setting", Err: err}
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return &ledger.StoreFailureError{Op: "set_setting", Err: err}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &ledger.StoreFailureError{Op: "rows_affected", Err: err}
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
