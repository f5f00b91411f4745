/*
Package sqlite provides SQLite-backed persistence for bills.

PURPOSE:
  The store is the backend the reconciliation engine emits diffs to. It
  owns the canonical ledger: the bill header plus its item and payment
  rows. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

DIFF APPLICATION:
  ApplyDiff is the submit boundary. The whole diff - new items, removed
  item ids, payment creates/updates/deletes, the resolved discount -
  is applied inside ONE SQL transaction. Either every change lands or
  none do, so a failed submit leaves the canonical ledger exactly as the
  editing session's baseline expects it, and the user can retry.

KEY TABLES:
  bills:         Bill header (patient, kind, discount, amount paid)
  bill_items:    Billable line items, locked flag included
  bill_payments: One row per payment method per bill

AMOUNTS:
  Money is stored as TEXT and parsed through decimal.Decimal. No floats
  touch the database.

CONCURRENCY:
  SQLite is opened with WAL for concurrent readers. Row ids are UUIDs
  assigned here - the backend, never the editing session, owns ids.

USAGE:
  store, err := sqlite.New("./data/bills.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/diff.go: The Diff type applied here
  - api/handlers.go: HTTP layer driving this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// ErrBillNotFound is returned when a bill id does not exist.
var ErrBillNotFound = errors.New("bill not found")

// ErrStaleDiff is returned when a diff references item or payment rows
// that no longer exist - the session's baseline is out of date.
var ErrStaleDiff = errors.New("diff references rows not in the stored ledger")

// Bill is the header row for one ledger.
type Bill struct {
	ID        string
	PatientID string
	Kind      string // "lab" or "opd"
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store implements bill persistence using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'lab',
		discount TEXT NOT NULL DEFAULT '0',
		amount_paid TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bill_items (
		id TEXT PRIMARY KEY,
		bill_id TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		locked INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bill_items_bill
		ON bill_items(bill_id);

	-- One item name per bill (case-insensitive), mirroring the engine's
	-- duplicate rejection at the storage layer.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bill_items_name
		ON bill_items(bill_id, LOWER(name));

	CREATE TABLE IF NOT EXISTS bill_payments (
		id TEXT PRIMARY KEY,
		bill_id TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
		method TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(bill_id, method)
	);

	CREATE INDEX IF NOT EXISTS idx_bill_payments_bill
		ON bill_payments(bill_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BILL CRUD
// =============================================================================

// CreateBill persists a new bill with its baseline ledger, assigning row
// ids. Returns the stored bill and the canonical baseline.
func (s *Store) CreateBill(ctx context.Context, bill Bill, baseline ledger.Baseline) (Bill, ledger.Baseline, error) {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	bill.CreatedAt = now
	bill.UpdatedAt = now
	if bill.Kind == "" {
		bill.Kind = "lab"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Bill{}, ledger.Baseline{}, err
	}
	defer tx.Rollback()

	totals := ledger.Compute(baseline.Items, baseline.Discount.String(), baseline.Payments)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bills (id, patient_id, kind, discount, amount_paid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.PatientID, bill.Kind,
		baseline.Discount.String(), totals.AmountPaid.String(),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return Bill{}, ledger.Baseline{}, err
	}

	for _, it := range baseline.Items {
		if err := insertItem(ctx, tx, bill.ID, it, now); err != nil {
			return Bill{}, ledger.Baseline{}, err
		}
	}
	for _, e := range baseline.Payments {
		if err := insertPayment(ctx, tx, bill.ID, e, now); err != nil {
			return Bill{}, ledger.Baseline{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Bill{}, ledger.Baseline{}, err
	}

	stored, canonical, err := s.GetBill(ctx, bill.ID)
	if err != nil {
		return Bill{}, ledger.Baseline{}, err
	}
	return *stored, canonical, nil
}

// GetBill loads a bill and its canonical baseline. Returns nil bill if
// the id does not exist.
func (s *Store) GetBill(ctx context.Context, id string) (*Bill, ledger.Baseline, error) {
	var (
		bill                 Bill
		discount             string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, kind, discount, created_at, updated_at FROM bills WHERE id = ?`, id).
		Scan(&bill.ID, &bill.PatientID, &bill.Kind, &discount, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.Baseline{}, nil
	}
	if err != nil {
		return nil, ledger.Baseline{}, err
	}
	bill.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	bill.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	baseline := ledger.Baseline{}
	baseline.Discount, err = decimal.NewFromString(discount)
	if err != nil {
		return nil, ledger.Baseline{}, fmt.Errorf("bill %s: bad discount %q: %w", id, discount, err)
	}

	baseline.Items, err = s.loadItems(ctx, id)
	if err != nil {
		return nil, ledger.Baseline{}, err
	}
	baseline.Payments, err = s.loadPayments(ctx, id)
	if err != nil {
		return nil, ledger.Baseline{}, err
	}
	return &bill, baseline, nil
}

// ListBills returns all bill headers, newest first.
func (s *Store) ListBills(ctx context.Context) ([]Bill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, kind, created_at, updated_at FROM bills ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		var (
			b                    Bill
			createdAt, updatedAt string
		)
		if err := rows.Scan(&b.ID, &b.PatientID, &b.Kind, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// =============================================================================
// DIFF APPLICATION - The submit boundary
// =============================================================================

// ApplyDiff applies a reconciliation diff to a stored bill inside one
// SQL transaction and returns the refreshed canonical baseline. A diff
// referencing rows that no longer exist fails with ErrStaleDiff and
// changes nothing.
func (s *Store) ApplyDiff(ctx context.Context, billID string, diff ledger.Diff) (ledger.Baseline, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM bills WHERE id = ?`, billID).Scan(&exists)
	if err != nil {
		return ledger.Baseline{}, err
	}
	if exists == 0 {
		return ledger.Baseline{}, ErrBillNotFound
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Baseline{}, err
	}
	defer tx.Rollback()

	// Removed items.
	for _, id := range diff.RemovedItemIDs {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM bill_items WHERE id = ? AND bill_id = ?`, string(id), billID)
		if err != nil {
			return ledger.Baseline{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.Baseline{}, fmt.Errorf("%w: item %s", ErrStaleDiff, id)
		}
	}

	// New items.
	for _, it := range diff.NewItems {
		if err := insertItem(ctx, tx, billID, it, now); err != nil {
			return ledger.Baseline{}, err
		}
	}

	// Payment deletes.
	for _, id := range diff.DeletedPaymentIDs {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM bill_payments WHERE id = ? AND bill_id = ?`, string(id), billID)
		if err != nil {
			return ledger.Baseline{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.Baseline{}, fmt.Errorf("%w: payment %s", ErrStaleDiff, id)
		}
	}

	// Payment updates.
	for _, e := range diff.UpdatedPayments {
		res, err := tx.ExecContext(ctx,
			`UPDATE bill_payments SET method = ?, amount = ?, updated_at = ? WHERE id = ? AND bill_id = ?`,
			string(e.Method), e.Amount.String(), now.Format(time.RFC3339), string(e.ID), billID)
		if err != nil {
			return ledger.Baseline{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.Baseline{}, fmt.Errorf("%w: payment %s", ErrStaleDiff, e.ID)
		}
	}

	// Payment creates.
	for _, e := range diff.NewPayments {
		if err := insertPayment(ctx, tx, billID, e, now); err != nil {
			return ledger.Baseline{}, err
		}
	}

	// Header: resolved discount and recorded amount paid.
	_, err = tx.ExecContext(ctx,
		`UPDATE bills SET discount = ?, amount_paid = ?, updated_at = ? WHERE id = ?`,
		diff.Totals.Discount.String(), diff.Totals.AmountPaid.String(),
		now.Format(time.RFC3339), billID)
	if err != nil {
		return ledger.Baseline{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Baseline{}, err
	}

	_, baseline, err := s.GetBill(ctx, billID)
	return baseline, err
}

// =============================================================================
// ROW HELPERS
// =============================================================================

func insertItem(ctx context.Context, tx *sql.Tx, billID string, it ledger.LineItem, now time.Time) error {
	id := string(it.ID)
	if id == "" {
		id = uuid.NewString()
	}
	locked := 0
	if it.Locked {
		locked = 1
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bill_items (id, bill_id, name, price, locked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, billID, it.Name, it.Price.String(), locked, now.Format(time.RFC3339))
	return err
}

func insertPayment(ctx context.Context, tx *sql.Tx, billID string, e ledger.PaymentEntry, now time.Time) error {
	id := string(e.ID)
	if id == "" {
		id = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bill_payments (id, bill_id, method, amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, billID, string(e.Method), e.Amount.String(),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	return err
}

func (s *Store) loadItems(ctx context.Context, billID string) ([]ledger.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, locked FROM bill_items WHERE bill_id = ? ORDER BY created_at, id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ledger.LineItem
	for rows.Next() {
		var (
			it     ledger.LineItem
			id     string
			price  string
			locked int
		)
		if err := rows.Scan(&id, &it.Name, &price, &locked); err != nil {
			return nil, err
		}
		it.ID = ledger.ItemID(id)
		it.Locked = locked != 0
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("item %s: bad price %q: %w", id, price, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) loadPayments(ctx context.Context, billID string) ([]ledger.PaymentEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, amount FROM bill_payments WHERE bill_id = ? ORDER BY created_at, id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []ledger.PaymentEntry
	for rows.Next() {
		var (
			e          ledger.PaymentEntry
			id, method string
			amount     string
		)
		if err := rows.Scan(&id, &method, &amount); err != nil {
			return nil, err
		}
		e.ID = ledger.PaymentID(id)
		e.Method = ledger.Method(method)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("payment %s: bad amount %q: %w", id, amount, err)
		}
		payments = append(payments, e)
	}
	return payments, rows.Err()
}
