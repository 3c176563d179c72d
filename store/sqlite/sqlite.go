/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore and generic.RateCardSource using SQLite.

KEY TABLES:
  employees:    Employee rate cards
  companies:    Company rate cards
  allocations:  One row per allocation, both legs' amount and status
  batches:      Payments and invoices (immutable once written)
  batch_lines:  Snapshotted leg amounts, in selection order

INTEGRITY:
  - idx_batch_lines_leg: an allocation leg appears in at most one batch
  - batch_lines.allocation_id references allocations, so a settled
    allocation cannot be deleted out from under its batch
  - amounts are stored as decimal strings, never REAL

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole unit of work, so batch creation is a serializable critical section.
  The pool is pinned to one connection: ":memory:" databases are per
  connection, and one writer is all SQLite allows anyway.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for file databases.

USAGE:
  store, err := sqlite.New("./data/staffing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

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

// DB exposes the handle for metrics gauges.
func (s *Store) DB() *sql.DB { return s.db }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		full_day_rate TEXT NOT NULL,
		half_day_rate TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		service_rate TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		date TEXT NOT NULL,
		period_type TEXT NOT NULL DEFAULT 'FULL',
		employee_amount TEXT NOT NULL,
		company_amount TEXT NOT NULL,
		employee_settlement TEXT NOT NULL DEFAULT 'PENDING',
		company_settlement TEXT NOT NULL DEFAULT 'PENDING',
		location TEXT NOT NULL DEFAULT '',
		service_description TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_date
		ON allocations(date, id);
	CREATE INDEX IF NOT EXISTS idx_allocations_employee_date
		ON allocations(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_allocations_company_date
		ON allocations(company_id, date);

	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		subject_type TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		issued_date TEXT NOT NULL,
		total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_subject
		ON batches(subject_type, subject_id);

	CREATE TABLE IF NOT EXISTS batch_lines (
		batch_id TEXT NOT NULL REFERENCES batches(id),
		position INTEGER NOT NULL,
		allocation_id TEXT NOT NULL REFERENCES allocations(id),
		leg TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (batch_id, position)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_batch_lines_leg
		ON batch_lines(allocation_id, leg);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes every row. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"batch_lines", "batches", "allocations", "employees", "companies"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// ALLOCATIONS (generic.Store interface)
// =============================================================================

const allocationColumns = `id, employee_id, company_id, date, period_type, employee_amount, company_amount,
	employee_settlement, company_settlement, location, service_description, notes`

func (s *Store) GetAllocation(ctx context.Context, id generic.AllocationID) (generic.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAllocation(ctx, s.db, id)
}

func (s *Store) ListAllocations(ctx context.Context, filter generic.AllocationFilter) ([]generic.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAllocations(ctx, s.db, filter)
}

func (s *Store) InsertAllocation(ctx context.Context, a generic.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAllocation(ctx, s.db, a)
}

func (s *Store) UpdateAllocation(ctx context.Context, a generic.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAllocation(ctx, s.db, a)
}

func (s *Store) DeleteAllocation(ctx context.Context, id generic.AllocationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAllocation(ctx, s.db, id)
}

func getAllocation(ctx context.Context, db conn, id generic.AllocationID) (generic.Allocation, error) {
	row := db.QueryRowContext(ctx, "SELECT "+allocationColumns+" FROM allocations WHERE id = ?", id)
	a, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Allocation{}, &generic.NotFoundError{Kind: generic.ErrAllocationNotFound, ID: string(id)}
	}
	return a, err
}

func listAllocations(ctx context.Context, db conn, filter generic.AllocationFilter) ([]generic.Allocation, error) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.CompanyID != "" {
		where = append(where, "company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.From != nil {
		where = append(where, "date >= ?")
		args = append(args, filter.From.String())
	}
	if filter.To != nil {
		where = append(where, "date <= ?")
		args = append(args, filter.To.String())
	}
	if filter.EmployeeSettlement != "" {
		where = append(where, "employee_settlement = ?")
		args = append(args, filter.EmployeeSettlement)
	}
	if filter.CompanySettlement != "" {
		where = append(where, "company_settlement = ?")
		args = append(args, filter.CompanySettlement)
	}

	query := "SELECT " + allocationColumns + " FROM allocations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	allocations := make([]generic.Allocation, 0)
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func insertAllocation(ctx context.Context, db conn, a generic.Allocation) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO allocations (`+allocationColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EmployeeID, a.CompanyID, a.Date.String(), a.PeriodType,
		a.EmployeeAmount.String(), a.CompanyAmount.String(),
		a.EmployeeSettlement, a.CompanySettlement,
		a.Location, a.ServiceDescription, a.Notes,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

func updateAllocation(ctx context.Context, db conn, a generic.Allocation) error {
	res, err := db.ExecContext(ctx, `
		UPDATE allocations SET
			date = ?, period_type = ?, employee_amount = ?, company_amount = ?,
			employee_settlement = ?, company_settlement = ?,
			location = ?, service_description = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		a.Date.String(), a.PeriodType, a.EmployeeAmount.String(), a.CompanyAmount.String(),
		a.EmployeeSettlement, a.CompanySettlement,
		a.Location, a.ServiceDescription, a.Notes,
		time.Now().UTC().Format(time.RFC3339),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", err)
	}
	return requireOneRow(res, generic.ErrAllocationNotFound, string(a.ID))
}

func deleteAllocation(ctx context.Context, db conn, id generic.AllocationID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM allocations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}
	return requireOneRow(res, generic.ErrAllocationNotFound, string(id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAllocation(row scanner) (generic.Allocation, error) {
	var (
		a              generic.Allocation
		date           string
		employeeAmount string
		companyAmount  string
	)
	err := row.Scan(
		&a.ID, &a.EmployeeID, &a.CompanyID, &date, &a.PeriodType,
		&employeeAmount, &companyAmount,
		&a.EmployeeSettlement, &a.CompanySettlement,
		&a.Location, &a.ServiceDescription, &a.Notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("failed to scan allocation: %w", err)
	}

	if a.Date, err = generic.ParseDate(date); err != nil {
		return a, fmt.Errorf("allocation %s: bad date %q: %w", a.ID, date, err)
	}
	if a.EmployeeAmount, err = decimal.NewFromString(employeeAmount); err != nil {
		return a, fmt.Errorf("allocation %s: bad employee_amount: %w", a.ID, err)
	}
	if a.CompanyAmount, err = decimal.NewFromString(companyAmount); err != nil {
		return a, fmt.Errorf("allocation %s: bad company_amount: %w", a.ID, err)
	}
	return a, nil
}

func requireOneRow(res sql.Result, kind error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// =============================================================================
// BATCHES
// =============================================================================

func (s *Store) InsertBatch(ctx context.Context, b generic.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertBatch(ctx, sqlTx, b); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) GetBatch(ctx context.Context, id generic.BatchID) (generic.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBatch(ctx, s.db, id)
}

func (s *Store) ListBatches(ctx context.Context, filter generic.BatchFilter) ([]generic.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBatches(ctx, s.db, filter)
}

func insertBatch(ctx context.Context, db conn, b generic.Batch) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO batches (id, number, subject_type, subject_id, period_start, period_end, issued_date, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Number, b.SubjectType, b.SubjectID,
		b.Period.Start.String(), b.Period.End.String(), b.IssuedDate.String(),
		b.Total.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	leg := b.SubjectType.Leg()
	for i, line := range b.Lines {
		_, err := db.ExecContext(ctx, `
			INSERT INTO batch_lines (batch_id, position, allocation_id, leg, amount)
			VALUES (?, ?, ?, ?, ?)`,
			b.ID, i, line.AllocationID, leg, line.Amount.String(),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &generic.SettlementConflictError{AllocationID: line.AllocationID, Leg: leg}
			}
			return fmt.Errorf("failed to insert batch line: %w", err)
		}
	}
	return nil
}

const batchColumns = `id, number, subject_type, subject_id, period_start, period_end, issued_date, total`

func getBatch(ctx context.Context, db conn, id generic.BatchID) (generic.Batch, error) {
	row := db.QueryRowContext(ctx, "SELECT "+batchColumns+" FROM batches WHERE id = ?", id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Batch{}, &generic.NotFoundError{Kind: generic.ErrBatchNotFound, ID: string(id)}
	}
	if err != nil {
		return generic.Batch{}, err
	}
	if b.Lines, err = loadLines(ctx, db, b.ID); err != nil {
		return generic.Batch{}, err
	}
	return b, nil
}

func listBatches(ctx context.Context, db conn, filter generic.BatchFilter) ([]generic.Batch, error) {
	var (
		where []string
		args  []any
	)
	if filter.SubjectType != "" {
		where = append(where, "subject_type = ?")
		args = append(args, filter.SubjectType)
	}
	if filter.SubjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	query := "SELECT " + batchColumns + " FROM batches"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY issued_date ASC, id ASC"

	batches, err := queryBatches(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	// Lines are loaded after the batch rows are closed; the pool has one connection.
	for i := range batches {
		if batches[i].Lines, err = loadLines(ctx, db, batches[i].ID); err != nil {
			return nil, err
		}
	}
	return batches, nil
}

func queryBatches(ctx context.Context, db conn, query string, args ...any) ([]generic.Batch, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	batches := make([]generic.Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func scanBatch(row scanner) (generic.Batch, error) {
	var (
		b                                   generic.Batch
		periodStart, periodEnd, issued, tot string
	)
	err := row.Scan(&b.ID, &b.Number, &b.SubjectType, &b.SubjectID, &periodStart, &periodEnd, &issued, &tot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("failed to scan batch: %w", err)
	}

	if b.Period.Start, err = generic.ParseDate(periodStart); err != nil {
		return b, fmt.Errorf("batch %s: bad period_start: %w", b.ID, err)
	}
	if b.Period.End, err = generic.ParseDate(periodEnd); err != nil {
		return b, fmt.Errorf("batch %s: bad period_end: %w", b.ID, err)
	}
	if b.IssuedDate, err = generic.ParseDate(issued); err != nil {
		return b, fmt.Errorf("batch %s: bad issued_date: %w", b.ID, err)
	}
	if b.Total, err = decimal.NewFromString(tot); err != nil {
		return b, fmt.Errorf("batch %s: bad total: %w", b.ID, err)
	}
	return b, nil
}

func loadLines(ctx context.Context, db conn, id generic.BatchID) ([]generic.BatchLine, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT allocation_id, amount FROM batch_lines WHERE batch_id = ? ORDER BY position ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch lines: %w", err)
	}
	defer rows.Close()

	lines := make([]generic.BatchLine, 0)
	for rows.Next() {
		var (
			line   generic.BatchLine
			amount string
		)
		if err := rows.Scan(&line.AllocationID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan batch line: %w", err)
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("batch %s: bad line amount: %w", id, err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction, under the parent's lock.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetAllocation(ctx context.Context, id generic.AllocationID) (generic.Allocation, error) {
	return getAllocation(ctx, ts.tx, id)
}

func (ts *txStore) ListAllocations(ctx context.Context, filter generic.AllocationFilter) ([]generic.Allocation, error) {
	return listAllocations(ctx, ts.tx, filter)
}

func (ts *txStore) InsertAllocation(ctx context.Context, a generic.Allocation) error {
	return insertAllocation(ctx, ts.tx, a)
}

func (ts *txStore) UpdateAllocation(ctx context.Context, a generic.Allocation) error {
	return updateAllocation(ctx, ts.tx, a)
}

func (ts *txStore) DeleteAllocation(ctx context.Context, id generic.AllocationID) error {
	return deleteAllocation(ctx, ts.tx, id)
}

func (ts *txStore) InsertBatch(ctx context.Context, b generic.Batch) error {
	return insertBatch(ctx, ts.tx, b)
}

func (ts *txStore) GetBatch(ctx context.Context, id generic.BatchID) (generic.Batch, error) {
	return getBatch(ctx, ts.tx, id)
}

func (ts *txStore) ListBatches(ctx context.Context, filter generic.BatchFilter) ([]generic.Batch, error) {
	return listBatches(ctx, ts.tx, filter)
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
