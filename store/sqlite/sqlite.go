/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements creditline.Store and audit.Sink using SQLite. The engine's
  correctness never depends on durability; this store exists for the
  deployments that want the ledger and audit trail to survive a restart.

INTERFACES IMPLEMENTED:
  creditline.Store: Credit line records + append-only ledger
  audit.Sink:       Audit trail persistence

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements touch the transactions table
  - INSERT uses the primary key to reject id collisions
  - SaveLineAndAppend wraps the line upsert and the ledger insert in one
    SQL transaction so a mid-write failure rolls both back
  - Reset (dev/test only) is the single exception and clears every
    table together

KEY TABLES:
  credit_lines: One row per line; events serialized as JSON
  transactions: Immutable ledger, ordered by rowid (append order)
  audit_log:    Mirrored mutating operations

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  store, err := sqlite.New("./data/credit.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := creditline.NewEngine(store)

SEE ALSO:
  - creditline/store.go: Interface definition
  - creditline/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/credit-engine/audit"
	"github.com/warp/credit-engine/creditline"
)

// Store implements creditline.Store and audit.Sink using SQLite.
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
	CREATE TABLE IF NOT EXISTS credit_lines (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		borrower TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		events_json TEXT NOT NULL
	);

	-- Append-only ledger; rowid preserves append order.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		credit_line_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT,
		currency TEXT,
		timestamp TEXT NOT NULL,
		metadata_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_line
		ON transactions(credit_line_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		metadata_json TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CREDIT LINES
// =============================================================================

// execer is satisfied by both *sql.DB and *sql.Tx, so the insert helpers
// can run standalone or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveLine inserts or replaces a credit line record.
func (s *Store) SaveLine(ctx context.Context, line creditline.CreditLine) error {
	return saveLine(ctx, s.db, line)
}

func saveLine(ctx context.Context, db execer, line creditline.CreditLine) error {
	events, err := json.Marshal(line.Events)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO credit_lines (id, status, borrower, created_at, updated_at, events_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			borrower = excluded.borrower,
			updated_at = excluded.updated_at,
			events_json = excluded.events_json`,
		line.ID, string(line.Status), line.Borrower,
		line.CreatedAt.Format(time.RFC3339Nano),
		line.UpdatedAt.Format(time.RFC3339Nano),
		string(events),
	)
	return err
}

// GetLine returns the credit line, or nil if absent.
func (s *Store) GetLine(ctx context.Context, id string) (*creditline.CreditLine, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, borrower, created_at, updated_at, events_json
		FROM credit_lines WHERE id = ?`, id)

	line, err := scanLine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return line, nil
}

// ListLines returns all credit lines in creation order.
func (s *Store) ListLines(ctx context.Context) ([]creditline.CreditLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, borrower, created_at, updated_at, events_json
		FROM credit_lines ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []creditline.CreditLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *line)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (*creditline.CreditLine, error) {
	var (
		line             creditline.CreditLine
		status           string
		created, updated string
		eventsJSON       string
	)
	if err := row.Scan(&line.ID, &status, &line.Borrower, &created, &updated, &eventsJSON); err != nil {
		return nil, err
	}
	line.Status = creditline.Status(status)

	var err error
	if line.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("bad created_at for line %s: %w", line.ID, err)
	}
	if line.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("bad updated_at for line %s: %w", line.ID, err)
	}
	if err := json.Unmarshal([]byte(eventsJSON), &line.Events); err != nil {
		return nil, fmt.Errorf("bad events for line %s: %w", line.ID, err)
	}
	return &line, nil
}

// =============================================================================
// LEDGER
// =============================================================================

// AppendTransaction adds a single ledger entry. Append-only.
func (s *Store) AppendTransaction(ctx context.Context, tx creditline.Transaction) error {
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, db execer, tx creditline.Transaction) error {
	var amount, metadata sql.NullString
	if tx.Amount != nil {
		amount = sql.NullString{String: tx.Amount.String(), Valid: true}
	}
	if tx.Metadata != nil {
		encoded, err := json.Marshal(tx.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (id, credit_line_id, tx_type, amount, currency, timestamp, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.CreditLineID, string(tx.Type), amount, tx.Currency,
		tx.Timestamp.Format(time.RFC3339Nano), metadata,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return creditline.ErrDuplicateTransactionID
	}
	return err
}

// SaveLineAndAppend persists the line update and its ledger entry in a
// single SQL transaction; a failure on either statement rolls both back.
func (s *Store) SaveLineAndAppend(ctx context.Context, line creditline.CreditLine, tx creditline.Transaction) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := saveLine(ctx, sqlTx, line); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := appendTransaction(ctx, sqlTx, tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

// TransactionsByLine returns the line's transactions in append order.
func (s *Store) TransactionsByLine(ctx context.Context, creditLineID string) ([]creditline.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, credit_line_id, tx_type, amount, currency, timestamp, metadata_json
		FROM transactions WHERE credit_line_id = ? ORDER BY rowid`, creditLineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]creditline.Transaction, 0)
	for rows.Next() {
		var (
			tx               creditline.Transaction
			txType           string
			amount, metadata sql.NullString
			timestamp        string
		)
		if err := rows.Scan(&tx.ID, &tx.CreditLineID, &txType, &amount, &tx.Currency, &timestamp, &metadata); err != nil {
			return nil, err
		}
		tx.Type = creditline.TransactionType(txType)
		if tx.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("bad timestamp for transaction %s: %w", tx.ID, err)
		}
		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("bad amount for transaction %s: %w", tx.ID, err)
			}
			tx.Amount = &d
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &tx.Metadata); err != nil {
				return nil, fmt.Errorf("bad metadata for transaction %s: %w", tx.ID, err)
			}
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// Reset clears every table together. Dev/test only.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM credit_lines;
		DELETE FROM transactions;
		DELETE FROM audit_log;`)
	return err
}

// =============================================================================
// AUDIT SINK
// =============================================================================

// Record persists an audit entry. Implements audit.Sink.
func (s *Store) Record(ctx context.Context, e audit.Entry) error {
	var metadata sql.NullString
	if e.Metadata != nil {
		encoded, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(encoded), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor, action, resource_type, resource_id, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.Format(time.RFC3339Nano), e.Actor, e.Action,
		e.ResourceType, e.ResourceID, metadata,
	)
	return err
}
