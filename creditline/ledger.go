/*
ledger.go - Append-only transaction ledger and its query engine

PURPOSE:
  The Ledger is the immutable record of every monetary movement and status
  change on a credit line. Every draw, repayment, and lifecycle event is
  recorded here, partitioned by credit line id.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No update, no delete. Ever.
  2. ORDERED: Transactions are stored and returned in append order,
     which is chronological order.
  3. PARTITIONED: A query never returns a transaction belonging to a
     different credit line.
  4. UNIQUE: Transaction ids are unique across the whole ledger.

QUERY PIPELINE:
  1. Select all transactions for the credit line
  2. Apply the type filter
  3. Apply the from/to filter (inclusive on both bounds)
  4. total = count after filtering
  5. totalPages = max(1, ceil(total/limit)) - at least 1 even when empty
  6. Slice [(page-1)*limit, page*limit); out-of-range pages yield an
     empty slice, not an error

PAGINATION POLICY:
  STRICT. page < 1 or limit outside [1,100] is a ValidationError, never
  silently clamped. This is deliberately different from the clamping
  policy of the listing package; the two contracts serve different call
  sites and must stay distinct.

SEE ALSO:
  - query.go: Filter/page input types and validation
  - store.go: Low-level persistence interface
  - listing: The clamp-and-default pagination utility
*/
package creditline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER - Append and query over a Store
// =============================================================================

// Ledger wraps a Store with id generation and the filtered, paginated
// query engine.
type Ledger struct {
	store Store
	now   func() time.Time
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// prepare fills in a generated ledger-unique id and an append timestamp
// where missing, and validates the transaction type. Shared by Append and
// the engine's atomic line+ledger writes.
func (l *Ledger) prepare(tx Transaction) (Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = l.now()
	}
	if !ValidTransactionType(tx.Type) {
		return Transaction{}, &ValidationError{Field: "type", Message: "unknown transaction type"}
	}
	return tx, nil
}

// Append persists a transaction. A missing id is assigned a generated
// ledger-unique id; a missing timestamp is set to append time.
// This is the ONLY write operation.
func (l *Ledger) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	tx, err := l.prepare(tx)
	if err != nil {
		return Transaction{}, err
	}
	if err := l.store.AppendTransaction(ctx, tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// TransactionPage is the result of a ledger query.
type TransactionPage struct {
	Transactions []Transaction
	Total        int
	Page         int
	Limit        int
	TotalPages   int
}

// Query returns the filtered, paginated transactions of one credit line.
// The caller is responsible for confirming the line exists; querying an
// unknown id yields an empty page, not an error.
func (l *Ledger) Query(ctx context.Context, creditLineID string, filter TransactionFilter, page PageRequest) (TransactionPage, error) {
	compiled, err := filter.compile()
	if err != nil {
		return TransactionPage{}, err
	}
	pg, err := page.validate()
	if err != nil {
		return TransactionPage{}, err
	}

	all, err := l.store.TransactionsByLine(ctx, creditLineID)
	if err != nil {
		return TransactionPage{}, err
	}

	filtered := make([]Transaction, 0, len(all))
	for _, tx := range all {
		if compiled.matches(tx) {
			filtered = append(filtered, tx)
		}
	}

	total := len(filtered)
	totalPages := (total + pg.Limit - 1) / pg.Limit
	if totalPages < 1 {
		totalPages = 1
	}

	start := (pg.Page - 1) * pg.Limit
	end := start + pg.Limit
	items := make([]Transaction, 0)
	if start < total {
		if end > total {
			end = total
		}
		for _, tx := range filtered[start:end] {
			items = append(items, tx.Clone())
		}
	}

	return TransactionPage{
		Transactions: items,
		Total:        total,
		Page:         pg.Page,
		Limit:        pg.Limit,
		TotalPages:   totalPages,
	}, nil
}

// CountByType returns how many transactions of the given type exist for a
// line. Used to verify the events/ledger mirroring invariant.
func (l *Ledger) CountByType(ctx context.Context, creditLineID string, typ TransactionType) (int, error) {
	all, err := l.store.TransactionsByLine(ctx, creditLineID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, tx := range all {
		if tx.Type == typ {
			n++
		}
	}
	return n, nil
}
