/*
store.go - Persistence interface for credit lines and transactions

PURPOSE:
  Defines the interface between the domain logic and storage. The engine
  owns an injected Store instance; there is no package-level singleton
  state. Different implementations can use in-memory maps or SQLite.

APPEND-ONLY CONTRACT:
  The transaction side of the Store is append-only:
  - AppendTransaction(): Single write, rejects id collisions
  - NO update or delete methods exist for transactions

CREDIT LINE SIDE:
  SaveLine() upserts a full record. The engine decides create-vs-update
  policy (duplicate ids are rejected at the engine, not here). Lines are
  never deleted.

ATOMIC PAIR:
  SaveLineAndAppend() persists a line update and its mirroring ledger
  entry as one unit: either both land or neither does. Every engine
  mutation goes through it, so a failure partway through (a full disk,
  a rejected transaction id) can never leave a lifecycle event without
  its status_change entry, or a burned id for a line the caller was
  told failed.

RESET:
  Reset() clears both stores together. It exists for test isolation and
  the dev reset endpoint; both sides must be cleared as one unit so the
  events/ledger mirroring invariant survives a reset.

IMPLEMENTATIONS:
  - creditline/store/memory.go: In-memory (default)
  - store/sqlite/sqlite.go: SQLite-backed

SEE ALSO:
  - engine.go: The only writer of this interface
  - ledger.go: Query layer on top of TransactionsByLine
*/
package creditline

import "context"

// Store handles persistence of credit lines and their ledger.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveLine inserts or replaces a credit line record.
	SaveLine(ctx context.Context, line CreditLine) error

	// GetLine returns the credit line, or nil if absent.
	GetLine(ctx context.Context, id string) (*CreditLine, error)

	// ListLines returns all credit lines, stable within a single snapshot.
	ListLines(ctx context.Context) ([]CreditLine, error)

	// AppendTransaction persists a ledger entry. Returns
	// ErrDuplicateTransactionID if the id already exists. Append-only.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// SaveLineAndAppend persists a line update and a ledger entry as one
	// atomic unit: on error neither is visible. Returns
	// ErrDuplicateTransactionID if the transaction id already exists.
	SaveLineAndAppend(ctx context.Context, line CreditLine, tx Transaction) error

	// TransactionsByLine returns all transactions for a credit line in
	// append (chronological) order.
	TransactionsByLine(ctx context.Context, creditLineID string) ([]Transaction, error)

	// Reset clears all credit lines and transactions together.
	Reset(ctx context.Context) error
}
