/*
Package creditline provides the core credit facility engine.

PURPOSE:
  This package contains the domain types and algorithms for managing credit
  lines: the lifecycle state machine, the append-only transaction ledger, and
  the ledger's filter/paginate query engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - CreditLine: A caller-identified facility with a lifecycle status
  - LifecycleEvent: An immutable record of a status transition
  - Transaction: An immutable ledger entry (draw, repayment, status_change)

DESIGN PRINCIPLES:
  1. Immutability: Events and transactions are appended, never modified
  2. Precision: Uses decimal.Decimal for monetary amounts
  3. Mirroring: Every lifecycle event has a matching status_change transaction
  4. Isolation: Transactions are strictly partitioned by credit line id

SEE ALSO:
  - engine.go: Lifecycle operations and the state machine
  - ledger.go: Transaction append and query
  - errors.go: Structured error types
*/
package creditline

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Lifecycle state of a credit line
// =============================================================================

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusSuspended, StatusClosed:
		return true
	}
	return false
}

// =============================================================================
// LIFECYCLE EVENTS
// =============================================================================

// Action identifies a lifecycle event recorded on a credit line.
type Action string

const (
	ActionCreated   Action = "created"
	ActionSuspended Action = "suspended"
	ActionClosed    Action = "closed"
)

// LifecycleEvent is one entry in a credit line's event history.
// Insertion order is causal order; events[0] is always ActionCreated.
type LifecycleEvent struct {
	Action Action
	At     time.Time
}

// =============================================================================
// CREDIT LINE
// =============================================================================

// CreditLine is a financial credit facility identified by an opaque,
// caller-assigned id.
//
// INVARIANTS:
//   - Events is append-only and mirrors the transition history exactly
//     (one entry per lifecycle event, including creation).
//   - UpdatedAt is monotonically non-decreasing.
type CreditLine struct {
	ID        string
	Status    Status
	Borrower  string // optional; set at creation
	CreatedAt time.Time
	UpdatedAt time.Time
	Events    []LifecycleEvent
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (c CreditLine) Clone() CreditLine {
	out := c
	out.Events = make([]LifecycleEvent, len(c.Events))
	copy(out.Events, c.Events)
	return out
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type TransactionType string

const (
	TxDraw         TransactionType = "draw"
	TxRepayment    TransactionType = "repayment"
	TxStatusChange TransactionType = "status_change"
)

// ValidTransactionType reports whether t is a known ledger entry type.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TxDraw, TxRepayment, TxStatusChange:
		return true
	}
	return false
}

// Transaction records a monetary movement or a status change for a credit
// line. Transactions are created once and never mutated or deleted.
type Transaction struct {
	ID           string // unique across the whole ledger
	CreditLineID string
	Type         TransactionType
	Amount       *decimal.Decimal // nil for status_change entries
	Currency     string
	Timestamp    time.Time
	Metadata     map[string]string // status_change always carries {"action": ...}
}

// Clone returns a deep copy of the transaction.
func (t Transaction) Clone() Transaction {
	out := t
	if t.Amount != nil {
		a := *t.Amount
		out.Amount = &a
	}
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
