/*
engine.go - Credit line lifecycle engine and state machine

PURPOSE:
  The Engine owns all credit line records and is the single writer of the
  ledger. Every accepted lifecycle transition appends one event to the
  line's history AND one status_change transaction to the ledger. The
  pair goes through the store's SaveLineAndAppend, so it is atomic on
  storage failures too: a failed mutation leaves no half-written record
  and no burned id.

STATE MACHINE:
  states:   {active, suspended, closed}
  initial:  active (or caller-specified at create)
  terminal: closed (no transitions out)

  legal edges:
    active    -> suspended   (suspend)
    active    -> closed      (close)
    suspended -> closed      (close)

  Everything else, including self-transitions, is rejected with an
  InvalidTransitionError carrying the current status and the attempted
  action.

CONCURRENCY:
  A single engine-wide mutex serializes all mutations (per-id locking is
  not justified by load). Reads take the read lock and observe a
  consistent snapshot: a status update is never visible without its
  ledger entry. All work is in-memory and synchronous; no operation
  blocks on external I/O.

DUPLICATE CREATION:
  Re-creating an existing id is rejected with DuplicateIDError rather
  than silently replacing the record and resetting its ledger history.

SEE ALSO:
  - ledger.go: Transaction append and query
  - store.go: Injected persistence
  - errors.go: The error taxonomy produced here
*/
package creditline

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine enforces the credit line state machine and drives the ledger.
type Engine struct {
	mu     sync.RWMutex
	store  Store
	ledger *Ledger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the engine's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.ledger.now = now
	}
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		ledger: NewLedger(store),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger exposes the engine's ledger for read-side callers.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// =============================================================================
// TRANSITION TABLE
// =============================================================================

// allowedFrom maps a requested action to the statuses it may leave from.
var allowedFrom = map[string][]Status{
	"suspend": {StatusActive},
	"close":   {StatusActive, StatusSuspended},
}

func canTransition(current Status, requested string) bool {
	for _, s := range allowedFrom[requested] {
		if s == current {
			return true
		}
	}
	return false
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// Create registers a new credit line under a caller-assigned id and
// appends the "created" event and its mirroring status_change
// transaction. The initial status defaults to active.
func (e *Engine) Create(ctx context.Context, id string, initial Status, borrower string) (CreditLine, error) {
	if id == "" {
		return CreditLine{}, &ValidationError{Field: "id", Message: "must not be empty"}
	}
	if initial == "" {
		initial = StatusActive
	}
	if !ValidStatus(initial) {
		return CreditLine{}, &ValidationError{Field: "status", Message: "must be one of active, suspended, closed"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.store.GetLine(ctx, id)
	if err != nil {
		return CreditLine{}, err
	}
	if existing != nil {
		return CreditLine{}, &DuplicateIDError{ID: id}
	}

	now := e.now()
	line := CreditLine{
		ID:        id,
		Status:    initial,
		Borrower:  borrower,
		CreatedAt: now,
		UpdatedAt: now,
		Events:    []LifecycleEvent{{Action: ActionCreated, At: now}},
	}
	tx, err := e.ledger.prepare(statusChangeTx(id, ActionCreated, now))
	if err != nil {
		return CreditLine{}, err
	}
	if err := e.store.SaveLineAndAppend(ctx, line, tx); err != nil {
		return CreditLine{}, err
	}
	return line.Clone(), nil
}

// Get returns the credit line, or nil if absent. No side effects.
func (e *Engine) Get(ctx context.Context, id string) (*CreditLine, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	line, err := e.store.GetLine(ctx, id)
	if err != nil || line == nil {
		return nil, err
	}
	out := line.Clone()
	return &out, nil
}

// List returns all credit lines, stable within a single store snapshot.
func (e *Engine) List(ctx context.Context) ([]CreditLine, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.ListLines(ctx)
}

// Suspend transitions an active credit line to suspended.
func (e *Engine) Suspend(ctx context.Context, id string) (CreditLine, error) {
	return e.transition(ctx, id, "suspend", StatusSuspended, ActionSuspended)
}

// Close transitions an active or suspended credit line to closed.
// Closed is terminal.
func (e *Engine) Close(ctx context.Context, id string) (CreditLine, error) {
	return e.transition(ctx, id, "close", StatusClosed, ActionClosed)
}

func (e *Engine) transition(ctx context.Context, id, requested string, target Status, action Action) (CreditLine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	line, err := e.store.GetLine(ctx, id)
	if err != nil {
		return CreditLine{}, err
	}
	if line == nil {
		return CreditLine{}, &NotFoundError{ID: id}
	}
	if !canTransition(line.Status, requested) {
		return CreditLine{}, &InvalidTransitionError{Current: line.Status, Requested: requested}
	}

	now := e.tick(line.UpdatedAt)
	updated := line.Clone()
	updated.Status = target
	updated.UpdatedAt = now
	updated.Events = append(updated.Events, LifecycleEvent{Action: action, At: now})

	tx, err := e.ledger.prepare(statusChangeTx(id, action, now))
	if err != nil {
		return CreditLine{}, err
	}
	if err := e.store.SaveLineAndAppend(ctx, updated, tx); err != nil {
		return CreditLine{}, err
	}
	return updated.Clone(), nil
}

// =============================================================================
// MONETARY OPERATIONS
// =============================================================================

// Draw records a draw against the credit line without altering its
// status. The amount must be positive; balance bookkeeping is out of
// scope, the ledger only records the movement.
func (e *Engine) Draw(ctx context.Context, id, borrowerID string, amount decimal.Decimal, currency string) (CreditLine, error) {
	return e.movement(ctx, id, borrowerID, TxDraw, amount, currency)
}

// Repay records a repayment against the credit line. Like Draw, it is a
// pure ledger append; the line's status is untouched.
func (e *Engine) Repay(ctx context.Context, id, borrowerID string, amount decimal.Decimal, currency string) (CreditLine, error) {
	return e.movement(ctx, id, borrowerID, TxRepayment, amount, currency)
}

func (e *Engine) movement(ctx context.Context, id, borrowerID string, typ TransactionType, amount decimal.Decimal, currency string) (CreditLine, error) {
	if !amount.IsPositive() {
		return CreditLine{}, &ValidationError{Field: "amount", Message: "must be a positive number"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	line, err := e.store.GetLine(ctx, id)
	if err != nil {
		return CreditLine{}, err
	}
	if line == nil {
		return CreditLine{}, &NotFoundError{ID: id}
	}

	now := e.tick(line.UpdatedAt)
	updated := line.Clone()
	updated.UpdatedAt = now

	meta := map[string]string{}
	if borrowerID != "" {
		meta["borrower"] = borrowerID
	}
	tx, err := e.ledger.prepare(Transaction{
		CreditLineID: id,
		Type:         typ,
		Amount:       &amount,
		Currency:     currency,
		Timestamp:    now,
		Metadata:     meta,
	})
	if err != nil {
		return CreditLine{}, err
	}
	if err := e.store.SaveLineAndAppend(ctx, updated, tx); err != nil {
		return CreditLine{}, err
	}
	return updated.Clone(), nil
}

// =============================================================================
// LEDGER READS
// =============================================================================

// Transactions returns the filtered, paginated ledger of one credit
// line. The existence check happens before any filtering or pagination
// work.
func (e *Engine) Transactions(ctx context.Context, id string, filter TransactionFilter, page PageRequest) (TransactionPage, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	line, err := e.store.GetLine(ctx, id)
	if err != nil {
		return TransactionPage{}, err
	}
	if line == nil {
		return TransactionPage{}, &NotFoundError{ID: id}
	}
	return e.ledger.Query(ctx, id, filter, page)
}

// Reset clears both the credit line store and the ledger as one unit.
// Used by test suites and the dev reset endpoint.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Reset(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

// tick returns the current time, never earlier than floor. Keeps
// UpdatedAt monotonically non-decreasing.
func (e *Engine) tick(floor time.Time) time.Time {
	now := e.now()
	if now.Before(floor) {
		return floor
	}
	return now
}

func statusChangeTx(creditLineID string, action Action, at time.Time) Transaction {
	return Transaction{
		CreditLineID: creditLineID,
		Type:         TxStatusChange,
		Timestamp:    at,
		Metadata:     map[string]string{"action": string(action)},
	}
}
