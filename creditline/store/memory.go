// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/credit-engine/creditline"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (the default)
// =============================================================================

// Memory keeps credit lines and their ledger in process memory. The
// store's lifetime is the process lifetime unless Reset is invoked.
type Memory struct {
	mu    sync.RWMutex
	lines map[string]creditline.CreditLine
	order []string // line insertion order, keeps ListLines stable
	txs   map[string][]creditline.Transaction
	txIDs map[string]struct{} // ledger-wide id uniqueness
}

func NewMemory() *Memory {
	return &Memory{
		lines: make(map[string]creditline.CreditLine),
		txs:   make(map[string][]creditline.Transaction),
		txIDs: make(map[string]struct{}),
	}
}

// SaveLine inserts or replaces a credit line record.
func (m *Memory) SaveLine(_ context.Context, line creditline.CreditLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.lines[line.ID]; !exists {
		m.order = append(m.order, line.ID)
	}
	m.lines[line.ID] = line.Clone()
	return nil
}

// GetLine returns a copy of the credit line, or nil if absent.
func (m *Memory) GetLine(_ context.Context, id string) (*creditline.CreditLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	line, ok := m.lines[id]
	if !ok {
		return nil, nil
	}
	out := line.Clone()
	return &out, nil
}

// ListLines returns all credit lines in insertion order.
func (m *Memory) ListLines(_ context.Context) ([]creditline.CreditLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]creditline.CreditLine, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.lines[id].Clone())
	}
	return result, nil
}

// AppendTransaction adds a single ledger entry. Append-only: an existing
// id is never overwritten.
func (m *Memory) AppendTransaction(_ context.Context, tx creditline.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.txIDs[tx.ID]; exists {
		return creditline.ErrDuplicateTransactionID
	}
	m.txIDs[tx.ID] = struct{}{}
	m.txs[tx.CreditLineID] = append(m.txs[tx.CreditLineID], tx.Clone())
	return nil
}

// SaveLineAndAppend persists a line update and a ledger entry under one
// lock acquisition. The duplicate-id check happens before either side is
// touched, so a rejected transaction leaves the line untouched too.
func (m *Memory) SaveLineAndAppend(_ context.Context, line creditline.CreditLine, tx creditline.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.txIDs[tx.ID]; exists {
		return creditline.ErrDuplicateTransactionID
	}
	if _, exists := m.lines[line.ID]; !exists {
		m.order = append(m.order, line.ID)
	}
	m.lines[line.ID] = line.Clone()
	m.txIDs[tx.ID] = struct{}{}
	m.txs[tx.CreditLineID] = append(m.txs[tx.CreditLineID], tx.Clone())
	return nil
}

// TransactionsByLine returns the line's transactions in append order.
func (m *Memory) TransactionsByLine(_ context.Context, creditLineID string) ([]creditline.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.txs[creditLineID]
	result := make([]creditline.Transaction, 0, len(stored))
	for _, tx := range stored {
		result = append(result, tx.Clone())
	}
	return result, nil
}

// Reset clears lines and ledger together.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines = make(map[string]creditline.CreditLine)
	m.order = nil
	m.txs = make(map[string][]creditline.Transaction)
	m.txIDs = make(map[string]struct{})
	return nil
}
