/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain, not in DTOs. DTOs are
  pure data carriers. Amounts arrive as json.Number and leave as decimal
  strings, so a value never passes through a float in either direction.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/credit-engine/creditline"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreditLineDTO represents a credit line in API responses.
type CreditLineDTO struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Borrower  string     `json:"borrower,omitempty"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
	Events    []EventDTO `json:"events"`
}

// EventDTO represents one lifecycle event.
type EventDTO struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// CreateCreditLineRequest is the request to register a credit line.
type CreateCreditLineRequest struct {
	ID       string `json:"id"`
	Status   string `json:"status,omitempty"`
	Borrower string `json:"borrower,omitempty"`
}

// MovementRequest is the request body for draw and repay.
type MovementRequest struct {
	BorrowerID string      `json:"borrower_id,omitempty"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency,omitempty"`
}

// TransactionDTO represents a ledger transaction. Amount is the decimal
// rendered as a string, mirroring the json.Number intake: the value
// never passes through a float in either direction.
type TransactionDTO struct {
	ID           string            `json:"id"`
	CreditLineID string            `json:"credit_line_id"`
	Type         string            `json:"type"`
	Amount       *string           `json:"amount,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	Timestamp    string            `json:"timestamp"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// TransactionPageDTO is the paginated ledger query response.
type TransactionPageDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Page         int              `json:"page"`
	Limit        int              `json:"limit"`
	TotalPages   int              `json:"total_pages"`
}

// CreditLineListDTO is the paginated list response.
type CreditLineListDTO struct {
	Items      []CreditLineDTO `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCreditLineDTO(line creditline.CreditLine) CreditLineDTO {
	events := make([]EventDTO, len(line.Events))
	for i, ev := range line.Events {
		events[i] = EventDTO{
			Action:    string(ev.Action),
			Timestamp: ev.At.Format(time.RFC3339),
		}
	}
	return CreditLineDTO{
		ID:        line.ID,
		Status:    string(line.Status),
		Borrower:  line.Borrower,
		CreatedAt: line.CreatedAt.Format(time.RFC3339),
		UpdatedAt: line.UpdatedAt.Format(time.RFC3339),
		Events:    events,
	}
}

func toCreditLineDTOs(lines []creditline.CreditLine) []CreditLineDTO {
	dtos := make([]CreditLineDTO, len(lines))
	for i, line := range lines {
		dtos[i] = toCreditLineDTO(line)
	}
	return dtos
}

func toTransactionDTO(tx creditline.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:           tx.ID,
		CreditLineID: tx.CreditLineID,
		Type:         string(tx.Type),
		Currency:     tx.Currency,
		Timestamp:    tx.Timestamp.Format(time.RFC3339),
		Metadata:     tx.Metadata,
	}
	if tx.Amount != nil {
		amount := tx.Amount.String()
		dto.Amount = &amount
	}
	return dto
}

func toTransactionDTOs(txs []creditline.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}
