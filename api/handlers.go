/*
handlers.go - HTTP API handlers for the credit line engine

PURPOSE:
  Exposes the credit line engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Credit lines:
    GET    /api/credit-lines                     List (filter/sort/paginate)
    POST   /api/credit-lines                     Register a credit line
    GET    /api/credit-lines/{id}                Get one credit line
    POST   /api/credit-lines/{id}/suspend        Suspend (privileged)
    POST   /api/credit-lines/{id}/close          Close (privileged)
    POST   /api/credit-lines/{id}/draw           Record a draw
    POST   /api/credit-lines/{id}/repay          Record a repayment
    GET    /api/credit-lines/{id}/transactions   Ledger query (strict params)

  Admin:
    POST   /api/admin/reset                      Clear both stores (privileged)

ERROR HANDLING:
  Domain errors are mapped to HTTP status:
  - 400: ValidationError, malformed bodies, unknown list fields
  - 404: NotFoundError
  - 409: InvalidTransitionError, DuplicateIDError
  - 500: Everything else
  The body carries the precise message the domain produced (e.g. the
  current status on a transition conflict).

AUDIT:
  Every accepted mutation is mirrored to the audit recorder after the
  engine call succeeds. The recorder is fire-and-forget; an unavailable
  sink never fails the request.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/credit-engine/audit"
	"github.com/warp/credit-engine/creditline"
	"github.com/warp/credit-engine/listing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *creditline.Engine
	Audit  *audit.Recorder
	Log    *logrus.Logger

	schema *listing.Schema[creditline.CreditLine]
}

// NewHandler creates a handler around the engine. The listing schema is
// fixed at construction; unknown filter or sort fields are rejected at
// request time.
func NewHandler(engine *creditline.Engine, recorder *audit.Recorder, log *logrus.Logger) *Handler {
	schema, err := listing.NewSchema(map[string]listing.Field[creditline.CreditLine]{
		"id": {
			Get: func(l creditline.CreditLine) any { return l.ID },
		},
		"status": {
			Get: func(l creditline.CreditLine) any { return string(l.Status) },
		},
		"borrower": {
			Get:   func(l creditline.CreditLine) any { return l.Borrower },
			Match: listing.MatchContains,
		},
		"createdAt": {
			Get: func(l creditline.CreditLine) any { return l.CreatedAt },
		},
		"updatedAt": {
			Get: func(l creditline.CreditLine) any { return l.UpdatedAt },
		},
	}, "createdAt")
	if err != nil {
		// The schema is static; a construction failure is a programming error.
		panic(err)
	}
	return &Handler{Engine: engine, Audit: recorder, Log: log, schema: schema}
}

// =============================================================================
// CREDIT LINE HANDLERS
// =============================================================================

// ListCreditLines returns all credit lines, filtered/sorted/paginated by
// the forgiving listing policy (clamped pagination, defaulted sort).
func (h *Handler) ListCreditLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Engine.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list credit lines", err)
		return
	}

	q := r.URL.Query()
	result, err := h.schema.Apply(lines, listing.Query{
		Page:     q.Get("page"),
		PageSize: q.Get("pageSize"),
		Filters: map[string]string{
			"status":   q.Get("status"),
			"borrower": q.Get("borrower"),
		},
		SortBy:        q.Get("sortBy"),
		SortDirection: q.Get("sortDirection"),
	})
	if err != nil {
		var unknown *listing.UnknownFieldError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusBadRequest, "Unknown field "+unknown.Field, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to list credit lines", err)
		return
	}

	writeJSON(w, http.StatusOK, CreditLineListDTO{
		Items:      toCreditLineDTOs(result.Items),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	})
}

// CreateCreditLine registers a new credit line.
func (h *Handler) CreateCreditLine(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	line, err := h.Engine.Create(r.Context(), req.ID, creditline.Status(req.Status), req.Borrower)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.Audit.Record(r.Context(), audit.Entry{
		Actor:        actorFrom(r),
		Action:       "credit_line.created",
		ResourceType: "credit_line",
		ResourceID:   line.ID,
		Metadata:     map[string]string{"status": string(line.Status)},
	})
	writeJSON(w, http.StatusCreated, toCreditLineDTO(line))
}

// GetCreditLine returns a single credit line.
func (h *Handler) GetCreditLine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	line, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get credit line", err)
		return
	}
	if line == nil {
		writeError(w, http.StatusNotFound, "Credit line not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCreditLineDTO(*line))
}

// SuspendCreditLine transitions an active line to suspended.
func (h *Handler) SuspendCreditLine(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "credit_line.suspended", h.Engine.Suspend)
}

// CloseCreditLine transitions an active or suspended line to closed.
func (h *Handler) CloseCreditLine(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "credit_line.closed", h.Engine.Close)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, auditAction string, op func(ctx context.Context, id string) (creditline.CreditLine, error)) {
	id := chi.URLParam(r, "id")

	line, err := op(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.Audit.Record(r.Context(), audit.Entry{
		Actor:        actorFrom(r),
		Action:       auditAction,
		ResourceType: "credit_line",
		ResourceID:   id,
		Metadata:     map[string]string{"status": string(line.Status)},
	})
	writeJSON(w, http.StatusOK, toCreditLineDTO(line))
}

func (h *Handler) movement(w http.ResponseWriter, r *http.Request, auditAction string, op func(ctx context.Context, id, borrowerID string, amount decimal.Decimal, currency string) (creditline.CreditLine, error)) {
	id := chi.URLParam(r, "id")

	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeDomainError(w, &creditline.ValidationError{Field: "amount", Message: "must be a finite number"})
		return
	}

	line, err := op(r.Context(), id, req.BorrowerID, amount, req.Currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	meta := map[string]string{"amount": amount.String()}
	if req.Currency != "" {
		meta["currency"] = req.Currency
	}
	h.Audit.Record(r.Context(), audit.Entry{
		Actor:        actorFrom(r),
		Action:       auditAction,
		ResourceType: "credit_line",
		ResourceID:   id,
		Metadata:     meta,
	})
	writeJSON(w, http.StatusOK, toCreditLineDTO(line))
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// DrawCreditLine records a draw transaction.
func (h *Handler) DrawCreditLine(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, "credit_line.draw", h.Engine.Draw)
}

// RepayCreditLine records a repayment transaction.
func (h *Handler) RepayCreditLine(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, "credit_line.repayment", h.Engine.Repay)
}

// =============================================================================
// LEDGER QUERY HANDLER
// =============================================================================

// GetTransactions returns the filtered, paginated ledger of one line.
// Query parameters follow the STRICT policy: unknown type values,
// unparseable timestamps, and out-of-domain page/limit are 400s.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	page, err := creditline.ParsePageRequest(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	filter := creditline.TransactionFilter{
		Type: q.Get("type"),
		From: q.Get("from"),
		To:   q.Get("to"),
	}

	result, err := h.Engine.Transactions(r.Context(), id, filter, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TransactionPageDTO{
		Transactions: toTransactionDTOs(result.Transactions),
		Total:        result.Total,
		Page:         result.Page,
		Limit:        result.Limit,
		TotalPages:   result.TotalPages,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetStores clears credit lines and ledger together. Dev/test only.
func (h *Handler) ResetStores(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset stores", err)
		return
	}
	h.Audit.Record(r.Context(), audit.Entry{
		Actor:        actorFrom(r),
		Action:       "stores.reset",
		ResourceType: "store",
		ResourceID:   "all",
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the creditline error taxonomy to HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case creditline.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case creditline.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, creditline.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
