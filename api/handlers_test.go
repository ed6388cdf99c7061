/*
handlers_test.go - HTTP-level tests through the full router

Exercises routing, status-code mapping, API-key enforcement, and the two
pagination policies as seen from the wire.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/credit-engine/api"
	"github.com/warp/credit-engine/audit"
	"github.com/warp/credit-engine/creditline"
	"github.com/warp/credit-engine/creditline/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	audit  *audit.Memory
	keys   api.Keys
}

func newTestServer(t *testing.T, keys api.Keys) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	engine := creditline.NewEngine(store.NewMemory())
	sink := audit.NewMemory()
	handler := api.NewHandler(engine, audit.NewRecorder(sink, log), log)
	router := api.NewRouter(handler, api.RouterConfig{Keys: keys})

	return &testServer{router: router, audit: sink, keys: keys}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func (ts *testServer) create(t *testing.T, id string) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/credit-lines", api.CreateCreditLineRequest{ID: id}, ts.keys.Service)
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
}

// =============================================================================
// CREDIT LINE ENDPOINTS
// =============================================================================

func TestAPI_CreateAndGetCreditLine(t *testing.T) {
	ts := newTestServer(t, api.Keys{})

	w := ts.do(t, http.MethodPost, "/api/credit-lines", api.CreateCreditLineRequest{
		ID: "line-1", Borrower: "Acme Corp",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[api.CreditLineDTO](t, w)
	assert.Equal(t, "line-1", created.ID)
	assert.Equal(t, "active", created.Status)
	assert.Equal(t, "Acme Corp", created.Borrower)
	require.Len(t, created.Events, 1)
	assert.Equal(t, "created", created.Events[0].Action)

	w = ts.do(t, http.MethodGet, "/api/credit-lines/line-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.CreditLineDTO](t, w)
	assert.Equal(t, created, got)
}

func TestAPI_CreateDuplicate_Conflict(t *testing.T) {
	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")

	w := ts.do(t, http.MethodPost, "/api/credit-lines", api.CreateCreditLineRequest{ID: "line-1"}, "")

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_GetUnknown_NotFound(t *testing.T) {
	ts := newTestServer(t, api.Keys{})

	w := ts.do(t, http.MethodGet, "/api/credit-lines/ghost", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_MalformedBody_BadRequest(t *testing.T) {
	ts := newTestServer(t, api.Keys{})

	req := httptest.NewRequest(http.MethodPost, "/api/credit-lines", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// LIFECYCLE ENDPOINTS
// =============================================================================

func TestAPI_SuspendThenClose(t *testing.T) {
	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")

	w := ts.do(t, http.MethodPost, "/api/credit-lines/line-1/suspend", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "suspended", decode[api.CreditLineDTO](t, w).Status)

	w = ts.do(t, http.MethodPost, "/api/credit-lines/line-1/close", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	closed := decode[api.CreditLineDTO](t, w)
	assert.Equal(t, "closed", closed.Status)
	require.Len(t, closed.Events, 3)
}

func TestAPI_CloseTwice_ConflictWithPreciseMessage(t *testing.T) {
	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")
	ts.do(t, http.MethodPost, "/api/credit-lines/line-1/close", nil, "")

	w := ts.do(t, http.MethodPost, "/api/credit-lines/line-1/close", nil, "")

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode[api.ErrorResponse](t, w)
	assert.Contains(t, resp.Error, "closed")
}

func TestAPI_SuspendUnknown_NotFound(t *testing.T) {
	ts := newTestServer(t, api.Keys{})

	w := ts.do(t, http.MethodPost, "/api/credit-lines/ghost/suspend", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// MOVEMENT ENDPOINTS
// =============================================================================

func TestAPI_DrawAndRepay(t *testing.T) {
	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")

	w := ts.do(t, http.MethodPost, "/api/credit-lines/line-1/draw", map[string]any{
		"borrower_id": "b-1", "amount": 125.50, "currency": "USD",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/credit-lines/line-1/repay", map[string]any{
		"borrower_id": "b-1", "amount": 25, "currency": "USD",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/credit-lines/line-1/transactions?type=draw", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[api.TransactionPageDTO](t, w)
	require.Equal(t, 1, page.Total)
	require.NotNil(t, page.Transactions[0].Amount)
	got, err := decimal.NewFromString(*page.Transactions[0].Amount)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("125.50")))
	assert.Equal(t, "b-1", page.Transactions[0].Metadata["borrower"])
}

func TestAPI_Draw_AmountPrecisionSurvivesRoundTrip(t *testing.T) {
	// Amounts go in as json.Number and come back as decimal strings; a
	// value beyond float64 precision must round-trip digit for digit.

	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")

	precise := "12345678901234567890.123456789"
	w := ts.do(t, http.MethodPost, "/api/credit-lines/line-1/draw", map[string]any{
		"amount": json.Number(precise), "currency": "USD",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/credit-lines/line-1/transactions?type=draw", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[api.TransactionPageDTO](t, w)
	require.Equal(t, 1, page.Total)
	require.NotNil(t, page.Transactions[0].Amount)
	assert.Equal(t, precise, *page.Transactions[0].Amount)
}

func TestAPI_Draw_InvalidAmount_BadRequest(t *testing.T) {
	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")

	for _, amount := range []any{-10, 0, "not-a-number"} {
		w := ts.do(t, http.MethodPost, "/api/credit-lines/line-1/draw", map[string]any{
			"borrower_id": "b-1", "amount": amount,
		}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "amount %v", amount)
	}
}

// =============================================================================
// LEDGER QUERY ENDPOINT (STRICT POLICY)
// =============================================================================

func TestAPI_Transactions_StrictValidation(t *testing.T) {
	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")

	cases := []string{
		"?type=bogus",
		"?from=yesterday",
		"?to=not-a-date",
		"?page=0",
		"?page=abc",
		"?limit=0",
		"?limit=101",
	}
	for _, qs := range cases {
		w := ts.do(t, http.MethodGet, "/api/credit-lines/line-1/transactions"+qs, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "query %s", qs)
	}
}

func TestAPI_Transactions_Pagination(t *testing.T) {
	// Three status_change entries; page=2&limit=2 returns exactly the third.

	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")
	ts.do(t, http.MethodPost, "/api/credit-lines/line-1/suspend", nil, "")
	ts.do(t, http.MethodPost, "/api/credit-lines/line-1/close", nil, "")

	w := ts.do(t, http.MethodGet, "/api/credit-lines/line-1/transactions?page=2&limit=2", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	page := decode[api.TransactionPageDTO](t, w)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "closed", page.Transactions[0].Metadata["action"])
}

func TestAPI_Transactions_UnknownLine_NotFound(t *testing.T) {
	ts := newTestServer(t, api.Keys{})

	w := ts.do(t, http.MethodGet, "/api/credit-lines/ghost/transactions", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// LIST ENDPOINT (CLAMP POLICY)
// =============================================================================

func TestAPI_List_FilterSortPaginate(t *testing.T) {
	ts := newTestServer(t, api.Keys{})
	for i := 1; i <= 5; i++ {
		w := ts.do(t, http.MethodPost, "/api/credit-lines", api.CreateCreditLineRequest{
			ID: fmt.Sprintf("line-%d", i), Borrower: fmt.Sprintf("Borrower %d", i),
		}, "")
		require.Equal(t, http.StatusCreated, w.Code)
	}
	ts.do(t, http.MethodPost, "/api/credit-lines/line-2/suspend", nil, "")

	w := ts.do(t, http.MethodGet, "/api/credit-lines?status=active&sortBy=id&sortDirection=desc", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.CreditLineListDTO](t, w)
	assert.Equal(t, 4, list.Total)
	assert.Equal(t, "line-5", list.Items[0].ID)

	// Clamp policy: absurd pageSize is clamped, not rejected.
	w = ts.do(t, http.MethodGet, "/api/credit-lines?pageSize=5000&page=abc", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[api.CreditLineListDTO](t, w)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 100, list.PageSize)

	// Borrower substring filter is case-insensitive.
	w = ts.do(t, http.MethodGet, "/api/credit-lines?borrower=borrower+3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[api.CreditLineListDTO](t, w)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "line-3", list.Items[0].ID)
}

func TestAPI_List_UnknownSortField_BadRequest(t *testing.T) {
	ts := newTestServer(t, api.Keys{})

	w := ts.do(t, http.MethodGet, "/api/credit-lines?sortBy=riskScore", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func TestAPI_APIKeyEnforcement(t *testing.T) {
	keys := api.Keys{Service: "svc-key", Admin: "adm-key"}
	ts := newTestServer(t, keys)

	// No key on a service route.
	w := ts.do(t, http.MethodGet, "/api/credit-lines", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Service key works for non-privileged routes.
	w = ts.do(t, http.MethodPost, "/api/credit-lines", api.CreateCreditLineRequest{ID: "line-1"}, "svc-key")
	assert.Equal(t, http.StatusCreated, w.Code)

	// Service key is not enough for privileged transitions.
	w = ts.do(t, http.MethodPost, "/api/credit-lines/line-1/suspend", nil, "svc-key")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin key is.
	w = ts.do(t, http.MethodPost, "/api/credit-lines/line-1/suspend", nil, "adm-key")
	assert.Equal(t, http.StatusOK, w.Code)

	// Reset is admin-only.
	w = ts.do(t, http.MethodPost, "/api/admin/reset", nil, "svc-key")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, http.MethodPost, "/api/admin/reset", nil, "adm-key")
	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// AUDIT MIRRORING
// =============================================================================

func TestAPI_MutationsAreAudited(t *testing.T) {
	ts := newTestServer(t, api.Keys{Service: "svc-key", Admin: "adm-key"})

	ts.do(t, http.MethodPost, "/api/credit-lines", api.CreateCreditLineRequest{ID: "line-1"}, "svc-key")
	ts.do(t, http.MethodPost, "/api/credit-lines/line-1/draw", map[string]any{"amount": 10}, "svc-key")
	ts.do(t, http.MethodPost, "/api/credit-lines/line-1/close", nil, "adm-key")

	entries := ts.audit.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "credit_line.created", entries[0].Action)
	assert.Equal(t, "service", entries[0].Actor)
	assert.Equal(t, "credit_line.draw", entries[1].Action)
	assert.Equal(t, "credit_line.closed", entries[2].Action)
	assert.Equal(t, "admin", entries[2].Actor)

	// Reads are not audited.
	ts.do(t, http.MethodGet, "/api/credit-lines/line-1", nil, "svc-key")
	assert.Len(t, ts.audit.Entries(), 3)
}

// =============================================================================
// OPERATIONAL ENDPOINTS
// =============================================================================

func TestAPI_Healthz(t *testing.T) {
	ts := newTestServer(t, api.Keys{})

	w := ts.do(t, http.MethodGet, "/healthz", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_MetricsExposed(t *testing.T) {
	ts := newTestServer(t, api.Keys{})
	ts.create(t, "line-1")
	ts.do(t, http.MethodGet, "/api/credit-lines/line-1", nil, "")

	w := ts.do(t, http.MethodGet, "/metrics", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "credit_engine_http_requests_total")
	// Counts break down by resolved route pattern, not a constant label.
	assert.Contains(t, body, `route="/api/credit-lines/{id}"`)
}
