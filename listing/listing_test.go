package listing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/credit-engine/listing"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

type record struct {
	ID        string
	Status    string
	Borrower  string
	CreatedAt time.Time
}

func newSchema(t *testing.T) *listing.Schema[record] {
	t.Helper()
	s, err := listing.NewSchema(map[string]listing.Field[record]{
		"id":        {Get: func(r record) any { return r.ID }},
		"status":    {Get: func(r record) any { return r.Status }},
		"borrower":  {Get: func(r record) any { return r.Borrower }, Match: listing.MatchContains},
		"createdAt": {Get: func(r record) any { return r.CreatedAt }},
	}, "createdAt")
	require.NoError(t, err)
	return s
}

func fixtures() []record {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	return []record{
		{ID: "r1", Status: "active", Borrower: "Acme Corp", CreatedAt: base.AddDate(0, 0, 3)},
		{ID: "r2", Status: "closed", Borrower: "Beta LLC", CreatedAt: base.AddDate(0, 0, 1)},
		{ID: "r3", Status: "active", Borrower: "Gamma Holdings", CreatedAt: base.AddDate(0, 0, 2)},
		{ID: "r4", Status: "suspended", Borrower: "acme subsidiaries", CreatedAt: base.AddDate(0, 0, 4)},
	}
}

// =============================================================================
// SCHEMA CONSTRUCTION
// =============================================================================

func TestNewSchema_RejectsUnknownDefaultSort(t *testing.T) {
	_, err := listing.NewSchema(map[string]listing.Field[record]{
		"id": {Get: func(r record) any { return r.ID }},
	}, "createdAt")

	var unknown *listing.UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "createdAt", unknown.Field)
}

func TestNewSchema_RejectsNilAccessor(t *testing.T) {
	_, err := listing.NewSchema(map[string]listing.Field[record]{
		"id": {},
	}, "id")
	assert.Error(t, err)
}

func TestSchema_Alias_RedirectsFilterKey(t *testing.T) {
	// A filter key can point at a different underlying field name.

	s := newSchema(t)
	require.NoError(t, s.Alias("company", "borrower"))

	result, err := s.Apply(fixtures(), listing.Query{
		Filters: map[string]string{"company": "acme"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func TestSchema_Alias_UnknownTargetRejected(t *testing.T) {
	s := newSchema(t)
	err := s.Alias("company", "organization")

	var unknown *listing.UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "organization", unknown.Field)
}

// =============================================================================
// FILTERING
// =============================================================================

func TestApply_StatusExactMatch(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{
		Filters: map[string]string{"status": "active"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	for _, r := range result.Items {
		assert.Equal(t, "active", r.Status)
	}
}

func TestApply_BorrowerCaseInsensitiveSubstring(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{
		Filters: map[string]string{"borrower": "ACME"},
	})

	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	assert.ElementsMatch(t, []string{"r1", "r4"}, []string{result.Items[0].ID, result.Items[1].ID})
}

func TestApply_UnknownFilterField_Rejected(t *testing.T) {
	s := newSchema(t)

	_, err := s.Apply(fixtures(), listing.Query{
		Filters: map[string]string{"region": "emea"},
	})

	var unknown *listing.UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "region", unknown.Field)
}

func TestApply_EmptyFilterValueIgnored(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{
		Filters: map[string]string{"status": ""},
	})

	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
}

// =============================================================================
// SORTING
// =============================================================================

func TestApply_DefaultSortIsCreatedAtAscending(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{})

	require.NoError(t, err)
	require.Len(t, result.Items, 4)
	assert.Equal(t, []string{"r2", "r3", "r1", "r4"},
		[]string{result.Items[0].ID, result.Items[1].ID, result.Items[2].ID, result.Items[3].ID})
}

func TestApply_SortDescending(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{SortBy: "id", SortDirection: "desc"})

	require.NoError(t, err)
	assert.Equal(t, "r4", result.Items[0].ID)
	assert.Equal(t, "r1", result.Items[3].ID)
}

func TestApply_UnknownSortDirectionFallsBackToAsc(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{SortBy: "id", SortDirection: "sideways"})

	require.NoError(t, err)
	assert.Equal(t, "r1", result.Items[0].ID)
}

func TestApply_UnknownSortField_Rejected(t *testing.T) {
	s := newSchema(t)

	_, err := s.Apply(fixtures(), listing.Query{SortBy: "riskScore"})

	var unknown *listing.UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "riskScore", unknown.Field)
}

func TestApply_SortIsStable(t *testing.T) {
	// Ties on the sort key preserve relative input order.

	recs := []record{
		{ID: "first", Status: "active"},
		{ID: "second", Status: "active"},
		{ID: "third", Status: "active"},
	}
	s := newSchema(t)

	result, err := s.Apply(recs, listing.Query{SortBy: "status"})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{result.Items[0].ID, result.Items[1].ID, result.Items[2].ID})
}

// =============================================================================
// PAGINATION (CLAMP POLICY)
// =============================================================================

func TestApply_PaginationDefaults(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 10, result.PageSize)
	assert.Equal(t, 1, result.TotalPages)
}

func TestApply_PaginationClampsInsteadOfRejecting(t *testing.T) {
	// In contrast to the strict ledger query policy, bad input here is
	// clamped or defaulted, never an error.

	s := newSchema(t)
	recs := fixtures()

	cases := []struct {
		name     string
		page     string
		pageSize string
		wantPage int
		wantSize int
	}{
		{"zero page clamps to 1", "0", "2", 1, 2},
		{"negative page clamps to 1", "-5", "2", 1, 2},
		{"non-numeric page falls back to default", "abc", "2", 1, 2},
		{"oversized pageSize clamps to 100", "1", "5000", 1, 100},
		{"zero pageSize clamps to 1", "1", "0", 1, 1},
		{"non-numeric pageSize falls back to 10", "1", "ten", 1, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := s.Apply(recs, listing.Query{Page: tc.page, PageSize: tc.pageSize})
			require.NoError(t, err)
			assert.Equal(t, tc.wantPage, result.Page)
			assert.Equal(t, tc.wantSize, result.PageSize)
		})
	}
}

func TestApply_PageSlicing(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{Page: "2", PageSize: "3"})

	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.TotalPages)
	// Default sort puts r4 (latest createdAt) last, alone on page 2.
	assert.Equal(t, "r4", result.Items[0].ID)
}

func TestApply_PageBeyondRange_EmptyItems(t *testing.T) {
	s := newSchema(t)

	result, err := s.Apply(fixtures(), listing.Query{Page: "10"})

	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 4, result.Total)
}
