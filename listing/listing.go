/*
Package listing is a general-purpose filter/sort/paginate utility for
record collections (e.g. the raw list of credit lines).

PURPOSE:
  List endpoints share the same shape of work: filter by a couple of
  fields, sort by one, slice out a page. This package does that over an
  arbitrary record type with an explicit, construction-validated schema
  instead of duck-typed field lookups: unknown field names are rejected
  up front rather than silently falling through.

CLAMP POLICY:
  Deliberately forgiving, in contrast to the strict ledger query:
  - page clamped to a minimum of 1 (default 1)
  - pageSize clamped to [1,100] (default 10)
  - non-numeric input silently falls back to the default
  - sortDirection accepts "asc" (default) and "desc"; anything else is asc
  The two pagination policies serve different call sites and must stay
  distinct; do not unify them.

FILTERS:
  Each schema field declares its match mode:
  - MatchExact:    value must equal the filter string
  - MatchContains: case-insensitive substring match
  A filter key can be redirected to a different underlying field via
  Alias (the caller-supplied field mapping).

SORT:
  Stable sort (ties preserve relative input order) by the natural
  ordering of the field's value type.

SEE ALSO:
  - creditline/query.go: The strict-reject pagination policy
*/
package listing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEMA - Explicit field mapping, validated at construction
// =============================================================================

// MatchMode selects how a filter value is compared against a field.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchContains
)

// Field describes one filterable/sortable field of a record.
type Field[T any] struct {
	Get   func(T) any
	Match MatchMode
}

// UnknownFieldError is returned for filter or sort keys that are not in
// the schema.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// Schema maps external field names to record accessors.
type Schema[T any] struct {
	fields      map[string]Field[T]
	aliases     map[string]string
	defaultSort string
}

// NewSchema builds a schema. The default sort field must be present;
// empty names or nil accessors are construction errors.
func NewSchema[T any](fields map[string]Field[T], defaultSort string) (*Schema[T], error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("listing: schema requires at least one field")
	}
	for name, f := range fields {
		if name == "" {
			return nil, fmt.Errorf("listing: empty field name")
		}
		if f.Get == nil {
			return nil, fmt.Errorf("listing: field %q has no accessor", name)
		}
	}
	if _, ok := fields[defaultSort]; !ok {
		return nil, &UnknownFieldError{Field: defaultSort}
	}
	return &Schema[T]{
		fields:      fields,
		aliases:     make(map[string]string),
		defaultSort: defaultSort,
	}, nil
}

// Alias redirects an external key to a different underlying field name.
// The target must exist in the schema.
func (s *Schema[T]) Alias(alias, field string) error {
	if _, ok := s.fields[field]; !ok {
		return &UnknownFieldError{Field: field}
	}
	s.aliases[alias] = field
	return nil
}

func (s *Schema[T]) resolve(name string) (Field[T], bool) {
	if target, ok := s.aliases[name]; ok {
		name = target
	}
	f, ok := s.fields[name]
	return f, ok
}

// =============================================================================
// QUERY AND RESULT
// =============================================================================

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// Query carries raw, untrusted list parameters. Pagination values are
// clamped, never rejected.
type Query struct {
	Page          string
	PageSize      string
	Filters       map[string]string
	SortBy        string
	SortDirection string
}

// Result is one page of records.
type Result[T any] struct {
	Items      []T
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Apply filters, sorts, and paginates recs according to q.
// Only unknown field names produce an error; everything else falls back
// to a sane default.
func (s *Schema[T]) Apply(recs []T, q Query) (Result[T], error) {
	// Filter (logical AND across keys)
	filtered := make([]T, 0, len(recs))
	matchers := make([]func(T) bool, 0, len(q.Filters))
	for key, want := range q.Filters {
		if want == "" {
			continue
		}
		f, ok := s.resolve(key)
		if !ok {
			return Result[T]{}, &UnknownFieldError{Field: key}
		}
		matchers = append(matchers, matcher(f, want))
	}
	for _, rec := range recs {
		keep := true
		for _, m := range matchers {
			if !m(rec) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, rec)
		}
	}

	// Sort (stable; ties keep input order)
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = s.defaultSort
	}
	sortField, ok := s.resolve(sortBy)
	if !ok {
		return Result[T]{}, &UnknownFieldError{Field: sortBy}
	}
	desc := strings.EqualFold(q.SortDirection, "desc")
	sort.SliceStable(filtered, func(i, j int) bool {
		c := compare(sortField.Get(filtered[i]), sortField.Get(filtered[j]))
		if desc {
			return c > 0
		}
		return c < 0
	})

	// Paginate (clamp policy)
	page := clampInt(q.Page, defaultPage, 1, 0)
	size := clampInt(q.PageSize, defaultPageSize, 1, maxPageSize)

	total := len(filtered)
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}

	start := (page - 1) * size
	end := start + size
	items := make([]T, 0)
	if start < total {
		if end > total {
			end = total
		}
		items = append(items, filtered[start:end]...)
	}

	return Result[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// clampInt parses raw, falling back to def on non-numeric input and
// clamping into [min, max]. max == 0 means no upper bound.
func clampInt(raw string, def, min, max int) int {
	n := def
	if raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil {
			n = parsed
		}
	}
	if n < min {
		n = min
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

func matcher[T any](f Field[T], want string) func(T) bool {
	switch f.Match {
	case MatchContains:
		needle := strings.ToLower(want)
		return func(rec T) bool {
			return strings.Contains(strings.ToLower(stringify(f.Get(rec))), needle)
		}
	default:
		return func(rec T) bool {
			return stringify(f.Get(rec)) == want
		}
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// compare orders two field values by the natural ordering of their type.
// Returns -1, 0, or 1.
func compare(a, b any) int {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			switch {
			case x.Before(y):
				return -1
			case x.After(y):
				return 1
			}
			return 0
		}
	case int:
		if y, ok := b.(int); ok {
			return cmpInt(int64(x), int64(y))
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmpInt(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			return x.Cmp(y)
		}
	}
	return strings.Compare(stringify(a), stringify(b))
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
