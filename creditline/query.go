/*
query.go - Ledger query input: filter and strict pagination

PURPOSE:
  Input types for the ledger query engine, including validation. Filter
  fields arrive as strings (they originate from URL query parameters) and
  are validated here rather than silently ignored: an unrecognized type or
  an unparseable timestamp is a ValidationError, not an empty result.

STRICT PAGINATION:
  page:  integer >= 1, default 1
  limit: integer in [1,100], default 20
  Out-of-domain or non-integer values are rejected. Contrast with the
  listing package, which clamps and defaults instead; both policies are
  intentional and must not be unified.

SEE ALSO:
  - ledger.go: The query engine consuming these types
*/
package creditline

import (
	"strconv"
	"time"
)

// =============================================================================
// FILTER
// =============================================================================

// TransactionFilter restricts a ledger query. All fields are optional and
// combine with logical AND. From/To are RFC3339 timestamps, inclusive on
// both bounds.
type TransactionFilter struct {
	Type string
	From string
	To   string
}

type compiledFilter struct {
	typ            TransactionType
	hasType        bool
	from, to       time.Time
	hasFrom, hasTo bool
}

func (f TransactionFilter) compile() (compiledFilter, error) {
	var c compiledFilter
	if f.Type != "" {
		t := TransactionType(f.Type)
		if !ValidTransactionType(t) {
			return c, &ValidationError{Field: "type", Message: "must be one of draw, repayment, status_change"}
		}
		c.typ = t
		c.hasType = true
	}
	if f.From != "" {
		ts, err := time.Parse(time.RFC3339, f.From)
		if err != nil {
			return c, &ValidationError{Field: "from", Message: "must be an RFC3339 timestamp"}
		}
		c.from = ts
		c.hasFrom = true
	}
	if f.To != "" {
		ts, err := time.Parse(time.RFC3339, f.To)
		if err != nil {
			return c, &ValidationError{Field: "to", Message: "must be an RFC3339 timestamp"}
		}
		c.to = ts
		c.hasTo = true
	}
	return c, nil
}

func (c compiledFilter) matches(tx Transaction) bool {
	if c.hasType && tx.Type != c.typ {
		return false
	}
	if c.hasFrom && tx.Timestamp.Before(c.from) {
		return false
	}
	if c.hasTo && tx.Timestamp.After(c.to) {
		return false
	}
	return true
}

// =============================================================================
// STRICT PAGINATION
// =============================================================================

const (
	defaultQueryPage  = 1
	defaultQueryLimit = 20
	maxQueryLimit     = 100
)

// PageRequest selects one page of a ledger query. Zero values mean
// "use the default"; explicitly out-of-domain values are rejected.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) validate() (PageRequest, error) {
	if p.Page == 0 {
		p.Page = defaultQueryPage
	}
	if p.Limit == 0 {
		p.Limit = defaultQueryLimit
	}
	if p.Page < 1 {
		return p, &ValidationError{Field: "page", Message: "must be an integer >= 1"}
	}
	if p.Limit < 1 || p.Limit > maxQueryLimit {
		return p, &ValidationError{Field: "limit", Message: "must be an integer in [1,100]"}
	}
	return p, nil
}

// ParsePageRequest converts raw query-string values into a PageRequest.
// Empty strings select the defaults; non-integer input is a
// ValidationError (strict policy, no clamping).
func ParsePageRequest(page, limit string) (PageRequest, error) {
	var p PageRequest
	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return p, &ValidationError{Field: "page", Message: "must be an integer >= 1"}
		}
		p.Page = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxQueryLimit {
			return p, &ValidationError{Field: "limit", Message: "must be an integer in [1,100]"}
		}
		p.Limit = n
	}
	return p, nil
}
