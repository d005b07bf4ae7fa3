package models

import (
	"net/url"
	"strconv"
	"strings"
)

// FilterOp is a comparison operator accepted in list-query field filters.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpGt  FilterOp = "gt"
	OpGte FilterOp = "gte"
	OpLt  FilterOp = "lt"
	OpLte FilterOp = "lte"
	OpIn  FilterOp = "in"
)

// FieldFilter is one `field[op]=value` condition from the query string.
type FieldFilter struct {
	Field  string
	Op     FilterOp
	Values []string
}

// ListQuery captures the generic listing convention shared by the collection
// endpoints: ?select=, ?sort=, ?page=, ?limit= plus field filters with
// comparison suffixes (field[gte]=, [lte]=, [gt]=, [lt]=, [in]=).
type ListQuery struct {
	Select  []string
	Sort    []string
	Page    int
	Limit   int
	Filters []FieldFilter
}

const (
	defaultPageLimit = 25
	maxPageLimit     = 100
)

// ParseListQuery extracts the listing convention from raw query values.
// Unknown operators and reserved parameters are ignored; field validation is
// left to the repository layer, which only honours whitelisted columns.
func ParseListQuery(values url.Values) ListQuery {
	q := ListQuery{Page: 1, Limit: defaultPageLimit}

	if raw := values.Get("select"); raw != "" {
		q.Select = splitCSV(raw)
	}
	if raw := values.Get("sort"); raw != "" {
		q.Sort = splitCSV(raw)
	}
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 0 {
		q.Page = page
	}
	if limit, err := strconv.Atoi(values.Get("limit")); err == nil && limit > 0 {
		q.Limit = limit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}

	for key, vals := range values {
		switch key {
		case "select", "sort", "page", "limit":
			continue
		}
		if len(vals) == 0 {
			continue
		}

		field, op := splitFilterKey(key)
		if field == "" {
			continue
		}

		filter := FieldFilter{Field: field, Op: op}
		if op == OpIn {
			filter.Values = splitCSV(vals[0])
		} else {
			filter.Values = []string{vals[0]}
		}
		q.Filters = append(q.Filters, filter)
	}

	return q
}

// Offset returns the row offset implied by page and limit.
func (q ListQuery) Offset() int {
	page := q.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * q.Limit
}

func splitFilterKey(key string) (string, FilterOp) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, OpEq
	}
	if !strings.HasSuffix(key, "]") {
		return "", OpEq
	}

	field := key[:open]
	switch FilterOp(key[open+1 : len(key)-1]) {
	case OpGt:
		return field, OpGt
	case OpGte:
		return field, OpGte
	case OpLt:
		return field, OpLt
	case OpLte:
		return field, OpLte
	case OpIn:
		return field, OpIn
	}
	return "", OpEq
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
