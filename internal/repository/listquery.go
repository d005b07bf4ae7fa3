package repository

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/yegara-dev/community-api/internal/models"
)

// sqlListQuery translates the generic list-query convention into SQL
// fragments. Only whitelisted columns are honoured; anything else in the
// query string is ignored rather than rejected, matching the tolerant
// behaviour of the API.
type sqlListQuery struct {
	columns map[string]bool
}

func newSQLListQuery(columns ...string) *sqlListQuery {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return &sqlListQuery{columns: set}
}

// projection renders the SELECT column list. Requested fields outside the
// whitelist are dropped, and id always rides along so handlers can link
// rows. With nothing valid requested the full column set is used.
func (b *sqlListQuery) projection(q models.ListQuery, all string) string {
	var cols []string
	seenID := false
	for _, f := range q.Select {
		col := toColumn(f)
		if !b.columns[col] && col != "id" {
			continue
		}
		if col == "id" {
			seenID = true
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return all
	}
	if !seenID {
		cols = append([]string{"id"}, cols...)
	}
	return strings.Join(cols, ", ")
}

// conditions renders field filters into WHERE fragments, appending bind
// arguments to args. Positional placeholders continue from len(args).
func (b *sqlListQuery) conditions(q models.ListQuery, args []interface{}) ([]string, []interface{}) {
	var conds []string
	for _, f := range q.Filters {
		col := toColumn(f.Field)
		if !b.columns[col] || len(f.Values) == 0 {
			continue
		}

		switch f.Op {
		case models.OpIn:
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col, len(args)+1))
			args = append(args, pq.Array(f.Values))
		case models.OpGt, models.OpGte, models.OpLt, models.OpLte:
			conds = append(conds, fmt.Sprintf("%s %s $%d", col, sqlOp(f.Op), len(args)+1))
			args = append(args, f.Values[0])
		default:
			conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)+1))
			args = append(args, f.Values[0])
		}
	}
	return conds, args
}

// orderBy renders the sort clause. A leading '-' on a sort field means
// descending. Falls back to newest-first when nothing valid is requested.
func (b *sqlListQuery) orderBy(q models.ListQuery) string {
	var parts []string
	for _, s := range q.Sort {
		dir := "ASC"
		field := s
		if strings.HasPrefix(s, "-") {
			dir = "DESC"
			field = s[1:]
		}
		col := toColumn(field)
		if !b.columns[col] {
			continue
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return "created_at DESC"
	}
	return strings.Join(parts, ", ")
}

func sqlOp(op models.FilterOp) string {
	switch op {
	case models.OpGt:
		return ">"
	case models.OpGte:
		return ">="
	case models.OpLt:
		return "<"
	case models.OpLte:
		return "<="
	}
	return "="
}

// toColumn maps API camelCase field names onto snake_case columns.
func toColumn(field string) string {
	var b strings.Builder
	for _, r := range field {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
