package store

import (
	"fmt"
	"strings"

	"github.com/CanoaPBC/speckle-server/internal/core"
)

// Restricted predicate builder for the filtered children query. Operators
// come from the core.Operator whitelist and casts from the closed fieldCast
// set below; field paths are passed to json_extract as bound arguments, so
// no caller-supplied string ever lands in predicate position.

// fieldCast selects how a payload field is compared. The cast follows the
// runtime type of the filter value: strings compare as text, booleans as the
// 0/1 integers JSON1 stores them as, numbers through a REAL cast.
type fieldCast int

const (
	castText fieldCast = iota
	castNumeric
	castBool
)

func castFor(value any) fieldCast {
	switch value.(type) {
	case bool:
		return castBool
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return castNumeric
	default:
		return castText
	}
}

// fieldExpr returns the SQL expression extracting a payload field under the
// given cast. The expression consumes one bound argument: the JSON path.
func fieldExpr(c fieldCast) string {
	if c == castNumeric {
		return "CAST(json_extract(o.data, ?) AS REAL)"
	}
	return "json_extract(o.data, ?)"
}

// jsonPath maps a dotted field name to a JSON1 path argument.
func jsonPath(field string) string {
	return "$." + field
}

// compareArg converts a filter value to the argument matching its cast.
func compareArg(c fieldCast, value any) any {
	if c == castBool {
		if value == true {
			return 1
		}
		return 0
	}
	return value
}

// buildFilters compiles the ordered clause list into one parenthesized SQL
// predicate. Clauses chain left to right; a clause's verb decides whether it
// conjoins or disjoins with everything accumulated so far.
func buildFilters(filters []core.Filter) (string, []any, error) {
	var sb strings.Builder
	var args []any
	for i, f := range filters {
		op, err := core.ParseOperator(f.Operator)
		if err != nil {
			return "", nil, err
		}
		if f.Field == "" {
			return "", nil, core.ErrEmptyField
		}
		if i > 0 {
			if f.Or() {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		c := castFor(f.Value)
		fmt.Fprintf(&sb, "%s %s ?", fieldExpr(c), op)
		args = append(args, jsonPath(f.Field), compareArg(c, f.Value))
	}
	return "(" + sb.String() + ")", args, nil
}

// buildOrder compiles the ORDER BY clause. Non-id fields tie-break on object
// id ascending because payload field values are not unique.
func buildOrder(ob *core.OrderBy) (string, []any) {
	dir := "ASC"
	if ob.Descending() {
		dir = "DESC"
	}
	if ob.Field == "id" {
		return "o.id " + dir, nil
	}
	return fmt.Sprintf("json_extract(o.data, ?) %s, o.id ASC", dir), []any{jsonPath(ob.Field)}
}

// buildCursor compiles a decoded continuation token into the keyset
// predicate for the next page. Ordering by id needs a single strict bound;
// a non-id field resumes past the last value OR across rows that tie on it.
func buildCursor(c *core.Cursor) (string, []any, error) {
	op, err := core.ParseOperator(c.Operator)
	if err != nil {
		return "", nil, err
	}
	strict := strictOperator(op)
	if c.Field == "id" || c.LastSeenID == "" {
		return fmt.Sprintf("o.id %s ?", strict), []any{c.Value}, nil
	}
	fc := castFor(c.Value)
	expr := fieldExpr(fc)
	sql := fmt.Sprintf("(%s %s ? OR (%s = ? AND o.id > ?))", expr, strict, expr)
	path := jsonPath(c.Field)
	value := compareArg(fc, c.Value)
	return sql, []any{path, value, path, value, c.LastSeenID}, nil
}

// strictOperator drops the equality half of a bound so a resumed page never
// re-returns the row the cursor was derived from.
func strictOperator(op core.Operator) core.Operator {
	switch op {
	case core.OpGte:
		return core.OpGt
	case core.OpLte:
		return core.OpLt
	default:
		return op
	}
}

// nextCursor derives the continuation token from the last row of a full
// page, under the query's ordering.
func nextCursor(ob *core.OrderBy, last *core.Object) *core.Cursor {
	if ob.Field == "id" {
		op := core.OpGt
		if ob.Descending() {
			op = core.OpLt
		}
		return &core.Cursor{Field: "id", Operator: string(op), Value: last.ID}
	}
	op := core.OpGte
	if ob.Descending() {
		op = core.OpLte
	}
	value, _ := last.Data.Get(ob.Field)
	return &core.Cursor{
		Field:      ob.Field,
		Operator:   string(op),
		Value:      value,
		LastSeenID: last.ID,
	}
}
