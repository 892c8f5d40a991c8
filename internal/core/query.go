package core

import (
	"encoding/base64"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Operator is a comparison operator from the closed whitelist accepted by the
// filter DSL. Anything outside the whitelist is rejected before a query runs.
type Operator string

const (
	OpEq  Operator = "="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpNeq Operator = "!="
)

// ParseOperator validates a wire-format operator against the whitelist.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpEq, OpGt, OpGte, OpLt, OpLte, OpNeq:
		return Operator(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}
}

// Filter is one predicate clause over a payload field. Verb controls how the
// clause combines with the accumulated predicate: "or" disjoins, anything
// else (including absent) conjoins. The first clause's verb is ignored.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
	Verb     string `json:"verb,omitempty"`
}

// Or reports whether the clause disjoins with the accumulated predicate.
func (f Filter) Or() bool {
	return strings.EqualFold(f.Verb, "or")
}

// OrderBy selects the ordering field and direction for filtered child
// queries. Any direction other than a case-insensitive "desc" means
// ascending. Ordering by a non-id field implicitly tie-breaks on object id.
type OrderBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"`
}

// Descending reports whether the direction is a case-insensitive "desc".
func (o OrderBy) Descending() bool {
	return strings.EqualFold(o.Direction, "desc")
}

// Cursor is the structured form of the opaque continuation token for
// filtered child queries. Field, Operator and Value express the keyset
// predicate for the next page; LastSeenID disambiguates rows that tie on a
// non-id ordering field.
type Cursor struct {
	Field      string `json:"field"`
	Operator   string `json:"operator"`
	Value      any    `json:"value"`
	LastSeenID string `json:"lastSeenId,omitempty"`
}

// Encode serializes the cursor to its wire form: base64 over UTF-8 JSON.
func (c *Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor parses a wire-format cursor token. The operator is validated
// against the whitelist; structural agreement with the current orderBy is the
// caller's responsibility.
func DecodeCursor(token string) (*Cursor, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding token: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: parsing token: %v", ErrInvalidCursor, err)
	}
	if _, err := ParseOperator(c.Operator); err != nil {
		return nil, err
	}
	if c.Field == "" {
		return nil, fmt.Errorf("%w: missing field", ErrInvalidCursor)
	}
	return &c, nil
}

// ChildrenQuery is a simple depth-bounded page request over an object's
// descendants, ordered by id ascending. Cursor is the last-seen id from the
// previous page (exclusive), empty for the first page.
type ChildrenQuery struct {
	ObjectID string
	Depth    int
	Limit    int
	Fields   []string
	Cursor   string
}

// ChildrenPage is one page of a simple children query. Cursor is empty on
// the terminal (empty) page.
type ChildrenPage struct {
	Objects []*Object
	Cursor  string
}

// ChildrenFilterQuery is a filtered, sorted, keyset-paginated request over an
// object's descendants. Cursor is the opaque token from the previous page.
type ChildrenFilterQuery struct {
	ObjectID string
	Depth    int
	Limit    int
	Fields   []string
	Filters  []Filter
	OrderBy  *OrderBy
	Cursor   string
}

// ChildrenResult is one page of a filtered children query. TotalCount is the
// cardinality of the full filtered set, not of this page. Cursor is empty
// exactly when this page is the final one.
type ChildrenResult struct {
	TotalCount int
	Objects    []*Object
	Cursor     string
}

// Query defaults applied when the caller leaves them unset.
const (
	DefaultDepth = 50
	DefaultLimit = 50
)

// Normalize fills in default depth and limit.
func (q *ChildrenQuery) Normalize() {
	if q.Depth <= 0 {
		q.Depth = DefaultDepth
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
}

// Normalize fills in default depth, limit and ordering.
func (q *ChildrenFilterQuery) Normalize() {
	if q.Depth <= 0 {
		q.Depth = DefaultDepth
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.OrderBy == nil || q.OrderBy.Field == "" {
		q.OrderBy = &OrderBy{Field: "id"}
	}
}
