package docstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/scalestore/validation"
)

// Where is a single field-equality clause.
type Where struct {
	Field string
	Value any
}

// Parameter is a named query parameter.
type Parameter struct {
	Name  string
	Value any
}

// Query is a filtered listing: equality clauses ANDed together and an
// optional result cap. Text is the SQL-like rendering handed to the
// container, kept for logs and tests; backends filter on Where and Limit.
type Query struct {
	Text       string
	Parameters []Parameter
	Where      []Where
	Limit      int
}

// BuildQuery renders where clauses and limit into a Query. Field names must
// be plain identifiers. A limit <= 0 means unbounded.
func BuildQuery(where []Where, limit int) (Query, error) {
	v := validation.New()
	for i, w := range where {
		v.Identifier(fmt.Sprintf("where[%d].field", i), w.Field)
	}
	if err := v.Err(); err != nil {
		return Query{}, err
	}
	if limit < 0 {
		limit = 0
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if limit > 0 {
		fmt.Fprintf(&b, "TOP %d ", limit)
	}
	b.WriteString("* FROM c")

	params := make([]Parameter, 0, len(where))
	for i, w := range where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		name := fmt.Sprintf("@p%d", i)
		fmt.Fprintf(&b, "c.%s = %s", w.Field, name)
		params = append(params, Parameter{Name: name, Value: w.Value})
	}

	return Query{Text: b.String(), Parameters: params, Where: where, Limit: limit}, nil
}

// Matches reports whether rec satisfies every clause. A nil clause value
// matches a missing or null field.
func Matches(rec Record, where []Where) bool {
	for _, w := range where {
		if !ValuesEqual(rec[w.Field], w.Value) {
			return false
		}
	}
	return true
}

// Apply filters records in process, orders them by id and caps the result
// at q.Limit. It is used by backends that cannot push the filter down.
func (q Query) Apply(records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return KeyString(sorted[i][FieldID]) < KeyString(sorted[j][FieldID])
	})

	out := make([]Record, 0, len(sorted))
	for _, rec := range sorted {
		if !Matches(rec, q.Where) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}
