package graph

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is one normalized record. Columns keep the order the store emitted
// them in, including when encoded as JSON.
type Row struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{fields: orderedmap.New[string, any]()}
}

// Set stores value under column and returns the row for chaining.
func (r *Row) Set(column string, value any) *Row {
	r.fields.Set(column, value)
	return r
}

// Get returns the value of column.
func (r *Row) Get(column string) (any, bool) {
	return r.fields.Get(column)
}

// Columns returns the column names in order.
func (r *Row) Columns() []string {
	columns := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		columns = append(columns, pair.Key)
	}
	return columns
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return r.fields.Len()
}

// Map returns an unordered copy of the row.
func (r *Row) Map() map[string]any {
	out := make(map[string]any, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// MarshalJSON encodes the row as an object with columns in order.
func (r *Row) MarshalJSON() ([]byte, error) {
	return r.fields.MarshalJSON()
}

// UnmarshalJSON decodes an object, keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
	return r.fields.UnmarshalJSON(data)
}
