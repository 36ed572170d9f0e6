package row

import (
	"sort"
)

// IDColumn is the primary key column every synced table must expose.
const IDColumn = "id"

// Timestamp columns consulted, in order, when resolving conflicts.
const (
	UpdatedAtColumn  = "updated_at"
	ModifiedAtColumn = "modified_at"
)

// Row is a flat mapping of column name to scalar value as read from SQLite.
//
// Values are one of: nil, int64, float64, string, []byte, bool, time.Time.
type Row map[string]any

// ID returns the row's primary key value and whether it is present.
func (r Row) ID() (any, bool) {
	v, ok := r[IDColumn]
	return v, ok
}

// Timestamp returns the conflict tie-breaker value: updated_at, falling back
// to modified_at. A missing or NULL timestamp returns nil.
func (r Row) Timestamp() any {
	if v, ok := r[UpdatedAtColumn]; ok && v != nil {
		return v
	}
	if v, ok := r[ModifiedAtColumn]; ok && v != nil {
		return v
	}
	return nil
}

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Clone returns a copy of the row. Byte slices are copied; other scalars are
// immutable.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		out[k] = v
	}
	return out
}

// Map returns the row as a plain map, the shape schema.Mapper works on.
func (r Row) Map() map[string]any {
	return map[string]any(r.Clone())
}

// Equal reports whether two rows have byte-identical canonical encodings.
// Rows that cannot be encoded are never equal.
func Equal(a, b Row) bool {
	ea, err := MarshalCanonical(a)
	if err != nil {
		return false
	}
	eb, err := MarshalCanonical(b)
	if err != nil {
		return false
	}
	return string(ea) == string(eb)
}

// Key returns a string usable as a map key for an id value. Keys of different
// types never collide (int64 1 and string "1" differ).
func Key(id any) (string, error) {
	b, err := MarshalCanonical(id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
