package core

import (
	"math"
	"strconv"
	"time"
)

// Dtype is the semantic type of a column. Every operation dispatches on it.
type Dtype string

const (
	DtypeNumeric  Dtype = "numeric"
	DtypeBoolean  Dtype = "boolean"
	DtypeDatetime Dtype = "datetime"
	DtypeText     Dtype = "text"
)

// Valid reports whether d is one of the known dtypes.
func (d Dtype) Valid() bool {
	switch d {
	case DtypeNumeric, DtypeBoolean, DtypeDatetime, DtypeText:
		return true
	}
	return false
}

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindBool
	KindTime
	KindText
)

// dtype returns the column dtype a non-missing value of this kind belongs to.
func (k Kind) dtype() Dtype {
	switch k {
	case KindNumber:
		return DtypeNumeric
	case KindBool:
		return DtypeBoolean
	case KindTime:
		return DtypeDatetime
	default:
		return DtypeText
	}
}

// Value is a single table cell. The zero Value is Missing.
type Value struct {
	kind Kind
	num  float64
	b    bool
	t    time.Time
	s    string
}

// Missing returns the distinguished "no value" marker.
func Missing() Value { return Value{} }

// Number returns a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean cell.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Time returns a datetime cell, normalized to UTC.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t.UTC()} }

// Text returns a text cell. Text("") is a real empty string, not Missing.
func Text(s string) Value { return Value{kind: KindText, s: s} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric payload.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// BoolValue returns the boolean payload.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// TimeValue returns the datetime payload.
func (v Value) TimeValue() (time.Time, bool) { return v.t, v.kind == KindTime }

// TextValue returns the text payload.
func (v Value) TextValue() (string, bool) { return v.s, v.kind == KindText }

// String renders the value for previews and exports. Missing renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindTime:
		return formatTime(v.t)
	case KindText:
		return v.s
	default:
		return ""
	}
}

// Equal reports structural equality. Two Missing values are equal here;
// filter semantics (where Missing never equals anything) live in filter.go.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindTime:
		return v.t.Equal(o.t)
	case KindText:
		return v.s == o.s
	default:
		return true
	}
}

// key is a map key that distinguishes values by kind and payload.
func (v Value) key() string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindTime:
		return "t:" + v.t.Format(time.RFC3339Nano)
	case KindText:
		return "s:" + v.s
	default:
		return "missing"
	}
}

func formatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Column is a named, typed column.
type Column struct {
	Name  string
	Dtype Dtype
}

// Table is the in-memory tabular value held by a session.
// Every row has exactly len(Columns) cells, in column order.
type Table struct {
	Columns []Column
	Rows    [][]Value
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int { return len(t.Rows) }

// Clone returns a deep copy; operations never mutate their input.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([][]Value, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]Value(nil), row...)
	}
	return out
}

// columnValues returns a copy of the cells in column idx.
func (t *Table) columnValues(idx int) []Value {
	vals := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		vals[i] = row[idx]
	}
	return vals
}

// rederive recomputes every column dtype from its cells after a structural
// change. A column whose cells are all Missing keeps its previous dtype.
func (t *Table) rederive() {
	for i := range t.Columns {
		if d, ok := dtypeOfValues(t.columnValues(i)); ok {
			t.Columns[i].Dtype = d
		}
	}
}

// dtypeOfValues returns the dtype implied by the non-missing cells. ok is
// false when every cell is Missing.
func dtypeOfValues(vals []Value) (Dtype, bool) {
	var kind Kind
	for _, v := range vals {
		if v.IsMissing() {
			continue
		}
		if kind == KindMissing {
			kind = v.kind
			continue
		}
		if v.kind != kind {
			return DtypeText, true
		}
	}
	if kind == KindMissing {
		return "", false
	}
	return kind.dtype(), true
}
