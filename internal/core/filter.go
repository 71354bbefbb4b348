package core

import (
	"fmt"
	"strings"
)

// Operator is a filter comparison operator.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual,
		OpEqual, OpNotEqual, OpContains, OpNotContains:
		return true
	}
	return false
}

func (op Operator) relational() bool {
	return op == OpGreater || op == OpGreaterEqual || op == OpLess || op == OpLessEqual
}

// EqualityFallback decides what == and != do when the literal cannot be
// coerced to the column's dtype.
type EqualityFallback string

const (
	// FallbackText compares the cell's text rendering with the literal text.
	FallbackText EqualityFallback = "text"
	// FallbackStrict fails the request with ErrTypeCoercion.
	FallbackStrict EqualityFallback = "strict"
)

// ParseEqualityFallback reads a policy name case-insensitively. Anything
// other than strict is text.
func ParseEqualityFallback(s string) EqualityFallback {
	if strings.EqualFold(strings.TrimSpace(s), string(FallbackStrict)) {
		return FallbackStrict
	}
	return FallbackText
}

// FilterSpec is a single predicate: column, operator, literal.
type FilterSpec struct {
	Column   string
	Operator Operator
	Value    string
}

// FilterResult reports what a filter did.
type FilterResult struct {
	RowsRemoved int `json:"rows_removed"`
	// UsedTextFallback is set when == or != fell back to text comparison.
	UsedTextFallback bool `json:"used_text_fallback,omitempty"`
}

// Filter keeps the rows that satisfy spec, in their original order.
func Filter(t *Table, spec FilterSpec, fallback EqualityFallback) (*Table, FilterResult, error) {
	idx := t.Index(spec.Column)
	if idx < 0 {
		return nil, FilterResult{}, fmt.Errorf("%w: %q", ErrColumnNotFound, spec.Column)
	}
	if !spec.Operator.Valid() {
		return nil, FilterResult{}, fmt.Errorf("%w: %q", ErrInvalidOperator, spec.Operator)
	}

	col := t.Columns[idx]
	match, usedFallback, err := predicate(col, spec, fallback)
	if err != nil {
		return nil, FilterResult{}, err
	}

	out := &Table{
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([][]Value, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		if match(row[idx]) {
			out.Rows = append(out.Rows, append([]Value(nil), row...))
		}
	}
	out.rederive()

	return out, FilterResult{
		RowsRemoved:      len(t.Rows) - len(out.Rows),
		UsedTextFallback: usedFallback,
	}, nil
}

// predicate builds the per-cell test for spec against col.
func predicate(col Column, spec FilterSpec, fallback EqualityFallback) (func(Value) bool, bool, error) {
	switch {
	case spec.Operator.relational():
		lit, ok := parseNumber(spec.Value)
		if !ok {
			return nil, false, fmt.Errorf("%w: %q is not a number (operator %s on column %q)",
				ErrTypeCoercion, spec.Value, spec.Operator, col.Name)
		}
		return relational(spec.Operator, lit), false, nil

	case spec.Operator == OpContains || spec.Operator == OpNotContains:
		if col.Dtype != DtypeText {
			return nil, false, fmt.Errorf("%w: %s on %s column %q",
				ErrUnsupportedOperatorForType, spec.Operator, col.Dtype, col.Name)
		}
		needle := strings.ToLower(spec.Value)
		contains := func(v Value) bool {
			return !v.IsMissing() && strings.Contains(strings.ToLower(v.String()), needle)
		}
		if spec.Operator == OpNotContains {
			return func(v Value) bool { return !contains(v) }, false, nil
		}
		return contains, false, nil

	default:
		eq, usedFallback, err := equality(col, spec.Value, fallback)
		if err != nil {
			return nil, false, err
		}
		if spec.Operator == OpNotEqual {
			return func(v Value) bool { return !eq(v) }, usedFallback, nil
		}
		return eq, usedFallback, nil
	}
}

// relational compares the numeric reading of a cell with lit. Cells with no
// numeric reading never match.
func relational(op Operator, lit float64) func(Value) bool {
	return func(v Value) bool {
		f, ok := numericReading(v)
		if !ok {
			return false
		}
		switch op {
		case OpGreater:
			return f > lit
		case OpGreaterEqual:
			return f >= lit
		case OpLess:
			return f < lit
		default:
			return f <= lit
		}
	}
}

// numericReading coerces a cell to a number: numbers as is, booleans as
// 1 or 0, text when it parses. Missing and datetimes have no reading.
func numericReading(v Value) (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindText:
		return parseNumber(v.s)
	default:
		return 0, false
	}
}

// equality returns the == test for a column. The coercion target follows
// the column dtype; when the literal does not coerce, the fallback policy
// decides between text comparison and ErrTypeCoercion. Missing never equals
// anything.
func equality(col Column, literal string, fallback EqualityFallback) (func(Value) bool, bool, error) {
	switch col.Dtype {
	case DtypeNumeric:
		if lit, ok := parseNumber(literal); ok {
			return func(v Value) bool {
				f, ok := v.Float()
				return ok && f == lit
			}, false, nil
		}
	case DtypeDatetime:
		if lit, ok := parseDate(literal); ok {
			return func(v Value) bool {
				t, ok := v.TimeValue()
				return ok && t.Equal(lit)
			}, false, nil
		}
	case DtypeBoolean:
		lit := equalityBool(literal)
		return func(v Value) bool {
			b, ok := v.BoolValue()
			return ok && b == lit
		}, false, nil
	default:
		return textEquals(literal), false, nil
	}

	if fallback == FallbackStrict {
		return nil, false, fmt.Errorf("%w: %q is not a valid %s for column %q",
			ErrTypeCoercion, literal, col.Dtype, col.Name)
	}
	return textEquals(literal), true, nil
}

func textEquals(literal string) func(Value) bool {
	return func(v Value) bool {
		return !v.IsMissing() && v.String() == literal
	}
}
