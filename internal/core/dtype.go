package core

import "strings"

// InferDtype assigns a dtype to a column of raw cell texts. NA tokens are
// ignored. The first dtype that accepts every remaining cell wins, tried in
// the order numeric, boolean, datetime. A column with no values at all has
// no firmer dtype than text.
func InferDtype(cells []string) Dtype {
	numeric, boolean, datetime := true, true, true
	seen := false

	for _, c := range cells {
		if isNAToken(c) {
			continue
		}
		seen = true
		if numeric {
			_, numeric = parseNumber(c)
		}
		if boolean {
			_, boolean = parseBoolToken(c)
		}
		if datetime {
			_, datetime = parseDate(c)
		}
		if !numeric && !boolean && !datetime {
			return DtypeText
		}
	}

	switch {
	case !seen:
		return DtypeText
	case numeric:
		return DtypeNumeric
	case boolean:
		return DtypeBoolean
	case datetime:
		return DtypeDatetime
	default:
		return DtypeText
	}
}

// typedColumn converts raw cells to values of dtype d. NA tokens become
// Missing. Text cells keep their raw text, surrounding whitespace included.
func typedColumn(cells []string, d Dtype) []Value {
	out := make([]Value, len(cells))
	for i, c := range cells {
		if isNAToken(c) {
			out[i] = Missing()
			continue
		}
		switch d {
		case DtypeNumeric:
			f, _ := parseNumber(c)
			out[i] = Number(f)
		case DtypeBoolean:
			b, _ := parseBoolToken(c)
			out[i] = Bool(b)
		case DtypeDatetime:
			t, _ := parseDate(c)
			out[i] = Time(t)
		default:
			out[i] = Text(c)
		}
	}
	return out
}

// buildTable infers dtypes for a header and rectangular body of raw cells.
func buildTable(header []string, body [][]string) *Table {
	t := &Table{
		Columns: make([]Column, len(header)),
		Rows:    make([][]Value, len(body)),
	}
	for i := range t.Rows {
		t.Rows[i] = make([]Value, len(header))
	}

	cells := make([]string, len(body))
	for col, name := range header {
		for r, row := range body {
			cells[r] = row[col]
		}
		d := InferDtype(cells)
		t.Columns[col] = Column{Name: name, Dtype: d}
		for r, v := range typedColumn(cells, d) {
			t.Rows[r][col] = v
		}
	}
	return t
}

// isBlankRecord reports whether every field of a record is empty.
func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
