package core

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeStrategy selects label or one-hot encoding.
type EncodeStrategy string

const (
	EncodeLabel  EncodeStrategy = "label"
	EncodeOneHot EncodeStrategy = "one-hot"
)

// ParseEncodeStrategy validates a strategy name. "onehot" and "one_hot" are
// accepted as spellings of one-hot.
func ParseEncodeStrategy(s string) (EncodeStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "label":
		return EncodeLabel, nil
	case "one-hot", "onehot", "one_hot":
		return EncodeOneHot, nil
	default:
		return "", fmt.Errorf("%w: encoding strategy %q (use label or one-hot)", ErrInvalidStrategy, s)
	}
}

// categoryMap assigns codes to distinct values in order of first appearance.
// It lives for one column of one Encode call.
type categoryMap struct {
	codes  map[string]int
	values []Value
}

func newCategoryMap(vals []Value, includeMissing bool) *categoryMap {
	m := &categoryMap{codes: make(map[string]int)}
	for _, v := range vals {
		if v.IsMissing() && !includeMissing {
			continue
		}
		k := v.key()
		if _, ok := m.codes[k]; !ok {
			m.codes[k] = len(m.values)
			m.values = append(m.values, v)
		}
	}
	return m
}

func (m *categoryMap) code(v Value) (int, bool) {
	c, ok := m.codes[v.key()]
	return c, ok
}

// Encode label- or one-hot-encodes the target columns.
//
// Label encoding replaces each cell with the code of its value; Missing is a
// category of its own. One-hot encoding removes each target column and
// appends one Boolean column per distinct non-missing value, named
// {column}_{value}, after all retained columns.
func Encode(t *Table, strategy EncodeStrategy, columns []string) (*Table, error) {
	if strategy != EncodeLabel && strategy != EncodeOneHot {
		return nil, fmt.Errorf("%w: encoding strategy %q", ErrInvalidStrategy, strategy)
	}
	idxs, err := resolveColumns(t, columns)
	if err != nil {
		return nil, err
	}

	if strategy == EncodeLabel {
		return labelEncode(t, idxs), nil
	}
	return oneHotEncode(t, idxs), nil
}

func labelEncode(t *Table, idxs []int) *Table {
	out := t.Clone()
	for _, idx := range idxs {
		cats := newCategoryMap(out.columnValues(idx), true)
		for _, row := range out.Rows {
			c, _ := cats.code(row[idx])
			row[idx] = Number(float64(c))
		}
		out.Columns[idx].Dtype = DtypeNumeric
	}
	return out
}

func oneHotEncode(t *Table, idxs []int) *Table {
	target := make(map[int]bool, len(idxs))
	for _, idx := range idxs {
		target[idx] = true
	}

	var keep []int
	used := make(map[string]bool, len(t.Columns))
	out := &Table{Rows: make([][]Value, len(t.Rows))}
	for i, c := range t.Columns {
		if target[i] {
			continue
		}
		keep = append(keep, i)
		used[c.Name] = true
		out.Columns = append(out.Columns, c)
	}

	type indicator struct {
		src  int
		cats *categoryMap
		code int
	}
	var indicators []indicator
	for _, idx := range idxs {
		cats := newCategoryMap(t.columnValues(idx), false)
		for code, v := range cats.values {
			name := uniqueName(t.Columns[idx].Name+"_"+v.String(), used)
			used[name] = true
			out.Columns = append(out.Columns, Column{Name: name, Dtype: DtypeBoolean})
			indicators = append(indicators, indicator{src: idx, cats: cats, code: code})
		}
	}

	for r, row := range t.Rows {
		nr := make([]Value, 0, len(out.Columns))
		for _, i := range keep {
			nr = append(nr, row[i])
		}
		for _, ind := range indicators {
			c, ok := ind.cats.code(row[ind.src])
			nr = append(nr, Bool(ok && c == ind.code))
		}
		out.Rows[r] = nr
	}
	return out
}

// uniqueName suffixes name with _1, _2, ... until it is unused.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for n := 1; ; n++ {
		candidate := name + "_" + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}
