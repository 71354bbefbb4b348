package core

import (
	"fmt"
	"sort"
	"strings"
)

// RowPolicy selects which rows DropMissingRows removes.
type RowPolicy string

const (
	// DropAny removes a row when at least one cell is Missing.
	DropAny RowPolicy = "any"
	// DropAll removes a row only when every cell is Missing.
	DropAll RowPolicy = "all"
)

// ParseRowPolicy validates a policy name. An empty name means any.
func ParseRowPolicy(s string) (RowPolicy, error) {
	switch p := RowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DropAny, nil
	case DropAny, DropAll:
		return p, nil
	default:
		return "", fmt.Errorf("%w: drop policy %q (use any or all)", ErrInvalidStrategy, s)
	}
}

// DropMissingRows removes rows according to policy and returns the result
// together with the number of rows removed. A table without columns never
// loses rows.
func DropMissingRows(t *Table, policy RowPolicy) (*Table, int, error) {
	if policy != DropAny && policy != DropAll {
		return nil, 0, fmt.Errorf("%w: drop policy %q", ErrInvalidStrategy, policy)
	}

	out := &Table{
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([][]Value, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		if !rowDropped(row, policy) {
			out.Rows = append(out.Rows, append([]Value(nil), row...))
		}
	}
	out.rederive()
	return out, len(t.Rows) - len(out.Rows), nil
}

func rowDropped(row []Value, policy RowPolicy) bool {
	if len(row) == 0 {
		return false
	}
	missing := 0
	for _, v := range row {
		if v.IsMissing() {
			missing++
		}
	}
	if policy == DropAll {
		return missing == len(row)
	}
	return missing > 0
}

// FillStrategy selects how FillMissing computes the replacement value.
type FillStrategy string

const (
	FillMean     FillStrategy = "mean"
	FillMedian   FillStrategy = "median"
	FillMode     FillStrategy = "mode"
	FillConstant FillStrategy = "constant"
)

// FillOptions describes a fill request. Value is used by FillConstant only
// and is coerced to each target column's dtype. A nil Value means none was
// given; a pointer to "" is an empty string, which fills Text columns.
type FillOptions struct {
	Strategy FillStrategy
	Columns  []string
	Value    *string
}

// FillReport is the per-column outcome of FillMissing.
type FillReport struct {
	Column  string `json:"column"`
	Filled  int    `json:"filled"`
	Value   string `json:"value,omitempty"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// FillMissing replaces Missing cells in the target columns. Columns the
// strategy cannot serve are left untouched and reported as skipped. The
// replacement value is computed from the original cells before any write.
func FillMissing(t *Table, opts FillOptions) (*Table, []FillReport, error) {
	switch opts.Strategy {
	case FillMean, FillMedian, FillMode:
	case FillConstant:
		if opts.Value == nil {
			return nil, nil, fmt.Errorf("%w: constant fill requires a value", ErrInvalidStrategy)
		}
	default:
		return nil, nil, fmt.Errorf("%w: fill strategy %q (use mean, median, mode or constant)", ErrInvalidStrategy, opts.Strategy)
	}

	idxs, err := resolveColumns(t, opts.Columns)
	if err != nil {
		return nil, nil, err
	}

	out := t.Clone()
	reports := make([]FillReport, 0, len(idxs))
	for _, idx := range idxs {
		col := out.Columns[idx]
		rep := FillReport{Column: col.Name}

		fill, reason := fillValue(col.Dtype, out.columnValues(idx), opts)
		if reason != "" {
			rep.Skipped, rep.Reason = true, reason
			reports = append(reports, rep)
			continue
		}

		for _, row := range out.Rows {
			if row[idx].IsMissing() {
				row[idx] = fill
				rep.Filled++
			}
		}
		rep.Value = fill.String()
		reports = append(reports, rep)
	}
	return out, reports, nil
}

// resolveColumns maps names to indexes, rejecting empty lists and unknown
// names. Duplicate names resolve once.
func resolveColumns(t *Table, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one column is required", ErrInvalidColumns)
	}
	seen := make(map[int]bool, len(names))
	idxs := make([]int, 0, len(names))
	for _, name := range names {
		idx := t.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
		}
		if !seen[idx] {
			seen[idx] = true
			idxs = append(idxs, idx)
		}
	}
	return idxs, nil
}

// fillValue computes the replacement for one column, or a skip reason.
func fillValue(d Dtype, vals []Value, opts FillOptions) (Value, string) {
	switch opts.Strategy {
	case FillMean:
		if d != DtypeNumeric {
			return Value{}, "mean requires a numeric column (column is " + string(d) + ")"
		}
		mean, ok := columnMean(vals)
		if !ok {
			return Value{}, "column has no values to average"
		}
		return Number(mean), ""

	case FillMedian:
		if d != DtypeNumeric {
			return Value{}, "median requires a numeric column (column is " + string(d) + ")"
		}
		median, ok := columnMedian(vals)
		if !ok {
			return Value{}, "column has no values to take a median of"
		}
		return Number(median), ""

	case FillMode:
		mode, ok := columnMode(vals)
		if !ok {
			return Value{}, "column has no values to take a mode of"
		}
		return mode, ""

	default:
		v, ok := coerceLiteral(*opts.Value, d)
		if !ok {
			return Value{}, fmt.Sprintf("value %q is not a valid %s", *opts.Value, d)
		}
		return v, ""
	}
}

// columnMean is a running (Welford) mean over the non-missing numbers.
func columnMean(vals []Value) (float64, bool) {
	var mean float64
	n := 0
	for _, v := range vals {
		f, ok := v.Float()
		if !ok {
			continue
		}
		n++
		mean += (f - mean) / float64(n)
	}
	return mean, n > 0
}

func columnMedian(vals []Value) (float64, bool) {
	nums := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := v.Float(); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return 0, false
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return nums[mid], true
	}
	return (nums[mid-1] + nums[mid]) / 2, true
}

// columnMode returns the most frequent non-missing value. Ties go to the
// value seen first.
func columnMode(vals []Value) (Value, bool) {
	counts := make(map[string]int)
	var order []Value
	for _, v := range vals {
		if v.IsMissing() {
			continue
		}
		k := v.key()
		if counts[k] == 0 {
			order = append(order, v)
		}
		counts[k]++
	}
	if len(order) == 0 {
		return Value{}, false
	}
	best := order[0]
	for _, v := range order[1:] {
		if counts[v.key()] > counts[best.key()] {
			best = v
		}
	}
	return best, true
}
