package core

import "fmt"

// DropColumn removes the named column. Survivors keep their order.
//
// When the column does not exist DropColumn returns the input table itself,
// untouched, together with ErrColumnNotFound. The caller decides whether
// that is a hard failure or a no-op with a message.
func DropColumn(t *Table, name string) (*Table, error) {
	idx := t.Index(name)
	if idx < 0 {
		return t, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}

	out := &Table{
		Columns: make([]Column, 0, len(t.Columns)-1),
		Rows:    make([][]Value, len(t.Rows)),
	}
	out.Columns = append(out.Columns, t.Columns[:idx]...)
	out.Columns = append(out.Columns, t.Columns[idx+1:]...)

	for i, row := range t.Rows {
		nr := make([]Value, 0, len(row)-1)
		nr = append(nr, row[:idx]...)
		nr = append(nr, row[idx+1:]...)
		out.Rows[i] = nr
	}
	return out, nil
}
