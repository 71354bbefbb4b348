package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first worksheet. Cells are read by stored value rather
// than display text, so a number styled "#,##0.00" or "0.00%" still reads
// as a number. Date-formatted serials become ISO dates and boolean cells
// become TRUE/FALSE. Fully blank rows are skipped and the grid is widened
// to its longest row.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrEmptyFile)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrParse, sheet, err)
	}

	cells := newCellReader(f, sheet)
	var records [][]string
	width := 0
	for r, row := range rows {
		for c, raw := range row {
			v, err := cells.text(c+1, r+1, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: read sheet %q: %v", ErrParse, sheet, err)
			}
			row[c] = v
		}
		if isBlankRecord(row) {
			continue
		}
		records = append(records, row)
		if len(row) > width {
			width = len(row)
		}
	}
	for i := range records {
		records[i] = padRecord(records[i], width)
	}
	return records, nil
}

// cellReader turns raw worksheet values into the text the cell parser
// understands. Date detection is per style, so it is cached per style ID.
type cellReader struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	isDate   map[int]bool
}

func newCellReader(f *excelize.File, sheet string) *cellReader {
	cr := &cellReader{f: f, sheet: sheet, isDate: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		cr.date1904 = *props.Date1904
	}
	return cr
}

func (cr *cellReader) text(col, row int, raw string) (string, error) {
	if raw == "" {
		return raw, nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	typ, err := cr.f.GetCellType(cr.sheet, cell)
	if err != nil {
		return "", err
	}

	switch typ {
	case excelize.CellTypeBool:
		switch raw {
		case "1":
			return "TRUE", nil
		case "0":
			return "FALSE", nil
		}
		return raw, nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw, nil
		}
		dated, err := cr.dateStyled(cell)
		if err != nil {
			return "", err
		}
		if !dated {
			return raw, nil
		}
		t, err := excelize.ExcelDateToTime(serial, cr.date1904)
		if err != nil {
			return raw, nil
		}
		return formatSerialDate(t), nil
	default:
		return raw, nil
	}
}

func (cr *cellReader) dateStyled(cell string) (bool, error) {
	id, err := cr.f.GetCellStyle(cr.sheet, cell)
	if err != nil {
		return false, err
	}
	if dated, ok := cr.isDate[id]; ok {
		return dated, nil
	}

	dated := false
	if style, err := cr.f.GetStyle(id); err == nil {
		dated = isDateNumFmt(style.NumFmt)
		if style.CustomNumFmt != nil {
			dated = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	cr.isDate[id] = dated
	return dated, nil
}

// isDateNumFmt reports whether a built-in number format ID renders a date
// or time, including the East Asian locale variants.
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom format code has date or time
// tokens outside quoted literals, bracketed sections and escapes.
func isDateFormatCode(code string) bool {
	inQuote, inBracket, escaped := false, false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			inQuote = r != '"'
		case inBracket:
			inBracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		case r == 'y', r == 'd', r == 'h', r == 's':
			return true
		}
	}
	return false
}

// formatSerialDate writes a converted serial in a layout parseDate reads
// back, dropping the clock when it is midnight.
func formatSerialDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
