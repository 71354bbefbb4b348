package core

// codec.go moves tables across the three boundaries they cross: uploaded
// file bytes in, the session transport string in and out, and export bytes
// out. The transport format is JSON and is lossless: Missing is null, an
// empty string stays "", numbers keep full float64 precision and datetimes
// are RFC 3339 in UTC.

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Format is an upload or export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ExportSheet is the sheet name used for spreadsheet exports.
const ExportSheet = "Sheet1"

// wireVersion tags the transport format so a future layout can be detected.
const wireVersion = 1

// ParseFormat normalizes an extension such as ".CSV" to a Format.
func ParseFormat(ext string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (use .csv or .xlsx)", ErrUnsupportedFormat, ext)
	}
}

// Parse reads uploaded file bytes into a Table and infers column dtypes.
func Parse(data []byte, ext string) (*Table, error) {
	format, err := ParseFormat(ext)
	if err != nil {
		return nil, err
	}

	var records [][]string
	switch format {
	case FormatCSV:
		records, err = readCSV(data)
	case FormatXLSX:
		records, err = readXLSX(data)
	}
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%w: no data rows found", ErrEmptyFile)
	}
	header, body := normalizeHeaders(records[0]), records[1:]
	return buildTable(header, body), nil
}

// readCSV decodes CSV bytes. A UTF-8 or UTF-16 byte order mark is honored
// and invalid UTF-8 is replaced rather than rejected. Rows shorter than the
// header are padded; longer rows are a parse error.
func readCSV(data []byte) ([][]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: the uploaded file is empty", ErrEmptyFile)
	}

	decoded := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	r := csv.NewReader(decoded)
	r.FieldsPerRecord = -1

	var records [][]string
	width := -1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if width < 0 {
			width = len(rec)
			records = append(records, rec)
			continue
		}
		if len(rec) > width {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d", ErrParse, line, len(rec), width)
		}
		records = append(records, padRecord(rec, width))
	}
	return records, nil
}

func padRecord(rec []string, width int) []string {
	for len(rec) < width {
		rec = append(rec, "")
	}
	return rec
}

// normalizeHeaders trims and NFC-normalizes header cells, names blank ones
// Unnamed_<column letter>, and suffixes duplicates with .1, .2, ...
func normalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	dups := make(map[string]int)
	for i, h := range raw {
		name := norm.NFC.String(strings.TrimSpace(h))
		if name == "" {
			letter, _ := excelize.ColumnNumberToName(i + 1)
			name = "Unnamed_" + letter
		}
		candidate := name
		for used[candidate] {
			dups[name]++
			candidate = name + "." + strconv.Itoa(dups[name])
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

type wireColumn struct {
	Name  string `json:"name"`
	Dtype Dtype  `json:"dtype"`
}

type wireTable struct {
	Version int          `json:"v"`
	Columns []wireColumn `json:"columns"`
	Rows    [][]any      `json:"rows"`
}

type wireTableIn struct {
	Version int                 `json:"v"`
	Columns []wireColumn        `json:"columns"`
	Rows    [][]json.RawMessage `json:"rows"`
}

// Serialize encodes a table into the session transport string. It fails if
// a cell's kind disagrees with its column dtype, since such a cell could not
// be read back unchanged.
func Serialize(t *Table) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: nil table", ErrSerialization)
	}

	w := wireTable{
		Version: wireVersion,
		Columns: make([]wireColumn, len(t.Columns)),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, c := range t.Columns {
		w.Columns[i] = wireColumn{Name: c.Name, Dtype: c.Dtype}
	}

	for r, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return "", fmt.Errorf("%w: row %d has %d cells, want %d", ErrSerialization, r, len(row), len(t.Columns))
		}
		cells := make([]any, len(row))
		for c, v := range row {
			if !v.IsMissing() && v.kind.dtype() != t.Columns[c].Dtype {
				return "", fmt.Errorf("%w: row %d column %q holds %s value in %s column",
					ErrSerialization, r, t.Columns[c].Name, v.kind.dtype(), t.Columns[c].Dtype)
			}
			switch v.kind {
			case KindNumber:
				cells[c] = v.num
			case KindBool:
				cells[c] = v.b
			case KindTime:
				cells[c] = v.t.Format(time.RFC3339Nano)
			case KindText:
				cells[c] = v.s
			default:
				cells[c] = nil
			}
		}
		w.Rows[r] = cells
	}

	b, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return string(b), nil
}

// Deserialize decodes a transport string produced by Serialize.
func Deserialize(s string) (*Table, error) {
	var w wireTableIn
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSerialization, err)
	}
	if w.Version != wireVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrSerialization, w.Version)
	}

	t := &Table{
		Columns: make([]Column, len(w.Columns)),
		Rows:    make([][]Value, len(w.Rows)),
	}
	names := make(map[string]struct{}, len(w.Columns))
	for i, c := range w.Columns {
		if !c.Dtype.Valid() {
			return nil, fmt.Errorf("%w: column %q has unknown dtype %q", ErrSerialization, c.Name, c.Dtype)
		}
		if _, dup := names[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSerialization, c.Name)
		}
		names[c.Name] = struct{}{}
		t.Columns[i] = Column{Name: c.Name, Dtype: c.Dtype}
	}

	for r, raw := range w.Rows {
		if len(raw) != len(t.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrSerialization, r, len(raw), len(t.Columns))
		}
		row := make([]Value, len(raw))
		for c, cell := range raw {
			v, err := decodeCell(cell, t.Columns[c].Dtype)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", ErrSerialization, r, t.Columns[c].Name, err)
			}
			row[c] = v
		}
		t.Rows[r] = row
	}
	return t, nil
}

func decodeCell(raw json.RawMessage, d Dtype) (Value, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Missing(), nil
	}
	switch d {
	case DtypeNumeric:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case DtypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case DtypeDatetime:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Value{}, err
		}
		return Time(t), nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return Text(s), nil
	}
}

// Export renders the table as CSV or as a workbook with one sheet named
// Sheet1. Both carry a header row and render Missing as an empty cell.
func Export(t *Table, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return exportCSV(t)
	case FormatXLSX:
		return exportXLSX(t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func exportCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Names()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			rec[i] = v.String()
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func exportXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(ExportSheet)
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			switch v.kind {
			case KindNumber:
				cells[i] = v.num
			case KindBool:
				cells[i] = v.b
			case KindMissing:
				cells[i] = nil
			default:
				cells[i] = v.String()
			}
		}
		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(addr, cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename derives "{base}_cleaned.{format}" from the uploaded name.
// The last extension is always dropped; a name that is nothing but an
// extension, such as ".csv", gets the same "data" base as an empty name.
func ExportFilename(filename string, format Format) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "data"
	}
	return base + "_cleaned." + string(format)
}
