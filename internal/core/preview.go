package core

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// DefaultPreviewLimit is the number of rows shown when no limit is given.
const DefaultPreviewLimit = 100

// NoDataMessage is the message carried by an empty projection.
const NoDataMessage = "No data to display or filename missing."

// Preview is a bounded, fully stringified view of a table.
type Preview struct {
	Filename  string     `json:"filename"`
	Headers   []string   `json:"headers"`
	Dtypes    []Dtype    `json:"dtypes"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows_in_file"`
	ShownRows int        `json:"preview_rows_shown"`
	Message   string     `json:"message"`
	NoData    bool       `json:"no_data"`
	Version   string     `json:"version,omitempty"`
}

// Project renders the first limit rows of t. It never mutates t.
func Project(t *Table, limit int) Preview {
	if t == nil {
		return EmptyPreview(NoDataMessage)
	}
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	shown := min(limit, len(t.Rows))
	p := Preview{
		Headers:   t.Names(),
		Dtypes:    make([]Dtype, len(t.Columns)),
		Rows:      make([][]string, shown),
		TotalRows: len(t.Rows),
		ShownRows: shown,
	}
	for i, c := range t.Columns {
		p.Dtypes[i] = c.Dtype
	}
	for r := 0; r < shown; r++ {
		row := make([]string, len(t.Columns))
		for c, v := range t.Rows[r] {
			row[c] = v.String()
		}
		p.Rows[r] = row
	}
	return p
}

// EmptyPreview is the projection returned when a session holds no table.
// It is a normal result, not an error.
func EmptyPreview(message string) Preview {
	return Preview{
		Filename: "N/A",
		Headers:  []string{},
		Dtypes:   []Dtype{},
		Rows:     [][]string{},
		Message:  message,
		NoData:   true,
	}
}

// Fingerprint hashes a serialized table. Equal tables share a fingerprint,
// so clients can tell whether an operation changed anything.
func Fingerprint(payload string) string {
	return strconv.FormatUint(xxh3.HashString(payload), 16)
}
