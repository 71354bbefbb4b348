// Package templates holds the HTML fragments served to HTMX clients.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/datacleaner/internal/core"
)

// PreviewTable renders a preview as a status line plus a table. Every cell
// is escaped.
func PreviewTable(p core.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}

		ew.printf(`<div id="preview" class="preview" data-version="%s">`, templ.EscapeString(p.Version))
		ew.printf(`<p class="preview-message">%s</p>`, templ.EscapeString(p.Message))

		if p.NoData {
			ew.printf(`</div>`)
			return ew.err
		}

		ew.printf(`<p class="preview-meta">%s: showing %s of %s rows</p>`,
			templ.EscapeString(p.Filename),
			strconv.Itoa(p.ShownRows),
			strconv.Itoa(p.TotalRows),
		)
		ew.printf(`<table class="preview-table"><thead><tr>`)
		for i, h := range p.Headers {
			dtype := ""
			if i < len(p.Dtypes) {
				dtype = string(p.Dtypes[i])
			}
			ew.printf(`<th data-dtype="%s">%s</th>`, templ.EscapeString(dtype), templ.EscapeString(h))
		}
		ew.printf(`</tr></thead><tbody>`)
		for _, row := range p.Rows {
			ew.printf(`<tr>`)
			for _, cell := range row {
				ew.printf(`<td>%s</td>`, templ.EscapeString(cell))
			}
			ew.printf(`</tr>`)
		}
		ew.printf(`</tbody></table></div>`)
		return ew.err
	})
}

// ErrorAlert renders a dismissible error box.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<div class="alert alert-error" role="alert">`)
		ew.printf(`<p class="alert-message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			ew.printf(`<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		if code != "" {
			ew.printf(`<p class="alert-code">Code: %s</p>`, templ.EscapeString(code))
		}
		ew.printf(`</div>`)
		return ew.err
	})
}

// errWriter stops writing after the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
