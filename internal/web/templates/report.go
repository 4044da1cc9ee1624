// Package templates renders the HTML fragments served to HTMX clients.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/condoreg/internal/core"
)

// htmlWriter accumulates the first write error so fragments can be written
// without checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

var statusClass = map[core.ReportStatus]string{
	core.StatusValidated: "bg-blue-50 text-blue-800",
	core.StatusCommitted: "bg-green-50 text-green-800",
	core.StatusPartial:   "bg-yellow-50 text-yellow-800",
	core.StatusRejected:  "bg-red-50 text-red-800",
	core.StatusFailed:    "bg-red-50 text-red-800",
	core.StatusCancelled: "bg-gray-50 text-gray-800",
}

// ImportReport renders the summary and per-row errors of a report.
func ImportReport(r *core.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}

		h.rawf(`<div class="import-report rounded p-4 %s" data-status="`, statusClass[r.Status])
		h.text(string(r.Status))
		h.raw(`"><h3 class="font-semibold">`)
		h.text(r.FileName)
		h.raw(`</h3><p class="summary">`)
		h.rawf("%d rows: %d accepted, %d rejected", r.TotalRows, r.Accepted, r.Rejected)
		if r.NotAttempted > 0 {
			h.rawf(", %d not attempted", r.NotAttempted)
		}
		h.raw(`</p>`)

		if r.Fatal != nil {
			h.raw(`<p class="fatal">`)
			h.text(r.Fatal.Message)
			h.raw(`</p>`)
		}

		if len(r.ErrorsByRow) > 0 {
			h.raw(`<table class="errors"><thead><tr><th>Row</th><th>Unit</th><th>Field</th><th>Value</th><th>Problem</th></tr></thead><tbody>`)
			for _, row := range r.ErrorsByRow {
				for _, fe := range row.Errors {
					h.rawf(`<tr><td>%d</td><td>`, row.Row)
					h.text(row.UnitCode)
					h.raw(`</td><td>`)
					h.text(fe.Field)
					h.raw(`</td><td><code>`)
					h.text(row.Raw[fe.Field])
					h.raw(`</code></td><td>`)
					h.text(fe.Message)
					h.raw(`</td></tr>`)
				}
			}
			h.raw(`</tbody></table>`)
		}

		if len(r.Warnings) > 0 {
			h.raw(`<ul class="warnings">`)
			for _, v := range r.Warnings {
				h.raw(`<li>`)
				h.text(v.Error())
				h.raw(`</li>`)
			}
			h.raw(`</ul>`)
		}

		h.raw(`</div>`)
		return h.err
	})
}

// ImportHistory renders the recorded imports of a registry, newest first.
func ImportHistory(runs []core.ImportRun) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if len(runs) == 0 {
			h.raw(`<p class="text-gray-500">No imports yet</p>`)
			return h.err
		}

		h.raw(`<table class="history"><thead><tr><th>When</th><th>File</th><th>Status</th><th>Accepted</th><th>Rejected</th></tr></thead><tbody>`)
		for _, run := range runs {
			h.raw(`<tr><td>`)
			h.text(run.CreatedAt.Format("2006-01-02 15:04"))
			h.raw(`</td><td>`)
			h.text(run.FileName)
			h.raw(`</td><td>`)
			h.text(string(run.Status))
			h.rawf(`</td><td>%d</td><td>%d</td></tr>`, run.Accepted, run.Rejected)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
}

// ErrorAlert renders a dismissible error message with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="alert alert-error rounded bg-red-50 p-4" role="alert"><p class="font-medium">`)
		h.text(message)
		h.raw(`</p>`)
		if strings.TrimSpace(action) != "" {
			h.raw(`<p class="text-sm">`)
			h.text(action)
			h.raw(`</p>`)
		}
		h.raw(`<p class="text-xs text-gray-500">Code: `)
		h.text(code)
		h.raw(`</p></div>`)
		return h.err
	})
}
