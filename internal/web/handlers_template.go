package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/condoreg/internal/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleTemplateCSV downloads the example template as CSV.
func (s *Server) handleTemplateCSV(w http.ResponseWriter, r *http.Request) {
	s.serveTemplate(w, r, "text/csv; charset=utf-8", "unit_template.csv", core.WriteTemplateCSV)
}

// handleTemplateXLSX downloads the example template as a workbook.
func (s *Server) handleTemplateXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveTemplate(w, r, xlsxContentType, "unit_template.xlsx", core.WriteTemplateXLSX)
}

// serveTemplate renders into a buffer first so a failure can still be
// reported with a proper status.
func (s *Server) serveTemplate(w http.ResponseWriter, r *http.Request, contentType, fileName string, write func(w io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	w.Write(buf.Bytes())
}
