package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/contactimport/internal/core"
	"github.com/JonMunkholm/contactimport/internal/tabular"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SuggestionsResponse lists the mapping targets and header suggestions.
type SuggestionsResponse struct {
	Targets     []core.TargetField   `json:"targets"`
	Suggestions core.SuggestionTable `json:"suggestions"`
	Mappings    core.Mappings        `json:"mappings,omitempty"`
}

// handleDownloadTemplate serves the import template as CSV or XLSX.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	format := tabular.Format(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = tabular.FormatCSV
	}

	headers, records := core.Template()

	var buf bytes.Buffer
	var err error
	var contentType string
	switch format {
	case tabular.FormatCSV:
		contentType = "text/csv"
		err = tabular.WriteCSV(&buf, headers, records)
	case tabular.FormatXLSX:
		contentType = xlsxContentType
		err = tabular.WriteXLSX(&buf, "Contacts", headers, records)
	default:
		respondError(w, r, fmt.Errorf("%w: %q", tabular.ErrUnsupportedFormat, format), http.StatusBadRequest)
		return
	}
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	filename := core.TemplateFileBase + "." + string(format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write(buf.Bytes())
}

// handleSuggestions returns the suggestion table. Repeated header query
// parameters are also mapped, as StartImport would map them.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	engine := s.service.Engine()
	resp := SuggestionsResponse{
		Targets:     core.TargetFields(),
		Suggestions: engine.Suggestions(),
	}
	if headers := r.URL.Query()["header"]; len(headers) > 0 {
		resp.Mappings = engine.Suggest(headers)
	}
	writeJSON(w, resp)
}
