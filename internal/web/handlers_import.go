package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/contactimport/internal/core"
	"github.com/JonMunkholm/contactimport/internal/logging"
	"github.com/JonMunkholm/contactimport/internal/tabular"
	"github.com/JonMunkholm/contactimport/internal/web/templates"
)

// maxJSONBody bounds mapping and run request bodies.
const maxJSONBody = 1 << 20

var (
	errFileTooLarge  = errors.New("file too large or invalid form")
	errNoFile        = errors.New("no file provided")
	errInvalidJSON   = errors.New("invalid mapping: request body is not valid JSON")
	errStreamingFail = errors.New("streaming not supported")
)

// PrepareResponse reports the outcome of transforming and gating an import.
type PrepareResponse struct {
	ImportID  string                 `json:"import_id"`
	TotalRows int                    `json:"total_rows"`
	Accepted  int                    `json:"accepted"`
	Rejected  int                    `json:"rejected"`
	Dropped   int                    `json:"dropped"`
	Issues    []core.ValidationIssue `json:"issues"`
}

// RunRequest is the optional body of a run request.
type RunRequest struct {
	Duplicates string `json:"duplicates"`
}

// RunResponse acknowledges a started run.
type RunResponse struct {
	ImportID   string               `json:"import_id"`
	Phase      core.ImportPhase     `json:"phase"`
	Duplicates core.DuplicatePolicy `json:"duplicates"`
}

// handleStartImport decodes an uploaded spreadsheet and opens a session with
// suggested mappings.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errFileTooLarge, err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx := withRequestMetadata(r.Context(), r)
	session, err := s.service.StartImport(ctx, header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err, http.StatusBadRequest))
		return
	}

	writeJSONStatus(w, http.StatusCreated, session)
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetImport(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}
	writeJSON(w, session)
}

// handleUpdateMapping applies {"column": "target"} changes to a session.
func (s *Server) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	var changes map[string]string
	if err := decodeJSON(w, r, &changes); err != nil || len(changes) == 0 {
		respondError(w, r, errInvalidJSON, http.StatusBadRequest)
		return
	}

	session, err := s.service.UpdateMapping(chi.URLParam(r, "importID"), changes)
	if err != nil {
		respondError(w, r, err, statusFor(err, http.StatusBadRequest))
		return
	}
	writeJSON(w, session)
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")
	prepared, err := s.service.Prepare(r.Context(), id)
	if err != nil {
		respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}

	writeJSON(w, PrepareResponse{
		ImportID:  id,
		TotalRows: prepared.TotalRows,
		Accepted:  len(prepared.Candidates),
		Rejected:  prepared.Rejected,
		Dropped:   prepared.Dropped,
		Issues:    orEmpty(prepared.Issues),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.Preview(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}
	writeJSON(w, preview)
}

// handleRun starts the import in the background. The body is optional; an
// empty policy uses the configured default.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")

	var req RunRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, errInvalidJSON, http.StatusBadRequest)
		return
	}

	policy := s.service.DefaultPolicy()
	if strings.TrimSpace(req.Duplicates) != "" {
		p, err := core.ParseDuplicatePolicy(req.Duplicates)
		if err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
		policy = p
	}

	ctx := withRequestMetadata(r.Context(), r)
	if err := s.service.Run(ctx, id, policy); err != nil {
		respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}

	logging.WithFields(ctx, "import_id", id).Info("import run started", "duplicates", policy)
	writeJSONStatus(w, http.StatusAccepted, RunResponse{
		ImportID:   id,
		Phase:      core.PhaseImporting,
		Duplicates: policy,
	})
}

// handleImportProgress streams run progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")

	// The event id is the progress percentage, so a reconnecting client
	// skips events it has already seen.
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if h := r.Header.Get("Last-Event-ID"); h != "" {
		lastEventIDStr = h
	}
	resuming := false
	lastEventID := 0
	if n, err := strconv.Atoi(lastEventIDStr); err == nil {
		resuming, lastEventID = true, n
	}

	progressCh, err := s.service.SubscribeProgress(id)
	if err != nil {
		respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Error("sse flush failed", "error", fmt.Errorf("%w: %v", errStreamingFail, err))
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				final, err := s.service.GetProgress(id)
				if err != nil {
					final = core.ImportProgress{ImportID: id, Phase: core.PhaseComplete}
				}
				data, _ := json.Marshal(final)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				rc.Flush()
				return
			}

			percent := progress.Percent()
			if resuming && percent <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			rc.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleReport returns the report of a finished run as JSON, or as an HTML
// fragment for HTMX requests.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.ReportSummary(report).Render(r.Context(), w)
		return
	}
	writeJSON(w, report)
}

// failedRowHeaders are the leading columns of the failed rows export.
var failedRowHeaders = []string{"Row", "Code", "Error", "First Name", "Last Name", "Email", "Phone", "Title", "Status"}

// handleExportFailedRows exports the failed results of a run as CSV.
func (s *Server) handleExportFailedRows(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err, statusFor(err, http.StatusInternalServerError))
		return
	}

	var records [][]string
	for _, res := range report.Results {
		if res.Success {
			continue
		}
		c := res.Data
		records = append(records, []string{
			strconv.Itoa(res.Row), res.Code, res.Error,
			c.FirstName, c.LastName, c.Email, c.Phone, c.Title, string(c.Status),
		})
	}

	filename := fmt.Sprintf("failed_rows_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := tabular.WriteCSV(w, failedRowHeaders, records); err != nil {
		logging.FromContext(r.Context()).Error("failed rows export", "error", err)
	}
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.LimiterStatus())
}

// decodeJSON reads a bounded JSON body into v. An empty body yields io.EOF.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
