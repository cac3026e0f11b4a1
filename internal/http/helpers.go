package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"spendalyzer/internal/budget"
	"spendalyzer/internal/core"
	"spendalyzer/internal/ingest"
	"spendalyzer/internal/log"
	"spendalyzer/internal/services"
)

// multipart parts above this size spill to temp files.
const multipartMemory = 8 << 20

// multipartOverhead allows for boundaries and part headers on top of the
// file itself.
const multipartOverhead = 4 << 10

var (
	errNoFile       = errors.New("no file uploaded")
	errTooLarge     = errors.New("upload too large")
	errBadForm      = errors.New("malformed form")
	errRuleRowCount = errors.New("rule rows have mismatched fields")
)

// sanitizeInput removes control characters other than tab and newlines,
// and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps a handler error to a status code and a message safe to
// show the visitor.
func errorStatus(err error) (int, string) {
	var schema *ingest.SchemaError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &schema):
		return http.StatusUnprocessableEntity, schema.Error()
	case errors.Is(err, ingest.ErrDuplicateColumn):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ingest.ErrDecode):
		return http.StatusUnprocessableEntity, "Could not decode file. Save it as UTF-8 or Latin-1 text and try again."
	case errors.Is(err, ingest.ErrSpreadsheet):
		return http.StatusUnprocessableEntity, "Could not read spreadsheet. Check that the file is a valid .xls or .xlsx workbook."
	case errors.Is(err, ingest.ErrParse):
		return http.StatusUnprocessableEntity, "Could not parse file. Expected a CSV with date, amount and description columns."
	case errors.As(err, &maxBytes), errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "File is too large."
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "Choose a file to upload."
	case errors.Is(err, budget.ErrRuleIndex):
		return http.StatusNotFound, "Rule not found."
	case errors.Is(err, services.ErrUnknownPeriod):
		return http.StatusBadRequest, "That month is not in the loaded data."
	case errors.Is(err, services.ErrNegativeBudget):
		return http.StatusBadRequest, "Budget cannot be negative."
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusBadRequest, "Enter budgets as plain numbers, e.g. 300 or 125.50."
	case errors.Is(err, core.ErrInvalidPeriod):
		return http.StatusBadRequest, "Months look like 2024-09."
	case errors.Is(err, errRuleRowCount), errors.Is(err, errBadForm):
		return http.StatusBadRequest, "Invalid request."
	}
	return http.StatusInternalServerError, "Something went wrong. Please retry."
}

// readUpload reads the multipart "file" field under the size cap.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	if r.ContentLength > s.maxUpload+multipartOverhead {
		return "", nil, errTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(min(s.maxUpload, multipartMemory)); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return "", nil, fmt.Errorf("%w: %w", errTooLarge, err)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return "", nil, errNoFile
		}
		return "", nil, fmt.Errorf("%w: %w", errBadForm, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > s.maxUpload {
		return "", nil, errTooLarge
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Upload received",
		log.FieldFilename, header.Filename,
		log.FieldBytes, len(raw))
	return sanitizeInput(header.Filename), raw, nil
}

// fail writes an error in the shape the caller expects.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if isAPI(r) {
		writeJSONError(w, status, msg)
		return
	}
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

// logFailure records errors that are not the visitor's fault.
func logFailure(r *http.Request, status int, err error) {
	if status < http.StatusInternalServerError {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			log.FieldStatusCode, status,
			log.FieldError, err)
		return
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
}
