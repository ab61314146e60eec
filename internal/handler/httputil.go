package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/matthewbaird/caseforms/internal/authoring"
	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/matthewbaird/caseforms/internal/integrity"
	"github.com/matthewbaird/caseforms/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorBody{Error: message, Code: code, Details: details})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// requestFormat picks the definition format from the Content-Type header.
func requestFormat(r *http.Request) form.Format {
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "yaml") {
		return form.FormatYAML
	}
	return form.FormatJSON
}

// problemView is the JSON form of one authoring defect.
type problemView struct {
	LinkID     string `json:"linkId,omitempty"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
	Line       int    `json:"line,omitempty"`
	Col        int    `json:"col,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func problemViews(verr *form.ValidationError) []problemView {
	out := make([]problemView, 0, len(verr.Problems))
	for _, p := range verr.Problems {
		v := problemView{LinkID: p.LinkID, Field: p.Field, Message: p.Message}
		var perr *expr.ParseError
		if errors.As(p.Err, &perr) {
			v.Line, v.Col, v.Suggestion = perr.Line, perr.Col, perr.Suggestion
		}
		out = append(out, v)
	}
	return out
}

// domainErrorToHTTP maps domain errors to HTTP responses. Parse errors
// inside a validation failure take precedence so authors see them first.
func domainErrorToHTTP(w http.ResponseWriter, err error) {
	var (
		verr      *form.ValidationError
		perr      *expr.ParseError
		violation *integrity.Violation
	)
	switch {
	case errors.As(err, &verr):
		code := "INVALID_DEFINITION"
		if errors.As(err, &perr) {
			code = "PARSE_ERROR"
		}
		writeErrorDetails(w, http.StatusUnprocessableEntity, code, err.Error(), problemViews(verr))
	case errors.As(err, &perr):
		writeError(w, http.StatusUnprocessableEntity, "PARSE_ERROR", err.Error())
	case errors.As(err, &violation):
		writeError(w, http.StatusConflict, "INTEGRITY_VIOLATION", err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, form.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, form.ErrDuplicateLink):
		writeError(w, http.StatusConflict, "DUPLICATE_LINK_ID", err.Error())
	case errors.Is(err, form.ErrNotContainer):
		writeError(w, http.StatusBadRequest, "NOT_A_CONTAINER", err.Error())
	case errors.Is(err, authoring.ErrBusy):
		writeError(w, http.StatusConflict, "DELETE_PENDING", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
