package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"calmledger/internal/core"
	"calmledger/internal/log"
)

type errorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps ledger errors onto status codes. A validation error that
// wraps ErrNotFound (an unknown account reference) is still a 422.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, core.ErrDuplicateRecurring):
		writeJSON(w, http.StatusConflict, errorBody{Error: "duplicate_recurring", Message: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	default:
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path, log.FieldError, err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
	}
}

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errEmptyBody
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_json", Message: err.Error()})
		return false
	}
	if dec.More() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_json", Message: "unexpected data after JSON object"})
		return false
	}
	return true
}

func invalidParam(w http.ResponseWriter, name string, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: fmt.Sprintf("invalid %s", name), Field: name, Message: err.Error()})
}
