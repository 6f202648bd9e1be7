package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/session"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
	Raw   string      `json:"raw,omitempty"`
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	JSON(w, status, ErrorBody{Error: message, Kind: kind})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindBusy:
		return http.StatusConflict
	case apperr.KindConfiguration:
		return http.StatusServiceUnavailable
	case apperr.KindGateway:
		return http.StatusBadGateway
	case apperr.KindParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError classifies err and writes it. Internal errors are logged and
// their detail is withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotFound) {
		Error(w, http.StatusUnauthorized, apperr.KindAuth, "session expired, please log in again")
		return
	}
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, kind, "internal error")
		return
	}
	if kind != apperr.KindValidation {
		s.log.Warn("request failed", "path", r.URL.Path, "kind", kind, "error", err)
	}
	JSON(w, statusFor(kind), ErrorBody{Error: err.Error(), Kind: kind, Raw: apperr.RawOf(err)})
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}
