package web

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"retail-pos/internal/core"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorFields(w, r, message, code, status, nil)
}

func writeErrorFields(w http.ResponseWriter, r *http.Request, message, code string, status int, fields map[string]string) {
	writeJSONStatus(w, status, errorResponse{
		Error:     message,
		Code:      code,
		Fields:    fields,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusForKind(k core.ErrorKind) int {
	switch k {
	case core.KindValidation, core.KindState:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	case core.KindAuth:
		return http.StatusUnauthorized
	case core.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a service error onto the HTTP error taxonomy. Internal
// errors are logged with the request id; their detail is only echoed in development.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := core.AsError(err); ok {
		writeError(w, r, de.Message, de.Code, statusForKind(de.Kind))
		return
	}

	h.log.WithFields(logrus.Fields{
		"request_id": requestIDFromContext(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}).WithError(err).Error("request failed")

	msg := "internal server error"
	if h.development {
		msg = err.Error()
	}
	writeError(w, r, msg, core.CodeInternal, http.StatusInternalServerError)
}
