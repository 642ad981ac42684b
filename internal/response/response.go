// Package response writes the JSON envelopes returned by every endpoint.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maneesh/talentdrop/internal/apperr"
)

// Envelope is the body of a successful response.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope is the body of a failed response.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
	Success    bool     `json:"success"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// Error converts err into an error envelope. Server-side causes are logged
// and replaced by the error's public message.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ae := apperr.From(err)
	status := apperr.StatusCode(ae.Kind)

	details := ae.Details
	if details == nil {
		details = []string{}
	}

	if !ae.Exposed() && logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", ae.Kind.String(),
			"error", ae.Err,
		)
	}

	writeJSON(w, status, ErrorEnvelope{
		StatusCode: status,
		Message:    ae.Message,
		Errors:     details,
		Success:    false,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
