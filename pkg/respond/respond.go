package respond

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/checkout-service/pkg/apperr"
)

type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error writes err as an envelope. Only the public message of an
// *apperr.Error reaches the client; anything else becomes a generic 500.
func Error(w http.ResponseWriter, log *slog.Logger, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Error("unhandled error", "err", err)
		JSON(w, http.StatusInternalServerError, Envelope{Message: "Internal server error"})
		return
	}

	status := apperr.HTTPStatus(appErr.Kind)
	if status >= http.StatusInternalServerError {
		log.Error(appErr.Message, "kind", appErr.Kind.String(), "err", appErr.Err)
	}
	JSON(w, status, Envelope{Message: appErr.Message, Errors: appErr.Fields})
}

// Decode reads a JSON body into dst. An empty body leaves dst untouched.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.InvalidField("body", "The request body must be valid JSON.")
	}
	return nil
}
