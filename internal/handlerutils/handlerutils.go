package handlerutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// APIHandler is an http handler that reports failures by returning them.
type APIHandler func(w http.ResponseWriter, r *http.Request) error

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

const maxBodyBytes = 1 << 20

// ParseJSON decodes the request body into payload, rejecting unknown
// fields and bodies larger than 1 MiB.
func ParseJSON(r *http.Request, payload any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

func WriteSuccessJSON(w http.ResponseWriter, statusCode int, message string, data any) error {
	return WriteJSON(w, statusCode, response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func WriteErrorJSON(w http.ResponseWriter, statusCode int, message string, errs any) {
	err := WriteJSON(w, statusCode, response{
		Success: false,
		Message: message,
		Errors:  errs,
	})
	if err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
