package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// GatewayErrorResponse carries the processor's diagnostics alongside the
// client-facing message.
type GatewayErrorResponse struct {
	Error        string          `json:"error"`
	Code         string          `json:"code,omitempty"`
	Message      string          `json:"message,omitempty"`
	Details      string          `json:"details,omitempty"`
	GatewayError json.RawMessage `json:"tossError,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
