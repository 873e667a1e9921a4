package http

import (
	"encoding/json"
	"net/http"

	"github.com/viralforge/trading-signals/internal/application"
)

// envelope is the body shape shared by every response. Code is only set on
// failures and Data only on success with a payload.
type envelope struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, envelope{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Status: "success", Message: message})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, envelope{Status: "error", Code: code, Message: message})
}

// writeWebhookResult keeps the provider-facing status ("success", "ignored",
// "error") at the top level. Errors answer 500 so the event is redelivered.
func writeWebhookResult(w http.ResponseWriter, res application.WebhookResult) {
	if res.Status == application.WebhookStatusError {
		writeJSON(w, http.StatusInternalServerError, envelope{Status: res.Status, Code: "WEBHOOK_FAILED", Message: res.Message})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: res.Status, Message: res.Message})
}
