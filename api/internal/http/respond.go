package httpx

import (
	"encoding/json"
	"net/http"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends the failure envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": statusFail, "message": msg})
}

// writeMessage sends a success envelope with a message and optional extras.
func writeMessage(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	payload := map[string]any{"status": statusSuccess, "message": msg}
	for k, v := range extra {
		payload[k] = v
	}
	writeJSON(w, status, payload)
}
