package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeResult sends the uniform {success, message} flow result.
func writeResult(w http.ResponseWriter, status int, success bool, msg string) {
	writeJSON(w, status, map[string]any{"success": success, "message": msg})
}

// writeError sends a failure result.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeResult(w, status, false, msg)
}

// writeHTML sends a small HTML page, used by the link-click endpoints.
func writeHTML(w http.ResponseWriter, status int, tag, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<%s>%s</%s>", tag, msg, tag)
}
