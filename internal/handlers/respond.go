package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("WARN Response encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// writeServerError logs the full error and returns a generic message so
// internal detail never leaks into the response.
func writeServerError(w http.ResponseWriter, op string, err error) {
	log.Printf("ERROR %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
