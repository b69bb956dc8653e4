package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON envelope of every failed gateway response. Code is the
// numeric lending code, zero for failures outside the lending module.
type ErrorBody struct {
	OK    bool   `json:"ok"`
	Code  uint32 `json:"code"`
	Error string `json:"error,omitempty"`
}

// WriteError writes an ErrorBody with the given HTTP status.
func WriteError(w http.ResponseWriter, status int, code uint32, message string) {
	WriteJSON(w, status, ErrorBody{OK: false, Code: code, Error: message})
}

// WriteJSON encodes payload as the response body.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
