package api

import (
	"encoding/json"
	"net/http"
)

// Response is the uniform envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

// writeJSON writes a JSON body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, status int, message string, payload any) {
	writeJSON(w, status, Response{
		Success: true,
		Message: message,
		Payload: payload,
	})
}

// writeFailure writes a failure envelope, optionally with a payload
// (e.g. per-action results for a partially failed batch).
func writeFailure(w http.ResponseWriter, status int, message string, payload any) {
	writeJSON(w, status, Response{
		Success: false,
		Message: message,
		Payload: payload,
	})
}

// writeBadRequest writes a 400 failure envelope.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusBadRequest, message, nil)
}

// writeNotFound writes a 404 failure envelope.
func writeNotFound(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusNotFound, message, nil)
}

// writeUnauthorised writes a 401 failure envelope.
func writeUnauthorised(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusUnauthorized, message, nil)
}

// writeConflict writes a 409 failure envelope.
func writeConflict(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusConflict, message, nil)
}

// writeInternalError writes a 500 failure envelope.
func writeInternalError(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusInternalServerError, message, nil)
}
