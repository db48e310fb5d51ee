// Package api holds the JSON envelope every payengine endpoint answers with.
package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
)

const contentTypeJSON = "application/json; charset=utf-8"

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope wraps both outcomes. Exactly one of Data and Error is set.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// WriteJSON encodes the envelope before touching the response so that an
// unencodable payload turns into a 500 instead of a truncated body.
func WriteJSON(w http.ResponseWriter, status int, env Envelope) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(env); err != nil {
		slog.Error("encode response failed", "status", status, "request_id", env.RequestID, "err", err)
		buf.Reset()
		status = http.StatusInternalServerError
		fallback := Envelope{Error: &Error{Code: "encode_failed", Message: "response could not be encoded"}, RequestID: env.RequestID}
		_ = json.NewEncoder(&buf).Encode(fallback)
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("write response failed", "request_id", env.RequestID, "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	FailWithDetails(w, status, code, message, nil, requestID)
}

// FailWithDetails answers an error envelope. Server-side failures are also
// logged since the caller only sees the code.
func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	if status >= http.StatusInternalServerError {
		slog.Warn("request failed", "status", status, "code", code, "message", message, "request_id", requestID)
	}
	WriteJSON(w, status, Envelope{Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}
