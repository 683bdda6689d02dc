// Package httpx provides the JSON response envelope used by every endpoint.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope is the response shape consumed by the admin client.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 1 << 20

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Fail writes a failed envelope with field-keyed messages.
func Fail(w http.ResponseWriter, status int, fields map[string]string) {
	JSON(w, status, Envelope{Success: false, Errors: fields})
}

// General wraps a single message under the "general" key.
func General(message string) map[string]string {
	return map[string]string{"general": message}
}

// ErrBadBody reports an undecodable request body.
var ErrBadBody = errors.New("request body is not valid JSON")

// DecodeJSON decodes a bounded JSON request body into target.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return ErrBadBody
	}
	return nil
}
