package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"homestock/internal/logging"
	"homestock/internal/validation"
)

// Envelope wraps every API response. Clients treat a missing data field as failure.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError is the failure half of the envelope
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, &Envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string, details any) {
	writeEnvelope(w, status, &Envelope{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// errEmptyBody is returned by decodeJSON when the request has no body at all
var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a JSON body into dst. Unknown fields are rejected so typos do not
// silently become no-op updates.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeBody decodes a required body and writes a 400 envelope when it cannot.
// It reports whether the handler should continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, "Request body is not valid JSON", []validation.FieldError{
			{Field: "body", Message: bodyMessage(err)},
		})
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody for endpoints whose body may be omitted entirely
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeJSON(r, dst)
	if err == nil || errors.Is(err, errEmptyBody) {
		return true
	}
	respondError(w, http.StatusBadRequest, CodeValidation, "Request body is not valid JSON", []validation.FieldError{
		{Field: "body", Message: bodyMessage(err)},
	})
	return false
}

func bodyMessage(err error) string {
	if errors.Is(err, errEmptyBody) {
		return "is required"
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "json: ") {
		msg = strings.TrimPrefix(msg, "json: ")
	}
	return msg
}
