package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/km-arc/go-actions/framework/validation"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response writes the JSON bodies of the bridge endpoints:
//
//	{"data": ...}                      success
//	{"message": "..."}                 failure
//	{"errors": {"field": ["..."]}}     validation failure (422)
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

type dataBody struct {
	Data any `json:"data"`
}

type messageBody struct {
	Message string `json:"message"`
}

// JSON writes body with status. The header is already sent when encoding
// fails, so the error is dropped.
func (res *Response) JSON(status int, body any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(body)
}

// Success sends 200 {"data": v}.
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, dataBody{Data: v})
}

// Error sends {"message": ...} with status; format follows fmt.Sprintf.
//
//	res.Error(http.StatusUnsupportedMediaType, "expected JSON, got %q", ct)
func (res *Response) Error(status int, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	res.JSON(status, messageBody{Message: msg})
}

// Unauthorized sends 401 "Unauthenticated.".
func (res *Response) Unauthorized() {
	res.Error(http.StatusUnauthorized, "Unauthenticated.")
}

// NotFound sends 404 naming what was missing, e.g. NotFound("Token")
// answers "Token not found.".
func (res *Response) NotFound(what string) {
	res.Error(http.StatusNotFound, "%s not found.", what)
}

// ValidationError sends 422 with the Laravel-style error bag.
func (res *Response) ValidationError(errs *validation.Errors) {
	res.JSON(http.StatusUnprocessableEntity, errs)
}
