package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler gets an error from the service
//  2. Calls respondError(w, r, err, statusFor(err))
//  3. Error is mapped via core.MapError to a user-friendly message
//  4. Technical error is logged with the request ID for correlation
//  5. User message is rendered as an HTMX fragment, JSON, or plain text

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/web/templates"
)

// ErrNoFile is returned when a load request carries no file part.
var ErrNoFile = errors.New("no file provided")

// APIError is the JSON body of every error response. Error carries the
// technical detail, Message and Action the user-facing text.
type APIError struct {
	StatusCode int               `json:"-"`
	Err        string            `json:"error"`
	Message    string            `json:"message"`
	Action     string            `json:"action,omitempty"`
	Code       string            `json:"code"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// newAPIError maps err into an APIError with the given status.
func newAPIError(err error, status int) *APIError {
	msg := core.MapError(err)
	apiErr := &APIError{
		StatusCode: status,
		Err:        errorDetail(err, status),
		Message:    msg.Message,
		Action:     msg.Action,
		Code:       msg.Code,
	}
	var verr *validationError
	if errors.As(err, &verr) {
		apiErr.Fields = verr.fields
	}
	return apiErr
}

// errorDetail is the text exposed in the error field. Internal faults are
// reduced to their user message so store or driver details stay in the logs.
func errorDetail(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return core.MapError(err).Message
	}
	return err.Error()
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrSerialization):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNoFile), core.IsRequestError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns an appropriate response
// based on the request type (HTMX, JSON, or plain text).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	s.respondAPIError(w, r, err, newAPIError(err, statusCode))
}

func (s *Server) respondAPIError(w http.ResponseWriter, r *http.Request, err error, apiErr *APIError) {
	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", apiErr.StatusCode,
		"error", err.Error(),
		"code", apiErr.Code,
	}
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(apiErr.StatusCode)
		if err := templates.ErrorAlert(apiErr.Message, apiErr.Action, apiErr.Code).Render(r.Context(), w); err != nil {
			logger.Error("render error alert", "error", err)
		}
	case wantsJSON(r):
		if err := render.Render(w, r, apiErr); err != nil {
			logger.Error("render error response", "error", err)
		}
	default:
		http.Error(w, apiErr.Message+" ("+apiErr.Code+")", apiErr.StatusCode)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
