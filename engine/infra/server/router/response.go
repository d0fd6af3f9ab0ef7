// Package router holds the small HTTP response envelope and app-state
// accessor every handler package in engine/*/router (and engine/ingress)
// shares, mirroring the teacher's router.RespondOK/RespondWithError
// convention so every endpoint answers with the same JSON shape.
package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/infra/server/appstate"
)

// Response is the envelope every handler writes.
type Response struct {
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is Response's error slice, flattening a *core.Error when the
// underlying failure carries one.
type ErrorInfo struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// RequestError pairs an error with the HTTP status it should produce.
type RequestError struct {
	StatusCode int
	Message    string
	Err        error
}

func NewRequestError(statusCode int, message string, err error) *RequestError {
	return &RequestError{StatusCode: statusCode, Message: message, Err: err}
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RequestError) Unwrap() error { return e.Err }

// RespondOK writes a 200 envelope.
func RespondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Message: message, Data: data})
}

// RespondCreated writes a 201 envelope.
func RespondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Response{Message: message, Data: data})
}

// RespondWithError writes statusCode with err flattened into ErrorInfo,
// unwrapping a *core.Error for its code/details when present, and also
// records err on the gin context for logging middleware.
func RespondWithError(c *gin.Context, statusCode int, err error) {
	info := &ErrorInfo{Message: err.Error()}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		info.Message = coreErr.Message
		info.Code = coreErr.Code
		info.Details = coreErr.Details
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		info.Message = reqErr.Message
	}
	c.JSON(statusCode, Response{Error: info})
	_ = c.Error(err)
}

// GetAppState fetches the appstate.State stashed in the request context by
// appstate.StateMiddleware, writing a 500 envelope and returning nil if
// it's missing (a wiring bug, never a caller error).
func GetAppState(c *gin.Context) *appstate.State {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, NewRequestError(
			http.StatusInternalServerError, "app state not available", err,
		))
		return nil
	}
	return state
}
