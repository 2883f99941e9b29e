package http

import (
	"errors"
	"net/http"

	"lingua-stream/internal/domain"
)

var (
	// Success response
	Success = Status{Code: http.StatusOK, Message: []string{"Success"}}
	// BadRequest response
	BadRequest = Status{Code: http.StatusBadRequest, Message: []string{"Sorry, Not responding because of incorrect syntax"}}
	// NotFound response
	NotFound = Status{Code: http.StatusNotFound, Message: []string{"Sorry, Resource not found"}}
	// InternalServerError response
	InternalServerError = Status{Code: http.StatusInternalServerError, Message: []string{"Internal Server Error"}}
	// ConFlict response
	ConFlict = Status{Code: http.StatusConflict, Message: []string{"Sorry, Data is conflict"}}
)

// ResponseBody struct - Generic HTTP response wrapper
type ResponseBody struct {
	Status Status      `json:"status,omitempty"`
	Data   interface{} `json:"data,omitempty"`

	CurrentPage *int   `json:"current_page,omitempty"`
	PerPage     *int   `json:"per_page,omitempty"`
	TotalItem   *int64 `json:"total_item,omitempty"`
}

// Status struct
type Status struct {
	Code    int      `json:"code,omitempty"`
	Message []string `json:"message,omitempty"`
}

type (
	// HealthResponse struct - HTTP response DTO for the health probe
	HealthResponse struct {
		Ledger      string `json:"ledger"`
		ModelLoaded string `json:"model_loaded,omitempty"`
		Ready       bool   `json:"ready"`
	}

	// ErrorEvent struct - payload of an "error" server-sent event
	ErrorEvent struct {
		Kind    string `json:"kind,omitempty"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}

	// TokenEvent struct - payload of a "token" server-sent event
	TokenEvent struct {
		Token string `json:"token"`
	}
)

// newErrorEvent func
func newErrorEvent(err error) ErrorEvent {
	return ErrorEvent{
		Kind:    string(domain.KindOf(err)),
		Message: domain.UserMessage(err),
		Detail:  err.Error(),
	}
}

// statusFor maps an application error onto an HTTP status code
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownModel),
		errors.Is(err, domain.ErrModelNotInstalled),
		errors.Is(err, domain.ErrTurnNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrModelInUse),
		errors.Is(err, domain.ErrDownloadInProgress),
		errors.Is(err, domain.ErrTurnInProgress),
		errors.Is(err, domain.ErrInitializationInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrModelIncomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNetwork),
		errors.Is(err, domain.ErrServerError),
		errors.Is(err, domain.ErrMalformedResponse),
		errors.Is(err, domain.ErrEmptyChoices):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// errorBody builds the response wrapper for err
func errorBody(err error) ResponseBody {
	code := statusFor(err)
	msg := []string{err.Error()}
	if user := domain.UserMessage(err); user != "" {
		msg = append([]string{user}, msg...)
	}
	return ResponseBody{Status: Status{Code: code, Message: msg}}
}
