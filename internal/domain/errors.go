package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies completion failures so callers can react without
// parsing messages
type ErrorKind string

const (
	// KindNetwork - DNS or connection failure
	KindNetwork ErrorKind = "NetworkError"
	// KindTimeout - the request deadline elapsed
	KindTimeout ErrorKind = "Timeout"
	// KindUnauthorized - HTTP 401
	KindUnauthorized ErrorKind = "Unauthorized"
	// KindRateLimited - HTTP 429
	KindRateLimited ErrorKind = "RateLimited"
	// KindServerError - HTTP 5xx or an error payload inside the stream
	KindServerError ErrorKind = "ServerError"
	// KindInvalidRequest - any other HTTP 4xx
	KindInvalidRequest ErrorKind = "InvalidRequest"
	// KindMalformedResponse - the payload violated the expected shape
	KindMalformedResponse ErrorKind = "MalformedResponse"
	// KindEmptyChoices - a blocking response carried no choices
	KindEmptyChoices ErrorKind = "EmptyChoices"
	// KindCancelled - the caller aborted
	KindCancelled ErrorKind = "Cancelled"
	// KindEngine - the native inference engine failed
	KindEngine ErrorKind = "EngineError"
)

// Completion error sentinels, one per kind, usable with errors.Is
var (
	ErrNetwork           = errors.New("network error")
	ErrTimeout           = errors.New("request timeout")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrServerError       = errors.New("server error")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrMalformedResponse = errors.New("malformed response")
	ErrEmptyChoices      = errors.New("empty choices")
	ErrCancelled         = errors.New("cancelled")
	ErrEngine            = errors.New("engine error")
)

// Local backend errors. These are returned synchronously, before a stream exists.
var (
	// ErrInitializationInProgress indicates another initialize call is still running
	ErrInitializationInProgress = errors.New("initialization in progress")

	// ErrNotInitialized indicates no inference context is loaded
	ErrNotInitialized = errors.New("inference session not initialized")

	// ErrModelInUse indicates the model is loaded and must be released first
	ErrModelInUse = errors.New("model in use")

	// ErrModelNotInstalled indicates the model file has not been downloaded
	ErrModelNotInstalled = errors.New("model not downloaded")

	// ErrModelIncomplete indicates the model file fails the size check
	ErrModelIncomplete = errors.New("model file incomplete")

	// ErrUnknownModel indicates the id is not in the catalog
	ErrUnknownModel = errors.New("unknown model")

	// ErrDownloadInProgress indicates the same model is already downloading
	ErrDownloadInProgress = errors.New("download already in progress")

	// ErrTurnInProgress indicates the conversation already has an active stream
	ErrTurnInProgress = errors.New("conversation turn in progress")

	// ErrTurnNotFound indicates no active stream exists for the conversation
	ErrTurnNotFound = errors.New("no active conversation turn")
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:           ErrNetwork,
	KindTimeout:           ErrTimeout,
	KindUnauthorized:      ErrUnauthorized,
	KindRateLimited:       ErrRateLimited,
	KindServerError:       ErrServerError,
	KindInvalidRequest:    ErrInvalidRequest,
	KindMalformedResponse: ErrMalformedResponse,
	KindEmptyChoices:      ErrEmptyChoices,
	KindCancelled:         ErrCancelled,
	KindEngine:            ErrEngine,
}

// CompletionError struct - typed failure of a completion request
type CompletionError struct {
	Kind       ErrorKind
	StatusCode int
	Detail     string
	Err        error
}

// NewCompletionError func
func NewCompletionError(kind ErrorKind, statusCode int, detail string, err error) *CompletionError {
	return &CompletionError{Kind: kind, StatusCode: statusCode, Detail: detail, Err: err}
}

// Error implements error
func (e *CompletionError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that belongs to the error's kind
func (e *CompletionError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf func - Returns the kind of err, or "" when err is not a CompletionError
func KindOf(err error) ErrorKind {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// UserMessage func - short, actionable text for a failure
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "Check your API key"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests, try again in a moment"
	case errors.Is(err, ErrTimeout):
		return "The model took too long to answer"
	case errors.Is(err, ErrNetwork):
		return "Check your internet connection"
	case errors.Is(err, ErrServerError):
		return "The model service is having problems"
	case errors.Is(err, ErrModelNotInstalled), errors.Is(err, ErrModelIncomplete):
		return "Download the model before chatting with it"
	case errors.Is(err, ErrModelInUse):
		return "Stop the conversation using this model first"
	case errors.Is(err, ErrInitializationInProgress):
		return "The model is still loading"
	case errors.Is(err, ErrEngine):
		return "The on-device model failed to run"
	case errors.Is(err, ErrCancelled):
		return ""
	}
	return "Something went wrong"
}
