package output

import (
	"context"

	"lingua-stream/internal/domain"
)

// InferenceRequest struct - a prompt ready for the engine
type InferenceRequest struct {
	Prompt    string
	Stop      []string
	MaxTokens int
}

// InferenceEngine interface - Output port
// Loads native inference contexts. The engine is not safe to drive from two
// contexts at once, so callers hold at most one.
type InferenceEngine interface {
	Load(ctx context.Context, modelPath string, params domain.ContextParams) (InferenceContext, error)
}

// InferenceContext interface - a loaded model plus its runtime parameters
type InferenceContext interface {
	// Completion generates tokens for the request, invoking onToken once per
	// token in order. Returning false from onToken stops generation.
	Completion(ctx context.Context, request InferenceRequest, onToken func(token string) bool) (*domain.CompletionTimings, error)

	// StopCompletion asks a running Completion to stop as soon as feasible.
	StopCompletion() error

	// Release frees the native context.
	Release() error
}
