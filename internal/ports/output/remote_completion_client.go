package output

import (
	"context"

	"lingua-stream/internal/domain"
)

// RemoteCompletionClient interface - Output port
// Defines what the application needs from an OpenAI-compatible chat endpoint.
type RemoteCompletionClient interface {
	// Complete sends a blocking chat completion request and returns the
	// content of the first choice.
	Complete(ctx context.Context, messages []domain.ChatMessage, settings domain.RemoteSettings, model string) (*domain.CompletionResult, error)

	// CompleteStreaming starts a streaming request and returns immediately.
	// Tokens, completion and errors are reported through callbacks; failures
	// that happen after this call returns never surface as its error.
	CompleteStreaming(ctx context.Context, messages []domain.ChatMessage, settings domain.RemoteSettings, model string, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error)

	// ListModels queries the models endpoint of the configured provider.
	ListModels(ctx context.Context, settings domain.RemoteSettings) ([]domain.ModelDescriptor, error)
}
