package input

import (
	"context"

	"lingua-stream/internal/domain"
)

// ModelRegistry interface - Input port (use case)
// Addresses local and remote models with one identifier space
type ModelRegistry interface {
	// ListAll merges the local catalog with a best-effort remote listing.
	ListAll(ctx context.Context, settings domain.RemoteSettings, includeLocal bool) ([]domain.ModelDescriptor, error)

	// Complete dispatches a streaming completion by the identifier's namespace.
	Complete(ctx context.Context, modelID string, messages []domain.ChatMessage, settings domain.RemoteSettings, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error)

	// CompleteBlocking runs a completion to the end and returns the result.
	CompleteBlocking(ctx context.Context, modelID string, messages []domain.ChatMessage, settings domain.RemoteSettings) (*domain.CompletionResult, error)

	// StartTurn runs Complete for a conversation, allowing one live turn each.
	StartTurn(ctx context.Context, request domain.ChatTurnRequest, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error)

	// CancelTurn aborts the live turn of a conversation.
	CancelTurn(conversationID string) error
}

// InferenceSession interface - Input port (use case)
// Owns at most one loaded on-device context
type InferenceSession interface {
	Initialize(ctx context.Context, modelID string) error
	CompleteStreaming(ctx context.Context, messages []domain.ChatMessage, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error)
	Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.CompletionResult, error)
	Cleanup() error
	IsReady() bool
	CurrentModelID() string
	IsLoaded(modelID string) bool
}
