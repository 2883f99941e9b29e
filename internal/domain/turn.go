package domain

import "time"

// ActiveTurn represents the single in-flight stream of a conversation
type ActiveTurn struct {
	ConversationID string        // caller-chosen conversation key
	ModelID        string        // namespaced model identifier
	Handle         *StreamHandle // the stream being delivered
	StartedAt      time.Time
	maxDuration    time.Duration
}

// NewActiveTurn creates a turn record for a freshly started stream.
// maxDuration bounds how long the record may be held; zero means no bound.
func NewActiveTurn(conversationID, modelID string, handle *StreamHandle, maxDuration time.Duration) *ActiveTurn {
	return &ActiveTurn{
		ConversationID: conversationID,
		ModelID:        modelID,
		Handle:         handle,
		StartedAt:      time.Now(),
		maxDuration:    maxDuration,
	}
}

// IsStale reports whether the turn finished or outlived its bound
func (t *ActiveTurn) IsStale() bool {
	if t.Handle == nil {
		return true
	}
	select {
	case <-t.Handle.Done():
		return true
	default:
	}
	return t.maxDuration > 0 && time.Since(t.StartedAt) > t.maxDuration
}

// Abort cancels the stream of the turn
func (t *ActiveTurn) Abort() {
	if t.Handle != nil {
		t.Handle.Cancel()
	}
}
