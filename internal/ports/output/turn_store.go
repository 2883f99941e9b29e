package output

import "lingua-stream/internal/domain"

// TurnStore interface - Output port
// Tracks the single active stream of each conversation. Implementations
// must be safe for concurrent access.
type TurnStore interface {
	// Begin registers a turn. It fails with domain.ErrTurnInProgress when the
	// conversation already has a live turn. Stale turns are replaced.
	Begin(turn *domain.ActiveTurn) error

	// Get returns the live turn of a conversation, or nil.
	Get(conversationID string) (*domain.ActiveTurn, error)

	// End removes the turn only if it still belongs to the given stream.
	// Ending an unknown turn is not an error.
	End(turn *domain.ActiveTurn) error
}
