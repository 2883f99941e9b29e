package memory

import (
	"sync"
	"time"

	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/output"
)

// Compile-time check to ensure MemoryTurnStore implements TurnStore interface
var _ output.TurnStore = (*MemoryTurnStore)(nil)

// MemoryTurnStore struct - Output adapter for in-memory active turn tracking
// Uses sync.Map for thread-safe concurrent access to conversation turns.
// Stores maxDuration to be used when creating new turns.
type MemoryTurnStore struct {
	turns       sync.Map
	maxDuration time.Duration
}

// NewMemoryTurnStore creates a new in-memory turn store.
// maxDuration: Duration after which an unfinished turn no longer blocks its
// conversation (zero keeps it until the stream ends)
func NewMemoryTurnStore(maxDuration time.Duration) *MemoryTurnStore {
	return &MemoryTurnStore{maxDuration: maxDuration}
}

// GetMaxDuration returns the configured turn bound.
// This value is used when creating new turns.
func (m *MemoryTurnStore) GetMaxDuration() time.Duration {
	return m.maxDuration
}

// Begin registers the turn unless its conversation already has a live one.
// A stale turn (finished, or past its bound) is replaced.
func (m *MemoryTurnStore) Begin(turn *domain.ActiveTurn) error {
	for {
		existing, loaded := m.turns.LoadOrStore(turn.ConversationID, turn)
		if !loaded {
			return nil
		}
		if prev, ok := existing.(*domain.ActiveTurn); ok && !prev.IsStale() {
			return domain.ErrTurnInProgress
		}
		if m.turns.CompareAndSwap(turn.ConversationID, existing, turn) {
			return nil
		}
	}
}

// Get retrieves the live turn of a conversation.
// Returns nil if there is none. Stale turns are deleted (lazy cleanup).
func (m *MemoryTurnStore) Get(conversationID string) (*domain.ActiveTurn, error) {
	value, exists := m.turns.Load(conversationID)
	if !exists {
		return nil, nil
	}

	turn, ok := value.(*domain.ActiveTurn)
	if !ok {
		// If data is malformed, delete and return nil
		m.turns.CompareAndDelete(conversationID, value)
		return nil, nil
	}

	if turn.IsStale() {
		m.turns.CompareAndDelete(conversationID, value)
		return nil, nil
	}

	return turn, nil
}

// End removes the turn if it is still the registered one.
// This operation is idempotent - ending an unknown turn does not return an error.
func (m *MemoryTurnStore) End(turn *domain.ActiveTurn) error {
	if turn == nil {
		return nil
	}
	m.turns.CompareAndDelete(turn.ConversationID, turn)
	return nil
}
