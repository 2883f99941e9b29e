package domain

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// StreamHandle struct - one in-flight completion request.
// Cancel is idempotent. Once Cancel returns no callback of the stream is
// started again, and Done closes when the backend has released its
// transport or engine resources.
type StreamHandle struct {
	ID        uuid.UUID
	Backend   string
	ModelID   string
	StartedAt time.Time

	cancelled atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	doneOnce  sync.Once
}

// NewStreamHandle func - Creates a handle and the context its worker must observe
func NewStreamHandle(parent context.Context, backend, modelID string) (*StreamHandle, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &StreamHandle{
		ID:        uuid.New(),
		Backend:   backend,
		ModelID:   modelID,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}, ctx
}

// Cancel aborts the stream
func (h *StreamHandle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// Cancelled reports whether Cancel was called
func (h *StreamHandle) Cancelled() bool {
	return h.cancelled.Load()
}

// Done is closed when the stream worker has exited
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Finish marks the worker as exited. Safe to call more than once.
func (h *StreamHandle) Finish() {
	h.doneOnce.Do(func() {
		h.cancel()
		close(h.done)
	})
}

// Wait blocks until the worker exits or ctx ends
func (h *StreamHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StreamEmitter struct - delivers callbacks for one handle.
// It drops everything after cancellation and lets only the first terminal
// event through.
type StreamEmitter struct {
	handle   *StreamHandle
	cb       StreamCallbacks
	terminal atomic.Bool
}

// NewStreamEmitter func
func NewStreamEmitter(handle *StreamHandle, cb StreamCallbacks) *StreamEmitter {
	return &StreamEmitter{handle: handle, cb: cb}
}

// Active reports whether callbacks can still be delivered
func (e *StreamEmitter) Active() bool {
	return !e.terminal.Load() && !e.handle.Cancelled()
}

// Token forwards one piece of text. It returns false when the stream should stop.
func (e *StreamEmitter) Token(token string) bool {
	if !e.Active() {
		return false
	}
	if token != "" && e.cb.OnToken != nil {
		e.cb.OnToken(token)
	}
	return true
}

// Complete delivers the success terminal event at most once
func (e *StreamEmitter) Complete(result CompletionResult) bool {
	if !e.terminal.CompareAndSwap(false, true) || e.handle.Cancelled() {
		return false
	}
	if e.cb.OnComplete != nil {
		e.cb.OnComplete(result)
	}
	return true
}

// Fail delivers the error terminal event at most once
func (e *StreamEmitter) Fail(err error) bool {
	if !e.terminal.CompareAndSwap(false, true) || e.handle.Cancelled() {
		return false
	}
	if e.cb.OnError != nil {
		e.cb.OnError(err)
	}
	return true
}
