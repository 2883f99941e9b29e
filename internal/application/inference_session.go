package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/input"
	"lingua-stream/internal/ports/output"
	"lingua-stream/pkg/metrics"

	"github.com/sirupsen/logrus"
)

var _ input.InferenceSession = (*LocalInferenceSession)(nil)

const (
	// DefaultLocalMaxTokens is the generation budget when none is configured
	DefaultLocalMaxTokens = 512

	releaseGrace = 5 * time.Second
)

// LocalInferenceSession struct - Application service owning the single
// on-device inference context
type LocalInferenceSession struct {
	store     output.ModelStore
	engine    output.InferenceEngine
	ladder    []domain.ContextParams
	maxTokens int
	metrics   *metrics.Metrics

	mu           sync.Mutex
	loaded       output.InferenceContext
	entry        domain.CatalogEntry
	initializing bool
	active       *domain.StreamHandle
}

// NewLocalInferenceSession func - ladder nil uses domain.DefaultInitLadder
func NewLocalInferenceSession(store output.ModelStore, engine output.InferenceEngine, ladder []domain.ContextParams, maxTokens int) *LocalInferenceSession {
	if len(ladder) == 0 {
		ladder = domain.DefaultInitLadder()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultLocalMaxTokens
	}
	return &LocalInferenceSession{
		store:     store,
		engine:    engine,
		ladder:    ladder,
		maxTokens: maxTokens,
	}
}

// SetMetrics attaches collectors
func (s *LocalInferenceSession) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Initialize loads modelID, trying each ladder preset in order. Loading the
// model that is already loaded is a no-op; a different model replaces it.
func (s *LocalInferenceSession) Initialize(ctx context.Context, modelID string) error {
	id, _ := domain.ParseModelID(modelID)

	s.mu.Lock()
	if s.initializing {
		s.mu.Unlock()
		return domain.ErrInitializationInProgress
	}
	if s.loaded != nil && s.entry.ID == id {
		s.mu.Unlock()
		return nil
	}
	s.initializing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.initializing = false
		s.mu.Unlock()
	}()

	entry, err := s.store.Lookup(id)
	if err != nil {
		return err
	}
	// a truncated download must not reach the engine
	if err := s.store.Verify(id); err != nil {
		return err
	}
	path, err := s.store.ResolvePath(id)
	if err != nil {
		return err
	}

	if err := s.unload(); err != nil {
		logrus.Warnf("Failed to release previous inference context: %v", err)
	}

	loaded, params, err := s.loadWithLadder(ctx, path, entry)
	if err != nil {
		logrus.Errorf("Failed to initialize %s: %v", entry.ID, err)
		return err
	}

	s.mu.Lock()
	s.loaded = loaded
	s.entry = entry
	s.mu.Unlock()
	logrus.Infof("Model %s ready with %s parameters", entry.ID, params.Name)
	return nil
}

func (s *LocalInferenceSession) loadWithLadder(ctx context.Context, path string, entry domain.CatalogEntry) (output.InferenceContext, domain.ContextParams, error) {
	var (
		firstErr, lastErr error
		attempts          int
	)
	for i, preset := range s.ladder {
		attempts++
		params := preset.CapContextSize(entry.ContextSize)
		logrus.Infof("Initializing %s, attempt %d/%d with %s", entry.ID, i+1, len(s.ladder), params)
		loaded, err := s.engine.Load(ctx, path, params)
		s.metrics.EngineInit(params.Name, err)
		if err == nil {
			return loaded, params, nil
		}
		logrus.Warnf("Initialization of %s with %s parameters failed: %v", entry.ID, params.Name, err)
		if firstErr == nil {
			firstErr = err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if attempts == 1 {
		return nil, domain.ContextParams{}, domain.NewCompletionError(domain.KindEngine, 0, "", firstErr)
	}
	return nil, domain.ContextParams{}, domain.NewCompletionError(domain.KindEngine, 0,
		fmt.Sprintf("fallback with conservative parameters also failed: %v", lastErr), firstErr)
}

// unload stops any running completion and releases the loaded context
func (s *LocalInferenceSession) unload() error {
	s.mu.Lock()
	loaded, active := s.loaded, s.active
	s.loaded, s.active = nil, nil
	s.entry = domain.CatalogEntry{}
	s.mu.Unlock()

	if loaded == nil {
		return nil
	}
	if active != nil {
		active.Cancel()
		if err := loaded.StopCompletion(); err != nil {
			logrus.Warnf("Failed to stop completion: %v", err)
		}
		select {
		case <-active.Done():
		case <-time.After(releaseGrace):
			logrus.Warnf("Completion %s did not stop within %v", active.ID, releaseGrace)
		}
	}
	return loaded.Release()
}

// CompleteStreaming runs one completion on the loaded model
func (s *LocalInferenceSession) CompleteStreaming(ctx context.Context, messages []domain.ChatMessage, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
	s.mu.Lock()
	if s.initializing {
		s.mu.Unlock()
		return nil, domain.ErrInitializationInProgress
	}
	if s.loaded == nil {
		s.mu.Unlock()
		return nil, domain.ErrNotInitialized
	}
	if s.active != nil {
		select {
		case <-s.active.Done():
		default:
			s.mu.Unlock()
			return nil, domain.ErrTurnInProgress
		}
	}
	loaded, entry := s.loaded, s.entry
	handle, streamCtx := domain.NewStreamHandle(ctx, domain.BackendLocal, domain.LocalModelID(entry.ID))
	s.active = handle
	s.mu.Unlock()

	request := output.InferenceRequest{
		Prompt:    domain.RenderPrompt(entry.ChatTemplate, messages),
		Stop:      domain.StopTokens(entry.ChatTemplate, entry.StopTokens),
		MaxTokens: s.maxTokens,
	}
	emitter := domain.NewStreamEmitter(handle, callbacks)

	go func() {
		defer handle.Finish()
		stopWatch := context.AfterFunc(streamCtx, func() {
			if err := loaded.StopCompletion(); err != nil {
				logrus.Warnf("Failed to stop completion: %v", err)
			}
		})
		defer stopWatch()

		var text strings.Builder
		timings, err := loaded.Completion(streamCtx, request, func(token string) bool {
			if !emitter.Token(token) {
				return false
			}
			text.WriteString(token)
			return true
		})

		if handle.Cancelled() {
			logrus.Debugf("Local stream %s cancelled by caller", handle.ID)
			return
		}
		if err != nil {
			emitter.Fail(domain.NewCompletionError(domain.KindEngine, 0, "completion failed", err))
			return
		}
		if streamCtx.Err() != nil {
			emitter.Fail(domain.NewCompletionError(domain.KindCancelled, 0, "", streamCtx.Err()))
			return
		}
		emitter.Complete(domain.CompletionResult{
			Text:         text.String(),
			Model:        domain.LocalModelID(entry.ID),
			Backend:      domain.BackendLocal,
			FinishReason: "stop",
			Timings:      timings,
		})
	}()

	return handle, nil
}

// Complete runs a completion to its end
func (s *LocalInferenceSession) Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.CompletionResult, error) {
	return collect(ctx, func(callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
		return s.CompleteStreaming(ctx, messages, callbacks)
	})
}

// Cleanup releases the loaded context; a no-op when nothing is loaded
func (s *LocalInferenceSession) Cleanup() error {
	s.mu.Lock()
	initializing := s.initializing
	s.mu.Unlock()
	if initializing {
		return domain.ErrInitializationInProgress
	}
	if err := s.unload(); err != nil {
		return fmt.Errorf("failed to release inference context: %w", err)
	}
	return nil
}

// IsReady reports whether a completion can start
func (s *LocalInferenceSession) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded != nil && !s.initializing
}

// CurrentModelID returns the bare id of the loaded model, or ""
func (s *LocalInferenceSession) CurrentModelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded == nil {
		return ""
	}
	return s.entry.ID
}

// IsLoaded accepts a bare or a local: prefixed id
func (s *LocalInferenceSession) IsLoaded(modelID string) bool {
	id, _ := domain.ParseModelID(modelID)
	current := s.CurrentModelID()
	return current != "" && current == id
}

// collect drives a streaming call to completion and returns its result
func collect(ctx context.Context, start func(domain.StreamCallbacks) (*domain.StreamHandle, error)) (*domain.CompletionResult, error) {
	type outcome struct {
		result *domain.CompletionResult
		err    error
	}
	done := make(chan outcome, 1)
	handle, err := start(domain.StreamCallbacks{
		OnComplete: func(result domain.CompletionResult) {
			done <- outcome{result: &result}
		},
		OnError: func(err error) {
			done <- outcome{err: err}
		},
	})
	if err != nil {
		return nil, err
	}

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		handle.Cancel()
		return nil, domain.NewCompletionError(domain.KindCancelled, 0, "", ctx.Err())
	case <-handle.Done():
		// the worker may have delivered just before exiting
		select {
		case o := <-done:
			return o.result, o.err
		default:
		}
		return nil, domain.NewCompletionError(domain.KindCancelled, 0, "", errors.New("stream ended without a result"))
	}
}
