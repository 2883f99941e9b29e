package application

import (
	"context"
	"sync/atomic"
	"time"

	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/input"
	"lingua-stream/internal/ports/output"
	"lingua-stream/pkg/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var _ input.ModelRegistry = (*ModelRegistry)(nil)

// ModelRegistry struct - Application service addressing local and remote
// models through one identifier space
type ModelRegistry struct {
	remote          output.RemoteCompletionClient
	store           output.ModelStore
	session         input.InferenceSession
	turns           output.TurnStore
	turnMaxDuration time.Duration
	metrics         *metrics.Metrics
}

// NewModelRegistry func - Creates new model registry
func NewModelRegistry(remote output.RemoteCompletionClient, store output.ModelStore, session input.InferenceSession, turns output.TurnStore, turnMaxDuration time.Duration) *ModelRegistry {
	return &ModelRegistry{
		remote:          remote,
		store:           store,
		session:         session,
		turns:           turns,
		turnMaxDuration: turnMaxDuration,
	}
}

// SetMetrics attaches collectors
func (r *ModelRegistry) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// ListAll func - Use case: list every addressable model.
// Local entries come first. A failing remote listing only fails the call
// when local entries were not requested.
func (r *ModelRegistry) ListAll(ctx context.Context, settings domain.RemoteSettings, includeLocal bool) ([]domain.ModelDescriptor, error) {
	var (
		local  []domain.ModelDescriptor
		remote []domain.ModelDescriptor
		g      errgroup.Group
	)
	if includeLocal {
		g.Go(func() error {
			catalog := r.store.ListCatalog()
			local = make([]domain.ModelDescriptor, 0, len(catalog))
			for _, entry := range catalog {
				local = append(local, entry.Descriptor(r.store.IsInstalled(entry.ID)))
			}
			return nil
		})
	}
	g.Go(func() error {
		models, err := r.remote.ListModels(ctx, settings)
		if err != nil {
			return err
		}
		remote = models
		return nil
	})

	if err := g.Wait(); err != nil {
		if !includeLocal {
			logrus.Errorln(err)
			return nil, err
		}
		logrus.Warnf("Remote model listing failed, returning local models only: %v", err)
	}
	return append(local, remote...), nil
}

// Complete func - Use case: stream a completion from the backend the
// identifier names. Local preconditions fail synchronously.
func (r *ModelRegistry) Complete(ctx context.Context, modelID string, messages []domain.ChatMessage, settings domain.RemoteSettings, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
	id, isLocal := domain.ParseModelID(modelID)
	backend := domain.BackendRemote
	if isLocal {
		backend = domain.BackendLocal
	}
	outcome := &atomic.Value{}
	outcome.Store(metrics.OutcomeCancelled)
	instrumented := r.instrument(backend, outcome, callbacks)

	var (
		handle *domain.StreamHandle
		err    error
	)
	if isLocal {
		handle, err = r.completeLocal(ctx, id, messages, instrumented)
	} else {
		handle, err = r.remote.CompleteStreaming(ctx, messages, settings, modelID, instrumented)
	}
	if err != nil {
		logrus.Errorf("Failed to start completion with %s: %v", modelID, err)
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.StreamStarted(backend)
		go func() {
			<-handle.Done()
			r.metrics.StreamFinished(backend, outcome.Load().(string), time.Since(handle.StartedAt))
		}()
	}
	return handle, nil
}

func (r *ModelRegistry) completeLocal(ctx context.Context, id string, messages []domain.ChatMessage, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
	if _, err := r.store.Lookup(id); err != nil {
		return nil, err
	}
	if !r.store.IsInstalled(id) {
		return nil, domain.ErrModelNotInstalled
	}
	if !r.session.IsLoaded(id) {
		if err := r.session.Initialize(ctx, id); err != nil {
			return nil, err
		}
	}
	return r.session.CompleteStreaming(ctx, messages, callbacks)
}

// instrument counts tokens and remembers the terminal outcome
func (r *ModelRegistry) instrument(backend string, outcome *atomic.Value, callbacks domain.StreamCallbacks) domain.StreamCallbacks {
	if r.metrics == nil {
		return callbacks
	}
	return domain.StreamCallbacks{
		OnToken: func(token string) {
			r.metrics.TokenStreamed(backend)
			if callbacks.OnToken != nil {
				callbacks.OnToken(token)
			}
		},
		OnComplete: func(result domain.CompletionResult) {
			outcome.Store(metrics.OutcomeCompleted)
			if callbacks.OnComplete != nil {
				callbacks.OnComplete(result)
			}
		},
		OnError: func(err error) {
			outcome.Store(metrics.OutcomeFailed)
			if callbacks.OnError != nil {
				callbacks.OnError(err)
			}
		},
	}
}

// CompleteBlocking func - Use case: run a completion to its end
func (r *ModelRegistry) CompleteBlocking(ctx context.Context, modelID string, messages []domain.ChatMessage, settings domain.RemoteSettings) (*domain.CompletionResult, error) {
	if _, isLocal := domain.ParseModelID(modelID); !isLocal {
		return r.remote.Complete(ctx, messages, settings, modelID)
	}
	return collect(ctx, func(callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
		return r.Complete(ctx, modelID, messages, settings, callbacks)
	})
}

// StartTurn func - Use case: stream one turn of a conversation.
// A conversation holds at most one live turn.
func (r *ModelRegistry) StartTurn(ctx context.Context, request domain.ChatTurnRequest, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
	if request.ConversationID == "" {
		return nil, domain.NewCompletionError(domain.KindInvalidRequest, 0, "conversation id is required", nil)
	}
	live, err := r.turns.Get(request.ConversationID)
	if err != nil {
		return nil, err
	}
	if live != nil {
		return nil, domain.ErrTurnInProgress
	}

	handle, err := r.Complete(ctx, request.ModelID, request.Messages, request.Settings, callbacks)
	if err != nil {
		return nil, err
	}
	turn := domain.NewActiveTurn(request.ConversationID, request.ModelID, handle, r.turnMaxDuration)
	if err := r.turns.Begin(turn); err != nil {
		// lost a race with another turn of the same conversation
		handle.Cancel()
		return nil, err
	}
	go func() {
		<-handle.Done()
		if err := r.turns.End(turn); err != nil {
			logrus.Warnf("Failed to end turn of %s: %v", turn.ConversationID, err)
		}
	}()
	logrus.Debugf("Turn %s started for conversation %s", handle.ID, request.ConversationID)
	return handle, nil
}

// CancelTurn func - Use case: abort the live turn of a conversation
func (r *ModelRegistry) CancelTurn(conversationID string) error {
	turn, err := r.turns.Get(conversationID)
	if err != nil {
		return err
	}
	if turn == nil {
		return domain.ErrTurnNotFound
	}
	turn.Abort()
	logrus.Infof("Cancelled turn %s of conversation %s", turn.Handle.ID, conversationID)
	return r.turns.End(turn)
}
