package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/output"
)

// Mock implementations for testing

// MockModelStore implements output.ModelStore for testing
type MockModelStore struct {
	Catalog      []domain.CatalogEntry
	Installed    map[string]bool
	VerifyFunc   func(modelID string) error
	DownloadFunc func(ctx context.Context, modelID string, onProgress func(domain.DownloadProgress)) error
	DeleteFunc   func(modelID string) error

	mu      sync.Mutex
	Deleted []string
}

func (m *MockModelStore) ListCatalog() []domain.CatalogEntry {
	return m.Catalog
}

func (m *MockModelStore) ListInstalled() []domain.ModelDescriptor {
	var out []domain.ModelDescriptor
	for _, e := range m.Catalog {
		if m.Installed[e.ID] {
			out = append(out, e.Descriptor(true))
		}
	}
	return out
}

func (m *MockModelStore) Lookup(modelID string) (domain.CatalogEntry, error) {
	id, _ := domain.ParseModelID(modelID)
	for _, e := range m.Catalog {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.CatalogEntry{}, domain.ErrUnknownModel
}

func (m *MockModelStore) IsInstalled(modelID string) bool {
	return m.Installed[modelID]
}

func (m *MockModelStore) Verify(modelID string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(modelID)
	}
	if !m.Installed[modelID] {
		return domain.ErrModelNotInstalled
	}
	return nil
}

func (m *MockModelStore) ResolvePath(modelID string) (string, error) {
	entry, err := m.Lookup(modelID)
	if err != nil {
		return "", err
	}
	return "/models/" + entry.FileName, nil
}

func (m *MockModelStore) Download(ctx context.Context, modelID string, onProgress func(domain.DownloadProgress)) error {
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, modelID, onProgress)
	}
	return nil
}

func (m *MockModelStore) Delete(modelID string) error {
	m.mu.Lock()
	m.Deleted = append(m.Deleted, modelID)
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(modelID)
	}
	return nil
}

// MockEngine implements output.InferenceEngine for testing
type MockEngine struct {
	LoadFunc func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error)

	mu    sync.Mutex
	Loads []domain.ContextParams
	Paths []string
}

func (m *MockEngine) Load(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
	m.mu.Lock()
	m.Loads = append(m.Loads, params)
	m.Paths = append(m.Paths, modelPath)
	m.mu.Unlock()
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, modelPath, params)
	}
	return &MockInferenceContext{Tokens: []string{"ok"}}, nil
}

func (m *MockEngine) loads() []domain.ContextParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ContextParams(nil), m.Loads...)
}

// MockInferenceContext implements output.InferenceContext for testing
type MockInferenceContext struct {
	Tokens         []string
	Delay          time.Duration
	CompletionFunc func(ctx context.Context, request output.InferenceRequest, onToken func(string) bool) (*domain.CompletionTimings, error)

	LastRequest output.InferenceRequest
	StopCalls   atomic.Int32
	Released    atomic.Bool
}

func (m *MockInferenceContext) Completion(ctx context.Context, request output.InferenceRequest, onToken func(string) bool) (*domain.CompletionTimings, error) {
	m.LastRequest = request
	if m.CompletionFunc != nil {
		return m.CompletionFunc(ctx, request, onToken)
	}
	for _, token := range m.Tokens {
		if m.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, nil
			case <-time.After(m.Delay):
			}
		}
		if ctx.Err() != nil || !onToken(token) {
			return nil, nil
		}
	}
	return &domain.CompletionTimings{PredictedTokens: len(m.Tokens)}, nil
}

func (m *MockInferenceContext) StopCompletion() error {
	m.StopCalls.Add(1)
	return nil
}

func (m *MockInferenceContext) Release() error {
	m.Released.Store(true)
	return nil
}

// callbackRecorder captures stream callbacks for assertions
type callbackRecorder struct {
	mu       sync.Mutex
	tokens   []string
	results  []domain.CompletionResult
	errs     []error
	onToken  func(n int)
	finished chan struct{}
	once     sync.Once
}

func newCallbackRecorder() *callbackRecorder {
	return &callbackRecorder{finished: make(chan struct{})}
}

func (r *callbackRecorder) callbacks() domain.StreamCallbacks {
	return domain.StreamCallbacks{
		OnToken: func(token string) {
			r.mu.Lock()
			r.tokens = append(r.tokens, token)
			n := len(r.tokens)
			hook := r.onToken
			r.mu.Unlock()
			if hook != nil {
				hook(n)
			}
		},
		OnComplete: func(result domain.CompletionResult) {
			r.mu.Lock()
			r.results = append(r.results, result)
			r.mu.Unlock()
			r.once.Do(func() { close(r.finished) })
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.once.Do(func() { close(r.finished) })
		},
	}
}

func (r *callbackRecorder) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.finished:
	case <-time.After(timeout):
		t.Fatalf("stream did not finish within %v", timeout)
	}
}

func (r *callbackRecorder) snapshot() ([]string, []domain.CompletionResult, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...), append([]domain.CompletionResult(nil), r.results...), append([]error(nil), r.errs...)
}

var testCatalog = []domain.CatalogEntry{
	{ID: "tinyllama", DisplayName: "TinyLlama", SourceURL: "https://example.com/tiny.gguf", FileName: "tiny.gguf", ExpectedBytes: 100, ChatTemplate: "zephyr", ContextSize: 2048},
	{ID: "qwen", DisplayName: "Qwen", SourceURL: "https://example.com/qwen.gguf", FileName: "qwen.gguf", ExpectedBytes: 200, ChatTemplate: "chatml"},
}

func newTestStore(installed ...string) *MockModelStore {
	store := &MockModelStore{Catalog: testCatalog, Installed: map[string]bool{}}
	for _, id := range installed {
		store.Installed[id] = true
	}
	return store
}

var testMessages = []domain.ChatMessage{
	{Role: domain.ChatMessageRoleSystem, Content: "Reply in French."},
	{Role: domain.ChatMessageRoleUser, Content: "Hello"},
}

func TestNewLocalInferenceSessionDefaults(t *testing.T) {
	session := NewLocalInferenceSession(newTestStore(), &MockEngine{}, nil, 0)

	if len(session.ladder) != 2 {
		t.Fatalf("Expected default ladder of 2 presets, got %d", len(session.ladder))
	}
	if session.ladder[0].Name != domain.OptimisticContextParams.Name {
		t.Errorf("Expected optimistic preset first, got %s", session.ladder[0].Name)
	}
	if session.maxTokens != DefaultLocalMaxTokens {
		t.Errorf("Expected maxTokens %d, got %d", DefaultLocalMaxTokens, session.maxTokens)
	}
	if session.IsReady() {
		t.Error("Expected fresh session not to be ready")
	}
}

func TestInitializeFallsBackToConservativeParameters(t *testing.T) {
	loaded := &MockInferenceContext{Tokens: []string{"hi"}}
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			if params.Name == domain.OptimisticContextParams.Name {
				return nil, errors.New("mlock failed: out of memory")
			}
			return loaded, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)

	if err := session.Initialize(context.Background(), "local:tinyllama"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	loads := engine.loads()
	if len(loads) != 2 {
		t.Fatalf("Expected 2 load attempts, got %d", len(loads))
	}
	if loads[0].ContextSize != 2048 {
		t.Errorf("Expected optimistic window capped to 2048, got %d", loads[0].ContextSize)
	}
	if loads[1].Name != domain.ConservativeContextParams.Name {
		t.Errorf("Expected conservative preset second, got %s", loads[1].Name)
	}
	if engine.Paths[0] != "/models/tiny.gguf" {
		t.Errorf("Expected catalog path, got %s", engine.Paths[0])
	}
	if !session.IsReady() || session.CurrentModelID() != "tinyllama" {
		t.Errorf("Expected tinyllama ready, got ready=%v id=%q", session.IsReady(), session.CurrentModelID())
	}
}

func TestInitializeReportsFirstErrorWhenLadderExhausted(t *testing.T) {
	firstErr := errors.New("mlock failed")
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			if params.Name == domain.OptimisticContextParams.Name {
				return nil, firstErr
			}
			return nil, errors.New("context allocation failed")
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)

	err := session.Initialize(context.Background(), "tinyllama")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, domain.ErrEngine) {
		t.Errorf("Expected EngineError, got %v", err)
	}
	if !errors.Is(err, firstErr) {
		t.Errorf("Expected first error to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "fallback with conservative parameters also failed: context allocation failed") {
		t.Errorf("Expected fallback note, got %q", err.Error())
	}
	if session.IsReady() {
		t.Error("Expected session not ready after failed initialize")
	}
}

func TestInitializeSinglePresetOmitsFallbackNote(t *testing.T) {
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			return nil, errors.New("bad magic")
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, []domain.ContextParams{domain.ConservativeContextParams}, 0)

	err := session.Initialize(context.Background(), "tinyllama")
	if err == nil || strings.Contains(err.Error(), "fallback") {
		t.Errorf("Expected plain engine error, got %v", err)
	}
}

func TestInitializeRejectsMissingOrTruncatedModel(t *testing.T) {
	store := newTestStore("qwen")
	store.VerifyFunc = func(modelID string) error {
		if modelID == "qwen" {
			return domain.ErrModelIncomplete
		}
		return domain.ErrModelNotInstalled
	}
	engine := &MockEngine{}
	session := NewLocalInferenceSession(store, engine, nil, 0)

	if err := session.Initialize(context.Background(), "tinyllama"); !errors.Is(err, domain.ErrModelNotInstalled) {
		t.Errorf("Expected ErrModelNotInstalled, got %v", err)
	}
	if err := session.Initialize(context.Background(), "qwen"); !errors.Is(err, domain.ErrModelIncomplete) {
		t.Errorf("Expected ErrModelIncomplete, got %v", err)
	}
	if err := session.Initialize(context.Background(), "mystery"); !errors.Is(err, domain.ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
	if len(engine.loads()) != 0 {
		t.Errorf("Expected engine untouched, got %d loads", len(engine.loads()))
	}
}

func TestInitializeIsIdempotentAndSwitchReleasesOldContext(t *testing.T) {
	contexts := map[string]*MockInferenceContext{}
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			c := &MockInferenceContext{Tokens: []string{"x"}}
			contexts[modelPath] = c
			return c, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama", "qwen"), engine, nil, 0)

	if err := session.Initialize(context.Background(), "tinyllama"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := session.Initialize(context.Background(), "local:tinyllama"); err != nil {
		t.Fatalf("Expected no error on repeat, got %v", err)
	}
	if len(engine.loads()) != 1 {
		t.Fatalf("Expected repeat initialize to be a no-op, got %d loads", len(engine.loads()))
	}

	if err := session.Initialize(context.Background(), "qwen"); err != nil {
		t.Fatalf("Expected no error on switch, got %v", err)
	}
	if !contexts["/models/tiny.gguf"].Released.Load() {
		t.Error("Expected previous context to be released")
	}
	if contexts["/models/qwen.gguf"].Released.Load() {
		t.Error("Expected new context to stay loaded")
	}
	if !session.IsLoaded("local:qwen") || session.IsLoaded("tinyllama") {
		t.Errorf("Expected qwen loaded, current %q", session.CurrentModelID())
	}
}

func TestInitializeIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			close(entered)
			<-release
			return &MockInferenceContext{}, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)

	done := make(chan error, 1)
	go func() { done <- session.Initialize(context.Background(), "tinyllama") }()
	<-entered

	if err := session.Initialize(context.Background(), "tinyllama"); !errors.Is(err, domain.ErrInitializationInProgress) {
		t.Errorf("Expected ErrInitializationInProgress, got %v", err)
	}
	if _, err := session.CompleteStreaming(context.Background(), testMessages, domain.StreamCallbacks{}); !errors.Is(err, domain.ErrInitializationInProgress) {
		t.Errorf("Expected ErrInitializationInProgress from completion, got %v", err)
	}
	if err := session.Cleanup(); !errors.Is(err, domain.ErrInitializationInProgress) {
		t.Errorf("Expected ErrInitializationInProgress from cleanup, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Expected first initialize to succeed, got %v", err)
	}
	if !session.IsReady() {
		t.Error("Expected session ready")
	}
}

func TestCompleteStreamingRequiresInitialize(t *testing.T) {
	session := NewLocalInferenceSession(newTestStore(), &MockEngine{}, nil, 0)
	recorder := newCallbackRecorder()

	handle, err := session.CompleteStreaming(context.Background(), testMessages, recorder.callbacks())
	if !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("Expected ErrNotInitialized, got %v", err)
	}
	if handle != nil {
		t.Error("Expected nil handle")
	}
}

func TestCompleteStreamingDeliversTokensInOrder(t *testing.T) {
	loaded := &MockInferenceContext{Tokens: []string{"Bon", "jour"}}
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			return loaded, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 64)
	if err := session.Initialize(context.Background(), "tinyllama"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	recorder := newCallbackRecorder()
	handle, err := session.CompleteStreaming(context.Background(), testMessages, recorder.callbacks())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	recorder.wait(t, time.Second)
	<-handle.Done()

	tokens, results, errs := recorder.snapshot()
	if strings.Join(tokens, "") != "Bonjour" {
		t.Errorf("Expected tokens Bonjour, got %v", tokens)
	}
	if len(errs) != 0 || len(results) != 1 {
		t.Fatalf("Expected one completion and no errors, got %d/%d", len(results), len(errs))
	}
	if results[0].Text != "Bonjour" || results[0].Model != "local:tinyllama" || results[0].Backend != domain.BackendLocal {
		t.Errorf("Unexpected result %+v", results[0])
	}
	if results[0].Timings == nil || results[0].Timings.PredictedTokens != 2 {
		t.Errorf("Expected timings to be forwarded, got %+v", results[0].Timings)
	}
	if loaded.LastRequest.MaxTokens != 64 {
		t.Errorf("Expected max tokens 64, got %d", loaded.LastRequest.MaxTokens)
	}
	if !strings.Contains(loaded.LastRequest.Prompt, "Reply in French.") || !strings.Contains(loaded.LastRequest.Prompt, "Hello") {
		t.Errorf("Expected rendered prompt to carry the messages, got %q", loaded.LastRequest.Prompt)
	}
	if len(loaded.LastRequest.Stop) == 0 {
		t.Error("Expected template stop tokens")
	}
}

func TestCompleteStreamingEngineFailure(t *testing.T) {
	loaded := &MockInferenceContext{
		CompletionFunc: func(ctx context.Context, request output.InferenceRequest, onToken func(string) bool) (*domain.CompletionTimings, error) {
			onToken("partial")
			return nil, errors.New("kv cache full")
		},
	}
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			return loaded, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)
	if err := session.Initialize(context.Background(), "tinyllama"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	recorder := newCallbackRecorder()
	if _, err := session.CompleteStreaming(context.Background(), testMessages, recorder.callbacks()); err != nil {
		t.Fatalf("Expected mid-stream failures to arrive through callbacks, got %v", err)
	}
	recorder.wait(t, time.Second)

	tokens, results, errs := recorder.snapshot()
	if len(tokens) != 1 || len(results) != 0 || len(errs) != 1 {
		t.Fatalf("Expected 1 token and 1 error, got tokens=%v results=%d errs=%d", tokens, len(results), len(errs))
	}
	if domain.KindOf(errs[0]) != domain.KindEngine {
		t.Errorf("Expected EngineError, got %v", errs[0])
	}
}

func TestCompleteStreamingCancelAfterKTokens(t *testing.T) {
	for _, k := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("cancel after %d tokens", k), func(t *testing.T) {
			loaded := &MockInferenceContext{Tokens: []string{"a", "b", "c", "d", "e", "f", "g", "h"}, Delay: 10 * time.Millisecond}
			engine := &MockEngine{
				LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
					return loaded, nil
				},
			}
			session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)
			if err := session.Initialize(context.Background(), "tinyllama"); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			recorder := newCallbackRecorder()
			var handle atomic.Pointer[domain.StreamHandle]
			ready := make(chan struct{})
			recorder.onToken = func(n int) {
				if n == k {
					<-ready
					handle.Load().Cancel()
				}
			}
			h, err := session.CompleteStreaming(context.Background(), testMessages, recorder.callbacks())
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			handle.Store(h)
			close(ready)
			if k == 0 {
				h.Cancel()
			}

			select {
			case <-h.Done():
			case <-time.After(time.Second):
				t.Fatal("Expected stream to stop after cancel")
			}
			time.Sleep(20 * time.Millisecond)

			tokens, results, errs := recorder.snapshot()
			if len(tokens) != k {
				t.Errorf("Expected exactly %d tokens, got %v", k, tokens)
			}
			if len(results) != 0 || len(errs) != 0 {
				t.Errorf("Expected no terminal callback after cancel, got %d/%d", len(results), len(errs))
			}
			if loaded.StopCalls.Load() == 0 {
				t.Error("Expected engine generation to be stopped")
			}
		})
	}
}

func TestCompleteStreamingRejectsSecondActiveStream(t *testing.T) {
	loaded := &MockInferenceContext{Tokens: []string{"a", "b", "c"}, Delay: 50 * time.Millisecond}
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			return loaded, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)
	if err := session.Initialize(context.Background(), "tinyllama"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	first, err := session.CompleteStreaming(context.Background(), testMessages, domain.StreamCallbacks{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := session.CompleteStreaming(context.Background(), testMessages, domain.StreamCallbacks{}); !errors.Is(err, domain.ErrTurnInProgress) {
		t.Errorf("Expected ErrTurnInProgress, got %v", err)
	}
	first.Cancel()
	<-first.Done()

	if _, err := session.CompleteStreaming(context.Background(), testMessages, domain.StreamCallbacks{}); err != nil {
		t.Errorf("Expected a new stream once the first ended, got %v", err)
	}
}

func TestCleanupStopsActiveStreamAndReleases(t *testing.T) {
	loaded := &MockInferenceContext{Tokens: []string{"a", "b", "c", "d"}, Delay: 50 * time.Millisecond}
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			return loaded, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)

	if err := session.Cleanup(); err != nil {
		t.Fatalf("Expected cleanup without a model to be a no-op, got %v", err)
	}
	if err := session.Initialize(context.Background(), "tinyllama"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	recorder := newCallbackRecorder()
	handle, err := session.CompleteStreaming(context.Background(), testMessages, recorder.callbacks())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := session.Cleanup(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	select {
	case <-handle.Done():
	default:
		t.Error("Expected active stream to end before cleanup returned")
	}
	if !loaded.Released.Load() {
		t.Error("Expected context released")
	}
	if session.IsReady() || session.CurrentModelID() != "" {
		t.Error("Expected session empty after cleanup")
	}
	_, results, errs := recorder.snapshot()
	if len(results)+len(errs) != 0 {
		t.Error("Expected no terminal callback for a stream stopped by cleanup")
	}
}

func TestCompleteBlockingLocal(t *testing.T) {
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			return &MockInferenceContext{Tokens: []string{"Bon", "jour"}}, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)
	if err := session.Initialize(context.Background(), "tinyllama"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	result, err := session.Complete(context.Background(), testMessages)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Text != "Bonjour" {
		t.Errorf("Expected Bonjour, got %q", result.Text)
	}
}

func TestCompleteBlockingHonoursContext(t *testing.T) {
	engine := &MockEngine{
		LoadFunc: func(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
			return &MockInferenceContext{Tokens: []string{"a", "b", "c", "d"}, Delay: 100 * time.Millisecond}, nil
		},
	}
	session := NewLocalInferenceSession(newTestStore("tinyllama"), engine, nil, 0)
	if err := session.Initialize(context.Background(), "tinyllama"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := session.Complete(ctx, testMessages)
	if !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("Expected Cancelled, got %v", err)
	}
}
