package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"lingua-stream/internal/domain"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	models       []domain.ModelDescriptor
	listErr      error
	includeLocal bool
	tokens       []string
	streamErr    error
	lastModel    string
	lastMessages []domain.ChatMessage
}

func (f *fakeRegistry) ListAll(ctx context.Context, settings domain.RemoteSettings, includeLocal bool) ([]domain.ModelDescriptor, error) {
	f.includeLocal = includeLocal
	return f.models, f.listErr
}

func (f *fakeRegistry) Complete(ctx context.Context, modelID string, messages []domain.ChatMessage, settings domain.RemoteSettings, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
	f.lastModel = modelID
	f.lastMessages = messages
	handle, _ := domain.NewStreamHandle(ctx, domain.BackendRemote, modelID)
	go func() {
		defer handle.Finish()
		text := ""
		for _, token := range f.tokens {
			text += token
			callbacks.OnToken(token)
		}
		if f.streamErr != nil {
			callbacks.OnError(f.streamErr)
			return
		}
		callbacks.OnComplete(domain.CompletionResult{Text: text, Model: modelID, Backend: domain.BackendRemote, FinishReason: "stop"})
	}()
	return handle, nil
}

func (f *fakeRegistry) CompleteBlocking(ctx context.Context, modelID string, messages []domain.ChatMessage, settings domain.RemoteSettings) (*domain.CompletionResult, error) {
	f.lastModel = modelID
	f.lastMessages = messages
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	text := ""
	for _, token := range f.tokens {
		text += token
	}
	return &domain.CompletionResult{Text: text, Model: modelID, Backend: domain.BackendRemote}, nil
}

func (f *fakeRegistry) StartTurn(ctx context.Context, request domain.ChatTurnRequest, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
	return f.Complete(ctx, request.ModelID, request.Messages, request.Settings, callbacks)
}

func (f *fakeRegistry) CancelTurn(conversationID string) error {
	return domain.ErrTurnNotFound
}

type fakeLibrary struct {
	downloadErr error
	deleteErr   error
	deleted     string
	query       domain.DownloadQuery
	records     []domain.DownloadRecord
}

func (f *fakeLibrary) ListCatalog() []domain.ModelDescriptor {
	return nil
}

func (f *fakeLibrary) Download(ctx context.Context, modelID string, onProgress func(domain.DownloadProgress)) error {
	onProgress(domain.NewDownloadProgress(modelID, 512, 1024))
	onProgress(domain.NewDownloadProgress(modelID, 1024, 1024))
	return f.downloadErr
}

func (f *fakeLibrary) Delete(modelID string) error {
	f.deleted = modelID
	return f.deleteErr
}

func (f *fakeLibrary) History(query domain.DownloadQuery) (*domain.DownloadList, error) {
	f.query = query
	return &domain.DownloadList{Records: f.records, TotalItem: int64(len(f.records))}, nil
}

// run executes fn against a throwaway command and returns what it printed
func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())
	err := fn(cmd, args)
	return out.String(), errOut.String(), err
}

func withFakes(t *testing.T, reg *fakeRegistry, lib *fakeLibrary) {
	t.Helper()
	prevRegistry, prevLibrary := registry, library
	registry, library = reg, lib
	t.Cleanup(func() {
		registry, library = prevRegistry, prevLibrary
		remoteOnly = false
		historyModel, historyStatus, historyLimit = "", "", 20
		chatModel, chatSystem, chatNoStream = "", "", false
	})
}

func TestModelsList(t *testing.T) {
	reg := &fakeRegistry{models: []domain.ModelDescriptor{
		{ID: "local:tinyllama", DisplayName: "TinyLlama", ExpectedByteSize: 2048, IsLocal: true, IsInstalled: true},
		{ID: "local:qwen", DisplayName: "Qwen", IsLocal: true},
		{ID: "gpt-4o-mini", OwnedBy: "openai"},
	}}
	withFakes(t, reg, &fakeLibrary{})

	out, _, err := run(t, runModelsList)
	require.NoError(t, err)
	assert.True(t, reg.includeLocal)
	assert.Contains(t, out, "local:tinyllama")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "openai")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "no")
}

func TestModelsListRemoteOnlyFailure(t *testing.T) {
	reg := &fakeRegistry{listErr: domain.NewCompletionError(domain.KindUnauthorized, 401, "", nil)}
	withFakes(t, reg, &fakeLibrary{})
	remoteOnly = true

	_, errOut, err := run(t, runModelsList)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, reg.includeLocal)
	assert.Contains(t, errOut, "Check your API key")
}

func TestModelsPull(t *testing.T) {
	withFakes(t, &fakeRegistry{}, &fakeLibrary{})

	out, errOut, err := run(t, runModelsPull, "local:tinyllama")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Downloading local:tinyllama")
	assert.Contains(t, errOut, "100.0%")
	assert.Contains(t, out, "local:tinyllama is ready")
}

func TestModelsPullFailure(t *testing.T) {
	withFakes(t, &fakeRegistry{}, &fakeLibrary{downloadErr: context.Canceled})

	_, errOut, err := run(t, runModelsPull, "tinyllama")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, errOut, "Download cancelled")
}

func TestModelsRemove(t *testing.T) {
	lib := &fakeLibrary{}
	withFakes(t, &fakeRegistry{}, lib)

	out, _, err := run(t, runModelsRemove, "local:qwen")
	require.NoError(t, err)
	assert.Equal(t, "qwen", lib.deleted)
	assert.Contains(t, out, "Removed local:qwen")

	lib.deleteErr = domain.ErrModelInUse
	_, errOut, err := run(t, runModelsRemove, "qwen")
	assert.ErrorIs(t, err, domain.ErrModelInUse)
	assert.Contains(t, errOut, "Stop the conversation")
}

func TestModelsHistory(t *testing.T) {
	lib := &fakeLibrary{records: []domain.DownloadRecord{{
		ModelID:      "qwen",
		Status:       domain.DownloadStatusFailed,
		BytesWritten: 10,
		Error:        "network: reset",
		FinishedAt:   time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
	}}}
	withFakes(t, &fakeRegistry{}, lib)
	historyModel = "local:qwen"
	historyStatus = "FAILED"
	historyLimit = 5

	out, _, err := run(t, runModelsHistory)
	require.NoError(t, err)
	require.NotNil(t, lib.query.ModelID)
	assert.Equal(t, "qwen", *lib.query.ModelID)
	require.NotNil(t, lib.query.Status)
	assert.Equal(t, domain.DownloadStatusFailed, *lib.query.Status)
	assert.Equal(t, 5, lib.query.Limit)
	assert.Contains(t, out, "local:qwen")
	assert.Contains(t, out, "network: reset")
	assert.Contains(t, out, "1 of 1 records")

	historyStatus = "DONE"
	_, _, err = run(t, runModelsHistory)
	assert.Error(t, err)
}

func TestChatStreamsTokens(t *testing.T) {
	reg := &fakeRegistry{tokens: []string{"Bon", "jour"}}
	withFakes(t, reg, &fakeLibrary{})
	chatModel = "gpt-4o-mini"
	chatSystem = "be brief"

	out, errOut, err := run(t, runChat, "say", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour\n", out)
	assert.Contains(t, errOut, "gpt-4o-mini via remote, stop")
	require.Len(t, reg.lastMessages, 2)
	assert.Equal(t, domain.ChatMessageRoleSystem, reg.lastMessages[0].Role)
	assert.Equal(t, "say hello", reg.lastMessages[1].Content)
}

func TestChatStreamFailure(t *testing.T) {
	reg := &fakeRegistry{tokens: []string{"Bon"}, streamErr: domain.NewCompletionError(domain.KindRateLimited, 429, "", nil)}
	withFakes(t, reg, &fakeLibrary{})
	chatModel = "gpt-4o-mini"

	out, errOut, err := run(t, runChat, "hi")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, "Bon\n", out)
	assert.Contains(t, errOut, "Too many requests")
	assert.Len(t, reg.lastMessages, 1)
}

func TestChatBlocking(t *testing.T) {
	reg := &fakeRegistry{tokens: []string{"Hello", " there"}}
	withFakes(t, reg, &fakeLibrary{})
	chatModel = "local:tinyllama"
	chatNoStream = true

	out, _, err := run(t, runChat, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there\n", out)
	assert.Equal(t, "local:tinyllama", reg.lastModel)

	reg.streamErr = errors.New("boom")
	_, _, err = run(t, runChat, "hi")
	assert.Error(t, err)
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "-", humanBytes(0))
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 MiB", humanBytes(1536*1024))
}
