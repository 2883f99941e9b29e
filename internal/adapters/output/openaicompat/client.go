package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"lingua-stream/configs"
	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/output"
	"lingua-stream/pkg/metrics"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

var _ output.RemoteCompletionClient = (*Client)(nil)

// Defaults applied when configuration leaves a field empty
const (
	DefaultBaseURL     = "https://api.openai.com"
	DefaultTimeout     = 30 * time.Second
	DefaultTemperature = float32(0.7)
	DefaultMaxTokens   = 1024
)

// Retry configuration for model listing
const (
	initialDelay      = 500 * time.Millisecond
	maxDelay          = 5 * time.Second
	backoffMultiplier = 2
)

const chatCompletionsPath = "/chat/completions"

// Options struct - resolved client settings
type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	Temperature       float32
	MaxTokens         int
	Transport         string
	PollInterval      time.Duration
	MaxMalformedLines int
	ListRetryAttempts int
}

// OptionsFromConfig func - Applies defaults to the remote config section
func OptionsFromConfig(cfg configs.Remote) Options {
	opts := Options{
		BaseURL:           cfg.APIURL,
		APIKey:            cfg.APIKey,
		Timeout:           time.Duration(cfg.Timeout) * time.Second,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		Transport:         cfg.Transport,
		PollInterval:      time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		MaxMalformedLines: cfg.MaxMalformedLines,
		ListRetryAttempts: cfg.ListRetryAttempts,
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Transport == "" {
		opts.Transport = TransportPolling
	}
	if opts.ListRetryAttempts <= 0 {
		opts.ListRetryAttempts = 1
	}
	return opts
}

// Client struct - Output adapter for OpenAI-compatible chat endpoints
type Client struct {
	httpClient *http.Client
	transport  Transport
	opts       Options
	metrics    *metrics.Metrics
}

// NewClient func - Creates a client from the remote config section
func NewClient(cfg configs.Remote) (*Client, error) {
	opts := OptionsFromConfig(cfg)
	if opts.Transport != TransportPolling && opts.Transport != TransportIncremental {
		return nil, fmt.Errorf("unknown remote transport %q", opts.Transport)
	}
	// deadlines come from request contexts so that a timeout can be told
	// apart from a caller's cancel
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	client := NewClientWithOptions(opts, httpClient)
	logrus.Infof("Remote completion client initialized with base URL: %s, timeout: %v, transport: %s", opts.BaseURL, opts.Timeout, opts.Transport)
	return client, nil
}

// NewClientWithOptions func - Creates a client around an existing http.Client
func NewClientWithOptions(opts Options, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		transport:  NewTransport(opts.Transport, httpClient, opts.PollInterval),
		opts:       opts,
	}
}

// SetMetrics attaches collectors
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// SetTransport replaces the streaming transport
func (c *Client) SetTransport(t Transport) {
	c.transport = t
}

// ChatCompletionsURL func - Uses a base that already names the chat
// completions path verbatim, otherwise appends the standard suffix
func ChatCompletionsURL(base string) string {
	base = strings.TrimSpace(base)
	if strings.Contains(base, chatCompletionsPath) {
		return base
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + chatCompletionsPath
	}
	return base + "/v1" + chatCompletionsPath
}

// ModelsURL func - /models when the base already contains /v1, else /v1/models
func ModelsURL(base string) string {
	base = strings.TrimSpace(base)
	if i := strings.Index(base, chatCompletionsPath); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, "/")
	if strings.Contains(base, "/v1") {
		return base + "/models"
	}
	return base + "/v1/models"
}

func (c *Client) baseURL(settings domain.RemoteSettings) string {
	if settings.APIURL != "" {
		return settings.APIURL
	}
	return c.opts.BaseURL
}

func (c *Client) apiKey(settings domain.RemoteSettings) string {
	if settings.APIKey != "" {
		return settings.APIKey
	}
	return c.opts.APIKey
}

func (c *Client) buildRequest(messages []domain.ChatMessage, model string, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		Stream:      stream,
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return req
}

func (c *Client) newHTTPRequest(ctx context.Context, method, url, apiKey string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

// Complete sends a non-streaming chat completion request
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage, settings domain.RemoteSettings, model string) (*domain.CompletionResult, error) {
	bodyBytes, err := json.Marshal(c.buildRequest(messages, model, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := c.newHTTPRequest(reqCtx, http.MethodPost, ChatCompletionsURL(c.baseURL(settings)), c.apiKey(settings), bodyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, statusError(resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, reqCtx, err)
	}

	var apiResp chatCompletionAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, domain.NewCompletionError(domain.KindMalformedResponse, resp.StatusCode, "response is not JSON", err)
	}
	if hasErrorPayload(apiResp.Error) {
		return nil, errorFromPayload(apiResp.Error, 0)
	}
	if len(apiResp.Choices) == 0 {
		return nil, domain.NewCompletionError(domain.KindEmptyChoices, resp.StatusCode, "no choices in response", nil)
	}
	choice := apiResp.Choices[0]
	if choice.Message == nil || choice.Message.Content == nil {
		return nil, domain.NewCompletionError(domain.KindMalformedResponse, resp.StatusCode, "choice has no message content", nil)
	}

	result := &domain.CompletionResult{
		Text:         *choice.Message.Content,
		Model:        apiResp.Model,
		Backend:      domain.BackendRemote,
		FinishReason: choice.FinishReason,
	}
	if apiResp.Usage != nil {
		result.Timings = &domain.CompletionTimings{
			PromptTokens:    apiResp.Usage.PromptTokens,
			PredictedTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:     apiResp.Usage.TotalTokens,
		}
	}
	logrus.Infof("Chat completion successful, model: %s", result.Model)
	return result, nil
}

// CompleteStreaming starts a streaming chat completion and returns its handle
func (c *Client) CompleteStreaming(ctx context.Context, messages []domain.ChatMessage, settings domain.RemoteSettings, model string, callbacks domain.StreamCallbacks) (*domain.StreamHandle, error) {
	bodyBytes, err := json.Marshal(c.buildRequest(messages, model, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal streaming request: %w", err)
	}

	handle, streamCtx := domain.NewStreamHandle(ctx, domain.BackendRemote, model)
	reqCtx, cancel := context.WithTimeout(streamCtx, c.opts.Timeout)

	req, err := c.newHTTPRequest(reqCtx, http.MethodPost, ChatCompletionsURL(c.baseURL(settings)), c.apiKey(settings), bodyBytes)
	if err != nil {
		cancel()
		handle.Finish()
		return nil, fmt.Errorf("failed to create streaming request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	emitter := domain.NewStreamEmitter(handle, callbacks)
	go func() {
		defer handle.Finish()
		defer cancel()
		c.processStream(ctx, reqCtx, req, handle, emitter, model)
	}()

	logrus.Infof("Started streaming chat completion with model: %s", model)
	return handle, nil
}

// processStream drives the transport and decoder for one stream and
// delivers exactly one terminal callback unless the caller cancelled
func (c *Client) processStream(parent, reqCtx context.Context, req *http.Request, handle *domain.StreamHandle, emitter *domain.StreamEmitter, model string) {
	var (
		text         strings.Builder
		finishReason string
		terminated   bool
		streamErr    error
	)
	responseModel := model

	handleChunk := func(chunk *streamChunk, done bool) bool {
		if done {
			terminated = true
			return false
		}
		if chunk.Err != nil {
			streamErr = chunk.Err
			terminated = true
			return false
		}
		if chunk.Model != "" {
			responseModel = chunk.Model
		}
		if chunk.Content != "" {
			text.WriteString(chunk.Content)
			if !emitter.Token(chunk.Content) {
				return false
			}
		}
		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
			terminated = true
			return false
		}
		return true
	}

	decoder := newSSEDecoder(c.opts.MaxMalformedLines, c.metrics.MalformedLine)
	resp, err := c.transport.Stream(req, func(fragment string) bool {
		cont, decodeErr := decoder.Feed(fragment, handleChunk)
		if decodeErr != nil {
			streamErr = decodeErr
			terminated = true
		}
		return cont
	})

	if handle.Cancelled() {
		logrus.Debugf("Stream %s cancelled by caller", handle.ID)
		return
	}
	if streamErr != nil {
		emitter.Fail(streamErr)
		return
	}
	if err != nil && !terminated {
		emitter.Fail(classifyTransportError(parent, reqCtx, err))
		return
	}
	if resp != nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		emitter.Fail(statusError(resp.StatusCode, resp.Body))
		return
	}
	if !terminated {
		// the last line may have arrived without a trailing newline
		if _, flushErr := decoder.Flush(handleChunk); flushErr != nil {
			emitter.Fail(flushErr)
			return
		}
		if streamErr != nil {
			emitter.Fail(streamErr)
			return
		}
		if handle.Cancelled() {
			return
		}
	}

	// [DONE], a finish_reason, and the end of the body all complete the stream
	emitter.Complete(domain.CompletionResult{
		Text:         text.String(),
		Model:        responseModel,
		Backend:      domain.BackendRemote,
		FinishReason: finishReason,
	})
}

// ListModels queries the models endpoint, retrying transient failures
func (c *Client) ListModels(ctx context.Context, settings domain.RemoteSettings) ([]domain.ModelDescriptor, error) {
	url := ModelsURL(c.baseURL(settings))
	apiKey := c.apiKey(settings)

	resp, err := c.retryWithBackoff(ctx, func(reqCtx context.Context) (*http.Response, error) {
		req, err := c.newHTTPRequest(reqCtx, http.MethodGet, url, apiKey, nil)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()

	var modelsResp openai.ModelsList
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, domain.NewCompletionError(domain.KindMalformedResponse, resp.StatusCode, "failed to parse models response", err)
	}

	models := make([]domain.ModelDescriptor, 0, len(modelsResp.Models))
	for _, m := range modelsResp.Models {
		if m.ID == "" {
			continue
		}
		models = append(models, domain.ModelDescriptor{
			ID:          m.ID,
			DisplayName: m.ID,
			OwnedBy:     m.OwnedBy,
		})
	}

	logrus.Infof("Listed %d remote models from %s", len(models), url)
	return models, nil
}

// retryWithBackoff executes an operation with exponential backoff retry logic
func (c *Client) retryWithBackoff(ctx context.Context, operation func(reqCtx context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	delay := initialDelay
	attempts := c.opts.ListRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		resp, err := operation(reqCtx)

		if err != nil {
			cancel()
			lastErr = classifyTransportError(ctx, reqCtx, err)
			if !isTransientError(lastErr) {
				return nil, lastErr
			}
			logrus.Warnf("Model listing attempt %d/%d failed with error: %v, retrying in %v", attempt, attempts, err, delay)
		} else {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				// the caller reads the body; release the timer with it
				resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
				return resp, nil
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			resp.Body.Close()
			cancel()
			lastErr = statusError(resp.StatusCode, string(body))
			if !isTransientError(lastErr) {
				return nil, lastErr
			}
			logrus.Warnf("Model listing attempt %d/%d failed with status %d, retrying in %v", attempt, attempts, resp.StatusCode, delay)
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, domain.NewCompletionError(domain.KindCancelled, 0, "", ctx.Err())
			case <-time.After(delay):
			}
			delay = delay * backoffMultiplier
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
	return nil, lastErr
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// isTransientError reports whether a listing failure is worth retrying
func isTransientError(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindServerError, domain.KindNetwork, domain.KindTimeout:
		return true
	}
	return false
}

func kindForStatus(statusCode int) domain.ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized:
		return domain.KindUnauthorized
	case statusCode == http.StatusTooManyRequests:
		return domain.KindRateLimited
	case statusCode >= 500:
		return domain.KindServerError
	case statusCode >= 400:
		return domain.KindInvalidRequest
	}
	return domain.KindMalformedResponse
}

// statusError maps a non-2xx response to the error taxonomy and keeps the
// provider's message as detail
func statusError(statusCode int, body string) error {
	detail := strings.TrimSpace(body)
	var errResp openai.ErrorResponse
	if err := json.Unmarshal([]byte(body), &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
		detail = errResp.Error.Message
	}
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return domain.NewCompletionError(kindForStatus(statusCode), statusCode, detail, nil)
}

// classifyTransportError tells a caller's cancel, a deadline, and a network
// failure apart
func classifyTransportError(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return domain.NewCompletionError(domain.KindCancelled, 0, "", err)
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewCompletionError(domain.KindTimeout, 0, "request exceeded deadline", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewCompletionError(domain.KindTimeout, 0, "", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewCompletionError(domain.KindCancelled, 0, "", err)
	}
	return domain.NewCompletionError(domain.KindNetwork, 0, "", err)
}

// chatCompletionAPIResponse represents the response from non-streaming chat
// completions. Pointer fields tell an absent message from an empty one.
type chatCompletionAPIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message *struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openai.Usage   `json:"usage,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}
