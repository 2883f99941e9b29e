package llamacpp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/output"

	"github.com/sirupsen/logrus"
)

var _ output.InferenceContext = (*Context)(nil)

// ErrReleased is returned by a context whose server has been stopped
var ErrReleased = errors.New("inference context released")

const maxEventSize = 1024 * 1024

// Context struct - one loaded model served by a running llama-server
type Context struct {
	baseURL    string
	httpClient *http.Client
	release    func() error

	mu       sync.Mutex
	stop     context.CancelFunc
	released bool
}

func newContext(baseURL string, httpClient *http.Client, release func() error) *Context {
	return &Context{baseURL: baseURL, httpClient: httpClient, release: release}
}

// completionRequest is the body of llama-server's native /completion endpoint
type completionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
	CachePrompt bool     `json:"cache_prompt"`
}

type completionEvent struct {
	Content string   `json:"content"`
	Stop    bool     `json:"stop"`
	Timings *timings `json:"timings,omitempty"`
}

type timings struct {
	PromptN     int     `json:"prompt_n"`
	PromptMS    float64 `json:"prompt_ms"`
	PredictedN  int     `json:"predicted_n"`
	PredictedMS float64 `json:"predicted_ms"`
}

// Completion streams tokens of one prompt. It returns nil timings when
// generation was stopped before the server finished.
func (c *Context) Completion(ctx context.Context, request output.InferenceRequest, onToken func(token string) bool) (*domain.CompletionTimings, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil, ErrReleased
	}
	c.stop = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.stop = nil
		c.mu.Unlock()
	}()

	body, err := json.Marshal(completionRequest{
		Prompt:      request.Prompt,
		NPredict:    request.MaxTokens,
		Stop:        request.Stop,
		Stream:      true,
		CachePrompt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.stopOrError(reqCtx, fmt.Errorf("completion request failed: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var event completionEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &event); err != nil {
			logrus.Warnf("Error parsing completion event: %v, line: %s", err, line)
			continue
		}
		if event.Content != "" && !onToken(event.Content) {
			return nil, nil
		}
		if event.Stop {
			return event.Timings.toDomain(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, c.stopOrError(reqCtx, fmt.Errorf("completion stream failed: %w", err))
	}
	return nil, c.stopOrError(reqCtx, io.ErrUnexpectedEOF)
}

// stopOrError hides transport errors caused by StopCompletion
func (c *Context) stopOrError(reqCtx context.Context, err error) error {
	if reqCtx.Err() != nil {
		return nil
	}
	return err
}

// StopCompletion aborts the running completion request, if any
func (c *Context) StopCompletion() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		c.stop()
	}
	return nil
}

// Release stops generation and terminates the server process
func (c *Context) Release() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	if c.stop != nil {
		c.stop()
	}
	c.mu.Unlock()
	if c.release == nil {
		return nil
	}
	return c.release()
}

func (t *timings) toDomain() *domain.CompletionTimings {
	if t == nil {
		return nil
	}
	return &domain.CompletionTimings{
		PromptTokens:    t.PromptN,
		PredictedTokens: t.PredictedN,
		PromptTime:      time.Duration(t.PromptMS * float64(time.Millisecond)),
		PredictedTime:   time.Duration(t.PredictedMS * float64(time.Millisecond)),
		TotalTokens:     t.PromptN + t.PredictedN,
	}
}
