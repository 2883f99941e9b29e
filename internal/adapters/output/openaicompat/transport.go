package openaicompat

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Transport names accepted in configuration
const (
	TransportPolling     = "polling"
	TransportIncremental = "incremental"
)

const (
	readBufferSize   = 4096
	maxErrorBodySize = 64 * 1024
)

// ReadyState mirrors the states of a browser-style request object
type ReadyState int

const (
	// StateUnsent const
	StateUnsent ReadyState = iota
	// StateOpened const
	StateOpened
	// StateHeadersReceived const
	StateHeadersReceived
	// StateLoading const
	StateLoading
	// StateDone const
	StateDone
)

// StreamResponse struct - status of a streaming call. Body is only set for
// non-2xx responses.
type StreamResponse struct {
	StatusCode int
	Body       string
}

// Transport interface - delivers a streaming response body as text.
// For a 2xx response Stream calls onText with each newly arrived piece of
// body text, in order, until the body ends or onText returns false. Any
// other status is returned with its body and onText is never called.
type Transport interface {
	Stream(req *http.Request, onText func(text string) bool) (*StreamResponse, error)
}

// NewTransport func - Picks a transport by its configured name
func NewTransport(name string, client *http.Client, pollInterval time.Duration) Transport {
	if name == TransportIncremental {
		return NewIncrementalTransport(client)
	}
	return NewPollingTransport(client, pollInterval)
}

func send(client *http.Client, req *http.Request) (*http.Response, *StreamResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		resp.Body.Close()
		return nil, &StreamResponse{StatusCode: resp.StatusCode, Body: string(body)}, nil
	}
	return resp, &StreamResponse{StatusCode: resp.StatusCode}, nil
}

// PollingTransport struct - emulates a client that cannot read a body
// incrementally. The body accumulates into a growing response text, and on
// every ready-state notification the consumer takes the suffix it has not
// seen yet.
type PollingTransport struct {
	client        *http.Client
	pollInterval  time.Duration
	onStateChange func(ReadyState)
}

// NewPollingTransport func - pollInterval 0 relies on state notifications only
func NewPollingTransport(client *http.Client, pollInterval time.Duration) *PollingTransport {
	return &PollingTransport{client: client, pollInterval: pollInterval}
}

// OnStateChange registers a listener for ready-state transitions
func (t *PollingTransport) OnStateChange(fn func(ReadyState)) {
	t.onStateChange = fn
}

func (t *PollingTransport) transition(state ReadyState) {
	if t.onStateChange != nil {
		t.onStateChange(state)
	}
}

// Stream func
func (t *PollingTransport) Stream(req *http.Request, onText func(text string) bool) (*StreamResponse, error) {
	t.transition(StateOpened)
	resp, status, err := send(t.client, req)
	if err != nil || resp == nil {
		t.transition(StateDone)
		return status, err
	}
	defer resp.Body.Close()
	t.transition(StateHeadersReceived)

	buf := newResponseBuffer()
	go buf.fill(resp.Body)

	var tick <-chan time.Time
	if t.pollInterval > 0 {
		ticker := time.NewTicker(t.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	previousLength := 0
	lastState := StateHeadersReceived
	for {
		select {
		case <-buf.notify:
		case <-tick:
		case <-req.Context().Done():
			t.transition(StateDone)
			return status, req.Context().Err()
		}

		text, state, readErr := buf.snapshot()
		if state != lastState {
			t.transition(state)
			lastState = state
		}
		if len(text) > previousLength {
			delta := text[previousLength:]
			previousLength = len(text)
			if !onText(delta) {
				return status, nil
			}
		}
		if state == StateDone {
			return status, readErr
		}
	}
}

// responseBuffer is the accumulating response text of one request
type responseBuffer struct {
	mu     sync.Mutex
	text   strings.Builder
	state  ReadyState
	err    error
	notify chan struct{}
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{state: StateHeadersReceived, notify: make(chan struct{}, 1)}
}

func (b *responseBuffer) fill(body io.Reader) {
	chunk := make([]byte, readBufferSize)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			b.mu.Lock()
			b.text.Write(chunk[:n])
			b.state = StateLoading
			b.mu.Unlock()
			b.signal()
		}
		if err != nil {
			if err == io.EOF {
				err = nil
			}
			b.mu.Lock()
			b.state = StateDone
			b.err = err
			b.mu.Unlock()
			b.signal()
			return
		}
	}
}

// signal coalesces notifications the way repeated progress events do
func (b *responseBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *responseBuffer) snapshot() (string, ReadyState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String(), b.state, b.err
}

// IncrementalTransport struct - reads body chunks as they arrive
type IncrementalTransport struct {
	client *http.Client
}

// NewIncrementalTransport func
func NewIncrementalTransport(client *http.Client) *IncrementalTransport {
	return &IncrementalTransport{client: client}
}

// Stream func
func (t *IncrementalTransport) Stream(req *http.Request, onText func(text string) bool) (*StreamResponse, error) {
	resp, status, err := send(t.client, req)
	if err != nil || resp == nil {
		return status, err
	}
	defer resp.Body.Close()

	chunk := make([]byte, readBufferSize)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 && !onText(string(chunk[:n])) {
			return status, nil
		}
		if err == io.EOF {
			return status, nil
		}
		if err != nil {
			return status, err
		}
	}
}
