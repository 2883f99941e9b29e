package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGetRequest(t *testing.T, ctx context.Context, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestPollingTransportDeliversSuffixes(t *testing.T) {
	parts := []string{"alpha ", "beta ", "gamma ", "delta"}
	server := sseServer(t, parts, 5*time.Millisecond)
	defer server.Close()

	var states []ReadyState
	var mu sync.Mutex
	transport := NewPollingTransport(&http.Client{}, 0)
	transport.OnStateChange(func(s ReadyState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	var deltas []string
	resp, err := transport.Stream(newGetRequest(t, context.Background(), server.URL), func(text string) bool {
		deltas = append(deltas, text)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, strings.Join(parts, ""), strings.Join(deltas, ""))
	assert.GreaterOrEqual(t, len(deltas), 2, "expected several deltas before completion")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, StateOpened, states[0])
	assert.Equal(t, StateDone, states[len(states)-1])
	assert.Contains(t, states, StateLoading)
}

func TestPollingTransportWithTicker(t *testing.T) {
	server := sseServer(t, []string{"one", "two"}, 2*time.Millisecond)
	defer server.Close()

	var got strings.Builder
	_, err := NewPollingTransport(&http.Client{}, time.Millisecond).Stream(newGetRequest(t, context.Background(), server.URL), func(text string) bool {
		got.WriteString(text)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, "onetwo", got.String())
}

func TestTransportsReturnErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer server.Close()

	for _, transport := range []Transport{
		NewPollingTransport(&http.Client{}, 0),
		NewIncrementalTransport(&http.Client{}),
	} {
		called := false
		resp, err := transport.Stream(newGetRequest(t, context.Background(), server.URL), func(string) bool {
			called = true
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "slow down", resp.Body)
		assert.False(t, called)
	}
}

func TestTransportsStopWhenConsumerDeclines(t *testing.T) {
	server := sseServer(t, []string{"a", "b", "c", "d"}, 20*time.Millisecond)
	defer server.Close()

	for _, transport := range []Transport{
		NewPollingTransport(&http.Client{}, 0),
		NewIncrementalTransport(&http.Client{}),
	} {
		calls := 0
		start := time.Now()
		_, err := transport.Stream(newGetRequest(t, context.Background(), server.URL), func(string) bool {
			calls++
			return false
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), 60*time.Millisecond)
	}
}

func TestTransportsObserveContext(t *testing.T) {
	server := sseServer(t, []string{"a", "b", "c", "d", "e"}, 50*time.Millisecond)
	defer server.Close()

	for _, transport := range []Transport{
		NewPollingTransport(&http.Client{}, 0),
		NewIncrementalTransport(&http.Client{}),
	} {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(30*time.Millisecond, cancel)
		start := time.Now()
		_, err := transport.Stream(newGetRequest(t, ctx, server.URL), func(string) bool { return true })
		assert.Error(t, err)
		assert.Less(t, time.Since(start), 200*time.Millisecond)
		cancel()
	}
}

func TestNewTransportByName(t *testing.T) {
	_, ok := NewTransport(TransportIncremental, http.DefaultClient, 0).(*IncrementalTransport)
	assert.True(t, ok)
	_, ok = NewTransport(TransportPolling, http.DefaultClient, 0).(*PollingTransport)
	assert.True(t, ok)
}
