package llamacpp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"lingua-stream/configs"
	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// Compile-time check to ensure Engine implements InferenceEngine interface
var _ output.InferenceEngine = (*Engine)(nil)

const (
	// DefaultServerBinary is looked up on PATH when no binary is configured
	DefaultServerBinary = "llama-server"
	// DefaultLoadTimeout bounds model loading and the health wait
	DefaultLoadTimeout = 120 * time.Second

	healthPollInterval = 100 * time.Millisecond
	stderrTailSize     = 4096
)

// ErrContextBusy is returned when a second context is requested while one is live
var ErrContextBusy = errors.New("an inference context is already loaded")

// Engine struct - Output adapter running llama.cpp's server as a child
// process, one process per loaded context
type Engine struct {
	binary      string
	loadTimeout time.Duration
	httpClient  *http.Client

	mu   sync.Mutex
	live *Context
}

// NewEngine func
func NewEngine(cfg configs.Local) *Engine {
	e := &Engine{
		binary:      cfg.ServerBinary,
		loadTimeout: time.Duration(cfg.LoadTimeout) * time.Second,
		httpClient:  &http.Client{},
	}
	if e.binary == "" {
		e.binary = DefaultServerBinary
	}
	if e.loadTimeout <= 0 {
		e.loadTimeout = DefaultLoadTimeout
	}
	return e
}

// Load starts a server for the model and waits until it reports healthy
func (e *Engine) Load(ctx context.Context, modelPath string, params domain.ContextParams) (output.InferenceContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live != nil {
		return nil, ErrContextBusy
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file unavailable: %w", err)
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve a port: %w", err)
	}

	stderr := newTailBuffer(stderrTailSize)
	cmd := exec.Command(e.binary, serverArgs(modelPath, port, params)...)
	stdout := logrus.StandardLogger().WriterLevel(logrus.DebugLevel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		stdout.Close()
		return nil, fmt.Errorf("failed to start %s: %w", e.binary, err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		stdout.Close()
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	loadCtx, cancel := context.WithTimeout(ctx, e.loadTimeout)
	defer cancel()
	logrus.Infof("Loading %s with %s", modelPath, params)
	if err := waitHealthy(loadCtx, e.httpClient, baseURL, exited); err != nil {
		_ = cmd.Process.Kill()
		if tail := stderr.String(); tail != "" {
			return nil, fmt.Errorf("%w: %s", err, tail)
		}
		return nil, err
	}

	var lc *Context
	lc = newContext(baseURL, e.httpClient, func() error {
		e.mu.Lock()
		if e.live == lc {
			e.live = nil
		}
		e.mu.Unlock()
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		<-exited
		return nil
	})
	e.live = lc
	logrus.Infof("Inference server ready at %s (pid %d)", baseURL, cmd.Process.Pid)
	return lc, nil
}

func serverArgs(modelPath string, port int, params domain.ContextParams) []string {
	args := []string{
		"--model", modelPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--ctx-size", strconv.Itoa(params.ContextSize),
		"--batch-size", strconv.Itoa(params.BatchSize),
		"--n-gpu-layers", strconv.Itoa(params.GPULayers),
	}
	if params.UseMLock {
		args = append(args, "--mlock")
	}
	if params.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(params.Threads))
	}
	return args
}

// waitHealthy polls /health until the server answers 200, exits, or ctx ends
func waitHealthy(ctx context.Context, client *http.Client, baseURL string, exited <-chan error) error {
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case err := <-exited:
			return fmt.Errorf("inference server exited during load: %v", err)
		case <-ctx.Done():
			return fmt.Errorf("inference server did not become healthy: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// tailBuffer keeps the last bytes written to it
type tailBuffer struct {
	mu   sync.Mutex
	size int
	data []byte
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if len(b.data) > b.size {
		b.data = b.data[len(b.data)-b.size:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
