package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// Server-sent event names
const (
	eventToken     = "token"
	eventProgress  = "progress"
	eventComplete  = "complete"
	eventError     = "error"
	eventCancelled = "cancelled"
)

type sseEvent struct {
	name string
	data interface{}
}

func (e sseEvent) terminal() bool {
	return e.name != eventToken && e.name != eventProgress
}

// eventQueue hands events from backend goroutines to the response writer
type eventQueue struct {
	events chan sseEvent
	closed chan struct{}
	once   sync.Once
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make(chan sseEvent, 64),
		closed: make(chan struct{}),
	}
}

// push blocks until the writer takes the event or has stopped reading
func (q *eventQueue) push(name string, data interface{}) {
	select {
	case q.events <- sseEvent{name: name, data: data}:
	case <-q.closed:
	}
}

func (q *eventQueue) close() {
	q.once.Do(func() { close(q.closed) })
}

// drain writes whatever is already queued and reports whether a terminal
// event was among it
func (q *eventQueue) drain(w *bufio.Writer) (bool, error) {
	for {
		select {
		case ev := <-q.events:
			if err := writeEvent(w, ev); err != nil {
				return false, err
			}
			if ev.terminal() {
				return true, nil
			}
		default:
			return false, nil
		}
	}
}

func writeEvent(w *bufio.Writer, ev sseEvent) error {
	payload, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, payload); err != nil {
		return err
	}
	return w.Flush()
}

func setStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}
