package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// subscriberBuffer is how many events a slow client may lag behind before
// events are dropped for it.
const subscriberBuffer = 64

// StatusEvent is one status message pushed to SSE and WebSocket clients.
type StatusEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Axis  string `json:"axis,omitempty"`
	Msg   string `json:"msg"`
}

// StatusBroadcaster fans status events out to every connected client.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel of JSON-encoded events and the function that
// unsubscribes it. The channel is closed by unsubscribe.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends a message not tied to an axis.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.publish(StatusEvent{Level: level, Msg: msg})
}

// BroadcastAxis sends a message about one axis.
func (b *StatusBroadcaster) BroadcastAxis(level, axis, msg string) {
	b.publish(StatusEvent{Level: level, Axis: axis, Msg: msg})
}

// publish never blocks: a client whose buffer is full misses the event.
func (b *StatusBroadcaster) publish(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Writer is an io.Writer that broadcasts every non-blank write as an "info"
// event, so the debug log can be mirrored to the browser.
type Writer struct {
	b *StatusBroadcaster
}

func NewWriter(b *StatusBroadcaster) *Writer {
	return &Writer{b: b}
}

func (w *Writer) Write(p []byte) (int, error) {
	if msg := strings.TrimSpace(string(p)); msg != "" {
		w.b.Broadcast("info", msg)
	}
	return len(p), nil
}
