// Package console owns a running server's console: the bounded line history,
// the supervised child process feeding it, the registry of live processes,
// and the bridge that fans lines out to websocket consumers.
package console

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Stream identifies where a console line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	// StreamSystem marks lines synthesized by the manager itself, such as
	// exit notices.
	StreamSystem Stream = "system"
)

// Line is one timestamped console line.
type Line struct {
	Timestamp time.Time `json:"timestamp"`
	Stream    Stream    `json:"stream"`
	Text      string    `json:"text"`
}

// Buffer is a thread-safe ring of the most recent console lines. Appends
// never block and never fail; once the capacity is reached the oldest line
// is dropped. Subscribers receive every appended line synchronously under
// the buffer lock, so callbacks must be fast and must not call back into
// the buffer.
type Buffer struct {
	mu          sync.Mutex
	lines       []Line
	start       int
	count       int
	capacity    int
	subscribers map[int]func(Line)
	nextSubID   int
}

// NewBuffer creates a buffer holding at most capacity lines.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Buffer{
		lines:       make([]Line, capacity),
		capacity:    capacity,
		subscribers: make(map[int]func(Line)),
	}
}

// Append adds a line to the ring and notifies subscribers. A panicking
// subscriber is logged and skipped; it never poisons the buffer or the
// remaining subscribers.
func (b *Buffer) Append(stream Stream, text string) {
	text = strings.TrimRight(text, " \t\r")
	line := Line{Timestamp: time.Now().UTC(), Stream: stream, Text: text}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.start + b.count) % b.capacity
	b.lines[idx] = line
	if b.count < b.capacity {
		b.count++
	} else {
		b.start = (b.start + 1) % b.capacity
	}

	for id, fn := range b.subscribers {
		b.notify(id, fn, line)
	}
}

func (b *Buffer) notify(id int, fn func(Line), line Line) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("console subscriber panicked", "subscriber", id, "panic", r)
		}
	}()
	fn(line)
}

// Tail returns up to n of the most recent lines, oldest first. n <= 0
// returns the entire history.
func (b *Buffer) Tail(n int) []Line {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]Line, n)
	first := b.count - n
	for i := 0; i < n; i++ {
		out[i] = b.lines[(b.start+first+i)%b.capacity]
	}
	return out
}

// Len returns the number of lines currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Clear drops all held lines. Subscriptions survive.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start = 0
	b.count = 0
}

// Subscribe registers a callback for future lines and returns a token for
// Unsubscribe.
func (b *Buffer) Subscribe(fn func(Line)) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = fn
	return id
}

// Unsubscribe removes a previously registered callback. Unknown tokens are
// ignored.
func (b *Buffer) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}
