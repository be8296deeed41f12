package console

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Sink receives console traffic for one consumer. The websocket handler is
// the production implementation; tests plug in fakes.
type Sink interface {
	// SendHistory delivers a replay batch of past lines.
	SendHistory(lines []Line) error
	// SendLine delivers one live line.
	SendLine(line Line) error
	// SendHeartbeat signals liveness during quiet periods.
	SendHeartbeat() error
}

// ConsumerOptions bound a consumer's queue and cadence.
type ConsumerOptions struct {
	QueueSize         int
	ReplayLines       int
	HeartbeatInterval time.Duration
}

func (o *ConsumerOptions) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.ReplayLines <= 0 {
		o.ReplayLines = 100
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 5 * time.Second
	}
}

// Consumer moves console lines from a server's buffer to a sink through a
// bounded queue. Appends into a full queue are dropped rather than blocking
// the producing reader goroutine. When the server restarts and appears in
// the registry with a fresh buffer, the consumer re-subscribes on its own
// and replays recent history, so a websocket opened before a restart keeps
// working after it.
type Consumer struct {
	registry *Registry
	serverID int64
	sink     Sink
	opts     ConsumerOptions

	dropped atomic.Int64
}

func NewConsumer(registry *Registry, serverID int64, sink Sink, opts ConsumerOptions) *Consumer {
	opts.defaults()
	return &Consumer{registry: registry, serverID: serverID, sink: sink, opts: opts}
}

// Dropped returns the number of lines discarded because the queue was full.
func (c *Consumer) Dropped() int64 {
	return c.dropped.Load()
}

// Run pumps lines until the context is cancelled or the sink errors. A sink
// error means the consumer is gone; the error is returned to the caller for
// connection teardown.
func (c *Consumer) Run(ctx context.Context) error {
	queue := make(chan Line, c.opts.QueueSize)

	var curBuf *Buffer
	var subID int
	defer func() {
		if curBuf != nil {
			curBuf.Unsubscribe(subID)
		}
	}()

	enqueue := func(line Line) {
		select {
		case queue <- line:
		default:
			if c.dropped.Add(1)%100 == 1 {
				slog.Warn("[Bridge] consumer queue full, dropping lines", "server_id", c.serverID, "dropped", c.dropped.Load())
			}
		}
	}

	attach := func() error {
		p := c.registry.Get(c.serverID)
		if p == nil || p.Buffer() == curBuf {
			return nil
		}
		if curBuf != nil {
			curBuf.Unsubscribe(subID)
		}
		curBuf = p.Buffer()
		subID = curBuf.Subscribe(enqueue)
		return c.sink.SendHistory(curBuf.Tail(c.opts.ReplayLines))
	}

	if err := attach(); err != nil {
		return err
	}

	heartbeat := time.NewTimer(c.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-queue:
			if err := c.sink.SendLine(line); err != nil {
				return err
			}
			if !heartbeat.Stop() {
				select {
				case <-heartbeat.C:
				default:
				}
			}
			heartbeat.Reset(c.opts.HeartbeatInterval)
		case <-heartbeat.C:
			if err := c.sink.SendHeartbeat(); err != nil {
				return err
			}
			if err := attach(); err != nil {
				return err
			}
			heartbeat.Reset(c.opts.HeartbeatInterval)
		}
	}
}
