package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Sahaj33-op/msm/internal/console"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The manager binds locally; origin enforcement belongs to whatever
	// reverse proxy fronts it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsOutbound struct {
	Type    string         `json:"type"`
	Lines   []console.Line `json:"lines,omitempty"`
	Line    *console.Line  `json:"line,omitempty"`
	OK      *bool          `json:"ok,omitempty"`
	Message string         `json:"message,omitempty"`
}

type wsInbound struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
}

// wsSink adapts one websocket connection to the console delivery bridge.
// All writes go through a mutex because the bridge goroutine and the read
// loop both send frames.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) send(msg wsOutbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *wsSink) SendHistory(lines []console.Line) error {
	if lines == nil {
		lines = []console.Line{}
	}
	return s.send(wsOutbound{Type: "history", Lines: lines})
}

func (s *wsSink) SendLine(line console.Line) error {
	return s.send(wsOutbound{Type: "output", Line: &line})
}

func (s *wsSink) SendHeartbeat() error {
	return s.send(wsOutbound{Type: "heartbeat"})
}

// ConsoleSocket upgrades to a websocket and streams console lines for one
// server. Inbound frames carry commands and pings; everything else is
// rejected per frame rather than closing the connection.
func (h *Handler) ConsoleSocket(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.servers.Get(id); err != nil {
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("[API] websocket upgrade failed", "server_id", id, "error", err)
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	slog.Info("[API] console client connected", "server_id", id, "client_id", clientID)
	defer slog.Info("[API] console client disconnected", "server_id", id, "client_id", clientID)

	sink := &wsSink{conn: conn}
	consumer := console.NewConsumer(h.engine.Registry(), id, sink, console.ConsumerOptions{
		QueueSize:         h.cfg.Console.QueueSize,
		ReplayLines:       h.cfg.Console.ReplayLines,
		HeartbeatInterval: h.cfg.Console.HeartbeatInterval,
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		if err := consumer.Run(ctx); err != nil {
			slog.Debug("[API] console bridge ended", "server_id", id, "error", err)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			sink.send(wsOutbound{Type: "error", Message: "malformed frame"})
			continue
		}

		switch msg.Type {
		case "ping":
			sink.send(wsOutbound{Type: "heartbeat"})
		case "command":
			ok := h.engine.SendCommand(id, msg.Command) == nil
			sink.send(wsOutbound{Type: "command_ack", OK: &ok})
		default:
			sink.send(wsOutbound{Type: "error", Message: "unknown frame type " + msg.Type})
		}
	}

	cancel()
	<-bridgeDone
}
