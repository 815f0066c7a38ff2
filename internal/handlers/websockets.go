package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
	commandQueue     = 8
)

// Message types on the dashboard stream.
const (
	msgState  = "state"
	msgResult = "result"
	msgError  = "error"

	cmdAck  = "ack"
	cmdFill = "fill"
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Alarm string      `json:"alarm,omitempty"` // latched fill alarm, for the dashboard banner
	Error string      `json:"error,omitempty"`
}

// wsCommand is an operator action sent by the dashboard over the stream,
// e.g. {"type":"ack","alarm":"timeout"} or {"type":"fill"}.
type wsCommand struct {
	Type  string `json:"type"`
	Alarm string `json:"alarm,omitempty"`
}

// The dashboard is served from the same LAN host, often under a different port.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stateStream owns the write side of one connection. Only its loop writes
// to conn; the reader hands command results over through replies.
type stateStream struct {
	h        *Handler
	conn     *websocket.Conn
	replies  chan wsEnvelope
	lastTick uint64
	sent     bool
}

func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s := &stateStream{h: h, conn: conn, replies: make(chan wsEnvelope, commandQueue)}
	ctx := c.Request.Context()

	done := make(chan struct{})
	go s.readCommands(ctx, done)

	if err := s.pushState(ctx); err != nil {
		h.wsInfo("ws_write_failed_initial", err)
		return
	}
	s.loop(ctx, interval, done)
}

func (s *stateStream) loop(ctx context.Context, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case reply := <-s.replies:
			if err := s.write(reply); err != nil {
				s.h.wsInfo("ws_reply_failed", err)
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.h.wsInfo("ws_ping_failed", err)
				return
			}
		case <-ticker.C:
			if err := s.pushState(ctx); err != nil {
				s.h.wsInfo("ws_write_failed", err)
				return
			}
		}
	}
}

// pushState sends the published state unless the loop has not produced a
// new tick since the last push.
func (s *stateStream) pushState(ctx context.Context) error {
	st, err := s.h.services.Monitoring.GetState(ctx)
	if err != nil {
		if s.h.log != nil {
			s.h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	if s.sent && st.Tick == s.lastTick {
		return nil
	}
	if err := s.write(wsEnvelope{Type: msgState, Data: st, Alarm: string(st.Fill.Alarm)}); err != nil {
		return err
	}
	s.sent = true
	s.lastTick = st.Tick
	return nil
}

func (s *stateStream) write(env wsEnvelope) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

// readCommands runs operator commands until the peer goes away. Results are
// queued for the writer; when the queue is full the result is dropped and
// the next state push shows the outcome anyway.
func (s *stateStream) readCommands(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.h.wsInfo("ws_read_closed", err)
			return
		}
		reply := s.h.runCommand(ctx, raw)
		select {
		case s.replies <- reply:
		default:
		}
	}
}

func (h *Handler) runCommand(ctx context.Context, raw []byte) wsEnvelope {
	var cmd wsCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return wsEnvelope{Type: msgError, Error: "invalid command: " + err.Error()}
	}
	if h.services.Operator == nil {
		return wsEnvelope{Type: msgError, Error: "operator commands unavailable"}
	}

	switch strings.ToLower(strings.TrimSpace(cmd.Type)) {
	case cmdAck:
		kind, ok := models.ParseAlarmKind(strings.ToLower(strings.TrimSpace(cmd.Alarm)))
		if !ok {
			return wsEnvelope{Type: msgError, Error: "unknown alarm " + strconv.Quote(cmd.Alarm)}
		}
		if err := h.services.Operator.AcknowledgeAlarm(ctx, kind); err != nil {
			if !errors.Is(err, service.ErrNoActiveAlarm) && !errors.Is(err, service.ErrOverflowActive) && h.log != nil {
				h.log.Errorw("ws_alarm_ack_failed", "err", err, "alarm", kind)
			}
			return wsEnvelope{Type: msgError, Alarm: string(kind), Error: err.Error()}
		}
		return wsEnvelope{Type: msgResult, Data: statusAcknowledged, Alarm: string(kind)}
	case cmdFill:
		if err := h.services.Operator.RequestFill(ctx); err != nil {
			if h.log != nil {
				h.log.Errorw("ws_fill_request_failed", "err", err)
			}
			return wsEnvelope{Type: msgError, Error: errRequestFill}
		}
		return wsEnvelope{Type: msgResult, Data: statusFillQueued}
	default:
		return wsEnvelope{Type: msgError, Error: "unknown command " + strconv.Quote(cmd.Type)}
	}
}

func (h *Handler) wsInfo(key string, err error) {
	if h.log != nil {
		h.log.Infow(key, "err", err)
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}
