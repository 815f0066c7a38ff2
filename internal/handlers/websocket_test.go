package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestParseInterval(t *testing.T) {
	h := NewHandler(&service.Service{}, nil)

	cases := []struct {
		name string
		u    string
		want time.Duration
	}{
		{"default_when_missing", "/ws", 1 * time.Second},
		{"interval_string_valid", "/ws?interval=200ms", 200 * time.Millisecond},
		{"interval_ms_valid", "/ws?interval_ms=150", 150 * time.Millisecond},
		{"interval_too_large", "/ws?interval=20s", 1 * time.Second},
		{"interval_ms_too_large", "/ws?interval_ms=20000", 1 * time.Second},
		{"interval_invalid_string", "/ws?interval=bogus", 1 * time.Second},
		{"both_present_interval_wins", "/ws?interval=2s&interval_ms=150", 2 * time.Second},
		{"invalid_interval_falls_back_to_ms", "/ws?interval=bogus&interval_ms=250", 250 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, tc.u, nil)
			if got := h.parseInterval(c); got != tc.want {
				t.Fatalf("got %v, want %v for %s", got, tc.want, tc.u)
			}
		})
	}
}

// tickingMonitoring advances the tick every other call, so the stream sees
// both fresh and repeated states.
type tickingMonitoring struct {
	calls atomic.Uint64
}

func (m *tickingMonitoring) GetState(ctx context.Context) (models.ControllerState, error) {
	st := filledState()
	st.Tick = m.calls.Add(1) / 2
	return st, nil
}

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Alarm string          `json:"alarm"`
	Error string          `json:"error"`
}

func dialStream(t *testing.T, s *service.Service, query url.Values) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil)
	r.GET("/ws", h.wsConnect)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	u.RawQuery = query.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWebSocket_PushesOnlyNewTicks(t *testing.T) {
	conn := dialStream(t, &service.Service{Monitoring: &tickingMonitoring{}}, url.Values{"interval_ms": {"10"}})

	first := readEnvelope(t, conn)
	if first.Type != msgState || first.Alarm != string(models.AlarmTimeout) {
		t.Fatalf("bad envelope: %+v", first)
	}
	var st models.ControllerState
	if err := json.Unmarshal(first.Data, &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.Fill.Status != models.FillTimeoutAlarm {
		t.Fatalf("unexpected state: %+v", st)
	}

	prev := st.Tick
	for i := 0; i < 3; i++ {
		env := readEnvelope(t, conn)
		if err := json.Unmarshal(env.Data, &st); err != nil {
			t.Fatalf("unmarshal state: %v", err)
		}
		if st.Tick == prev {
			t.Fatalf("tick %d pushed twice", st.Tick)
		}
		prev = st.Tick
	}
}

func TestWebSocket_OperatorCommands(t *testing.T) {
	op := &mockOperator{}
	s := &service.Service{Monitoring: &mockMonitoring{state: filledState()}, Operator: op}
	// A long interval keeps state pushes out of the way after the first one.
	conn := dialStream(t, s, url.Values{"interval": {"10s"}})

	if env := readEnvelope(t, conn); env.Type != msgState {
		t.Fatalf("expected initial state, got %+v", env)
	}

	cases := []struct {
		cmd      string
		wantType string
	}{
		{`{"type":"ack","alarm":"Timeout"}`, msgResult},
		{`{"type":"fill"}`, msgResult},
		{`{"type":"ack","alarm":"fire"}`, msgError},
		{`{"type":"reboot"}`, msgError},
		{`not json`, msgError},
	}
	for _, tc := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tc.cmd)); err != nil {
			t.Fatalf("write %s: %v", tc.cmd, err)
		}
		if env := readEnvelope(t, conn); env.Type != tc.wantType {
			t.Fatalf("%s: got %+v, want type %s", tc.cmd, env, tc.wantType)
		}
	}
	acks, fills, last := op.counts()
	if acks != 1 || last != models.AlarmTimeout || fills != 1 {
		t.Fatalf("operator calls: ack=%d (%q) fill=%d", acks, last, fills)
	}
}

func TestWebSocket_AckRejectedIsReported(t *testing.T) {
	op := &mockOperator{ackErr: service.ErrOverflowActive}
	s := &service.Service{Monitoring: &mockMonitoring{state: filledState()}, Operator: op}
	conn := dialStream(t, s, url.Values{"interval": {"10s"}})
	readEnvelope(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ack","alarm":"overflow"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != msgError || env.Alarm != string(models.AlarmOverflow) || env.Error == "" {
		t.Fatalf("unexpected reply: %+v", env)
	}
}

func TestWebSocket_InitialGetStateError_Closes(t *testing.T) {
	s := &service.Service{Monitoring: &mockMonitoring{err: errors.New("boom")}}
	conn := dialStream(t, s, nil)

	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	var raw json.RawMessage
	if err := conn.ReadJSON(&raw); err == nil {
		t.Fatalf("expected read error (closed), got message: %s", string(raw))
	}
}
