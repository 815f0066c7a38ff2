package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/service"
)

func TestEventsHandler_ListAndValidation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.DeviceEvent{
		{EventID: "e1", OccurredAt: now, Type: models.EventDeviceOn, Device: "pump-2", Description: "Pump 2 on"},
		{EventID: "e2", OccurredAt: now.Add(time.Second), Type: models.EventDeviceOff, Device: "pump-2", Description: "Pump 2 off"},
	}
	logs := &mockEventLog{resp: events}
	r := newTestRouter(&service.Service{EventLog: logs})

	w := doJSON(r, http.MethodGet, "/api/v1/events?from=notatime", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	q := "/api/v1/events?from=" + now.Format(time.RFC3339) +
		"&to=" + now.Add(2*time.Second).Format(time.RFC3339) +
		"&type=device_on&device=pumps-2"
	w = doJSON(r, http.MethodGet, q, "")
	if w.Code != http.StatusOK {
		t.Fatalf("events status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                  `json:"count"`
		Events []models.DeviceEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != models.EventDeviceOn {
		t.Fatalf("type not normalized: %q", logs.lastType)
	}
	if logs.lastDevice != "pumps-2" {
		t.Fatalf("device filter not passed through: %q", logs.lastDevice)
	}
	if !logs.lastFrom.Equal(now) || !logs.lastTo.Equal(now.Add(2*time.Second)) {
		t.Fatalf("range not passed through: %v..%v", logs.lastFrom, logs.lastTo)
	}
}

func TestEventsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{EventLog: logs})

	w := doJSON(r, http.MethodGet, "/api/v1/events?from=2025-08-01&to=2025-08-01", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	wantTo := time.Date(2025, 8, 1, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastTo.Equal(wantTo) {
		t.Fatalf("to=%v, want %v", logs.lastTo, wantTo)
	}
	if !logs.lastFrom.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from=%v", logs.lastFrom)
	}
}

func TestEventsHandler_BadInputNeverReachesService(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{EventLog: logs})

	for _, q := range []string{
		"/api/v1/events?to=yesterday",
		"/api/v1/events?from=2025-08-02&to=2025-08-01T00:00:00Z",
		"/api/v1/events?device=heater-1",
		"/api/v1/events?device=pump-9",
	} {
		w := doJSON(r, http.MethodGet, q, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, w.Code)
		}
	}
	if logs.calls != 0 {
		t.Fatalf("service called %d times for invalid input", logs.calls)
	}
}

func TestEventsHandler_ServiceError(t *testing.T) {
	logs := &mockEventLog{err: errors.New("db down")}
	r := newTestRouter(&service.Service{EventLog: logs})

	w := doJSON(r, http.MethodGet, "/api/v1/events", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestReadingsHandler(t *testing.T) {
	temp := 24.5
	hist := &mockHistory{resp: []models.SensorReading{{TemperatureC: &temp, WaterLevelOK: true}}}
	r := newTestRouter(&service.Service{History: hist})

	w := doJSON(r, http.MethodGet, "/api/v1/readings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if hist.lastLimit != service.DefaultReadingsLimit {
		t.Fatalf("default limit=%d", hist.lastLimit)
	}
	var out struct {
		Count    int                    `json:"count"`
		Readings []models.SensorReading `json:"readings"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 1 || out.Readings[0].TemperatureC == nil || *out.Readings[0].TemperatureC != 24.5 {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/api/v1/readings?limit=5", "")
	if w.Code != http.StatusOK || hist.lastLimit != 5 {
		t.Fatalf("status=%d limit=%d", w.Code, hist.lastLimit)
	}

	for _, bad := range []string{"0", "-3", "many"} {
		w = doJSON(r, http.MethodGet, "/api/v1/readings?limit="+bad, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", bad, w.Code)
		}
	}

	hist.err = errors.New("boom")
	w = doJSON(r, http.MethodGet, "/api/v1/readings", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
