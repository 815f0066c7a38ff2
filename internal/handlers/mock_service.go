package handlers

import (
	"context"
	"sync"
	"time"

	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockSettings struct {
	all       map[string]string
	allErr    error
	updateErr error
	modeErr   error

	lastUpdate map[string]string
	lastID     models.DeviceID
	lastMode   models.Mode
	modeCalls  int
}

func (m *mockSettings) All(ctx context.Context) (map[string]string, error) {
	return m.all, m.allErr
}
func (m *mockSettings) Update(ctx context.Context, kv map[string]string) error {
	m.lastUpdate = kv
	return m.updateErr
}
func (m *mockSettings) SetDeviceMode(ctx context.Context, id models.DeviceID, mode models.Mode) error {
	m.modeCalls++
	m.lastID = id
	m.lastMode = mode
	return m.modeErr
}

type mockOperator struct {
	mu        sync.Mutex
	ackErr    error
	fillErr   error
	lastAck   models.AlarmKind
	ackCalls  int
	fillCalls int
}

func (m *mockOperator) AcknowledgeAlarm(ctx context.Context, kind models.AlarmKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ackCalls++
	m.lastAck = kind
	return m.ackErr
}
func (m *mockOperator) RequestFill(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fillCalls++
	return m.fillErr
}

// counts is safe to call while a websocket handler is still running.
func (m *mockOperator) counts() (acks, fills int, last models.AlarmKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ackCalls, m.fillCalls, m.lastAck
}

type mockMonitoring struct {
	state models.ControllerState
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.ControllerState, error) {
	return m.state, m.err
}

type mockEventLog struct {
	resp       []models.DeviceEvent
	err        error
	lastFrom   time.Time
	lastTo     time.Time
	lastType   string
	lastDevice string
	calls      int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DeviceEvent, error) {
	m.calls++
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastDevice = f.Device
	return m.resp, m.err
}

type mockHistory struct {
	resp      []models.SensorReading
	err       error
	lastLimit int
}

func (m *mockHistory) Latest(ctx context.Context, limit int) ([]models.SensorReading, error) {
	m.lastLimit = limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func filledState() models.ControllerState {
	return models.ControllerState{
		Tick: 42,
		Devices: []models.Device{
			{ID: models.Solenoid, Name: models.Solenoid.DisplayName(), Mode: models.ModeAuto},
		},
		Fill:      models.FillState{Status: models.FillTimeoutAlarm, Alarm: models.AlarmTimeout},
		WaterMode: models.WaterAuto,
	}
}
