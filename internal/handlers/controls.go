package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"hydroponics_controller/internal/models"
	"hydroponics_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK            = "ok"
	statusSettingsSaved = "settings_saved"
	statusModeSet       = "mode_set"
	statusFillQueued    = "fill_requested"
	statusAcknowledged  = "acknowledged"

	errGetState        = "failed to load state"
	errGetSettings     = "failed to load settings"
	errSaveSettings    = "failed to save settings"
	errRequestFill     = "failed to request fill"
	errAcknowledge     = "failed to acknowledge alarm"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	if h.services.Monitoring != nil {
		if st, err := h.services.Monitoring.GetState(ctx); err == nil {
			resp["state"] = st
		}
	}
	c.JSON(http.StatusOK, resp)
}

// settingsStatus maps validation failures to 400 and everything else to 500.
func settingsStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownSetting),
		errors.Is(err, service.ErrInvalidSetting),
		errors.Is(err, service.ErrInvalidMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Request DTO for setting a device mode.
type modeRequest struct {
	Mode string `json:"mode" binding:"required"` // auto | on | off
}

// SetModeRequest is an exported model for Swagger docs of the setDeviceMode payload.
type SetModeRequest struct {
	// Mode to set. Allowed: auto, on, off
	Mode string `json:"mode" example:"off"`
}

// AckRequest is the alarm acknowledgement payload.
type AckRequest struct {
	// Alarm to acknowledge. Allowed: timeout, reservoir_empty, overflow
	Alarm string `json:"alarm" binding:"required" example:"timeout"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get controller state
// @Description  Latest state published by the control loop: sensors, devices, fill safety status.
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  models.ControllerState
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/state [get]
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Get settings
// @Tags         settings
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/settings [get]
func (h *Handler) getSettings(c *gin.Context) {
	kv, err := h.services.Settings.All(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSettings, "settings_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, kv)
}

// @Summary      Update settings
// @Description  Partial update; either every key is applied or none. waterSystemMode=fill requests a one-shot fill.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body   map[string]string  true  "Settings to change"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/settings [post]
func (h *Handler) updateSettings(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	kv, err := stringifySettings(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	if err := h.services.Settings.Update(c.Request.Context(), kv); err != nil {
		code := settingsStatus(err)
		msg := errSaveSettings
		if code == http.StatusBadRequest {
			msg = err.Error()
		}
		h.logAndJSONError(c, code, msg, "settings_update_failed", err, "keys", len(kv))
		return
	}
	h.respondWithStatusAndState(c, statusSettingsSaved, gin.H{"updated": len(kv)})
}

// stringifySettings accepts the dashboard's mix of string and numeric values.
func stringifySettings(raw map[string]interface{}) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("setting %q must be a string or number", k)
		}
	}
	return out, nil
}

// @Summary      Set device mode
// @Description  The water solenoid cannot be forced; use the water endpoints instead.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        kind   path   string          true  "Device kind"  Enums(light,pump,circulation_fan,exhaust_fan)
// @Param        index  path   int             true  "1-based device index"
// @Param        body   body   SetModeRequest  true  "Mode payload"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/devices/{kind}/{index}/mode [post]
func (h *Handler) setDeviceMode(c *gin.Context) {
	id, err := parseDevicePath(c.Param("kind"), c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Settings.SetDeviceMode(c.Request.Context(), id, mode); err != nil {
		code := settingsStatus(err)
		msg := errSaveSettings
		if code == http.StatusBadRequest {
			msg = err.Error()
		}
		h.logAndJSONError(c, code, msg, "set_device_mode_failed", err, "device", id.String(), "mode", mode)
		return
	}
	h.respondWithStatusAndState(c, statusModeSet, gin.H{"device": id.String(), "mode": mode})
}

func parseDevicePath(kindParam, indexParam string) (models.DeviceID, error) {
	kind, err := models.ParseDeviceKind(kindParam)
	if err != nil {
		return models.DeviceID{}, err
	}
	idx, err := strconv.Atoi(strings.TrimSpace(indexParam))
	if err != nil {
		return models.DeviceID{}, fmt.Errorf("invalid device index %q", indexParam)
	}
	return models.NewDeviceID(kind, idx)
}

// @Summary      Request a fill
// @Description  Queues a one-shot fill; it starts on the next control tick if the fill safety machine allows it.
// @Tags         water
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/water/fill [post]
func (h *Handler) requestFill(c *gin.Context) {
	if err := h.services.Operator.RequestFill(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errRequestFill, "fill_request_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusFillQueued, gin.H{})
}

// @Summary      Acknowledge alarm
// @Description  Overflow can only be acknowledged once the overflow sensor reads dry.
// @Tags         water
// @Accept       json
// @Produce      json
// @Param        body  body   AckRequest  true  "Alarm payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/alarms/ack [post]
func (h *Handler) acknowledgeAlarm(c *gin.Context) {
	var req AckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	kind, ok := models.ParseAlarmKind(strings.ToLower(strings.TrimSpace(req.Alarm)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown alarm %q", req.Alarm)})
		return
	}

	err := h.services.Operator.AcknowledgeAlarm(c.Request.Context(), kind)
	switch {
	case err == nil:
		h.respondWithStatusAndState(c, statusAcknowledged, gin.H{"alarm": kind})
	case errors.Is(err, service.ErrNoActiveAlarm), errors.Is(err, service.ErrOverflowActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errAcknowledge, "alarm_ack_failed", err, "alarm", kind)
	}
}
