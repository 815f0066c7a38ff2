package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"hydroponics_controller/internal/fillsafety"
	"hydroponics_controller/internal/models"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
	ErrInvalidMode    = errors.New("invalid device mode")
)

// Setting keys as stored in the settings table and used by the dashboard.
const (
	KeyLightsOnTime        = "lightsOnTime"
	KeyLightsOffTime       = "lightsOffTime"
	KeyPumpOnDuration      = "pumpOnDuration"
	KeyPumpOffDuration     = "pumpOffDuration"
	KeyExhaustTempHigh     = "exhaustFanTempHigh"
	KeyExhaustHumidHigh    = "exhaustFanHumidHigh"
	KeyCirculationOn       = "circulationFanOnDuration"
	KeyCirculationInterval = "circulationFanInterval"
	KeyCirculationOff      = "circulationFanOffDuration" // write-only, interval = on + off
	KeyWaterSystemMode     = "waterSystemMode"
	KeyMaxFillTime         = "maxFillTime"
)

// waterModeFill is accepted on write only; it queues a one-shot fill.
const waterModeFill = "fill"

func isFillRequest(key, value string) bool {
	return key == KeyWaterSystemMode && strings.EqualFold(strings.TrimSpace(value), waterModeFill)
}

var modeKeyPrefix = map[models.DeviceKind]string{
	models.KindLight:          "lightsMode",
	models.KindPump:           "pumpMode",
	models.KindExhaustFan:     "exhaustFanMode",
	models.KindCirculationFan: "circulationFanMode",
}

// ModeKey returns the settings key holding a device's mode, e.g. "pumpMode3".
func ModeKey(id models.DeviceID) string {
	return modeKeyPrefix[id.Kind] + strconv.Itoa(id.Index)
}

// parseModeKey is the inverse of ModeKey.
func parseModeKey(key string) (models.DeviceID, bool) {
	for kind, prefix := range modeKeyPrefix {
		rest, found := strings.CutPrefix(key, prefix)
		if !found {
			continue
		}
		idx, err := strconv.Atoi(rest)
		if err != nil {
			return models.DeviceID{}, false
		}
		id, err := models.NewDeviceID(kind, idx)
		if err != nil {
			return models.DeviceID{}, false
		}
		return id, true
	}
	return models.DeviceID{}, false
}

// EncodeSettings renders cfg as the stored key/value form. Durations are
// whole seconds.
func EncodeSettings(cfg models.AutomationConfig) map[string]string {
	kv := map[string]string{
		KeyLightsOnTime:        cfg.LightsOn.String(),
		KeyLightsOffTime:       cfg.LightsOff.String(),
		KeyPumpOnDuration:      seconds(cfg.PumpOn),
		KeyPumpOffDuration:     seconds(cfg.PumpOff),
		KeyExhaustTempHigh:     strconv.FormatFloat(cfg.ExhaustTempHighC, 'f', -1, 64),
		KeyExhaustHumidHigh:    strconv.FormatFloat(cfg.ExhaustHumidHighPc, 'f', -1, 64),
		KeyCirculationOn:       seconds(cfg.CirculationOn),
		KeyCirculationInterval: seconds(cfg.CirculationInterval),
		KeyWaterSystemMode:     string(cfg.WaterMode),
		KeyMaxFillTime:         seconds(fillsafety.EffectiveTimeout(cfg.FillTimeout)),
	}
	for _, id := range models.AutomatedDevices() {
		kv[ModeKey(id)] = string(cfg.ModeOf(id))
	}
	return kv
}

// DecodeSettings applies stored values on top of base. Values that fail
// validation are skipped and reported; the base value stays in effect.
func DecodeSettings(base models.AutomationConfig, kv map[string]string) (models.AutomationConfig, []error) {
	cfg := base.Clone()
	var errs []error
	for _, key := range sortedKeys(kv) {
		if isFillRequest(key, kv[key]) {
			continue
		}
		if err := applySetting(&cfg, key, kv[key]); err != nil {
			errs = append(errs, err)
		}
	}
	if err := checkCirculation(cfg); err != nil {
		cfg.CirculationOn, cfg.CirculationInterval = base.CirculationOn, base.CirculationInterval
		errs = append(errs, err)
	}
	return cfg, errs
}

// checkCirculation rejects a burst that fills its whole interval, which
// would leave the circulation fans permanently on in auto.
func checkCirculation(cfg models.AutomationConfig) error {
	if cfg.CirculationOn > 0 && cfg.CirculationOn >= cfg.CirculationInterval {
		return fmt.Errorf("%s: %w: %s must be shorter than %s",
			KeyCirculationInterval, ErrInvalidSetting, KeyCirculationOn, KeyCirculationInterval)
	}
	return nil
}

// storedKey maps a write-only alias to the key it is persisted under.
func storedKey(key string) string {
	if key == KeyCirculationOff {
		return KeyCirculationInterval
	}
	return key
}

// applySetting validates value and writes it into cfg.
func applySetting(cfg *models.AutomationConfig, key, value string) error {
	value = strings.TrimSpace(value)

	if id, ok := parseModeKey(key); ok {
		m, err := models.ParseMode(value)
		if err != nil {
			return fmt.Errorf("%s: %w: %q", key, ErrInvalidMode, value)
		}
		if cfg.Modes == nil {
			cfg.Modes = make(map[models.DeviceID]models.Mode)
		}
		cfg.Modes[id] = m
		return nil
	}

	var err error
	switch key {
	case KeyLightsOnTime:
		cfg.LightsOn, err = models.ParseTimeOfDay(value)
	case KeyLightsOffTime:
		cfg.LightsOff, err = models.ParseTimeOfDay(value)
	case KeyPumpOnDuration:
		cfg.PumpOn, err = parseSeconds(value)
	case KeyPumpOffDuration:
		cfg.PumpOff, err = parseSeconds(value)
	case KeyExhaustTempHigh:
		cfg.ExhaustTempHighC, err = parseThreshold(value, -40, 80)
	case KeyExhaustHumidHigh:
		cfg.ExhaustHumidHighPc, err = parseThreshold(value, 0, 100)
	case KeyCirculationOn:
		cfg.CirculationOn, err = parseSeconds(value)
	case KeyCirculationInterval:
		cfg.CirculationInterval, err = parseSeconds(value)
	case KeyCirculationOff:
		var off time.Duration
		if off, err = parseSeconds(value); err == nil {
			cfg.CirculationInterval = cfg.CirculationOn + off
		}
	case KeyWaterSystemMode:
		switch models.WaterMode(strings.ToLower(value)) {
		case models.WaterAuto:
			cfg.WaterMode = models.WaterAuto
		case models.WaterOff:
			cfg.WaterMode = models.WaterOff
		default:
			err = fmt.Errorf("must be auto, off or fill")
		}
	case KeyMaxFillTime:
		var d time.Duration
		if d, err = parseSeconds(value); err == nil {
			if d < models.MinFillTimeout || d > models.MaxFillTimeout {
				err = fmt.Errorf("must be between %d and %d seconds",
					int(models.MinFillTimeout.Seconds()), int(models.MaxFillTimeout.Seconds()))
			} else {
				cfg.FillTimeout = d
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %v", key, ErrInvalidSetting, err)
	}
	return nil
}

// parseSeconds accepts a non-negative number of seconds ("900" or "900.0").
func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a number of seconds", s)
	}
	if f < 0 || f > 7*24*3600 {
		return 0, fmt.Errorf("%q out of range", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func parseThreshold(s string, lo, hi float64) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if f < lo || f > hi {
		return 0, fmt.Errorf("%v outside %v..%v", f, lo, hi)
	}
	return f, nil
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}

// sortedKeys orders keys for application. The off-duration alias goes last
// so it sees the burst length from the same write.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == KeyCirculationOff) != (keys[j] == KeyCirculationOff) {
			return keys[j] == KeyCirculationOff
		}
		return keys[i] < keys[j]
	})
	return keys
}
