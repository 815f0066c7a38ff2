package sensors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIOHygrometer reads a DHT11/DHT22 through the kernel's dht11 IIO driver
// (dtoverlay=dht11). The driver does the bit timing; values are exposed in
// milli-units under /sys/bus/iio/devices/iio:deviceN.
type IIOHygrometer struct {
	name string
	dir  string
}

// NewIIOHygrometer targets the IIO device directory dir.
func NewIIOHygrometer(name, dir string) *IIOHygrometer {
	return &IIOHygrometer{name: name, dir: dir}
}

func (h *IIOHygrometer) Name() string { return h.name }

// ReadClimate returns temperature in °C and relative humidity in percent.
// The DHT driver answers EIO on checksum errors; that surfaces as err.
func (h *IIOHygrometer) ReadClimate(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	t, err := readMilli(filepath.Join(h.dir, "in_temp_input"))
	if err != nil {
		return 0, 0, fmt.Errorf("%s temperature: %w", h.name, err)
	}
	rh, err := readMilli(filepath.Join(h.dir, "in_humidityrelative_input"))
	if err != nil {
		return 0, 0, fmt.Errorf("%s humidity: %w", h.name, err)
	}
	return t, rh, nil
}

func readMilli(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v / 1000, nil
}
