package analog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIO reads a Linux Industrial I/O ADC channel through sysfs
// (in_voltageN_raw).
type IIO struct {
	rawPath string
	scale   Scale
}

func NewIIO(device string, channel int, scale Scale) (*IIO, error) {
	if strings.TrimSpace(device) == "" {
		return nil, fmt.Errorf("analog: iio: device path is empty")
	}
	if channel < 0 {
		return nil, fmt.Errorf("analog: iio: invalid channel %d", channel)
	}
	if scale.FullScale == 0 {
		return nil, fmt.Errorf("analog: iio: full_scale must be set")
	}
	p := filepath.Join(device, fmt.Sprintf("in_voltage%d_raw", channel))
	if _, err := os.Stat(p); err != nil {
		return nil, fmt.Errorf("analog: iio: %w", err)
	}
	return &IIO{rawPath: p, scale: scale}, nil
}

func parseRaw(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("raw value empty")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse raw %q: %w", s, err)
	}
	return n, nil
}

func (a *IIO) ReadVoltage() (float64, error) {
	b, err := os.ReadFile(a.rawPath)
	if err != nil {
		return 0, fmt.Errorf("analog: iio: read: %w", err)
	}
	raw, err := parseRaw(string(b))
	if err != nil {
		return 0, fmt.Errorf("analog: iio: %w", err)
	}
	return a.scale.Volts(raw), nil
}

func (a *IIO) Close() error { return nil }
