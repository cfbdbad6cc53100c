// Package analog reads the fan control voltage from an ADC.
package analog

import (
	"fmt"
	"strings"
)

// Input yields the current control voltage in volts.
type Input interface {
	ReadVoltage() (float64, error)
	Close() error
}

// Scale converts raw ADC counts to volts: raw * VRef / FullScale * Divider.
type Scale struct {
	VRef      float64
	FullScale float64
	// Divider is the ratio of an external resistor divider in front of the
	// ADC pin (1 when the signal is wired directly).
	Divider float64
}

func (s Scale) Volts(raw int64) float64 {
	if s.FullScale == 0 {
		return 0
	}
	div := s.Divider
	if div == 0 {
		div = 1
	}
	return float64(raw) * s.VRef / s.FullScale * div
}

const (
	BackendADS1115 = "ads1115"
	BackendIIO     = "iio"
	BackendFixed   = "fixed"
)

type Config struct {
	Backend string

	I2CBus  string
	Addr    uint16
	Channel int

	IIODevice string

	Scale Scale

	FixedVoltage float64
}

var openADS1115Fn = openADS1115

// Open returns the Input selected by cfg.Backend.
func Open(cfg Config) (Input, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendFixed, "":
		return Fixed(cfg.FixedVoltage), nil
	case BackendIIO:
		return NewIIO(cfg.IIODevice, cfg.Channel, cfg.Scale)
	case BackendADS1115:
		return openADS1115Fn(cfg)
	default:
		return nil, fmt.Errorf("analog: unknown backend %q", cfg.Backend)
	}
}

// Fixed is an Input that always reports the same voltage.
type Fixed float64

func (f Fixed) ReadVoltage() (float64, error) { return float64(f), nil }

func (f Fixed) Close() error { return nil }
