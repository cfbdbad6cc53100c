package fancontrol

import "math"

// pwmDriver is the output side of the controller: a PWM channel or a GPIO
// line. Duty is in percent (0..100).
//
// Close should be best-effort and leave the fan running.
//
//nolint:revive // internal interface name matches domain.
type pwmDriver interface {
	SetFrequencyHz(hz int) error
	SetDutyPercent(p float64) error
	Close() error
}

const (
	BackendPWM  = "pwm"
	BackendGPIO = "gpio"
)

// DutyToLevel maps a duty percent onto an output range of 0..max.
// Duty is clamped to [0,100] first.
func DutyToLevel(duty float64, max uint64) uint64 {
	if math.IsNaN(duty) {
		duty = 100
	}
	duty = clamp(duty, 0, 100)
	lvl := uint64(math.Round(float64(max) * duty / 100.0))
	if lvl > max {
		lvl = max
	}
	return lvl
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
