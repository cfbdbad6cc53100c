package curvefit

import (
	"fmt"
	"math"
)

// Chain is the pair of curves applied in sequence by the controller:
// voltage -> fan percent, then fan percent -> PWM duty percent.
type Chain struct {
	VoltageToFan Coefficients `json:"voltage_to_fan"`
	FanToPWM     Coefficients `json:"fan_to_pwm"`
}

// FitChain fits both curves from parallel calibration columns.
func FitChain(volts, fanPct, pwmPct []float32) (Chain, error) {
	v2f, err := Fit(volts, fanPct)
	if err != nil {
		return Chain{}, fmt.Errorf("voltage->fan: %w", err)
	}
	f2p, err := Fit(fanPct, pwmPct)
	if err != nil {
		return Chain{}, fmt.Errorf("fan->pwm: %w", err)
	}
	return Chain{VoltageToFan: v2f, FanToPWM: f2p}, nil
}

// Eval maps a voltage to a fan percent and a PWM duty, both clamped to
// [0,100]. The duty curve is evaluated on the clamped fan percent.
//
// A non-finite intermediate result maps to full speed.
func (c Chain) Eval(volts float32) (fanPct, duty float32) {
	fanPct = c.VoltageToFan.Eval(volts)
	if isNaN32(fanPct) {
		return 100, 100
	}
	fanPct = Clamp(fanPct, 0, 100)

	duty = c.FanToPWM.Eval(fanPct)
	if isNaN32(duty) {
		return fanPct, 100
	}
	return fanPct, Clamp(duty, 0, 100)
}

func isNaN32(v float32) bool {
	return math.IsNaN(float64(v))
}
