package curvefit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitChain(t *testing.T) {
	volts := []float32{1, 2, 3, 4}
	fan := []float32{10, 40, 70, 100}
	pwm := []float32{25, 50, 75, 100}

	c, err := FitChain(volts, fan, pwm)
	require.NoError(t, err)

	fanPct, duty := c.Eval(2)
	assert.InDelta(t, 40, fanPct, 1e-2)
	assert.InDelta(t, 50, duty, 1e-2)
}

func TestFitChain_NamesFailingCurve(t *testing.T) {
	_, err := FitChain([]float32{1, 2, 3}, []float32{5, 5, 5}, []float32{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerate))
	assert.Contains(t, err.Error(), "fan->pwm")
}

func TestChainEval_ClampsBeforeMapping(t *testing.T) {
	c := Chain{
		// fan = 50*v, so 3V gives 150% before clamping.
		VoltageToFan: Coefficients{B: 50},
		// duty = 2*fan - 20
		FanToPWM: Coefficients{B: 2, C: -20},
	}

	fanPct, duty := c.Eval(3)
	assert.Equal(t, float32(100), fanPct)
	assert.Equal(t, float32(100), duty)

	fanPct, duty = c.Eval(0.1)
	assert.InDelta(t, 5, fanPct, 1e-5)
	assert.Equal(t, float32(0), duty)

	fanPct, duty = c.Eval(-1)
	assert.Equal(t, float32(0), fanPct)
	assert.Equal(t, float32(0), duty)
}

func TestChainEval_NaNIsFullSpeed(t *testing.T) {
	c := Chain{VoltageToFan: Coefficients{B: 1}, FanToPWM: Coefficients{B: 1}}
	fanPct, duty := c.Eval(float32(math.NaN()))
	assert.Equal(t, float32(100), fanPct)
	assert.Equal(t, float32(100), duty)
}
