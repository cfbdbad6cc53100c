// Package calibration provides the (voltage, fan%, pwm%) calibration points
// the controller fits its curves from, either built in or from a CSV file.
package calibration

import "fmt"

// MaxSamples is the capacity of a Set. Extra rows in a file are ignored.
const MaxSamples = 10

// Sample is one calibration point: at Voltage the fan should run at
// FanPercent, which takes a PWMPercent duty to reach.
type Sample struct {
	Voltage    float32 `json:"voltage"`
	FanPercent float32 `json:"fan_percent"`
	PWMPercent float32 `json:"pwm_percent"`
}

// Set is a fixed-capacity, ordered collection of samples.
//
// A Set is filled once at startup and treated as read-only afterwards.
type Set struct {
	samples [MaxSamples]Sample
	n       int
}

// NewSet returns a Set holding samples, or an error if there are more than
// MaxSamples of them.
func NewSet(samples ...Sample) (Set, error) {
	var s Set
	if len(samples) > MaxSamples {
		return s, fmt.Errorf("calibration: %d samples exceeds capacity %d", len(samples), MaxSamples)
	}
	for _, sm := range samples {
		s.add(sm)
	}
	return s, nil
}

func (s *Set) add(sm Sample) bool {
	if s.n >= MaxSamples {
		return false
	}
	s.samples[s.n] = sm
	s.n++
	return true
}

func (s Set) Len() int { return s.n }

func (s Set) Full() bool { return s.n >= MaxSamples }

// At returns the i-th sample. It panics if i is out of range.
func (s Set) At(i int) Sample {
	if i < 0 || i >= s.n {
		panic(fmt.Sprintf("calibration: index %d out of range [0,%d)", i, s.n))
	}
	return s.samples[i]
}

// Samples returns a copy of the populated samples.
func (s Set) Samples() []Sample {
	out := make([]Sample, s.n)
	copy(out, s.samples[:s.n])
	return out
}

func (s Set) Voltages() []float32 {
	return s.column(func(sm Sample) float32 { return sm.Voltage })
}

func (s Set) FanPercents() []float32 {
	return s.column(func(sm Sample) float32 { return sm.FanPercent })
}

func (s Set) PWMPercents() []float32 {
	return s.column(func(sm Sample) float32 { return sm.PWMPercent })
}

func (s Set) column(get func(Sample) float32) []float32 {
	out := make([]float32, s.n)
	for i := 0; i < s.n; i++ {
		out[i] = get(s.samples[i])
	}
	return out
}

var defaultSamples = []Sample{
	{Voltage: 0.5, FanPercent: 0, PWMPercent: 20},
	{Voltage: 1.0, FanPercent: 10, PWMPercent: 26},
	{Voltage: 1.5, FanPercent: 20, PWMPercent: 33},
	{Voltage: 2.0, FanPercent: 32, PWMPercent: 41},
	{Voltage: 2.5, FanPercent: 45, PWMPercent: 50},
	{Voltage: 3.0, FanPercent: 57, PWMPercent: 59},
	{Voltage: 3.5, FanPercent: 70, PWMPercent: 68},
	{Voltage: 4.0, FanPercent: 82, PWMPercent: 78},
	{Voltage: 4.5, FanPercent: 92, PWMPercent: 89},
	{Voltage: 5.0, FanPercent: 100, PWMPercent: 100},
}

// Default returns the built-in calibration used when no file is available.
func Default() Set {
	s, _ := NewSet(defaultSamples...)
	return s
}
