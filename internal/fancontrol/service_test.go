package fancontrol

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fancurve/internal/curvefit"
)

type fakePWMDriver struct {
	mu       sync.Mutex
	freq     int
	duties   []float64
	closed   bool
	dutyErr  error
	dutyCh   chan float64
	setFreqN atomic.Int64
}

func (d *fakePWMDriver) SetFrequencyHz(hz int) error {
	d.setFreqN.Add(1)
	d.mu.Lock()
	d.freq = hz
	d.mu.Unlock()
	return nil
}

func (d *fakePWMDriver) SetDutyPercent(p float64) error {
	d.mu.Lock()
	d.duties = append(d.duties, p)
	err := d.dutyErr
	d.mu.Unlock()
	select {
	case d.dutyCh <- p:
	default:
	}
	return err
}

func (d *fakePWMDriver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakePWMDriver) lastDuty() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.duties) == 0 {
		return -1
	}
	return d.duties[len(d.duties)-1]
}

type fakeInput struct {
	mu    sync.Mutex
	volts float64
	err   error
}

func (f *fakeInput) ReadVoltage() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volts, f.err
}

func (f *fakeInput) Close() error { return nil }

// linearChain maps fan = 20*v and duty = fan.
var linearChain = curvefit.Chain{
	VoltageToFan: curvefit.Coefficients{B: 20},
	FanToPWM:     curvefit.Coefficients{B: 1},
}

func useFakeDriver(t *testing.T, d *fakePWMDriver) {
	t.Helper()
	old := openDriverFn
	openDriverFn = func(cfg Config) (pwmDriver, error) { return d, nil }
	t.Cleanup(func() { openDriverFn = old })
}

func waitDuty(t *testing.T, ch <-chan float64) float64 {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for duty")
	}
	return 0
}

func TestServiceStart_IsNonBlockingAndAppliesCurve(t *testing.T) {
	fake := &fakePWMDriver{dutyCh: make(chan float64, 8)}
	useFakeDriver(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := New(Config{UpdateInterval: time.Hour}, &fakeInput{volts: 2}, linearChain)
	start := time.Now()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatalf("Start took too long (likely blocked): %v", time.Since(start))
	}

	if d := waitDuty(t, fake.dutyCh); d != 40 {
		t.Fatalf("duty=%v want 40", d)
	}
	if fake.setFreqN.Load() != 1 || fake.freq != 25000 {
		t.Fatalf("freq calls=%d freq=%d want 1, 25000", fake.setFreqN.Load(), fake.freq)
	}

	// Snapshot is updated right after the write.
	deadline := time.Now().Add(time.Second)
	for svc.Snapshot().Ticks == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	snap := svc.Snapshot()
	if !snap.Running || !snap.VoltageValid || snap.Voltage != 2 || snap.FanPercent != 40 || snap.Duty != 40 {
		t.Fatalf("snapshot=%+v", snap)
	}
	if snap.Level != 102 {
		t.Fatalf("level=%d want 102", snap.Level)
	}

	svc.Close()
}

func TestServiceStep_ClampsDuty(t *testing.T) {
	fake := &fakePWMDriver{dutyCh: make(chan float64, 8)}
	in := &fakeInput{volts: 9}
	svc := New(Config{}, in, linearChain)

	svc.step(fake)
	if d := fake.lastDuty(); d != 100 {
		t.Fatalf("duty=%v want 100", d)
	}
	if lvl := svc.Snapshot().Level; lvl != 255 {
		t.Fatalf("level=%d want 255", lvl)
	}

	in.volts = -1
	svc.step(fake)
	if d := fake.lastDuty(); d != 0 {
		t.Fatalf("duty=%v want 0", d)
	}
	if lvl := svc.Snapshot().Level; lvl != 0 {
		t.Fatalf("level=%d want 0", lvl)
	}
}

func TestServiceStep_InputErrorFailsSafe(t *testing.T) {
	fake := &fakePWMDriver{dutyCh: make(chan float64, 8)}
	svc := New(Config{}, &fakeInput{err: errors.New("adc gone")}, linearChain)

	svc.step(fake)
	if d := fake.lastDuty(); d != 100 {
		t.Fatalf("duty=%v want 100", d)
	}
	snap := svc.Snapshot()
	if snap.VoltageValid || snap.LastError == "" {
		t.Fatalf("snapshot=%+v want invalid voltage with error", snap)
	}
}

func TestServiceStep_OutputErrorRecorded(t *testing.T) {
	fake := &fakePWMDriver{dutyCh: make(chan float64, 8), dutyErr: errors.New("EIO")}
	svc := New(Config{}, &fakeInput{volts: 1}, linearChain)

	svc.step(fake)
	snap := svc.Snapshot()
	if snap.LastError == "" {
		t.Fatalf("expected last_error")
	}
	if snap.Ticks != 1 {
		t.Fatalf("ticks=%d want 1", snap.Ticks)
	}
}

func TestServiceClose_LeavesFanAtFullDuty(t *testing.T) {
	fake := &fakePWMDriver{dutyCh: make(chan float64, 16)}
	useFakeDriver(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	svc := New(Config{UpdateInterval: time.Hour}, &fakeInput{volts: 1}, linearChain)
	if err := svc.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	waitDuty(t, fake.dutyCh)

	cancel()
	svc.Close()
	svc.Close()

	if d := fake.lastDuty(); d != 100 {
		t.Fatalf("last duty=%v want 100", d)
	}
	fake.mu.Lock()
	closed := fake.closed
	fake.mu.Unlock()
	if !closed {
		t.Fatalf("driver not closed")
	}
	if svc.Snapshot().Running {
		t.Fatalf("still running after Close")
	}
}

func TestServiceStart_DriverError(t *testing.T) {
	old := openDriverFn
	openDriverFn = func(cfg Config) (pwmDriver, error) { return nil, errors.New("no pwm") }
	t.Cleanup(func() { openDriverFn = old })

	svc := New(Config{}, &fakeInput{}, linearChain)
	if err := svc.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if svc.Snapshot().LastError == "" {
		t.Fatalf("expected last_error")
	}
	svc.Close()
}

func TestOpenDriver_UnknownBackend(t *testing.T) {
	if _, err := openDriver(Config{Backend: "dac"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDutyToLevel(t *testing.T) {
	cases := []struct {
		duty float64
		max  uint64
		want uint64
	}{
		{0, 255, 0},
		{100, 255, 255},
		{50, 255, 128},
		{-10, 255, 0},
		{140, 255, 255},
		{25, 40000, 10000},
	}
	for _, tc := range cases {
		if got := DutyToLevel(tc.duty, tc.max); got != tc.want {
			t.Fatalf("DutyToLevel(%v,%d)=%d want %d", tc.duty, tc.max, got, tc.want)
		}
	}
}
