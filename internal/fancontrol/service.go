// Package fancontrol drives a fan output from an analog control voltage
// through a fitted voltage->fan->duty curve chain.
package fancontrol

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"fancurve/internal/analog"
	"fancurve/internal/curvefit"
)

var openDriverFn = openDriver

type Config struct {
	// Backend selects the output: "pwm" (sysfs PWM) or "gpio" (on/off).
	Backend string

	// PWMChip is the sysfs pwmchip index; negative means auto-detect.
	PWMChip    int
	PWMChannel int
	// GPIOPin is BCM numbering, used by the gpio backend.
	GPIOPin int

	PWMFrequency int
	// Resolution is the top of the reported output level range
	// (255 matches an 8-bit PWM peripheral).
	Resolution int
	// UpdateInterval is the polling period of the control loop.
	UpdateInterval time.Duration
}

type Snapshot struct {
	Running bool   `json:"running"`
	Backend string `json:"backend"`

	VoltageValid bool    `json:"voltage_valid"`
	Voltage      float64 `json:"voltage"`
	FanPercent   float64 `json:"fan_percent"`
	Duty         float64 `json:"duty_percent"`
	Level        uint64  `json:"level"`
	Resolution   int     `json:"resolution"`

	Ticks        uint64    `json:"ticks"`
	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg   Config
	input analog.Input
	chain curvefit.Chain

	mu   sync.RWMutex
	snap Snapshot

	drvMu sync.Mutex
	drv   pwmDriver

	wg sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config, input analog.Input, chain curvefit.Chain) *Service {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = BackendPWM
	}
	if cfg.PWMFrequency <= 0 {
		cfg.PWMFrequency = 25000
	}
	if cfg.Resolution <= 0 {
		cfg.Resolution = 255
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = time.Second
	}
	s := &Service{cfg: cfg, input: input, chain: chain, stopCh: make(chan struct{})}
	s.snap.Backend = cfg.Backend
	s.snap.Resolution = cfg.Resolution
	return s
}

func openDriver(cfg Config) (pwmDriver, error) {
	switch cfg.Backend {
	case BackendPWM:
		return openSysfsPWM(cfg.PWMChip, cfg.PWMChannel)
	case BackendGPIO:
		return openGPIO(cfg.GPIOPin)
	default:
		return nil, fmt.Errorf("fancontrol: unknown backend %q", cfg.Backend)
	}
}

func (s *Service) Chain() curvefit.Chain {
	if s == nil {
		return curvefit.Chain{}
	}
	return s.chain
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

// Start opens the output, programs the PWM frequency and runs the control
// loop in the background. It returns once the loop is running.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("fancontrol: service is nil")
	}
	if s.input == nil {
		return fmt.Errorf("fancontrol: analog input is nil")
	}

	drv, err := openDriverFn(s.cfg)
	if err != nil {
		s.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
		return err
	}
	if err := drv.SetFrequencyHz(s.cfg.PWMFrequency); err != nil {
		_ = drv.Close()
		err = fmt.Errorf("fancontrol: set pwm frequency: %w", err)
		s.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
		return err
	}
	s.drvMu.Lock()
	s.drv = drv
	s.drvMu.Unlock()

	s.setState(func(sn *Snapshot) { sn.Running = true })

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, drv)
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stopCh:
		}
	}()
	return nil
}

// Close stops the loop and releases the output, leaving the fan at full
// duty. It is safe to call more than once.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()

	// Held through release so a concurrent Close returns only after the
	// output is at full duty.
	s.drvMu.Lock()
	defer s.drvMu.Unlock()
	drv := s.drv
	s.drv = nil
	if drv == nil {
		return
	}
	_ = drv.SetDutyPercent(100)
	_ = drv.Close()
	s.setState(func(sn *Snapshot) {
		sn.Running = false
		sn.Duty = 100
		sn.Level = uint64(s.cfg.Resolution)
	})
}

func (s *Service) run(ctx context.Context, drv pwmDriver) {
	t := time.NewTicker(s.cfg.UpdateInterval)
	defer t.Stop()

	s.step(drv)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-t.C:
			s.step(drv)
		}
	}
}

// step runs one control iteration: read voltage, evaluate the chain, write
// the duty.
func (s *Service) step(drv pwmDriver) {
	volts, err := s.input.ReadVoltage()
	if err != nil {
		log.Printf("fancontrol: read voltage failed: %v (fan forced to 100%%)", err)
		if werr := drv.SetDutyPercent(100); werr != nil {
			err = fmt.Errorf("%v; set duty: %w", err, werr)
		}
		s.setState(func(sn *Snapshot) {
			sn.Ticks++
			sn.VoltageValid = false
			sn.Duty = 100
			sn.Level = uint64(s.cfg.Resolution)
			sn.LastError = err.Error()
		})
		return
	}

	fanPct, duty := s.chain.Eval(float32(volts))
	level := DutyToLevel(float64(duty), uint64(s.cfg.Resolution))

	if err := drv.SetDutyPercent(float64(duty)); err != nil {
		msg := fmt.Sprintf("fancontrol: set pwm duty failed: %v", err)
		log.Print(msg)
		s.setState(func(sn *Snapshot) {
			sn.Ticks++
			sn.VoltageValid = true
			sn.Voltage = volts
			sn.LastError = msg
		})
		return
	}

	log.Printf("voltage=%.2fV fan=%.1f%% duty=%.1f%% level=%d", volts, fanPct, duty, level)
	s.setState(func(sn *Snapshot) {
		sn.Ticks++
		sn.VoltageValid = true
		sn.Voltage = volts
		sn.FanPercent = float64(fanPct)
		sn.Duty = float64(duty)
		sn.Level = level
		sn.LastError = ""
	})
}
