//go:build linux

package fancontrol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "fancurve"

// openGPIO drives a BCM GPIO as a plain digital output through the GPIO
// character device. It is meant for 2-wire fans switched by a transistor:
// any duty > 0 turns the fan on.
func openGPIO(pin int) (pwmDriver, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("fancontrol: invalid gpio pin %d", pin)
	}

	// Raspberry Pi kernels name header lines "GPIO18" etc. The Pi 5 exposes
	// them on a different chip depending on kernel version, so scan all chips.
	lineName := fmt.Sprintf("GPIO%d", pin)
	chips := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		p := filepath.Join("/dev", e.Name())
		if strings.HasPrefix(e.Name(), "gpiochip") && p != chips[0] && p != chips[1] {
			chips = append(chips, p)
		}
	}

	for _, chipPath := range chips {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(1), gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodSwitch{chip: chip, line: line}, nil
	}
	return nil, fmt.Errorf("fancontrol: gpio line %q not found (or busy)", lineName)
}

// gpioLine is the part of *gpiocdev.Line the switch uses.
type gpioLine interface {
	SetValue(value int) error
	Close() error
}

type gpiodSwitch struct {
	chip *gpiocdev.Chip
	line gpioLine
}

// SetFrequencyHz is a no-op: the line is only ever fully on or off.
func (g *gpiodSwitch) SetFrequencyHz(hz int) error { return nil }

func (g *gpiodSwitch) SetDutyPercent(p float64) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("fancontrol: gpio driver not initialized")
	}
	return g.line.SetValue(gpioLevel(p))
}

func gpioLevel(duty float64) int {
	if duty > 0 {
		return 1
	}
	return 0
}

// Close leaves the fan on and releases the line.
func (g *gpiodSwitch) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	_ = g.line.SetValue(1)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
