package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Calibration CalibrationConfig `yaml:"calibration"`
	ADC         ADCConfig         `yaml:"adc"`
	Fan         FanConfig         `yaml:"fan"`
	Web         WebConfig         `yaml:"web"`
}

type CalibrationConfig struct {
	Dir           string `yaml:"dir"`
	File          string `yaml:"file"`
	CreateDefault *bool  `yaml:"create_default"`
}

type ADCConfig struct {
	Backend   string  `yaml:"backend"`
	I2CBus    string  `yaml:"i2c_bus"`
	Addr      uint16  `yaml:"addr"`
	Channel   int     `yaml:"channel"`
	IIODevice string  `yaml:"iio_device"`
	VRef      float64 `yaml:"vref"`
	FullScale float64 `yaml:"full_scale"`
	Divider   float64 `yaml:"divider"`
	// FixedVoltage is reported by the fixed backend; nil means 5.0.
	FixedVoltage *float64 `yaml:"fixed_voltage"`
}

type FanConfig struct {
	Backend string `yaml:"backend"`
	// PWMChip is the sysfs pwmchip index; nil means auto-detect.
	PWMChip        *int          `yaml:"pwm_chip"`
	PWMChannel     int           `yaml:"pwm_channel"`
	GPIOPin        int           `yaml:"gpio_pin"`
	PWMFrequency   int           `yaml:"pwm_frequency"`
	Resolution     int           `yaml:"resolution"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

type WebConfig struct {
	Enable      bool     `yaml:"enable"`
	Listen      string   `yaml:"listen"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// CreateDefaultEnabled reports whether a missing calibration file should be
// generated from the built-in samples (default true).
func (c CalibrationConfig) CreateDefaultEnabled() bool {
	return c.CreateDefault == nil || *c.CreateDefault
}

// Fixed returns the voltage reported by the fixed backend.
func (a ADCConfig) Fixed() float64 {
	if a.FixedVoltage == nil {
		return 5.0
	}
	return *a.FixedVoltage
}

// Chip returns the configured pwmchip index, or -1 to auto-detect.
func (f FanConfig) Chip() int {
	if f.PWMChip == nil {
		return -1
	}
	return *f.PWMChip
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, rejecting unknown fields, and applies defaults.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", unknownFieldsMsg(err))
		}
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// unknownFieldsMsg strips yaml's "yaml: unmarshal errors:\n  line N: " prefix.
func unknownFieldsMsg(err error) string {
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msgs := make([]string, 0, len(te.Errors))
		for _, m := range te.Errors {
			if i := strings.Index(m, ": "); i >= 0 && strings.HasPrefix(m, "line ") {
				m = m[i+2:]
			}
			msgs = append(msgs, m)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}

func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// Calibration.
	if strings.TrimSpace(cfg.Calibration.Dir) == "" {
		cfg.Calibration.Dir = "."
	}
	if strings.TrimSpace(cfg.Calibration.File) == "" {
		cfg.Calibration.File = "fancontrol.csv"
	}
	if strings.ContainsAny(cfg.Calibration.File, `/\`) {
		return fmt.Errorf("calibration.file must be a file name, not a path")
	}

	// ADC.
	cfg.ADC.Backend = strings.ToLower(strings.TrimSpace(cfg.ADC.Backend))
	if cfg.ADC.Backend == "" {
		cfg.ADC.Backend = "fixed"
	}
	if cfg.ADC.Divider == 0 {
		cfg.ADC.Divider = 1
	}
	if cfg.ADC.Divider < 0 {
		return fmt.Errorf("adc.divider must be > 0")
	}
	switch cfg.ADC.Backend {
	case "fixed":
		if cfg.ADC.FixedVoltage == nil {
			v := 5.0
			cfg.ADC.FixedVoltage = &v
		}
	case "ads1115":
		if cfg.ADC.I2CBus == "" {
			cfg.ADC.I2CBus = "/dev/i2c-1"
		}
		if cfg.ADC.Addr == 0 {
			cfg.ADC.Addr = 0x48
		}
		if cfg.ADC.Addr < 0x48 || cfg.ADC.Addr > 0x4B {
			return fmt.Errorf("adc.addr must be in 0x48..0x4B for ads1115")
		}
		if cfg.ADC.Channel < 0 || cfg.ADC.Channel > 3 {
			return fmt.Errorf("adc.channel must be in 0..3 for ads1115")
		}
		if cfg.ADC.VRef == 0 {
			cfg.ADC.VRef = 4.096
		}
		if cfg.ADC.FullScale == 0 {
			cfg.ADC.FullScale = 32767
		}
	case "iio":
		if cfg.ADC.IIODevice == "" {
			cfg.ADC.IIODevice = "/sys/bus/iio/devices/iio:device0"
		}
		if cfg.ADC.Channel < 0 {
			return fmt.Errorf("adc.channel must be >= 0")
		}
		if cfg.ADC.VRef <= 0 {
			return fmt.Errorf("adc.vref is required when adc.backend is 'iio'")
		}
		if cfg.ADC.FullScale <= 0 {
			return fmt.Errorf("adc.full_scale is required when adc.backend is 'iio'")
		}
	default:
		return fmt.Errorf("adc.backend must be one of: fixed, ads1115, iio")
	}

	// Fan output.
	cfg.Fan.Backend = strings.ToLower(strings.TrimSpace(cfg.Fan.Backend))
	if cfg.Fan.Backend == "" {
		cfg.Fan.Backend = "pwm"
	}
	switch cfg.Fan.Backend {
	case "pwm":
		if cfg.Fan.PWMChannel < 0 {
			return fmt.Errorf("fan.pwm_channel must be >= 0")
		}
	case "gpio":
		if cfg.Fan.GPIOPin == 0 {
			cfg.Fan.GPIOPin = 18
		}
		if cfg.Fan.GPIOPin < 0 {
			return fmt.Errorf("fan.gpio_pin must be > 0")
		}
	default:
		return fmt.Errorf("fan.backend must be one of: pwm, gpio")
	}
	if cfg.Fan.PWMFrequency == 0 {
		cfg.Fan.PWMFrequency = 25000
	}
	if cfg.Fan.PWMFrequency < 0 {
		return fmt.Errorf("fan.pwm_frequency must be > 0")
	}
	if cfg.Fan.Resolution == 0 {
		cfg.Fan.Resolution = 255
	}
	if cfg.Fan.Resolution < 0 {
		return fmt.Errorf("fan.resolution must be > 0")
	}
	if cfg.Fan.UpdateInterval == 0 {
		cfg.Fan.UpdateInterval = 1 * time.Second
	}
	if cfg.Fan.UpdateInterval < 0 {
		return fmt.Errorf("fan.update_interval must be > 0")
	}

	// Web.
	if cfg.Web.Enable && strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = ":8080"
	}

	return nil
}
