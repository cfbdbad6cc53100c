package analog

import (
	"fmt"
	"math"
	"time"

	"fancurve/internal/i2c"
)

var sleep = time.Sleep

// ADS1115 register map and config bits.
const (
	adsRegConversion = 0x00
	adsRegConfig     = 0x01

	adsOS         = 0x8000
	adsModeSingle = 0x0100
	adsDR128      = 0x0080
	adsCompQueOff = 0x0003

	adsFullScale = 32767

	adsConvTimeout = 100 * time.Millisecond
)

// PGA full-scale ranges in volts, indexed by the PGA field value.
var adsPGARanges = []float64{6.144, 4.096, 2.048, 1.024, 0.512, 0.256}

type regIO16 interface {
	ReadRegU16(reg byte) (uint16, error)
	WriteRegU16(reg byte, v uint16) error
}

// ADS1115 reads one single-ended channel of a TI ADS1115 in single-shot mode.
type ADS1115 struct {
	dev     regIO16
	bus     *i2c.Bus
	channel int
	pga     int
	scale   Scale
}

func openADS1115(cfg Config) (Input, error) {
	bus, err := i2c.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("analog: ads1115: %w", err)
	}
	d, err := newADS1115(bus.Dev(cfg.Addr), cfg.Channel, cfg.Scale)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	d.bus = bus
	return d, nil
}

func newADS1115(dev regIO16, channel int, scale Scale) (*ADS1115, error) {
	if dev == nil {
		return nil, fmt.Errorf("analog: ads1115: dev is nil")
	}
	if channel < 0 || channel > 3 {
		return nil, fmt.Errorf("analog: ads1115: channel %d out of range 0..3", channel)
	}
	if scale.FullScale == 0 {
		scale.FullScale = adsFullScale
	}
	pga, err := adsPGAFor(scale.VRef)
	if err != nil {
		return nil, err
	}
	scale.VRef = adsPGARanges[pga]
	return &ADS1115{dev: dev, channel: channel, pga: pga, scale: scale}, nil
}

// adsPGAFor picks the gain whose range matches vref. Zero selects 4.096 V.
func adsPGAFor(vref float64) (int, error) {
	if vref == 0 {
		return 1, nil
	}
	for i, r := range adsPGARanges {
		if math.Abs(r-vref) < 1e-6 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("analog: ads1115: vref %.3f is not a PGA range (6.144, 4.096, 2.048, 1.024, 0.512, 0.256)", vref)
}

func (d *ADS1115) config() uint16 {
	mux := uint16(0x4+d.channel) << 12
	return adsOS | mux | uint16(d.pga)<<9 | adsModeSingle | adsDR128 | adsCompQueOff
}

// ReadRaw starts a conversion and returns the signed result.
func (d *ADS1115) ReadRaw() (int16, error) {
	if err := d.dev.WriteRegU16(adsRegConfig, d.config()); err != nil {
		return 0, fmt.Errorf("analog: ads1115: start conversion: %w", err)
	}
	// 128 SPS => ~8ms per conversion.
	deadline := time.Now().Add(adsConvTimeout)
	for {
		sleep(2 * time.Millisecond)
		cfg, err := d.dev.ReadRegU16(adsRegConfig)
		if err != nil {
			return 0, fmt.Errorf("analog: ads1115: poll: %w", err)
		}
		if cfg&adsOS != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("analog: ads1115: conversion timeout")
		}
	}
	v, err := d.dev.ReadRegU16(adsRegConversion)
	if err != nil {
		return 0, fmt.Errorf("analog: ads1115: read conversion: %w", err)
	}
	return int16(v), nil
}

func (d *ADS1115) ReadVoltage() (float64, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	return d.scale.Volts(int64(raw)), nil
}

func (d *ADS1115) Close() error {
	if d.bus == nil {
		return nil
	}
	err := d.bus.Close()
	d.bus = nil
	return err
}
