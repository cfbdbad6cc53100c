package web

import (
	"sync/atomic"
	"time"

	"fancurve/internal/calibration"
	"fancurve/internal/curvefit"
	"fancurve/internal/fancontrol"
)

const serviceName = "fancurve"

// FanSource is the part of the fan service the status API reads.
type FanSource interface {
	Snapshot() fancontrol.Snapshot
}

// CalibrationInfo is what the controller was started with.
type CalibrationInfo struct {
	Source  string                 `json:"source"`
	Path    string                 `json:"path"`
	Samples []calibration.Sample   `json:"samples"`
	Chain   curvefit.Chain         `json:"chain"`
	Files   []calibration.FileInfo `json:"files,omitempty"`
}

type Status struct {
	startUnixNano int64
	adcBackend    atomic.Value // string
	fanBackend    atomic.Value // string
	interval      atomic.Value // string
	calibration   atomic.Value // CalibrationInfo
	fan           atomic.Value // fanHolder
}

type fanHolder struct{ src FanSource }

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.adcBackend.Store("")
	s.fanBackend.Store("")
	s.interval.Store("")
	s.calibration.Store(CalibrationInfo{})
	s.fan.Store(fanHolder{})
	return s
}

func (s *Status) SetStatic(adcBackend, fanBackend, interval string) {
	if adcBackend != "" {
		s.adcBackend.Store(adcBackend)
	}
	if fanBackend != "" {
		s.fanBackend.Store(fanBackend)
	}
	if interval != "" {
		s.interval.Store(interval)
	}
}

func (s *Status) SetCalibration(info CalibrationInfo) {
	s.calibration.Store(info)
}

func (s *Status) Calibration() CalibrationInfo {
	return s.calibration.Load().(CalibrationInfo)
}

func (s *Status) SetFan(src FanSource) {
	s.fan.Store(fanHolder{src: src})
}

type StatusSnapshot struct {
	Service    string               `json:"service"`
	NowUTC     string               `json:"now_utc"`
	UptimeSec  int64                `json:"uptime_sec"`
	ADCBackend string               `json:"adc_backend"`
	FanBackend string               `json:"fan_backend"`
	Interval   string               `json:"interval"`
	Fan        *fancontrol.Snapshot `json:"fan,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:    serviceName,
		NowUTC:     nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:  int64(nowUTC.Sub(start).Seconds()),
		ADCBackend: s.adcBackend.Load().(string),
		FanBackend: s.fanBackend.Load().(string),
		Interval:   s.interval.Load().(string),
	}
	if h := s.fan.Load().(fanHolder); h.src != nil {
		fs := h.src.Snapshot()
		snap.Fan = &fs
	}
	return snap
}
