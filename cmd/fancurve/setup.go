package main

import (
	"errors"
	"fmt"
	"log"

	"fancurve/internal/analog"
	"fancurve/internal/calibration"
	"fancurve/internal/config"
	"fancurve/internal/curvefit"
	"fancurve/internal/fancontrol"
)

type loadedCalibration struct {
	calibration.Result
	Files []calibration.FileInfo
}

// loadCalibration lists the calibration directory, then reads the CSV or
// falls back to the built-in samples. Problems are logged; the controller
// always ends up with a usable set.
func loadCalibration(c config.CalibrationConfig) loadedCalibration {
	var out loadedCalibration

	files, err := calibration.List(c.Dir)
	if err != nil {
		log.Printf("calibration dir listing failed: %v", err)
	} else {
		log.Printf("calibration dir=%s entries=%d", c.Dir, len(files))
		for _, f := range files {
			if f.Dir {
				log.Printf("  %s/", f.Path)
				continue
			}
			log.Printf("  %s size=%d modified=%s", f.Path, f.Size, f.ModTime.Format("2006-01-02 15:04"))
		}
		out.Files = files
	}

	res, err := calibration.Provide(c.Dir, c.File, c.CreateDefaultEnabled())
	if err != nil {
		log.Printf("calibration load failed, using built-in samples: %v", err)
		res = calibration.Result{Set: calibration.Default(), Source: calibration.SourceFallback, Warning: err}
	}
	if res.Source == calibration.SourceFile && res.Set.Len() < curvefit.MinSamples {
		log.Printf("calibration file %s has %d samples, need %d; using built-in samples", res.Path, res.Set.Len(), curvefit.MinSamples)
		res = calibration.Result{
			Set:     calibration.Default(),
			Source:  calibration.SourceFallback,
			Path:    res.Path,
			Warning: fmt.Errorf("calibration: %s: %w", res.Path, curvefit.ErrTooFewSamples),
		}
	}
	switch {
	case res.Source == calibration.SourceFile:
		log.Printf("calibration file %s parsed samples=%d", res.Path, res.Set.Len())
	case errors.Is(res.Warning, calibration.ErrNotFound):
		log.Printf("calibration file not found: %s", res.Path)
	case res.Warning != nil:
		log.Printf("calibration warning: %v", res.Warning)
	}
	if res.Created {
		log.Printf("wrote default calibration to %s", res.Path)
	} else if res.Source == calibration.SourceDefault && c.CreateDefaultEnabled() {
		log.Printf("default calibration not written: %v", res.Warning)
	}
	out.Result = res

	log.Printf("calibration source=%s", res.Source)
	log.Printf("voltage, fan%%, pwm%%")
	for _, sm := range res.Set.Samples() {
		log.Printf("%.2f, %.2f, %.2f", sm.Voltage, sm.FanPercent, sm.PWMPercent)
	}
	return out
}

func logChain(c curvefit.Chain) {
	log.Printf("voltage->fan coefficients: %s", c.VoltageToFan)
	log.Printf("fan->pwm coefficients: %s", c.FanToPWM)
}

func analogConfig(c config.ADCConfig) analog.Config {
	return analog.Config{
		Backend:   c.Backend,
		I2CBus:    c.I2CBus,
		Addr:      c.Addr,
		Channel:   c.Channel,
		IIODevice: c.IIODevice,
		Scale: analog.Scale{
			VRef:      c.VRef,
			FullScale: c.FullScale,
			Divider:   c.Divider,
		},
		FixedVoltage: c.Fixed(),
	}
}

func fanConfig(c config.FanConfig) fancontrol.Config {
	return fancontrol.Config{
		Backend:        c.Backend,
		PWMChip:        c.Chip(),
		PWMChannel:     c.PWMChannel,
		GPIOPin:        c.GPIOPin,
		PWMFrequency:   c.PWMFrequency,
		Resolution:     c.Resolution,
		UpdateInterval: c.UpdateInterval,
	}
}
