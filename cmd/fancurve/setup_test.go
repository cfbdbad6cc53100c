package main

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fancurve/internal/calibration"
	"fancurve/internal/config"
	"fancurve/internal/curvefit"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(oldOut)
		log.SetFlags(oldFlags)
	})
	return &buf
}

func TestLoadCalibration_CreatesDefaultAndLogsTable(t *testing.T) {
	buf := captureLog(t)
	dir := t.TempDir()

	cal := loadCalibration(config.CalibrationConfig{Dir: dir, File: "fancontrol.csv"})
	if cal.Source != calibration.SourceDefault || !cal.Created {
		t.Fatalf("source=%s created=%v", cal.Source, cal.Created)
	}
	if _, err := os.Stat(filepath.Join(dir, "fancontrol.csv")); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"calibration file not found",
		"wrote default calibration",
		"voltage, fan%, pwm%",
		"5.00, 100.00, 100.00",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
}

func TestLoadCalibration_ReadsFileAndListsDir(t *testing.T) {
	buf := captureLog(t)
	dir := t.TempDir()
	body := "Voltage,FanPercent,PWM\n1,10,30\n2,40,50\n3,90,95\n"
	if err := os.WriteFile(filepath.Join(dir, "bench.csv"), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cal := loadCalibration(config.CalibrationConfig{Dir: dir, File: "bench.csv"})
	if cal.Source != calibration.SourceFile || cal.Set.Len() != 3 {
		t.Fatalf("source=%s len=%d", cal.Source, cal.Set.Len())
	}
	if len(cal.Files) != 1 || cal.Files[0].Path != "bench.csv" {
		t.Fatalf("files=%+v", cal.Files)
	}
	if !strings.Contains(buf.String(), "bench.csv size=") {
		t.Fatalf("listing not logged:\n%s", buf.String())
	}
}

func TestLoadCalibration_BadFileFallsBack(t *testing.T) {
	captureLog(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fancontrol.csv"), []byte("1,2,3\n1,x,3\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cal := loadCalibration(config.CalibrationConfig{Dir: dir, File: "fancontrol.csv"})
	if cal.Source != calibration.SourceFallback || cal.Set.Len() != calibration.MaxSamples {
		t.Fatalf("source=%s len=%d", cal.Source, cal.Set.Len())
	}
}

func TestConfigMapping(t *testing.T) {
	cfg, err := config.Parse([]byte("adc:\n  backend: ads1115\n  divider: 2\nfan:\n  pwm_chip: 1\n  update_interval: 2s\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ac := analogConfig(cfg.ADC)
	if ac.Backend != "ads1115" || ac.Addr != 0x48 || ac.Scale.VRef != 4.096 || ac.Scale.Divider != 2 {
		t.Fatalf("analog=%+v", ac)
	}
	fc := fanConfig(cfg.Fan)
	if fc.PWMChip != 1 || fc.UpdateInterval != 2*time.Second || fc.Resolution != 255 {
		t.Fatalf("fan=%+v", fc)
	}
}

func TestLoadCalibration_TooFewSamplesFallsBack(t *testing.T) {
	for name, body := range map[string]string{
		"Empty":      "",
		"HeaderOnly": "Voltage,FanPercent,PWM\n",
		"TwoRows":    "1,10,20\n2,20,30\n",
	} {
		t.Run(name, func(t *testing.T) {
			buf := captureLog(t)
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "fancontrol.csv"), []byte(body), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			cal := loadCalibration(config.CalibrationConfig{Dir: dir, File: "fancontrol.csv"})
			if cal.Source != calibration.SourceFallback || cal.Set.Len() != calibration.MaxSamples {
				t.Fatalf("source=%s len=%d", cal.Source, cal.Set.Len())
			}
			if !errors.Is(cal.Warning, curvefit.ErrTooFewSamples) {
				t.Fatalf("warning=%v want ErrTooFewSamples", cal.Warning)
			}
			if !strings.Contains(buf.String(), "using built-in samples") {
				t.Fatalf("fallback not logged:\n%s", buf.String())
			}
		})
	}
}
