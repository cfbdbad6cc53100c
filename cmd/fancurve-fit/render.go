package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"fancurve/internal/calibration"
	"fancurve/internal/curvefit"
)

func parseVoltages(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", p)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%q is not finite", p)
		}
		out = append(out, float32(f))
	}
	return out, nil
}

func fileTable(files []calibration.FileInfo) pterm.TableData {
	data := pterm.TableData{{"Path", "Size", "Modified"}}
	for _, f := range files {
		if f.Dir {
			data = append(data, []string{f.Path + "/", "-", f.ModTime.Format("2006-01-02 15:04")})
			continue
		}
		data = append(data, []string{f.Path, strconv.FormatInt(f.Size, 10), f.ModTime.Format("2006-01-02 15:04")})
	}
	return data
}

func sampleTable(set calibration.Set) pterm.TableData {
	data := pterm.TableData{{"#", "Voltage", "Fan %", "PWM %"}}
	for i, sm := range set.Samples() {
		data = append(data, []string{
			strconv.Itoa(i),
			fmt.Sprintf("%.2f", sm.Voltage),
			fmt.Sprintf("%.2f", sm.FanPercent),
			fmt.Sprintf("%.2f", sm.PWMPercent),
		})
	}
	return data
}

func evalTable(chain curvefit.Chain, volts []float32) pterm.TableData {
	data := pterm.TableData{{"Voltage", "Fan %", "Duty %"}}
	for _, v := range volts {
		fan, duty := chain.Eval(v)
		data = append(data, []string{
			fmt.Sprintf("%.2f", v),
			fmt.Sprintf("%.1f", fan),
			fmt.Sprintf("%.1f", duty),
		})
	}
	return data
}

func coefficientText(chain curvefit.Chain) string {
	return fmt.Sprintf("voltage->fan: %s\nfan->pwm:     %s", chain.VoltageToFan, chain.FanToPWM)
}
