package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"

	"fancurve/internal/calibration"
	"fancurve/internal/curvefit"
)

func main() {
	dir := flag.String("dir", ".", "Calibration directory")
	file := flag.String("file", calibration.DefaultFileName, "Calibration CSV inside -dir")
	eval := flag.String("eval", "", "Comma-separated voltages to evaluate (e.g. 0.5,2.5,5)")
	list := flag.Bool("list", false, "List the calibration directory")
	initDefault := flag.Bool("init", false, "Write the built-in calibration to -file if it does not exist")
	flag.Parse()

	if *list {
		files, err := calibration.List(*dir)
		if err != nil {
			pterm.Error.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			pterm.Info.Printf("%s is empty\n", *dir)
		} else {
			pterm.DefaultSection.Printf("Calibration directory: %s\n", *dir)
			pterm.DefaultTable.WithHasHeader().WithData(fileTable(files)).Render()
		}
	}

	if *initDefault {
		path := filepath.Join(*dir, *file)
		if _, err := calibration.Find(*dir, *file); err == nil {
			pterm.Warning.Printf("%s already exists, not overwriting\n", path)
		} else if err := calibration.Save(path, calibration.Default()); err != nil {
			pterm.Error.Printf("Failed to write default calibration: %v\n", err)
			os.Exit(1)
		} else {
			pterm.Success.Printf("Wrote default calibration: %s\n", path)
		}
	}

	volts, err := parseVoltages(*eval)
	if err != nil {
		pterm.Error.Printf("Invalid -eval: %v\n", err)
		os.Exit(1)
	}

	res, err := calibration.Provide(*dir, *file, false)
	if err != nil {
		pterm.Error.Printf("Calibration unreadable: %v\n", err)
		os.Exit(1)
	}
	switch res.Source {
	case calibration.SourceFile:
		pterm.Info.Printf("Using %s (%d samples)\n", res.Path, res.Set.Len())
	default:
		pterm.Warning.Printf("Using built-in samples: %v\n", res.Warning)
	}

	pterm.DefaultSection.Println("Samples")
	pterm.DefaultTable.WithHasHeader().WithData(sampleTable(res.Set)).Render()

	chain, err := curvefit.FitChain(res.Set.Voltages(), res.Set.FanPercents(), res.Set.PWMPercents())
	if err != nil {
		pterm.Error.Printf("Fit failed: %v\n", err)
		os.Exit(1)
	}
	pterm.DefaultBox.WithTitle("Coefficients (a*x^2 + b*x + c)").WithTitleTopLeft().Println(coefficientText(chain))

	if len(volts) > 0 {
		pterm.DefaultSection.Println("Evaluation")
		pterm.DefaultTable.WithHasHeader().WithData(evalTable(chain, volts)).Render()
	}
}
