package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fancurve/internal/analog"
	"fancurve/internal/config"
	"fancurve/internal/curvefit"
	"fancurve/internal/fancontrol"
	"fancurve/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./fancurve.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("fancurve starting")

	cal := loadCalibration(cfg.Calibration)
	chain, err := curvefit.FitChain(cal.Set.Voltages(), cal.Set.FanPercents(), cal.Set.PWMPercents())
	if err != nil {
		log.Fatalf("curve fit failed: %v", err)
	}
	logChain(chain)

	input, err := analog.Open(analogConfig(cfg.ADC))
	if err != nil {
		log.Fatalf("analog input init failed: %v", err)
	}
	defer input.Close()
	log.Printf("analog input backend=%s", cfg.ADC.Backend)

	svc := fancontrol.New(fanConfig(cfg.Fan), input, chain)
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("fancontrol init failed: %v", err)
	}
	defer svc.Close()
	log.Printf("fan output backend=%s interval=%s", cfg.Fan.Backend, cfg.Fan.UpdateInterval)

	status := web.NewStatus()
	status.SetStatic(cfg.ADC.Backend, cfg.Fan.Backend, cfg.Fan.UpdateInterval.String())
	status.SetCalibration(web.CalibrationInfo{
		Source:  string(cal.Source),
		Path:    cal.Path,
		Samples: cal.Set.Samples(),
		Chain:   chain,
		Files:   cal.Files,
	})
	status.SetFan(svc)

	if cfg.Web.Enable {
		go func() {
			log.Printf("web listening on %s", cfg.Web.Listen)
			h := web.Handler(status, logs, cfg.Web.CORSOrigins)
			if err := web.Serve(ctx, cfg.Web.Listen, h); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Printf("fancurve stopping")
}
