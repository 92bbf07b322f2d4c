package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pborman/getopt"

	"github.com/dougsko/ddstune/pkg/config"
	"github.com/dougsko/ddstune/pkg/engine"
	"github.com/dougsko/ddstune/pkg/logging"
)

const Build = "development"

func main() {
	configPath := getopt.StringLong("config", 'c', "config.yaml", "Configuration file path")
	version := getopt.BoolLong("version", 'v', "Show version information")
	help := getopt.BoolLong("help", 'h', "display help")
	getopt.Parse()

	if *help {
		getopt.Usage()
		os.Exit(0)
	}
	if *version {
		fmt.Printf("ddstuned version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Infof("main", "ddstuned version %s starting...", engine.Version)
	logging.Info("main", "Tuner configuration", map[string]interface{}{
		"reference_hz":    cfg.Tuner.ReferenceClockHz,
		"intermediate_hz": cfg.Tuner.IntermediateHz,
		"backend":         cfg.Hardware.Backend,
		"display":         cfg.Hardware.Display,
	})
	logging.Infof("main", "Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port)

	daemon, err := NewTunerDaemon(cfg)
	if err != nil {
		logging.Errorf("main", "Failed to create daemon: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Errorf("main", "Failed to start daemon: %v", err)
		os.Exit(1)
	}
	logging.Info("main", "ddstuned started successfully")

	<-sigChan
	logging.Info("main", "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Errorf("main", "Error during shutdown: %v", err)
	}
	logging.Info("main", "ddstuned stopped")
}
