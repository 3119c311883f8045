package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"noisedeck/audio"
	"noisedeck/ble"
	"noisedeck/config"
	"noisedeck/doctor"
	"noisedeck/log"
	"noisedeck/noise"
	"noisedeck/shutdown"
	"noisedeck/web"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (default searches ./noisedeck.yaml, /etc/noisedeck)")
	addrFlag := flag.String("addr", "", "bind address (overrides config)")
	logDirFlag := flag.String("log-dir", "", "log directory (overrides config and NOISEDECK_LOG_PATH)")
	pickDeviceFlag := flag.Bool("pick-device", false, "interactively pick the output device before serving")
	doctorFlag := flag.Bool("doctor", false, "run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("noisedeck %s\n", version)
		return
	}
	if *doctorFlag {
		os.Exit(doctor.Run())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.BindAddr = *addrFlag
	}
	if *logDirFlag != "" {
		cfg.LogDir = *logDirFlag
	}

	logDir, err := log.ResolveDir(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	svc := noise.NewService(audio.NewContext, time.Duration(cfg.MonitorIntervalMs)*time.Millisecond)
	defer svc.Close()

	if *pickDeviceFlag {
		index, err := pickDevice(svc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error picking device: %v\n", err)
			os.Exit(1)
		}
		svc.SelectDevice(index)
	}

	scanner := ble.NewScanner()
	server := web.NewServer(cfg.BindAddr, svc, scanner, time.Duration(cfg.ScanWindowMs)*time.Millisecond)

	log.SessionStart(cfg.BindAddr)
	fmt.Printf("noisedeck %s listening at http://%s\n", version, cfg.BindAddr)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	select {
	case sig := <-sigChan:
		log.Infof("received %v, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			log.Errorf("server error: %v", err)
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	svc.Close()
	log.SessionEnd()
}
