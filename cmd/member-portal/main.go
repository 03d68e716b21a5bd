package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/Veraticus/member-portal/pkg/config"
	"github.com/Veraticus/member-portal/pkg/log"
)

func main() {
	var (
		configPath string
		listenAddr string
		dbPath     string
		logFile    string
		verbose    bool
		quiet      bool
		help       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVarP(&listenAddr, "listen", "l", "", "Address to listen on (overrides config)")
	flag.StringVar(&dbPath, "db", "", "Path to the SQLite database (overrides config)")
	flag.StringVar(&logFile, "log-file", "", "Also write debug logs as JSON lines to this file")
	flag.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flag.BoolVar(&quiet, "quiet", false, "Disable ntfy admin alerts")
	flag.BoolVarP(&help, "help", "h", false, "Show help message")
	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if verbose {
		cfg.Log.Verbose = true
	}
	if quiet {
		cfg.Quiet = true
	}

	if err := log.Init(log.Options{
		Verbose:    cfg.Log.Verbose,
		JSONFormat: cfg.Log.JSON,
		File:       logFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	deps, err := NewDependencies(cfg)
	if err != nil {
		log.Error("creating dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewApplication(deps).Run(ctx); err != nil {
		log.Error("portal stopped", "error", err)
		deps.Close()
		log.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("member-portal - membership portal API server")
	fmt.Println()
	fmt.Println("Usage: member-portal [OPTIONS]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  PORTAL_CONFIG           Path to config file")
	fmt.Println("  PORTAL_LISTEN           Listen address (default: :8080)")
	fmt.Println("  PORTAL_DB               SQLite database path (default: member-portal.db)")
	fmt.Println("  PORTAL_SESSION_TIMEOUT  Inactivity sign-out timeout (default: 30m)")
	fmt.Println("  PORTAL_THROTTLE_WINDOW  Activity throttle window (default: 1s)")
	fmt.Println("  PORTAL_NTFY_SERVER      Ntfy server URL (default: https://ntfy.sh)")
	fmt.Println("  PORTAL_NTFY_TOPIC       Ntfy topic for admin alerts")
	fmt.Println("  PORTAL_QUIET            Disable ntfy admin alerts (true/false)")
	fmt.Println("  PORTAL_VERBOSE          Enable debug logging (true/false)")
	fmt.Println("  PORTAL_LOG_JSON         Log as JSON (true/false)")
	fmt.Println()
	fmt.Println("Configuration file: ~/.config/member-portal/config.yaml")
}
