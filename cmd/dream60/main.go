package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/SudarshanaRao/dream60/internal/app"
	"github.com/SudarshanaRao/dream60/internal/auth"
	"github.com/SudarshanaRao/dream60/internal/config"
	"github.com/SudarshanaRao/dream60/internal/logger"
)

var (
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are used if not set)")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dsn := flag.String("db", "", "Database DSN (overrides config)")
	adminPw := flag.String("adminpw", "", "Admin password (auto-generated if not set)")
	logLevel := flag.String("loglevel", "", "Log level (debug, info, warn, error)")
	autoSchedule := flag.Bool("autoschedule", false, "Create the daily auction slots automatically")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Dream60 - timed four-round auction engine

Usage:
  dream60 [options]

Options:
  -config str    YAML config file
  -port int      HTTP server port (default 8060)
  -db string     Database DSN (default "dream60.db")
  -adminpw str   Admin password (auto-generated if not set)
  -loglevel str  Log level: debug, info, warn, error (default "info")
  -autoschedule  Create the daily auction slots automatically
  -version       Show version and exit
  -help          Show this help message

Examples:
  dream60                               # Run on port 8060 with dream60.db
  dream60 -config /etc/dream60.yaml     # Use a config file
  dream60 -port 8080 -autoschedule      # Schedule daily slots on port 8080
  dream60 -adminpw secret123            # Use specific admin password

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("dream60 %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *autoSchedule {
		cfg.Engine.AutoSchedule = true
	}

	appLog := logger.NewWithWriter(os.Stdout, logger.ParseFormat(cfg.Log.Format), logger.ParseLevel(cfg.Log.Level))
	if cfg.Server.HTTPLogging {
		appLog.EnableHTTPLogging()
	}

	// Setup admin authentication
	password := *adminPw
	if password == "" {
		password = cfg.Admin.Password
	}
	generated := password == ""
	if generated {
		password = auth.GeneratePassword()
	}
	adminAuth := auth.New(password)

	a, err := app.New(cfg, appLog, adminAuth)
	if err != nil {
		appLog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if generated {
		appLog.Info("Admin password", "password", password)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		appLog.Error("Server failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}

// loadConfig reads path when set, otherwise returns the defaults
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadAndValidate(path)
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
