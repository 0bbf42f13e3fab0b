package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/NicolasHaas/gotalk/pkg/logging"
	"github.com/NicolasHaas/gotalk/pkg/server"
	"github.com/NicolasHaas/gotalk/pkg/store"
	"github.com/NicolasHaas/gotalk/pkg/version"
)

func main() {
	defaults := server.DefaultConfig()

	configPath := flag.String("config", "", "YAML config file path")
	addr := flag.String("addr", defaults.Addr, "TCP bind address")
	password := flag.String("password", "", "Initial server password (empty: no authentication)")
	dbPath := flag.String("db", defaults.DBPath, "SQLite database file path")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (empty to disable)")
	logDir := flag.String("log-dir", "", "Directory for timestamped log files (empty: stdout only)")
	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg := defaults
	if *configPath != "" {
		var err error
		cfg, err = server.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	// Flags given explicitly win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "password":
			cfg.Password = *password
		case "db":
			cfg.DBPath = *dbPath
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		case "log-dir":
			cfg.LogDir = *logDir
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})
	if cfg.LogLevel == "" {
		cfg.LogLevel = *logLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = *logFormat
	}

	// Configure structured logging, teed to a timestamped file when asked.
	var out io.Writer = os.Stdout
	if cfg.LogDir != "" {
		f, err := logging.OpenLogFile(cfg.LogDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		out = io.MultiWriter(os.Stdout, f)
	}
	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: out,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	slog.Info("gotalk server", "version", version.String())

	st, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, server.Dependencies{Store: st})

	// Operator console on stdin, alongside the listener.
	go server.NewConsole(srv, os.Stdin, os.Stdout).Run()

	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
