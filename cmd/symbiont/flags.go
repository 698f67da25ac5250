package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// knownServices is the set of names accepted by the -services flag.
var knownServices = []string{
	"gateway", "perception", "preprocess", "textgen", "vectormemory", "knowledgegraph",
}

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	Services        []string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}
	var services string

	flag.StringVar(&services, "services",
		getEnv("SYMBIONT_SERVICES", "all"),
		"Comma-separated services to run, or \"all\" (env: SYMBIONT_SERVICES)")

	flag.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error; overrides SYMBIONT_LOG_LEVEL")

	flag.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text; overrides SYMBIONT_LOG_FORMAT")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SYMBIONT_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SYMBIONT_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = printHelp
	flag.Parse()

	if services == "all" || services == "" {
		cfg.Services = append([]string(nil), knownServices...)
	} else {
		for _, s := range strings.Split(services, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Services = append(cfg.Services, s)
			}
		}
	}
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	for _, svc := range cfg.Services {
		known := false
		for _, k := range knownServices {
			if svc == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown service %q (known: %s)", svc, strings.Join(knownServices, ", "))
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown-timeout must be positive")
	}
	return nil
}

func (c *CLIConfig) enabled(name string) bool {
	for _, svc := range c.Services {
		if svc == name {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `%s - subject-addressed pub/sub worker pipeline

Usage:
  %s [flags]

Flags:
  -services string
        Comma-separated services to run, or "all" (default "all")
        Known services: %s
  -log-level string
        Log level: debug, info, warn, error; overrides SYMBIONT_LOG_LEVEL
  -log-format string
        Log format: json, text; overrides SYMBIONT_LOG_FORMAT
  -shutdown-timeout duration
        Graceful shutdown timeout (default 30s)
  -version, -v
        Show version information
  -help, -h
        Show this help

Configuration is read from SYMBIONT_-prefixed environment variables,
optionally via a .env file in the working directory.
`, appName, appName, strings.Join(knownServices, ", "))
}
