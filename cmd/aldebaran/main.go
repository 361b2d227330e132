package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"AldebaranChat/internal/chatbot"
	"AldebaranChat/internal/config"
)

func main() {
	var (
		configPath  string
		apiURL      string
		stressURL   string
		geocoderURL string
		dataDir     string
		logDir      string
		debug       bool
		lat, lon    float64
		timeout     time.Duration
		protected   string
	)

	flag.StringVar(&configPath, "config", config.DefaultConfigFile, "Path to the TOML config file")
	flag.StringVar(&apiURL, "api-url", config.DefaultAPIURL, "Aldebaran backend base URL")
	flag.StringVar(&stressURL, "stress-url", config.DefaultStressURL, "Stress analysis service base URL")
	flag.StringVar(&geocoderURL, "geocoder-url", config.DefaultGeocoderURL, "Geocoding service base URL")
	flag.StringVar(&dataDir, "data-dir", config.DefaultDataDir, "Directory for the local storage database")
	flag.StringVar(&logDir, "log-dir", config.DefaultLogDir, "Directory for logs, traces and metrics")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Float64Var(&lat, "lat", 0, "Your latitude, used to sort hospitals by distance")
	flag.Float64Var(&lon, "lon", 0, "Your longitude, used to sort hospitals by distance")
	flag.DurationVar(&timeout, "timeout", 0, "HTTP request timeout (0 waits until the request completes)")
	flag.StringVar(&protected, "protected", "", "Comma-separated route prefixes that require login")

	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// flags given on the command line win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api-url":
			cfg.APIURL = apiURL
		case "stress-url":
			cfg.StressURL = stressURL
		case "geocoder-url":
			cfg.GeocoderURL = geocoderURL
		case "data-dir":
			cfg.DataDir = dataDir
		case "log-dir":
			cfg.LogDir = logDir
		case "debug":
			cfg.Debug = debug
		case "lat":
			cfg.OriginLat = &lat
		case "lon":
			cfg.OriginLon = &lon
		case "timeout":
			cfg.RequestTimeout = timeout
		case "protected":
			cfg.ProtectedPaths = strings.Split(protected, ",")
		}
	})

	bot, err := chatbot.NewChatBot(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize chatbot: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// a second Ctrl-C during shutdown kills the process
	context.AfterFunc(ctx, stop)

	if err := bot.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
