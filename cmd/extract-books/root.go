package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/extract-books/config"
	"github.com/aluiziolira/extract-books/scraper"
)

type flags struct {
	configFile    string
	baseURL       string
	maxPages      int
	delay         time.Duration
	timeout       time.Duration
	userAgent     string
	outputDir     string
	format        string
	respectRobots bool
	verbose       bool
	metricsAddr   string
}

func newRootCmd(f *flags) *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "extract-books",
		Short:         "Capture every listing of a paginated book catalogue into a timestamped CSV file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "extract-books.yaml", "YAML config file (ignored when absent)")
	fs.StringVar(&f.baseURL, "base-url", defaults.BaseURL, "Catalogue base URL; pages are <base-url>page-N.html")
	fs.IntVar(&f.maxPages, "pages", defaults.MaxPages, "Stop after this many pages (0 walks the whole catalogue)")
	fs.DurationVar(&f.delay, "delay", defaults.PageDelay, "Pause between page requests")
	fs.DurationVar(&f.timeout, "timeout", defaults.Timeout, "Per-request timeout")
	fs.StringVar(&f.userAgent, "user-agent", defaults.UserAgent, "User-Agent header")
	fs.StringVar(&f.outputDir, "output-dir", defaults.OutputDir, "Directory for capture files")
	fs.StringVar(&f.format, "format", defaults.OutputFormat, "Output format: csv, json, or dual")
	fs.BoolVar(&f.respectRobots, "respect-robots", defaults.RespectRobotsTxt, "Respect robots.txt directives")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose logging")
	fs.StringVar(&f.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")

	return cmd
}

// loadConfig layers defaults, the config file, SCRAPER_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.DefaultConfig()

	fc, err := config.LoadFile(f.configFile)
	if err != nil {
		return nil, err
	}
	fc.Apply(cfg)

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if changed("pages") {
		cfg.MaxPages = f.maxPages
	}
	if changed("delay") {
		cfg.PageDelay = f.delay
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if changed("user-agent") {
		cfg.UserAgent = f.userAgent
	}
	if changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if changed("format") {
		cfg.OutputFormat = strings.ToLower(f.format)
	}
	if changed("respect-robots") {
		cfg.RespectRobotsTxt = f.respectRobots
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	cfg.Verbose = f.verbose

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	logger.Info("starting book data extraction",
		slog.String("base_url", cfg.BaseURL),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("format", cfg.OutputFormat),
	)

	s, err := scraper.NewScraper(cfg, scraper.WithLogger(logger))
	if err != nil {
		logger.Error("initialising scraper", slog.Any("error", err))
		return err
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics, logger)
	defer stopMetricsServer(metricsServer, logger)

	result, err := s.Extract(ctx)
	if err != nil {
		logger.Error("extraction failed", slog.Any("error", err))
		return err
	}

	logger.Info("book data extraction completed", slog.String("path", result.OutputFile))
	printSummary(os.Stdout, result)
	return nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics, logger *slog.Logger) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	logger.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func stopMetricsServer(server *http.Server, logger *slog.Logger) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
