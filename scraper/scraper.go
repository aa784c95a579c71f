// Package scraper walks a paginated catalogue and captures its listings.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/extract-books/config"
	"github.com/aluiziolira/extract-books/models"
	"github.com/aluiziolira/extract-books/parser"
	"github.com/aluiziolira/extract-books/pipeline"
)

// Scraper fetches catalogue pages one at a time until the catalogue runs
// out, then hands the records to a capture writer.
type Scraper struct {
	cfg     *config.Config
	fetcher *pageFetcher
	writer  *pipeline.CaptureWriter
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(time.Duration)
	Metrics *Metrics

	transport http.RoundTripper
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithLogger sets the logger. The caller owns its handler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for run timing and capture names.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleep replaces time.Sleep for the pause between pages.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Scraper) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithTransport routes page requests through rt instead of the default
// HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Scraper) {
		s.transport = rt
	}
}

// WithMetrics shares a metrics bundle instead of creating one.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) {
		if m != nil {
			s.Metrics = m
		}
	}
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Scraper{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Metrics == nil {
		s.Metrics = NewMetrics()
	}

	fetcher, err := newPageFetcher(cfg, s.logger, s.Metrics)
	if err != nil {
		return nil, err
	}
	if s.transport != nil {
		fetcher.collector.WithTransport(s.transport)
	}
	s.fetcher = fetcher
	s.writer = pipeline.NewCaptureWriter(cfg.OutputDir, cfg.OutputFormat, s.now, s.logger)
	return s, nil
}

// Run walks page-1, page-2, ... and returns every record found. It stops at
// the first page with no items or the first failed fetch; neither is an
// error. A page whose items do not have the expected shape is an error.
func (s *Scraper) Run(ctx context.Context) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.ScraperResult{
		RunID:     uuid.NewString(),
		StartTime: s.now(),
	}
	logger := s.logger.With(slog.String("run_id", result.RunID))

	for page := 1; ; page++ {
		if s.cfg.MaxPages > 0 && page > s.cfg.MaxPages {
			result.StopReason = models.StopMaxPages
			break
		}
		if ctx.Err() != nil {
			result.StopReason = models.StopCancelled
			break
		}

		pageURL := s.cfg.PageURL(page)
		logger.Info("scraping page", slog.Int("page", page), slog.String("url", pageURL))

		result.RequestCount++
		doc, err := s.fetcher.Fetch(pageURL)
		if err != nil {
			result.StopReason = models.StopFetchFailed
			result.FailedURL = pageURL
			break
		}

		books, err := parser.ParsePage(doc, s.cfg.BaseURL)
		if err != nil {
			result.EndTime = s.now()
			return result, fmt.Errorf("page %d: %w", page, err)
		}
		if len(books) == 0 {
			logger.Info("no more books found, ending scrape", slog.Int("page", page))
			result.StopReason = models.StopEndOfCatalogue
			break
		}

		result.Books = append(result.Books, books...)
		result.PageCount++
		s.Metrics.AddPage(len(books))
		logger.Debug("page scraped", slog.Int("page", page), slog.Int("items", len(books)))

		s.sleep(s.cfg.PageDelay)
	}

	result.EndTime = s.now()
	result.TotalCount = len(result.Books)
	logger.Info("scrape finished",
		slog.Int("books", result.TotalCount),
		slog.Int("pages", result.PageCount),
		slog.String("stop_reason", string(result.StopReason)),
	)
	return result, nil
}

// Extract runs the crawl and writes the capture file. result.OutputFile is
// empty when nothing was found. Parse failures abort before anything is
// written.
func (s *Scraper) Extract(ctx context.Context) (*models.ScraperResult, error) {
	result, err := s.Run(ctx)
	if err != nil {
		return result, err
	}

	path, err := s.writer.Write(result.Books)
	if err != nil {
		return result, fmt.Errorf("write capture: %w", err)
	}
	result.OutputFile = path
	return result, nil
}

// ExtractBooks captures the default catalogue with default settings and
// returns the capture file path, or "" when no books were found.
func ExtractBooks() (string, error) {
	return extractBooks(config.DefaultConfig())
}

func extractBooks(cfg *config.Config, opts ...Option) (string, error) {
	s, err := NewScraper(cfg, opts...)
	if err != nil {
		return "", err
	}

	s.logger.Info("starting book data extraction")
	result, err := s.Extract(context.Background())
	if err != nil {
		return "", err
	}
	s.logger.Info("book data extraction completed", slog.String("path", result.OutputFile))
	return result.OutputFile, nil
}
