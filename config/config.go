package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Output formats accepted by the capture writer.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatDual = "dual"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL          string
	MaxPages         int // 0 walks the catalogue until it runs out
	PageDelay        time.Duration
	Timeout          time.Duration
	UserAgent        string
	OutputDir        string
	OutputFormat     string // csv, json, or dual
	RespectRobotsTxt bool
	Verbose          bool
	MetricsAddr      string
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://books.toscrape.com/catalogue/",
		MaxPages:         0,
		PageDelay:        time.Second,
		Timeout:          10 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		OutputDir:        "data/raw",
		OutputFormat:     FormatCSV,
		RespectRobotsTxt: false,
		Verbose:          false,
		MetricsAddr:      "",
	}
}

// PageURL returns the listing page URL for the 1-based page number.
func (c *Config) PageURL(page int) string {
	return fmt.Sprintf("%spage-%d.html", c.BaseURL, page)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		return fmt.Errorf("base URL must end with a slash")
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	switch c.OutputFormat {
	case FormatCSV, FormatJSON, FormatDual:
	default:
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
