package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/extract-books/models"
)

func TestLoadConfigLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extract-books.yaml")
	body := "base_url: https://file.test/catalogue/\noutput_dir: from-file\npage_delay: 3s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("SCRAPER_OUTPUT_DIR", "from-env")

	f := &flags{}
	cmd := newRootCmd(f)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--delay", "500ms"}))

	cfg, err := loadConfig(cmd, f)
	require.NoError(t, err)

	assert.Equal(t, "https://file.test/catalogue/", cfg.BaseURL)
	assert.Equal(t, "from-env", cfg.OutputDir)
	assert.Equal(t, 500*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadConfigRejectsBadFormat(t *testing.T) {
	f := &flags{}
	cmd := newRootCmd(f)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--format", "xml"}))

	_, err := loadConfig(cmd, f)
	assert.ErrorContains(t, err, "output format")
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	printSummary(&out, &models.ScraperResult{
		RunID:        "run-1",
		StartTime:    start,
		EndTime:      start.Add(2 * time.Second),
		TotalCount:   40,
		PageCount:    2,
		RequestCount: 3,
		StopReason:   models.StopEndOfCatalogue,
	})

	text := out.String()
	assert.Contains(t, text, "Scrape complete")
	assert.Contains(t, text, "end_of_catalogue")
	assert.Contains(t, text, "(nothing written)")
	assert.Contains(t, text, "2s")
}
