package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aluiziolira/extract-books/config"
	"github.com/aluiziolira/extract-books/markup"
	"github.com/aluiziolira/extract-books/models"
)

const testBaseURL = "https://example.test/catalogue/"

var testNow = time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

type harness struct {
	scraper   *Scraper
	cfg       *config.Config
	opts      []Option
	transport *httpmock.MockTransport
	logs      *bytes.Buffer
	sleeps    []time.Duration
	outputDir string
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	h := &harness{
		transport: httpmock.NewMockTransport(),
		logs:      &bytes.Buffer{},
		outputDir: filepath.Join(t.TempDir(), "data", "raw"),
	}

	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	cfg.OutputDir = h.outputDir
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h.cfg = cfg
	h.opts = []Option{
		WithLogger(logger),
		WithClock(func() time.Time { return testNow }),
		WithSleep(func(d time.Duration) { h.sleeps = append(h.sleeps, d) }),
		WithTransport(h.transport),
	}
	s, err := NewScraper(cfg, h.opts...)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	h.scraper = s
	return h
}

func (h *harness) page(n int, body string) {
	h.transport.RegisterResponder("GET", fmt.Sprintf("%spage-%d.html", testBaseURL, n), htmlResponder(body))
}

func (h *harness) calls(n int) int {
	return h.transport.GetCallCountInfo()[fmt.Sprintf("GET %spage-%d.html", testBaseURL, n)]
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Internal Server Error"), statusCode: http.StatusInternalServerError, expected: "status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestExtractTwoBooksThenEmptyPage(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage("A", "B"))
	h.page(2, buildCatalogPage())

	result, err := h.scraper.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := []*models.Book{testBook("A"), testBook("B")}
	if diff := cmp.Diff(want, result.Books); diff != "" {
		t.Fatalf("books mismatch (-want +got):\n%s", diff)
	}
	if result.StopReason != models.StopEndOfCatalogue {
		t.Fatalf("stop reason = %q", result.StopReason)
	}

	wantPath := filepath.Join(h.outputDir, "books_20261019_143000.csv")
	if result.OutputFile != wantPath {
		t.Fatalf("output = %q, want %q", result.OutputFile, wantPath)
	}
	data, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d, want 3:\n%s", len(lines), data)
	}
	if lines[0] != "title,price,availability,rating,product_page_url" {
		t.Fatalf("header = %q", lines[0])
	}
}

func TestRunStopsAtFirstEmptyPage(t *testing.T) {
	h := newHarness(t, nil)
	for p := 1; p <= 3; p++ {
		h.page(p, buildCatalogPage(fmt.Sprintf("P%d-1", p), fmt.Sprintf("P%d-2", p)))
	}
	h.page(4, buildCatalogPage())
	h.page(5, buildCatalogPage("never"))

	result, err := h.scraper.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := len(result.Books); got != 6 {
		t.Fatalf("books=%d, want 6", got)
	}
	if result.PageCount != 3 || result.RequestCount != 4 {
		t.Fatalf("pages=%d requests=%d, want 3/4", result.PageCount, result.RequestCount)
	}
	if h.calls(5) != 0 {
		t.Fatalf("page 5 was requested after the catalogue ended")
	}
	if got := h.transport.GetTotalCallCount(); got != 4 {
		t.Fatalf("total calls=%d, want 4", got)
	}
	if diff := cmp.Diff([]time.Duration{time.Second, time.Second, time.Second}, h.sleeps); diff != "" {
		t.Fatalf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if got := testutil.ToFloat64(h.scraper.Metrics.ItemsScrapedTotal); got != 6 {
		t.Fatalf("items metric=%v, want 6", got)
	}
}

func TestRunFetchFailureKeepsEarlierPages(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage("A"))
	h.transport.RegisterResponder("GET", testBaseURL+"page-2.html", httpmock.NewStringResponder(http.StatusNotFound, "missing"))
	h.page(3, buildCatalogPage("C"))

	result, err := h.scraper.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(result.Books) != 1 || result.Books[0].Title != "A" {
		t.Fatalf("books = %+v, want [A]", result.Books)
	}
	if result.StopReason != models.StopFetchFailed || result.FailedURL != testBaseURL+"page-2.html" {
		t.Fatalf("stop=%q failed=%q", result.StopReason, result.FailedURL)
	}
	if h.calls(3) != 0 {
		t.Fatalf("page 3 requested after a failed fetch")
	}
	if result.OutputFile == "" {
		t.Fatalf("records gathered before the failure should still be written")
	}
	if got := testutil.ToFloat64(h.scraper.Metrics.ErrorsTotal.WithLabelValues("not_found")); got != 1 {
		t.Fatalf("not_found errors=%v, want 1", got)
	}
	if !strings.Contains(h.logs.String(), "level=ERROR") {
		t.Fatalf("fetch failure should be logged as an error:\n%s", h.logs.String())
	}
}

func TestRunAcceptsAnySuccessStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBaseURL+"page-1.html",
		htmlStatusResponder(http.StatusNonAuthoritativeInfo, buildCatalogPage("A", "B")))
	h.transport.RegisterResponder("GET", testBaseURL+"page-2.html",
		htmlStatusResponder(http.StatusInternalServerError, buildCatalogPage("C")))
	h.page(3, buildCatalogPage("D"))

	result, err := h.scraper.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []*models.Book{testBook("A"), testBook("B")}
	if diff := cmp.Diff(want, result.Books); diff != "" {
		t.Fatalf("books mismatch (-want +got):\n%s", diff)
	}
	if result.StopReason != models.StopFetchFailed || result.FailedURL != testBaseURL+"page-2.html" {
		t.Fatalf("stop=%q failed=%q", result.StopReason, result.FailedURL)
	}
	if h.calls(3) != 0 {
		t.Fatalf("page 3 requested after a server error")
	}
	if got := testutil.ToFloat64(h.scraper.Metrics.ErrorsTotal.WithLabelValues("status")); got != 1 {
		t.Fatalf("status errors=%v, want 1", got)
	}
}

func TestRequestOutcomesCountEachRequestOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage("A"))
	h.page(2, buildCatalogPage("B"))
	h.transport.RegisterResponder("GET", testBaseURL+"page-3.html", httpmock.NewStringResponder(http.StatusForbidden, "denied"))

	if _, err := h.scraper.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	requests := h.scraper.Metrics.RequestsTotal
	if got := testutil.ToFloat64(requests.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok requests=%v, want 2", got)
	}
	if got := testutil.ToFloat64(requests.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed requests=%v, want 1", got)
	}
	if got := testutil.CollectAndCount(requests); got != 2 {
		t.Fatalf("request outcome series=%d, want 2", got)
	}
	if total := h.transport.GetTotalCallCount(); total != 3 {
		t.Fatalf("transport calls=%d, want 3", total)
	}
}

func TestExtractTimeoutOnFirstPage(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.RegisterResponder("GET", testBaseURL+"page-1.html",
		httpmock.NewErrorResponder(&net.DNSError{Err: "i/o timeout", Name: "example.test", IsTimeout: true}))

	result, err := h.scraper.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(result.Books) != 0 {
		t.Fatalf("books=%d, want 0", len(result.Books))
	}
	if result.OutputFile != "" {
		t.Fatalf("output = %q, want none", result.OutputFile)
	}
	if _, err := os.Stat(h.outputDir); !os.IsNotExist(err) {
		t.Fatalf("no capture directory expected, stat err=%v", err)
	}
	logs := h.logs.String()
	if !strings.Contains(logs, "category=timeout") {
		t.Fatalf("timeout should be classified in logs:\n%s", logs)
	}
	if !strings.Contains(logs, "level=WARN") {
		t.Fatalf("empty capture should log a warning:\n%s", logs)
	}
}

func TestExtractEmptyCatalogue(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage())

	result, err := h.scraper.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.OutputFile != "" || len(result.Books) != 0 {
		t.Fatalf("result = %+v, want empty", result)
	}
	if result.StopReason != models.StopEndOfCatalogue {
		t.Fatalf("stop reason = %q", result.StopReason)
	}
	if len(h.sleeps) != 0 {
		t.Fatalf("no pause expected after an empty page, got %v", h.sleeps)
	}
}

func TestExtractMalformedItemIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage("A"))
	h.page(2, `<html><body><article class="product_pod"><h3>no link</h3></article></body></html>`)

	result, err := h.scraper.Extract(context.Background())
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if !errors.Is(err, markup.ErrNotFound) {
		t.Fatalf("error %v should wrap markup.ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "page 2") {
		t.Fatalf("error %q should name the page", err)
	}
	if result.OutputFile != "" {
		t.Fatalf("nothing should be written on a parse failure")
	}
	if _, statErr := os.Stat(h.outputDir); !os.IsNotExist(statErr) {
		t.Fatalf("capture directory should not exist, stat err=%v", statErr)
	}
}

func TestRunMaxPages(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.MaxPages = 2
	})
	h.page(1, buildCatalogPage("A"))
	h.page(2, buildCatalogPage("B"))
	h.page(3, buildCatalogPage("C"))

	result, err := h.scraper.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Books) != 2 || result.StopReason != models.StopMaxPages {
		t.Fatalf("books=%d stop=%q", len(result.Books), result.StopReason)
	}
	if h.calls(3) != 0 {
		t.Fatalf("page 3 requested beyond max pages")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage("A"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.scraper.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != models.StopCancelled || h.transport.GetTotalCallCount() != 0 {
		t.Fatalf("stop=%q calls=%d", result.StopReason, h.transport.GetTotalCallCount())
	}
}

func TestFetcherSendsUserAgent(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.UserAgent = "Mozilla/5.0 (test)"
	})
	var seen string
	h.transport.RegisterResponder("GET", testBaseURL+"page-1.html", func(req *http.Request) (*http.Response, error) {
		seen = req.Header.Get("User-Agent")
		return htmlResponder(buildCatalogPage())(req)
	})

	if _, err := h.scraper.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if seen != "Mozilla/5.0 (test)" {
		t.Fatalf("user agent = %q", seen)
	}
}

func TestRunTwiceRevisitsPages(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage("A"))
	h.page(2, buildCatalogPage())

	for i := 0; i < 2; i++ {
		result, err := h.scraper.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if len(result.Books) != 1 {
			t.Fatalf("run %d books=%d, want 1", i, len(result.Books))
		}
	}
	if got := h.calls(1); got != 2 {
		t.Fatalf("page 1 calls=%d, want 2", got)
	}
}

func TestExtractBooksReturnsCapturePath(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage("A", "B"))
	h.page(2, buildCatalogPage())

	path, err := extractBooks(h.cfg, h.opts...)
	if err != nil {
		t.Fatalf("extract books: %v", err)
	}
	if want := filepath.Join(h.outputDir, "books_20261019_143000.csv"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Fatalf("lines=%d, want 3:\n%s", lines, data)
	}
	logs := h.logs.String()
	if !strings.Contains(logs, "book data extraction completed") {
		t.Fatalf("completion should be logged:\n%s", logs)
	}
}

func TestExtractBooksEmptyCatalogueReturnsEmptyPath(t *testing.T) {
	h := newHarness(t, nil)
	h.page(1, buildCatalogPage())

	path, err := extractBooks(h.cfg, h.opts...)
	if err != nil {
		t.Fatalf("extract books: %v", err)
	}
	if path != "" {
		t.Fatalf("path = %q, want empty", path)
	}
	if _, err := os.Stat(h.outputDir); !os.IsNotExist(err) {
		t.Fatalf("no capture directory expected, stat err=%v", err)
	}
}

func TestExtractBooksRejectsInvalidConfig(t *testing.T) {
	h := newHarness(t, nil)
	h.cfg.BaseURL = "https://example.test/catalogue"

	if _, err := extractBooks(h.cfg, h.opts...); err == nil {
		t.Fatalf("expected config error")
	}
	if h.transport.GetTotalCallCount() != 0 {
		t.Fatalf("no requests expected with an invalid config")
	}
}

func TestRecordShape(t *testing.T) {
	want := []string{"title", "price", "availability", "rating", "product_page_url"}
	if diff := cmp.Diff(want, models.BookFields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if got := len(testBook("A").Record()); got != len(want) {
		t.Fatalf("record len=%d, want %d", got, len(want))
	}
}

func testBook(title string) *models.Book {
	slug := strings.ToLower(title)
	return &models.Book{
		Title:          title,
		Price:          "£12.50",
		Availability:   "In stock",
		Rating:         "Two",
		ProductPageURL: testBaseURL + slug + "/index.html",
	}
}

func htmlResponder(body string) httpmock.Responder {
	return htmlStatusResponder(http.StatusOK, body)
}

func htmlStatusResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

func buildCatalogPage(titles ...string) string {
	var builder strings.Builder
	builder.WriteString("<html><body><section><ol class=\"row\">")

	for _, title := range titles {
		slug := strings.ToLower(title)
		builder.WriteString("<li><article class=\"product_pod\">")
		builder.WriteString("<p class=\"star-rating Two\"><i class=\"icon-star\"></i></p>")
		fmt.Fprintf(&builder, "<h3><a href=\"%s/index.html\" title=\"%s\">%s</a></h3>", slug, title, title)
		builder.WriteString("<div class=\"product_price\"><p class=\"price_color\">£12.50</p>")
		builder.WriteString("<p class=\"instock availability\">\n  <i class=\"icon-ok\"></i>\n  In stock\n</p></div>")
		builder.WriteString("</article></li>")
	}

	builder.WriteString("</ol></section></body></html>")
	return builder.String()
}
