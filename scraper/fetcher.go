package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/extract-books/config"
	"github.com/aluiziolira/extract-books/markup"
)

const (
	ctxStart    = "start"
	ctxStatus   = "status"
	ctxDocument = "document"
	ctxParseErr = "parse_error"
)

// pageFetcher issues one synchronous GET at a time over a single colly
// collector, so every page shares the same transport and keep-alive pool.
type pageFetcher struct {
	collector *colly.Collector
	logger    *slog.Logger
	metrics   *Metrics
}

func newPageFetcher(cfg *config.Config, logger *slog.Logger, metrics *Metrics) (*pageFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	// Every status reaches OnResponse; Fetch decides what counts as success.
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &pageFetcher{
		collector: collector,
		logger:    logger,
		metrics:   metrics,
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
	})

	collector.OnResponse(func(r *colly.Response) {
		f.observe(r.Ctx)
		r.Ctx.Put(ctxStatus, r.StatusCode)
		if !isSuccess(r.StatusCode) {
			return
		}
		doc, err := markup.Parse(bytes.NewReader(r.Body))
		if err != nil {
			r.Ctx.Put(ctxParseErr, err)
			return
		}
		r.Ctx.Put(ctxDocument, doc)
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		f.observe(r.Ctx)
		r.Ctx.Put(ctxStatus, r.StatusCode)
	})

	return f, nil
}

// Fetch returns the parsed page at pageURL. Every failure is logged here
// and returned as a classified error; callers treat it as the end of the
// catalogue.
func (f *pageFetcher) Fetch(pageURL string) (*markup.Document, error) {
	ctx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, pageURL, nil, ctx, nil)

	status, _ := ctx.GetAny(ctxStatus).(int)
	if err == nil && !isSuccess(status) {
		err = fmt.Errorf("http status %d", status)
	}
	if err == nil {
		if parseErr, ok := ctx.GetAny(ctxParseErr).(error); ok {
			err = parseErr
		}
	}
	if err == nil {
		doc, ok := ctx.GetAny(ctxDocument).(*markup.Document)
		if ok {
			f.metrics.IncRequest("ok")
			return doc, nil
		}
		err = errors.New("no document in response")
	}

	classified := classifyError(err, status)
	category := errorTypeLabel(classified)
	f.metrics.IncRequest("failed")
	f.metrics.IncError(category)
	f.logger.Error("error fetching page",
		slog.String("url", pageURL),
		slog.Int("status", status),
		slog.String("category", category),
		slog.Any("error", err),
	)
	return nil, fmt.Errorf("fetch %s: %w", pageURL, classified)
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func (f *pageFetcher) observe(ctx *colly.Context) {
	if start, ok := ctx.GetAny(ctxStart).(time.Time); ok {
		f.metrics.ObserveDuration(time.Since(start))
	}
}
