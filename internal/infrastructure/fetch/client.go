package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"immosync/internal/ports"
)

const baseBackoff = 2 * time.Second

// Client fetches pages as goquery documents with polite pacing, rotating
// user agents and exponential backoff. It processes one request at a time;
// the pipeline is deliberately sequential.
type Client struct {
	http       *http.Client
	userAgents []string
	delay      time.Duration
	backoff    time.Duration
	maxRetries int
	logger     *slog.Logger
	rand       *rand.Rand
}

var _ ports.Fetcher = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets a 30s-timeout default.
func NewClient(client *http.Client, userAgents []string, delay time.Duration, maxRetries int, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	if len(userAgents) == 0 {
		userAgents = []string{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"}
	}
	return &Client{
		http:       client,
		userAgents: userAgents,
		delay:      delay,
		backoff:    baseBackoff,
		maxRetries: maxRetries,
		logger:     logger,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Get fetches and parses a page, retrying transport failures with
// exponential backoff. 403/429 responses back off twice as long because the
// target is telling us to slow down.
func (c *Client) Get(ctx context.Context, url string) (*goquery.Document, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.pause(ctx); err != nil {
			return nil, err
		}

		doc, throttled, err := c.fetchOnce(ctx, url)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}

		if attempt < c.maxRetries {
			wait := backoff
			if throttled {
				// The server asked us to slow down; wait twice as long.
				wait *= 2
			}
			c.debug("fetch failed, backing off", "url", url, "attempt", attempt, "backoff", wait, "error", err)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, c.maxRetries, lastErr)
}

// Probe checks whether the source site answers at all. A failing probe
// means the whole run should exit cleanly with an empty export.
func (c *Client) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", c.pickUserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("probe %s: %s", url, resp.Status)
	}
	return nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) (doc *goquery.Document, throttled bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.pickUserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("server throttled request: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err = goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("parse document: %w", err)
	}
	doc.Url = resp.Request.URL
	return doc, false, nil
}

// pause waits the configured base delay scaled by a jitter factor in
// [0.5, 1.5) to avoid a detectable fixed request rhythm.
func (c *Client) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	jitter := 0.5 + c.rand.Float64()
	return sleepCtx(ctx, time.Duration(float64(c.delay)*jitter))
}

func (c *Client) pickUserAgent() string {
	return c.userAgents[c.rand.Intn(len(c.userAgents))]
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
