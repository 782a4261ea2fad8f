// Package fetcher acquires pages over plain HTTP: one GET, no browser, no
// script. The result says whether the HTML is sufficient on its own or is a
// script-rendered shell that needs Chrome.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrStatus is wrapped by Fetch when the server answers 4xx or 5xx.
var ErrStatus = errors.New("fetcher: bad status")

// Page is one fetched document.
type Page struct {
	URL      string
	FinalURL string // after redirects
	Status   int
	HTML     []byte
	// CSP is the Content-Security-Policy response header.
	CSP       string
	ETag      string
	LastMod   string
	Truncated bool
	// Sufficient is true when the HTML carries enough text to be used
	// without running its scripts.
	Sufficient bool
	FetchedAt  time.Time
}

// Fetcher performs HTTP GETs.
type Fetcher struct {
	client   *http.Client
	ua       string
	maxBytes int64
	logger   *slog.Logger
	// blockPrivate refuses loopback and private targets, redirects
	// included.
	blockPrivate bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the client timeout. Ignored after WithClient.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.ua = ua
		}
	}
}

// WithMaxBytes caps the body read. Default: 10MB.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithPrivateHostsBlocked refuses URLs, and redirects, that resolve to
// loopback or private addresses. Use it when URLs come from the network.
func WithPrivateHostsBlocked() Option {
	return func(f *Fetcher) { f.blockPrivate = true }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// DefaultUserAgent is sent unless WithUserAgent overrides it.
const DefaultUserAgent = "Mozilla/5.0 (compatible; swissutil/1.0)"

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		ua:       DefaultUserAgent,
		maxBytes: 10 << 20,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.blockPrivate {
		c := *f.client
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("fetcher: stopped after 10 redirects")
			}
			return CheckURL(req.URL.String(), true)
		}
		f.client = &c
	}
	return f
}

// Check applies the fetcher's URL policy without fetching. Callers that
// load pages by other means use it to share the policy.
func (f *Fetcher) Check(pageURL string) error {
	return CheckURL(pageURL, f.blockPrivate)
}

// Fetch GETs pageURL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := CheckURL(pageURL, f.blockPrivate); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetcher: %s: %w %d", pageURL, ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}
	truncated := int64(len(body)) > f.maxBytes
	if truncated {
		body = body[:f.maxBytes]
	}

	p := &Page{
		URL:        pageURL,
		FinalURL:   resp.Request.URL.String(),
		Status:     resp.StatusCode,
		HTML:       body,
		CSP:        resp.Header.Get("Content-Security-Policy"),
		ETag:       resp.Header.Get("ETag"),
		LastMod:    resp.Header.Get("Last-Modified"),
		Truncated:  truncated,
		Sufficient: IsSufficient(body),
		FetchedAt:  time.Now(),
	}

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "sufficient", p.Sufficient, "truncated", truncated)
	return p, nil
}

// Head performs a HEAD request to check ETag/Last-Modified without downloading.
func (f *Fetcher) Head(ctx context.Context, pageURL string) (etag, lastMod string, err error) {
	if err := CheckURL(pageURL, f.blockPrivate); err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("fetcher: head request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetcher: head do: %w", err)
	}
	resp.Body.Close()

	return resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}
