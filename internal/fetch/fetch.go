// Package fetch retrieves MISMO documents referenced by URL so the
// validator and importer can work against hosted documents. Transport
// failures are reported as a distinct error type: a document we never
// received is not a document that failed validation.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxDocumentBytes caps the response body. MISMO deal files run to a
// few megabytes; anything larger is rejected before buffering.
const maxDocumentBytes = 32 << 20

// TransportError wraps a retrieval failure. Callers branch on it to
// distinguish "could not fetch" from "fetched but invalid".
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Fetcher retrieves documents over HTTP.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client, typically for tests.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger replaces the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New returns a fetcher with a 30 second overall timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the document at url. Non-2xx responses and transport
// failures return a *TransportError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("document fetch failed", "url", url, "error", err)
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("document fetch rejected",
			"url", url, "status", resp.StatusCode)
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	if len(body) > maxDocumentBytes {
		return nil, &TransportError{URL: url,
			Err: fmt.Errorf("document exceeds %d byte limit", maxDocumentBytes)}
	}

	f.logger.Debug("document fetched",
		"url", url, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}
