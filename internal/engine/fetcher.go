package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/doyensec/safeurl"
	"github.com/tartampluch/go-enroll/internal/config"
)

// VCardFetcher retrieves an address book for household import.
type VCardFetcher interface {
	Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error)
}

// FetchStatusError is a non-200 answer from the address book server.
type FetchStatusError struct {
	Code int
}

func (e *FetchStatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", config.ErrFetchStatus, e.Code, http.StatusText(e.Code))
}

// Unauthorized reports a credentials problem the user can fix in the import dialog.
func (e *FetchStatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// HTTPFetcher downloads vCards over HTTP with optional basic auth.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher whose client refuses private, loopback and
// link-local targets, so an imported URL cannot reach internal services.
func NewHTTPFetcher() *HTTPFetcher {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(config.HTTPTimeout).
		SetAllowedSchemes(config.SchemeHTTP, config.SchemeHTTPS).
		SetAllowedPorts(80, 443).
		Build()
	return &HTTPFetcher{Client: safeurl.Client(cfg).Client}
}

// Fetch opens the address book at targetURL. The body is capped at
// config.MaxHTTPResponseSize.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL, user, pass string) (io.ReadCloser, error) {
	u, err := parseImportURL(targetURL)
	if err != nil {
		return nil, err
	}

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, redactURL(u)),
	)
	log.DebugContext(ctx, config.MsgFetchStart)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrFetchRequest, err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.MimeVCard)
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrFetchNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		log.WarnContext(ctx, config.MsgFetchBadStatus, slog.Int(config.LogKeyStatus, resp.StatusCode))
		return nil, &FetchStatusError{Code: resp.StatusCode}
	}

	log.InfoContext(ctx, config.MsgFetchDownloading, slog.Int64(config.LogKeySizeBytes, resp.ContentLength))
	return cappedBody{r: io.LimitReader(resp.Body, config.MaxHTTPResponseSize), c: resp.Body}, nil
}

// parseImportURL accepts absolute http(s) URLs only.
func parseImportURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s: %q", config.ErrInvalidURL, raw)
	}
	return u, nil
}

// redactURL drops credentials and the query, which may carry tokens.
func redactURL(u *url.URL) string {
	clean := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	return clean.String()
}

type cappedBody struct {
	r io.Reader
	c io.Closer
}

func (b cappedBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b cappedBody) Close() error               { return b.c.Close() }
