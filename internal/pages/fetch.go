package pages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"companylens/internal/metrics"
	"companylens/internal/validation"
)

// Fetch defaults.
const (
	DefaultFetchTimeout  = 10 * time.Second
	DefaultFetchMaxBytes = 4 << 20
	DefaultUserAgent     = "CompanyLens-Fetcher/1.0"
	maxRedirects         = 10
)

var (
	// ErrFetchBlocked is returned for URLs that are malformed or point at private addresses.
	ErrFetchBlocked = errors.New("url not allowed")
	// ErrFetchFailed covers transport errors and non-2xx responses.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrTooLarge is returned when the body exceeds the configured limit.
	ErrTooLarge = errors.New("response body too large")
)

// Fetcher downloads job pages.
type Fetcher struct {
	client       *http.Client
	maxBytes     int64
	userAgent    string
	allowPrivate bool
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout sets the overall request timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// AllowPrivateAddresses disables the private address check. Local development only.
func AllowPrivateAddresses() FetcherOption {
	return func(f *Fetcher) {
		f.allowPrivate = true
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultFetchTimeout},
		maxBytes:  DefaultFetchMaxBytes,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		return f.check(req.Context(), req.URL.String())
	}
	return f
}

func (f *Fetcher) check(ctx context.Context, rawURL string) error {
	var err error
	if f.allowPrivate {
		_, err = validation.CheckURL(rawURL)
	} else {
		err = validation.CheckFetchTarget(ctx, rawURL)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchBlocked, err)
	}
	return nil
}

// Fetch GETs rawURL and returns the body as a string.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	body, err := f.fetch(ctx, rawURL)
	metrics.RecordPageFetch(err)
	return body, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	if err := f.check(ctx, rawURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFetchBlocked, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrFetchBlocked) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, f.maxBytes)
	}
	return string(data), nil
}
