package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Attempts is the number of tries per call. 0 and 1 both mean a single try.
	Attempts int
	// Backoff is the first pause between tries; it doubles each time.
	Backoff time.Duration
	// Limits overrides or extends DefaultLimits by host.
	Limits map[string]HostLimit
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: status %d from %s", e.StatusCode, e.URL)
}

// HTTPFetcher implements Fetcher over net/http with per-host pacing.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	backoff   resilience.Backoff
	limiters  *limiters
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "geoequity/1.0"
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: opts.UserAgent,
		backoff: resilience.Backoff{
			Attempts: opts.Attempts,
			Initial:  opts.Backoff,
			Max:      30 * time.Second,
			Factor:   2,
			Jitter:   0.25,
			OnRetry: func(attempt int, err error) {
				zap.L().Debug("fetcher: retrying", zap.Int("attempt", attempt), zap.Error(err))
			},
		},
		limiters: newLimiters(opts.Limits),
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	body, err := f.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	return body, eris.Wrap(err, "fetcher: download")
}

// Post sends body to the URL and returns the response body.
func (f *HTTPFetcher) Post(ctx context.Context, rawURL, contentType string, body []byte) (io.ReadCloser, error) {
	rc, err := f.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	return rc, eris.Wrap(err, "fetcher: post")
}

// do sends the request built by newReq, retrying network failures and
// retryable statuses. Other non-2xx statuses return a *StatusError.
func (f *HTTPFetcher) do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) (io.ReadCloser, error) {
	resp, err := resilience.Retry(ctx, f.backoff, func(ctx context.Context) (*http.Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", f.userAgent)

		host := f.limiters.forHost(req.URL.Host)
		if err := host.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if resilience.IsTransient(err) {
				return nil, resilience.Transient(req.URL.Host, 0, err)
			}
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			host.throttle()
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			return nil, resilience.Transient(req.URL.Host, resp.StatusCode,
				&StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()})
		}
		host.relax()
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: resp.Request.URL.String()}
	}
	return resp.Body, nil
}
