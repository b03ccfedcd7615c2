// Package overpass forwards Overpass QL queries to public Overpass API
// mirrors with per-mirror retry and circuit breaking.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/fetcher"
	"github.com/sells-group/geoequity/internal/metrics"
	"github.com/sells-group/geoequity/internal/resilience"
)

// DefaultServers are the public interpreter endpoints, tried in order.
var DefaultServers = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
	"https://overpass.private.coffee/api/interpreter",
}

var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = eris.New("overpass: empty query")
	// ErrBadQuery is returned when a mirror rejects the query itself.
	ErrBadQuery = eris.New("overpass: query rejected")
	// ErrTooLarge is returned when a mirror answers with more than the
	// configured response limit. Other mirrors would return the same data.
	ErrTooLarge = eris.New("overpass: response too large")
	// ErrUnavailable is returned when every mirror failed.
	ErrUnavailable = eris.New("overpass: all servers unavailable")
)

// DefaultMaxResponseBytes caps how much of a mirror response is buffered.
const DefaultMaxResponseBytes = 64 << 20

// Config configures the proxy.
type Config struct {
	Servers []string
	// Timeout bounds each individual request to a mirror.
	Timeout time.Duration
	Policy  resilience.Policy
	// MaxResponseBytes bounds a buffered response. Zero means
	// DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// Proxy sends queries to the first healthy mirror.
type Proxy struct {
	servers  []string
	timeout  time.Duration
	maxBody  int64
	backoff  resilience.Backoff
	fetcher  fetcher.Fetcher
	breakers *resilience.BreakerSet
	obs      metrics.Observer
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithObserver reports mirror failures to o.
func WithObserver(o metrics.Observer) Option {
	return func(p *Proxy) { p.obs = o }
}

// NewProxy creates a Proxy. f should be configured for a single attempt;
// retries are driven by cfg.Policy.
func NewProxy(cfg Config, f fetcher.Fetcher, opts ...Option) *Proxy {
	servers := cfg.Servers
	if len(servers) == 0 {
		servers = DefaultServers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	backoff := cfg.Policy.Backoff
	backoff.Retryable = func(err error) bool {
		return !errors.Is(err, ErrBadQuery) && resilience.IsTransient(err)
	}
	backoff.OnRetry = resilience.RetryLogger("overpass")

	breaker := cfg.Policy.Breaker
	breaker.Counts = func(err error) bool {
		if err == nil {
			return false
		}
		return !errors.Is(err, ErrBadQuery) && !errors.Is(err, ErrTooLarge) && !errors.Is(err, context.Canceled)
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}

	p := &Proxy{
		servers:  servers,
		timeout:  timeout,
		maxBody:  maxBody,
		backoff:  backoff,
		fetcher:  f,
		breakers: resilience.NewBreakerSet(breaker),
		obs:      metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Servers returns the configured mirror list.
func (p *Proxy) Servers() []string {
	return p.servers
}

// States returns the breaker state per mirror host that has been contacted.
func (p *Proxy) States() map[string]string {
	return p.breakers.States()
}

// Query sends the query to each mirror in order until one returns a JSON
// body. A query rejected by a mirror, or one whose answer exceeds the
// response limit, is not retried elsewhere.
func (p *Proxy) Query(ctx context.Context, query string) ([]byte, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var lastErr error
	for _, server := range p.servers {
		host := hostOf(server)
		if !p.breakers.Admits(host) {
			zap.L().Debug("overpass: skipping open circuit", zap.String("server", host))
			continue
		}

		body, err := resilience.Call(ctx, p.breakers.For(host), func(ctx context.Context) ([]byte, error) {
			return resilience.Retry(ctx, p.backoff, func(ctx context.Context) ([]byte, error) {
				return p.post(ctx, server, query)
			})
		})
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrBadQuery) || errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "overpass: query cancelled")
		}

		lastErr = err
		p.obs.ExternalCallFailed("overpass", err)
		zap.L().Warn("overpass: server failed, trying next",
			zap.String("server", host),
			zap.Error(err),
		)
	}

	if lastErr == nil {
		return nil, eris.Wrap(ErrUnavailable, "every circuit is open")
	}
	return nil, eris.Wrapf(ErrUnavailable, "last error: %v", lastErr)
}

func (p *Proxy) post(ctx context.Context, server, query string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	form := url.Values{"data": {query}}.Encode()
	rc, err := p.fetcher.Post(ctx, server, "application/x-www-form-urlencoded", []byte(form))
	if err != nil {
		return nil, classify(hostOf(server), err)
	}
	defer rc.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(rc, p.maxBody+1))
	if err != nil {
		return nil, resilience.Transient(hostOf(server), 0, eris.Wrap(err, "overpass: read body"))
	}
	if int64(len(body)) > p.maxBody {
		return nil, eris.Wrapf(ErrTooLarge, "%s sent more than %d bytes", hostOf(server), p.maxBody)
	}
	if !json.Valid(body) {
		// Mirrors report runtime errors as HTML with a 200 status.
		return nil, resilience.Transient(hostOf(server), http.StatusOK, eris.New("overpass: response is not JSON"))
	}
	return body, nil
}

// classify maps fetch errors onto the retry taxonomy.
func classify(host string, err error) error {
	var se *fetcher.StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.StatusCode == http.StatusBadRequest:
		return eris.Wrapf(ErrBadQuery, "status %d", se.StatusCode)
	case resilience.RetryableStatus(se.StatusCode):
		return resilience.Transient(host, se.StatusCode, err)
	default:
		return err
	}
}

func hostOf(server string) string {
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return server
	}
	return u.Host
}
