package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HostLimit is the request budget for one upstream host.
type HostLimit struct {
	Rate  rate.Limit
	Burst int
	// Adaptive hosts slow down after a 429 and speed back up on success,
	// staying between a quarter and twice Rate.
	Adaptive bool
}

// fallbackLimit applies to hosts without an entry.
var fallbackLimit = HostLimit{Rate: 20, Burst: 20}

// DefaultLimits returns the budgets for the statistics APIs and the public
// Overpass mirrors, which throttle hard.
func DefaultLimits() map[string]HostLimit {
	return map[string]HostLimit{
		"api.bls.gov":             {Rate: 5, Burst: 5},
		"api.census.gov":          {Rate: 10, Burst: 10},
		"overpass-api.de":         {Rate: 2, Burst: 2, Adaptive: true},
		"overpass.kumi.systems":   {Rate: 2, Burst: 2, Adaptive: true},
		"maps.mail.ru":            {Rate: 1, Burst: 1, Adaptive: true},
		"overpass.private.coffee": {Rate: 1, Burst: 1, Adaptive: true},
	}
}

// hostLimiter paces requests to a single host.
type hostLimiter struct {
	host string
	lim  *rate.Limiter

	adaptive bool
	floor    rate.Limit
	ceiling  rate.Limit
}

func newHostLimiter(host string, l HostLimit) *hostLimiter {
	return &hostLimiter{
		host:     host,
		lim:      rate.NewLimiter(l.Rate, l.Burst),
		adaptive: l.Adaptive,
		floor:    l.Rate / 4,
		ceiling:  l.Rate * 2,
	}
}

func (h *hostLimiter) wait(ctx context.Context) error {
	return h.lim.Wait(ctx)
}

// throttle halves the rate after the host answered 429.
func (h *hostLimiter) throttle() {
	if !h.adaptive {
		return
	}
	next := max(h.lim.Limit()/2, h.floor)
	h.lim.SetLimit(next)
	zap.L().Warn("fetcher: host throttled us, slowing down",
		zap.String("host", h.host),
		zap.Float64("rate", float64(next)),
	)
}

// relax raises the rate by a fifth after a successful response.
func (h *hostLimiter) relax() {
	if !h.adaptive {
		return
	}
	h.lim.SetLimit(min(h.lim.Limit()*1.2, h.ceiling))
}

// limiters hands out one hostLimiter per host, creating fallback limiters
// on first use.
type limiters struct {
	mu     sync.Mutex
	limits map[string]HostLimit
	hosts  map[string]*hostLimiter
}

func newLimiters(overrides map[string]HostLimit) *limiters {
	limits := DefaultLimits()
	for host, l := range overrides {
		limits[host] = l
	}
	return &limiters{limits: limits, hosts: make(map[string]*hostLimiter)}
}

func (l *limiters) forHost(host string) *hostLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.hosts[host]; ok {
		return h
	}
	limit, ok := l.limits[host]
	if !ok {
		limit = fallbackLimit
	}
	h := newHostLimiter(host, limit)
	l.hosts[host] = h
	return h
}
