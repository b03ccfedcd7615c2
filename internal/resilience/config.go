package resilience

import (
	"time"

	"go.uber.org/zap"
)

// Policy is the retry and breaker pairing applied to a family of mirrors.
type Policy struct {
	Backoff Backoff
	Breaker BreakerConfig
}

// NewPolicy builds a Policy from configured values. Non-positive values keep
// the defaults.
func NewPolicy(attempts int, backoff time.Duration, threshold int, cooldown time.Duration) Policy {
	p := Policy{Backoff: DefaultBackoff(), Breaker: DefaultBreakerConfig()}
	if attempts > 0 {
		p.Backoff.Attempts = attempts
	}
	if backoff > 0 {
		p.Backoff.Initial = backoff
		p.Backoff.Max = max(p.Backoff.Max, backoff)
	}
	if threshold > 0 {
		p.Breaker.Threshold = threshold
	}
	if cooldown > 0 {
		p.Breaker.Cooldown = cooldown
	}
	return p
}

// StateLogger returns an OnChange hook that logs transitions for upstream.
func StateLogger(upstream string) func(from, to State) {
	return func(from, to State) {
		zap.L().Warn("resilience: breaker state change",
			zap.String("upstream", upstream),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
}
