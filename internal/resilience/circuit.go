// Package resilience provides retry with backoff and per-upstream circuit
// breakers for calls that fail over between mirrors.
package resilience

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is a breaker position.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open rejects calls until the cooldown has passed.
	Open
	// Probing lets calls through after a cooldown; the next result decides
	// between Closed and Open.
	Probing
)

var stateNames = [...]string{"closed", "open", "probing"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrOpen is returned when a breaker rejects a call.
var ErrOpen = eris.New("resilience: circuit open")

// BreakerConfig controls when a breaker opens and how long it stays open.
type BreakerConfig struct {
	// Threshold is the run of consecutive failures that opens the breaker.
	Threshold int
	Cooldown  time.Duration

	// Counts decides whether an error is the upstream's fault. Every non-nil
	// error counts when nil.
	Counts func(err error) bool
	// OnChange observes transitions.
	OnChange func(from, to State)
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 3, Cooldown: time.Minute}
}

// Breaker tracks the health of one upstream.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	d := DefaultBreakerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = d.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	if cfg.Counts == nil {
		cfg.Counts = func(err error) bool { return err != nil }
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Call runs fn unless b is open.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if !b.admit() {
		var zero T
		return zero, ErrOpen
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

// State returns the current position, reporting Probing once an open
// breaker's cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.cooled() {
		return Probing
	}
	return b.state
}

// Failures returns the current run of counted failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) cooled() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return true
	}
	if !b.cooled() {
		return false
	}
	b.moveTo(Probing)
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.cfg.Counts(err) {
		b.failures = 0
		if b.state == Probing {
			b.moveTo(Closed)
		}
		return
	}

	b.failures++
	if b.state == Probing || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		b.moveTo(Open)
	}
}

func (b *Breaker) moveTo(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnChange != nil {
		b.cfg.OnChange(from, to)
	}
}

// BreakerSet keeps one breaker per upstream, created on first use.
type BreakerSet struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerSet creates an empty set. Breakers without an OnChange hook log
// their transitions.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// For returns the breaker guarding upstream.
func (s *BreakerSet) For(upstream string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[upstream]; ok {
		return b
	}
	cfg := s.cfg
	if cfg.OnChange == nil {
		cfg.OnChange = StateLogger(upstream)
	}
	b := NewBreaker(cfg)
	s.breakers[upstream] = b
	return b
}

// Admits reports whether a call to upstream would be let through. Upstreams
// never seen are admitted.
func (s *BreakerSet) Admits(upstream string) bool {
	s.mu.Lock()
	b, ok := s.breakers[upstream]
	s.mu.Unlock()
	return !ok || b.State() != Open
}

// States returns each known upstream's position by name.
func (s *BreakerSet) States() map[string]string {
	s.mu.Lock()
	names := make([]string, 0, len(s.breakers))
	for name := range s.breakers {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = s.For(name).State().String()
	}
	return out
}
