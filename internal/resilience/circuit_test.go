package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMirrorDown = errors.New("mirror down")

type clock struct{ t time.Time }

func newClock() *clock {
	return &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func fail(context.Context) (int, error) { return 0, errMirrorDown }

func succeed(context.Context) (int, error) { return 7, nil }

func testBreaker(threshold int, cooldown time.Duration) (*Breaker, *clock) {
	c := newClock()
	b := NewBreaker(BreakerConfig{Threshold: threshold, Cooldown: cooldown})
	b.now = c.now
	return b, c
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := testBreaker(2, time.Minute)
	ctx := context.Background()

	_, err := Call(ctx, b, fail)
	require.ErrorIs(t, err, errMirrorDown)
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, 1, b.Failures())

	_, _ = Call(ctx, b, fail)
	assert.Equal(t, Open, b.State())

	calls := 0
	_, err = Call(ctx, b, func(context.Context) (int, error) { calls++; return 1, nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.Zero(t, calls, "open breaker does not run the call")
}

func TestBreaker_SuccessResetsRun(t *testing.T) {
	b, _ := testBreaker(2, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	v, err := Call(ctx, b, succeed)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Zero(t, b.Failures())

	_, _ = Call(ctx, b, fail)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_TrialCallAfterCooldown(t *testing.T) {
	b, c := testBreaker(1, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	require.Equal(t, Open, b.State())

	c.advance(time.Minute)
	assert.Equal(t, Probing, b.State())

	_, err := Call(ctx, b, succeed)
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	b, c := testBreaker(3, time.Minute)
	ctx := context.Background()

	for range 3 {
		_, _ = Call(ctx, b, fail)
	}
	c.advance(2 * time.Minute)

	_, err := Call(ctx, b, fail)
	require.ErrorIs(t, err, errMirrorDown)
	assert.Equal(t, Open, b.State(), "a single failed trial call reopens")

	c.advance(30 * time.Second)
	_, err = Call(ctx, b, succeed)
	assert.ErrorIs(t, err, ErrOpen, "cooldown restarts when the trial call fails")
}

func TestBreaker_CountsFilter(t *testing.T) {
	rejected := errors.New("query rejected")
	b := NewBreaker(BreakerConfig{
		Threshold: 1,
		Counts:    func(err error) bool { return err != nil && !errors.Is(err, rejected) },
	})

	_, err := Call(context.Background(), b, func(context.Context) (int, error) { return 0, rejected })
	require.ErrorIs(t, err, rejected)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_OnChange(t *testing.T) {
	var got []string
	b := NewBreaker(BreakerConfig{
		Threshold: 1,
		Cooldown:  time.Second,
		OnChange:  func(from, to State) { got = append(got, from.String()+"->"+to.String()) },
	})
	c := newClock()
	b.now = c.now

	_, _ = Call(context.Background(), b, fail)
	c.advance(time.Second)
	_, _ = Call(context.Background(), b, succeed)

	assert.Equal(t, []string{"closed->open", "open->probing", "probing->closed"}, got)
}

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	assert.Equal(t, DefaultBreakerConfig().Threshold, b.cfg.Threshold)
	assert.Equal(t, DefaultBreakerConfig().Cooldown, b.cfg.Cooldown)
}

func TestBreaker_Concurrent(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 1000})
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = Call(context.Background(), b, fail)
				return
			}
			_, _ = Call(context.Background(), b, succeed)
		}()
	}
	wg.Wait()
	assert.Equal(t, Closed, b.State())
}

func TestBreakerSet(t *testing.T) {
	set := NewBreakerSet(BreakerConfig{Threshold: 1, Cooldown: time.Hour})

	assert.True(t, set.Admits("overpass-api.de"), "unknown upstreams are admitted")
	assert.Same(t, set.For("overpass-api.de"), set.For("overpass-api.de"))

	_, _ = Call(context.Background(), set.For("overpass-api.de"), fail)
	_, _ = Call(context.Background(), set.For("overpass.kumi.systems"), succeed)

	assert.False(t, set.Admits("overpass-api.de"))
	assert.True(t, set.Admits("overpass.kumi.systems"))
	assert.Equal(t, map[string]string{
		"overpass-api.de":       "open",
		"overpass.kumi.systems": "closed",
	}, set.States())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "probing", Probing.String())
	assert.Equal(t, "unknown", State(9).String())
}
