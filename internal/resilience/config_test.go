package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPolicy(t *testing.T) {
	def := NewPolicy(0, 0, 0, 0)
	assert.Equal(t, DefaultBackoff().Attempts, def.Backoff.Attempts)
	assert.Equal(t, DefaultBackoff().Initial, def.Backoff.Initial)
	assert.Equal(t, DefaultBreakerConfig(), def.Breaker)

	p := NewPolicy(4, 250*time.Millisecond, 5, 2*time.Minute)
	assert.Equal(t, 4, p.Backoff.Attempts)
	assert.Equal(t, 250*time.Millisecond, p.Backoff.Initial)
	assert.Equal(t, 5, p.Breaker.Threshold)
	assert.Equal(t, 2*time.Minute, p.Breaker.Cooldown)

	slow := NewPolicy(2, time.Minute, 0, 0)
	assert.Equal(t, time.Minute, slow.Backoff.Max)
}

func TestStateLogger(t *testing.T) {
	assert.NotPanics(t, func() { StateLogger("overpass-api.de")(Closed, Open) })
}
