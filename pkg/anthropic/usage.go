package anthropic

import "go.uber.org/zap"

// TokenUsage is the token accounting returned with a reply.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// price is USD per million tokens.
type price struct {
	input  float64
	output float64
}

// Cache writes bill at 1.25x input and cache reads at 0.1x input.
const (
	cacheWriteFactor = 1.25
	cacheReadFactor  = 0.10
)

var prices = map[string]price{
	"claude-haiku-4-5-20251001":  {input: 1, output: 5},
	"claude-sonnet-4-5-20250929": {input: 3, output: 15},
}

// EstimateCost returns the USD cost of u on model, or 0 for unpriced models.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := prices[model]
	if !ok {
		return 0
	}
	in := float64(u.InputTokens) +
		float64(u.CacheCreationInputTokens)*cacheWriteFactor +
		float64(u.CacheReadInputTokens)*cacheReadFactor
	return (in*p.input + float64(u.OutputTokens)*p.output) / 1e6
}

// LogCost records usage for one assistant route.
func (u TokenUsage) LogCost(model, route string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.String("route", route),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
