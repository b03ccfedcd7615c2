package anthropic

// CachedSystemBlocks returns the static prompt as a cached block followed by
// the per-request context as an uncached block. The static part is identical
// across requests, so it is served from the prompt cache.
func CachedSystemBlocks(static, dynamic string) []SystemBlock {
	blocks := []SystemBlock{{
		Text:         static,
		CacheControl: &CacheControl{TTL: "5m"},
	}}
	if dynamic != "" {
		blocks = append(blocks, SystemBlock{Text: dynamic})
	}
	return blocks
}
