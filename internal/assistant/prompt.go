package assistant

import (
	"fmt"
	"strconv"
	"strings"
)

const basePrompt = `You are an expert assistant for the GeoEquity impact engine.

Your role is to help users understand Economic Justice Value (EJV) scores and make informed decisions about where to shop.

Key concepts:
- EJV score: 0.25 fair wage + 0.15 pay equity + 0.30 local impact + 0.15 affordability + 0.15 environmental, each on a 0-1 scale
- Participation Amplification Factor (PAF): up to 25% extra retained value from verified community engagement
- Local impact: how much of each purchase stays in the local economy through local procurement and hiring
- Wealth retention: share of a purchase retained locally
- Wealth leakage: share that leaves the local economy

You can help with:
1. Explaining EJV scores and their components
2. Comparing stores and their economic impact
3. Recommending stores based on economic justice priorities
4. Analyzing local economic patterns
5. Understanding participation and community engagement impact

Be conversational, helpful, and focused on empowering users to make economically just purchasing decisions.`

// BasePrompt returns the static part of the system prompt.
func BasePrompt() string {
	return basePrompt
}

// ContextPrompt renders the caller's context, or "" when there is none.
func ContextPrompt(c *Context) string {
	if c == nil {
		return ""
	}
	var lines []string
	if c.StoreName != "" {
		lines = append(lines, "- Store: "+c.StoreName)
	}
	if c.EJV40 != nil {
		lines = append(lines, "- EJV 4.0 Score: "+formatNumber(c.EJV40))
	}
	if c.EJV41 != nil {
		lines = append(lines, "- EJV 4.1 Score: "+formatNumber(c.EJV41))
	}
	if c.Location != "" {
		lines = append(lines, "- Location: "+c.Location)
	}
	if len(c.Stores) > 0 {
		lines = append(lines, fmt.Sprintf("- Number of stores in view: %d", len(c.Stores)))
	}
	if len(lines) == 0 {
		return ""
	}
	return "Current Context:\n" + strings.Join(lines, "\n")
}

// SummarizeStores renders one block per store for recommendation prompts.
func SummarizeStores(stores []StoreSummary) string {
	var b strings.Builder
	for i, s := range stores {
		name := s.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "\nStore %d: %s\n", i+1, name)
		fmt.Fprintf(&b, "  - EJV 4.0: %s\n", formatNumber(s.EJV40))
		fmt.Fprintf(&b, "  - EJV 4.1: %s\n", formatNumber(s.EJV41))
		fmt.Fprintf(&b, "  - Local Circulation: %s\n", formatNumber(s.LocalCirculation))
		fmt.Fprintf(&b, "  - Wealth Retention: %s%%\n", formatNumber(s.WealthRetention))
	}
	return b.String()
}

func formatNumber(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
