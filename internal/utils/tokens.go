package utils

// Token estimation is provider-agnostic: one token is taken as four characters.

// CountTokens estimates the number of tokens in text as ceil(runes/4).
func CountTokens(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}

// TokenBreakdown returns a breakdown map of labeled sections to token counts.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}
