package prompt

import "unicode/utf8"

// MaxDocumentTokens is the size above which an assembled document is logged
// as oversized. Both providers accept far more; the limit only flags races
// whose odds selection has grown unusually large.
const MaxDocumentTokens = 60000

// EstimateTokens returns a rough token count for content. ASCII runs at
// about four bytes per token; Japanese text is close to one token per rune.
func EstimateTokens(content string) int {
	ascii, other := 0, 0
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		if r < utf8.RuneSelf {
			ascii++
		} else {
			other++
		}
		i += size
	}
	return (ascii+3)/4 + other
}

// Oversized reports whether doc exceeds MaxDocumentTokens.
func Oversized(doc string) bool {
	return EstimateTokens(doc) > MaxDocumentTokens
}
