// Package sanitize strips content unsafe to persist or to feed back to an
// LLM: NUL bytes and unpaired UTF-16 surrogates. Valid surrogate pairs
// (most emoji, among other things) are preserved untouched.
package sanitize

import "strings"

const (
	nul = rune(0x0000)

	surrogateHighStart = 0xD800
	surrogateHighEnd   = 0xDBFF
	surrogateLowStart  = 0xDC00
	surrogateLowEnd    = 0xDFFF
)

// Text removes U+0000 and unpaired surrogate code points from s. Go strings
// are UTF-8 and cannot normally contain surrogate code points at all, but
// content arriving from foreign JSON decoders (or LLM output reassembled
// from UTF-16 chunks upstream) can smuggle them in as the replacement
// sequences decoded verbatim; this walks runes defensively rather than
// assuming the input is already clean.
func Text(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == nul {
			continue
		}

		if isHighSurrogate(r) {
			if i+1 < len(runes) && isLowSurrogate(runes[i+1]) {
				b.WriteRune(r)
				b.WriteRune(runes[i+1])
				i++
				continue
			}
			// Lone high surrogate: drop.
			continue
		}

		if isLowSurrogate(r) {
			// Lone low surrogate (no preceding high surrogate consumed it above): drop.
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func isHighSurrogate(r rune) bool {
	return r >= surrogateHighStart && r <= surrogateHighEnd
}

func isLowSurrogate(r rune) bool {
	return r >= surrogateLowStart && r <= surrogateLowEnd
}
