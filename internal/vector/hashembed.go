package vector

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// HashEmbed returns a deterministic EmbedFunc for tests: it hashes
// each lowercased word of text into a dim-dimensional vector. Distinct
// strings producing the same hash buckets end up with nonzero cosine
// similarity proportional to shared vocabulary, which is what the dedup and
// recall tests rely on without needing a live embedding service
// (SPEC_FULL.md §4.1: "a deterministic hash-based embedding is used in
// tests").
func HashEmbed(dim int) EmbedFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dim)
		words := strings.Fields(strings.ToLower(text))
		if len(words) == 0 {
			return vec, nil
		}

		for _, w := range words {
			h := sha256.Sum256([]byte(w))
			for i := 0; i < dim; i++ {
				bucket := int(binary.LittleEndian.Uint32(h[(i*4)%28:])) % dim
				if bucket < 0 {
					bucket += dim
				}
				sign := float32(1)
				if h[i%32]%2 == 0 {
					sign = -1
				}
				vec[bucket] += sign
			}
		}

		var norm float32
		for _, v := range vec {
			norm += v * v
		}
		if norm == 0 {
			return vec, nil
		}
		inv := float32(1) / sqrt32(norm)
		for i := range vec {
			vec[i] *= inv
		}
		return vec, nil
	}
}

func sqrt32(f float32) float32 {
	// Newton-Raphson: fine for a test-only normalization helper, avoids
	// pulling in math.Sqrt's float64 round trip for a one-line utility.
	if f == 0 {
		return 0
	}
	x := f
	for i := 0; i < 8; i++ {
		x = 0.5 * (x + f/x)
	}
	return x
}
