// Package embedding wraps the text-to-vector port. The vector generator
// itself is an external collaborator; this package only defines the
// contract and a deterministic stand-in usable when no real embedding
// service is configured.
package embedding

import (
	"context"
	"hash/fnv"
	"math"

	pgvector "github.com/pgvector/pgvector-go"
)

const Dimensions = 256

// Provider computes a fixed-dimension vector embedding for text.
type Provider interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
}

// Deterministic produces the same vector for the same text every time,
// derived from hashing each word into a bucket (words after the first
// eight weigh progressively less) rather than from any learned model.
// It satisfies the Provider contract for development and tests without
// depending on a real embedding service being reachable.
type Deterministic struct{}

func (Deterministic) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	return pgvector.NewVector(hashEmbed(text)), nil
}

func hashEmbed(text string) []float32 {
	out := make([]float32, Dimensions)
	if text == "" {
		return out
	}
	h := fnv.New64a()
	words := splitWords(text)
	for i, w := range words {
		h.Reset()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		bucket := int(sum % uint64(Dimensions))
		weight := 1.0 / float32(i/8+1)
		out[bucket] += weight
	}
	normalize(out)
	return out
}

func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		isWord := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if isWord {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			words = append(words, text[start:i])
			start = -1
		}
	}
	if start != -1 {
		words = append(words, text[start:])
	}
	return words
}

func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= norm
	}
}
