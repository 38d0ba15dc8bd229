// Package embedder generates fixed-length semantic vectors from text.
//
// The engine depends only on the Embedder contract: deterministic output for
// identical input and a fixed dimensionality. The bundled Local provider runs
// against a local quantized model artifact with no GPU requirement.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Sentinel errors for the two failure modes the engine distinguishes.
var (
	// ErrModelUnavailable means the local model artifact is missing or
	// unreadable. Fatal for the whole operation, never retried.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrBadDimension means inference produced a vector of unexpected
	// length. Fatal for the single input only.
	ErrBadDimension = errors.New("embedding has wrong dimensionality")
)

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	// Embed returns the vector for text. Identical input yields an
	// identical vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector length every Embed call produces.
	Dimension() int
}

// ContentHash returns the cache key for a piece of text.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// CheckDimension validates a vector against the expected length.
func CheckDimension(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: expected %d, got %d", ErrBadDimension, want, len(vec))
	}
	return nil
}
