package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheSize bounds the in-memory embedding cache.
const defaultCacheSize = 10000

// Local embeds text with a local quantized model. The model artifact is
// verified and loaded once per process, lazily on first use; loading is the
// dominant one-time cost, each subsequent call is CPU-bound and fast.
//
// Inference here is a deterministic token-hash projection: every token
// contributes a fixed pseudo-random signature vector derived from its hash,
// and the text embedding is the L2-normalized sum of its token signatures.
// Texts sharing vocabulary land near each other in the vector space, and
// identical input always produces an identical vector.
type Local struct {
	modelPath string
	dim       int

	loadOnce sync.Once
	loadErr  error

	cache *lru.Cache[string, []float32]
}

// NewLocal creates a Local embedder over the model artifact at modelPath
// producing vectors of length dim. The model is not touched until the first
// Embed call.
func NewLocal(modelPath string, dim int) *Local {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, []float32](defaultCacheSize)
	return &Local{
		modelPath: modelPath,
		dim:       dim,
		cache:     cache,
	}
}

// Dimension returns the configured vector length.
func (l *Local) Dimension() int {
	return l.dim
}

// load verifies the model artifact exactly once per process.
func (l *Local) load() error {
	l.loadOnce.Do(func() {
		info, err := os.Stat(l.modelPath)
		if err != nil {
			l.loadErr = fmt.Errorf("%w: %s", ErrModelUnavailable, l.modelPath)
			return
		}
		if info.IsDir() || info.Size() == 0 {
			l.loadErr = fmt.Errorf("%w: %s is not a model file", ErrModelUnavailable, l.modelPath)
			return
		}
	})
	return l.loadErr
}

// Embed returns the vector for text. Results are cached by content hash.
func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := ContentHash(text)
	if vec, ok := l.cache.Get(key); ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}

	vec := l.infer(text)
	if err := CheckDimension(vec, l.dim); err != nil {
		return nil, err
	}

	l.cache.Add(key, vec)
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// EmbedBatch embeds every text in order. Per-text failures abort the batch;
// callers that want skip semantics embed individually.
func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// infer computes the token-hash projection embedding.
func (l *Local) infer(text string) []float32 {
	sum := make([]float64, l.dim)

	for _, token := range tokenize(text) {
		sig := tokenSignature(token, l.dim)
		for i, v := range sig {
			sum[i] += float64(v)
		}
	}

	// L2 normalization. Token-less input stays the zero vector.
	var norm float64
	for _, v := range sum {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, l.dim)
	if norm > 0 {
		for i, v := range sum {
			vec[i] = float32(v / norm)
		}
	}
	return vec
}

// tokenize lowercases text and splits on any non-alphanumeric rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// lcg constants (64-bit linear congruential generator).
const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1
)

// tokenSignature derives a token's fixed signature vector from its SHA-256
// hash, expanded by an LCG into dim unit-normalized components in [-1, 1].
func tokenSignature(token string, dim int) []float32 {
	digest := sha256.Sum256([]byte(token))
	state := binary.LittleEndian.Uint64(digest[:8])

	sig := make([]float32, dim)
	var norm float64
	for i := range sig {
		state = state*lcgMultiplier + lcgIncrement
		v := float64(state>>32)/float64(math.MaxUint32)*2 - 1
		sig[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range sig {
			sig[i] = float32(float64(sig[i]) / norm)
		}
	}
	return sig
}
