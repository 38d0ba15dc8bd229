package embedder

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModelFile drops a non-empty stand-in model artifact into a temp dir.
func writeModelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(path, []byte("stub weights"), 0o644))
	return path
}

func TestLocal_Deterministic(t *testing.T) {
	emb := NewLocal(writeModelFile(t), 768)
	ctx := context.Background()

	first, err := emb.Embed(ctx, "add authentication middleware")
	require.NoError(t, err)
	second, err := emb.Embed(ctx, "add authentication middleware")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 768)
}

func TestLocal_UnitNorm(t *testing.T) {
	emb := NewLocal(writeModelFile(t), 768)

	vec, err := emb.Embed(context.Background(), "fix: resolve connection leak")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestLocal_DistinctTextsDiffer(t *testing.T) {
	emb := NewLocal(writeModelFile(t), 768)
	ctx := context.Background()

	a, err := emb.Embed(ctx, "add OAuth2 token refresh")
	require.NoError(t, err)
	b, err := emb.Embed(ctx, "optimize database query batching")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLocal_SharedVocabularyIsCloser(t *testing.T) {
	emb := NewLocal(writeModelFile(t), 768)
	ctx := context.Background()

	query, err := emb.Embed(ctx, "add authentication middleware")
	require.NoError(t, err)
	authy, err := emb.Embed(ctx, "add JWT authentication to API middleware")
	require.NoError(t, err)
	unrelated, err := emb.Embed(ctx, "update billing invoice totals")
	require.NoError(t, err)

	assert.Greater(t, dot(query, authy), dot(query, unrelated))
}

func TestLocal_MissingModel(t *testing.T) {
	emb := NewLocal(filepath.Join(t.TempDir(), "no-such-model.gguf"), 768)

	_, err := emb.Embed(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	// The load failure is sticky.
	_, err = emb.Embed(context.Background(), "anything else")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLocal_EmptyModelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gguf")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	emb := NewLocal(path, 768)
	_, err := emb.Embed(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLocal_EmptyTextIsZeroVector(t *testing.T) {
	emb := NewLocal(writeModelFile(t), 768)

	vec, err := emb.Embed(context.Background(), "   ")
	require.NoError(t, err)
	for _, v := range vec {
		require.Zero(t, v)
	}
}

func TestLocal_CacheReturnsCopy(t *testing.T) {
	emb := NewLocal(writeModelFile(t), 768)
	ctx := context.Background()

	first, err := emb.Embed(ctx, "cache me")
	require.NoError(t, err)
	first[0] = 99

	second, err := emb.Embed(ctx, "cache me")
	require.NoError(t, err)
	assert.NotEqual(t, float32(99), second[0])
}

func TestCheckDimension(t *testing.T) {
	assert.NoError(t, CheckDimension(make([]float32, 768), 768))
	assert.ErrorIs(t, CheckDimension(make([]float32, 512), 768), ErrBadDimension)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
