package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/recall/internal/config"
	"github.com/blackwell-systems/recall/internal/embedder"
	"github.com/blackwell-systems/recall/internal/gitlog"
	"github.com/blackwell-systems/recall/internal/observe"
	"github.com/blackwell-systems/recall/internal/rank"
	"github.com/blackwell-systems/recall/internal/search"
	"github.com/blackwell-systems/recall/internal/store"
)

// fakeReader serves a fixed commit history.
type fakeReader struct {
	commits []gitlog.Commit
}

func (f *fakeReader) Recent(ctx context.Context, limit int) ([]gitlog.Commit, error) {
	if limit < len(f.commits) {
		return f.commits[:limit], nil
	}
	return f.commits, nil
}

// stubEmbedder fails selected texts with a dimension error.
type stubEmbedder struct {
	dim int
	bad map[string]bool
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.bad[text] {
		return nil, fmt.Errorf("%w: got 512", embedder.ErrBadDimension)
	}
	vec := make([]float32, s.dim)
	vec[0] = 1
	return vec, nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }

// stubMetrics returns a canned window or error.
type stubMetrics struct {
	window observe.Window
	err    error
	calls  int
}

func (s *stubMetrics) FetchWindow(ctx context.Context, days int) (observe.Window, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.window, nil
}

func testConfig() *config.Config {
	return &config.Config{
		TopK:    5,
		Weights: config.DefaultWeights,
	}
}

func localEmbedder(t *testing.T) *embedder.Local {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(path, []byte("stub weights"), 0o644))
	return embedder.NewLocal(path, 768)
}

func newTestEngine(t *testing.T, reader gitlog.Reader, emb embedder.Embedder, metrics MetricsSource) *Engine {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e, err := New(testConfig(), db, emb, reader, metrics)
	require.NoError(t, err)
	return e
}

func commitAt(sha, summary string, files ...string) gitlog.Commit {
	return gitlog.Commit{
		SHA:     sha,
		Time:    time.Unix(1700000000, 0).UTC(),
		Summary: summary,
		Files:   files,
		Parents: 1,
	}
}

func TestNew_RejectsInvalidWeights(t *testing.T) {
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig()
	cfg.Weights = config.Weights{Similarity: 0.9, Recency: 0.9}

	_, err = New(cfg, db, &stubEmbedder{dim: 4}, &fakeReader{}, nil)
	assert.ErrorIs(t, err, rank.ErrInvalidWeights)
}

func TestInit_RefusesSecondRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")

	require.NoError(t, Init(path))
	assert.ErrorIs(t, Init(path), store.ErrAlreadyInitialized)
}

func TestRefresh_IndexesAndIsIdempotent(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat(auth): add JWT authentication middleware", "auth/middleware.go"),
		commitAt("c2", "fix(db): resolve connection pool leak", "db/pool.go"),
	}}
	e := newTestEngine(t, reader, localEmbedder(t), nil)
	ctx := context.Background()

	first, err := e.Refresh(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Extracted)
	assert.Equal(t, 2, first.Indexed)
	assert.Zero(t, first.AlreadyIndexed)

	second, err := e.Refresh(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, second.Indexed)
	assert.Equal(t, 2, second.AlreadyIndexed)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PatternCount)
	assert.Equal(t, 2, stats.EmbeddingCount)
}

func TestRefresh_MissingModelAborts(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat: something", "a.go"),
	}}
	emb := embedder.NewLocal(filepath.Join(t.TempDir(), "missing.gguf"), 768)
	e := newTestEngine(t, reader, emb, nil)

	_, err := e.Refresh(context.Background(), 100)
	assert.ErrorIs(t, err, embedder.ErrModelUnavailable)

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PatternCount)
}

func TestRefresh_BadDimensionSkipsPattern(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat: good pattern", "a.go"),
		commitAt("c2", "feat: broken pattern", "b.go"),
	}}
	emb := &stubEmbedder{dim: 4, bad: map[string]bool{"broken pattern": true}}
	e := newTestEngine(t, reader, emb, nil)

	result, err := e.Refresh(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 1, result.Skipped)
}

func TestQuery_RanksSemanticallyClosestFirst(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat(auth): add authentication checks to middleware", "auth/middleware.go"),
		commitAt("c2", "fix(auth): handle expired tokens in auth middleware", "auth/middleware.go"),
		commitAt("c3", "feat(billing): compute invoice totals", "billing/invoice.go"),
	}}
	e := newTestEngine(t, reader, localEmbedder(t), nil)
	ctx := context.Background()

	_, err := e.Refresh(ctx, 100)
	require.NoError(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.PatternCount)
	assert.Equal(t, 3, stats.EmbeddingCount)

	result, err := e.Query(ctx, "add authentication middleware", 2, search.Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Recommendations)
	assert.NotEmpty(t, result.QueryID)
	assert.LessOrEqual(t, len(result.Recommendations), 2)

	// The closest pattern is one of the two auth commits.
	top := result.Recommendations[0]
	assert.Contains(t, []string{"c1", "c2"}, top.Pattern.SourceCommit)
	assert.Greater(t, top.Similarity, 0.0)
	assert.NotEmpty(t, top.Explanation)
}

func TestQuery_Deterministic(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat: add request logging", "log.go"),
		commitAt("c2", "feat: add request tracing", "trace.go"),
	}}
	e := newTestEngine(t, reader, localEmbedder(t), nil)
	ctx := context.Background()

	_, err := e.Refresh(ctx, 100)
	require.NoError(t, err)

	first, err := e.Query(ctx, "request logging", 5, search.Filters{})
	require.NoError(t, err)
	second, err := e.Query(ctx, "request logging", 5, search.Filters{})
	require.NoError(t, err)

	require.Equal(t, len(first.Recommendations), len(second.Recommendations))
	for i := range first.Recommendations {
		assert.Equal(t, first.Recommendations[i].PatternID, second.Recommendations[i].PatternID)
		assert.Equal(t, first.Recommendations[i].Similarity, second.Recommendations[i].Similarity)
	}
}

func TestQuery_EmptyStore(t *testing.T) {
	e := newTestEngine(t, &fakeReader{}, localEmbedder(t), nil)

	result, err := e.Query(context.Background(), "anything at all", 5, search.Filters{})
	require.NoError(t, err)
	assert.Empty(t, result.Recommendations)
}

func TestRefreshMetrics_UpdatesOnlyCoveredPatterns(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat: alpha", "a.go"),
		commitAt("c2", "feat: beta", "b.go"),
	}}
	e := newTestEngine(t, reader, localEmbedder(t), nil)
	ctx := context.Background()

	_, err := e.Refresh(ctx, 100)
	require.NoError(t, err)

	ids, err := e.db.ListPatternIDs()
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// First window covers both patterns.
	e.metrics = &stubMetrics{window: observe.Window{
		ids[0]: {PatternID: ids[0], SuccessRate: 0.9, ErrorRate: 0.1, AvgLatencyMS: 100, RecommendationCount: 10},
		ids[1]: {PatternID: ids[1], SuccessRate: 0.5, ErrorRate: 0.5, AvgLatencyMS: 200, RecommendationCount: 5},
	}}
	result, err := e.RefreshMetrics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)

	// Second window only covers the first; the second keeps prior values.
	e.metrics = &stubMetrics{window: observe.Window{
		ids[0]: {PatternID: ids[0], SuccessRate: 0.95, ErrorRate: 0.05, AvgLatencyMS: 80, RecommendationCount: 20},
	}}
	result, err = e.RefreshMetrics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	m0, err := e.db.GetMetric(ids[0])
	require.NoError(t, err)
	assert.InDelta(t, 0.95, m0.SuccessRate, 1e-9)

	m1, err := e.db.GetMetric(ids[1])
	require.NoError(t, err)
	require.NotNil(t, m1)
	assert.InDelta(t, 0.5, m1.SuccessRate, 1e-9)
}

func TestRefreshMetrics_FetchFailureWritesNothing(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat: alpha", "a.go"),
	}}
	e := newTestEngine(t, reader, localEmbedder(t),
		&stubMetrics{err: observe.ErrAggregatorTimeout})
	ctx := context.Background()

	_, err := e.Refresh(ctx, 100)
	require.NoError(t, err)

	_, err = e.RefreshMetrics(ctx, 7)
	assert.ErrorIs(t, err, observe.ErrAggregatorTimeout)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.MetricCount)
}

func TestRefreshMetrics_NoAggregatorConfigured(t *testing.T) {
	e := newTestEngine(t, &fakeReader{}, localEmbedder(t), nil)

	_, err := e.RefreshMetrics(context.Background(), 7)
	assert.ErrorIs(t, err, observe.ErrAggregatorUnreachable)
}

func TestAccept_FeedsUsageSignal(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat: alpha", "a.go"),
	}}
	e := newTestEngine(t, reader, localEmbedder(t), nil)
	ctx := context.Background()

	_, err := e.Refresh(ctx, 100)
	require.NoError(t, err)

	ids, err := e.db.ListPatternIDs()
	require.NoError(t, err)
	require.NoError(t, e.Accept(ctx, ids[0]))
	require.NoError(t, e.Accept(ctx, ids[0]))

	p, err := e.db.GetPattern(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, p.UsageCount)
}

func TestMetricsShiftRanking(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat: add retry logic for network calls", "retry.go"),
		commitAt("c2", "feat: add retry logic for network requests", "retry2.go"),
	}}
	e := newTestEngine(t, reader, localEmbedder(t), nil)
	ctx := context.Background()

	_, err := e.Refresh(ctx, 100)
	require.NoError(t, err)

	// Give the currently second pattern a perfect record and the current
	// winner a bad one.
	result, err := e.Query(ctx, "add retry logic", 2, search.Filters{})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 2)
	winning := result.Recommendations[1].PatternID
	losing := result.Recommendations[0].PatternID

	require.NoError(t, e.db.PutMetrics(map[string]store.Metric{
		winning: {PatternID: winning, SuccessRate: 1.0, LastRefreshedAt: time.Now().UTC()},
		losing:  {PatternID: losing, SuccessRate: 0.0, ErrorRate: 1.0, LastRefreshedAt: time.Now().UTC()},
	}))

	after, err := e.Query(ctx, "add retry logic", 2, search.Filters{})
	require.NoError(t, err)
	require.Len(t, after.Recommendations, 2)
	assert.Equal(t, winning, after.Recommendations[0].PatternID)
}

func TestRefresh_CancellationStopsWrites(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commitAt("c1", "feat: alpha", "a.go"),
		commitAt("c2", "feat: beta", "b.go"),
	}}
	// The stub ignores the context, so cancellation must be caught by the
	// write loop itself.
	e := newTestEngine(t, reader, &stubEmbedder{dim: 4}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Refresh(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PatternCount)
}

func TestRefresh_ExtractorErrorPropagates(t *testing.T) {
	e := newTestEngine(t, &errReader{}, localEmbedder(t), nil)

	_, err := e.Refresh(context.Background(), 100)
	assert.Error(t, err)
}

type errReader struct{}

func (e *errReader) Recent(ctx context.Context, limit int) ([]gitlog.Commit, error) {
	return nil, errors.New("git unavailable")
}
