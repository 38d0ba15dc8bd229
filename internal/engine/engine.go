// Package engine coordinates the full recommendation pipeline: extracting
// patterns from history, embedding and storing them, enriching them with
// observed outcomes, and answering queries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/recall/internal/config"
	"github.com/blackwell-systems/recall/internal/embedder"
	"github.com/blackwell-systems/recall/internal/extract"
	"github.com/blackwell-systems/recall/internal/gitlog"
	"github.com/blackwell-systems/recall/internal/observe"
	"github.com/blackwell-systems/recall/internal/rank"
	"github.com/blackwell-systems/recall/internal/search"
	"github.com/blackwell-systems/recall/internal/store"
)

// MetricsSource supplies aggregated pattern outcomes. Satisfied by
// observe.Client; tests substitute a stub.
type MetricsSource interface {
	FetchWindow(ctx context.Context, days int) (observe.Window, error)
}

// Engine wires the pipeline components together.
type Engine struct {
	cfg       *config.Config
	db        *store.DB
	emb       embedder.Embedder
	extractor *extract.Extractor
	searcher  *search.Searcher
	ranker    *rank.Ranker
	metrics   MetricsSource
}

// New assembles an engine. The ranker weights come from cfg and are
// validated here, so a misconfigured weight set fails before any operation
// runs. metrics may be nil when no aggregator is configured.
func New(cfg *config.Config, db *store.DB, emb embedder.Embedder, reader gitlog.Reader, metrics MetricsSource) (*Engine, error) {
	ranker, err := rank.New(rank.Weights{
		Similarity: cfg.Weights.Similarity,
		Recency:    cfg.Weights.Recency,
		Usage:      cfg.Weights.Usage,
		Success:    cfg.Weights.Success,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		db:        db,
		emb:       emb,
		extractor: extract.New(reader),
		searcher:  search.New(db),
		ranker:    ranker,
		metrics:   metrics,
	}, nil
}

// Init creates a brand-new store at storePath. It fails with
// store.ErrAlreadyInitialized when one exists and never touches existing
// data.
func Init(storePath string) error {
	db, err := store.Create(storePath)
	if err != nil {
		return err
	}
	return db.Close()
}

// RefreshResult summarizes one refresh run.
type RefreshResult struct {
	Extracted      int `json:"extracted"`
	Indexed        int `json:"indexed"`
	AlreadyIndexed int `json:"already_indexed"`
	Skipped        int `json:"skipped"`
}

// Refresh extracts patterns from the most recent limit commits, embeds the
// new ones in parallel, and stores each pattern with its vector atomically.
// Already-indexed patterns are left untouched, so running refresh twice on
// the same history is a no-op. Individual embeddings with a wrong
// dimensionality skip that pattern; a missing model aborts the whole run.
func (e *Engine) Refresh(ctx context.Context, limit int) (*RefreshResult, error) {
	candidates, err := e.extractor.Extract(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("extracting patterns: %w", err)
	}

	result := &RefreshResult{Extracted: len(candidates)}

	fresh := make([]extract.Candidate, 0, len(candidates))
	for _, c := range candidates {
		exists, err := e.db.HasPattern(c.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			result.AlreadyIndexed++
			continue
		}
		fresh = append(fresh, c)
	}

	vectors := make([][]float32, len(fresh))
	skipped := make([]bool, len(fresh))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, c := range fresh {
		g.Go(func() error {
			vec, err := e.emb.Embed(gctx, c.Description)
			if errors.Is(err, embedder.ErrBadDimension) {
				skipped[i] = true
				return nil
			}
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embedding patterns: %w", err)
	}

	// SQLite takes one writer at a time, so writes stay serial. Cancellation
	// is honored between patterns; everything committed so far is retained
	// and a re-run resumes where this one stopped.
	for i, c := range fresh {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if skipped[i] {
			log.Printf("Warning: skipping pattern from commit %s: bad embedding dimension", c.SourceCommit)
			result.Skipped++
			continue
		}
		p := &store.Pattern{
			ID:           c.ID,
			Description:  c.Description,
			Files:        c.Files,
			SourceCommit: c.SourceCommit,
			CreatedAt:    c.CreatedAt,
			Tags:         c.Tags,
		}
		if err := e.db.UpsertPatternWithEmbedding(p, vectors[i]); err != nil {
			return nil, fmt.Errorf("storing pattern %s: %w", c.ID, err)
		}
		result.Indexed++
	}

	return result, nil
}

// MetricsResult summarizes one metrics refresh.
type MetricsResult struct {
	Patterns int `json:"patterns"`
	Updated  int `json:"updated"`
}

// RefreshMetrics pulls the trailing window of aggregated outcomes and
// overwrites stored metrics for every pattern the window covers, in a
// single transaction. A fetch failure aborts before any write, and patterns
// absent from the window keep their prior metrics.
func (e *Engine) RefreshMetrics(ctx context.Context, days int) (*MetricsResult, error) {
	if e.metrics == nil {
		return nil, observe.ErrAggregatorUnreachable
	}

	ids, err := e.db.ListPatternIDs()
	if err != nil {
		return nil, err
	}

	window, err := e.metrics.FetchWindow(ctx, days)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := make(map[string]store.Metric)
	for _, id := range ids {
		m, err := window.ForPattern(id)
		if errors.Is(err, observe.ErrMetricsNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		updates[id] = store.Metric{
			PatternID:           id,
			SuccessRate:         m.SuccessRate,
			ErrorRate:           m.ErrorRate,
			AvgLatencyMS:        m.AvgLatencyMS,
			RecommendationCount: m.RecommendationCount,
			LastRefreshedAt:     now,
		}
	}

	if err := e.db.PutMetrics(updates); err != nil {
		return nil, err
	}

	return &MetricsResult{Patterns: len(ids), Updated: len(updates)}, nil
}

// QueryResult is the answer to one query.
type QueryResult struct {
	QueryID         string                `json:"query_id"`
	Query           string                `json:"query"`
	Recommendations []rank.Recommendation `json:"recommendations"`
}

// Query embeds the text, finds similar patterns, and ranks them. The search
// over-fetches so ranking has room to reorder before the final cut to topK.
// An empty store yields an empty recommendation list, not an error.
func (e *Engine) Query(ctx context.Context, text string, topK int, filters search.Filters) (*QueryResult, error) {
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	queryVec, err := e.emb.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.searcher.Search(queryVec, topK*2, filters)
	if err != nil {
		return nil, fmt.Errorf("searching patterns: %w", err)
	}

	candidates := make([]rank.Candidate, 0, len(hits))
	for _, hit := range hits {
		p, err := e.db.GetPattern(hit.PatternID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		m, err := e.db.GetMetric(hit.PatternID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, rank.Candidate{
			Pattern:    p,
			Similarity: hit.Similarity,
			Metric:     m,
		})
	}

	recs := e.ranker.Rank(candidates, time.Now().UTC())
	if len(recs) > topK {
		recs = recs[:topK]
	}

	return &QueryResult{
		QueryID:         uuid.NewString(),
		Query:           text,
		Recommendations: recs,
	}, nil
}

// Accept records that a recommendation was used, feeding the usage signal
// of future rankings. Unknown ids are a no-op.
func (e *Engine) Accept(ctx context.Context, patternID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.db.IncrementUsage(patternID)
}

// Stats reports store contents.
func (e *Engine) Stats(ctx context.Context) (*store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.db.Stats()
}
