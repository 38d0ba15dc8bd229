// Package rank scores similarity-search candidates into final
// recommendations by blending similarity with recency, usage, and observed
// success.
package rank

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/blackwell-systems/recall/internal/store"
)

// ErrInvalidWeights means the configured weights do not sum to 1.0.
var ErrInvalidWeights = errors.New("ranking weights must sum to 1.0")

// weightTolerance absorbs float accumulation error in the sum check.
const weightTolerance = 1e-6

// neutralScore is used when a signal carries no information: patterns with
// no observed metrics, or a batch where every candidate has the same value.
const neutralScore = 0.5

// Weights blends the four ranking signals. They must sum to 1.0.
type Weights struct {
	Similarity float64 `json:"similarity" mapstructure:"similarity"`
	Recency    float64 `json:"recency" mapstructure:"recency"`
	Usage      float64 `json:"usage" mapstructure:"usage"`
	Success    float64 `json:"success" mapstructure:"success"`
}

// Validate checks the sum-to-one invariant.
func (w Weights) Validate() error {
	sum := w.Similarity + w.Recency + w.Usage + w.Success
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: got %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

// Candidate is one similarity-search hit with its stored context.
type Candidate struct {
	Pattern    *store.Pattern
	Similarity float64
	// Metric is nil when the pattern has no observed outcomes yet.
	Metric *store.Metric
}

// Recommendation is a fully scored candidate.
type Recommendation struct {
	PatternID string  `json:"pattern_id"`
	Score     float64 `json:"score"`

	// Per-signal components, each in [0, 1].
	Similarity float64 `json:"similarity"`
	Recency    float64 `json:"recency"`
	Usage      float64 `json:"usage"`
	Success    float64 `json:"success"`

	Pattern     *store.Pattern `json:"pattern"`
	Explanation string         `json:"explanation"`
}

// Ranker scores candidates with a fixed, validated weight blend.
type Ranker struct {
	weights Weights
}

// New creates a ranker, rejecting weights that do not sum to 1.0.
func New(w Weights) (*Ranker, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{weights: w}, nil
}

// Rank scores every candidate and returns them ordered best first. Equal
// scores break ties by ascending pattern id. Recency and usage are min-max
// normalized within the batch; a batch where every candidate shares the same
// value scores neutral on that signal.
func (r *Ranker) Rank(candidates []Candidate, now time.Time) []Recommendation {
	if len(candidates) == 0 {
		return []Recommendation{}
	}

	recency := normalizeRecency(candidates, now)
	usage := normalizeUsage(candidates)

	recs := make([]Recommendation, len(candidates))
	for i, c := range candidates {
		success := neutralScore
		if c.Metric != nil {
			success = c.Metric.SuccessRate
		}

		score := r.weights.Similarity*c.Similarity +
			r.weights.Recency*recency[i] +
			r.weights.Usage*usage[i] +
			r.weights.Success*success

		recs[i] = Recommendation{
			PatternID:   c.Pattern.ID,
			Score:       score,
			Similarity:  c.Similarity,
			Recency:     recency[i],
			Usage:       usage[i],
			Success:     success,
			Pattern:     c.Pattern,
			Explanation: explain(c, recency[i], success),
		}
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].PatternID < recs[j].PatternID
	})
	return recs
}

// normalizeRecency min-max normalizes pattern ages so the newest candidate
// scores 1 and the oldest 0.
func normalizeRecency(candidates []Candidate, now time.Time) []float64 {
	ages := make([]float64, len(candidates))
	for i, c := range candidates {
		ages[i] = now.Sub(c.Pattern.CreatedAt).Seconds()
	}
	scores := minMax(ages)
	// Older means a larger age, so invert.
	for i := range scores {
		scores[i] = 1 - scores[i]
	}
	return scores
}

// normalizeUsage min-max normalizes usage counts within the batch.
func normalizeUsage(candidates []Candidate) []float64 {
	counts := make([]float64, len(candidates))
	for i, c := range candidates {
		counts[i] = float64(c.Pattern.UsageCount)
	}
	return minMax(counts)
}

// minMax scales values into [0, 1]. A degenerate batch where every value is
// equal scores neutral across the board.
func minMax(values []float64) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	scores := make([]float64, len(values))
	if hi == lo {
		for i := range scores {
			scores[i] = neutralScore
		}
		return scores
	}
	for i, v := range values {
		scores[i] = (v - lo) / (hi - lo)
	}
	return scores
}

// explain builds the human-readable rationale shown next to a
// recommendation.
func explain(c Candidate, recency, success float64) string {
	commit := c.Pattern.SourceCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}

	quality := "similar to your query"
	switch {
	case c.Similarity >= 0.8:
		quality = "strong match for your query"
	case c.Similarity < 0.4:
		quality = "loose match for your query"
	}

	age := "recent"
	if recency < 0.3 {
		age = "older"
	}

	outcome := ""
	if c.Metric != nil {
		switch {
		case success >= 0.8:
			outcome = ", worked well in production"
		case success < 0.4:
			outcome = ", mixed production results"
		}
	}

	return fmt.Sprintf("%q is a %s; %s pattern from commit %s%s",
		c.Pattern.Description, quality, age, commit, outcome)
}
