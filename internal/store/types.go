package store

import "time"

// Pattern is a stored development pattern extracted from commit history.
type Pattern struct {
	// ID uniquely identifies the pattern across refreshes.
	ID string `json:"pattern_id"`
	// Description is the human-readable pattern summary.
	Description string `json:"description"`
	// Files lists the repository paths the pattern touches.
	Files []string `json:"files"`
	// SourceCommit is the commit the pattern was extracted from.
	SourceCommit string `json:"source_commit"`
	// CreatedAt is the source commit timestamp.
	CreatedAt time.Time `json:"created_at"`
	// UsageCount counts accepted recommendations of this pattern.
	UsageCount int `json:"usage_count"`
	// Tags carries the commit type and language tags.
	Tags []string `json:"tags"`
}

// Metric holds the observed operational outcomes for one pattern.
type Metric struct {
	PatternID           string    `json:"pattern_id"`
	SuccessRate         float64   `json:"success_rate"`
	ErrorRate           float64   `json:"error_rate"`
	AvgLatencyMS        float64   `json:"avg_latency_ms"`
	RecommendationCount int       `json:"recommendation_count"`
	LastRefreshedAt     time.Time `json:"last_refreshed_at"`
}

// Embedding is a stored vector keyed to its pattern.
type Embedding struct {
	PatternID string
	Vector    []float32
	// Norm is the precomputed L2 norm of Vector.
	Norm float64
}

// Stats summarizes store contents.
type Stats struct {
	PatternCount   int `json:"pattern_count"`
	EmbeddingCount int `json:"embedding_count"`
	MetricCount    int `json:"metric_count"`
}
