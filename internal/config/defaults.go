// Package config provides configuration loading and defaults for recall.
package config

// DefaultRepoPath is the repository whose history is indexed.
const DefaultRepoPath = "."

// DefaultConfigDir is the default location for recall configuration.
const DefaultConfigDir = "~/.config/recall"

// DefaultDBName is the filename for the SQLite pattern store.
const DefaultDBName = "recall.db"

// DefaultModelPath is the default location of the local quantized
// embedding model artifact.
const DefaultModelPath = "~/.config/recall/models/embeddinggemma-300M-Q8_0.gguf"

// DefaultEmbeddingDim is the vector dimensionality of the embedding model.
const DefaultEmbeddingDim = 768

// DefaultRefreshLimit is the number of most-recent commits a refresh walks.
const DefaultRefreshLimit = 1000

// DefaultMetricsDays is the trailing window for metric aggregation.
const DefaultMetricsDays = 7

// DefaultTopK is the number of recommendations a query returns.
const DefaultTopK = 5

// DefaultWeights holds the default recommendation scoring weights.
// The four factors must sum to 1.0.
var DefaultWeights = Weights{
	Similarity: 0.35,
	Recency:    0.35,
	Usage:      0.15,
	Success:    0.15,
}

// DefaultAggregator holds the default telemetry aggregator settings.
var DefaultAggregator = Aggregator{
	BaseURL:   "http://localhost:5080",
	Org:       "default",
	Stream:    "recall_recommendations",
	TimeoutMS: 5000,
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}
