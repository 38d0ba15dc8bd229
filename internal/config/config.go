package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level recall configuration.
type Config struct {
	RepoPath     string     `mapstructure:"repo_path"`
	StorePath    string     `mapstructure:"store_path"`
	ModelPath    string     `mapstructure:"model_path"`
	EmbeddingDim int        `mapstructure:"embedding_dim"`
	RefreshLimit int        `mapstructure:"refresh_limit"`
	MetricsDays  int        `mapstructure:"metrics_days"`
	TopK         int        `mapstructure:"top_k"`
	Weights      Weights    `mapstructure:"weights"`
	Aggregator   Aggregator `mapstructure:"aggregator"`
	Output       Output     `mapstructure:"output"`
}

// Weights defines the composite recommendation scoring weights.
// The ranker rejects any set that does not sum to 1.0.
type Weights struct {
	Similarity float64 `mapstructure:"similarity"`
	Recency    float64 `mapstructure:"recency"`
	Usage      float64 `mapstructure:"usage"`
	Success    float64 `mapstructure:"success"`
}

// Aggregator defines how to reach the telemetry aggregator backend.
// Credentials are never read from the config file; the client takes them
// from RECALL_AGGREGATOR_USER and RECALL_AGGREGATOR_TOKEN.
type Aggregator struct {
	BaseURL   string `mapstructure:"base_url"`
	Org       string `mapstructure:"org"`
	Stream    string `mapstructure:"stream"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("repo_path", DefaultRepoPath)
	v.SetDefault("store_path", DBPath())
	v.SetDefault("model_path", DefaultModelPath)
	v.SetDefault("embedding_dim", DefaultEmbeddingDim)
	v.SetDefault("refresh_limit", DefaultRefreshLimit)
	v.SetDefault("metrics_days", DefaultMetricsDays)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("weights.similarity", DefaultWeights.Similarity)
	v.SetDefault("weights.recency", DefaultWeights.Recency)
	v.SetDefault("weights.usage", DefaultWeights.Usage)
	v.SetDefault("weights.success", DefaultWeights.Success)
	v.SetDefault("aggregator.base_url", DefaultAggregator.BaseURL)
	v.SetDefault("aggregator.org", DefaultAggregator.Org)
	v.SetDefault("aggregator.stream", DefaultAggregator.Stream)
	v.SetDefault("aggregator.timeout_ms", DefaultAggregator.TimeoutMS)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Expand paths.
	cfg.RepoPath = expandPath(cfg.RepoPath)
	cfg.StorePath = expandPath(cfg.StorePath)
	cfg.ModelPath = expandPath(cfg.ModelPath)

	return &cfg, nil
}

// DBPath returns the default path to the SQLite pattern store.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
