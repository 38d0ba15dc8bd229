// Package observe queries an OpenObserve backend for aggregated pattern
// outcomes: latency, error rate, and recommendation volume per pattern.
package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/blackwell-systems/recall/internal/config"
)

// Environment variables carrying aggregator credentials. They are never read
// from the config file.
const (
	EnvUser  = "RECALL_AGGREGATOR_USER"
	EnvToken = "RECALL_AGGREGATOR_TOKEN"
)

// defaultUser is used when EnvUser is unset.
const defaultUser = "root@example.com"

// Sentinel errors distinguishing timeout from other transport failures so
// callers can report them separately.
var (
	ErrAggregatorUnreachable = errors.New("telemetry aggregator unreachable")
	ErrAggregatorTimeout     = errors.New("telemetry aggregator timed out")
	ErrMetricsNotFound       = errors.New("no metrics for pattern")
)

// PatternMetrics holds one pattern's aggregated outcomes for the queried
// window.
type PatternMetrics struct {
	PatternID           string  `json:"pattern_id"`
	AvgLatencyMS        float64 `json:"avg_latency_ms"`
	ErrorRate           float64 `json:"error_rate"`
	SuccessRate         float64 `json:"success_rate"`
	RecommendationCount int     `json:"recommendation_count"`
}

// Window is the result of one aggregation query, keyed by pattern id.
type Window map[string]PatternMetrics

// ForPattern returns a single pattern's metrics from the window.
func (w Window) ForPattern(id string) (PatternMetrics, error) {
	m, ok := w[id]
	if !ok {
		return PatternMetrics{}, fmt.Errorf("%w: %s", ErrMetricsNotFound, id)
	}
	return m, nil
}

// Client queries the aggregator's search API over HTTP with basic auth.
type Client struct {
	baseURL string
	org     string
	stream  string
	user    string
	token   string
	http    *http.Client
}

// NewClient builds a client from aggregator settings plus credentials taken
// from the environment. A missing token is an error; refreshing metrics
// without credentials cannot succeed.
func NewClient(cfg config.Aggregator) (*Client, error) {
	token := os.Getenv(EnvToken)
	if token == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrAggregatorUnreachable, EnvToken)
	}
	user := os.Getenv(EnvUser)
	if user == "" {
		user = defaultUser
	}

	return &Client{
		baseURL: cfg.BaseURL,
		org:     cfg.Org,
		stream:  cfg.Stream,
		user:    user,
		token:   token,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
	}, nil
}

// searchRequest is the aggregator's SQL search payload.
type searchRequest struct {
	Query sqlQuery `json:"query"`
}

type sqlQuery struct {
	SQL       string `json:"sql"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	From      int    `json:"from"`
	Size      int    `json:"size"`
}

// searchHit is one aggregated row. error_count arrives as a float because
// the backend returns SUM aggregates as doubles.
type searchHit struct {
	PatternID           string  `json:"pattern_id"`
	AvgLatencyMS        float64 `json:"avg_latency_ms"`
	ErrorCount          float64 `json:"error_count"`
	RecommendationCount int     `json:"recommendation_count"`
}

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

// FetchWindow aggregates per-pattern outcomes over the trailing number of
// days. Patterns with no recorded events are simply absent from the window.
func (c *Client) FetchWindow(ctx context.Context, days int) (Window, error) {
	now := time.Now().UTC()
	req := searchRequest{
		Query: sqlQuery{
			SQL: fmt.Sprintf(`SELECT
  pattern_id,
  AVG(latency_ms) as avg_latency_ms,
  COUNT(*) as recommendation_count,
  SUM(CASE WHEN error = true THEN 1 ELSE 0 END) as error_count
FROM %s
GROUP BY pattern_id
ORDER BY recommendation_count DESC`, c.stream),
			StartTime: now.AddDate(0, 0, -days).UnixMicro(),
			EndTime:   now.UnixMicro(),
			From:      0,
			Size:      1000,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/%s/_search", c.baseURL, c.org)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.user, c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrAggregatorTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrAggregatorUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAggregatorUnreachable, resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrAggregatorUnreachable, err)
	}

	window := make(Window, len(sr.Hits))
	for _, hit := range sr.Hits {
		if hit.PatternID == "" {
			continue
		}
		errorRate := 0.0
		if hit.RecommendationCount > 0 {
			errorRate = hit.ErrorCount / float64(hit.RecommendationCount)
		}
		window[hit.PatternID] = PatternMetrics{
			PatternID:           hit.PatternID,
			AvgLatencyMS:        hit.AvgLatencyMS,
			ErrorRate:           errorRate,
			SuccessRate:         1 - errorRate,
			RecommendationCount: hit.RecommendationCount,
		}
	}
	return window, nil
}

// isTimeout distinguishes deadline expiry from other transport failures.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
