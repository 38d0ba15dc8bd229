package store

import (
	"database/sql"
	"time"
)

// PutMetrics overwrites metrics for every pattern in the map inside a single
// transaction. Patterns absent from the map keep whatever metrics they had.
func (db *DB) PutMetrics(metrics map[string]Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for id, m := range metrics {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO metrics
			(pattern_id, success_rate, error_rate, avg_latency_ms, recommendation_count, last_refreshed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, m.SuccessRate, m.ErrorRate, m.AvgLatencyMS,
			m.RecommendationCount, m.LastRefreshedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetMetric returns a pattern's metrics, or nil if none have been stored.
func (db *DB) GetMetric(id string) (*Metric, error) {
	row := db.conn.QueryRow(
		`SELECT pattern_id, success_rate, error_rate, avg_latency_ms, recommendation_count, last_refreshed_at
		 FROM metrics WHERE pattern_id = ?`, id,
	)

	var m Metric
	var refreshed string
	err := row.Scan(&m.PatternID, &m.SuccessRate, &m.ErrorRate,
		&m.AvgLatencyMS, &m.RecommendationCount, &refreshed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.LastRefreshedAt, _ = time.Parse(time.RFC3339, refreshed)
	return &m, nil
}
