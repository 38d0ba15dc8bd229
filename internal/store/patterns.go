package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertPatternWithEmbedding writes a pattern and its embedding in a single
// transaction. Either both rows land or neither does, so the store never
// holds a pattern without its vector.
func (db *DB) UpsertPatternWithEmbedding(p *Pattern, vector []float32) error {
	files, err := json.Marshal(p.Files)
	if err != nil {
		return fmt.Errorf("encoding files: %w", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	blob, norm := encodeVector(vector)

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO patterns
		(pattern_id, description, files, source_commit, created_at, usage_count, tags)
		VALUES (?, ?, ?, ?, ?, COALESCE((SELECT usage_count FROM patterns WHERE pattern_id = ?), 0), ?)`,
		p.ID, p.Description, string(files), p.SourceCommit,
		p.CreatedAt.UTC().Format(time.RFC3339), p.ID, string(tags),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO embeddings (pattern_id, dim, vector, norm)
		VALUES (?, ?, ?, ?)`,
		p.ID, len(vector), blob, norm,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPattern returns a pattern by id, or nil if absent.
func (db *DB) GetPattern(id string) (*Pattern, error) {
	row := db.conn.QueryRow(
		`SELECT pattern_id, description, files, source_commit, created_at, usage_count, tags
		 FROM patterns WHERE pattern_id = ?`, id,
	)
	return scanPattern(row)
}

// HasPattern reports whether a pattern id is already stored.
func (db *DB) HasPattern(id string) (bool, error) {
	var one int
	err := db.conn.QueryRow("SELECT 1 FROM patterns WHERE pattern_id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListPatternIDs returns every stored pattern id, ordered.
func (db *DB) ListPatternIDs() ([]string, error) {
	rows, err := db.conn.Query("SELECT pattern_id FROM patterns ORDER BY pattern_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IncrementUsage bumps a pattern's usage count by one. Unknown ids are a
// no-op.
func (db *DB) IncrementUsage(id string) error {
	_, err := db.conn.Exec(
		"UPDATE patterns SET usage_count = usage_count + 1 WHERE pattern_id = ?", id,
	)
	return err
}

// Stats returns row counts per table.
func (db *DB) Stats() (*Stats, error) {
	var s Stats
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM patterns").Scan(&s.PatternCount); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&s.EmbeddingCount); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM metrics").Scan(&s.MetricCount); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanPattern(row *sql.Row) (*Pattern, error) {
	var p Pattern
	var files, tags, createdAt string
	err := row.Scan(&p.ID, &p.Description, &files, &p.SourceCommit,
		&createdAt, &p.UsageCount, &tags)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(files), &p.Files); err != nil {
		return nil, fmt.Errorf("decoding files for %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for %s: %w", p.ID, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}
