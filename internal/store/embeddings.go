package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector packs a float32 vector into a little-endian blob and returns
// the blob with the vector's L2 norm.
func encodeVector(vec []float32) ([]byte, float64) {
	blob := make([]byte, 4*len(vec))
	var norm float64
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[4*i:], math.Float32bits(v))
		norm += float64(v) * float64(v)
	}
	return blob, math.Sqrt(norm)
}

// decodeVector unpacks a little-endian float32 blob.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}

// ScanEmbeddings streams every stored embedding, ordered by pattern id, into
// fn. Returning an error from fn stops the scan.
func (db *DB) ScanEmbeddings(fn func(Embedding) error) error {
	rows, err := db.conn.Query(
		"SELECT pattern_id, vector, norm FROM embeddings ORDER BY pattern_id",
	)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e Embedding
		var blob []byte
		if err := rows.Scan(&e.PatternID, &blob, &e.Norm); err != nil {
			return err
		}
		e.Vector, err = decodeVector(blob)
		if err != nil {
			return fmt.Errorf("pattern %s: %w", e.PatternID, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetEmbedding returns one pattern's embedding, or nil if absent.
func (db *DB) GetEmbedding(id string) (*Embedding, error) {
	var e Embedding
	var blob []byte
	err := db.conn.QueryRow(
		"SELECT pattern_id, vector, norm FROM embeddings WHERE pattern_id = ?", id,
	).Scan(&e.PatternID, &blob, &e.Norm)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Vector, err = decodeVector(blob)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
