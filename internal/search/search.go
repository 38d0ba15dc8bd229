// Package search finds stored patterns similar to a query vector.
//
// Search is an exact linear scan over every stored embedding. At the store
// sizes a single repository produces this is faster and simpler than an
// approximate index, and it guarantees byte-for-byte reproducible results.
package search

import (
	"math"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/blackwell-systems/recall/internal/store"
)

// Result pairs a pattern id with its cosine similarity to the query.
type Result struct {
	PatternID  string  `json:"pattern_id"`
	Similarity float64 `json:"similarity"`
}

// Filters narrows a search before ranking.
type Filters struct {
	// MinScore drops candidates below this cosine similarity. Nil means no
	// threshold; similarity spans [-1, 1], so zero is a real cutoff, not
	// the absence of one.
	MinScore *float64
	// Tags keeps only patterns carrying at least one of these tags.
	Tags []string
	// PathGlob keeps only patterns touching a file that matches the glob.
	// Supports doublestar patterns like "internal/**/*.go".
	PathGlob string
	// Since keeps only patterns created at or after this time.
	Since time.Time
}

// Searcher runs similarity queries against a pattern store.
type Searcher struct {
	db *store.DB
}

// New creates a searcher over db.
func New(db *store.DB) *Searcher {
	return &Searcher{db: db}
}

// Search returns the topK most similar patterns to query, most similar
// first. Equal similarities break ties by ascending pattern id, so results
// are deterministic. An empty store yields an empty slice.
func (s *Searcher) Search(query []float32, topK int, f Filters) ([]Result, error) {
	if topK <= 0 {
		return []Result{}, nil
	}

	var queryNorm float64
	for _, v := range query {
		queryNorm += float64(v) * float64(v)
	}
	queryNorm = math.Sqrt(queryNorm)

	results := []Result{}
	err := s.db.ScanEmbeddings(func(e store.Embedding) error {
		sim := cosine(query, queryNorm, e.Vector, e.Norm)
		if f.MinScore != nil && sim < *f.MinScore {
			return nil
		}

		if len(f.Tags) > 0 || f.PathGlob != "" || !f.Since.IsZero() {
			ok, err := s.matchesPattern(e.PatternID, f)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		results = append(results, Result{PatternID: e.PatternID, Similarity: sim})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].PatternID < results[j].PatternID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// matchesPattern applies the metadata filters that need the pattern row.
func (s *Searcher) matchesPattern(id string, f Filters) (bool, error) {
	p, err := s.db.GetPattern(id)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}

	if !f.Since.IsZero() && p.CreatedAt.Before(f.Since) {
		return false, nil
	}

	if len(f.Tags) > 0 && !hasAnyTag(p.Tags, f.Tags) {
		return false, nil
	}

	if f.PathGlob != "" {
		matched := false
		for _, file := range p.Files {
			ok, err := doublestar.Match(f.PathGlob, file)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// hasAnyTag reports whether have and want share at least one tag.
func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// cosine computes cosine similarity given precomputed norms. Mismatched
// lengths and zero vectors score zero.
func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if len(a) != len(b) || aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
