// Package dedup implements the duplicate-detection step of the Retain
// Pipeline (SPEC_FULL.md §4.4): before a new memory unit is written, check
// whether an existing unit in the same bank already says the same thing
// closely enough that writing a second copy would be noise rather than
// signal.
package dedup

import (
	"context"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/vector"
)

// TopK is the number of nearest neighbors considered before the threshold
// check (SPEC_FULL.md §4.4).
const TopK = 5

// Threshold is the cosine-similarity cutoff above which a candidate counts
// as a duplicate.
const Threshold = 0.92

// Result reports whether a near-duplicate was found.
type Result struct {
	Duplicate *storage.MemoryUnit
	Score     float64
}

// Checker runs the duplicate check against a bank's memory vectors.
type Checker struct {
	db *storage.DB
	vs *vector.Store
}

// New constructs a Checker backed by db and the memory-namespace vector
// store vs.
func New(db *storage.DB, vs *vector.Store) *Checker {
	return &Checker{db: db, vs: vs}
}

// Check searches for a near-duplicate of content within bankID using
// threshold as the cosine-similarity cutoff; pass 0 to use the package
// Threshold default (SPEC_FULL.md §4.5's dedup_threshold option overrides
// it per retain call). A nil Result means no duplicate was found and
// retain should proceed with insertion; queryVec is returned so callers
// that proceed to insert can reuse it instead of re-embedding the same
// text.
func (c *Checker) Check(ctx context.Context, bankID, content string, threshold float64) (*Result, []float32, error) {
	if threshold <= 0 {
		threshold = Threshold
	}
	queryVec, err := c.vs.Embed(ctx, content)
	if err != nil {
		return nil, nil, err
	}

	hits, err := c.vs.SearchByVector(ctx, bankID, queryVec, TopK)
	if err != nil {
		return nil, nil, err
	}

	for _, h := range hits {
		if h.BankID != bankID {
			continue
		}
		if h.Score() < threshold {
			// Hits are sorted ascending by distance (descending
			// similarity), so once one falls below threshold the rest
			// will too.
			break
		}
		m, err := c.db.GetMemoryUnitByID(h.ID)
		if err != nil {
			continue
		}
		return &Result{Duplicate: m, Score: h.Score()}, queryVec, nil
	}

	return nil, queryVec, nil
}
