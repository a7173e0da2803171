// Package entity implements the Entity Resolver (SPEC_FULL.md §4.3): given
// a candidate name extracted from a memory unit, decide whether it refers
// to an existing entity in the bank or should become a new one. Scoring
// blends name similarity, co-occurrence overlap, and recency, the same
// multi-signal shape the teacher's relationship scoring uses even though
// no teacher file implements entity resolution directly.
package entity

import (
	"strings"

	"github.com/memoryengine/memoryengine/internal/storage"
)

// Weights for the three resolution signals, summing to 1.0.
const (
	nameSimilarityWeight = 0.5
	coOccurrenceWeight   = 0.3
	recencyWeight        = 0.2
	acceptThreshold      = 0.6
	recencyWindowDays    = 7.0
	millisPerDay         = int64(24 * 60 * 60 * 1000)
)

// Candidate is one existing entity scored against an incoming name.
type Candidate struct {
	Entity *storage.Entity
	Score  float64
}

// Resolver resolves candidate entity names against a bank's existing
// entities.
type Resolver struct {
	db *storage.DB
}

// New constructs a Resolver over db.
func New(db *storage.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve finds the best-matching existing entity for name within bankID,
// considering coMentionedEntityIDs (other entities already resolved for
// the same incoming memory unit, used for the co-occurrence signal) and
// nowMillis (used for the recency signal). It returns nil if no candidate
// clears acceptThreshold, signaling the caller should create a new entity.
func (r *Resolver) Resolve(bankID, name string, coMentionedEntityIDs []string, nowMillis int64) (*storage.Entity, error) {
	if exact, err := r.db.FindEntityByExactName(bankID, name); err != nil {
		return nil, err
	} else if exact != nil {
		return exact, nil
	}

	candidates, err := r.db.ListEntitiesByBank(bankID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	coMentioned := make(map[string]bool, len(coMentionedEntityIDs))
	for _, id := range coMentionedEntityIDs {
		coMentioned[id] = true
	}

	var best *Candidate
	for _, e := range candidates {
		score, err := r.score(e, name, coMentionedEntityIDs, nowMillis)
		if err != nil {
			return nil, err
		}
		if best == nil || score > best.Score {
			best = &Candidate{Entity: e, Score: score}
		}
	}

	if best == nil || best.Score < acceptThreshold {
		return nil, nil
	}
	return best.Entity, nil
}

func (r *Resolver) score(e *storage.Entity, name string, nearbyEntityIDs []string, nowMillis int64) (float64, error) {
	nameScore := diceCoefficient(strings.ToLower(name), strings.ToLower(e.Name))

	coOccur, err := r.coOccurScore(e, nearbyEntityIDs)
	if err != nil {
		return 0, err
	}

	age := nowMillis - e.LastUpdated
	recency := linearRecencyDecay(age)

	return nameSimilarityWeight*nameScore + coOccurrenceWeight*coOccur + recencyWeight*recency, nil
}

// coOccurScore is overlap_count / nearby_count (SPEC_FULL.md §4.3):
// nearby_count is how many other entities were resolved for the same
// incoming memory unit, and overlap_count is how many of those already
// share at least one prior memory with e.
func (r *Resolver) coOccurScore(e *storage.Entity, nearbyEntityIDs []string) (float64, error) {
	if len(nearbyEntityIDs) == 0 {
		return 0, nil
	}

	eMemIDs, err := r.db.MemoryIDsForEntity(e.ID)
	if err != nil {
		return 0, err
	}
	eSet := make(map[string]bool, len(eMemIDs))
	for _, id := range eMemIDs {
		eSet[id] = true
	}

	overlap := 0
	for _, nearbyID := range nearbyEntityIDs {
		if nearbyID == e.ID {
			continue
		}
		nearbyMemIDs, err := r.db.MemoryIDsForEntity(nearbyID)
		if err != nil {
			return 0, err
		}
		for _, id := range nearbyMemIDs {
			if eSet[id] {
				overlap++
				break
			}
		}
	}
	return float64(overlap) / float64(len(nearbyEntityIDs)), nil
}

// linearRecencyDecay is max(0, 1 − days_since_last_update/7) (SPEC_FULL.md
// §4.3), a linear falloff rather than an exponential half-life.
func linearRecencyDecay(ageMillis int64) float64 {
	if ageMillis <= 0 {
		return 1.0
	}
	days := float64(ageMillis) / float64(millisPerDay)
	score := 1.0 - days/recencyWindowDays
	if score < 0 {
		return 0
	}
	return score
}

// diceCoefficient computes the Sørensen-Dice bigram similarity of two
// strings, the name-similarity signal SPEC_FULL.md §4.3 calls for.
func diceCoefficient(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	matches := 0
	used := make([]bool, len(bb))
	for _, x := range ba {
		for j, y := range bb {
			if !used[j] && x == y {
				used[j] = true
				matches++
				break
			}
		}
	}
	return 2.0 * float64(matches) / float64(len(ba)+len(bb))
}

func bigrams(s string) []string {
	r := []rune(s)
	if len(r) < 2 {
		if len(r) == 1 {
			return []string{string(r)}
		}
		return nil
	}
	out := make([]string, 0, len(r)-1)
	for i := 0; i < len(r)-1; i++ {
		out = append(out, string(r[i:i+2]))
	}
	return out
}
