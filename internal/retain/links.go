package retain

import (
	"context"

	"github.com/memoryengine/memoryengine/internal/ai"
	"github.com/memoryengine/memoryengine/internal/storage"
)

// ConsolidationCandidateThreshold is the minimum pairwise similarity
// between two unconsolidated raw facts for the consolidation engine to
// group them as a reconciliation candidate pair (SPEC_FULL.md §4.7 step 1;
// the Open Question on this constant is resolved in DESIGN.md). Existing
// observations are not matched against it: grouping skips any unit whose
// consolidated_at is set.
const ConsolidationCandidateThreshold = 0.5

// SemanticLinkThreshold is the minimum cosine similarity for retain to
// create a "semantic" link between the just-inserted unit and an existing
// one (SPEC_FULL.md §4.5 step 6).
const SemanticLinkThreshold = 0.80

// semanticSearchK bounds how many nearest neighbors retain considers per
// insert, keeping link creation O(k) rather than O(bank size).
const semanticSearchK = 10

// temporalWindowMillis is the ±window SPEC_FULL.md §4.5 step 6 scans for
// temporal-link candidates.
const temporalWindowMillis = int64(24 * 60 * 60 * 1000)

// temporalWeightFloor is the minimum weight a temporal link can carry, even
// for a candidate right at the edge of the window.
const temporalWeightFloor = 0.3

// temporalLinkCap bounds how many temporal neighbors one new fact links to.
const temporalLinkCap = 10

// defaultCausalWeight is used when extraction reports a causal relation
// without a usable strength.
const defaultCausalWeight = 0.6

// createLinks creates entity, semantic and temporal links from the
// newly inserted unit to existing related units, returning the count
// created. Causal links are created separately, once every fact in a
// retain batch has been inserted (see createCausalLinksFromRelations).
func (p *Pipeline) createLinks(ctx context.Context, unit *storage.MemoryUnit, entityIDs []string, queryVec []float32, now int64) (int, error) {
	count := 0

	n, err := p.createEntityLinks(unit, entityIDs, now)
	if err != nil {
		return count, err
	}
	count += n

	n, err = p.createSemanticLinks(ctx, unit, queryVec, now)
	if err != nil {
		return count, err
	}
	count += n

	n, err = p.createTemporalLinks(unit, now)
	if err != nil {
		return count, err
	}
	count += n

	return count, nil
}

// createEntityLinks connects unit to every other memory that shares at
// least one resolved entity, weighted by shared_count / max(|A|, |B|)
// where A and B are the two memories' resolved-entity sets (SPEC_FULL.md
// §4.5 step 6).
func (p *Pipeline) createEntityLinks(unit *storage.MemoryUnit, entityIDs []string, now int64) (int, error) {
	if len(entityIDs) == 0 {
		return 0, nil
	}

	shared := map[string][]string{}
	for _, eid := range entityIDs {
		memIDs, err := p.db.MemoryIDsForEntity(eid)
		if err != nil {
			return 0, err
		}
		for _, mid := range memIDs {
			if mid == unit.ID {
				continue
			}
			shared[mid] = append(shared[mid], eid)
		}
	}

	count := 0
	for targetID, sharedEntityIDs := range shared {
		targetEntityIDs, err := p.db.EntityIDsForMemory(targetID)
		if err != nil {
			return count, err
		}
		denom := len(entityIDs)
		if len(targetEntityIDs) > denom {
			denom = len(targetEntityIDs)
		}
		if denom == 0 {
			continue
		}
		weight := float64(len(sharedEntityIDs)) / float64(denom)
		if weight <= 0 {
			continue
		}
		if weight > 1 {
			weight = 1
		}
		if exists, err := p.db.LinkExists(unit.ID, targetID, "entity"); err != nil {
			return count, err
		} else if exists {
			continue
		}

		link := &storage.MemoryLink{
			ID:        p.gen.New(),
			BankID:    unit.BankID,
			SourceID:  unit.ID,
			TargetID:  targetID,
			LinkType:  "entity",
			Weight:    weight,
			Metadata:  map[string]any{"entity_ids": sharedEntityIDs},
			CreatedAt: now,
		}
		if err := p.db.InsertLink(link); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (p *Pipeline) createSemanticLinks(ctx context.Context, unit *storage.MemoryUnit, queryVec []float32, now int64) (int, error) {
	if queryVec == nil {
		return 0, nil
	}
	hits, err := p.memVec.SearchByVector(ctx, unit.BankID, queryVec, semanticSearchK)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, h := range hits {
		if h.ID == unit.ID || h.Score() < SemanticLinkThreshold {
			continue
		}
		if exists, err := p.db.LinkExists(unit.ID, h.ID, "semantic"); err != nil {
			return count, err
		} else if exists {
			continue
		}

		link := &storage.MemoryLink{
			ID:        p.gen.New(),
			BankID:    unit.BankID,
			SourceID:  unit.ID,
			TargetID:  h.ID,
			LinkType:  "semantic",
			Weight:    h.Score(),
			CreatedAt: now,
		}
		if err := p.db.InsertLink(link); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// createTemporalLinks links unit to other units in the bank whose temporal
// reference falls within ±temporalWindowMillis, weighted by proximity with
// a floor so even edge-of-window neighbors stay meaningfully linked, capped
// at temporalLinkCap neighbors in candidate order (SPEC_FULL.md §4.5 step 6).
func (p *Pipeline) createTemporalLinks(unit *storage.MemoryUnit, now int64) (int, error) {
	ref := unit.TemporalReference()
	if ref == nil {
		return 0, nil
	}

	candidates, err := p.db.ListMemoryUnitsByBank(unit.BankID, storage.MemoryUnitFilter{Limit: 200})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range candidates {
		if count >= temporalLinkCap {
			break
		}
		if c.ID == unit.ID {
			continue
		}
		cref := c.TemporalReference()
		if cref == nil {
			continue
		}
		delta := *ref - *cref
		if delta < 0 {
			delta = -delta
		}
		if delta > temporalWindowMillis {
			continue
		}
		if exists, err := p.db.LinkExists(unit.ID, c.ID, "temporal"); err != nil {
			return count, err
		} else if exists {
			continue
		}

		weight := 1.0 - float64(delta)/float64(temporalWindowMillis)
		if weight < temporalWeightFloor {
			weight = temporalWeightFloor
		}
		link := &storage.MemoryLink{
			ID:        p.gen.New(),
			BankID:    unit.BankID,
			SourceID:  unit.ID,
			TargetID:  c.ID,
			LinkType:  "temporal",
			Weight:    weight,
			CreatedAt: now,
		}
		if err := p.db.InsertLink(link); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// createCausalLinksFromRelations turns one fact's extraction-reported
// causal_relations into causal links. ids is the full batch's
// fact-index-to-memory-id mapping (SPEC_FULL.md §4.5 step 6: causal edges
// are driven by extraction output, not a keyword heuristic), so a relation
// can point forward or backward within the same retain call.
func (p *Pipeline) createCausalLinksFromRelations(unit *storage.MemoryUnit, relations []ai.CausalRelation, ids []string, now int64) (int, error) {
	count := 0
	for _, rel := range relations {
		if rel.TargetIndex < 0 || rel.TargetIndex >= len(ids) {
			continue
		}
		targetID := ids[rel.TargetIndex]
		if targetID == "" || targetID == unit.ID {
			continue
		}
		if exists, err := p.db.LinkExists(unit.ID, targetID, "causal"); err != nil {
			return count, err
		} else if exists {
			continue
		}

		weight := rel.Strength
		if weight <= 0 || weight > 1 {
			weight = defaultCausalWeight
		}
		link := &storage.MemoryLink{
			ID:        p.gen.New(),
			BankID:    unit.BankID,
			SourceID:  unit.ID,
			TargetID:  targetID,
			LinkType:  "causal",
			Weight:    weight,
			Metadata:  map[string]any{"relation_type": rel.RelationType},
			CreatedAt: now,
		}
		if err := p.db.InsertLink(link); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
