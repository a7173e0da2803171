// Package recall implements the Recall Engine (SPEC_FULL.md §4.6): four
// independent retrievers (semantic, fulltext, graph, temporal) fused by
// reciprocal rank fusion, then post-filtered and truncated to a token
// budget.
package recall

import (
	"context"
	"sort"

	"github.com/memoryengine/memoryengine/internal/logging"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/telemetry"
	"github.com/memoryengine/memoryengine/internal/vector"
)

var log = logging.GetLogger("recall")

// rrfK is the reciprocal rank fusion constant (SPEC_FULL.md §4.6).
const rrfK = 60

// DefaultTokenBudget caps the total content length (approximated as
// characters/4) returned by one recall call.
const DefaultTokenBudget = 4000

// graphWalkDepth bounds the graph retriever's breadth-first walk out from
// its seed set (SPEC_FULL.md §4.6: "bounded walk in the memory-link graph").
const graphWalkDepth = 2

// defaultFactTypes is what fact_types defaults to when a caller leaves it
// empty (SPEC_FULL.md §4.6): raw facts plus consolidated observations, but
// not e.g. a future fact_type a caller hasn't opted into yet.
var defaultFactTypes = []string{"experience", "world", "observation"}

// TimeRange bounds the temporal retriever and the optional post-filter to
// memory units whose validity window overlaps [Start, End] (both in
// milliseconds since epoch).
type TimeRange struct {
	Start int64
	End   int64
}

// Filters narrow a recall query beyond its text.
type Filters struct {
	FactType            string   // deprecated single-value form; prefer FactTypes
	FactTypes           []string // fact_type allowlist; defaults to defaultFactTypes when empty
	Tags                []string
	TagsMatch           string // "any" (default), "all", or "all_strict"
	ExcludeConsolidated bool
	MinConfidence       float64
	ValidAtMillis       *int64 // only units valid at this instant (valid_from <= t <= valid_to or unset)
	TimeRange           *TimeRange
}

// Options describes one recall call.
type Options struct {
	BankID      string
	Query       string
	Methods     []string // subset of {semantic, fulltext, graph, temporal}; empty means all
	Limit       int
	TokenBudget int
	Filters     Filters

	// SeedMemoryIDs seeds the graph retriever directly; when empty, the
	// graph retriever falls back to the top semantic hits as seeds.
	SeedMemoryIDs []string
	// MaxEntityFrequency drops hub entities (bank-wide mention_count above
	// this cap) from the graph walk so one ubiquitous entity doesn't pull
	// in the whole bank. 0 disables the cap.
	MaxEntityFrequency int
}

// Hit is one fused result.
type Hit struct {
	Unit        *storage.MemoryUnit
	EntityNames []string
	FusedScore  float64
	SourceRanks map[string]int // retriever name -> 1-based rank, for explainability
}

// Engine runs the four retrievers and fuses their rankings.
type Engine struct {
	db     *storage.DB
	memVec *vector.Store
	tel    telemetry.Instrumentation
}

// New constructs an Engine.
func New(db *storage.DB, memVec *vector.Store) *Engine {
	return &Engine{db: db, memVec: memVec, tel: telemetry.ForComponent("recall")}
}

// wantsMethod reports whether method should run: Methods empty means all
// four run (SPEC_FULL.md §4.6 default).
func wantsMethod(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

// Recall runs semantic, fulltext, graph and temporal retrieval in
// parallel-equivalent sequence (SQLite's single writer connection makes
// true concurrency pointless here), fuses rankings with RRF, applies
// post-filters, and truncates to the token budget.
func (e *Engine) Recall(ctx context.Context, opts Options) ([]Hit, error) {
	ctx, span := e.tel.StartSpan(ctx, "recall.Recall")
	defer span.End()

	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	budget := opts.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}

	rankings := map[string][]string{}

	var semanticIDs []string
	if wantsMethod(opts.Methods, "semantic") {
		var err error
		semanticIDs, err = e.semanticRetrieve(ctx, opts.BankID, opts.Query, opts.Limit*3)
		if err != nil {
			log.Warn("semantic retrieval failed", "error", err)
		} else {
			rankings["semantic"] = semanticIDs
		}
	}

	if wantsMethod(opts.Methods, "fulltext") {
		fulltextIDs, err := e.db.SearchFTS(opts.BankID, opts.Query, opts.Limit*3)
		if err != nil {
			log.Warn("fulltext retrieval failed", "error", err)
		} else {
			rankings["fulltext"] = fulltextIDs
		}
	}

	if wantsMethod(opts.Methods, "graph") {
		seeds := opts.SeedMemoryIDs
		if len(seeds) == 0 {
			seeds = semanticIDs
		}
		if len(seeds) == 0 {
			var err error
			seeds, err = e.semanticRetrieve(ctx, opts.BankID, opts.Query, opts.Limit)
			if err != nil {
				log.Warn("graph seed fallback retrieval failed", "error", err)
				seeds = nil
			}
		}
		graphIDs, err := e.graphRetrieve(opts.BankID, seeds, opts.MaxEntityFrequency, opts.Limit*2)
		if err != nil {
			log.Warn("graph retrieval failed", "error", err)
		} else {
			rankings["graph"] = graphIDs
		}
	}

	if wantsMethod(opts.Methods, "temporal") {
		temporalIDs, err := e.temporalRetrieve(opts.BankID, opts.Filters.TimeRange, opts.Limit*2)
		if err != nil {
			log.Warn("temporal retrieval failed", "error", err)
		} else {
			rankings["temporal"] = temporalIDs
		}
	}

	fused := fuse(rankings)

	var hits []Hit
	for _, f := range fused {
		unit, err := e.db.GetMemoryUnitByID(f.id)
		if err != nil {
			continue
		}
		if !passesFilters(unit, opts.Filters) {
			continue
		}
		hits = append(hits, Hit{Unit: unit, FusedScore: f.score, SourceRanks: f.ranks})
		if len(hits) >= opts.Limit {
			break
		}
	}

	hits = truncateToBudget(hits, budget)

	if err := e.attachEntityNames(hits); err != nil {
		log.Warn("failed to attach entity names", "error", err)
	}

	e.tel.AddOperation(ctx, "recall")
	log.LogBankOperation(opts.BankID, "recall", "hits", len(hits))
	return hits, nil
}

func (e *Engine) semanticRetrieve(ctx context.Context, bankID, query string, k int) ([]string, error) {
	hits, err := e.memVec.Search(ctx, bankID, query, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

type graphNeighbor struct {
	id     string
	weight float64
}

// graphRetrieve performs a bounded breadth-first walk out from seeds
// through entity, semantic and causal links (SPEC_FULL.md §4.6), dropping
// edges through hub entities whose bank-wide mention_count exceeds
// maxEntityFrequency, and returns neighbors ranked by edge weight.
func (e *Engine) graphRetrieve(bankID string, seeds []string, maxEntityFrequency, limit int) ([]string, error) {
	visited := map[string]bool{}
	for _, s := range seeds {
		visited[s] = true
	}

	var found []graphNeighbor
	frontier := append([]string{}, seeds...)
	for depth := 0; depth < graphWalkDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			for _, linkType := range []string{"entity", "semantic", "causal"} {
				links, err := e.db.LinksFrom(node, linkType)
				if err != nil {
					return nil, err
				}
				for _, l := range links {
					if visited[l.TargetID] {
						continue
					}
					if maxEntityFrequency > 0 && linkType == "entity" {
						hub, err := e.isHubLink(l, maxEntityFrequency)
						if err != nil {
							return nil, err
						}
						if hub {
							continue
						}
					}
					visited[l.TargetID] = true
					found = append(found, graphNeighbor{id: l.TargetID, weight: l.Weight})
					next = append(next, l.TargetID)
				}
			}
		}
		frontier = next
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].weight > found[j].weight })

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	ids := make([]string, len(found))
	for i, f := range found {
		ids[i] = f.id
	}
	return ids, nil
}

// isHubLink reports whether l was created via an entity whose bank-wide
// mention_count exceeds maxEntityFrequency, per the entity_ids recorded in
// the link's metadata by the entity-link creator.
func (e *Engine) isHubLink(l *storage.MemoryLink, maxEntityFrequency int) (bool, error) {
	raw, ok := l.Metadata["entity_ids"]
	if !ok {
		return false, nil
	}
	ids, ok := raw.([]interface{})
	if !ok {
		return false, nil
	}
	for _, v := range ids {
		idStr, ok := v.(string)
		if !ok {
			continue
		}
		ent, err := e.db.GetEntityByID(idStr)
		if err != nil {
			continue // entity deleted since the link was created
		}
		if ent.MentionCount > maxEntityFrequency {
			return true, nil
		}
	}
	return false, nil
}

// temporalRetrieve is a range scan over valid_from/valid_to scored by
// proximity to tr's midpoint (SPEC_FULL.md §4.6). With no time range it
// falls back to plain recency, the retriever's behavior before time_range
// support existed.
func (e *Engine) temporalRetrieve(bankID string, tr *TimeRange, limit int) ([]string, error) {
	if tr == nil {
		units, err := e.db.ListMemoryUnitsByBank(bankID, storage.MemoryUnitFilter{Limit: limit})
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(units))
		for i, u := range units {
			ids[i] = u.ID
		}
		return ids, nil
	}

	candidates, err := e.db.ListMemoryUnitsByBank(bankID, storage.MemoryUnitFilter{Limit: 500})
	if err != nil {
		return nil, err
	}

	midpoint := (tr.Start + tr.End) / 2
	type scored struct {
		id   string
		dist int64
	}
	var matches []scored
	for _, u := range candidates {
		if !rangesOverlap(u.ValidFrom, u.ValidTo, tr.Start, tr.End) {
			continue
		}
		ref := u.TemporalReference()
		if ref == nil {
			continue
		}
		dist := *ref - midpoint
		if dist < 0 {
			dist = -dist
		}
		matches = append(matches, scored{id: u.ID, dist: dist})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return ids, nil
}

// rangesOverlap reports whether a unit's [validFrom, validTo] window
// (either bound may be nil, meaning open-ended) overlaps [rangeStart,
// rangeEnd].
func rangesOverlap(validFrom, validTo *int64, rangeStart, rangeEnd int64) bool {
	if validTo != nil && *validTo < rangeStart {
		return false
	}
	if validFrom != nil && *validFrom > rangeEnd {
		return false
	}
	return true
}

type fusedEntry struct {
	id    string
	score float64
	ranks map[string]int
}

// fuse computes reciprocal rank fusion across named rankings: each
// retriever contributes 1/(k+rank) to an id's total score.
func fuse(rankings map[string][]string) []fusedEntry {
	scores := map[string]float64{}
	ranks := map[string]map[string]int{}

	for name, ids := range rankings {
		for i, id := range ids {
			rank := i + 1
			scores[id] += 1.0 / float64(rrfK+rank)
			if ranks[id] == nil {
				ranks[id] = map[string]int{}
			}
			ranks[id][name] = rank
		}
	}

	out := make([]fusedEntry, 0, len(scores))
	for id, score := range scores {
		out = append(out, fusedEntry{id: id, score: score, ranks: ranks[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func passesFilters(u *storage.MemoryUnit, f Filters) bool {
	var factTypes []string
	factTypes = append(factTypes, f.FactTypes...)
	if f.FactType != "" {
		factTypes = append(factTypes, f.FactType)
	}
	if len(factTypes) == 0 {
		factTypes = defaultFactTypes
	}
	if !containsStr(factTypes, u.FactType) {
		return false
	}

	if !passesTagMatch(u.Tags, f.Tags, f.TagsMatch) {
		return false
	}

	if f.ExcludeConsolidated && u.ConsolidatedAt != nil {
		return false
	}
	if f.MinConfidence > 0 && u.Confidence < f.MinConfidence {
		return false
	}
	if f.ValidAtMillis != nil {
		t := *f.ValidAtMillis
		if u.ValidFrom != nil && t < *u.ValidFrom {
			return false
		}
		if u.ValidTo != nil && t > *u.ValidTo {
			return false
		}
	}
	if f.TimeRange != nil && !rangesOverlap(u.ValidFrom, u.ValidTo, f.TimeRange.Start, f.TimeRange.End) {
		return false
	}
	return true
}

// passesTagMatch applies tags_match semantics (SPEC_FULL.md §4.6): "any"
// (default) requires at least one shared tag, "all" requires every
// required tag present as a subset check, "all_strict" is the same subset
// requirement used where cross-scope leakage must be prevented. An empty
// required-tags list always passes.
func passesTagMatch(unitTags, required []string, mode string) bool {
	if len(required) == 0 {
		return true
	}
	has := make(map[string]bool, len(unitTags))
	for _, t := range unitTags {
		has[t] = true
	}

	switch mode {
	case "all", "all_strict":
		for _, t := range required {
			if !has[t] {
				return false
			}
		}
		return true
	default: // "any"
		for _, t := range required {
			if has[t] {
				return true
			}
		}
		return false
	}
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// truncateToBudget drops hits from the tail once the running total content
// length exceeds a rough token estimate (chars/4, the common approximation
// used when no tokenizer is wired in).
func truncateToBudget(hits []Hit, tokenBudget int) []Hit {
	charBudget := tokenBudget * 4
	total := 0
	for i, h := range hits {
		total += len(h.Unit.Content)
		if total > charBudget {
			return hits[:i]
		}
	}
	return hits
}

func (e *Engine) attachEntityNames(hits []Hit) error {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Unit.ID
	}
	names, err := e.db.EntityNamesForMemories(ids)
	if err != nil {
		return err
	}
	for i := range hits {
		hits[i].EntityNames = names[hits[i].Unit.ID]
	}
	return nil
}
