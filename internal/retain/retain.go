// Package retain implements the Retain Pipeline (SPEC_FULL.md §4.5): the
// single entry point for turning raw input text into durable memory
// units, deduplicated, entity-resolved, and linked to related memories.
package retain

import (
	"context"
	"fmt"
	"time"

	"github.com/memoryengine/memoryengine/internal/ai"
	"github.com/memoryengine/memoryengine/internal/dedup"
	"github.com/memoryengine/memoryengine/internal/entity"
	"github.com/memoryengine/memoryengine/internal/errs"
	"github.com/memoryengine/memoryengine/internal/ids"
	"github.com/memoryengine/memoryengine/internal/logging"
	"github.com/memoryengine/memoryengine/internal/sanitize"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/telemetry"
	"github.com/memoryengine/memoryengine/internal/vector"
)

var log = logging.GetLogger("retain")

// Options describes one retain call (SPEC_FULL.md §3/§4.5).
type Options struct {
	BankID        string
	Content       string
	FactType      string // defaults to "experience" when extraction is skipped
	DocumentID    *string
	ChunkID       *string
	ValidFrom     *int64
	ValidTo       *int64
	OccurredStart *int64
	OccurredEnd   *int64
	EventDate     *int64
	Tags          []string
	SkipExtraction bool // when true, Content is stored as a single unit rather than decomposed by the LLM

	// Facts, when non-empty, bypasses LLM extraction entirely: each entry is
	// stored as its own memory unit exactly as given (SPEC_FULL.md §4.5's
	// caller-provided "facts" option).
	Facts []ai.ExtractedFact

	// Mode and CustomGuidelines steer extraction prompting (e.g. a
	// "strict"/"liberal" extraction mode, or bank-specific instructions
	// appended to the extraction prompt). Both are forwarded to the LLM
	// client unchanged; a nil/empty value means "use the client's default".
	Mode             string
	CustomGuidelines string

	// Metadata is caller-supplied context carried alongside the retain call
	// (e.g. for async-operation bookkeeping); it is not persisted on the
	// memory unit itself.
	Metadata map[string]any

	// DedupThreshold overrides dedup.Threshold for this call; 0 means use
	// the package default.
	DedupThreshold float64

	// Consolidate requests that a consolidation pass run against BankID
	// after this retain call completes. The retain package cannot import
	// internal/consolidate (consolidate already imports retain for
	// ConsolidationCandidateThreshold), so Pipeline.Retain does not act on
	// this flag itself — callers at the app/httpapi/cmd layer must check
	// Options.Consolidate and invoke the consolidation engine themselves.
	Consolidate bool
}

// Result reports what retain did with one extracted fact.
type Result struct {
	Unit       *storage.MemoryUnit
	Deduped    bool
	Duplicate  *storage.MemoryUnit
	EntityIDs  []string
	LinksMade  int
}

// Pipeline wires storage, embeddings, entity resolution, dedup and the LLM
// client into the end-to-end retain operation.
type Pipeline struct {
	db        *storage.DB
	gen       *ids.Generator
	memVec    *vector.Store
	entityVec *vector.Store
	resolver  *entity.Resolver
	dedup     *dedup.Checker
	llm       *ai.Client
	tel       telemetry.Instrumentation
}

// New constructs a Pipeline. memVec and entityVec must be vector.Store
// instances over the "memory" and "entity" namespaces respectively.
func New(db *storage.DB, gen *ids.Generator, memVec, entityVec *vector.Store, resolver *entity.Resolver, dedupChecker *dedup.Checker, llm *ai.Client) *Pipeline {
	return &Pipeline{db: db, gen: gen, memVec: memVec, entityVec: entityVec, resolver: resolver, dedup: dedupChecker, llm: llm, tel: telemetry.ForComponent("retain")}
}

// Retain runs one input through the full pipeline, possibly producing
// several memory units if extraction decomposes the input into multiple
// facts. Each fact is deduplicated, entity-resolved, inserted and linked
// independently; causal links are then created in a second pass once every
// fact in the batch has an id, since a causal_relations target_index may
// point forward within the batch.
func (p *Pipeline) Retain(ctx context.Context, opts Options) ([]*Result, error) {
	if opts.BankID == "" {
		return nil, errs.New(errs.Validation, "bank_id is required")
	}

	ctx, span := p.tel.StartSpan(ctx, "retain.Retain")
	defer span.End()

	var facts []ai.ExtractedFact
	switch {
	case len(opts.Facts) > 0:
		// Caller-provided facts bypass both sanitization-driven fallback
		// and LLM extraction entirely (SPEC_FULL.md §4.5's "facts" option).
		facts = opts.Facts
	default:
		clean := sanitize.Text(opts.Content)
		if clean == "" {
			return nil, errs.New(errs.Validation, "content is empty after sanitization")
		}
		facts = []ai.ExtractedFact{{Content: clean, FactType: firstNonEmpty(opts.FactType, "experience"), Confidence: 1.0}}
		if !opts.SkipExtraction && p.llm != nil {
			extracted, err := p.llm.ExtractFactsWithGuidance(ctx, clean, opts.Mode, opts.CustomGuidelines)
			if err != nil {
				log.Warn("extraction failed, retaining raw content as one fact", "error", err)
			} else if len(extracted) > 0 {
				facts = extracted
			}
		}
	}

	results := make([]*Result, len(facts))
	ids := make([]string, len(facts))
	for i, f := range facts {
		r, err := p.retainOne(ctx, opts, f)
		if err != nil {
			return results[:i], err
		}
		results[i] = r
		ids[i] = r.Unit.ID
		p.tel.AddOperation(ctx, f.FactType)
	}

	now := time.Now().UnixMilli()
	for i, f := range facts {
		if len(f.CausalRelations) == 0 || results[i].Deduped {
			continue
		}
		n, err := p.createCausalLinksFromRelations(results[i].Unit, f.CausalRelations, ids, now)
		if err != nil {
			log.Warn("causal link creation failed", "memory_id", results[i].Unit.ID, "error", err)
			continue
		}
		results[i].LinksMade += n
	}

	log.LogBankOperation(opts.BankID, "retain", "facts", len(facts))
	return results, nil
}

func (p *Pipeline) retainOne(ctx context.Context, opts Options, fact ai.ExtractedFact) (*Result, error) {
	content := sanitize.Text(fact.Content)
	if content == "" {
		return nil, errs.New(errs.Validation, "extracted fact content is empty after sanitization")
	}
	if !storage.IsValidFactType(fact.FactType) {
		fact.FactType = "experience"
	}

	dupResult, queryVec, err := p.dedup.Check(ctx, opts.BankID, content, opts.DedupThreshold)
	if err != nil {
		return nil, err
	}
	if dupResult != nil {
		if err := p.bumpDuplicate(dupResult.Duplicate); err != nil {
			return nil, err
		}
		return &Result{Unit: dupResult.Duplicate, Deduped: true, Duplicate: dupResult.Duplicate}, nil
	}

	now := time.Now().UnixMilli()
	unit := &storage.MemoryUnit{
		ID:              p.gen.New(),
		BankID:          opts.BankID,
		Content:         content,
		FactType:        fact.FactType,
		Confidence:      clampConfidence(fact.Confidence),
		ValidFrom:       opts.ValidFrom,
		ValidTo:         opts.ValidTo,
		MentionedAt:     &now,
		OccurredStart:   opts.OccurredStart,
		OccurredEnd:     opts.OccurredEnd,
		EventDate:       opts.EventDate,
		DocumentID:      opts.DocumentID,
		ChunkID:         opts.ChunkID,
		SourceText:      &content,
		Tags:            opts.Tags,
		ProofCount:      1,
		SourceMemoryIDs: []string{},
		History:         []storage.HistoryEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	entityIDs, err := p.resolveEntities(ctx, opts.BankID, content, now)
	if err != nil {
		return nil, err
	}

	if err := p.db.InsertMemoryUnit(unit, p.memVec, queryVec, entityIDs); err != nil {
		return nil, fmt.Errorf("insert memory unit: %w", err)
	}

	linksMade, err := p.createLinks(ctx, unit, entityIDs, queryVec, now)
	if err != nil {
		log.Warn("link creation failed after insert", "memory_id", unit.ID, "error", err)
	}

	return &Result{Unit: unit, EntityIDs: entityIDs, LinksMade: linksMade}, nil
}

// bumpDuplicate raises a matched existing unit's confidence by 0.05 (capped
// at 1.0) and refreshes its updated_at rather than inserting a second
// near-identical row (SPEC_FULL.md §4.4). Its proof_count is left unchanged.
func (p *Pipeline) bumpDuplicate(existing *storage.MemoryUnit) error {
	history := existing.History
	tags := existing.Tags
	content := existing.Content
	newConfidence := existing.Confidence
	if newConfidence < 1.0 {
		newConfidence = clampConfidence(newConfidence + 0.05)
	}
	return p.db.UpdateContentAndMeta(existing.ID, existing.BankID, content, newConfidence, tags, history, time.Now().UnixMilli(), nil, nil)
}

func (p *Pipeline) resolveEntities(ctx context.Context, bankID, content string, now int64) ([]string, error) {
	if p.llm == nil {
		return nil, nil
	}
	names, err := p.llm.ExtractEntityNames(ctx, content)
	if err != nil {
		log.Warn("entity extraction failed", "error", err)
		return nil, nil
	}

	var resolvedIDs []string
	for _, name := range names {
		existing, err := p.resolver.Resolve(bankID, name, resolvedIDs, now)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := p.db.TouchEntity(existing.ID, now); err != nil {
				return nil, err
			}
			resolvedIDs = append(resolvedIDs, existing.ID)
			continue
		}

		e := &storage.Entity{
			ID:           p.gen.New(),
			BankID:       bankID,
			Name:         name,
			EntityType:   "unknown",
			MentionCount: 1,
			FirstSeen:    now,
			LastUpdated:  now,
		}
		if err := p.db.InsertEntity(e); err != nil {
			return nil, err
		}
		if p.entityVec != nil {
			if err := p.entityVec.Upsert(ctx, e.ID, bankID, name); err != nil {
				log.Warn("entity embedding failed", "entity_id", e.ID, "error", err)
			}
		}
		resolvedIDs = append(resolvedIDs, e.ID)
	}
	return resolvedIDs, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
