// Package mentalmodel implements Mental Models (SPEC_FULL.md §4.8):
// user-curated, named summaries that are regenerated by replaying a stored
// recall query rather than edited by hand, plus staleness tracking so
// callers know when a summary's source facts may have moved on.
package mentalmodel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memoryengine/memoryengine/internal/ai"
	"github.com/memoryengine/memoryengine/internal/errs"
	"github.com/memoryengine/memoryengine/internal/ids"
	"github.com/memoryengine/memoryengine/internal/logging"
	"github.com/memoryengine/memoryengine/internal/recall"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/vector"
)

var log = logging.GetLogger("mentalmodel")

// FindMatchingThreshold is the minimum similarity between the query and a
// model's source_query embedding for
// find_matching_models to surface an existing model instead of suggesting
// a new one (SPEC_FULL.md §4.8).
const FindMatchingThreshold = 0.85

// SearchWithStalenessThreshold is the minimum relevance score for
// search_with_staleness to include a model in results at all.
const SearchWithStalenessThreshold = 0.5

// matchCandidateLimit bounds how many vector neighbors matching/search pull
// back before threshold-filtering, the same over-fetch-then-filter shape
// recall's semantic retriever uses.
const matchCandidateLimit = 20

// Service provides mental model CRUD, matching, and refresh.
type Service struct {
	db     *storage.DB
	recall *recall.Engine
	llm    *ai.Client
	gen    *ids.Generator
	vec    *vector.Store
}

// New constructs a Service. vec is the NamespaceMentalModel embedding store
// used for find_matching_models and search_with_staleness similarity.
func New(db *storage.DB, recallEngine *recall.Engine, llm *ai.Client, gen *ids.Generator, vec *vector.Store) *Service {
	return &Service{db: db, recall: recallEngine, llm: llm, gen: gen, vec: vec}
}

// CreateOptions describes a new mental model.
type CreateOptions struct {
	BankID      string
	Name        string
	SourceQuery string
	Tags        []string
	AutoRefresh bool
}

// Create inserts a new mental model and performs its first refresh so it
// is immediately usable.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (*storage.MentalModel, error) {
	if opts.BankID == "" || opts.Name == "" || opts.SourceQuery == "" {
		return nil, errs.New(errs.Validation, "bank_id, name and source_query are required")
	}

	now := time.Now().UnixMilli()
	m := &storage.MentalModel{
		ID:              s.gen.New(),
		BankID:          opts.BankID,
		Name:            opts.Name,
		SourceQuery:     opts.SourceQuery,
		SourceMemoryIDs: []string{},
		Tags:            opts.Tags,
		AutoRefresh:     opts.AutoRefresh,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.InsertMentalModel(m); err != nil {
		return nil, err
	}
	if err := s.vec.Upsert(ctx, m.ID, m.BankID, m.SourceQuery); err != nil {
		log.Warn("mental model embedding upsert failed", "model_id", m.ID, "error", err)
	}
	if err := s.Refresh(ctx, m.ID); err != nil {
		log.Warn("initial mental model refresh failed", "model_id", m.ID, "error", err)
	}
	return s.db.GetMentalModelByID(m.ID)
}

// Refresh replays a model's SourceQuery through recall and regenerates its
// content, either via the LLM (a prose summary of the recalled units) or,
// when no LLM is configured, a plain concatenation.
func (s *Service) Refresh(ctx context.Context, modelID string) error {
	m, err := s.db.GetMentalModelByID(modelID)
	if err != nil {
		return err
	}

	hits, err := s.recall.Recall(ctx, recall.Options{BankID: m.BankID, Query: m.SourceQuery, Limit: 20})
	if err != nil {
		return fmt.Errorf("refresh recall: %w", err)
	}

	sourceIDs := make([]string, len(hits))
	var texts []string
	for i, h := range hits {
		sourceIDs[i] = h.Unit.ID
		texts = append(texts, h.Unit.Content)
	}

	content := s.summarize(ctx, m.Name, texts)
	now := time.Now().UnixMilli()
	return s.db.RefreshMentalModel(modelID, content, sourceIDs, now)
}

const summaryPrompt = `Summarize the following facts into one coherent paragraph for a mental model named %q. Respond with the summary text only, no preamble.

Facts:
%s`

func (s *Service) summarize(ctx context.Context, name string, texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	if s.llm == nil || !s.llm.Enabled() {
		return strings.Join(texts, " ")
	}

	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	summary, err := s.llm.Generate(ctx, fmt.Sprintf(summaryPrompt, name, b.String()))
	if err != nil {
		log.Warn("summary generation failed, falling back to concatenation", "error", err)
		return strings.Join(texts, " ")
	}
	return strings.TrimSpace(summary)
}

// FindMatching returns existing models whose source_query embedding is
// similar enough to query to be considered the "same" mental model,
// avoiding duplicate model creation for near-identical requests.
func (s *Service) FindMatching(ctx context.Context, bankID, query string) ([]*storage.MentalModel, error) {
	hits, err := s.vec.Search(ctx, bankID, query, matchCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("find matching models: %w", err)
	}

	var matches []*storage.MentalModel
	for _, h := range hits {
		if h.Score() < FindMatchingThreshold {
			continue
		}
		m, err := s.db.GetMentalModelByID(h.ID)
		if err != nil {
			continue // vector row outlived its model row (e.g. deleted model)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// SearchWithStaleness returns models relevant to query above
// SearchWithStalenessThreshold, each annotated with its staleness.
type StalenessResult struct {
	Model   *storage.MentalModel
	Score   float64
	IsStale bool
}

func (s *Service) SearchWithStaleness(ctx context.Context, bankID, query string, nowMillis int64) ([]StalenessResult, error) {
	hits, err := s.vec.Search(ctx, bankID, query, matchCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("search with staleness: %w", err)
	}

	var out []StalenessResult
	for _, h := range hits {
		score := h.Score()
		if score < SearchWithStalenessThreshold {
			continue
		}
		m, err := s.db.GetMentalModelByID(h.ID)
		if err != nil {
			continue
		}
		out = append(out, StalenessResult{Model: m, Score: score, IsStale: m.IsStale(nowMillis)})
	}
	return out, nil
}
