// Package consolidate implements the Consolidation Engine (SPEC_FULL.md
// §4.7): a reconciliation loop that folds related raw facts into durable
// observations, one LLM action call per candidate group, then fans out a
// mental-model refresh so summaries stay in step with what was just
// consolidated.
package consolidate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memoryengine/memoryengine/internal/ai"
	"github.com/memoryengine/memoryengine/internal/ids"
	"github.com/memoryengine/memoryengine/internal/logging"
	"github.com/memoryengine/memoryengine/internal/mentalmodel"
	"github.com/memoryengine/memoryengine/internal/retain"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/telemetry"
	"github.com/memoryengine/memoryengine/internal/vector"
)

var log = logging.GetLogger("consolidate")

// Action is the decision the LLM makes for one candidate group.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionMerge  Action = "merge"
	ActionSkip   Action = "skip"
)

// GroupSize bounds how many related raw facts are considered together in
// one reconciliation call, keeping the prompt small and the action
// deterministic enough to reason about.
const GroupSize = 5

// BatchSize bounds how many unconsolidated raw facts one ConsolidateBank
// run considers, so a bank with a large backlog consolidates incrementally
// across repeated calls rather than in one unbounded pass (SPEC_FULL.md
// §4.7).
const BatchSize = 50

// consolidatableFactTypes are the fact_type values eligible for
// consolidation; observations and opinions are never raw-fact candidates
// themselves (SPEC_FULL.md §4.7).
var consolidatableFactTypes = []string{"experience", "world"}

// Engine runs the reconciliation loop for a bank.
type Engine struct {
	db     *storage.DB
	memVec *vector.Store
	llm    *ai.Client
	gen    *ids.Generator
	models *mentalmodel.Service
	tel    telemetry.Instrumentation
}

// New constructs an Engine.
func New(db *storage.DB, memVec *vector.Store, llm *ai.Client, gen *ids.Generator, models *mentalmodel.Service) *Engine {
	return &Engine{db: db, memVec: memVec, llm: llm, gen: gen, models: models, tel: telemetry.ForComponent("consolidate")}
}

// Summary reports what one consolidation run did.
type Summary struct {
	GroupsConsidered int
	Created          int
	Updated          int
	Merged           int
	Skipped          int
	RefreshErrors    []error
}

// ConsolidateBank scans up to BatchSize of bankID's unconsolidated raw
// facts, groups related ones, resolves each group via the LLM, and finally
// refreshes the bank's auto-refreshing mental models that fall in the
// batch's tag scope (see refreshModels).
func (e *Engine) ConsolidateBank(ctx context.Context, bankID string) (*Summary, error) {
	ctx, span := e.tel.StartSpan(ctx, "consolidate.ConsolidateBank")
	defer span.End()

	candidates, err := e.db.ListMemoryUnitsByBank(bankID, storage.MemoryUnitFilter{
		FactTypes:           consolidatableFactTypes,
		ExcludeConsolidated: true,
		Limit:               BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list consolidation candidates: %w", err)
	}

	groups, err := e.groupRelated(ctx, candidates)
	if err != nil {
		return nil, err
	}

	summary := &Summary{GroupsConsidered: len(groups)}
	for _, group := range groups {
		action, err := e.resolveGroup(ctx, bankID, group, summary)
		if err != nil {
			log.Warn("group resolution failed", "error", err, "group_size", len(group))
			continue
		}
		e.tel.AddOperation(ctx, string(action))
	}

	if e.models != nil {
		summary.RefreshErrors = e.refreshModels(ctx, bankID, unionTags(candidates))
	}

	log.LogBankOperation(bankID, "consolidate", "created", summary.Created, "merged", summary.Merged, "updated", summary.Updated, "skipped", summary.Skipped)
	return summary, nil
}

// groupRelated clusters candidates whose pairwise semantic similarity
// clears ConsolidationCandidateThreshold, capped at GroupSize per group.
// Units with no strong relation to anything else form their own
// single-item group, which resolveGroup sends through decideAction like
// any other group; without an enabled LLM that decision is "create".
func (e *Engine) groupRelated(ctx context.Context, candidates []*storage.MemoryUnit) ([][]*storage.MemoryUnit, error) {
	assigned := map[string]bool{}
	var groups [][]*storage.MemoryUnit

	for _, c := range candidates {
		if assigned[c.ID] {
			continue
		}
		group := []*storage.MemoryUnit{c}
		assigned[c.ID] = true

		hits, err := e.memVec.Search(ctx, c.BankID, c.Content, GroupSize*2)
		if err != nil {
			log.Warn("semantic search failed during grouping", "error", err)
			groups = append(groups, group)
			continue
		}

		for _, h := range hits {
			if len(group) >= GroupSize {
				break
			}
			if h.ID == c.ID || assigned[h.ID] || h.Score() < retain.ConsolidationCandidateThreshold {
				continue
			}
			member, err := e.db.GetMemoryUnitByID(h.ID)
			if err != nil || member.ConsolidatedAt != nil {
				continue
			}
			group = append(group, member)
			assigned[h.ID] = true
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// resolveGroup decides and executes one action for group. A group of one
// isolated fact still reaches the LLM action path (SPEC_FULL.md §4.7): it
// has nothing to merge or update against, but the model may still decide
// it stands on its own as a new observation ("create"), so isolation alone
// is not a reason to hardcode "skip".
func (e *Engine) resolveGroup(ctx context.Context, bankID string, group []*storage.MemoryUnit, summary *Summary) (Action, error) {
	action, mergedContent, err := e.decideAction(ctx, group)
	if err != nil {
		return "", err
	}

	switch action {
	case ActionCreate, ActionMerge:
		if err := e.createObservation(group, mergedContent); err != nil {
			return "", err
		}
		if action == ActionCreate {
			summary.Created++
		} else {
			summary.Merged++
		}
	case ActionUpdate:
		if err := e.updateObservation(group, mergedContent); err != nil {
			return "", err
		}
		summary.Updated++
	default:
		summary.Skipped++
	}
	return action, nil
}

const reconciliationPrompt = `You are reconciling related facts stored about the same subject. Decide one action:
- "create": the facts describe a genuinely new observation, not covered by any existing summary
- "update": one fact supersedes an earlier one (a changed value, a correction)
- "merge": several facts should be combined into one observation
- "skip": the facts are not actually related enough to act on

Normalize synonyms (e.g. treat "NYC" and "New York City" as the same entity) before judging relatedness.

Respond with a JSON object: {"action": "...", "content": "..."} where content is the resulting observation text (omit or leave empty for skip).

Facts:
%s`

func (e *Engine) decideAction(ctx context.Context, group []*storage.MemoryUnit) (Action, string, error) {
	if e.llm == nil || !e.llm.Enabled() {
		if len(group) == 1 {
			return ActionCreate, mechanicalMerge(group), nil
		}
		return ActionMerge, mechanicalMerge(group), nil
	}

	var b strings.Builder
	for i, m := range group {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Content)
	}

	raw, err := e.llm.Generate(ctx, fmt.Sprintf(reconciliationPrompt, b.String()))
	if err != nil {
		log.Warn("reconciliation call failed, falling back to mechanical merge", "error", err)
		return ActionMerge, mechanicalMerge(group), nil
	}

	action, content, ok := parseReconciliation(raw)
	if !ok {
		if len(group) == 1 {
			return ActionCreate, mechanicalMerge(group), nil
		}
		return ActionMerge, mechanicalMerge(group), nil
	}
	if content == "" {
		content = mechanicalMerge(group)
	}
	return action, content, nil
}

func mechanicalMerge(group []*storage.MemoryUnit) string {
	var parts []string
	for _, m := range group {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, " ")
}

// createObservation inserts a new observation unit rolling up group, then
// marks every group member consolidated and pointing at it via
// source_memory_ids.
func (e *Engine) createObservation(group []*storage.MemoryUnit, content string) error {
	now := time.Now().UnixMilli()
	bankID := group[0].BankID

	sourceIDs := make([]string, len(group))
	for i, m := range group {
		sourceIDs[i] = m.ID
	}

	vec, err := e.memVec.Embed(context.Background(), content)
	if err != nil {
		log.Warn("observation embedding failed", "error", err)
	}

	obs := &storage.MemoryUnit{
		ID:              e.gen.New(),
		BankID:          bankID,
		Content:         content,
		FactType:        "observation",
		Confidence:      averageConfidence(group),
		MentionedAt:     &now,
		Tags:            unionTags(group),
		ProofCount:      len(group),
		SourceMemoryIDs: sourceIDs,
		History:         []storage.HistoryEntry{},
		ConsolidatedAt:  &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.db.InsertMemoryUnit(obs, e.memVec, vec, nil); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}

	for _, m := range group {
		if err := e.db.MarkConsolidated(m.ID, now); err != nil {
			return fmt.Errorf("mark consolidated: %w", err)
		}
	}
	return nil
}

// updateObservation rewrites the group's most recently created existing
// observation (if any) to content, appending a history entry, and marks
// the raw facts in group consolidated. If no existing observation is in
// the group, this falls back to createObservation.
func (e *Engine) updateObservation(group []*storage.MemoryUnit, content string) error {
	var target *storage.MemoryUnit
	for _, m := range group {
		if m.IsObservation() && (target == nil || m.UpdatedAt > target.UpdatedAt) {
			target = m
		}
	}
	if target == nil {
		return e.createObservation(group, content)
	}

	now := time.Now().UnixMilli()
	history := append(target.History, storage.HistoryEntry{
		PreviousText: target.Content,
		ChangedAt:    now,
		Reason:       "consolidation update",
	})

	vec, err := e.memVec.Embed(context.Background(), content)
	if err != nil {
		log.Warn("observation embedding failed", "error", err)
	}
	if err := e.db.UpdateContentAndMeta(target.ID, target.BankID, content, target.Confidence, target.Tags, history, now, e.memVec, vec); err != nil {
		return fmt.Errorf("update observation: %w", err)
	}

	for _, m := range group {
		if m.ID == target.ID {
			continue
		}
		if err := e.db.MarkConsolidated(m.ID, now); err != nil {
			return fmt.Errorf("mark consolidated: %w", err)
		}
	}
	return nil
}

// unionTags collects the distinct tags across group, preserving first-seen
// order, so the resulting observation stays in the same tag scope(s) as
// what it was consolidated from (needed for refreshModels' tag isolation).
func unionTags(group []*storage.MemoryUnit) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range group {
		for _, t := range m.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func averageConfidence(group []*storage.MemoryUnit) float64 {
	if len(group) == 0 {
		return 1.0
	}
	var sum float64
	for _, m := range group {
		sum += m.Confidence
	}
	return sum / float64(len(group))
}

// refreshModels fans out a refresh across every auto-refreshing mental
// model whose tag scope overlaps batchTags using errgroup, so one slow or
// failing model doesn't block the others. Tag isolation (SPEC_FULL.md
// §4.7): a tagged batch refreshes only models that share at least one tag
// with it, or untagged (global) models; an untagged batch refreshes only
// untagged models, never implicitly pulling in a tagged model's scope.
func (e *Engine) refreshModels(ctx context.Context, bankID string, batchTags []string) []error {
	models, err := e.db.ListMentalModelsByBank(bankID)
	if err != nil {
		return []error{fmt.Errorf("list mental models for refresh: %w", err)}
	}

	var errsMu errorCollector
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range models {
		m := m
		if !m.AutoRefresh || !inRefreshScope(batchTags, m.Tags) {
			continue
		}
		g.Go(func() error {
			if err := e.models.Refresh(gctx, m.ID); err != nil {
				errsMu.add(fmt.Errorf("refresh model %s: %w", m.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errsMu.errs
}

// inRefreshScope reports whether a model with modelTags should be
// refreshed given a consolidated batch tagged with batchTags.
func inRefreshScope(batchTags, modelTags []string) bool {
	if len(batchTags) == 0 {
		return len(modelTags) == 0
	}
	if len(modelTags) == 0 {
		return true
	}
	want := map[string]bool{}
	for _, t := range batchTags {
		want[t] = true
	}
	for _, t := range modelTags {
		if want[t] {
			return true
		}
	}
	return false
}

type errorCollector struct {
	mu   sync.Mutex
	errs []error
}

func (c *errorCollector) add(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}
