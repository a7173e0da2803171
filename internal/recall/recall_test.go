package recall

import (
	"testing"

	"github.com/memoryengine/memoryengine/internal/storage"
)

func TestFuseRanksConsensusAboveSingleSource(t *testing.T) {
	rankings := map[string][]string{
		"semantic": {"a", "b", "c"},
		"fulltext": {"b", "a", "d"},
		"graph":    {"b", "e"},
	}
	fused := fuse(rankings)
	if len(fused) == 0 || fused[0].id != "b" {
		t.Fatalf("expected 'b' (present in all three retrievers) to rank first, got %+v", fused)
	}
}

func TestFuseEmptyRankings(t *testing.T) {
	fused := fuse(map[string][]string{})
	if len(fused) != 0 {
		t.Fatalf("expected no results from empty rankings, got %d", len(fused))
	}
}

func TestPassesFiltersFactType(t *testing.T) {
	u := &storage.MemoryUnit{FactType: "world", Confidence: 1.0}
	if passesFilters(u, Filters{FactType: "experience"}) {
		t.Error("expected fact_type mismatch to be filtered out")
	}
	if !passesFilters(u, Filters{FactType: "world"}) {
		t.Error("expected matching fact_type to pass")
	}
}

func TestPassesFiltersDefaultFactTypesExcludesOpinion(t *testing.T) {
	obs := &storage.MemoryUnit{FactType: "observation", Confidence: 1.0}
	if !passesFilters(obs, Filters{}) {
		t.Error("expected observation to pass the default fact_type allowlist")
	}
	opinion := &storage.MemoryUnit{FactType: "opinion", Confidence: 1.0}
	if passesFilters(opinion, Filters{}) {
		t.Error("expected opinion to be excluded by the default fact_type allowlist")
	}
}

func TestPassesTagMatch(t *testing.T) {
	tags := []string{"work", "urgent"}
	if !passesTagMatch(tags, nil, "any") {
		t.Error("expected no required tags to always pass")
	}
	if !passesTagMatch(tags, []string{"urgent"}, "any") {
		t.Error("expected any-match with one shared tag to pass")
	}
	if passesTagMatch(tags, []string{"personal"}, "any") {
		t.Error("expected any-match with no shared tag to fail")
	}
	if !passesTagMatch(tags, []string{"work", "urgent"}, "all") {
		t.Error("expected all-match subset to pass")
	}
	if passesTagMatch(tags, []string{"work", "personal"}, "all_strict") {
		t.Error("expected all_strict with a missing tag to fail")
	}
}

func TestWantsMethod(t *testing.T) {
	if !wantsMethod(nil, "graph") {
		t.Error("expected empty methods to mean all retrievers run")
	}
	if !wantsMethod([]string{"semantic", "graph"}, "graph") {
		t.Error("expected graph to be included")
	}
	if wantsMethod([]string{"semantic"}, "graph") {
		t.Error("expected graph to be excluded when not listed")
	}
}

func TestRangesOverlap(t *testing.T) {
	ten, twenty := int64(10), int64(20)
	if !rangesOverlap(&ten, &twenty, 15, 25) {
		t.Error("expected overlapping ranges to report true")
	}
	if rangesOverlap(&ten, &twenty, 30, 40) {
		t.Error("expected disjoint ranges to report false")
	}
	if !rangesOverlap(nil, nil, 0, 100) {
		t.Error("expected an open-ended unit to overlap any range")
	}
}
