package consolidate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/ids"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
	"github.com/memoryengine/memoryengine/internal/vector"
)

func setupBank(t *testing.T, db *storage.DB) {
	t.Helper()
	require.NoError(t, db.InsertBank(&storage.Bank{
		ID: "b1", Name: "alpha", Config: map[string]any{},
		Disposition: storage.Disposition{Skepticism: 3, Literalism: 3, Empathy: 3},
		CreatedAt:   1, UpdatedAt: 1,
	}))
}

func insertRawFact(t *testing.T, db *storage.DB, vs *vector.Store, id, content string) {
	t.Helper()
	vec, err := vs.Embed(context.Background(), content)
	require.NoError(t, err)
	require.NoError(t, db.InsertMemoryUnit(&storage.MemoryUnit{
		ID: id, BankID: "b1", Content: content, FactType: "experience",
		Confidence: 0.9, ProofCount: 1, Tags: []string{}, SourceMemoryIDs: []string{}, History: []storage.HistoryEntry{},
		CreatedAt: 1, UpdatedAt: 1,
	}, vs, vec, nil))
}

func TestConsolidateBankMergesRelatedFacts(t *testing.T) {
	db := testutil.NewDB(t)
	setupBank(t, db)
	vs := vector.New(db.Conn(), vector.NamespaceMemory, 32, vector.HashEmbed(32))

	insertRawFact(t, db, vs, "m1", "the staging database migration completed successfully")
	insertRawFact(t, db, vs, "m2", "the staging database migration completed successfully")

	e := New(db, vs, nil, ids.NewGenerator(), nil)
	summary, err := e.ConsolidateBank(context.Background(), "b1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.GroupsConsidered)
	require.Equal(t, 1, summary.Merged)

	units, err := db.ListMemoryUnitsByBank("b1", storage.MemoryUnitFilter{})
	require.NoError(t, err)

	var observations, consolidated int
	for _, u := range units {
		if u.FactType == "observation" {
			observations++
		}
		if u.ConsolidatedAt != nil {
			consolidated++
		}
	}
	require.Equal(t, 1, observations)
	require.Equal(t, 3, consolidated)
}

func TestConsolidateBankCreatesObservationFromIsolatedFact(t *testing.T) {
	db := testutil.NewDB(t)
	setupBank(t, db)
	vs := vector.New(db.Conn(), vector.NamespaceMemory, 32, vector.HashEmbed(32))

	insertRawFact(t, db, vs, "m1", "the cafeteria serves lunch at noon")

	e := New(db, vs, nil, ids.NewGenerator(), nil)
	summary, err := e.ConsolidateBank(context.Background(), "b1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.GroupsConsidered)
	require.Equal(t, 1, summary.Created)

	obs, err := db.GetMemoryUnitByID("m1")
	require.NoError(t, err)
	require.NotNil(t, obs.ConsolidatedAt)

	units, err := db.ListMemoryUnitsByBank("b1", storage.MemoryUnitFilter{FactType: "observation"})
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.NotNil(t, units[0].ConsolidatedAt)
}

func TestAverageConfidenceEmptyGroup(t *testing.T) {
	require.Equal(t, 1.0, averageConfidence(nil))
}
