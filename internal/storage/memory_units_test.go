package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
)

func newMemoryUnit(id, bankID, content string) *storage.MemoryUnit {
	return &storage.MemoryUnit{
		ID:         id,
		BankID:     bankID,
		Content:    content,
		FactType:   "experience",
		Confidence: 0.9,
		ProofCount: 1,
		Tags:       []string{"t1"},
		CreatedAt:  1,
		UpdatedAt:  1,
	}
}

func TestInsertAndGetMemoryUnit(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	m := newMemoryUnit("m1", "b1", "the sky is blue")
	require.NoError(t, db.InsertMemoryUnit(m, nil, nil, nil))

	got, err := db.GetMemoryUnitByID("m1")
	require.NoError(t, err)
	require.Equal(t, "the sky is blue", got.Content)
	require.Equal(t, []string{"t1"}, got.Tags)
}

func TestGetMemoryUnitByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := db.GetMemoryUnitByID("missing")
	require.Error(t, err)
}

func TestListMemoryUnitsByBankFiltersByFactType(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	m1 := newMemoryUnit("m1", "b1", "fact one")
	m2 := newMemoryUnit("m2", "b1", "observation one")
	m2.FactType = "observation"
	require.NoError(t, db.InsertMemoryUnit(m1, nil, nil, nil))
	require.NoError(t, db.InsertMemoryUnit(m2, nil, nil, nil))

	facts, err := db.ListMemoryUnitsByBank("b1", storage.MemoryUnitFilter{FactType: "experience"})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, "m1", facts[0].ID)
}

func TestListMemoryUnitsByBankExcludesConsolidated(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	m1 := newMemoryUnit("m1", "b1", "fact one")
	m2 := newMemoryUnit("m2", "b1", "fact two")
	require.NoError(t, db.InsertMemoryUnit(m1, nil, nil, nil))
	require.NoError(t, db.InsertMemoryUnit(m2, nil, nil, nil))
	require.NoError(t, db.MarkConsolidated("m2", 2))

	units, err := db.ListMemoryUnitsByBank("b1", storage.MemoryUnitFilter{ExcludeConsolidated: true})
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, "m1", units[0].ID)
}

func TestDeleteMemoryUnitByID(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	m := newMemoryUnit("m1", "b1", "the sky is blue")
	require.NoError(t, db.InsertMemoryUnit(m, nil, nil, nil))
	require.NoError(t, db.DeleteMemoryUnitByID("m1", nil))

	_, err := db.GetMemoryUnitByID("m1")
	require.Error(t, err)
}

func TestDeleteMemoryUnitByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.DeleteMemoryUnitByID("missing", nil))
}

func TestSearchFTSMatchesContent(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	m1 := newMemoryUnit("m1", "b1", "staging database migration completed")
	m2 := newMemoryUnit("m2", "b1", "the cafeteria serves lunch")
	require.NoError(t, db.InsertMemoryUnit(m1, nil, nil, nil))
	require.NoError(t, db.InsertMemoryUnit(m2, nil, nil, nil))

	ids, err := db.SearchFTS("b1", "migration", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"m1"}, ids)
}

func TestEntityIDsForMemory(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertEntity(&storage.Entity{
		ID: "e1", BankID: "b1", Name: "Alice", EntityType: "person",
		Metadata: map[string]any{}, FirstSeen: 1, LastUpdated: 1,
	}))

	m := newMemoryUnit("m1", "b1", "Alice joined the team")
	require.NoError(t, db.InsertMemoryUnit(m, nil, nil, []string{"e1"}))

	ids, err := db.EntityIDsForMemory("m1")
	require.NoError(t, err)
	require.Equal(t, []string{"e1"}, ids)
}
