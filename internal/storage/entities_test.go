package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
)

func newEntity(id, bankID, name string) *storage.Entity {
	return &storage.Entity{
		ID:          id,
		BankID:      bankID,
		Name:        name,
		EntityType:  "person",
		Description: "",
		Metadata:    map[string]any{},
		FirstSeen:   1,
		LastUpdated: 1,
	}
}

func TestInsertAndGetEntity(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertEntity(newEntity("e1", "b1", "Alice")))

	e, err := db.GetEntityByID("e1")
	require.NoError(t, err)
	require.Equal(t, "Alice", e.Name)
	require.Equal(t, 0, e.MentionCount)
}

func TestGetEntityByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := db.GetEntityByID("missing")
	require.Error(t, err)
}

func TestFindEntityByExactNameIsCaseInsensitive(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertEntity(newEntity("e1", "b1", "Alice")))

	e, err := db.FindEntityByExactName("b1", "alice")
	require.NoError(t, err)
	require.NotNil(t, e)
	require.Equal(t, "e1", e.ID)
}

func TestFindEntityByExactNameReturnsNilWhenMissing(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	e, err := db.FindEntityByExactName("b1", "nobody")
	require.NoError(t, err)
	require.Nil(t, e)
}

func TestListEntitiesByBank(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertEntity(newEntity("e1", "b1", "Alice")))
	require.NoError(t, db.InsertEntity(newEntity("e2", "b1", "Bob")))

	entities, err := db.ListEntitiesByBank("b1")
	require.NoError(t, err)
	require.Len(t, entities, 2)
}

func TestTouchEntity(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertEntity(newEntity("e1", "b1", "Alice")))

	require.NoError(t, db.TouchEntity("e1", 5))

	e, err := db.GetEntityByID("e1")
	require.NoError(t, err)
	require.Equal(t, 1, e.MentionCount)
	require.Equal(t, int64(5), e.LastUpdated)
}

func TestTouchEntityNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.TouchEntity("missing", 1))
}

func TestMemoryIDsForEntity(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertEntity(newEntity("e1", "b1", "Alice")))
	require.NoError(t, db.InsertMemoryUnit(newMemoryUnit("m1", "b1", "Alice joined the team"), nil, nil, []string{"e1"}))

	ids, err := db.MemoryIDsForEntity("e1")
	require.NoError(t, err)
	require.Equal(t, []string{"m1"}, ids)
}
