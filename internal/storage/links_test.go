package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
)

func newLink(id, bankID, source, target, linkType string) *storage.MemoryLink {
	return &storage.MemoryLink{
		ID:        id,
		BankID:    bankID,
		SourceID:  source,
		TargetID:  target,
		LinkType:  linkType,
		Weight:    1.0,
		Metadata:  map[string]any{},
		CreatedAt: 1,
	}
}

func seedLinkUnits(t *testing.T, db *storage.DB, ids ...string) {
	t.Helper()
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	for _, id := range ids {
		require.NoError(t, db.InsertMemoryUnit(newMemoryUnit(id, "b1", "content for "+id), nil, nil, nil))
	}
}

func TestInsertLinkRejectsSelfLoop(t *testing.T) {
	db := testutil.NewDB(t)
	seedLinkUnits(t, db, "m1")
	err := db.InsertLink(newLink("l1", "b1", "m1", "m1", "entity"))
	require.Error(t, err)
}

func TestInsertLinkRejectsInvalidType(t *testing.T) {
	db := testutil.NewDB(t)
	seedLinkUnits(t, db, "m1", "m2")
	err := db.InsertLink(newLink("l1", "b1", "m1", "m2", "bogus"))
	require.Error(t, err)
}

func TestLinksFromAndLinksTo(t *testing.T) {
	db := testutil.NewDB(t)
	seedLinkUnits(t, db, "m1", "m2", "m3")
	require.NoError(t, db.InsertLink(newLink("l1", "b1", "m1", "m2", "entity")))
	require.NoError(t, db.InsertLink(newLink("l2", "b1", "m1", "m3", "semantic")))

	from, err := db.LinksFrom("m1", "")
	require.NoError(t, err)
	require.Len(t, from, 2)

	from, err = db.LinksFrom("m1", "entity")
	require.NoError(t, err)
	require.Len(t, from, 1)
	require.Equal(t, "m2", from[0].TargetID)

	to, err := db.LinksTo("m2", "")
	require.NoError(t, err)
	require.Len(t, to, 1)
	require.Equal(t, "m1", to[0].SourceID)
}

func TestLinkExists(t *testing.T) {
	db := testutil.NewDB(t)
	seedLinkUnits(t, db, "m1", "m2")
	require.NoError(t, db.InsertLink(newLink("l1", "b1", "m1", "m2", "entity")))

	exists, err := db.LinkExists("m1", "m2", "entity")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = db.LinkExists("m1", "m2", "semantic")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestDeleteLinksForMemory(t *testing.T) {
	db := testutil.NewDB(t)
	seedLinkUnits(t, db, "m1", "m2", "m3")
	require.NoError(t, db.InsertLink(newLink("l1", "b1", "m1", "m2", "entity")))
	require.NoError(t, db.InsertLink(newLink("l2", "b1", "m3", "m1", "semantic")))

	require.NoError(t, db.DeleteLinksForMemory("m1"))

	from, err := db.LinksFrom("m1", "")
	require.NoError(t, err)
	require.Empty(t, from)

	to, err := db.LinksTo("m1", "")
	require.NoError(t, err)
	require.Empty(t, to)
}
