package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
)

func newDirective(id, bankID, name string, active bool) *storage.Directive {
	return &storage.Directive{
		ID:        id,
		BankID:    bankID,
		Name:      name,
		Body:      "always cite sources",
		Tags:      []string{"policy"},
		Active:    active,
		CreatedAt: 1,
		UpdatedAt: 1,
	}
}

func TestInsertAndListActiveDirectives(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertDirective(newDirective("d1", "b1", "cite", true)))
	require.NoError(t, db.InsertDirective(newDirective("d2", "b1", "retired", false)))

	dirs, err := db.ListActiveDirectivesByBank("b1")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	require.Equal(t, "cite", dirs[0].Name)
	require.Equal(t, []string{"policy"}, dirs[0].Tags)
}

func TestSetDirectiveActive(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertDirective(newDirective("d1", "b1", "cite", true)))

	require.NoError(t, db.SetDirectiveActive("d1", false, 2))

	dirs, err := db.ListActiveDirectivesByBank("b1")
	require.NoError(t, err)
	require.Empty(t, dirs)
}

func TestSetDirectiveActiveNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.SetDirectiveActive("missing", true, 1))
}

func TestDeleteDirectiveByID(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertDirective(newDirective("d1", "b1", "cite", true)))
	require.NoError(t, db.DeleteDirectiveByID("d1"))

	dirs, err := db.ListActiveDirectivesByBank("b1")
	require.NoError(t, err)
	require.Empty(t, dirs)
}

func TestDeleteDirectiveByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.DeleteDirectiveByID("missing"))
}
