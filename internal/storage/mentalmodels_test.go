package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
)

func newMentalModel(id, bankID, name string) *storage.MentalModel {
	return &storage.MentalModel{
		ID:              id,
		BankID:          bankID,
		Name:            name,
		SourceQuery:     "what do we know about the project",
		SourceMemoryIDs: []string{},
		Tags:            []string{},
		AutoRefresh:     true,
		CreatedAt:       1,
		UpdatedAt:       1,
	}
}

func TestInsertAndGetMentalModel(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertMentalModel(newMentalModel("mm1", "b1", "project")))

	m, err := db.GetMentalModelByID("mm1")
	require.NoError(t, err)
	require.Equal(t, "project", m.Name)
	require.Nil(t, m.Content)
	require.Nil(t, m.LastRefreshedAt)
}

func TestGetMentalModelByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := db.GetMentalModelByID("missing")
	require.Error(t, err)
}

func TestListMentalModelsByBankOrderedByUpdatedDesc(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	older := newMentalModel("mm1", "b1", "older")
	older.UpdatedAt = 1
	newer := newMentalModel("mm2", "b1", "newer")
	newer.UpdatedAt = 2

	require.NoError(t, db.InsertMentalModel(older))
	require.NoError(t, db.InsertMentalModel(newer))

	models, err := db.ListMentalModelsByBank("b1")
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "newer", models[0].Name)
	require.Equal(t, "older", models[1].Name)
}

func TestRefreshMentalModel(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertMentalModel(newMentalModel("mm1", "b1", "project")))

	require.NoError(t, db.RefreshMentalModel("mm1", "summary text", []string{"m1", "m2"}, 42))

	m, err := db.GetMentalModelByID("mm1")
	require.NoError(t, err)
	require.Equal(t, "summary text", *m.Content)
	require.Equal(t, []string{"m1", "m2"}, m.SourceMemoryIDs)
	require.Equal(t, int64(42), *m.LastRefreshedAt)
}

func TestRefreshMentalModelNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.RefreshMentalModel("missing", "x", nil, 1))
}

func TestDeleteMentalModelByID(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertMentalModel(newMentalModel("mm1", "b1", "project")))
	require.NoError(t, db.DeleteMentalModelByID("mm1"))

	_, err := db.GetMentalModelByID("mm1")
	require.Error(t, err)
}

func TestDeleteMentalModelByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.DeleteMentalModelByID("missing"))
}
