package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
)

func newBank(id, name string) *storage.Bank {
	return &storage.Bank{
		ID:          id,
		Name:        name,
		Description: "test bank",
		Config:      map[string]any{},
		Disposition: storage.Disposition{Skepticism: 3, Literalism: 3, Empathy: 3},
		Mission:     "",
		CreatedAt:   1,
		UpdatedAt:   1,
	}
}

func TestInsertAndGetBankByID(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	b, err := db.GetBankByID("b1")
	require.NoError(t, err)
	require.Equal(t, "alpha", b.Name)
	require.Equal(t, 3, b.Disposition.Skepticism)
}

func TestGetBankByName(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	b, err := db.GetBankByName("alpha")
	require.NoError(t, err)
	require.Equal(t, "b1", b.ID)
}

func TestGetBankByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := db.GetBankByID("missing")
	require.Error(t, err)
}

func TestListBanksOrderedByName(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b2", "zeta")))
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))

	banks, err := db.ListBanks()
	require.NoError(t, err)
	require.Len(t, banks, 2)
	require.Equal(t, "alpha", banks[0].Name)
	require.Equal(t, "zeta", banks[1].Name)
}

func TestUpdateBank(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBank("b1", "alpha")
	require.NoError(t, db.InsertBank(b))

	b.Description = "updated"
	b.Disposition.Empathy = 5
	b.UpdatedAt = 2
	require.NoError(t, db.UpdateBank(b))

	got, err := db.GetBankByID("b1")
	require.NoError(t, err)
	require.Equal(t, "updated", got.Description)
	require.Equal(t, 5, got.Disposition.Empathy)
}

func TestUpdateBankNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.UpdateBank(newBank("missing", "x")))
}

func TestDeleteBankByID(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.DeleteBankByID("b1"))

	_, err := db.GetBankByID("b1")
	require.Error(t, err)
}

func TestDeleteBankByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.DeleteBankByID("missing"))
}
