package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
)

func newAsyncOp(id, bankID, opType string) *storage.AsyncOperation {
	return &storage.AsyncOperation{
		OperationID:   id,
		BankID:        bankID,
		OperationType: opType,
		Status:        "pending",
		CreatedAt:     1,
		UpdatedAt:     1,
	}
}

func TestInsertAndGetAsyncOperation(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertAsyncOperation(newAsyncOp("op1", "b1", "consolidation")))

	op, err := db.GetAsyncOperationByID("op1")
	require.NoError(t, err)
	require.Equal(t, "pending", op.Status)
	require.Equal(t, "consolidation", op.OperationType)
}

func TestGetAsyncOperationByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := db.GetAsyncOperationByID("missing")
	require.Error(t, err)
}

func TestUpdateAsyncOperationStatus(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertAsyncOperation(newAsyncOp("op1", "b1", "consolidation")))

	require.NoError(t, db.UpdateAsyncOperationStatus("op1", "completed", map[string]any{"merged": float64(2)}, "", 2))

	op, err := db.GetAsyncOperationByID("op1")
	require.NoError(t, err)
	require.Equal(t, "completed", op.Status)
	require.Equal(t, float64(2), op.ResultMetadata["merged"])
}

func TestUpdateAsyncOperationStatusNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	err := db.UpdateAsyncOperationStatus("missing", "completed", nil, "", 1)
	require.Error(t, err)
}

func TestListAsyncOperationsByBankFiltersByType(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertAsyncOperation(newAsyncOp("op1", "b1", "consolidation")))
	require.NoError(t, db.InsertAsyncOperation(newAsyncOp("op2", "b1", "retain")))

	ops, err := db.ListAsyncOperationsByBank("b1", storage.AsyncOperationListFilter{OperationType: "consolidation"})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, "op1", ops[0].OperationID)

	ops, err = db.ListAsyncOperationsByBank("b1", storage.AsyncOperationListFilter{})
	require.NoError(t, err)
	require.Len(t, ops, 2)
}

func TestListAsyncOperationsByBankFiltersByStatusAndPaginates(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertAsyncOperation(newAsyncOp("op1", "b1", "consolidation")))
	require.NoError(t, db.InsertAsyncOperation(newAsyncOp("op2", "b1", "retain")))
	require.NoError(t, db.UpdateAsyncOperationStatus("op1", "completed", nil, "", 2))

	ops, err := db.ListAsyncOperationsByBank("b1", storage.AsyncOperationListFilter{Status: "completed"})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, "op1", ops[0].OperationID)

	ops, err = db.ListAsyncOperationsByBank("b1", storage.AsyncOperationListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, ops, 1)
}

func TestDeleteAsyncOperationByID(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertAsyncOperation(newAsyncOp("op1", "b1", "consolidation")))

	require.NoError(t, db.DeleteAsyncOperation("op1"))
	_, err := db.GetAsyncOperationByID("op1")
	require.Error(t, err)
}

func TestDeleteAsyncOperationNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	require.Error(t, db.DeleteAsyncOperation("missing"))
}

func TestFindPendingOrProcessingByBankAndType(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(newBank("b1", "alpha")))
	require.NoError(t, db.InsertAsyncOperation(newAsyncOp("op1", "b1", "consolidation")))

	op, err := db.FindPendingOrProcessingByBankAndType("b1", "consolidation")
	require.NoError(t, err)
	require.NotNil(t, op)
	require.Equal(t, "op1", op.OperationID)

	require.NoError(t, db.UpdateAsyncOperationStatus("op1", "completed", nil, "", 2))

	op, err = db.FindPendingOrProcessingByBankAndType("b1", "consolidation")
	require.NoError(t, err)
	require.Nil(t, op)
}
