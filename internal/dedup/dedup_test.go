package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
	"github.com/memoryengine/memoryengine/internal/vector"
)

func insertUnit(t *testing.T, db *storage.DB, vs *vector.Store, id, bankID, content string) {
	t.Helper()
	vec, err := vs.Embed(context.Background(), content)
	require.NoError(t, err)
	m := &storage.MemoryUnit{
		ID: id, BankID: bankID, Content: content, FactType: "experience",
		Confidence: 0.9, ProofCount: 1, CreatedAt: 1, UpdatedAt: 1,
	}
	require.NoError(t, db.InsertMemoryUnit(m, vs, vec, nil))
}

func TestCheckFindsNearDuplicateAboveThreshold(t *testing.T) {
	db := testutil.NewDB(t)
	vs := vector.New(db.Conn(), vector.NamespaceMemory, 32, vector.HashEmbed(32))
	c := New(db, vs)

	insertUnit(t, db, vs, "m1", "bank-1", "staging database moved to us-west-2")

	result, _, err := c.Check(context.Background(), "bank-1", "staging database moved to us-west-2", 0)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "m1", result.Duplicate.ID)
	require.GreaterOrEqual(t, result.Score, Threshold)
}

func TestCheckReturnsNilForDissimilarContent(t *testing.T) {
	db := testutil.NewDB(t)
	vs := vector.New(db.Conn(), vector.NamespaceMemory, 32, vector.HashEmbed(32))
	c := New(db, vs)

	insertUnit(t, db, vs, "m1", "bank-1", "staging database moved to us-west-2")

	result, vec, err := c.Check(context.Background(), "bank-1", "the cafeteria serves lunch at noon", 0)
	require.NoError(t, err)
	require.Nil(t, result)
	require.NotNil(t, vec)
}

func TestCheckIgnoresOtherBanks(t *testing.T) {
	db := testutil.NewDB(t)
	vs := vector.New(db.Conn(), vector.NamespaceMemory, 32, vector.HashEmbed(32))
	c := New(db, vs)

	insertUnit(t, db, vs, "m1", "bank-2", "staging database moved to us-west-2")

	result, _, err := c.Check(context.Background(), "bank-1", "staging database moved to us-west-2", 0)
	require.NoError(t, err)
	require.Nil(t, result)
}
