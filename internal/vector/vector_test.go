package vector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/testutil"
	"github.com/memoryengine/memoryengine/internal/vector"
)

func TestUpsertAndSearchRanksByCosineDistance(t *testing.T) {
	db := testutil.NewDB(t)
	store := vector.New(db.Conn(), vector.NamespaceMemory, 32, vector.HashEmbed(32))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "m1", "bank-1", "staging database moved to us-west-2"))
	require.NoError(t, store.Upsert(ctx, "m2", "bank-1", "staging database moved to us-west-2"))
	require.NoError(t, store.Upsert(ctx, "m3", "bank-1", "the cafeteria serves lunch at noon"))
	require.NoError(t, store.Upsert(ctx, "m4", "bank-2", "staging database moved to us-west-2"))

	hits, err := store.Search(ctx, "bank-1", "staging database moved to us-west-2", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3, "bank-2's vector must not leak into bank-1's search")

	require.ElementsMatch(t, []string{"m1", "m2"}, []string{hits[0].ID, hits[1].ID})
	require.Less(t, hits[0].Distance, hits[2].Distance)
}

func TestDeleteRemovesVector(t *testing.T) {
	db := testutil.NewDB(t)
	store := vector.New(db.Conn(), vector.NamespaceMemory, 16, vector.HashEmbed(16))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "m1", "bank-1", "hello world"))
	require.NoError(t, store.Delete(ctx, "m1"))

	hits, err := store.Search(ctx, "bank-1", "hello world", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestScoreIsOneMinusDistance(t *testing.T) {
	h := vector.Hit{Distance: 0.3}
	require.InDelta(t, 0.7, h.Score(), 1e-9)
}

func TestSearchLimitsToK(t *testing.T) {
	db := testutil.NewDB(t)
	store := vector.New(db.Conn(), vector.NamespaceMemory, 16, vector.HashEmbed(16))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Upsert(ctx, string(rune('a'+i)), "bank-1", "shared vocabulary words"))
	}

	hits, err := store.Search(ctx, "bank-1", "shared vocabulary words", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}
