package retain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/dedup"
	"github.com/memoryengine/memoryengine/internal/entity"
	"github.com/memoryengine/memoryengine/internal/ids"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
	"github.com/memoryengine/memoryengine/internal/vector"
)

func newPipeline(t *testing.T) (*Pipeline, *storage.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(&storage.Bank{
		ID: "b1", Name: "alpha", Config: map[string]any{},
		Disposition: storage.Disposition{Skepticism: 3, Literalism: 3, Empathy: 3},
		CreatedAt:   1, UpdatedAt: 1,
	}))

	memVec := vector.New(db.Conn(), vector.NamespaceMemory, 32, vector.HashEmbed(32))
	entityVec := vector.New(db.Conn(), vector.NamespaceEntity, 32, vector.HashEmbed(32))
	resolver := entity.New(db)
	checker := dedup.New(db, memVec)

	p := New(db, ids.NewGenerator(), memVec, entityVec, resolver, checker, nil)
	return p, db
}

func TestRetainInsertsNewUnit(t *testing.T) {
	p, db := newPipeline(t)

	results, err := p.Retain(context.Background(), Options{BankID: "b1", Content: "the launch is scheduled for next week"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].Deduped)
	require.NotEmpty(t, results[0].Unit.ID)

	units, err := db.ListMemoryUnitsByBank("b1", storage.MemoryUnitFilter{})
	require.NoError(t, err)
	require.Len(t, units, 1)
}

func TestRetainDedupesRepeatedContent(t *testing.T) {
	p, db := newPipeline(t)
	ctx := context.Background()

	_, err := p.Retain(ctx, Options{BankID: "b1", Content: "the launch is scheduled for next week"})
	require.NoError(t, err)

	results, err := p.Retain(ctx, Options{BankID: "b1", Content: "the launch is scheduled for next week"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Deduped)

	units, err := db.ListMemoryUnitsByBank("b1", storage.MemoryUnitFilter{})
	require.NoError(t, err)
	require.Len(t, units, 1, "a deduped retain must not insert a second row")
	require.Greater(t, units[0].Confidence, 0.9)
}

func TestRetainRejectsEmptyBankID(t *testing.T) {
	p, _ := newPipeline(t)
	_, err := p.Retain(context.Background(), Options{Content: "hello"})
	require.Error(t, err)
}

func TestRetainRejectsEmptyContentAfterSanitize(t *testing.T) {
	p, _ := newPipeline(t)
	_, err := p.Retain(context.Background(), Options{BankID: "b1", Content: "   "})
	require.Error(t, err)
}

func TestRetainKeepsUnrelatedContentAsSeparateUnits(t *testing.T) {
	p, db := newPipeline(t)
	ctx := context.Background()

	_, err := p.Retain(ctx, Options{BankID: "b1", Content: "the database migration finished"})
	require.NoError(t, err)

	results, err := p.Retain(ctx, Options{BankID: "b1", Content: "the marketing campaign launched in q3"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	units, err := db.ListMemoryUnitsByBank("b1", storage.MemoryUnitFilter{})
	require.NoError(t, err)
	require.Len(t, units, 2)
}

func TestClampConfidence(t *testing.T) {
	require.Equal(t, 0.0, clampConfidence(-1))
	require.Equal(t, 1.0, clampConfidence(2))
	require.Equal(t, 0.5, clampConfidence(0.5))
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", "b", "c"))
	require.Equal(t, "", firstNonEmpty("", ""))
}
