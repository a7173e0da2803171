package mentalmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryengine/memoryengine/internal/ids"
	"github.com/memoryengine/memoryengine/internal/recall"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/testutil"
	"github.com/memoryengine/memoryengine/internal/vector"
)

func newService(t *testing.T) (*Service, *storage.DB, *vector.Store) {
	t.Helper()
	db := testutil.NewDB(t)
	require.NoError(t, db.InsertBank(&storage.Bank{
		ID: "b1", Name: "alpha", Config: map[string]any{},
		Disposition: storage.Disposition{Skepticism: 3, Literalism: 3, Empathy: 3},
		CreatedAt:   1, UpdatedAt: 1,
	}))

	vs := vector.New(db.Conn(), vector.NamespaceMemory, 16, vector.HashEmbed(16))
	modelVec := vector.New(db.Conn(), vector.NamespaceMentalModel, 16, vector.HashEmbed(16))
	engine := recall.New(db, vs)
	svc := New(db, engine, nil, ids.NewGenerator(), modelVec)
	return svc, db, vs
}

func TestCreateInsertsAndRefreshesModel(t *testing.T) {
	svc, db, vs := newService(t)
	ctx := context.Background()

	vec, err := vs.Embed(ctx, "staging database migration notes")
	require.NoError(t, err)
	require.NoError(t, db.InsertMemoryUnit(&storage.MemoryUnit{
		ID: "m1", BankID: "b1", Content: "staging database migration notes", FactType: "experience",
		Confidence: 0.9, ProofCount: 1, CreatedAt: 1, UpdatedAt: 1,
	}, vs, vec, nil))

	m, err := svc.Create(ctx, CreateOptions{BankID: "b1", Name: "infra notes", SourceQuery: "staging database migration"})
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)
	require.NotNil(t, m.LastRefreshedAt)
	require.Contains(t, *m.Content, "staging database migration notes")
}

func TestCreateRequiresFields(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Create(context.Background(), CreateOptions{BankID: "b1"})
	require.Error(t, err)
}

func TestFindMatchingUsesVectorSimilarity(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateOptions{BankID: "b1", Name: "infra notes", SourceQuery: "staging database migration"})
	require.NoError(t, err)

	matches, err := svc.FindMatching(ctx, "b1", "staging database migration")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	matches, err = svc.FindMatching(ctx, "b1", "completely unrelated topic")
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestIsStaleBeyondWindow(t *testing.T) {
	refreshed := int64(0)
	m := &storage.MentalModel{LastRefreshedAt: &refreshed}
	require.True(t, m.IsStale(storage.StaleWindowMillis+1))
	require.False(t, m.IsStale(storage.StaleWindowMillis-1))
}

func TestIsStaleNilRefresh(t *testing.T) {
	m := &storage.MentalModel{}
	require.True(t, m.IsStale(0))
}
