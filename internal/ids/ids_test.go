package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratorProducesValidMonotonicULIDs(t *testing.T) {
	g := NewGenerator()
	a := g.New()
	b := g.New()

	require.True(t, Valid(a))
	require.True(t, Valid(b))
	require.NotEqual(t, a, b)
	require.Less(t, a, b, "successive ids from the same generator must sort increasing")
}

func TestPackageLevelNewProducesValidID(t *testing.T) {
	require.True(t, Valid(New()))
}

func TestValidRejectsMalformedString(t *testing.T) {
	require.False(t, Valid("not-a-ulid"))
	require.False(t, Valid(""))
}
