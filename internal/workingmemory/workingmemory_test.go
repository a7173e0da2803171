package workingmemory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	c := New()
	c.Record("bank-a", []string{"m1", "m2"})
	c.Record("bank-a", []string{"m3"})

	require.Equal(t, []string{"m1", "m2", "m3"}, c.Recent("bank-a"))
	require.Empty(t, c.Recent("bank-b"))
}

func TestRecordEvictsPastCapacity(t *testing.T) {
	c := New()
	ids := make([]string, Capacity+5)
	for i := range ids {
		ids[i] = string(rune('a' + i%26))
	}
	c.Record("bank-a", ids)

	recent := c.Recent("bank-a")
	require.Len(t, recent, Capacity)
	require.Equal(t, ids[len(ids)-Capacity:], recent)
}

func TestRecordIgnoresEmpty(t *testing.T) {
	c := New()
	c.Record("bank-a", nil)
	require.Empty(t, c.Recent("bank-a"))
}

func TestClear(t *testing.T) {
	c := New()
	c.Record("bank-a", []string{"m1"})
	c.Clear("bank-a")
	require.Empty(t, c.Recent("bank-a"))
}
