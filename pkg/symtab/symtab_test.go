package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternIsStableAndReversible(t *testing.T) {
	tab := New()
	id1 := tab.Intern("price")
	id2 := tab.Intern("price")
	require.Equal(t, id1, id2)
	require.Equal(t, "price", tab.String(id1))

	id3 := tab.Intern("qty")
	require.NotEqual(t, id1, id3)
	require.Equal(t, "qty", tab.String(id3))

	got, ok := tab.Lookup("price")
	require.True(t, ok)
	require.Equal(t, id1, got)

	_, ok = tab.Lookup("missing")
	require.False(t, ok)
}
