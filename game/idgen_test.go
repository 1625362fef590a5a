package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdGen_GeneratesUniqueIds(t *testing.T) {
	t.Parallel()
	gen := NewIdGen()

	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		id := gen.Generate()
		require.Len(t, id, 6)
		_, dup := seen[id]
		require.False(t, dup, "id %q issued twice", id)
		seen[id] = struct{}{}
	}
}

func TestIdGen_DisposeFreesTheId(t *testing.T) {
	t.Parallel()
	gen := NewIdGen()

	id := gen.Generate()
	gen.Dispose(id)
	assert.NotPanics(t, func() { gen.Dispose(id) }, "double dispose is harmless")
}
