package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/compose"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/variant"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithRegistry(blocks.NewRegistry())}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestChain builds "Const n → Math.Add 1" with one variable.
func createTestChain(t *testing.T, reg *block.Registry, name string, n int64) *engine.Chain {
	t.Helper()
	c := engine.NewChain(name, engine.Looped(true))
	add := func(blockName string, param variant.Variant) {
		b, err := reg.Create(blockName)
		require.NoError(t, err)
		require.NoError(t, compose.SetParam(b, 0, &param))
		variant.Destroy(&param)
		require.NoError(t, c.AddBlock(b))
	}
	add("Const", variant.NewInt(n))
	add("Math.Add", variant.NewInt(1))

	label := variant.NewString("start")
	c.SetVariable("label", &label)
	variant.Destroy(&label)

	t.Cleanup(c.Destroy)
	return c
}
