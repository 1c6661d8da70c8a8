package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/variant"
)

func setVar(c *engine.Chain, name string, v variant.Variant) {
	c.SetVariable(name, &v)
	variant.Destroy(&v)
}

func TestSaveVariables_RequiresSavedChain(t *testing.T) {
	s := createTestStore(t)
	c := createTestChain(t, s.Registry(), "unsaved", 1)

	_, err := s.SaveVariables(context.Background(), c)
	assert.Error(t, err)
}

func TestSaveVariables_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := createTestChain(t, s.Registry(), "main", 1)
	_, err := s.SaveChain(ctx, c)
	require.NoError(t, err)

	setVar(c, "counter", variant.NewInt(1))
	seq1, err := s.SaveVariables(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq1)

	setVar(c, "counter", variant.NewInt(5))
	setVar(c, "points", variant.NewSeq(variant.NewFloat2(1, 2), variant.NewFloat2(3, 4)))
	seq2, err := s.SaveVariables(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq2)

	seqs, err := s.Snapshots(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, seqs)

	require.NoError(t, s.LoadSnapshot(ctx, c, seq1))
	assert.Equal(t, []string{"counter", "label"}, c.Variables())
	counter, _ := c.FindVariable("counter")
	assert.Equal(t, int64(1), counter.Int())

	seq, err := s.LoadVariables(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, seq2, seq)
	assert.Equal(t, []string{"counter", "label", "points"}, c.Variables())
	points, _ := c.FindVariable("points")
	require.Len(t, points.Seq(), 2)
	assert.Equal(t, [2]float64{3, 4}, points.Seq()[1].Float2())
}

func TestSaveVariables_EmptySnapshot(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := createTestChain(t, s.Registry(), "main", 1)
	_, err := s.SaveChain(ctx, c)
	require.NoError(t, err)

	c.DeleteVariable("label")
	seq, err := s.SaveVariables(ctx, c)
	require.NoError(t, err)

	setVar(c, "later", variant.NewBool(true))
	require.NoError(t, s.LoadSnapshot(ctx, c, seq))
	assert.Empty(t, c.Variables())
}

func TestLoadVariables_NotFound(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := createTestChain(t, s.Registry(), "main", 1)

	_, err := s.LoadVariables(ctx, c)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.LoadSnapshot(ctx, c, 3), ErrNotFound)
	assert.Equal(t, []string{"label"}, c.Variables(), "chain unchanged on error")
}

func TestLoadSnapshot_DoesNotLeak(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := createTestChain(t, s.Registry(), "main", 1)
	_, err := s.SaveChain(ctx, c)
	require.NoError(t, err)
	setVar(c, "table", func() variant.Variant {
		v := variant.NewTable()
		v.Put("x", variant.NewString("y"))
		return v
	}())
	seq, err := s.SaveVariables(ctx, c)
	require.NoError(t, err)

	before := variant.LiveAllocations()
	for range 3 {
		require.NoError(t, s.LoadSnapshot(ctx, c, seq))
	}
	assert.Equal(t, before, variant.LiveAllocations())
}
