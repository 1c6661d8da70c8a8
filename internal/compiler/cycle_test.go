package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refChain(name string, refs ...string) *ChainDef {
	d := &ChainDef{Name: name}
	for _, r := range refs {
		d.Blocks = append(d.Blocks, BlockDef{
			Name:   "Do",
			Params: []Param{{ChainRef: r}},
		})
	}
	return d
}

func TestAnalyzeCyclesEmpty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
}

func TestAnalyzeCyclesDAG(t *testing.T) {
	defs := []*ChainDef{
		refChain("main", "a", "b"),
		refChain("a", "b"),
		refChain("b"),
	}
	assert.Empty(t, AnalyzeCycles(defs))
}

func TestAnalyzeCyclesSelfLoop(t *testing.T) {
	cycles := AnalyzeCycles([]*ChainDef{refChain("loop", "loop")})
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"loop", "loop"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "runs itself")
}

func TestAnalyzeCyclesThreeChains(t *testing.T) {
	defs := []*ChainDef{
		refChain("c", "a"),
		refChain("a", "b"),
		refChain("b", "c"),
		refChain("main", "a"),
	}
	cycles := AnalyzeCycles(defs)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path)
	assert.Equal(t, "chain reference cycle: a → b → c → a", cycles[0].Message)
}

func TestAnalyzeCyclesIgnoresExternalRefs(t *testing.T) {
	defs := []*ChainDef{refChain("main", "library")}
	assert.Empty(t, AnalyzeCycles(defs))
}

func TestAnalyzeCyclesDeterministic(t *testing.T) {
	defs := []*ChainDef{
		refChain("y", "x"),
		refChain("x", "y"),
		refChain("q", "p"),
		refChain("p", "q"),
	}
	first := AnalyzeCycles(defs)
	for range 10 {
		assert.Equal(t, first, AnalyzeCycles(defs))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "p", first[0].Path[0])
	assert.Equal(t, "x", first[1].Path[0])
}
