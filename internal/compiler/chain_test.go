package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainflow/internal/variant"
)

func compileOne(t *testing.T, src, path string) *ChainDef {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	def, err := CompileChain(v.LookupPath(cue.ParsePath(path)))
	require.NoError(t, err)
	t.Cleanup(def.Destroy)
	return def
}

func TestCompileChainBasic(t *testing.T) {
	def := compileOne(t, `
		chain: Main: {
			looped: true
			input:  "Int"
			blocks: [
				{name: "Const", params: [5]},
				{name: "Math.Add", params: {Operand: 3}},
				"Core.Stop",
			]
		}
	`, "chain.Main")

	assert.Equal(t, "Main", def.Name)
	assert.True(t, def.Looped)
	assert.False(t, def.Unsafe)
	assert.Equal(t, "Int", def.Input)
	require.Len(t, def.Blocks, 3)

	assert.Equal(t, "Const", def.Blocks[0].Name)
	require.Len(t, def.Blocks[0].Params, 1)
	assert.Equal(t, "", def.Blocks[0].Params[0].Name)
	assert.Equal(t, int64(5), def.Blocks[0].Params[0].Value.Int())

	require.Len(t, def.Blocks[1].Params, 1)
	assert.Equal(t, "Operand", def.Blocks[1].Params[0].Name)

	assert.Equal(t, "Core.Stop", def.Blocks[2].Name)
	assert.Empty(t, def.Blocks[2].Params)
	assert.Equal(t, 2, def.Pos.Line())
}

func TestCompileChainMissingBlocks(t *testing.T) {
	v := cuecontext.New().CompileString(`chain: Empty: {looped: false}`)
	require.NoError(t, v.Err())

	_, err := CompileChain(v.LookupPath(cue.ParsePath("chain.Empty")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocks is required")
}

func TestCompileChainBlockWithoutName(t *testing.T) {
	v := cuecontext.New().CompileString(`chain: Bad: blocks: [{params: [1]}]`)
	require.NoError(t, v.Err())

	_, err := CompileChain(v.LookupPath(cue.ParsePath("chain.Bad")))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "block.name", ce.Field)
}

func TestCompileChainRefsAndVariables(t *testing.T) {
	def := compileOne(t, `
		chain: Main: {
			variables: {count: 4, label: "x"}
			blocks: [
				{name: "Do", params: [{"$chain": "Helper"}]},
				{name: "Math.Add", params: [{"$var": "count"}]},
			]
		}
	`, "chain.Main")

	require.Len(t, def.Variables, 2)
	assert.Equal(t, "count", def.Variables[0].Name)
	assert.Equal(t, int64(4), def.Variables[0].Value.Int())
	assert.Equal(t, "label", def.Variables[1].Name)

	assert.Equal(t, []string{"Helper"}, def.ChainRefs())
	assert.True(t, def.Blocks[0].Params[0].Value.IsNone())

	p := def.Blocks[1].Params[0]
	assert.Equal(t, variant.ContextVar, p.Value.Kind())
	assert.Equal(t, "count", p.Value.Text())
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want variant.Variant
	}{
		{"null", `null`, variant.Variant{}},
		{"bool", `true`, variant.NewBool(true)},
		{"int", `42`, variant.NewInt(42)},
		{"float", `2.5`, variant.NewFloat(2.5)},
		{"string", `"hi"`, variant.NewString("hi")},
		{"bytes", `'\x01\x02'`, variant.NewBytes([]byte{1, 2})},
		{"list", `[1, "a"]`, variant.NewSeq(variant.NewInt(1), variant.NewString("a"))},
		{"context var", `{"$var": "x"}`, variant.NewContextVar("x")},
		{"typed", `{type: "Float3", value: [1, 2, 3]}`, variant.NewFloat3(1, 2, 3)},
		{"typed color", `{type: "Color", value: [255, 0, 0, 255]}`, variant.NewColor(255, 0, 0, 255)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())

			got, err := ValueOf(v)
			require.NoError(t, err)
			defer variant.Destroy(&got)
			defer variant.Destroy(&tt.want)
			assert.True(t, variant.Equal(&tt.want, &got), "want %s, got %s", tt.want.String(), got.String())
		})
	}
}

func TestValueOfTableKeepsSourceOrder(t *testing.T) {
	v := cuecontext.New().CompileString(`{b: 1, a: [2.5]}`)
	require.NoError(t, v.Err())

	got, err := ValueOf(v)
	require.NoError(t, err)
	defer variant.Destroy(&got)

	require.Equal(t, variant.Table, got.Kind())
	assert.Equal(t, []string{"b", "a"}, got.Map().Keys())
	a, ok := got.Map().Get("a")
	require.True(t, ok)
	assert.Equal(t, variant.Seq, a.Kind())
}

func TestValueOfRejectsIncomplete(t *testing.T) {
	v := cuecontext.New().CompileString(`int`)
	require.NoError(t, v.Err())

	_, err := ValueOf(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concrete")
}

func TestValueOfBadTypedValue(t *testing.T) {
	v := cuecontext.New().CompileString(`{type: "Float3", value: [1, 2]}`)
	require.NoError(t, v.Err())

	_, err := ValueOf(v)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "value", ce.Field)
}

func TestCompileSource(t *testing.T) {
	defs, err := CompileSource("chains.cue", []byte(`
		chain: A: blocks: ["Core.Stop"]
		chain: B: blocks: [{name: "Const", params: [1]}]
	`))
	require.NoError(t, err)
	defer DestroyAll(defs)

	require.Len(t, defs, 2)
	assert.Equal(t, "A", defs[0].Name)
	assert.Equal(t, "B", defs[1].Name)
}

func TestCompileSourceSyntaxError(t *testing.T) {
	_, err := CompileSource("broken.cue", []byte(`chain: A: {`))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "broken.cue", ce.Pos.Filename())
}

func TestLeakFree(t *testing.T) {
	before := variant.LiveAllocations()
	defs, err := CompileSource("leak.cue", []byte(`
		chain: A: {
			variables: {t: {x: "s", y: [1, 2]}}
			blocks: [{name: "Const", params: ["text"]}]
		}
	`))
	require.NoError(t, err)
	DestroyAll(defs)
	assert.Equal(t, before, variant.LiveAllocations())
}
