package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainflow/internal/blocks"
	"github.com/roach88/chainflow/internal/variant"
)

func validateSource(t *testing.T, src string, known ...string) []ValidationError {
	t.Helper()
	defs, err := CompileSource("test.cue", []byte(src))
	require.NoError(t, err)
	t.Cleanup(func() { DestroyAll(defs) })
	return Validate(defs, blocks.NewRegistry(), known...)
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	errs := validateSource(t, `
		chain: Double: blocks: [{name: "Math.Multiply", params: [2]}]
		chain: Main: {
			input: "Int"
			variables: {offset: 1}
			blocks: [
				{name: "Do", params: {Chain: {"$chain": "Double"}}},
				{name: "Math.Add", params: [{"$var": "offset"}]},
				{name: "Set", params: {Name: "result"}},
				{name: "Get", params: {Name: "result", Key: null, Global: false, Default: 0}},
			]
		}
	`)
	assert.Empty(t, errs)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		code  string
		field string
	}{
		{
			name:  "no blocks",
			src:   `chain: Empty: blocks: []`,
			code:  ErrChainNoBlocks,
			field: "Empty.blocks",
		},
		{
			name:  "bad input",
			src:   `chain: A: {input: "Integer", blocks: ["Core.Stop"]}`,
			code:  ErrInvalidInput,
			field: "A.input",
		},
		{
			name:  "unknown block",
			src:   `chain: A: blocks: ["Nope.Missing"]`,
			code:  ErrUnknownBlock,
			field: "A.blocks[0]",
		},
		{
			name:  "unknown param",
			src:   `chain: A: blocks: [{name: "Const", params: {Amount: 1}}]`,
			code:  ErrUnknownParam,
			field: "A.blocks[0].Amount",
		},
		{
			name:  "param index",
			src:   `chain: A: blocks: [{name: "Const", params: [1, 2]}]`,
			code:  ErrParamIndex,
			field: "A.blocks[0].params[1]",
		},
		{
			name:  "param mismatch",
			src:   `chain: A: blocks: [{name: "Math.Add", params: ["three"]}]`,
			code:  ErrParamMismatch,
			field: "A.blocks[0].params[0]",
		},
		{
			name:  "undefined chain",
			src:   `chain: A: blocks: [{name: "Do", params: [{"$chain": "Ghost"}]}]`,
			code:  ErrUndefinedChain,
			field: "A.blocks[0].params[0]",
		},
		{
			name:  "chain ref into non-chain param",
			src:   "chain: B: blocks: [\"Core.Stop\"]\nchain: A: blocks: [{name: \"Math.Add\", params: [{\"$chain\": \"B\"}]}]",
			code:  ErrParamMismatch,
			field: "A.blocks[0].params[0]",
		},
		{
			name:  "variable holds chain",
			src:   `chain: A: {variables: {c: {"$chain": "A"}}, blocks: ["Core.Stop"]}`,
			code:  ErrInvalidVariable,
			field: "A.variables.c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateSource(t, tt.src)
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Positive(t, errs[0].Line)
		})
	}
}

func TestValidateDuplicateChain(t *testing.T) {
	a, err := CompileSource("a.cue", []byte(`chain: A: blocks: ["Core.Stop"]`))
	require.NoError(t, err)
	defer DestroyAll(a)
	b, err := CompileSource("b.cue", []byte(`chain: A: blocks: ["Core.Stop"]`))
	require.NoError(t, err)
	defer DestroyAll(b)

	errs := Validate(append(a, b...), blocks.NewRegistry())
	assert.Equal(t, []string{ErrDuplicateChain}, codes(errs))
}

func TestValidateDuplicatePositionalAndNamed(t *testing.T) {
	def := &ChainDef{Name: "A", Blocks: []BlockDef{{
		Name:   "Const",
		Params: []Param{
			{Index: 0, Value: variant.NewInt(1)},
			{Name: "Value", Value: variant.NewInt(2)},
		},
	}}}
	errs := Validate([]*ChainDef{def}, blocks.NewRegistry())
	assert.Equal(t, []string{ErrDuplicateParam}, codes(errs))
}

func TestValidateKnownChains(t *testing.T) {
	src := `chain: A: blocks: [{name: "Do", params: [{"$chain": "Stored"}]}]`
	assert.Equal(t, []string{ErrUndefinedChain}, codes(validateSource(t, src)))
	assert.Empty(t, validateSource(t, src, "Stored"))
}

func TestValidateCycle(t *testing.T) {
	errs := validateSource(t, `
		chain: A: blocks: [{name: "Do", params: [{"$chain": "B"}]}]
		chain: B: blocks: [{name: "Do", params: [{"$chain": "A"}]}]
	`)
	require.Equal(t, []string{ErrChainCycle}, codes(errs))
	assert.Equal(t, "A", errs[0].Field)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "A.blocks[0]", Message: "unknown block", Code: ErrUnknownBlock, Line: 3}
	assert.Equal(t, "[E110] line 3: A.blocks[0]: unknown block", e.Error())

	e.Line = 0
	assert.Equal(t, "[E110] A.blocks[0]: unknown block", e.Error())
}
