package compiler

import (
	"cuelang.org/go/cue/token"

	"github.com/roach88/chainflow/internal/variant"
)

// ChainDef is a chain definition compiled from CUE.
//
//	chain: Name: {
//		looped:    bool     // optional
//		unsafe:    bool     // optional
//		input:     "Int"    // optional type name
//		variables: {...}    // optional initial chain variables
//		blocks: [
//			"Core.Stop",                              // no parameters
//			{name: "Const", params: [5]},             // positional
//			{name: "Math.Add", params: {Operand: 3}}, // by name
//		]
//	}
//
// Parameter values map to variants: null is None, whole numbers Int,
// other numbers Float, lists Seq and structs Table. Three struct forms
// are special:
//
//	{$var: "name"}                      a ContextVar
//	{$chain: "Name"}                    a reference to another chain
//	{type: "Float3", value: [1, 2, 3]}  any kind, as in canonical JSON
type ChainDef struct {
	Name      string
	Looped    bool
	Unsafe    bool
	Input     string
	Variables []Param
	Blocks    []BlockDef
	Pos       token.Pos
}

// BlockDef is one entry of a chain's block list.
type BlockDef struct {
	Name   string
	Params []Param
	Pos    token.Pos
}

// Param is a block parameter or a chain variable. Name is empty for
// positional parameters, whose Index is their position. ChainRef is set
// instead of Value for {$chain: ...}.
type Param struct {
	Name     string
	Index    int
	Value    variant.Variant
	ChainRef string
	Pos      token.Pos
}

// Destroy releases the parameter values of d.
func (d *ChainDef) Destroy() {
	for i := range d.Variables {
		variant.Destroy(&d.Variables[i].Value)
	}
	for i := range d.Blocks {
		for j := range d.Blocks[i].Params {
			variant.Destroy(&d.Blocks[i].Params[j].Value)
		}
	}
}

// ChainRefs returns the chains d references, in block order.
func (d *ChainDef) ChainRefs() []string {
	var refs []string
	for _, b := range d.Blocks {
		for _, p := range b.Params {
			if p.ChainRef != "" {
				refs = append(refs, p.ChainRef)
			}
		}
	}
	return refs
}
