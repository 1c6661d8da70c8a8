package compiler

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CompileAll compiles every field of the top-level "chain" struct of v,
// in source order. A missing "chain" struct yields no definitions.
func CompileAll(v cue.Value) ([]*ChainDef, error) {
	chainsVal := v.LookupPath(cue.ParsePath("chain"))
	if !chainsVal.Exists() {
		return nil, nil
	}
	iter, err := chainsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var defs []*ChainDef
	for iter.Next() {
		def, err := CompileChain(iter.Value())
		if err != nil {
			DestroyAll(defs)
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// CompileSource compiles CUE source text. filename is used in positions.
func CompileSource(filename string, src []byte) ([]*ChainDef, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileAll(v)
}

// DestroyAll releases every definition in defs.
func DestroyAll(defs []*ChainDef) {
	for _, d := range defs {
		d.Destroy()
	}
}
