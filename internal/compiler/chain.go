package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/chainflow/internal/variant"
)

// CompileChain parses a CUE value into a ChainDef. The value should be
// the chain struct itself, e.g. the result of looking up "chain.Main".
func CompileChain(v cue.Value) (*ChainDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &ChainDef{Pos: v.Pos()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		def.Name = labels[len(labels)-1].Unquoted()
	}

	var err error
	if def.Looped, err = optionalBool(v, "looped"); err != nil {
		return nil, err
	}
	if def.Unsafe, err = optionalBool(v, "unsafe"); err != nil {
		return nil, err
	}
	if in := v.LookupPath(cue.ParsePath("input")); in.Exists() {
		if def.Input, err = in.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if vars := v.LookupPath(cue.ParsePath("variables")); vars.Exists() {
		def.Variables, err = parseNamedParams(vars)
		if err != nil {
			def.Destroy()
			return nil, err
		}
	}

	blocksVal := v.LookupPath(cue.ParsePath("blocks"))
	if !blocksVal.Exists() {
		def.Destroy()
		return nil, &CompileError{Field: "blocks", Message: "blocks is required", Pos: v.Pos()}
	}
	iter, err := blocksVal.List()
	if err != nil {
		def.Destroy()
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		b, err := parseBlock(iter.Value())
		if err != nil {
			def.Destroy()
			return nil, err
		}
		def.Blocks = append(def.Blocks, b)
	}
	return def, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// parseBlock accepts either a bare block name or {name, params}.
func parseBlock(v cue.Value) (BlockDef, error) {
	b := BlockDef{Pos: v.Pos()}
	if name, err := v.String(); err == nil {
		b.Name = name
		return b, nil
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return b, &CompileError{Field: "block.name", Message: "block name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return b, formatCUEError(err)
	}
	b.Name = name

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return b, nil
	}
	switch paramsVal.Kind() {
	case cue.ListKind:
		b.Params, err = parsePositionalParams(paramsVal)
	case cue.StructKind:
		b.Params, err = parseNamedParams(paramsVal)
	default:
		err = &CompileError{Field: "block.params", Message: "params must be a list or a struct", Pos: paramsVal.Pos()}
	}
	return b, err
}

func parsePositionalParams(v cue.Value) ([]Param, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var params []Param
	for i := 0; iter.Next(); i++ {
		p, err := parseParam(iter.Value())
		if err != nil {
			destroyParams(params)
			return nil, err
		}
		p.Index = i
		params = append(params, p)
	}
	return params, nil
}

func parseNamedParams(v cue.Value) ([]Param, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var params []Param
	for i := 0; iter.Next(); i++ {
		p, err := parseParam(iter.Value())
		if err != nil {
			destroyParams(params)
			return nil, err
		}
		p.Name = iter.Selector().Unquoted()
		p.Index = i
		params = append(params, p)
	}
	return params, nil
}

func destroyParams(params []Param) {
	for i := range params {
		variant.Destroy(&params[i].Value)
	}
}

func parseParam(v cue.Value) (Param, error) {
	p := Param{Pos: v.Pos()}
	if v.Kind() == cue.StructKind {
		if ref := v.LookupPath(cue.MakePath(cue.Str("$chain"))); ref.Exists() {
			name, err := ref.String()
			if err != nil {
				return p, formatCUEError(err)
			}
			p.ChainRef = name
			return p, nil
		}
	}
	val, err := ValueOf(v)
	if err != nil {
		return p, err
	}
	p.Value = val
	return p, nil
}

// ValueOf converts a concrete CUE value into an owned variant.
func ValueOf(v cue.Value) (variant.Variant, error) {
	switch v.Kind() {
	case cue.NullKind:
		return variant.Variant{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return variant.NewBool(b), formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return variant.NewInt(n), formatCUEError(err)
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		return variant.NewFloat(f), formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return variant.Variant{}, formatCUEError(err)
		}
		return variant.NewString(s), nil
	case cue.BytesKind:
		b, err := v.Bytes()
		if err != nil {
			return variant.Variant{}, formatCUEError(err)
		}
		return variant.NewBytes(b), nil
	case cue.ListKind:
		return listValue(v)
	case cue.StructKind:
		return structValue(v)
	}
	return variant.Variant{}, &CompileError{
		Field:   "value",
		Message: fmt.Sprintf("value must be concrete, got %s", v.IncompleteKind()),
		Pos:     v.Pos(),
	}
}

func listValue(v cue.Value) (variant.Variant, error) {
	iter, err := v.List()
	if err != nil {
		return variant.Variant{}, formatCUEError(err)
	}
	out := variant.NewSeq()
	for iter.Next() {
		elem, err := ValueOf(iter.Value())
		if err != nil {
			variant.Destroy(&out)
			return variant.Variant{}, err
		}
		out.Append(elem)
	}
	return out, nil
}

func structValue(v cue.Value) (variant.Variant, error) {
	if name := v.LookupPath(cue.MakePath(cue.Str("$var"))); name.Exists() {
		s, err := name.String()
		if err != nil {
			return variant.Variant{}, formatCUEError(err)
		}
		return variant.NewContextVar(s), nil
	}
	if typ := v.LookupPath(cue.ParsePath("type")); typ.Exists() && typ.Kind() == cue.StringKind {
		data, err := v.MarshalJSON()
		if err != nil {
			return variant.Variant{}, formatCUEError(err)
		}
		out, err := variant.ParseCanonical(data)
		if err != nil {
			return variant.Variant{}, &CompileError{Field: "value", Message: err.Error(), Pos: v.Pos()}
		}
		return out, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return variant.Variant{}, formatCUEError(err)
	}
	out := variant.NewTable()
	for iter.Next() {
		elem, err := ValueOf(iter.Value())
		if err != nil {
			variant.Destroy(&out)
			return variant.Variant{}, err
		}
		out.Put(iter.Selector().Unquoted(), elem)
	}
	return out, nil
}

// CompileError is a structural problem in a chain definition file.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
