package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/compose"
	"github.com/roach88/chainflow/internal/types"
)

// Validation error codes (E100-E199)
const (
	// Chain errors (E101-E109)
	ErrChainNameEmpty  = "E101" // chain name is required
	ErrChainNoBlocks   = "E102" // at least one block required
	ErrDuplicateChain  = "E103" // chain defined twice
	ErrInvalidInput    = "E104" // input is not a kind name
	ErrInvalidVariable = "E105" // chain variable cannot be set

	// Block errors (E110-E119)
	ErrUnknownBlock   = "E110" // block name not registered
	ErrUnknownParam   = "E111" // no parameter with that name
	ErrParamIndex     = "E112" // positional parameter out of range
	ErrParamMismatch  = "E113" // value does not fit the parameter
	ErrUndefinedChain = "E114" // {$chain} names no known chain
	ErrChainCycle     = "E115" // chains run each other
	ErrDuplicateParam = "E116" // same parameter set twice
)

// ValidationError represents a chain definition error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks chain definitions against the block registry.
// Returns all errors found (does not fail-fast). Chain references may
// name any chain in defs or in known.
func Validate(defs []*ChainDef, reg *block.Registry, known ...string) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(defs)+len(known))
	for _, n := range known {
		names[n] = true
	}
	for _, d := range defs {
		if d.Name != "" && names[d.Name] {
			errs = append(errs, ValidationError{
				Field:   d.Name,
				Message: fmt.Sprintf("chain %q is defined more than once", d.Name),
				Code:    ErrDuplicateChain,
				Line:    d.Pos.Line(),
			})
		}
		names[d.Name] = true
	}

	for _, d := range defs {
		errs = append(errs, validateChain(d, reg, names)...)
	}

	for _, c := range AnalyzeCycles(defs) {
		errs = append(errs, ValidationError{
			Field:   c.Path[0],
			Message: c.Message,
			Code:    ErrChainCycle,
		})
	}
	return errs
}

func validateChain(d *ChainDef, reg *block.Registry, names map[string]bool) []ValidationError {
	var errs []ValidationError
	field := d.Name

	if strings.TrimSpace(d.Name) == "" {
		field = "chain"
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "chain name is required and must be non-empty",
			Code:    ErrChainNameEmpty,
			Line:    d.Pos.Line(),
		})
	}
	if len(d.Blocks) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".blocks",
			Message: "at least one block is required",
			Code:    ErrChainNoBlocks,
			Line:    d.Pos.Line(),
		})
	}
	if d.Input != "" {
		if _, err := types.ParseName(d.Input); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".input",
				Message: err.Error(),
				Code:    ErrInvalidInput,
				Line:    d.Pos.Line(),
			})
		}
	}
	for _, v := range d.Variables {
		if v.ChainRef != "" {
			errs = append(errs, ValidationError{
				Field:   field + ".variables." + v.Name,
				Message: "chain references cannot be stored in variables",
				Code:    ErrInvalidVariable,
				Line:    v.Pos.Line(),
			})
		}
	}

	for i := range d.Blocks {
		errs = append(errs, validateBlock(fmt.Sprintf("%s.blocks[%d]", field, i), &d.Blocks[i], reg, names)...)
	}
	return errs
}

func validateBlock(field string, def *BlockDef, reg *block.Registry, names map[string]bool) []ValidationError {
	b, err := reg.Create(def.Name)
	if err != nil {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("unknown block %q", def.Name),
			Code:    ErrUnknownBlock,
			Line:    def.Pos.Line(),
		}}
	}
	defer b.Destroy()

	var errs []ValidationError
	var seen []int
	for _, p := range def.Params {
		pfield := field + "." + paramLabel(p)
		index, err := ParamIndex(b, p)
		if err != nil {
			code := ErrParamIndex
			if p.Name != "" {
				code = ErrUnknownParam
			}
			errs = append(errs, ValidationError{Field: pfield, Message: err.Error(), Code: code, Line: p.Pos.Line()})
			continue
		}
		if slices.Contains(seen, index) {
			errs = append(errs, ValidationError{
				Field:   pfield,
				Message: fmt.Sprintf("parameter %q set more than once", b.Parameters()[index].Name),
				Code:    ErrDuplicateParam,
				Line:    p.Pos.Line(),
			})
			continue
		}
		seen = append(seen, index)

		if p.ChainRef != "" {
			if !names[p.ChainRef] {
				errs = append(errs, ValidationError{
					Field:   pfield,
					Message: fmt.Sprintf("undefined chain %q", p.ChainRef),
					Code:    ErrUndefinedChain,
					Line:    p.Pos.Line(),
				})
			}
			if !acceptsChain(b.Parameters()[index]) {
				errs = append(errs, ValidationError{
					Field:   pfield,
					Message: fmt.Sprintf("parameter %q does not accept a chain", b.Parameters()[index].Name),
					Code:    ErrParamMismatch,
					Line:    p.Pos.Line(),
				})
			}
			continue
		}
		if err := compose.ValidateSetParam(b, index, &p.Value); err != nil {
			var ce compose.Error
			msg := err.Error()
			if errors.As(err, &ce) {
				msg = ce.Message
			}
			errs = append(errs, ValidationError{Field: pfield, Message: msg, Code: ErrParamMismatch, Line: p.Pos.Line()})
		}
	}
	return errs
}

// ParamIndex resolves a named or positional parameter of b.
func ParamIndex(b block.Block, p Param) (int, error) {
	params := b.Parameters()
	if p.Name == "" {
		if p.Index < 0 || p.Index >= len(params) {
			return 0, block.ParamIndexError(b, p.Index)
		}
		return p.Index, nil
	}
	for i, info := range params {
		if info.Name == p.Name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s has no parameter %q", b.Name(), p.Name)
}

func acceptsChain(info block.ParameterInfo) bool {
	return types.MatchAny(types.ChainType, info.ValueTypes, true, true)
}

func paramLabel(p Param) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("params[%d]", p.Index)
}
