// Package compose performs the static pass over a block list before a
// chain runs: it checks that each block accepts its predecessor's output,
// infers output types, and validates the context variables blocks expose
// and require.
package compose

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// Options configures a composition pass.
type Options struct {
	// ChainName labels diagnostics and is passed to Compose.
	ChainName string

	// Consumables seeds the environment with variables that exist before
	// the first block, e.g. globals or a calling chain's variables.
	Consumables map[string][]block.ExposedInfo

	// OnError is called for every warning and error.
	OnError Callback
}

// Result is the outcome of a composition pass.
type Result struct {
	OutputType types.TypeInfo `json:"output_type"`

	// Exposed lists every variable exposed by the blocks, in order.
	Exposed []block.ExposedInfo `json:"exposed,omitempty"`

	// Required lists variables the blocks read that are not exposed
	// inside the block list itself.
	Required []block.ExposedInfo `json:"required,omitempty"`

	// Diagnostics holds every warning and error raised.
	Diagnostics []Error `json:"diagnostics,omitempty"`
}

// Warnings returns the non-fatal diagnostics.
func (r *Result) Warnings() []Error {
	var out []Error
	for _, d := range r.Diagnostics {
		if !d.Fatal {
			out = append(out, d)
		}
	}
	return out
}

// state is the running environment of one pass.
type state struct {
	opts     Options
	result   *Result
	previous types.TypeInfo
	env      map[string][]block.ExposedInfo
	// assigned and referenced track exposures made by this block list.
	assigned   map[string]string
	referenced map[string]string
	exposedBy  map[string]bool
}

// ValidateConnections walks blocks left to right, starting from the
// chain's declared input type. For each block it:
//  1. checks the block accepts the previous output type
//  2. infers the block's output type through Compose, or adopts its single
//     concrete output type, or keeps the previous type
//  3. merges its exposed variables, rejecting any name that is both
//     referenced and assigned within the list
//  4. checks its required variables: missing is a warning, present with
//     an incompatible type is fatal
//
// Every diagnostic is reported through opts.OnError and recorded in the
// result. A fatal diagnostic stops the pass and is returned as the error.
func ValidateConnections(blocks []block.Block, input types.TypeInfo, opts Options) (*Result, error) {
	s := &state{
		opts:       opts,
		result:     &Result{},
		previous:   input,
		env:        make(map[string][]block.ExposedInfo, len(opts.Consumables)),
		assigned:   make(map[string]string),
		referenced: make(map[string]string),
		exposedBy:  make(map[string]bool),
	}
	for name, infos := range opts.Consumables {
		s.env[name] = slices.Clone(infos)
	}

	for i, b := range blocks {
		if err := s.step(i, b); err != nil {
			s.result.OutputType = s.previous
			return s.result, err
		}
	}
	s.result.OutputType = s.previous
	return s.result, nil
}

func (s *state) report(e Error) error {
	s.result.Diagnostics = append(s.result.Diagnostics, e)
	if s.opts.OnError != nil {
		s.opts.OnError(e)
	}
	if e.Fatal {
		return e
	}
	slog.Warn("composition warning", "chain", s.opts.ChainName, "block", e.Block, "code", e.Code, "message", e.Message)
	return nil
}

func (s *state) step(i int, b block.Block) error {
	// 1. Input check. A block taking only None ignores its input.
	inputs := b.InputTypes()
	ignoresInput := len(inputs) == 1 && inputs[0].Kind == variant.None
	if !ignoresInput && !types.MatchAny(s.previous, inputs, false, true) {
		return s.report(Error{
			Code:    ErrInputMismatch,
			Block:   b.Name(),
			Index:   i,
			Message: fmt.Sprintf("expects input %s, got %s", formatTypes(inputs), s.previous),
			Fatal:   true,
		})
	}

	// 2. Output type.
	if c, ok := b.(block.Composer); ok {
		out, err := c.Compose(block.InstanceData{
			Block:     b,
			ChainName: s.opts.ChainName,
			InputType: s.previous,
			Shared:    maps.Clone(s.env),
		})
		if err != nil {
			return s.report(Error{Code: ErrComposeFailed, Block: b.Name(), Index: i, Message: err.Error(), Fatal: true})
		}
		s.previous = out
	} else if outputs := b.OutputTypes(); len(outputs) == 1 && outputs[0].Kind != variant.Any {
		s.previous = outputs[0]
	}

	// 3. Exposed variables.
	for _, ex := range b.ExposedVariables() {
		if err := s.expose(i, b, ex); err != nil {
			return err
		}
	}

	// 4. Required variables.
	for _, req := range b.RequiredVariables() {
		infos, ok := s.env[req.Name]
		if !ok {
			if err := s.report(Error{
				Code:    ErrMissingVariable,
				Block:   b.Name(),
				Index:   i,
				Message: fmt.Sprintf("required variable %q is not exposed before use", req.Name),
			}); err != nil {
				return err
			}
			s.addRequired(req)
			continue
		}
		matched := false
		for _, info := range infos {
			if types.Match(info.Type, req.Type, false, false) {
				matched = true
				break
			}
		}
		if !matched {
			return s.report(Error{
				Code:    ErrVariableMismatch,
				Block:   b.Name(),
				Index:   i,
				Message: fmt.Sprintf("variable %q is %s, block requires %s", req.Name, formatExposed(infos), req.Type),
				Fatal:   true,
			})
		}
		if !s.exposedBy[req.Name] {
			s.addRequired(req)
		}
	}
	return nil
}

func (s *state) expose(i int, b block.Block, ex block.ExposedInfo) error {
	if ex.Mutable {
		if other, ok := s.referenced[ex.Name]; ok {
			return s.report(mutabilityConflict(i, b, ex.Name, other))
		}
		s.assigned[ex.Name] = b.Name()
	} else {
		if other, ok := s.assigned[ex.Name]; ok {
			return s.report(mutabilityConflict(i, b, ex.Name, other))
		}
		s.referenced[ex.Name] = b.Name()
	}
	s.env[ex.Name] = append(s.env[ex.Name], ex)
	s.exposedBy[ex.Name] = true
	s.result.Exposed = append(s.result.Exposed, ex)
	return nil
}

func (s *state) addRequired(req block.ExposedInfo) {
	for _, r := range s.result.Required {
		if r.Name == req.Name {
			return
		}
	}
	s.result.Required = append(s.result.Required, req)
}

func mutabilityConflict(i int, b block.Block, name, other string) Error {
	return Error{
		Code:    ErrMutabilityConflict,
		Block:   b.Name(),
		Index:   i,
		Message: fmt.Sprintf("variable %q is both referenced and assigned (also exposed by %s)", name, other),
		Fatal:   true,
	}
}

func formatTypes(ts []types.TypeInfo) string {
	if len(ts) == 1 {
		return ts[0].String()
	}
	out := "one of ["
	for i, t := range ts {
		if i > 0 {
			out += " "
		}
		out += t.String()
	}
	return out + "]"
}

func formatExposed(infos []block.ExposedInfo) string {
	ts := make([]types.TypeInfo, len(infos))
	for i, info := range infos {
		ts[i] = info.Type
	}
	return formatTypes(ts)
}
