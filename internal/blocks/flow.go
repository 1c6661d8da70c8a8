package blocks

import (
	"errors"
	"fmt"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// ErrFailed wraps the message of a Fail block.
var ErrFailed = errors.New("chain failed")

// Pause suspends the chain for Time seconds, or until the next tick when
// Time is None, and then passes its input on.
type Pause struct {
	block.Base
	time paramVar
}

var pauseParams = []block.ParameterInfo{
	{Name: "Time", Help: "Seconds to pause; fractional values are allowed.", ValueTypes: []types.TypeInfo{
		types.NoneType, types.FloatType, types.IntType, types.ContextVarType,
	}},
}

func (b *Pause) Name() string                      { return "Core.Pause" }
func (b *Pause) InputTypes() []types.TypeInfo      { return anyTypes }
func (b *Pause) OutputTypes() []types.TypeInfo     { return anyTypes }
func (b *Pause) Parameters() []block.ParameterInfo { return pauseParams }
func (b *Pause) Destroy()                          { b.time.destroy() }
func (b *Pause) Cleanup()                          { b.time.cleanup() }

func (b *Pause) RequiredVariables() []block.ExposedInfo {
	if !b.time.isVariable() {
		return nil
	}
	return []block.ExposedInfo{{Name: b.time.variableName(), Type: types.AnyType}}
}

func (b *Pause) SetParam(index int, v *variant.Variant) error {
	if index != 0 {
		return badIndex(index)
	}
	b.time.set(v)
	return nil
}

func (b *Pause) GetParam(index int) (variant.Variant, error) {
	if index != 0 {
		return variant.Variant{}, badIndex(index)
	}
	return b.time.view(), nil
}

func (b *Pause) Activate(ctx block.Context, input *variant.Variant) block.Result {
	var seconds float64
	switch t := b.time.get(ctx); t.Kind() {
	case variant.Int:
		seconds = float64(t.Int())
	case variant.Float:
		seconds = t.Float()
	}
	if ctx.Suspend(seconds) == block.Stop {
		return block.Control(block.Stop)
	}
	return block.Output(input.Borrow())
}

// signalBlock raises a fixed control signal: Stop, Restart, Return or
// Rebase.
type signalBlock struct {
	block.Base
	name   string
	signal block.Signal
}

func (b *signalBlock) Name() string                  { return b.name }
func (b *signalBlock) InputTypes() []types.TypeInfo  { return anyTypes }
func (b *signalBlock) OutputTypes() []types.TypeInfo { return anyTypes }

func (b *signalBlock) Help() string {
	switch b.signal {
	case block.Stop:
		return "Stops the chain and every chain that called it."
	case block.Restart:
		return "Runs the chain again from its first block with the chain input."
	case block.Return:
		return "Ends the current chain with its input as the chain output."
	case block.Rebase:
		return "Continues with the chain input instead of this block's input."
	}
	return ""
}

func (b *signalBlock) Activate(block.Context, *variant.Variant) block.Result {
	return block.Control(b.signal)
}

// Fail stops the chain with its input string as the error message.
type Fail struct {
	block.Base
}

func (b *Fail) Name() string                  { return "Core.Fail" }
func (b *Fail) InputTypes() []types.TypeInfo  { return []types.TypeInfo{types.StringType} }
func (b *Fail) OutputTypes() []types.TypeInfo { return noneTypes }

func (b *Fail) Activate(ctx block.Context, input *variant.Variant) block.Result {
	ctx.Fail(fmt.Errorf("%w: %s", ErrFailed, input.Text()))
	return block.Control(block.Stop)
}

// Do runs another chain inline with its input and outputs that chain's
// output.
type Do struct {
	block.Base
	chain block.ChainRef
}

var doParams = []block.ParameterInfo{
	{Name: "Chain", Help: "The chain to run.", ValueTypes: []types.TypeInfo{types.NoneType, types.ChainType}},
}

func (b *Do) Name() string                      { return "Core.Do" }
func (b *Do) InputTypes() []types.TypeInfo      { return anyTypes }
func (b *Do) OutputTypes() []types.TypeInfo     { return anyTypes }
func (b *Do) Parameters() []block.ParameterInfo { return doParams }

func (b *Do) SetParam(index int, v *variant.Variant) error {
	if index != 0 {
		return badIndex(index)
	}
	if v.IsNone() {
		b.chain = nil
		return nil
	}
	ref, ok := v.Ref().(block.ChainRef)
	if !ok {
		return fmt.Errorf("do: %s is not a chain", v.Kind())
	}
	b.chain = ref
	return nil
}

func (b *Do) GetParam(index int) (variant.Variant, error) {
	if index != 0 {
		return variant.Variant{}, badIndex(index)
	}
	if b.chain == nil {
		return variant.Variant{}, nil
	}
	return variant.NewChainRef(b.chain), nil
}

func (b *Do) Compose(block.InstanceData) (types.TypeInfo, error) {
	if b.chain == nil {
		return types.TypeInfo{}, errors.New("no chain to run")
	}
	return types.AnyType, nil
}

func (b *Do) Activate(ctx block.Context, input *variant.Variant) block.Result {
	return ctx.RunChain(b.chain, input)
}
