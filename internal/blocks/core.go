package blocks

import (
	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

var (
	anyTypes  = []types.TypeInfo{types.AnyType}
	noneTypes = []types.TypeInfo{types.NoneType}
	boolTypes = []types.TypeInfo{types.BoolType}
)

// Const outputs its Value parameter, ignoring its input.
type Const struct {
	block.Base
	value variant.Variant
}

var constParams = []block.ParameterInfo{
	{Name: "Value", Help: "The constant value to insert in the chain.", ValueTypes: anyTypes},
}

func (b *Const) Name() string                      { return "Core.Const" }
func (b *Const) Help() string                      { return "Outputs a constant value." }
func (b *Const) InputTypes() []types.TypeInfo      { return noneTypes }
func (b *Const) OutputTypes() []types.TypeInfo     { return anyTypes }
func (b *Const) Parameters() []block.ParameterInfo { return constParams }
func (b *Const) Destroy()                          { variant.Destroy(&b.value) }

func (b *Const) SetParam(index int, v *variant.Variant) error {
	if index != 0 {
		return badIndex(index)
	}
	variant.Clone(&b.value, v)
	return nil
}

func (b *Const) GetParam(index int) (variant.Variant, error) {
	if index != 0 {
		return variant.Variant{}, badIndex(index)
	}
	return b.value.Borrow(), nil
}

func (b *Const) Compose(block.InstanceData) (types.TypeInfo, error) {
	return types.Derive(&b.value), nil
}

func (b *Const) Activate(block.Context, *variant.Variant) block.Result {
	return block.Output(b.value.Borrow())
}

// Log writes its input to the run's logger and passes it on.
type Log struct {
	block.Base
	prefix variant.Variant
}

var logParams = []block.ParameterInfo{
	{Name: "Prefix", Help: "Message logged with the value.", ValueTypes: []types.TypeInfo{types.NoneType, types.StringType}},
}

func (b *Log) Name() string                      { return "Core.Log" }
func (b *Log) InputTypes() []types.TypeInfo      { return anyTypes }
func (b *Log) OutputTypes() []types.TypeInfo     { return anyTypes }
func (b *Log) Parameters() []block.ParameterInfo { return logParams }
func (b *Log) Destroy()                          { variant.Destroy(&b.prefix) }

func (b *Log) SetParam(index int, v *variant.Variant) error {
	if index != 0 {
		return badIndex(index)
	}
	variant.Clone(&b.prefix, v)
	return nil
}

func (b *Log) GetParam(index int) (variant.Variant, error) {
	if index != 0 {
		return variant.Variant{}, badIndex(index)
	}
	return b.prefix.Borrow(), nil
}

func (b *Log) Activate(ctx block.Context, input *variant.Variant) block.Result {
	msg := b.prefix.Text()
	if msg == "" {
		msg = "log"
	}
	ctx.Logger().Info(msg, "value", input.String())
	return block.Output(input.Borrow())
}
