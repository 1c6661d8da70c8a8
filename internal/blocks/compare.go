package blocks

import (
	"fmt"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

type compareOp uint8

const (
	opEqual compareOp = iota
	opNotEqual
	opMore
	opLess
)

func (op compareOp) eval(a, b *variant.Variant) bool {
	switch op {
	case opEqual:
		return variant.Equal(a, b)
	case opNotEqual:
		return !variant.Equal(a, b)
	case opMore:
		return variant.Compare(a, b) > 0
	case opLess:
		return variant.Compare(a, b) < 0
	}
	return false
}

// compare tests its input against Value and outputs a Bool.
type compare struct {
	block.Base
	name  string
	op    compareOp
	value paramVar
}

func newCompare(name string, op compareOp) *compare {
	return &compare{name: name, op: op}
}

var compareParams = []block.ParameterInfo{
	{Name: "Value", Help: "The value to test against.", ValueTypes: anyTypes},
}

func (b *compare) Name() string                      { return b.name }
func (b *compare) InputTypes() []types.TypeInfo      { return anyTypes }
func (b *compare) OutputTypes() []types.TypeInfo     { return boolTypes }
func (b *compare) Parameters() []block.ParameterInfo { return compareParams }
func (b *compare) Destroy()                          { b.value.destroy() }
func (b *compare) Cleanup()                          { b.value.cleanup() }

func (b *compare) RequiredVariables() []block.ExposedInfo {
	if !b.value.isVariable() {
		return nil
	}
	return []block.ExposedInfo{{Name: b.value.variableName(), Type: types.AnyType}}
}

func (b *compare) SetParam(index int, v *variant.Variant) error {
	if index != 0 {
		return badIndex(index)
	}
	b.value.set(v)
	return nil
}

func (b *compare) GetParam(index int) (variant.Variant, error) {
	if index != 0 {
		return variant.Variant{}, badIndex(index)
	}
	return b.value.view(), nil
}

// Compose rejects ordering a literal of another kind than the input,
// which would always compare by kind.
func (b *compare) Compose(data block.InstanceData) (types.TypeInfo, error) {
	if b.op == opMore || b.op == opLess {
		in, lit := data.InputType.Kind, b.value.value.Kind()
		if !b.value.isVariable() && in != variant.Any && in != variant.None && lit != in {
			return types.TypeInfo{}, fmt.Errorf("cannot order %s against %s", data.InputType, types.Derive(&b.value.value))
		}
	}
	return types.BoolType, nil
}

func (b *compare) Activate(ctx block.Context, input *variant.Variant) block.Result {
	return block.Output(variant.NewBool(b.op.eval(input, b.value.get(ctx))))
}
