package blocks

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// ErrDivideByZero is raised by Math.Divide on an integer zero divisor.
var ErrDivideByZero = errors.New("integer division by zero")

type mathOp uint8

const (
	opAdd mathOp = iota
	opSubtract
	opMultiply
	opDivide
)

func (op mathOp) ints(a, b int64) (int64, error) {
	switch op {
	case opAdd:
		return a + b, nil
	case opSubtract:
		return a - b, nil
	case opMultiply:
		return a * b, nil
	}
	if b == 0 {
		return 0, ErrDivideByZero
	}
	return a / b, nil
}

func (op mathOp) floats(a, b float64) float64 {
	switch op {
	case opAdd:
		return a + b
	case opSubtract:
		return a - b
	case opMultiply:
		return a * b
	}
	return a / b
}

// apply computes a op b lane by lane into dst. A single-lane operand is
// applied to every lane of a.
func (op mathOp) apply(dst, a, b *variant.Variant) error {
	ta, ok := variant.VectorTypeOf(a.Kind())
	if !ok {
		return fmt.Errorf("%s is not numeric", a.Kind())
	}
	tb, ok := variant.VectorTypeOf(b.Kind())
	if !ok || !operandFits(ta, a.Kind(), tb, b.Kind()) {
		return fmt.Errorf("operand %s does not fit input %s", b.Kind(), a.Kind())
	}
	variant.Clone(dst, a)
	for i := 0; i < ta.Dimension; i++ {
		j := i
		if tb.Dimension == 1 {
			j = 0
		}
		if ta.IsInteger {
			n, err := op.ints(a.LaneInt(i), b.LaneInt(j))
			if err != nil {
				return err
			}
			dst.SetLaneInt(i, n)
		} else {
			dst.SetLaneFloat(i, op.floats(a.LaneFloat(i), b.LaneFloat(j)))
		}
	}
	return nil
}

// operandFits reports whether an operand can be applied to an input: the
// same kind, or a single lane of the same number family. Integer and
// float lanes never mix.
func operandFits(in variant.VectorTraits, inKind variant.Kind, op variant.VectorTraits, opKind variant.Kind) bool {
	if opKind == inKind {
		return true
	}
	return op.Dimension == 1 && op.IsInteger == in.IsInteger
}

// arith applies a math operation between its input and Operand. A
// sequence input has the operation applied to each element.
type arith struct {
	block.Base
	name     string
	op       mathOp
	operand  paramVar
	output   variant.Variant
	required []block.ExposedInfo
}

func newMath(name string, op mathOp) *arith {
	return &arith{name: name, op: op}
}

var (
	mathInputTypes = append(slices.Clone(types.NumericTypes), types.AnySeqType)
	mathParams     = []block.ParameterInfo{
		{Name: "Operand", Help: "The right-hand side of the operation.", ValueTypes: append(slices.Clone(types.NumericTypes), types.ContextVarType)},
	}
)

func (b *arith) Name() string                           { return b.name }
func (b *arith) InputTypes() []types.TypeInfo           { return mathInputTypes }
func (b *arith) OutputTypes() []types.TypeInfo          { return mathInputTypes }
func (b *arith) Parameters() []block.ParameterInfo      { return mathParams }
func (b *arith) RequiredVariables() []block.ExposedInfo { return b.required }
func (b *arith) Cleanup()                               { b.operand.cleanup() }

func (b *arith) Destroy() {
	b.operand.destroy()
	variant.Destroy(&b.output)
}

func (b *arith) SetParam(index int, v *variant.Variant) error {
	if index != 0 {
		return badIndex(index)
	}
	b.operand.set(v)
	return nil
}

func (b *arith) GetParam(index int) (variant.Variant, error) {
	if index != 0 {
		return variant.Variant{}, badIndex(index)
	}
	return b.operand.view(), nil
}

func (b *arith) Compose(data block.InstanceData) (types.TypeInfo, error) {
	in := data.InputType
	elem := in
	if in.Kind == variant.Seq {
		if len(in.SeqTypes) != 1 {
			return in, nil
		}
		elem = in.SeqTypes[0]
	}
	b.required = nil
	if b.operand.isVariable() {
		b.required = []block.ExposedInfo{{Name: b.operand.variableName(), Type: elem}}
		return in, nil
	}
	if elem.Kind == variant.Any || elem.Kind == variant.None {
		return in, nil
	}
	opKind := b.operand.value.Kind()
	opTraits, _ := variant.VectorTypeOf(opKind)
	inTraits, numeric := variant.VectorTypeOf(elem.Kind)
	if numeric && !operandFits(inTraits, elem.Kind, opTraits, opKind) {
		return types.TypeInfo{}, fmt.Errorf("operand %s does not fit input %s", opKind, elem)
	}
	return in, nil
}

func (b *arith) Activate(ctx block.Context, input *variant.Variant) block.Result {
	operand := b.operand.get(ctx)
	var err error
	if input.Kind() == variant.Seq {
		elems := input.Seq()
		out := b.output.MakeSeq(len(elems))
		for i := range elems {
			if err = b.op.apply(&out[i], &elems[i], operand); err != nil {
				break
			}
		}
	} else {
		err = b.op.apply(&b.output, input, operand)
	}
	if err != nil {
		ctx.Fail(fmt.Errorf("%s: %w", b.name, err))
		return block.Control(block.Stop)
	}
	return block.Output(b.output.Borrow())
}
