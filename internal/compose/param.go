package compose

import (
	"errors"
	"fmt"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// ValidateSetParam checks that value may be assigned to parameter index
// of b. Literals are matched in parameter context, so None is not a
// wildcard and container element types are checked. A sequence literal
// that does not match as a whole is accepted when each of its elements
// fits the slot's element types.
func ValidateSetParam(b block.Block, index int, value *variant.Variant) error {
	params := b.Parameters()
	if index < 0 || index >= len(params) {
		return Error{
			Code:    ErrParamIndex,
			Block:   b.Name(),
			Index:   index,
			Message: block.ParamIndexError(b, index).Error(),
			Fatal:   true,
		}
	}
	param := params[index]
	if literalMatches(value, param.ValueTypes) {
		return nil
	}
	return Error{
		Code:  ErrParamMismatch,
		Block: b.Name(),
		Index: index,
		Message: fmt.Sprintf("parameter %q expects %s, got %s",
			param.Name, formatTypes(param.ValueTypes), types.Derive(value)),
		Fatal: true,
	}
}

func literalMatches(value *variant.Variant, accepted []types.TypeInfo) bool {
	derived := types.Derive(value)
	if types.MatchAny(derived, accepted, true, true) {
		return true
	}
	if value.Kind() != variant.Seq {
		return false
	}
	for _, slot := range accepted {
		if slot.Kind != variant.Seq {
			continue
		}
		if len(slot.SeqTypes) == 0 {
			return true
		}
		ok := true
		for i := range value.Seq() {
			if !literalMatches(&value.Seq()[i], slot.SeqTypes) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// SetParam validates value and then assigns it.
func SetParam(b block.Block, index int, value *variant.Variant) error {
	if err := ValidateSetParam(b, index, value); err != nil {
		return err
	}
	if err := b.SetParam(index, value); err != nil {
		return fmt.Errorf("%s: set parameter %d: %w", b.Name(), index, err)
	}
	return nil
}

// IsParamIndexError reports whether err came from an out-of-range
// parameter index.
func IsParamIndexError(err error) bool {
	var ce Error
	if errors.As(err, &ce) && ce.Code == ErrParamIndex {
		return true
	}
	return errors.Is(err, block.ErrInvalidParameterIndex)
}
