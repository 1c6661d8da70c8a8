package blocks

import (
	"errors"
	"fmt"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

var errNoName = errors.New("variable name is empty")

var variableParams = []block.ParameterInfo{
	{Name: "Name", Help: "The name of the variable.", ValueTypes: []types.TypeInfo{types.StringType, types.ContextVarType}},
	{Name: "Key", Help: "Table key to read or write; the variable becomes a table.", ValueTypes: []types.TypeInfo{types.NoneType, types.StringType}},
	{Name: "Global", Help: "Whether the variable is shared by every chain of the engine.", ValueTypes: boolTypes},
}

// variable is the state shared by the blocks that name a context
// variable, optionally a key inside a table variable.
type variable struct {
	name   variant.Variant
	key    variant.Variant
	global bool
	target *variant.Variant
}

func (v *variable) setParam(index int, value *variant.Variant) error {
	switch index {
	case 0:
		variant.Clone(&v.name, value)
	case 1:
		variant.Clone(&v.key, value)
	case 2:
		v.global = value.Bool()
	default:
		return badIndex(index)
	}
	v.target = nil
	return nil
}

func (v *variable) getParam(index int) (variant.Variant, error) {
	switch index {
	case 0:
		return v.name.Borrow(), nil
	case 1:
		return v.key.Borrow(), nil
	case 2:
		return variant.NewBool(v.global), nil
	}
	return variant.Variant{}, badIndex(index)
}

func (v *variable) varName() string { return v.name.Text() }
func (v *variable) keyed() bool     { return v.key.Kind() == variant.String }

func (v *variable) destroy() {
	variant.Destroy(&v.name)
	variant.Destroy(&v.key)
	v.target = nil
}

func (v *variable) check() error {
	if v.varName() == "" {
		return errNoName
	}
	return nil
}

// typeFor is the exposed type when values of t are written.
func (v *variable) typeFor(t types.TypeInfo) types.TypeInfo {
	if v.keyed() {
		return types.TableOf([]string{v.key.Text()}, []types.TypeInfo{t})
	}
	return t
}

func (v *variable) exposure(t types.TypeInfo, mutable bool) block.ExposedInfo {
	return block.ExposedInfo{Name: v.varName(), Type: v.typeFor(t), Mutable: mutable, Global: v.global}
}

func (v *variable) resolve(ctx block.Context) *variant.Variant {
	if v.target == nil {
		if v.global {
			v.target = ctx.GlobalVariable(v.varName())
		} else {
			v.target = ctx.Variable(v.varName())
		}
	}
	return v.target
}

// slot returns the value to write: the variable itself, or its entry
// under Key. Table entries move as the table grows, so they are looked
// up on every write.
func (v *variable) slot(ctx block.Context) *variant.Variant {
	target := v.resolve(ctx)
	if !v.keyed() {
		return target
	}
	if target.Kind() != variant.Table {
		target.MakeTable()
	}
	return target.Map().Slot(v.key.Text())
}

// checkExisting validates a write of t against earlier exposures of the
// same name.
func (v *variable) checkExisting(shared map[string][]block.ExposedInfo, t types.TypeInfo) error {
	for _, info := range shared[v.varName()] {
		isTable := info.Type.Kind == variant.Table
		switch {
		case v.keyed() && !isTable:
			return fmt.Errorf("variable %q is not a table", v.varName())
		case !v.keyed() && isTable && len(info.Type.Types) > 0 && t.Kind != variant.Table:
			return fmt.Errorf("variable %q is a table", v.varName())
		case !v.keyed() && !isTable && !types.Equal(info.Type, t):
			return fmt.Errorf("variable %q already holds %s, cannot write %s", v.varName(), info.Type, t)
		}
	}
	return nil
}

// Set copies its input into a variable it owns and passes the input on.
type Set struct {
	block.Base
	variable
	exposed []block.ExposedInfo
}

func (b *Set) Name() string                      { return "Core.Set" }
func (b *Set) InputTypes() []types.TypeInfo      { return anyTypes }
func (b *Set) OutputTypes() []types.TypeInfo     { return anyTypes }
func (b *Set) Parameters() []block.ParameterInfo { return variableParams }
func (b *Set) ExposedVariables() []block.ExposedInfo {
	return b.exposed
}

func (b *Set) SetParam(index int, v *variant.Variant) error { return b.setParam(index, v) }
func (b *Set) GetParam(index int) (variant.Variant, error)  { return b.getParam(index) }
func (b *Set) Destroy()                                     { b.destroy() }
func (b *Set) Cleanup()                                     { b.target = nil }

func (b *Set) Compose(data block.InstanceData) (types.TypeInfo, error) {
	if err := b.check(); err != nil {
		return types.TypeInfo{}, err
	}
	if err := b.checkExisting(data.Shared, data.InputType); err != nil {
		return types.TypeInfo{}, err
	}
	b.exposed = []block.ExposedInfo{b.exposure(data.InputType, true)}
	return data.InputType, nil
}

func (b *Set) Activate(ctx block.Context, input *variant.Variant) block.Result {
	variant.Clone(b.slot(ctx), input)
	return block.Output(input.Borrow())
}

// Ref points a variable at its input without copying. The variable is a
// view that stays valid until the producing block activates again, and
// is reset when the chain is cleaned up.
type Ref struct {
	block.Base
	variable
	exposed []block.ExposedInfo
}

func (b *Ref) Name() string                      { return "Core.Ref" }
func (b *Ref) InputTypes() []types.TypeInfo      { return anyTypes }
func (b *Ref) OutputTypes() []types.TypeInfo     { return anyTypes }
func (b *Ref) Parameters() []block.ParameterInfo { return variableParams }
func (b *Ref) ExposedVariables() []block.ExposedInfo {
	return b.exposed
}

func (b *Ref) SetParam(index int, v *variant.Variant) error { return b.setParam(index, v) }
func (b *Ref) GetParam(index int) (variant.Variant, error)  { return b.getParam(index) }
func (b *Ref) Destroy()                                     { b.destroy() }

func (b *Ref) Compose(data block.InstanceData) (types.TypeInfo, error) {
	if err := b.check(); err != nil {
		return types.TypeInfo{}, err
	}
	if err := b.checkExisting(data.Shared, data.InputType); err != nil {
		return types.TypeInfo{}, err
	}
	b.exposed = []block.ExposedInfo{b.exposure(data.InputType, false)}
	return data.InputType, nil
}

func (b *Ref) Activate(ctx block.Context, input *variant.Variant) block.Result {
	slot := b.slot(ctx)
	variant.Destroy(slot)
	*slot = input.Borrow()
	return block.Output(input.Borrow())
}

func (b *Ref) Cleanup() {
	if b.target == nil {
		return
	}
	if b.keyed() {
		if m := b.target.Map(); m != nil {
			m.Delete(b.key.Text())
		}
	} else {
		*b.target = variant.Variant{}
	}
	b.target = nil
}

// Update overwrites a variable exposed earlier, keeping its type.
type Update struct {
	block.Base
	variable
	required []block.ExposedInfo
}

func (b *Update) Name() string                      { return "Core.Update" }
func (b *Update) InputTypes() []types.TypeInfo      { return anyTypes }
func (b *Update) OutputTypes() []types.TypeInfo     { return anyTypes }
func (b *Update) Parameters() []block.ParameterInfo { return variableParams }
func (b *Update) RequiredVariables() []block.ExposedInfo {
	return b.required
}

func (b *Update) SetParam(index int, v *variant.Variant) error { return b.setParam(index, v) }
func (b *Update) GetParam(index int) (variant.Variant, error)  { return b.getParam(index) }
func (b *Update) Destroy()                                     { b.destroy() }
func (b *Update) Cleanup()                                     { b.target = nil }

func (b *Update) Compose(data block.InstanceData) (types.TypeInfo, error) {
	if err := b.check(); err != nil {
		return types.TypeInfo{}, err
	}
	for _, info := range data.Shared[b.varName()] {
		if b.keyed() {
			for i, key := range info.Type.Keys {
				if key == b.key.Text() && i < len(info.Type.Types) && !types.Equal(info.Type.Types[i], data.InputType) {
					return types.TypeInfo{}, fmt.Errorf("update would change %s[%q] from %s to %s",
						b.varName(), key, info.Type.Types[i], data.InputType)
				}
			}
		} else if info.Type.Kind != variant.Table && !types.Equal(info.Type, data.InputType) {
			return types.TypeInfo{}, fmt.Errorf("update would change %q from %s to %s", b.varName(), info.Type, data.InputType)
		}
	}
	b.required = []block.ExposedInfo{b.exposure(data.InputType, true)}
	return data.InputType, nil
}

func (b *Update) Activate(ctx block.Context, input *variant.Variant) block.Result {
	variant.Clone(b.slot(ctx), input)
	return block.Output(input.Borrow())
}

// Get outputs a variable, or its Default when the variable, or the key
// inside it, is missing.
type Get struct {
	block.Base
	variable
	def      variant.Variant
	required []block.ExposedInfo
}

var getParams = append(append([]block.ParameterInfo(nil), variableParams...), block.ParameterInfo{
	Name: "Default", Help: "Output when the variable is not set; also used to infer the output type.", ValueTypes: anyTypes,
})

func (b *Get) Name() string                      { return "Core.Get" }
func (b *Get) InputTypes() []types.TypeInfo      { return noneTypes }
func (b *Get) OutputTypes() []types.TypeInfo     { return anyTypes }
func (b *Get) Parameters() []block.ParameterInfo { return getParams }
func (b *Get) RequiredVariables() []block.ExposedInfo {
	return b.required
}

func (b *Get) SetParam(index int, v *variant.Variant) error {
	if index == len(variableParams) {
		variant.Clone(&b.def, v)
		return nil
	}
	return b.setParam(index, v)
}

func (b *Get) GetParam(index int) (variant.Variant, error) {
	if index == len(variableParams) {
		return b.def.Borrow(), nil
	}
	return b.getParam(index)
}

func (b *Get) Destroy() {
	b.destroy()
	variant.Destroy(&b.def)
}

func (b *Get) Compose(data block.InstanceData) (types.TypeInfo, error) {
	if err := b.check(); err != nil {
		return types.TypeInfo{}, err
	}
	b.required = nil
	infos := data.Shared[b.varName()]
	for i := len(infos) - 1; i >= 0; i-- {
		t := infos[i].Type
		if !b.keyed() {
			return t, nil
		}
		for j, key := range t.Keys {
			if key == b.key.Text() && j < len(t.Types) {
				return t.Types[j], nil
			}
		}
	}
	if !b.def.IsNone() {
		return types.Derive(&b.def), nil
	}
	if len(infos) == 0 {
		b.required = []block.ExposedInfo{{Name: b.varName(), Type: types.AnyType, Global: b.global}}
	}
	return types.AnyType, nil
}

func (b *Get) Activate(ctx block.Context, _ *variant.Variant) block.Result {
	v, ok := ctx.FindVariable(b.varName())
	if ok && b.keyed() {
		v, ok = v.Map().Get(b.key.Text())
	}
	if !ok || v.IsNone() {
		return block.Output(b.def.Borrow())
	}
	return block.Output(v.Borrow())
}

// Count outputs the length of a sequence, table, string or byte variable.
type Count struct {
	block.Base
	name variant.Variant
}

var countParams = []block.ParameterInfo{
	{Name: "Name", Help: "The variable to count.", ValueTypes: []types.TypeInfo{types.StringType, types.ContextVarType}},
}

func (b *Count) Name() string                      { return "Core.Count" }
func (b *Count) InputTypes() []types.TypeInfo      { return anyTypes }
func (b *Count) OutputTypes() []types.TypeInfo     { return []types.TypeInfo{types.IntType} }
func (b *Count) Parameters() []block.ParameterInfo { return countParams }
func (b *Count) Destroy()                          { variant.Destroy(&b.name) }

func (b *Count) RequiredVariables() []block.ExposedInfo {
	if b.name.Text() == "" {
		return nil
	}
	return []block.ExposedInfo{{Name: b.name.Text(), Type: types.AnyType}}
}

func (b *Count) SetParam(index int, v *variant.Variant) error {
	if index != 0 {
		return badIndex(index)
	}
	variant.Clone(&b.name, v)
	return nil
}

func (b *Count) GetParam(index int) (variant.Variant, error) {
	if index != 0 {
		return variant.Variant{}, badIndex(index)
	}
	return b.name.Borrow(), nil
}

func (b *Count) Activate(ctx block.Context, _ *variant.Variant) block.Result {
	v, ok := ctx.FindVariable(b.name.Text())
	if !ok {
		return block.Output(variant.NewInt(0))
	}
	return block.Output(variant.NewInt(int64(v.Len())))
}
