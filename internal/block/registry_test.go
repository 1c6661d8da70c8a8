package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

type probe struct {
	Base
	setups int
}

func (*probe) Name() string                      { return "Core.Probe" }
func (*probe) InputTypes() []types.TypeInfo      { return []types.TypeInfo{types.AnyType} }
func (*probe) OutputTypes() []types.TypeInfo     { return []types.TypeInfo{types.AnyType} }
func (p *probe) Setup()                          { p.setups++ }
func (*probe) Activate(_ Context, in *variant.Variant) Result {
	return Output(in.Borrow())
}

func TestRegistryCreateByFullNameAndAlias(t *testing.T) {
	r := NewRegistry()
	r.Register("Core.Probe", func() Block { return &probe{} })

	b, err := r.Create("Core.Probe")
	require.NoError(t, err)
	assert.Equal(t, 1, b.(*probe).setups, "Create runs Setup")

	b2, err := r.Create("Probe")
	require.NoError(t, err)
	assert.NotSame(t, b, b2)

	_, err = r.Create("Missing")
	assert.ErrorIs(t, err, ErrUnknownBlock)
	assert.Equal(t, []string{"Core.Probe"}, r.Names())
}

func TestRegistryAliasDoesNotShadow(t *testing.T) {
	r := NewRegistry()
	r.Register("Probe", func() Block { return &probe{} })
	r.Register("Core.Probe", func() Block { return &probe{} })

	full, ok := r.Resolve("Probe")
	require.True(t, ok)
	assert.Equal(t, "Probe", full)
}

func TestBaseParamsOutOfRange(t *testing.T) {
	p := &probe{}
	err := p.SetParam(0, &variant.Variant{})
	assert.ErrorIs(t, err, ErrInvalidParameterIndex)
	_, err = p.GetParam(3)
	assert.ErrorIs(t, err, ErrInvalidParameterIndex)
	assert.ErrorIs(t, ParamIndexError(p, 2), ErrInvalidParameterIndex)
}

func TestTypeKey(t *testing.T) {
	key := TypeKey(0x1234, -1)
	vendor, typ := SplitTypeKey(key)
	assert.Equal(t, int32(0x1234), vendor)
	assert.Equal(t, int32(-1), typ)
	assert.Equal(t, int64(0x1234)<<32|0xffffffff, key)
}

func TestObjectAndEnumTypes(t *testing.T) {
	r := NewRegistry()
	r.RegisterObjectType(1, 2, ObjectInfo{Name: "Point", Codec: CBORCodec[point]{}})
	r.RegisterEnumType(1, 3, EnumInfo{Name: "Mode", Labels: []string{"Off", "On"}})

	info, ok := r.ObjectType(1, 2)
	require.True(t, ok)
	assert.Equal(t, "Point", info.Name)
	_, ok = r.ObjectType(2, 1)
	assert.False(t, ok)

	enum, ok := r.EnumType(1, 3)
	require.True(t, ok)
	assert.Equal(t, "On", enum.Label(1))
	assert.Equal(t, "", enum.Label(2))
}

func TestCallbacksRunInNameOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.RegisterRunLoopCallback("b", func() { order = append(order, "b") })
	r.RegisterRunLoopCallback("a", func() { order = append(order, "a") })
	r.RegisterExitCallback("z", func() { order = append(order, "z") })

	for _, fn := range r.RunLoopCallbacks() {
		fn()
	}
	for _, fn := range r.ExitCallbacks() {
		fn()
	}
	assert.Equal(t, []string{"a", "b", "z"}, order)

	r.UnregisterRunLoopCallback("a")
	assert.Len(t, r.RunLoopCallbacks(), 1)
	r.UnregisterExitCallback("z")
	assert.Empty(t, r.ExitCallbacks())
}

type point struct {
	X, Y int
}

func TestCBORCodecRoundTrip(t *testing.T) {
	codec := CBORCodec[point]{}
	data, err := codec.Encode(&point{X: 3, Y: -4})
	require.NoError(t, err)

	out, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, &point{X: 3, Y: -4}, out)

	_, err = codec.Encode("not a point")
	assert.Error(t, err)
}
