package blocks

import (
	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// Object and enum ids of the standard library.
const (
	CoreVendor    int32 = 0x63666c77 // "cflw"
	RunInfoTypeID int32 = 0x72756e69 // "runi"
)

// RunInfoType is the type of the objects Core.RunInfo outputs.
var RunInfoType = types.ObjectOf(CoreVendor, RunInfoTypeID)

// RunInfo records which chain and run produced it. It is stored as an
// opaque object and encoded as CBOR.
type RunInfo struct {
	Chain string `cbor:"1,keyasint"`
	RunID string `cbor:"2,keyasint"`
}

// RunInfoOf returns the RunInfo held by v, if any.
func RunInfoOf(v *variant.Variant) (*RunInfo, bool) {
	if v.Kind() != variant.Object {
		return nil, false
	}
	if vendor, typ := v.TypeID(); vendor != CoreVendor || typ != RunInfoTypeID {
		return nil, false
	}
	info, ok := v.Ref().(*RunInfo)
	return info, ok
}

// RunInfoBlock ignores its input and outputs a RunInfo for the current
// chain and run.
type RunInfoBlock struct {
	block.Base
}

func (b *RunInfoBlock) Name() string                  { return "Core.RunInfo" }
func (b *RunInfoBlock) InputTypes() []types.TypeInfo  { return anyTypes }
func (b *RunInfoBlock) OutputTypes() []types.TypeInfo { return []types.TypeInfo{RunInfoType} }

func (b *RunInfoBlock) Activate(ctx block.Context, _ *variant.Variant) block.Result {
	info := &RunInfo{Chain: ctx.ChainName(), RunID: ctx.RunID()}
	return block.Output(variant.NewObject(CoreVendor, RunInfoTypeID, info))
}

func registerObjectTypes(r *block.Registry) {
	r.RegisterObjectType(CoreVendor, RunInfoTypeID, block.ObjectInfo{
		Name:  "Core.RunInfo",
		Codec: block.CBORCodec[RunInfo]{},
	})
}
