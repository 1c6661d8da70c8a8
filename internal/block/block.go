// Package block defines the operator contract every block implements and
// the registry that resolves blocks, object types and enum types by name
// or id.
//
// A block instance belongs to exactly one chain once attached. Its life
// cycle is:
//
//	Setup → (SetParam)* → Compose → (Activate)* → Cleanup → ... → Destroy
//
// Cleanup releases per-run resources and may run many times; Destroy frees
// the instance once.
package block

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

// ErrInvalidParameterIndex is returned by SetParam and GetParam for an
// index outside the block's parameter list.
var ErrInvalidParameterIndex = errors.New("invalid parameter index")

// ParamIndexError wraps ErrInvalidParameterIndex with block and index.
func ParamIndexError(b Block, index int) error {
	return fmt.Errorf("%s: %w %d (block has %d parameters)",
		b.Name(), ErrInvalidParameterIndex, index, len(b.Parameters()))
}

// ParameterInfo describes one parameter slot.
type ParameterInfo struct {
	Name       string           `json:"name"`
	Help       string           `json:"help,omitempty"`
	ValueTypes []types.TypeInfo `json:"value_types"`
}

// ExposedInfo describes a context variable a block writes (exposed) or
// reads (required).
//
// Mutable marks an assignment: the writer owns the value. An exposure
// with Mutable false is a reference that borrows another block's output.
type ExposedInfo struct {
	Name    string         `json:"name"`
	Help    string         `json:"help,omitempty"`
	Type    types.TypeInfo `json:"type"`
	Mutable bool           `json:"mutable,omitempty"`
	Global  bool           `json:"global,omitempty"`
}

// Block is the operator contract.
type Block interface {
	// Name is the registered full name, e.g. "Core.Const".
	Name() string
	Help() string

	Setup()
	Destroy()

	InputTypes() []types.TypeInfo
	OutputTypes() []types.TypeInfo
	ExposedVariables() []ExposedInfo
	RequiredVariables() []ExposedInfo

	Parameters() []ParameterInfo
	// SetParam deep-copies whatever it retains from value.
	SetParam(index int, value *variant.Variant) error
	// GetParam returns a view of the current parameter value.
	GetParam(index int) (variant.Variant, error)

	// Activate performs one step of work. The returned value stays owned
	// by the block until its next activation or cleanup.
	Activate(ctx Context, input *variant.Variant) Result

	Cleanup()
}

// InstanceData is handed to Compose.
type InstanceData struct {
	Block     Block
	ChainName string
	InputType types.TypeInfo
	// Shared is the exposed-variable environment built so far. Read only.
	Shared map[string][]ExposedInfo
}

// Composer is implemented by blocks whose output type depends on their
// input or environment. Compose may also specialize the block's exposed
// variables; ExposedVariables is read after Compose returns.
type Composer interface {
	Compose(data InstanceData) (types.TypeInfo, error)
}

// Warmer is implemented by blocks that need per-run preparation before
// the first activation, such as resolving variables.
type Warmer interface {
	Warmup(ctx Context) error
}

// ChainRef is the view of a chain that blocks and composition need. It is
// implemented by the engine's chain type and carried in Chain variants.
type ChainRef interface {
	Name() string
	Blocks() []Block
	// Cleanup cleans up every block activated in the chain's current run.
	Cleanup()
}

// Context is the per-run execution state threaded through Activate.
type Context interface {
	// ChainName names the chain currently executing.
	ChainName() string
	// RunID identifies the current run of the root chain.
	RunID() string

	// Suspend yields to the host for at least seconds and returns
	// Continue, or Stop if the chain was cancelled while suspended.
	Suspend(seconds float64) Signal
	// Stopped reports whether a stop was requested.
	Stopped() bool

	// Fail records a runtime error. The block should then return
	// Control(Stop).
	Fail(err error)
	Err() error

	// Variable returns the named variable, searching the current chain,
	// its callers and then globals, creating it in the current chain when
	// missing.
	Variable(name string) *variant.Variant
	// FindVariable looks a variable up without creating it.
	FindVariable(name string) (*variant.Variant, bool)
	// GlobalVariable returns a process-wide variable, creating it.
	GlobalVariable(name string) *variant.Variant

	// RunChain executes a sub-chain inline on the current coroutine.
	RunChain(chain ChainRef, input *variant.Variant) Result

	Logger() *slog.Logger
}

// Base provides no-op defaults for the optional parts of Block. Embed it
// and implement Name, InputTypes, OutputTypes and Activate.
type Base struct{}

func (Base) Help() string                     { return "" }
func (Base) Setup()                           {}
func (Base) Destroy()                         {}
func (Base) Cleanup()                         {}
func (Base) ExposedVariables() []ExposedInfo  { return nil }
func (Base) RequiredVariables() []ExposedInfo { return nil }
func (Base) Parameters() []ParameterInfo      { return nil }

func (Base) SetParam(index int, _ *variant.Variant) error {
	return fmt.Errorf("%w %d", ErrInvalidParameterIndex, index)
}

func (Base) GetParam(index int) (variant.Variant, error) {
	return variant.Variant{}, fmt.Errorf("%w %d", ErrInvalidParameterIndex, index)
}
