package block

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrUnknownBlock is returned when a block name is not registered.
var ErrUnknownBlock = errors.New("unknown block")

// Constructor creates a fresh block instance.
type Constructor func() Block

// ObjectCodec converts an opaque object reference to and from bytes for
// the binary codec.
type ObjectCodec interface {
	Encode(ref any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// ObjectInfo describes a registered opaque object type.
type ObjectInfo struct {
	Name string
	// Codec is optional. Objects without one encode as an empty blob and
	// cannot be decoded.
	Codec ObjectCodec
}

// EnumInfo describes a registered enum type.
type EnumInfo struct {
	Name   string
	Labels []string
}

// Label returns the label for value, or "" if out of range.
func (e EnumInfo) Label(value int32) string {
	if value < 0 || int(value) >= len(e.Labels) {
		return ""
	}
	return e.Labels[value]
}

// TypeKey packs (vendor, type) into the 64-bit id used by registries and
// the binary codec: vendor in the high 32 bits, type in the low 32 bits.
func TypeKey(vendor, typ int32) int64 {
	return int64(vendor)<<32 | int64(uint32(typ))
}

// SplitTypeKey reverses TypeKey.
func SplitTypeKey(key int64) (vendor, typ int32) {
	return int32(key >> 32), int32(uint32(key))
}

// Registry resolves block constructors by name, object and enum types by
// id, and keeps the host's run-loop and exit callbacks.
//
// A registry is populated by loaders before any chain referencing its
// names is composed. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	blocks   map[string]Constructor
	aliases  map[string]string
	objects  map[int64]ObjectInfo
	enums    map[int64]EnumInfo
	runLoop  map[string]func()
	exitHook map[string]func()
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		blocks:   make(map[string]Constructor),
		aliases:  make(map[string]string),
		objects:  make(map[int64]ObjectInfo),
		enums:    make(map[int64]EnumInfo),
		runLoop:  make(map[string]func()),
		exitHook: make(map[string]func()),
	}
}

// Register adds a constructor under its full name. Names in the "Core."
// namespace are also reachable by their short form ("Core.Const" as
// "Const") unless the short name is taken.
func (r *Registry) Register(fullName string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.blocks[fullName] = ctor
	if short, ok := strings.CutPrefix(fullName, "Core."); ok {
		if _, taken := r.blocks[short]; !taken {
			r.aliases[short] = fullName
		}
	}
}

// Resolve returns the full name registered for name or its alias.
func (r *Registry) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.blocks[name]; ok {
		return name, true
	}
	full, ok := r.aliases[name]
	return full, ok
}

// Create constructs and sets up a block by full name or alias.
func (r *Registry) Create(name string) (Block, error) {
	full, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, name)
	}
	r.mu.RLock()
	ctor := r.blocks[full]
	r.mu.RUnlock()

	b := ctor()
	b.Setup()
	return b, nil
}

// Names returns all registered full names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.blocks))
	for n := range r.blocks {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// RegisterObjectType registers an opaque object type.
func (r *Registry) RegisterObjectType(vendor, typ int32, info ObjectInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[TypeKey(vendor, typ)] = info
}

// ObjectType looks up an object type.
func (r *Registry) ObjectType(vendor, typ int32) (ObjectInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.objects[TypeKey(vendor, typ)]
	return info, ok
}

// RegisterEnumType registers an enum type.
func (r *Registry) RegisterEnumType(vendor, typ int32, info EnumInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[TypeKey(vendor, typ)] = info
}

// EnumType looks up an enum type.
func (r *Registry) EnumType(vendor, typ int32) (EnumInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.enums[TypeKey(vendor, typ)]
	return info, ok
}

// RegisterRunLoopCallback installs fn to run once per host loop
// iteration. Registering an existing name replaces it.
func (r *Registry) RegisterRunLoopCallback(name string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runLoop[name] = fn
}

// UnregisterRunLoopCallback removes a run-loop callback.
func (r *Registry) UnregisterRunLoopCallback(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runLoop, name)
}

// RunLoopCallbacks returns the run-loop callbacks ordered by name.
func (r *Registry) RunLoopCallbacks() []func() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return orderedCallbacks(r.runLoop)
}

// RegisterExitCallback installs fn to run once at host shutdown.
func (r *Registry) RegisterExitCallback(name string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exitHook[name] = fn
}

// UnregisterExitCallback removes an exit callback.
func (r *Registry) UnregisterExitCallback(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.exitHook, name)
}

// ExitCallbacks returns the exit callbacks ordered by name.
func (r *Registry) ExitCallbacks() []func() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return orderedCallbacks(r.exitHook)
}

func orderedCallbacks(m map[string]func()) []func() {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	slices.Sort(names)
	fns := make([]func(), len(names))
	for i, n := range names {
		fns[i] = m[n]
	}
	return fns
}
