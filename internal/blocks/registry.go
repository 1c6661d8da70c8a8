package blocks

import "github.com/roach88/chainflow/internal/block"

var constructors = map[string]block.Constructor{
	"Core.Const":    func() block.Block { return &Const{} },
	"Core.Set":      func() block.Block { return &Set{} },
	"Core.Ref":      func() block.Block { return &Ref{} },
	"Core.Update":   func() block.Block { return &Update{} },
	"Core.Get":      func() block.Block { return &Get{} },
	"Core.Count":    func() block.Block { return &Count{} },
	"Core.Pause":    func() block.Block { return &Pause{} },
	"Core.Stop":     func() block.Block { return &signalBlock{name: "Core.Stop", signal: block.Stop} },
	"Core.Restart":  func() block.Block { return &signalBlock{name: "Core.Restart", signal: block.Restart} },
	"Core.Return":   func() block.Block { return &signalBlock{name: "Core.Return", signal: block.Return} },
	"Core.Rebase":   func() block.Block { return &signalBlock{name: "Core.Rebase", signal: block.Rebase} },
	"Core.Fail":     func() block.Block { return &Fail{} },
	"Core.Do":       func() block.Block { return &Do{} },
	"Core.Log":      func() block.Block { return &Log{} },
	"Core.RunInfo":  func() block.Block { return &RunInfoBlock{} },
	"Core.Is":       func() block.Block { return newCompare("Core.Is", opEqual) },
	"Core.IsNot":    func() block.Block { return newCompare("Core.IsNot", opNotEqual) },
	"Core.IsMore":   func() block.Block { return newCompare("Core.IsMore", opMore) },
	"Core.IsLess":   func() block.Block { return newCompare("Core.IsLess", opLess) },
	"Math.Add":      func() block.Block { return newMath("Math.Add", opAdd) },
	"Math.Subtract": func() block.Block { return newMath("Math.Subtract", opSubtract) },
	"Math.Multiply": func() block.Block { return newMath("Math.Multiply", opMultiply) },
	"Math.Divide":   func() block.Block { return newMath("Math.Divide", opDivide) },
}

// Register adds the standard blocks and object types to r.
func Register(r *block.Registry) {
	for name, ctor := range constructors {
		r.Register(name, ctor)
	}
	registerObjectTypes(r)
}

// NewRegistry returns a registry holding the standard blocks.
func NewRegistry() *block.Registry {
	r := block.NewRegistry()
	Register(r)
	return r
}
