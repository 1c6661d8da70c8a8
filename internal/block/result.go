package block

import "github.com/roach88/chainflow/internal/variant"

// Signal is the control outcome of an activation.
type Signal uint8

const (
	// Continue passes Value to the next block.
	Continue Signal = iota
	// Stop terminates the chain and every chain that called it.
	Stop
	// Restart re-runs the chain from its first block with the original
	// chain input.
	Restart
	// Return terminates only the current chain, yielding the value that
	// flowed into the returning block.
	Return
	// Rebase continues with the chain's original input instead of the
	// previous block's output.
	Rebase
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "Continue"
	case Stop:
		return "Stop"
	case Restart:
		return "Restart"
	case Return:
		return "Return"
	case Rebase:
		return "Rebase"
	}
	return "Signal(?)"
}

// Result is what Activate returns: either a value to continue with, or a
// control signal.
type Result struct {
	Signal Signal
	Value  variant.Variant
}

// Output continues with v.
func Output(v variant.Variant) Result {
	return Result{Signal: Continue, Value: v}
}

// Control returns a bare control signal.
func Control(s Signal) Result {
	return Result{Signal: s}
}
