package compose

import "fmt"

// Composition error codes (C200-C299)
const (
	ErrInputMismatch      = "C200" // previous output not accepted by block input
	ErrComposeFailed      = "C201" // block Compose returned an error
	ErrMutabilityConflict = "C202" // variable both referenced and assigned
	ErrMissingVariable    = "C203" // required variable not exposed (warning)
	ErrVariableMismatch   = "C204" // required variable exposed with wrong type
	ErrParamMismatch      = "C205" // literal not accepted by parameter slot
	ErrParamIndex         = "C206" // parameter index out of range
)

// Error is a composition diagnostic carrying the offending block.
// Warnings have Fatal false and never abort composition.
type Error struct {
	Code    string `json:"code"`
	Block   string `json:"block"`
	Index   int    `json:"index"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// Error implements the error interface.
func (e Error) Error() string {
	level := "warning"
	if e.Fatal {
		level = "error"
	}
	return fmt.Sprintf("[%s] %s: block %d (%s): %s", e.Code, level, e.Index, e.Block, e.Message)
}

// Callback receives every diagnostic as it is raised.
type Callback func(Error)
