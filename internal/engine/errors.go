package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while a chain runs.
//
// Runtime errors include:
//   - Block failure: a block called Context.Fail and returned Stop
//   - Block panic: a block panicked during activation or warmup
//   - Quota exceeded: a chain restarted too many times without yielding
//   - Chain cycle: a chain tried to run itself as a sub-chain
//
// A runtime error moves the chain to Failed. It never crosses into other
// chains except callers of the failing sub-chain.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Chain names the chain that was executing.
	Chain string

	// Block names the block that was executing, if any.
	Block string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeBlockFailed indicates a block reported an error through its context.
	ErrCodeBlockFailed RuntimeErrorCode = "BLOCK_FAILED"

	// ErrCodeBlockPanic indicates a block panicked.
	ErrCodeBlockPanic RuntimeErrorCode = "BLOCK_PANIC"

	// ErrCodeComposeFailed indicates the chain did not pass composition.
	ErrCodeComposeFailed RuntimeErrorCode = "COMPOSE_FAILED"

	// ErrCodeChainRunning indicates Start on a chain that already has a live coroutine.
	ErrCodeChainRunning RuntimeErrorCode = "CHAIN_RUNNING"

	// ErrCodeChainCycle indicates a chain running itself inline.
	ErrCodeChainCycle RuntimeErrorCode = "CHAIN_CYCLE"

	// ErrCodeQuotaExceeded indicates too many restarts within one resume.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeWarmupFailed indicates a block's Warmup returned an error.
	ErrCodeWarmupFailed RuntimeErrorCode = "WARMUP_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Chain != "" && e.Block != "" {
		return fmt.Sprintf("%s: %s (chain=%s, block=%s)", e.Code, msg, e.Chain, e.Block)
	}
	if e.Chain != "" {
		return fmt.Sprintf("%s: %s (chain=%s)", e.Code, msg, e.Chain)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsBlockError returns true if a block failed or panicked.
// Uses errors.As to handle wrapped errors.
func IsBlockError(err error) bool {
	return hasCode(err, ErrCodeBlockFailed) || hasCode(err, ErrCodeBlockPanic)
}

// IsComposeError returns true if the chain failed composition.
func IsComposeError(err error) bool {
	return hasCode(err, ErrCodeComposeFailed)
}

// IsRunningError returns true if the chain was already running.
func IsRunningError(err error) bool {
	return hasCode(err, ErrCodeChainRunning)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and RestartsExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var se *RestartsExceededError
	return errors.As(err, &se)
}

// IsCycleError returns true if a chain tried to run itself.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeChainCycle)
}

// NewBlockError wraps err raised by block in chain.
func NewBlockError(chain, block string, err error) *RuntimeError {
	return &RuntimeError{
		Code:  ErrCodeBlockFailed,
		Chain: chain,
		Block: block,
		Err:   err,
	}
}

// NewPanicError records a recovered panic.
func NewPanicError(chain, block string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBlockPanic,
		Message: fmt.Sprintf("panic: %v", recovered),
		Chain:   chain,
		Block:   block,
	}
}

// NewCycleError creates a RuntimeError for a chain calling itself.
func NewCycleError(chain string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeChainCycle,
		Message: "chain is already on the call stack",
		Chain:   chain,
	}
}
