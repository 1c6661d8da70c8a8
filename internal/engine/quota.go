package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxRestarts is the default number of Restart signals a chain may
// raise within one resume before it is failed.
const DefaultMaxRestarts = 1000

// QuotaEnforcer counts Restart signals between two suspensions of a chain.
//
// Restart re-runs a chain immediately without handing control back to the
// host. A chain that restarts unconditionally would never yield, so the
// count is bounded and reset every time the chain suspends.
//
// Each chain run owns one enforcer; it is only touched from the chain's
// coroutine.
type QuotaEnforcer struct {
	maxRestarts int
	current     int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
// A limit of zero or less disables the check.
func NewQuotaEnforcer(maxRestarts int) *QuotaEnforcer {
	return &QuotaEnforcer{maxRestarts: maxRestarts}
}

// Check increments the restart counter and validates against the limit.
func (q *QuotaEnforcer) Check(chain string) error {
	q.current++
	if q.maxRestarts > 0 && q.current > q.maxRestarts {
		return &RestartsExceededError{
			Chain:    chain,
			Restarts: q.current,
			Limit:    q.maxRestarts,
		}
	}
	return nil
}

// Reset sets the restart counter back to 0. Called on every suspension.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current restart count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxRestarts returns the limit.
func (q *QuotaEnforcer) MaxRestarts() int {
	return q.maxRestarts
}

// RestartsExceededError is returned when a chain exceeds the restart quota.
type RestartsExceededError struct {
	Chain    string
	Restarts int
	Limit    int
}

// Error implements the error interface.
func (e *RestartsExceededError) Error() string {
	return fmt.Sprintf("chain %s exceeded restart quota: %d restarts > %d limit without suspending",
		e.Chain, e.Restarts, e.Limit)
}

// IsRestartsExceededError returns true if the error is a RestartsExceededError.
func IsRestartsExceededError(err error) bool {
	var se *RestartsExceededError
	return errors.As(err, &se)
}
