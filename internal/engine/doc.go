// Package engine runs chains.
//
// A chain is started on its own coroutine: a goroutine that hands control
// back and forth with the caller over unbuffered channels, so exactly one
// side runs at any moment. Blocks suspend by calling Context.Suspend,
// which records a wake time and hands control back to the host. The host
// decides the cadence: Tick resumes a chain whose wake time has passed.
//
// ARCHITECTURE:
//
// Per-block algorithm:
// Each block's output is the next block's input. A block may instead
// return a control signal:
//   - Stop: terminate the chain and every chain that called it
//   - Restart: run the chain again from its first block with the
//     original chain input, without yielding to the host
//   - Return: terminate only this chain, yielding the value that flowed
//     into the returning block
//   - Rebase: feed the original chain input to the next block
//
// Cleanup:
// Every block activated at least once during a run is cleaned up exactly
// once when the run ends, in reverse order of first activation. This
// holds on every exit path: normal completion, failure, Stop, and a Stop
// request that arrives while the chain is suspended.
//
// Host loop:
// Schedule queues chains from any goroutine; TickAll and Run start and
// tick them from a single goroutine, running the registry's run-loop
// callbacks once per tick.
package engine
