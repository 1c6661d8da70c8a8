// Package blocks is the standard block library: constants, context
// variables, flow control, comparisons and lane-wise math.
//
// Core blocks are registered as "Core.<Name>" and are also reachable by
// their short name; math blocks live under "Math.". Register also adds the
// library's object types, such as the RunInfo stamp.
package blocks
