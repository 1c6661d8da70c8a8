// Package harness runs chain scenarios as executable tests.
//
// A scenario compiles chain definitions, starts one chain on an engine
// with a manual clock and a fixed run id, then advances the clock and
// ticks the chain step by step. Every step is recorded in a trace, so
// runs are reproducible and can be compared against golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	chains: |
//	  chain: Main: {
//	    looped: true
//	    blocks: [{name: "Pause", params: [1.0]}, {name: "Math.Add", params: [1]}]
//	  }
//	files:
//	  - more_chains.cue
//	main: Main
//	input: 1
//	steps:
//	  - advance: 1.0
//	    expect:
//	      state: Iterating
//	      output: 2
//	  - stop: true
//	assertions:
//	  - type: final_state
//	    state: Stopped
//	  - type: variable
//	    name: total
//	    value: {type: Float2, value: [1, 2]}
//
// # Values
//
// Inputs and expected values use plain YAML (numbers, strings, lists,
// maps) or the canonical typed form {type: <Kind>, value: ...} for kinds
// YAML cannot express directly, such as vectors and colors.
//
// # Assertion Types
//
//   - final_state: chain state after the last step
//   - output: chain output after the last step
//   - variable: chain variable, or engine global with global: true
//   - trace_count: number of steps that left the chain in a state
//   - error: the chain error contains a substring
//
// # Golden Files
//
// RunWithGolden stores the canonical JSON trace under
// testdata/golden/<name>.golden; run tests with -update to regenerate.
package harness
