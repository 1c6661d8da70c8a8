package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runJSON(t *testing.T, args ...string) (RunResult, CLIResponse, error) {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json"}, args...)...)
	var result RunResult
	resp := decodeData(t, out, &result)
	return result, resp, err
}

func TestRunChain(t *testing.T) {
	out, err := execute(t, "run", chainsDir, "Main")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Chain Main: Ended after ")
	assert.Contains(t, out, `output: {"type":"Int","value":9}`)
	assert.Contains(t, out, `var result = {"type":"Int","value":9}`)
}

func TestRunChainJSON(t *testing.T) {
	result, resp, err := runJSON(t, "run", chainsDir, "Main")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Main", result.Chain)
	assert.Equal(t, "Ended", result.State)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, result.RunID, resp.RunID)
	assert.JSONEq(t, `{"type":"Int","value":9}`, string(result.Output))
	assert.Empty(t, result.Error)
}

func TestRunWithInput(t *testing.T) {
	result, _, err := runJSON(t, "run", chainsDir, "Double", "--input", "21")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Int","value":42}`, string(result.Output))

	result, _, err = runJSON(t, "run", chainsDir, "Double", "--input", "{type: Int, value: -3}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Int","value":-6}`, string(result.Output))
}

func TestRunInputOfWrongNumberKind(t *testing.T) {
	result, _, err := runJSON(t, "run", chainsDir, "Double", "--input", "{type: Float, value: 1.25}")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "Failed", result.State)
}

func TestRunBadInput(t *testing.T) {
	_, err := execute(t, "run", chainsDir, "Double", "--input", "{type: Nope}")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeBadInput)
}

func TestRunFailingChain(t *testing.T) {
	result, resp, err := runJSON(t, "run", chainsDir, "Broken")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "Failed", result.State)
	assert.Contains(t, result.Error, "boom")
	require.NotNil(t, resp.Error)
	assert.Equal(t, result.ErrorCode, resp.Error.Code)
}

func TestRunLoopedChainStopsAtMaxTicks(t *testing.T) {
	result, _, err := runJSON(t, "run", chainsDir, "Ticker", "--max-ticks", "3", "--tick-interval", "1ms")
	require.NoError(t, err)
	assert.Equal(t, "Stopped", result.State)
	assert.GreaterOrEqual(t, result.Ticks, 3)
}

func TestRunUnknownChain(t *testing.T) {
	out, err := execute(t, "run", chainsDir, "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `chain "Nope" is not defined`)
}

func TestRunInvalidChains(t *testing.T) {
	dir := writeChains(t, `chain: Main: blocks: ["Nope"]`)

	_, err := execute(t, "run", dir, "Main")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRunConfigFile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chains.db")
	cfg := writeConfig(t, "db: "+db+"\nmax_ticks: 2\ntick_interval: 1ms\n")

	result, _, err := runJSON(t, "--config", cfg, "run", chainsDir, "Ticker")
	require.NoError(t, err)
	assert.Equal(t, "Stopped", result.State)
	assert.Equal(t, int64(1), result.Snapshot, "db from the config file")
}

func TestRunPersistsAndReplays(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chains.db")

	result, _, err := runJSON(t, "run", chainsDir, "Counter", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Snapshot)
	assert.JSONEq(t, `{"type":"Int","value":1}`, string(result.Variables["n"]))

	// A fresh run starts from the definition again.
	result, _, err = runJSON(t, "run", chainsDir, "Counter", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Snapshot)
	assert.JSONEq(t, `{"type":"Int","value":1}`, string(result.Variables["n"]))

	// Replay continues from the latest snapshot.
	result, _, err = runJSON(t, "replay", "Counter", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Ended", result.State)
	assert.Equal(t, int64(3), result.Snapshot)
	assert.JSONEq(t, `{"type":"Int","value":2}`, string(result.Variables["n"]))

	result, _, err = runJSON(t, "replay", "Counter", "--db", db, "--seq", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Int","value":3}`, string(result.Variables["n"]))

	out, err := execute(t, "--format", "json", "inspect", "--db", db, "Counter", "--seq", "2")
	require.NoError(t, err)
	var report ChainReport
	decodeData(t, out, &report)
	assert.Equal(t, "Counter", report.Name)
	assert.Equal(t, int64(3), report.Seq, "definition changes with every new variable value")
	assert.Equal(t, []int64{1, 2, 3, 4}, report.Snapshots)
	assert.Equal(t, int64(2), report.Snapshot)
	assert.JSONEq(t, `{"type":"Int","value":1}`, string(report.Variables["n"]))
}

func TestRunPersistsObjectVariables(t *testing.T) {
	dir := writeChains(t, `chain: Stamp: blocks: ["RunInfo", {name: "Set", params: {Name: "last_run"}}]`)
	db := filepath.Join(t.TempDir(), "chains.db")

	result, _, err := runJSON(t, "run", dir, "Stamp", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Snapshot)
	assert.Contains(t, string(result.Variables["last_run"]), `"type":"Object"`)

	// Loading the stored chain decodes the object through its codec.
	out, err := execute(t, "inspect", "--db", db, "Stamp")
	require.NoError(t, err)
	assert.Contains(t, out, "last_run = ")

	result, _, err = runJSON(t, "replay", "Stamp", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Ended", result.State)
	assert.Equal(t, int64(2), result.Snapshot)
}

func TestRunChainWithReferenceCannotBeSaved(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chains.db")

	_, err := execute(t, "run", chainsDir, "Main", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to save run")
}

func TestReplayErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chains.db")

	_, err := execute(t, "replay", "Counter")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "replay", "Counter", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "is not stored")
}

func TestInspect(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chains.db")

	out, err := execute(t, "inspect", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No chains stored.")

	_, err = execute(t, "run", chainsDir, "Counter", "--db", db)
	require.NoError(t, err)

	out, err = execute(t, "inspect", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Counter  v1")

	out, err = execute(t, "inspect", "--db", db, "Counter")
	require.NoError(t, err)
	assert.Contains(t, out, "snapshots:  [1]")
	assert.Contains(t, out, `n = {"type":"Int","value":1}`)

	out, err = execute(t, "--format", "json", "inspect", "--db", db)
	require.NoError(t, err)
	var infos []json.RawMessage
	decodeData(t, out, &infos)
	assert.Len(t, infos, 1)

	_, err = execute(t, "inspect", "--db", db, "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = execute(t, "inspect")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
