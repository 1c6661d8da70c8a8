package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeData(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.CLIResponse
}

func TestCompileChains(t *testing.T) {
	out, err := execute(t, "compile", chainsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 5 chain(s)")
	assert.Contains(t, out, "Main: 4 block(s), once")
	assert.Contains(t, out, "Ticker: 1 block(s), looped")
}

func TestCompileChainsJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", chainsDir)
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)

	names := make([]string, len(result.Chains))
	for i, c := range result.Chains {
		names[i] = c.Name
		assert.NotEmpty(t, c.Hash)
	}
	assert.Equal(t, []string{"Broken", "Counter", "Double", "Main", "Ticker"}, names)

	var def map[string]any
	require.NoError(t, json.Unmarshal(result.Chains[2].Def, &def))
	assert.Equal(t, "Table", def["type"])
	value := def["value"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "String", "value": "Double"}, value["name"])
}

func TestCompileHashIsStable(t *testing.T) {
	first, err := execute(t, "--format", "json", "compile", chainsDir)
	require.NoError(t, err)
	second, err := execute(t, "--format", "json", "compile", chainsDir)
	require.NoError(t, err)
	assert.JSONEq(t, first, second)
}

func TestCompileOutputFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "chains.json")

	out, err := execute(t, "compile", chainsDir, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote chain definitions to "+output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Chains, 5)
}

func TestCompileInvalidChains(t *testing.T) {
	dir := writeChains(t, `chain: Main: blocks: [{name: "Math.Add", params: ["x"]}]`)

	out, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E113")
}

func TestCompileMissingBlocks(t *testing.T) {
	dir := writeChains(t, `chain: Main: {looped: true}`)

	out, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "blocks is required")
}

func TestCompileMissingDirectory(t *testing.T) {
	_, err := execute(t, "compile", "/nonexistent")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
