package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	file := filepath.Join(t.TempDir(), "counter.bin")

	out, err := execute(t, "--format", "json", "encode", chainsDir, "Counter", "-o", file)
	require.NoError(t, err)
	var encoded CodecResult
	decodeData(t, out, &encoded)
	assert.Equal(t, "Counter", encoded.Name)
	assert.Equal(t, file, encoded.File)

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, int64(encoded.Size), info.Size())

	out, err = execute(t, "--format", "json", "decode", file)
	require.NoError(t, err)
	var decoded CodecResult
	decodeData(t, out, &decoded)
	assert.Equal(t, "Counter", decoded.Name)
	assert.Equal(t, encoded.Hash, decoded.Hash)
	assert.Contains(t, string(decoded.Def), `"Counter"`)
	assert.JSONEq(t, `{"type":"Int","value":0}`, string(decoded.Variables["n"]))

	out, err = execute(t, "decode", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Chain Counter (")
	assert.Contains(t, out, `var n = {"type":"Int","value":0}`)
}

func TestEncodeText(t *testing.T) {
	file := filepath.Join(t.TempDir(), "double.bin")

	out, err := execute(t, "encode", chainsDir, "Double", "-o", file)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Encoded chain Double (")
	assert.Contains(t, out, file)
}

func TestEncodeChainReference(t *testing.T) {
	file := filepath.Join(t.TempDir(), "main.bin")

	_, err := execute(t, "encode", chainsDir, "Main", "-o", file)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeCodec)
	assert.NoFileExists(t, file)
}

func TestEncodeRequiresOutput(t *testing.T) {
	_, err := execute(t, "encode", chainsDir, "Counter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")
}

func TestEncodeUnknownChain(t *testing.T) {
	_, err := execute(t, "encode", chainsDir, "Nope", "-o", filepath.Join(t.TempDir(), "x.bin"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoChain)
}

func TestDecodeErrors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("not a chain"), 0644))

	_, err := execute(t, "decode", garbage)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeCodec)

	_, err = execute(t, "decode", filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}
