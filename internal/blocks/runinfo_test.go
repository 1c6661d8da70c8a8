package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainflow/internal/serial"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

func TestRunInfoOutputsObject(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "stamp", use("RunInfo"), use("Set", str("last_run")))

	res, err := e.Compose(c, types.NoneType)
	require.NoError(t, err)
	assert.True(t, types.Match(res.OutputType, RunInfoType, true, true))

	out := runToEnd(t, e, c)
	info, ok := RunInfoOf(&out)
	require.True(t, ok)
	assert.Equal(t, &RunInfo{Chain: "stamp", RunID: "run-1"}, info)

	stored, ok := c.FindVariable("last_run")
	require.True(t, ok)
	_, ok = RunInfoOf(stored)
	assert.True(t, ok)
}

func TestRunInfoSerializesThroughRegistry(t *testing.T) {
	reg := NewRegistry()
	v := variant.NewObject(CoreVendor, RunInfoTypeID, &RunInfo{Chain: "main", RunID: "run-7"})

	data, err := serial.Marshal(&v, reg)
	require.NoError(t, err)

	var out variant.Variant
	defer variant.Destroy(&out)
	require.NoError(t, serial.Unmarshal(data, &out, reg))
	info, ok := RunInfoOf(&out)
	require.True(t, ok)
	assert.Equal(t, &RunInfo{Chain: "main", RunID: "run-7"}, info)

	_, err = serial.Marshal(&v, nil)
	assert.ErrorIs(t, err, serial.ErrNotSerializable)
}
