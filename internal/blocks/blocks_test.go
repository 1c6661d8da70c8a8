package blocks

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainflow/internal/block"
	"github.com/roach88/chainflow/internal/compose"
	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/testutil"
	"github.com/roach88/chainflow/internal/types"
	"github.com/roach88/chainflow/internal/variant"
)

type step struct {
	name   string
	params []variant.Variant
}

func use(name string, params ...variant.Variant) step {
	return step{name: name, params: params}
}

func newTestEngine(t *testing.T, opts ...engine.EngineOption) (*engine.Engine, *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock()
	opts = append([]engine.EngineOption{
		engine.WithRegistry(NewRegistry()),
		engine.WithClock(clock),
		engine.WithRunIDGenerator(testutil.NewFixedRunID("run-1")),
	}, opts...)
	return engine.New(opts...), clock
}

func buildChain(t *testing.T, reg *block.Registry, name string, steps ...step) *engine.Chain {
	t.Helper()
	c := engine.NewChain(name)
	for _, s := range steps {
		b, err := reg.Create(s.name)
		require.NoError(t, err)
		for i := range s.params {
			require.NoError(t, compose.SetParam(b, i, &s.params[i]), "%s parameter %d", s.name, i)
			variant.Destroy(&s.params[i])
		}
		require.NoError(t, c.AddBlock(b))
	}
	t.Cleanup(c.Destroy)
	return c
}

func runToEnd(t *testing.T, e *engine.Engine, c *engine.Chain) variant.Variant {
	t.Helper()
	require.NoError(t, e.Start(c, nil))
	require.False(t, c.Running(), "chain %s still running", c.Name())
	return c.Output()
}

func str(s string) variant.Variant { return variant.NewString(s) }
func cvar(s string) variant.Variant { return variant.NewContextVar(s) }

func TestConstAddIsMore(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(5)),
		use("Math.Add", variant.NewInt(3)),
		use("Core.IsMore", variant.NewInt(10)),
	)

	out := runToEnd(t, e, c)

	assert.Equal(t, engine.Ended, c.State())
	assert.True(t, types.Equal(types.BoolType, c.Composed().OutputType))
	assert.Equal(t, variant.Bool, out.Kind())
	assert.False(t, out.Bool())
}

func TestRegistryAliases(t *testing.T) {
	reg := NewRegistry()
	full, ok := reg.Resolve("IsLess")
	require.True(t, ok)
	assert.Equal(t, "Core.IsLess", full)

	_, ok = reg.Resolve("Add")
	assert.False(t, ok, "math blocks have no short alias")
	assert.Len(t, reg.Names(), len(constructors))

	for _, name := range reg.Names() {
		b, err := reg.Create(name)
		require.NoError(t, err)
		assert.Equal(t, name, b.Name())
		b.Destroy()
	}
}

func TestSetThenGet(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(7)),
		use("Set", str("x")),
		use("Const", str("ignored")),
		use("Get", str("x")),
	)

	out := runToEnd(t, e, c)

	assert.True(t, types.Equal(types.IntType, c.Composed().OutputType))
	assert.Equal(t, int64(7), out.Int())
	v, ok := c.FindVariable("x")
	require.True(t, ok)
	assert.Equal(t, int64(7), v.Int())
}

func TestSetTableKey(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewFloat(1.5)),
		use("Set", str("t"), str("a")),
		use("Const", variant.NewInt(2)),
		use("Set", str("t"), str("b")),
		use("Get", str("t"), str("a")),
	)

	out := runToEnd(t, e, c)
	assert.True(t, types.Equal(types.FloatType, c.Composed().OutputType))
	assert.Equal(t, 1.5, out.Float())

	v, ok := c.FindVariable("t")
	require.True(t, ok)
	require.Equal(t, variant.Table, v.Kind())
	assert.Equal(t, []string{"a", "b"}, v.Map().Keys())
}

func TestSetRejectsTypeChange(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(1)),
		use("Set", str("x")),
		use("Const", str("s")),
		use("Set", str("x")),
	)

	err := e.Start(c, nil)
	require.Error(t, err)
	assert.True(t, engine.IsComposeError(err))
	assert.Equal(t, engine.Failed, c.State())
}

func TestRefThenSetConflict(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(1)),
		use("Ref", str("x")),
		use("Set", str("x")),
	)

	err := e.Start(c, nil)
	require.Error(t, err)
	var ce compose.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, compose.ErrMutabilityConflict, ce.Code)
}

func TestRefIsResetOnCleanup(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", str("shared")),
		use("Ref", str("r")),
		use("Const", variant.Variant{}),
		use("Get", str("r")),
	)

	out := runToEnd(t, e, c)
	assert.Equal(t, "shared", out.Text())

	v, ok := c.FindVariable("r")
	require.True(t, ok)
	assert.True(t, v.IsNone())
}

func TestUpdateRequiresExistingVariable(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(3)),
		use("Update", str("counter")),
	)

	res, err := e.Compose(c, types.NoneType)
	require.NoError(t, err)
	require.Len(t, res.Warnings(), 1)
	assert.Equal(t, compose.ErrMissingVariable, res.Warnings()[0].Code)

	seed := variant.NewInt(0)
	c.SetVariable("counter", &seed)
	res, err = e.Compose(c, types.NoneType)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings())

	runToEnd(t, e, c)
	v, _ := c.FindVariable("counter")
	assert.Equal(t, int64(3), v.Int())
}

func TestUpdateRejectsTypeChange(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(3)),
		use("Set", str("x")),
		use("Const", variant.NewFloat(1)),
		use("Update", str("x")),
	)

	_, err := e.Compose(c, types.NoneType)
	assert.Error(t, err)
}

func TestGetDefault(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Get", str("missing"), variant.Variant{}, variant.NewBool(false), variant.NewInt(42)),
	)

	out := runToEnd(t, e, c)
	assert.True(t, types.Equal(types.IntType, c.Composed().OutputType))
	assert.Equal(t, int64(42), out.Int())
}

func TestGetGlobal(t *testing.T) {
	e, _ := newTestEngine(t)
	writer := buildChain(t, e.Registry(), "writer",
		use("Const", str("hello")),
		use("Set", str("greeting"), variant.Variant{}, variant.NewBool(true)),
	)
	reader := buildChain(t, e.Registry(), "reader",
		use("Get", str("greeting")),
	)

	runToEnd(t, e, writer)
	_, ok := e.Globals().Find("greeting")
	require.True(t, ok)

	out := runToEnd(t, e, reader)
	assert.Equal(t, "hello", out.Text())
}

func TestCount(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewSeq(variant.NewInt(1), variant.NewInt(2), variant.NewInt(3))),
		use("Set", str("items")),
		use("Count", str("items")),
	)

	out := runToEnd(t, e, c)
	assert.Equal(t, int64(3), out.Int())
}

func TestCompareBlocks(t *testing.T) {
	tests := []struct {
		block string
		input variant.Variant
		value variant.Variant
		want  bool
	}{
		{"Is", variant.NewInt(2), variant.NewInt(2), true},
		{"Is", str("a"), str("b"), false},
		{"IsNot", str("a"), str("b"), true},
		{"IsMore", variant.NewFloat(2.5), variant.NewFloat(1), true},
		{"IsLess", variant.NewFloat(2.5), variant.NewFloat(1), false},
		{"IsLess", variant.NewInt(-1), variant.NewInt(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.block, func(t *testing.T) {
			e, _ := newTestEngine(t)
			c := buildChain(t, e.Registry(), "main", use("Const", tt.input), use(tt.block, tt.value))
			out := runToEnd(t, e, c)
			assert.Equal(t, tt.want, out.Bool())
		})
	}
}

func TestCompareAgainstVariable(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(3)),
		use("Set", str("limit")),
		use("Const", variant.NewInt(5)),
		use("IsMore", cvar("limit")),
	)

	out := runToEnd(t, e, c)
	assert.True(t, out.Bool())
}

func TestOrderingRejectsKindMismatch(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(5)),
		use("IsMore", str("5")),
	)

	_, err := e.Compose(c, types.NoneType)
	require.Error(t, err)
	var ce compose.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, compose.ErrComposeFailed, ce.Code)
}

func TestMathLanes(t *testing.T) {
	tests := []struct {
		name    string
		block   string
		input   variant.Variant
		operand variant.Variant
		want    variant.Variant
	}{
		{"int subtract", "Math.Subtract", variant.NewInt(10), variant.NewInt(4), variant.NewInt(6)},
		{"float2 multiply", "Math.Multiply", variant.NewFloat2(1.5, 2), variant.NewFloat2(2, 3), variant.NewFloat2(3, 6)},
		{"float3 broadcast", "Math.Multiply", variant.NewFloat3(1, 2, 3), variant.NewFloat(2), variant.NewFloat3(2, 4, 6)},
		{"int divide", "Math.Divide", variant.NewInt(7), variant.NewInt(2), variant.NewInt(3)},
		{"color wraps", "Math.Add", variant.NewColor(250, 0, 0, 255), variant.NewColor(10, 1, 2, 0), variant.NewColor(4, 1, 2, 255)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			c := buildChain(t, e.Registry(), "main", use("Const", tt.input), use(tt.block, tt.operand))
			out := runToEnd(t, e, c)
			assert.True(t, variant.Equal(&tt.want, &out), "got %s", out.String())
		})
	}
}

func TestMathOverSequence(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewSeq(variant.NewInt(1), variant.NewInt(2))),
		use("Math.Add", variant.NewInt(10)),
	)

	out := runToEnd(t, e, c)
	want := variant.NewSeq(variant.NewInt(11), variant.NewInt(12))
	defer variant.Destroy(&want)
	assert.True(t, variant.Equal(&want, &out), "got %s", out.String())
}

func TestMathDivideByZeroFails(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(1)),
		use("Math.Divide", variant.NewInt(0)),
	)

	runToEnd(t, e, c)
	assert.Equal(t, engine.Failed, c.State())
	assert.ErrorIs(t, c.Err(), ErrDivideByZero)
	assert.True(t, engine.IsBlockError(c.Err()))
}

func TestMathRejectsBadOperand(t *testing.T) {
	b, err := NewRegistry().Create("Math.Add")
	require.NoError(t, err)
	s := str("three")
	defer variant.Destroy(&s)

	err = compose.SetParam(b, 0, &s)
	var ce compose.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, compose.ErrParamMismatch, ce.Code)

	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewFloat2(1, 2)),
		use("Math.Add", variant.NewFloat3(1, 2, 3)),
	)
	_, err = e.Compose(c, types.NoneType)
	assert.Error(t, err)
}

func TestMathRejectsMixedNumberKinds(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(1)),
		use("Math.Add", variant.NewFloat(2.5)),
	)
	_, err := e.Compose(c, types.NoneType)
	assert.Error(t, err)

	var out variant.Variant
	defer variant.Destroy(&out)
	in := variant.NewInt(1)
	operand := variant.NewFloat(2.5)
	assert.Error(t, opAdd.apply(&out, &in, &operand))

	floatIn := variant.NewFloat3(1, 2, 3)
	intOperand := variant.NewInt(2)
	assert.Error(t, opMultiply.apply(&out, &floatIn, &intOperand))
}

func TestPauseWaitsForClock(t *testing.T) {
	e, clock := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(1)),
		use("Pause", variant.NewFloat(0.5)),
		use("Math.Add", variant.NewInt(1)),
	)

	require.NoError(t, e.Start(c, nil))
	assert.True(t, c.Running())

	assert.True(t, e.Tick(c, nil))
	clock.Advance(500 * time.Millisecond)
	assert.False(t, e.Tick(c, nil))

	assert.Equal(t, engine.Ended, c.State())
	out := c.Output()
	assert.Equal(t, int64(2), out.Int())
}

func TestPauseStopped(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(1)),
		use("Pause", variant.NewInt(10)),
	)

	require.NoError(t, e.Start(c, nil))
	_, err := e.Stop(c)
	require.NoError(t, err)
	assert.Equal(t, engine.Stopped, c.State())
	assert.False(t, c.Running())
}

func TestFail(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", str("boom")),
		use("Fail"),
	)

	runToEnd(t, e, c)
	assert.Equal(t, engine.Failed, c.State())
	assert.ErrorIs(t, c.Err(), ErrFailed)
	assert.Contains(t, c.Err().Error(), "boom")
}

func TestSignalBlocks(t *testing.T) {
	e, _ := newTestEngine(t)
	returned := buildChain(t, e.Registry(), "returned",
		use("Const", variant.NewInt(1)),
		use("Return"),
		use("Const", variant.NewInt(2)),
	)
	returnedOut := runToEnd(t, e, returned)
	assert.Equal(t, int64(1), returnedOut.Int())
	assert.Equal(t, engine.Ended, returned.State())

	stopped := buildChain(t, e.Registry(), "stopped",
		use("Const", variant.NewInt(1)),
		use("Stop"),
		use("Const", variant.NewInt(2)),
	)
	stoppedOut := runToEnd(t, e, stopped)
	assert.Equal(t, int64(1), stoppedOut.Int())
	assert.Equal(t, engine.Ended, stopped.State())
	assert.NoError(t, stopped.Err())
}

func TestRestartIsBoundedByQuota(t *testing.T) {
	e, _ := newTestEngine(t, engine.WithMaxRestarts(5))
	seed := variant.NewInt(0)
	c := buildChain(t, e.Registry(), "main",
		use("Get", str("n")),
		use("Math.Add", variant.NewInt(1)),
		use("Update", str("n")),
		use("Restart"),
	)
	c.SetVariable("n", &seed)

	runToEnd(t, e, c)
	assert.Equal(t, engine.Failed, c.State())
	assert.True(t, engine.IsQuotaError(c.Err()))
	v, _ := c.FindVariable("n")
	assert.Equal(t, int64(6), v.Int())
}

func TestDoRunsSubChain(t *testing.T) {
	e, _ := newTestEngine(t)
	child := buildChain(t, e.Registry(), "double",
		use("Math.Multiply", variant.NewInt(2)),
	)
	parent := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(4)),
		use("Do", variant.NewChainRef(child)),
		use("Math.Add", variant.NewInt(1)),
	)

	out := runToEnd(t, e, parent)
	assert.Equal(t, engine.Ended, parent.State())
	assert.Equal(t, int64(9), out.Int())
	assert.Equal(t, engine.Ended, child.State())
}

func TestDoWithoutChainFailsCompose(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main", use("Do"))

	_, err := e.Compose(c, types.NoneType)
	assert.Error(t, err)
}

func TestLogPassesThrough(t *testing.T) {
	e, _ := newTestEngine(t)
	c := buildChain(t, e.Registry(), "main",
		use("Const", variant.NewInt(11)),
		use("Log", str("value")),
	)

	out := runToEnd(t, e, c)
	assert.Equal(t, int64(11), out.Int())
}

func TestNoVariableLeaks(t *testing.T) {
	before := variant.LiveAllocations()
	func() {
		e, _ := newTestEngine(t)
		reg := e.Registry()
		c := engine.NewChain("main")
		for _, s := range []step{
			use("Const", variant.NewSeq(variant.NewFloat(1), variant.NewFloat(2))),
			use("Math.Multiply", variant.NewFloat(3)),
			use("Set", str("scaled")),
		} {
			b, err := reg.Create(s.name)
			require.NoError(t, err)
			for i := range s.params {
				require.NoError(t, compose.SetParam(b, i, &s.params[i]))
				variant.Destroy(&s.params[i])
			}
			require.NoError(t, c.AddBlock(b))
		}
		runToEnd(t, e, c)
		c.Destroy()
	}()
	assert.Equal(t, before, variant.LiveAllocations())
}
