package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	cases := []struct {
		name string
		v    Variant
		want string
	}{
		{"none", Variant{}, `{"type":"None"}`},
		{"bool", NewBool(true), `{"type":"Bool","value":true}`},
		{"int", NewInt(-3), `{"type":"Int","value":-3}`},
		{"float", NewFloat(2.5), `{"type":"Float","value":2.5}`},
		{"int3", NewInt3(1, 2, 3), `{"type":"Int3","value":[1,2,3]}`},
		{"float3", NewFloat3(0.1, 1, 2), `{"type":"Float3","value":[0.1,1,2]}`},
		{"color", NewColor(1, 2, 3, 4), `{"type":"Color","value":[1,2,3,4]}`},
		{"enum", NewEnum(1, 2, 3), `{"type":"Enum","typeid":2,"value":3,"vendor":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MarshalCanonical(&tc.v)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestMarshalCanonicalTableSortsKeys(t *testing.T) {
	v := NewTable()
	defer Destroy(&v)
	v.Put("b", NewSeq(NewFloat(2.5), NewFloat(3.5)))
	v.Put("a", NewInt(1))

	got, err := MarshalCanonical(&v)
	require.NoError(t, err)
	assert.Equal(t,
		`{"type":"Table","value":{"a":{"type":"Int","value":1},"b":{"type":"Seq","value":[{"type":"Float","value":2.5},{"type":"Float","value":3.5}]}}}`,
		string(got))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	v := NewString("<a&b>")
	defer Destroy(&v)
	got, err := MarshalCanonical(&v)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"String","value":"<a&b>"}`, string(got))
}

func TestMarshalCanonicalNormalizesNFC(t *testing.T) {
	decomposed := NewString("e\u0301")
	composed := NewString("\u00e9")
	defer Destroy(&decomposed)
	defer Destroy(&composed)

	a, err := MarshalCanonical(&decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(&composed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	v := NewString("a\u2028b")
	defer Destroy(&v)
	got, err := MarshalCanonical(&v)
	require.NoError(t, err)
	assert.Equal(t, "{\"type\":\"String\",\"value\":\"a\u2028b\"}", string(got))
}

func TestMarshalCanonicalRejectsNaN(t *testing.T) {
	v := NewFloat(nan())
	_, err := MarshalCanonical(&v)
	assert.Error(t, err)
}

func TestParseCanonicalRoundTrip(t *testing.T) {
	img, err := NewImage(1, 0, 2, 1, []byte{9, 8})
	require.NoError(t, err)

	src := NewTable()
	src.Put("bytes", NewBytes([]byte{0, 1, 2}))
	src.Put("var", NewContextVar("counter"))
	src.Put("img", img)
	src.Put("vec", NewFloat4(1, 2, 3, 4))
	src.Put("i8", NewInt8([8]int16{1, 2, 3, 4, 5, 6, 7, -8}))
	defer Destroy(&src)

	data, err := MarshalCanonical(&src)
	require.NoError(t, err)

	parsed, err := ParseCanonical(data)
	require.NoError(t, err)
	defer Destroy(&parsed)
	assert.True(t, Equal(&src, &parsed), "got %s", parsed.String())
}

func TestParseCanonicalErrors(t *testing.T) {
	for _, doc := range []string{
		`[]`,
		`{"value":1}`,
		`{"type":"Nope"}`,
		`{"type":"Int","value":"x"}`,
		`{"type":"Int3","value":[1,2]}`,
		`{"type":"Chain","name":"main"}`,
	} {
		_, err := ParseCanonical([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestHashIsStable(t *testing.T) {
	a := NewTable()
	a.Put("x", NewInt(1))
	a.Put("y", NewInt(2))
	b := NewTable()
	b.Put("y", NewInt(2))
	b.Put("x", NewInt(1))
	defer Destroy(&a)
	defer Destroy(&b)

	assert.Equal(t, MustHash(&a), MustHash(&b))
	assert.Len(t, MustHash(&a), 64)

	ha, err := HashDomain(DomainChain, &a)
	require.NoError(t, err)
	assert.NotEqual(t, MustHash(&a), ha, "domains separate hashes")
}
