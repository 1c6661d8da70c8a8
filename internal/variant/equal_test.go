package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualFloatTolerance(t *testing.T) {
	a := NewFloat(1.0)
	b := NewFloat(1.0 + Epsilon/2)
	c := NewFloat(1.0 + Epsilon*4)
	assert.True(t, Equal(&a, &b))
	assert.False(t, Equal(&a, &c))

	v1 := NewFloat3(1, 2, 3)
	v2 := NewFloat3(1, 2, 3.5)
	assert.False(t, Equal(&v1, &v2))
}

func TestEqualDifferentKinds(t *testing.T) {
	i := NewInt(1)
	f := NewFloat(1)
	assert.False(t, Equal(&i, &f))
}

func TestEqualTablesIgnoreOrder(t *testing.T) {
	a := NewTable()
	a.Put("x", NewInt(1))
	a.Put("y", NewString("two"))
	b := NewTable()
	b.Put("y", NewString("two"))
	b.Put("x", NewInt(1))
	defer Destroy(&a)
	defer Destroy(&b)

	assert.True(t, Equal(&a, &b))

	b.Put("x", NewInt(2))
	assert.False(t, Equal(&a, &b))
}

func TestEqualSelfAliased(t *testing.T) {
	a := NewSeq(NewInt(1), NewInt(2))
	defer Destroy(&a)
	view := a.Borrow()
	assert.True(t, Equal(&a, &view))
}

type handle struct{ id int }

func TestEqualObjectsByIdentity(t *testing.T) {
	h1 := &handle{1}
	h2 := &handle{1}
	a := NewObject(1, 2, h1)
	b := NewObject(1, 2, h1)
	c := NewObject(1, 2, h2)
	d := NewObject(1, 3, h1)
	assert.True(t, Equal(&a, &b))
	assert.False(t, Equal(&a, &c))
	assert.False(t, Equal(&a, &d))

	m1 := NewObject(1, 2, map[string]int{})
	m2 := NewObject(1, 2, map[string]int{})
	assert.False(t, Equal(&m1, &m2), "incomparable refs never match")
}

func TestCompare(t *testing.T) {
	one, two := NewInt(1), NewInt(2)
	assert.Equal(t, -1, Compare(&one, &two))
	assert.Equal(t, 1, Compare(&two, &one))
	assert.Equal(t, 0, Compare(&one, &one))

	s1, s2 := NewString("abc"), NewString("abd")
	defer Destroy(&s1)
	defer Destroy(&s2)
	assert.Equal(t, -1, Compare(&s1, &s2))

	short := NewSeq(NewInt(1))
	long := NewSeq(NewInt(1), NewInt(0))
	defer Destroy(&short)
	defer Destroy(&long)
	assert.Equal(t, -1, Compare(&short, &long))

	f1, f2 := NewFloat(0.1), NewFloat(0.1+Epsilon/4)
	assert.Equal(t, 0, Compare(&f1, &f2))
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}
