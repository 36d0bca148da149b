package bitset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetTestClear(t *testing.T) {
	b := New(130)
	require.True(t, b.Empty())

	for _, i := range []int{0, 63, 64, 129} {
		b.Set(i)
		require.True(t, b.Test(i), "bit %d", i)
	}
	require.Equal(t, 4, b.Count())
	require.False(t, b.Test(1))

	b.Clear(64)
	require.False(t, b.Test(64))
	require.Equal(t, 3, b.Count())
}

func TestWordParallelOps(t *testing.T) {
	a := New(200)
	b := New(200)
	a.Set(5)
	a.Set(150)
	b.Set(150)
	b.Set(199)

	u := a.Clone()
	u.OrWith(b)
	require.Equal(t, 3, u.Count())

	i := a.And(b)
	require.Equal(t, 1, i.Count())
	require.True(t, i.Test(150))

	i.AndWith(New(200))
	require.True(t, i.Empty())
}

func TestEqualAndClone(t *testing.T) {
	a := New(70)
	a.Set(69)
	c := a.Clone()
	require.True(t, a.Equal(c))
	c.Set(0)
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(New(300)))
}

func TestForEachAscending(t *testing.T) {
	b := New(128)
	want := []int{3, 64, 65, 127}
	for _, i := range want {
		b.Set(i)
	}
	var got []int
	b.ForEach(func(i int) bool {
		got = append(got, i)
		return true
	})
	require.Equal(t, want, got)

	var first []int
	b.ForEach(func(i int) bool {
		first = append(first, i)
		return false
	})
	require.Equal(t, []int{3}, first)
}
