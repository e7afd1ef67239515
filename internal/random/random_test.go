package random

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexStaysInBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		n, err := Index(7)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 7)
	}
}

func TestIndexSingleton(t *testing.T) {
	n, err := Index(1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIndexRejectsNonPositiveBound(t *testing.T) {
	_, err := Index(0)
	assert.Error(t, err)
	_, err = Index(-3)
	assert.Error(t, err)
}

func TestShufflePreservesElements(t *testing.T) {
	src := []string{"a", "b", "c", "d", "e", "f"}
	out, err := Shuffle(src)
	require.NoError(t, err)
	require.Len(t, out, len(src))

	sorted := append([]string(nil), out...)
	sort.Strings(sorted)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, sorted)
}

func TestShuffleLeavesInputUntouched(t *testing.T) {
	src := []int{1, 2, 3, 4, 5}
	want := append([]int(nil), src...)
	_, err := Shuffle(src)
	require.NoError(t, err)
	assert.Equal(t, want, src)
}

func TestShuffleEmptyAndSingle(t *testing.T) {
	out, err := Shuffle([]int(nil))
	require.NoError(t, err)
	assert.Empty(t, out)

	out2, err := Shuffle([]int{42})
	require.NoError(t, err)
	assert.Equal(t, []int{42}, out2)
}
