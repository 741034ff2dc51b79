package filter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNoFalseNegatives ensures every added key always tests positive, regardless of how full the filter gets.
func TestNoFalseNegatives(t *testing.T) {
	f := New(2048, 4)
	keys := make([][]byte, 0, 500)
	for i := 0; i < 500; i++ {
		keys = append(keys, []byte(fmt.Sprintf("key-%d", i)))
	}
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		assert.True(t, f.MightContain(k), "expected no false negative for %s", k)
	}
}

func TestNeverAddedKeyMayBeAbsent(t *testing.T) {
	f := New(4096, 4)
	f.Add([]byte("present"))
	// A sparsely populated filter should, with overwhelming likelihood, report an unrelated key as absent.
	assert.False(t, f.MightContain([]byte("definitely-not-added")))
}

func TestClearResetsMembership(t *testing.T) {
	f := New(1024, 3)
	f.Add([]byte("a"))
	require.True(t, f.MightContain([]byte("a")))
	f.Clear()
	assert.False(t, f.MightContain([]byte("a")))
}

func TestAccessors(t *testing.T) {
	f := New(512, 5)
	assert.EqualValues(t, 512, f.NumBits())
	assert.EqualValues(t, 5, f.NumHashes())
}

func TestZeroSizedConfigIsClamped(t *testing.T) {
	f := New(0, 0)
	// Should not panic, and should still behave as a (degenerate but valid) filter.
	f.Add([]byte("x"))
	assert.True(t, f.MightContain([]byte("x")))
}
