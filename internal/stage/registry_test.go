package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_LastWriteWins(t *testing.T) {
	r := NewRegistry()

	r.Observe("k", StageQueued)
	r.Observe("k", StageMerging)
	r.Observe("k", StageTranscoding)

	last, ok := r.Last("k")
	assert.True(t, ok)
	assert.Equal(t, StageTranscoding, last)
}

func TestRegistry_DoneIsSticky(t *testing.T) {
	r := NewRegistry()

	r.Observe("k", StageDone)
	// Overlapping polls from an independent task must not downgrade it.
	r.Observe("k", StageMerging)
	r.Observe("k", StageFailed)

	assert.True(t, r.Done("k"))
	last, _ := r.Last("k")
	assert.Equal(t, StageDone, last)
}

func TestRegistry_KeysAreIndependent(t *testing.T) {
	r := NewRegistry()

	r.Observe("a", StageDone)
	r.Observe("b", StageFailed)

	assert.True(t, r.Done("a"))
	assert.False(t, r.Done("b"))

	_, ok := r.Last("c")
	assert.False(t, ok)
}

func TestRegistry_IgnoresEmpty(t *testing.T) {
	r := NewRegistry()

	r.Observe("", StageDone)
	r.Observe("k", "")

	assert.False(t, r.Done(""))
	_, ok := r.Last("k")
	assert.False(t, ok)
}
