package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUnregistered, StateRegistering, true},
		{StateUnregistered, StateRegistered, false},
		{StateRegistering, StateRegistered, true},
		{StateRegistering, StateUnregistered, true},
		{StateRegistering, StateError, false},
		{StateRegistered, StateError, true},
		{StateRegistered, StateUnregistered, true},
		{StateRegistered, StateRewatching, false},
		{StateError, StateRewatching, true},
		{StateError, StateUnregistered, true},
		{StateError, StateRegistered, false},
		{StateRewatching, StateRegistered, true},
		{StateRewatching, StateUnregistered, true},
		{StateRewatching, StateError, true},
		{StateRewatching, StateRegistering, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "UNREGISTERED", StateUnregistered.String())
	assert.Equal(t, "REWATCHING", StateRewatching.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
