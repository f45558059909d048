package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateValid(t *testing.T) {
	for _, state := range ValidStates {
		assert.True(t, state.Valid(), string(state))
	}
	assert.False(t, State("UNKNOWN").Valid())
	assert.False(t, State("").Valid())
	assert.False(t, State("pending").Valid())
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateIndexed.Terminal())
	assert.True(t, StateError.Terminal())
}
