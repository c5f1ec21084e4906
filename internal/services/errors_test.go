package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Invalid payment ID.", UserMessage(Business("unknown_payment", "Invalid payment ID.")))
	assert.Equal(t, "Invalid payment ID.", UserMessage(fmt.Errorf("confirm: %w", Business("unknown_payment", "Invalid payment ID."))))
	assert.Equal(t, MsgTryAgain, UserMessage(errors.New("connection refused")))
	assert.Equal(t, MsgTryAgain, UserMessage(transient("get session", errors.New("timeout"))))
}

func TestTransientWrapsBoth(t *testing.T) {
	cause := errors.New("timeout")
	err := transient("get session", cause)
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, cause)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(Reject("too short")))
	assert.True(t, IsRejection(fmt.Errorf("step: %w", Reject("too short"))))
	assert.False(t, IsRejection(errors.New("boom")))
}
