package services

import (
	"errors"
	"fmt"
)

// ErrTransient marks failures the user can fix by simply trying again:
// store timeouts, reference-data lookups, exhausted version retries.
var ErrTransient = errors.New("temporary failure")

// ErrCorruptSession is returned when a stored session cannot be resumed by its workflow
var ErrCorruptSession = errors.New("corrupt session")

// User-facing notices. Raw error text never reaches the chat channel.
const (
	MsgTryAgain       = "⚠️ Sorry, something went wrong on our side. Please try again in a moment."
	MsgInvalidInput   = "Invalid input. Please try again."
	MsgContactSupport = "❌ Registration failed. Please contact our support team."
	MsgRegisterFirst  = "You need to register first. Type 'register' to begin."
)

// RejectionError is returned by validators when user input fails a step's check
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "input rejected: " + e.Reason
}

// Reject builds a RejectionError
func Reject(format string, args ...interface{}) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a validation rejection
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}

// BusinessError is a recoverable rule violation with a specific message for the user
type BusinessError struct {
	Code    string
	Message string
}

func (e *BusinessError) Error() string {
	return e.Code + ": " + e.Message
}

// Business builds a BusinessError
func Business(code, message string) error {
	return &BusinessError{Code: code, Message: message}
}

// transient wraps err so that errors.Is(err, ErrTransient) holds
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// UserMessage turns any handler error into the text sent to the user
func UserMessage(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message
	}
	return MsgTryAgain
}
