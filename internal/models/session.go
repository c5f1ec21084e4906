package models

import (
	"fmt"
	"strconv"
	"time"
)

// WorkflowKind identifies which workflow owns a conversation
type WorkflowKind string

const (
	WorkflowNone         WorkflowKind = "none"
	WorkflowRegistration WorkflowKind = "registration"
	WorkflowPayment      WorkflowKind = "payment"
	WorkflowDiagnostics  WorkflowKind = "diagnostics"
	WorkflowChat         WorkflowKind = "chat"
)

// Valid reports whether k is one of the known workflow kinds
func (k WorkflowKind) Valid() bool {
	switch k {
	case WorkflowNone, WorkflowRegistration, WorkflowPayment, WorkflowDiagnostics, WorkflowChat:
		return true
	}
	return false
}

// ValueKind tags the type held by a FieldValue
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindDate   ValueKind = "date"
)

// FieldValue is one typed entry of a session's collected data.
type FieldValue struct {
	Kind   ValueKind
	Text   string
	Number float64
	Date   time.Time
}

// StringValue wraps s as a FieldValue
func StringValue(s string) FieldValue {
	return FieldValue{Kind: KindString, Text: s}
}

// NumberValue wraps n as a FieldValue
func NumberValue(n float64) FieldValue {
	return FieldValue{Kind: KindNumber, Number: n}
}

// DateValue wraps t as a FieldValue
func DateValue(t time.Time) FieldValue {
	return FieldValue{Kind: KindDate, Date: t}
}

// String renders the value for user-facing messages
func (v FieldValue) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindDate:
		return v.Date.Format("02-01-2006")
	default:
		return v.Text
	}
}

// SessionData is the flat field -> value payload accumulated by a workflow
type SessionData map[string]FieldValue

// Clone returns a copy that can be mutated without touching d
func (d SessionData) Clone() SessionData {
	out := make(SessionData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Session is the persisted conversational state of one user.
//
// Version is the value the holder last read from the store; the store bumps it
// on every successful conditional update.
type Session struct {
	UserID    string       `json:"user_id"`
	Workflow  WorkflowKind `json:"workflow_id"`
	StepIndex int          `json:"step_index"`
	Data      SessionData  `json:"data"`
	Version   int64        `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewSession creates a fresh session owned by workflow
func NewSession(userID string, workflow WorkflowKind) *Session {
	return &Session{
		UserID:    userID,
		Workflow:  workflow,
		StepIndex: 0,
		Data:      SessionData{},
		Version:   0,
	}
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = s.Data.Clone()
	return &c
}

// Text returns the string form of a data field, or "" when absent
func (s *Session) Text(field string) string {
	v, ok := s.Data[field]
	if !ok {
		return ""
	}
	return v.String()
}

// Number returns a numeric data field
func (s *Session) Number(field string) (float64, error) {
	v, ok := s.Data[field]
	if !ok {
		return 0, fmt.Errorf("field %s not set", field)
	}
	if v.Kind != KindNumber {
		return 0, fmt.Errorf("field %s is %s, not a number", field, v.Kind)
	}
	return v.Number, nil
}
