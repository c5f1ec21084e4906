package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
)

var (
	// ErrNotFound is returned when a keyed record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a conditional session update lost a race
	ErrVersionConflict = errors.New("session version conflict")
	// ErrDuplicate is returned when a unique natural key is already taken
	ErrDuplicate = errors.New("duplicate record")
	// ErrStateMismatch is returned when a record exists but is not in a state
	// the requested transition allows
	ErrStateMismatch = errors.New("record state does not allow this change")
)

// SessionStore persists per-user conversational state
type SessionStore interface {
	// GetSession returns ErrNotFound when the user has no session.
	GetSession(ctx context.Context, userID string) (*models.Session, error)

	// UpsertSession creates or replaces the user's session unconditionally.
	// The stored version is the one carried by s.
	UpsertSession(ctx context.Context, s *models.Session) error

	// UpdateSession writes s only if the stored version still equals s.Version.
	// On success the stored version and s.Version are both incremented.
	// A missing row or a mismatched version yields ErrVersionConflict.
	UpdateSession(ctx context.Context, s *models.Session) error

	// DeleteSession is a no-op when no session exists.
	DeleteSession(ctx context.Context, userID string) error

	// DeleteIdleSessions removes sessions last updated before cutoff.
	DeleteIdleSessions(ctx context.Context, cutoff time.Time) (int64, error)

	// CountSessions is used by the health endpoint.
	CountSessions(ctx context.Context) (int64, error)
}

// ReferenceData exposes the package catalogue
type ReferenceData interface {
	// ActivePackages returns active packages ordered by price.
	ActivePackages(ctx context.Context) ([]*models.Package, error)
	GetPackage(ctx context.Context, packageID string) (*models.Package, error)
	CreatePackage(ctx context.Context, p *models.Package) (*models.Package, error)
}

// CustomerDirectory stores registered customers
type CustomerDirectory interface {
	FindCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	// CreateCustomer returns ErrDuplicate when the phone or NRC is taken.
	CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error)
}

// PaymentLedger records bill payments
type PaymentLedger interface {
	CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error)
	// MarkPaymentCompleted completes the payment only while its status is one of
	// from. Unknown ids yield ErrNotFound, any other status ErrStateMismatch.
	MarkPaymentCompleted(ctx context.Context, paymentID string, from ...string) (*models.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	// PendingPayments lists payments not yet completed, oldest first.
	PendingPayments(ctx context.Context) ([]*models.Payment, error)
}

// SpeedTestLog stores diagnostics results
type SpeedTestLog interface {
	SaveSpeedTest(ctx context.Context, t *models.SpeedTest) error
	// RecentSpeedTests returns up to limit results, newest first.
	RecentSpeedTests(ctx context.Context, customerID string, limit int) ([]*models.SpeedTest, error)
}

// SupportDesk stores operators and the conversations they handle
type SupportDesk interface {
	CreateOperator(ctx context.Context, o *models.Operator) (*models.Operator, error)
	GetOperator(ctx context.Context, operatorID string) (*models.Operator, error)
	GetOperatorByEmail(ctx context.Context, email string) (*models.Operator, error)
	UpdateOperatorStatus(ctx context.Context, operatorID, status string, at time.Time) (*models.Operator, error)
	// FindOnlineOperator returns ErrNotFound when nobody is online.
	FindOnlineOperator(ctx context.Context) (*models.Operator, error)

	CreateConversation(ctx context.Context, c *models.ChatConversation) (*models.ChatConversation, error)
	GetConversation(ctx context.Context, conversationID string) (*models.ChatConversation, error)
	// ActiveConversation returns ErrNotFound when the customer is not in a live chat.
	ActiveConversation(ctx context.Context, customerUserID string) (*models.ChatConversation, error)
	ActiveConversationsForOperator(ctx context.Context, operatorID string) ([]*models.ChatConversation, error)
	EndConversation(ctx context.Context, conversationID string, at time.Time) error
	// PendingConversations lists queued conversations, oldest first.
	PendingConversations(ctx context.Context) ([]*models.ChatConversation, error)
	// AssignConversation activates a pending conversation. It returns ErrNotFound
	// when the conversation is unknown or no longer pending.
	AssignConversation(ctx context.Context, conversationID, operatorID string) (*models.ChatConversation, error)

	AppendMessage(ctx context.Context, m *models.ChatMessage) error
	Notify(ctx context.Context, n *models.OperatorNotification) error
}

// Store aggregates every storage capability used by the bot
type Store interface {
	SessionStore
	ReferenceData
	CustomerDirectory
	PaymentLedger
	SpeedTestLog
	SupportDesk

	Ping(ctx context.Context) error
	Close() error
}
