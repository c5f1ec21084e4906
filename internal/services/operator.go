package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned when an operator token cannot be verified
	ErrInvalidToken = errors.New("invalid or expired token")
)

// OperatorClaims is the JWT payload issued to operators
type OperatorClaims struct {
	OperatorID string `json:"operator_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// OperatorService backs the operator console API
type OperatorService struct {
	desk      storage.SupportDesk
	customers storage.CustomerDirectory
	ledger    storage.PaymentLedger
	outbound  Outbound
	secret    []byte
	ttl       time.Duration
	now       Clock
}

// NewOperatorService creates the operator service
func NewOperatorService(desk storage.SupportDesk, customers storage.CustomerDirectory, ledger storage.PaymentLedger, outbound Outbound, secret string, ttl time.Duration) *OperatorService {
	return &OperatorService{
		desk:      desk,
		customers: customers,
		ledger:    ledger,
		outbound:  outbound,
		secret:    []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Register creates an operator account
func (s *OperatorService) Register(ctx context.Context, name, email, password string) (*models.Operator, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, Business("invalid_name", "Name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, Business("invalid_email", "A valid email is required")
	}
	if len(password) < 8 {
		return nil, Business("weak_password", "Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	op, err := s.desk.CreateOperator(ctx, &models.Operator{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Status:       models.OperatorOffline,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, Business("email_taken", "An operator with this email already exists")
		}
		return nil, err
	}
	log.Printf("👤 Operator registered: %s (%s)", op.OperatorID, op.Email)
	return op, nil
}

// Login verifies credentials and issues a signed token
func (s *OperatorService) Login(ctx context.Context, email, password string) (string, *models.Operator, error) {
	op, err := s.desk.GetOperatorByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := OperatorClaims{
		OperatorID: op.OperatorID,
		Email:      op.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.OperatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, op, nil
}

// ParseToken verifies a bearer token and returns its claims
func (s *OperatorService) ParseToken(raw string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid || claims.OperatorID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UpdateStatus sets the operator's availability
func (s *OperatorService) UpdateStatus(ctx context.Context, operatorID, status string) (*models.Operator, error) {
	switch status {
	case models.OperatorOnline, models.OperatorOffline, models.OperatorBusy:
	default:
		return nil, Business("invalid_status", "Status must be online, offline or busy")
	}
	return s.desk.UpdateOperatorStatus(ctx, operatorID, status, s.now())
}

// ActiveChats lists the operator's live conversations
func (s *OperatorService) ActiveChats(ctx context.Context, operatorID string) ([]*models.ChatConversation, error) {
	return s.desk.ActiveConversationsForOperator(ctx, operatorID)
}

// PendingChats lists queued conversations waiting for an operator
func (s *OperatorService) PendingChats(ctx context.Context) ([]*models.ChatConversation, error) {
	return s.desk.PendingConversations(ctx)
}

// AcceptChat assigns a queued conversation to the operator and tells the customer
func (s *OperatorService) AcceptChat(ctx context.Context, operatorID, conversationID string) (*models.ChatConversation, error) {
	op, err := s.desk.GetOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	conv, err := s.desk.AssignConversation(ctx, conversationID, operatorID)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("👩‍💻 %s from MMLink support has joined the chat. Type your message, or 'end' to finish the chat.", op.Name)
	if err := s.outbound.Send(ctx, conv.CustomerUserID, msg); err != nil {
		log.Printf("⚠️ Failed to tell %s about accepted chat: %v", conv.CustomerUserID, err)
	}
	log.Printf("💬 Operator %s accepted conversation %s", operatorID, conv.ID)
	return conv, nil
}

// ownedConversation loads a live conversation assigned to operatorID
func (s *OperatorService) ownedConversation(ctx context.Context, operatorID, conversationID string) (*models.ChatConversation, error) {
	conv, err := s.desk.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.OperatorID != operatorID || conv.Status != models.ConversationActive {
		return nil, storage.ErrNotFound
	}
	return conv, nil
}

// SendMessage relays an operator message to the customer
func (s *OperatorService) SendMessage(ctx context.Context, operatorID, conversationID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return Business("empty_message", "Message is required")
	}
	conv, err := s.ownedConversation(ctx, operatorID, conversationID)
	if err != nil {
		return err
	}
	if err := s.desk.AppendMessage(ctx, &models.ChatMessage{ConversationID: conv.ID, Sender: models.SenderOperator, Content: content}); err != nil {
		return err
	}
	return s.outbound.Send(ctx, conv.CustomerUserID, "Operator: "+content)
}

// EndChat closes a conversation from the operator side
func (s *OperatorService) EndChat(ctx context.Context, operatorID, conversationID string) error {
	conv, err := s.ownedConversation(ctx, operatorID, conversationID)
	if err != nil {
		return err
	}
	if err := s.desk.EndConversation(ctx, conv.ID, s.now()); err != nil {
		return err
	}
	if err := s.outbound.Send(ctx, conv.CustomerUserID, "The operator has ended this chat. Thank you for contacting MMLink support!"); err != nil {
		log.Printf("⚠️ Failed to tell %s the chat ended: %v", conv.CustomerUserID, err)
	}
	return nil
}

// Customer returns a customer's record for the console
func (s *OperatorService) Customer(ctx context.Context, customerID string) (*models.Customer, error) {
	return s.customers.GetCustomer(ctx, customerID)
}

// PendingPayments lists payments awaiting confirmation or cash verification
func (s *OperatorService) PendingPayments(ctx context.Context) ([]*models.Payment, error) {
	return s.ledger.PendingPayments(ctx)
}

// Payment returns one ledger entry
func (s *OperatorService) Payment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.ledger.GetPayment(ctx, paymentID)
}

// VerifyPayment completes a payment checked by staff, typically cash, and
// tells the customer.
func (s *OperatorService) VerifyPayment(ctx context.Context, operatorID, paymentID string) (*models.Payment, error) {
	p, err := s.ledger.MarkPaymentCompleted(ctx, paymentID,
		models.PaymentStatusPending, models.PaymentStatusPendingVerification)
	if err != nil {
		if errors.Is(err, storage.ErrStateMismatch) {
			return nil, Business("already_completed", "Payment is already completed")
		}
		return nil, err
	}
	log.Printf("✅ Payment %s verified by operator %s", p.ID, operatorID)

	customer, err := s.customers.GetCustomer(ctx, p.CustomerID)
	if err != nil {
		log.Printf("⚠️ Payment %s verified but customer %s not found: %v", p.ID, p.CustomerID, err)
		return p, nil
	}
	msg := fmt.Sprintf("✅ Your payment of %s MMK (ref %s) has been received. Thank you!", FormatAmount(p.Amount), p.ID)
	if err := s.outbound.Send(ctx, models.UserIDFromPhone(customer.ContactNumber), msg); err != nil {
		log.Printf("⚠️ Failed to notify %s about payment %s: %v", customer.CustomerID, p.ID, err)
	}
	return p, nil
}
