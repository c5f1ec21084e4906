package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Operator status values
const (
	OperatorOnline  = "online"
	OperatorOffline = "offline"
	OperatorBusy    = "busy"
)

// Conversation status values
const (
	ConversationPending = "pending"
	ConversationActive  = "active"
	ConversationEnded   = "ended"
)

// Message sender types
const (
	SenderCustomer = "customer"
	SenderOperator = "operator"
)

// Operator is a human support agent
type Operator struct {
	gorm.Model
	OperatorID   string     `json:"operator_id" gorm:"uniqueIndex"`
	Name         string     `json:"name" gorm:"not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Status       string     `json:"status" gorm:"default:'offline';index"`
	LastActive   *time.Time `json:"last_active"`
}

func (o *Operator) BeforeCreate(tx *gorm.DB) error {
	if o.OperatorID == "" {
		o.OperatorID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OperatorOffline
	}
	return nil
}

// ChatConversation bridges a customer and an operator outside the session store
type ChatConversation struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	CustomerUserID string     `json:"customer_user_id" gorm:"index;not null"`
	CustomerID     string     `json:"customer_id"`
	OperatorID     string     `json:"operator_id" gorm:"index"`
	Status         string     `json:"status" gorm:"default:'pending';index"`
	InitialQuery   string     `json:"initial_query"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
}

func (c *ChatConversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
	return nil
}

// ChatMessage is one relayed message of a conversation
type ChatMessage struct {
	gorm.Model
	ConversationID string `json:"conversation_id" gorm:"index;not null"`
	Sender         string `json:"sender_type" gorm:"not null"`
	Content        string `json:"content" gorm:"not null"`
}

// OperatorNotification tells an operator that a conversation needs attention
type OperatorNotification struct {
	gorm.Model
	OperatorID     string `json:"operator_id" gorm:"index;not null"`
	ConversationID string `json:"conversation_id" gorm:"index"`
	Message        string `json:"message"`
	IsRead         bool   `json:"is_read" gorm:"default:false"`
}
