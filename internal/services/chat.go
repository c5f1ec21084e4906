package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
)

// FieldInitialQuery holds the question asked before the queue offer
const FieldInitialQuery = "initial_query"

const queueOffer = "All our operators are busy right now. Would you like to wait in the queue for the next available operator? (yes/no)"

var (
	yesWords = map[string]bool{"yes": true, "y": true, "ok": true, "ဟုတ်": true, "ဟုတ်ကဲ့": true}
	noWords  = map[string]bool{"no": true, "n": true, "မဟုတ်": true, "မလိုဘူး": true}
	endWords = map[string]bool{"end": true, "cancel": true, "stop": true, "ပယ်ဖျက်မယ်": true}
)

// ChatWorkflow connects customers with human operators and relays messages
// while a conversation is live.
type ChatWorkflow struct {
	sessions  *SessionManager
	desk      storage.SupportDesk
	customers storage.CustomerDirectory
	ai        AIResponder
	now       Clock
}

// NewChatWorkflow creates the live-support workflow
func NewChatWorkflow(sessions *SessionManager, desk storage.SupportDesk, customers storage.CustomerDirectory, ai AIResponder) *ChatWorkflow {
	return &ChatWorkflow{
		sessions:  sessions,
		desk:      desk,
		customers: customers,
		ai:        ai,
		now:       time.Now,
	}
}

func (c *ChatWorkflow) Kind() models.WorkflowKind { return models.WorkflowChat }

func (c *ChatWorkflow) Start(ctx context.Context, userID, text string) (string, error) {
	if _, err := c.desk.ActiveConversation(ctx, userID); err == nil {
		return "You're already connected to an operator. Type your message, or 'end' to finish the chat.", nil
	}

	op, err := c.desk.FindOnlineOperator(ctx)
	switch {
	case err == nil:
		return c.connect(ctx, userID, op, text)
	case !errors.Is(err, storage.ErrNotFound):
		return "", transient("find operator", err)
	}

	answer := c.ai.Reply(ctx, text)
	data := models.SessionData{FieldInitialQuery: models.StringValue(text)}
	if _, err := c.sessions.Begin(ctx, userID, models.WorkflowChat, data); err != nil {
		return "", err
	}
	return answer + "\n\n" + queueOffer, nil
}

// connect opens a live conversation with op and clears any chat session
func (c *ChatWorkflow) connect(ctx context.Context, userID string, op *models.Operator, query string) (string, error) {
	conv := &models.ChatConversation{
		CustomerUserID: userID,
		CustomerID:     c.customerID(ctx, userID),
		OperatorID:     op.OperatorID,
		Status:         models.ConversationActive,
		InitialQuery:   query,
		StartedAt:      c.now(),
	}
	if _, err := c.desk.CreateConversation(ctx, conv); err != nil {
		return "", transient("create conversation", err)
	}
	if err := c.desk.AppendMessage(ctx, &models.ChatMessage{ConversationID: conv.ID, Sender: models.SenderCustomer, Content: query}); err != nil {
		log.Printf("⚠️ Failed to store opening message of %s: %v", conv.ID, err)
	}
	c.notify(ctx, op.OperatorID, conv.ID, fmt.Sprintf("New chat from %s: %s", userID, query))

	if err := c.sessions.Delete(ctx, userID); err != nil {
		log.Printf("❌ Failed to delete chat session for %s: %v", userID, err)
	}
	log.Printf("💬 Conversation %s opened between %s and operator %s", conv.ID, userID, op.OperatorID)
	return fmt.Sprintf("👩‍💻 You're now connected with %s. Type your message, or 'end' to finish the chat.", op.Name), nil
}

func (c *ChatWorkflow) customerID(ctx context.Context, userID string) string {
	customer, err := c.customers.FindCustomerByPhone(ctx, models.PhoneFromUserID(userID))
	if err != nil {
		return ""
	}
	return customer.CustomerID
}

func (c *ChatWorkflow) notify(ctx context.Context, operatorID, conversationID, msg string) {
	err := c.desk.Notify(ctx, &models.OperatorNotification{
		OperatorID:     operatorID,
		ConversationID: conversationID,
		Message:        msg,
	})
	if err != nil {
		log.Printf("⚠️ Failed to notify operator %s: %v", operatorID, err)
	}
}

// Resume handles the answer to the queue offer
func (c *ChatWorkflow) Resume(ctx context.Context, s *models.Session, text string) (string, error) {
	answer := Normalize(text)
	query := s.Text(FieldInitialQuery)

	switch {
	case yesWords[answer]:
		op, err := c.desk.FindOnlineOperator(ctx)
		if err == nil {
			return c.connect(ctx, s.UserID, op, query)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", transient("find operator", err)
		}
		return c.enqueue(ctx, s.UserID, query)
	case noWords[answer]:
		if err := c.sessions.Delete(ctx, s.UserID); err != nil {
			return "", err
		}
		return "No problem. Type 'support' any time you need help.", nil
	default:
		return "Please reply 'yes' to wait for an operator or 'no' to continue without one.", nil
	}
}

// enqueue records a pending conversation for the next operator to accept
func (c *ChatWorkflow) enqueue(ctx context.Context, userID, query string) (string, error) {
	conv := &models.ChatConversation{
		CustomerUserID: userID,
		CustomerID:     c.customerID(ctx, userID),
		Status:         models.ConversationPending,
		InitialQuery:   query,
		StartedAt:      c.now(),
	}
	if _, err := c.desk.CreateConversation(ctx, conv); err != nil {
		return "", transient("queue conversation", err)
	}
	if err := c.sessions.Delete(ctx, userID); err != nil {
		log.Printf("❌ Failed to delete chat session for %s: %v", userID, err)
	}
	log.Printf("🕐 Conversation %s queued for %s", conv.ID, userID)
	return "🕐 You're in the queue. An operator will message you here as soon as one is available.", nil
}

// Relay forwards a message to the operator of the user's live conversation.
// handled is false when the user is not in a live chat.
func (c *ChatWorkflow) Relay(ctx context.Context, userID, text string) (reply string, handled bool, err error) {
	conv, err := c.desk.ActiveConversation(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", false, nil
		}
		return "", true, transient("find conversation", err)
	}

	if endWords[Normalize(text)] {
		if err := c.desk.EndConversation(ctx, conv.ID, c.now()); err != nil {
			return "", true, transient("end conversation", err)
		}
		c.notify(ctx, conv.OperatorID, conv.ID, "Customer ended the chat")
		log.Printf("👋 Conversation %s ended by %s", conv.ID, userID)
		return "Chat ended. Thank you for contacting MMLink support!", true, nil
	}

	msg := &models.ChatMessage{ConversationID: conv.ID, Sender: models.SenderCustomer, Content: text}
	if err := c.desk.AppendMessage(ctx, msg); err != nil {
		return "", true, transient("store message", err)
	}
	c.notify(ctx, conv.OperatorID, conv.ID, fmt.Sprintf("New message from %s", userID))
	return "", true, nil
}

func (c *ChatWorkflow) Cancel(ctx context.Context, userID string) (string, error) {
	if err := c.sessions.Delete(ctx, userID); err != nil {
		return "", err
	}
	return "Support request cancelled. Type 'support' any time you need help.", nil
}
