package services

import (
	"context"

	"github.com/mmlink/ispbot-backend/internal/models"
)

// Workflow is one conversational process the router can hand a user to
type Workflow interface {
	Kind() models.WorkflowKind

	// Start begins the workflow, replacing whatever session the user had.
	Start(ctx context.Context, userID, text string) (string, error)

	// Resume continues from a session the workflow owns. It may return
	// storage.ErrVersionConflict, in which case the router reloads and retries.
	Resume(ctx context.Context, s *models.Session, text string) (string, error)

	// Cancel abandons the workflow for the user.
	Cancel(ctx context.Context, userID string) (string, error)
}

// Outbound delivers a message to a user on the chat channel
type Outbound interface {
	Send(ctx context.Context, userID, text string) error
}

// OutboundFunc adapts a function to Outbound
type OutboundFunc func(ctx context.Context, userID, text string) error

func (f OutboundFunc) Send(ctx context.Context, userID, text string) error {
	return f(ctx, userID, text)
}
