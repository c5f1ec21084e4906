package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
)

// PaymentConfirmer completes payments named in "confirm <id>" messages
type PaymentConfirmer interface {
	Confirm(ctx context.Context, userID, paymentID string) (string, error)
}

// HistoryViewer shows past diagnostics results
type HistoryViewer interface {
	History(ctx context.Context, userID string) (string, error)
}

// ChatRelay forwards messages of users in a live operator conversation
type ChatRelay interface {
	Relay(ctx context.Context, userID, text string) (reply string, handled bool, err error)
}

// commandWorkflows maps start commands to the workflow they begin
var commandWorkflows = map[CommandKind]models.WorkflowKind{
	CommandRegister:  models.WorkflowRegistration,
	CommandSpeedTest: models.WorkflowDiagnostics,
	CommandPayment:   models.WorkflowPayment,
	CommandSupport:   models.WorkflowChat,
}

// RouterDeps wires the router
type RouterDeps struct {
	Sessions   *SessionManager
	Workflows  []Workflow
	Payments   PaymentConfirmer
	History    HistoryViewer
	Relay      ChatRelay
	AI         AIResponder
	Outbound   Outbound
	MaxRetries int
}

// Router decides which workflow handles each inbound message
type Router struct {
	sessions   *SessionManager
	workflows  map[models.WorkflowKind]Workflow
	payments   PaymentConfirmer
	history    HistoryViewer
	relay      ChatRelay
	ai         AIResponder
	outbound   Outbound
	maxRetries int
}

// NewRouter checks that every start command has a workflow
func NewRouter(deps RouterDeps) (*Router, error) {
	r := &Router{
		sessions:   deps.Sessions,
		workflows:  make(map[models.WorkflowKind]Workflow, len(deps.Workflows)),
		payments:   deps.Payments,
		history:    deps.History,
		relay:      deps.Relay,
		ai:         deps.AI,
		outbound:   deps.Outbound,
		maxRetries: deps.MaxRetries,
	}
	if r.maxRetries <= 0 {
		r.maxRetries = 3
	}
	for _, wf := range deps.Workflows {
		r.workflows[wf.Kind()] = wf
	}
	for cmd, kind := range commandWorkflows {
		if _, ok := r.workflows[kind]; !ok {
			return nil, fmt.Errorf("no workflow registered for %s (%s)", kind, cmd)
		}
	}
	if r.sessions == nil || r.payments == nil || r.history == nil || r.relay == nil || r.ai == nil || r.outbound == nil {
		return nil, errors.New("router dependencies are incomplete")
	}
	return r, nil
}

// Dispatch handles one message and sends the reply, if any
func (r *Router) Dispatch(ctx context.Context, userID, text string) error {
	reply := r.Handle(ctx, userID, text)
	if reply == "" {
		return nil
	}
	if err := r.outbound.Send(ctx, userID, reply); err != nil {
		log.Printf("❌ Failed to deliver reply to %s: %v", userID, err)
		return err
	}
	return nil
}

// Handle processes one message and returns the reply text. Messages of the
// same user are handled one at a time.
func (r *Router) Handle(ctx context.Context, userID, text string) string {
	unlock := r.sessions.Lock(userID)
	defer unlock()

	reply, err := r.route(ctx, userID, text)
	if err != nil {
		if errors.Is(err, ErrCorruptSession) {
			if derr := r.sessions.Delete(ctx, userID); derr != nil {
				log.Printf("❌ Failed to drop corrupt session of %s: %v", userID, derr)
			}
		}
		log.Printf("❌ Handling message from %s failed: %v", userID, err)
		return UserMessage(err)
	}
	return reply
}

func (r *Router) route(ctx context.Context, userID, text string) (string, error) {
	cmd := Classify(text)
	log.Printf("📨 %s -> %s", userID, cmd.Kind)

	// "confirm <id>" is an exact prefix and never touches a session, so it
	// works during a live chat too.
	if cmd.Kind == CommandConfirmPayment {
		return r.payments.Confirm(ctx, userID, cmd.PaymentID)
	}

	// Everything else from someone talking to a human operator goes to the
	// operator, command words included.
	if reply, handled, err := r.relay.Relay(ctx, userID, text); handled || err != nil {
		return reply, err
	}

	switch cmd.Kind {
	case CommandHistory:
		return r.history.History(ctx, userID)
	case CommandUnknown:
		return r.resume(ctx, userID, text)
	}

	wf := r.workflows[commandWorkflows[cmd.Kind]]
	return wf.Start(ctx, userID, text)
}

// resume hands text to the workflow owning the user's session, reloading
// and retrying when a concurrent write wins the version check.
func (r *Router) resume(ctx context.Context, userID, text string) (string, error) {
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		s, err := r.sessions.Get(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return r.ai.Reply(ctx, text), nil
		}
		if err != nil {
			return "", err
		}

		wf, ok := r.workflows[s.Workflow]
		if !ok {
			log.Printf("⚠️ Session of %s belongs to unknown workflow %s", userID, describe(s))
			if err := r.sessions.Delete(ctx, userID); err != nil {
				return "", err
			}
			return HelpMessage, nil
		}

		if IsCancel(text) {
			return wf.Cancel(ctx, userID)
		}

		reply, err := wf.Resume(ctx, s, text)
		if errors.Is(err, storage.ErrVersionConflict) {
			log.Printf("🔁 Version conflict for %s on attempt %d", userID, attempt)
			continue
		}
		return reply, err
	}
	return "", fmt.Errorf("%w: session of %s kept changing after %d attempts", ErrTransient, userID, r.maxRetries)
}
