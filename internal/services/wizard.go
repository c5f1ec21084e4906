package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mmlink/ispbot-backend/internal/models"
)

// PromptFunc renders the question asked for a step
type PromptFunc func(ctx context.Context) (string, error)

// StaticPrompt returns a PromptFunc for fixed text
func StaticPrompt(text string) PromptFunc {
	return func(context.Context) (string, error) { return text, nil }
}

// Step is one field collected by a wizard
type Step struct {
	Field    string
	Prompt   PromptFunc
	Validate Validator
}

// WizardDefinition is an ordered, non-empty list of steps
type WizardDefinition struct {
	kind  models.WorkflowKind
	steps []Step
}

// NewWizardDefinition validates the steps. Fields must be unique and every
// step needs a prompt and a validator.
func NewWizardDefinition(kind models.WorkflowKind, steps ...Step) (*WizardDefinition, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("wizard %s: no steps", kind)
	}
	seen := make(map[string]bool, len(steps))
	for i, st := range steps {
		if st.Field == "" {
			return nil, fmt.Errorf("wizard %s: step %d has no field", kind, i)
		}
		if seen[st.Field] {
			return nil, fmt.Errorf("wizard %s: duplicate field %s", kind, st.Field)
		}
		if st.Prompt == nil || st.Validate == nil {
			return nil, fmt.Errorf("wizard %s: step %s needs a prompt and a validator", kind, st.Field)
		}
		seen[st.Field] = true
	}
	return &WizardDefinition{kind: kind, steps: steps}, nil
}

// Kind returns the owning workflow
func (d *WizardDefinition) Kind() models.WorkflowKind { return d.kind }

// Len returns the number of steps
func (d *WizardDefinition) Len() int { return len(d.steps) }

// Fields returns the field names in step order
func (d *WizardDefinition) Fields() []string {
	out := make([]string, len(d.steps))
	for i, st := range d.steps {
		out[i] = st.Field
	}
	return out
}

// OutcomeKind says what Advance did with an input
type OutcomeKind int

const (
	OutcomeNextPrompt OutcomeKind = iota
	OutcomeRejected
	OutcomeCompleted
)

// StepOutcome is the result of feeding one input to a wizard
type StepOutcome struct {
	Kind   OutcomeKind
	Prompt string             // next prompt, or the rejection notice with the repeated prompt
	Data   models.SessionData // all collected fields, set on OutcomeCompleted
}

// Wizard drives a WizardDefinition against the session store
type Wizard struct {
	def      *WizardDefinition
	sessions *SessionManager
}

// NewWizard creates a wizard
func NewWizard(def *WizardDefinition, sessions *SessionManager) *Wizard {
	return &Wizard{def: def, sessions: sessions}
}

// Definition returns the wizard's steps
func (w *Wizard) Definition() *WizardDefinition { return w.def }

// Start resets the user's session to step 0 and returns the first prompt
func (w *Wizard) Start(ctx context.Context, userID string) (string, error) {
	if _, err := w.sessions.Begin(ctx, userID, w.def.kind, nil); err != nil {
		return "", err
	}
	return w.prompt(ctx, 0)
}

// Advance validates input against the session's current step.
//
// A rejection writes nothing. An accepted input is committed with a
// conditional write; storage.ErrVersionConflict means another message for the
// same user won and the caller should reload the session.
func (w *Wizard) Advance(ctx context.Context, s *models.Session, input string) (StepOutcome, error) {
	if s.Workflow != w.def.kind || s.StepIndex < 0 || s.StepIndex >= len(w.def.steps) {
		return StepOutcome{}, fmt.Errorf("%w: %s for wizard %s", ErrCorruptSession, describe(s), w.def.kind)
	}
	step := w.def.steps[s.StepIndex]

	value, err := step.Validate(ctx, input)
	if err != nil {
		if !IsRejection(err) {
			return StepOutcome{}, err
		}
		log.Printf("🔁 %s rejected %s for %s: %v", w.def.kind, step.Field, s.UserID, err)
		again, perr := w.prompt(ctx, s.StepIndex)
		if perr != nil {
			return StepOutcome{}, perr
		}
		return StepOutcome{Kind: OutcomeRejected, Prompt: MsgInvalidInput + "\n\n" + again}, nil
	}

	next := s.Clone()
	next.Data[step.Field] = value
	last := s.StepIndex == len(w.def.steps)-1

	var prompt string
	if !last {
		next.StepIndex++
		// Render before writing so a failed render leaves the session untouched.
		if prompt, err = w.prompt(ctx, next.StepIndex); err != nil {
			return StepOutcome{}, err
		}
	}

	if err := w.sessions.Update(ctx, next); err != nil {
		return StepOutcome{}, err
	}
	*s = *next

	if last {
		return StepOutcome{Kind: OutcomeCompleted, Data: next.Data.Clone()}, nil
	}
	return StepOutcome{Kind: OutcomeNextPrompt, Prompt: prompt}, nil
}

func (w *Wizard) prompt(ctx context.Context, index int) (string, error) {
	text, err := w.def.steps[index].Prompt(ctx)
	if err != nil {
		if errors.Is(err, ErrTransient) {
			return "", err
		}
		return "", transient("render prompt "+w.def.steps[index].Field, err)
	}
	return text, nil
}
