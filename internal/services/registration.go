package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
	"gorm.io/datatypes"
)

// Registration fields, in the order they are asked
const (
	FieldFullName         = "full_name"
	FieldNRCPassport      = "nrc_passport"
	FieldContactNumber    = "contact_number"
	FieldAddress          = "address"
	FieldPackageID        = "package_id"
	FieldInstallationDate = "installation_date"
)

// RegistrationWorkflow collects customer details and creates the customer record
type RegistrationWorkflow struct {
	wizard    *Wizard
	sessions  *SessionManager
	customers storage.CustomerDirectory
	ref       storage.ReferenceData
}

// NewRegistrationWorkflow builds the registration wizard from named validators
func NewRegistrationWorkflow(sessions *SessionManager, validators *ValidatorRegistry, customers storage.CustomerDirectory, ref storage.ReferenceData) (*RegistrationWorkflow, error) {
	plan := []struct {
		field     string
		validator string
		prompt    PromptFunc
	}{
		{FieldFullName, ValidateFullName, StaticPrompt("Please enter your full name:")},
		{FieldNRCPassport, ValidateNRCPassport, StaticPrompt("Please enter your NRC or passport number (e.g. 12/ABC(N)123456):")},
		{FieldContactNumber, ValidateContactNumber, StaticPrompt("Please enter your contact number (e.g. 09123456789):")},
		{FieldAddress, ValidateAddress, StaticPrompt("Please enter your installation address:")},
		{FieldPackageID, ValidatePackage, packagesPrompt(ref)},
		{FieldInstallationDate, ValidateInstallationDate, StaticPrompt("Please enter your preferred installation date (DD-MM-YYYY):")},
	}

	steps := make([]Step, 0, len(plan))
	for _, p := range plan {
		v, err := validators.Lookup(p.validator)
		if err != nil {
			return nil, fmt.Errorf("registration step %s: %w", p.field, err)
		}
		steps = append(steps, Step{Field: p.field, Prompt: p.prompt, Validate: v})
	}
	def, err := NewWizardDefinition(models.WorkflowRegistration, steps...)
	if err != nil {
		return nil, err
	}

	return &RegistrationWorkflow{
		wizard:    NewWizard(def, sessions),
		sessions:  sessions,
		customers: customers,
		ref:       ref,
	}, nil
}

// packagesPrompt lists the active packages; it reads reference data on every render
func packagesPrompt(ref storage.ReferenceData) PromptFunc {
	return func(ctx context.Context) (string, error) {
		packages, err := ref.ActivePackages(ctx)
		if err != nil {
			return "", transient("load packages", err)
		}
		if len(packages) == 0 {
			return "", transient("load packages", errors.New("no active packages"))
		}
		var b strings.Builder
		b.WriteString("Please choose a package by typing its name:\n")
		for i, p := range packages {
			fmt.Fprintf(&b, "\n%d. %s - %s - %s MMK/month", i+1, p.Name, p.Speed, FormatAmount(p.Price))
		}
		return b.String(), nil
	}
}

func (r *RegistrationWorkflow) Kind() models.WorkflowKind { return models.WorkflowRegistration }

func (r *RegistrationWorkflow) Start(ctx context.Context, userID, text string) (string, error) {
	prompt, err := r.wizard.Start(ctx, userID)
	if err != nil {
		return "", err
	}
	log.Printf("📝 Registration started for %s", userID)
	return "📝 Let's get you registered!\n\n" + prompt, nil
}

func (r *RegistrationWorkflow) Resume(ctx context.Context, s *models.Session, text string) (string, error) {
	outcome, err := r.wizard.Advance(ctx, s, text)
	if err != nil {
		if errors.Is(err, ErrCorruptSession) {
			log.Printf("⚠️ Dropping unusable session for %s: %v", s.UserID, err)
			if derr := r.sessions.Delete(ctx, s.UserID); derr != nil {
				log.Printf("❌ Failed to delete session for %s: %v", s.UserID, derr)
			}
			return "", Business("corrupt_session", "Sorry, your registration could not be continued. Type 'register' to start again.")
		}
		return "", err
	}

	switch outcome.Kind {
	case OutcomeCompleted:
		return r.finalize(ctx, s.UserID, outcome.Data), nil
	default:
		return outcome.Prompt, nil
	}
}

func (r *RegistrationWorkflow) Cancel(ctx context.Context, userID string) (string, error) {
	if err := r.sessions.Delete(ctx, userID); err != nil {
		return "", err
	}
	return "Registration cancelled. Type 'register' whenever you want to start again.", nil
}

// finalize creates the customer. The session is removed whatever the result,
// so a failed registration has to be started over.
func (r *RegistrationWorkflow) finalize(ctx context.Context, userID string, data models.SessionData) string {
	defer func() {
		if err := r.sessions.Delete(ctx, userID); err != nil {
			log.Printf("❌ Failed to delete registration session for %s: %v", userID, err)
		}
	}()

	customer := &models.Customer{
		FullName:         data[FieldFullName].Text,
		NRCPassport:      data[FieldNRCPassport].Text,
		ContactNumber:    data[FieldContactNumber].Text,
		Address:          data[FieldAddress].Text,
		PackageID:        data[FieldPackageID].Text,
		InstallationDate: datatypes.Date(data[FieldInstallationDate].Date),
	}

	created, err := r.customers.CreateCustomer(ctx, customer)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			log.Printf("⚠️ Duplicate registration from %s (%s)", userID, customer.ContactNumber)
			return "⚠️ This contact number or NRC is already registered. Please contact support if you need help with your account."
		}
		log.Printf("❌ Failed to create customer for %s: %v", userID, err)
		return MsgContactSupport
	}

	pkgName := created.PackageID
	if pkg, err := r.ref.GetPackage(ctx, created.PackageID); err == nil {
		pkgName = fmt.Sprintf("%s (%s)", pkg.Name, pkg.Speed)
	}
	log.Printf("✅ Customer registered: %s (%s)", created.CustomerID, created.ContactNumber)

	return fmt.Sprintf("✅ Registration complete!\n\nCustomer ID: %s\nName: %s\nPackage: %s\nInstallation date: %s\n\nOur team will contact you to confirm the installation.",
		created.CustomerID, created.FullName, pkgName, data[FieldInstallationDate].String())
}
