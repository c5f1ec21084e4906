package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Payment session fields
const (
	FieldCustomerID = "customer_id"
	FieldAmount     = "amount"
	FieldPackage    = "package"
	FieldPaymentID  = "payment_id"
	FieldMethod     = "method"
)

// Payment session steps
const (
	paymentStepChooseMethod = 0
	paymentStepAwaitConfirm = 1
)

// DefaultPaymentMethods is the payment menu in display order
var DefaultPaymentMethods = []models.PaymentMethod{
	{ID: "wave", Name: "Wave Money", Instructions: "Send the amount to Wave Money account 09 777 123 456 (MMLink ISP)."},
	{ID: "kbzpay", Name: "KBZ Pay", Instructions: "Send the amount to KBZ Pay account 09 777 123 457 (MMLink ISP)."},
	{ID: "ayapay", Name: "AYA Pay", Instructions: "Send the amount to AYA Pay account 09 777 123 458 (MMLink ISP)."},
	{ID: models.PaymentMethodCash, Name: "Cash", Instructions: "Pay at any MMLink service office during business hours."},
}

// FormatAmount renders an amount with thousands separators, e.g. 15,000
func FormatAmount(amount float64) string {
	return message.NewPrinter(language.English).Sprintf("%.0f", amount)
}

// PaymentWorkflow lets a registered customer pay their monthly bill
type PaymentWorkflow struct {
	sessions  *SessionManager
	customers storage.CustomerDirectory
	ref       storage.ReferenceData
	ledger    storage.PaymentLedger
	methods   []models.PaymentMethod
	newID     func() string
}

// NewPaymentWorkflow creates the payment workflow with the default menu
func NewPaymentWorkflow(sessions *SessionManager, customers storage.CustomerDirectory, ref storage.ReferenceData, ledger storage.PaymentLedger) *PaymentWorkflow {
	return &PaymentWorkflow{
		sessions:  sessions,
		customers: customers,
		ref:       ref,
		ledger:    ledger,
		methods:   DefaultPaymentMethods,
		newID: func() string {
			return fmt.Sprintf("pay_%d", time.Now().UnixNano())
		},
	}
}

func (p *PaymentWorkflow) Kind() models.WorkflowKind { return models.WorkflowPayment }

func (p *PaymentWorkflow) Start(ctx context.Context, userID, text string) (string, error) {
	customer, err := p.customers.FindCustomerByPhone(ctx, models.PhoneFromUserID(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return MsgRegisterFirst, nil
		}
		return "", transient("find customer", err)
	}

	pkg, err := p.ref.GetPackage(ctx, customer.PackageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", Business("package_missing", "We couldn't find your subscription package. Please contact support.")
		}
		return "", transient("get package", err)
	}

	data := models.SessionData{
		FieldCustomerID: models.StringValue(customer.CustomerID),
		FieldAmount:     models.NumberValue(pkg.Price),
		FieldPackage:    models.StringValue(pkg.Name),
	}
	if _, err := p.sessions.Begin(ctx, userID, models.WorkflowPayment, data); err != nil {
		return "", err
	}

	log.Printf("💳 Payment started for %s (%s MMK)", customer.CustomerID, FormatAmount(pkg.Price))
	return p.menu(pkg.Name, pkg.Price), nil
}

func (p *PaymentWorkflow) menu(pkgName string, amount float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💳 Monthly bill for %s: %s MMK\n\nChoose a payment method:\n", pkgName, FormatAmount(amount))
	for i, m := range p.methods {
		fmt.Fprintf(&b, "\n%d. %s", i+1, m.Name)
	}
	b.WriteString("\n\nReply with the number of your choice.")
	return b.String()
}

func (p *PaymentWorkflow) Resume(ctx context.Context, s *models.Session, text string) (string, error) {
	switch s.StepIndex {
	case paymentStepChooseMethod:
		return p.chooseMethod(ctx, s, text)
	case paymentStepAwaitConfirm:
		id := s.Text(FieldPaymentID)
		return fmt.Sprintf("We're waiting for your payment confirmation.\n\nAfter paying, reply: confirm %s\nType 'cancel' to stop.", id), nil
	}

	log.Printf("⚠️ Dropping unusable payment session %s", describe(s))
	if err := p.sessions.Delete(ctx, s.UserID); err != nil {
		return "", err
	}
	return "", Business("corrupt_session", "Sorry, your payment could not be continued. Type 'pay' to start again.")
}

func (p *PaymentWorkflow) chooseMethod(ctx context.Context, s *models.Session, text string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(p.methods) {
		return "", Business("invalid_selection", fmt.Sprintf("Invalid selection. Please reply with a number from 1 to %d.", len(p.methods)))
	}
	method := p.methods[n-1]

	amount, err := s.Number(FieldAmount)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	customerID := s.Text(FieldCustomerID)

	if method.IsCash() {
		payment := &models.Payment{
			ID:         uuid.NewString(),
			CustomerID: customerID,
			Amount:     amount,
			Method:     method.ID,
			Status:     models.PaymentStatusPendingVerification,
		}
		if _, err := p.ledger.CreatePayment(ctx, payment); err != nil {
			return "", transient("create payment", err)
		}
		if err := p.sessions.Delete(ctx, s.UserID); err != nil {
			log.Printf("❌ Failed to delete payment session for %s: %v", s.UserID, err)
		}
		log.Printf("💵 Cash payment %s recorded for %s", payment.ID, customerID)
		return fmt.Sprintf("💵 Cash payment selected.\n\n%s\n\nAmount: %s MMK\nReference: %s\n\nOur staff will verify your payment.",
			method.Instructions, FormatAmount(amount), payment.ID), nil
	}

	// Claim the selection first; a lost race writes nothing to the ledger.
	paymentID := p.newID()
	next := s.Clone()
	next.StepIndex = paymentStepAwaitConfirm
	next.Data[FieldPaymentID] = models.StringValue(paymentID)
	next.Data[FieldMethod] = models.StringValue(method.ID)
	if err := p.sessions.Update(ctx, next); err != nil {
		return "", err
	}
	*s = *next

	payment := &models.Payment{
		ID:         paymentID,
		CustomerID: customerID,
		Amount:     amount,
		Method:     method.ID,
		Status:     models.PaymentStatusPending,
	}
	if _, err := p.ledger.CreatePayment(ctx, payment); err != nil {
		if derr := p.sessions.Delete(ctx, s.UserID); derr != nil {
			log.Printf("❌ Failed to roll back payment session for %s: %v", s.UserID, derr)
		}
		return "", transient("create payment", err)
	}

	log.Printf("💳 Payment %s created for %s via %s", paymentID, customerID, method.Name)
	return fmt.Sprintf("📲 %s selected.\n\n%s\n\nAmount: %s MMK\nPayment ID: %s\n\nAfter paying, reply: confirm %s",
		method.Name, method.Instructions, FormatAmount(amount), paymentID, paymentID), nil
}

// errUnknownPayment is the reply for ids that do not exist or belong to someone else
var errUnknownPayment = Business("unknown_payment", "Invalid payment ID. Please check and try again.")

// Confirm completes a pending payment of the sender and clears their payment
// session. Cash payments are completed by staff, never by the customer.
func (p *PaymentWorkflow) Confirm(ctx context.Context, userID, paymentID string) (string, error) {
	payment, err := p.ledger.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", errUnknownPayment
		}
		return "", transient("get payment", err)
	}

	customer, err := p.customers.FindCustomerByPhone(ctx, models.PhoneFromUserID(userID))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", transient("find customer", err)
	}
	if customer == nil || customer.CustomerID != payment.CustomerID {
		log.Printf("⚠️ %s tried to confirm payment %s of another customer", userID, paymentID)
		return "", errUnknownPayment
	}

	if err := confirmable(payment.Status); err != nil {
		return "", err
	}

	payment, err = p.ledger.MarkPaymentCompleted(ctx, paymentID, models.PaymentStatusPending)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return "", errUnknownPayment
		case errors.Is(err, storage.ErrStateMismatch):
			// Completed by someone else since we read it
			return "", confirmable(models.PaymentStatusCompleted)
		}
		return "", transient("complete payment", err)
	}
	if err := p.sessions.Delete(ctx, userID); err != nil {
		log.Printf("❌ Failed to delete payment session for %s: %v", userID, err)
	}

	log.Printf("✅ Payment %s confirmed by %s", payment.ID, userID)
	return fmt.Sprintf("✅ Payment confirmed!\n\nPayment ID: %s\nAmount: %s MMK\n\nThank you for your payment.", payment.ID, FormatAmount(payment.Amount)), nil
}

// confirmable reports why a customer may not confirm a payment in status
func confirmable(status string) error {
	switch status {
	case models.PaymentStatusPending:
		return nil
	case models.PaymentStatusPendingVerification:
		return Business("awaiting_verification", "This payment is waiting for verification by our staff. We'll message you once it's received.")
	case models.PaymentStatusCompleted:
		return Business("already_completed", "This payment has already been confirmed.")
	}
	return errUnknownPayment
}

func (p *PaymentWorkflow) Cancel(ctx context.Context, userID string) (string, error) {
	if err := p.sessions.Delete(ctx, userID); err != nil {
		return "", err
	}
	return "Payment cancelled. Type 'pay' whenever you're ready.", nil
}
