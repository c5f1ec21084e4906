package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentRequiresRegistration(t *testing.T) {
	env := newTestEnv(t)

	reply := env.router.Handle(context.Background(), testUser, "pay")
	assert.Equal(t, MsgRegisterFirst, reply)
	env.noSession(t, testUser)
}

func TestPaymentMobileMoneyFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.registerCustomer(t, "09123456789", "pkg-home")

	reply := env.router.Handle(ctx, testUser, "pay")
	assert.Contains(t, reply, "15,000 MMK")
	assert.Contains(t, reply, "1. Wave Money")
	assert.Contains(t, reply, "4. Cash")

	s := env.session(t, testUser)
	assert.Equal(t, models.WorkflowPayment, s.Workflow)
	assert.Equal(t, customer.CustomerID, s.Text(FieldCustomerID))
	amount, err := s.Number(FieldAmount)
	require.NoError(t, err)
	assert.Equal(t, 15000.0, amount)

	reply = env.router.Handle(ctx, testUser, "2")
	assert.Contains(t, reply, "KBZ Pay selected")

	s = env.session(t, testUser)
	assert.Equal(t, 1, s.StepIndex)
	paymentID := s.Text(FieldPaymentID)
	require.True(t, strings.HasPrefix(paymentID, "pay_"), paymentID)

	p, err := env.store.GetPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, "kbzpay", p.Method)
	assert.Equal(t, 15000.0, p.Amount)

	reply = env.router.Handle(ctx, testUser, "done")
	assert.Contains(t, reply, "confirm "+paymentID)

	reply = env.router.Handle(ctx, testUser, "confirm "+paymentID)
	assert.Contains(t, reply, "Payment confirmed")

	p, err = env.store.GetPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.NotNil(t, p.CompletedAt)
	env.noSession(t, testUser)
}

func TestPaymentInvalidSelection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerCustomer(t, "09123456789", "pkg-home")

	env.router.Handle(ctx, testUser, "pay")
	before := env.session(t, testUser)

	reply := env.router.Handle(ctx, testUser, "5")
	assert.Equal(t, "Invalid selection. Please reply with a number from 1 to 4.", reply)

	after := env.session(t, testUser)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.StepIndex, after.StepIndex)
	assert.Equal(t, before.Data, after.Data)
	assert.Empty(t, env.store.Payments())
}

func TestPaymentCash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.registerCustomer(t, "09123456789", "pkg-business")

	env.router.Handle(ctx, testUser, "pay")
	reply := env.router.Handle(ctx, testUser, "4")
	assert.Contains(t, reply, "Cash payment selected")
	assert.Contains(t, reply, "50,000 MMK")

	payments := env.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusPendingVerification, payments[0].Status)
	assert.Equal(t, customer.CustomerID, payments[0].CustomerID)
	env.noSession(t, testUser)
}

func TestConfirmUnknownPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerCustomer(t, "09123456789", "pkg-home")

	env.router.Handle(ctx, testUser, "pay")
	env.router.Handle(ctx, testUser, "1")
	before := env.store.Payments()
	require.Len(t, before, 1)

	reply := env.router.Handle(ctx, testUser, "confirm pay_1699999999")
	assert.Equal(t, "Invalid payment ID. Please check and try again.", reply)
	assert.Equal(t, before, env.store.Payments())
	assert.Equal(t, 1, env.session(t, testUser).StepIndex)
}

func TestConfirmCashPaymentIsRefused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerCustomer(t, "09123456789", "pkg-business")

	env.router.Handle(ctx, testUser, "pay")
	env.router.Handle(ctx, testUser, "4")
	payments := env.store.Payments()
	require.Len(t, payments, 1)
	cashID := payments[0].ID

	reply := env.router.Handle(ctx, testUser, "confirm "+cashID)
	assert.Contains(t, reply, "waiting for verification")
	assert.NotContains(t, reply, "Payment confirmed")

	p, err := env.store.GetPayment(ctx, cashID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPendingVerification, p.Status)
	assert.Nil(t, p.CompletedAt)
}

func TestConfirmTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerCustomer(t, "09123456789", "pkg-home")

	env.router.Handle(ctx, testUser, "pay")
	env.router.Handle(ctx, testUser, "1")
	paymentID := env.session(t, testUser).Text(FieldPaymentID)

	reply := env.router.Handle(ctx, testUser, "confirm "+paymentID)
	require.Contains(t, reply, "Payment confirmed")
	first, err := env.store.GetPayment(ctx, paymentID)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)

	env.store.SetClock(func() time.Time { return fixedNow().Add(time.Hour) })
	reply = env.router.Handle(ctx, testUser, "confirm "+paymentID)
	assert.Equal(t, "This payment has already been confirmed.", reply)

	second, err := env.store.GetPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, *first.CompletedAt, *second.CompletedAt)
}

func TestConfirmSomeoneElsesPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerCustomer(t, "09123456789", "pkg-home")
	const stranger = "whatsapp:+959000000001"

	env.router.Handle(ctx, testUser, "pay")
	env.router.Handle(ctx, testUser, "1")
	paymentID := env.session(t, testUser).Text(FieldPaymentID)

	reply := env.router.Handle(ctx, stranger, "confirm "+paymentID)
	assert.Equal(t, "Invalid payment ID. Please check and try again.", reply)

	p, err := env.store.GetPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, 1, env.session(t, testUser).StepIndex)

	// The owner can still confirm it
	reply = env.router.Handle(ctx, testUser, "confirm "+paymentID)
	assert.Contains(t, reply, "Payment confirmed")
	env.noSession(t, testUser)
}

func TestPaymentCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerCustomer(t, "09123456789", "pkg-home")

	env.router.Handle(ctx, testUser, "pay")
	reply := env.router.Handle(ctx, testUser, "stop")
	assert.Contains(t, reply, "Payment cancelled")
	env.noSession(t, testUser)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "15,000", FormatAmount(15000))
	assert.Equal(t, "800", FormatAmount(800))
	assert.Equal(t, "1,250,000", FormatAmount(1250000))
}
