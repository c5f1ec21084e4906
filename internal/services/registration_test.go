package services

import (
	"context"
	"testing"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registrationAnswers = []string{
	"Aung Aung",
	"12/ABC(N)123456",
	"09123456789",
	"No. 1, Pyay Road, Yangon",
	"Home",
	"15-01-2025",
}

func TestRegistrationEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reply := env.router.Handle(ctx, testUser, "register")
	assert.Contains(t, reply, "Please enter your full name:")
	s := env.session(t, testUser)
	assert.Equal(t, models.WorkflowRegistration, s.Workflow)
	assert.Equal(t, 0, s.StepIndex)

	reply = env.router.Handle(ctx, testUser, registrationAnswers[0])
	assert.Contains(t, reply, "NRC")
	reply = env.router.Handle(ctx, testUser, registrationAnswers[1])
	assert.Contains(t, reply, "contact number")

	// An invalid phone repeats the same question.
	reply = env.router.Handle(ctx, testUser, "12345")
	assert.Contains(t, reply, MsgInvalidInput)
	assert.Contains(t, reply, "contact number")
	assert.Equal(t, 2, env.session(t, testUser).StepIndex)

	reply = env.router.Handle(ctx, testUser, registrationAnswers[2])
	assert.Contains(t, reply, "address")
	reply = env.router.Handle(ctx, testUser, registrationAnswers[3])
	assert.Contains(t, reply, "1. Home - 10 Mbps - 15,000 MMK/month")
	assert.Contains(t, reply, "3. Premium - 100 Mbps - 80,000 MMK/month")
	reply = env.router.Handle(ctx, testUser, registrationAnswers[4])
	assert.Contains(t, reply, "DD-MM-YYYY")

	s = env.session(t, testUser)
	assert.Equal(t, 5, s.StepIndex)
	assert.ElementsMatch(t, env.registration.wizard.Definition().Fields()[:5], fieldNames(s.Data))

	reply = env.router.Handle(ctx, testUser, registrationAnswers[5])
	assert.Contains(t, reply, "Registration complete")
	assert.Contains(t, reply, "Home (10 Mbps)")
	assert.Contains(t, reply, "15-01-2025")

	env.noSession(t, testUser)
	customer, err := env.store.FindCustomerByPhone(ctx, "09123456789")
	require.NoError(t, err)
	assert.Equal(t, "Aung Aung", customer.FullName)
	assert.Equal(t, "12/ABC(N)123456", customer.NRCPassport)
	assert.Equal(t, "pkg-home", customer.PackageID)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), customer.Installation())
	assert.Zero(t, env.ai.Calls())
}

func TestRegistrationDuplicateIsReported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerCustomer(t, "09123456789", "pkg-home")

	env.router.Handle(ctx, testUser, "register")
	var reply string
	for _, answer := range registrationAnswers {
		reply = env.router.Handle(ctx, testUser, answer)
	}
	assert.Contains(t, reply, "already registered")
	env.noSession(t, testUser)
}

func TestRegistrationCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.router.Handle(ctx, testUser, "register")
	env.router.Handle(ctx, testUser, "Aung Aung")

	reply := env.router.Handle(ctx, testUser, "cancel")
	assert.Contains(t, reply, "Registration cancelled")
	env.noSession(t, testUser)
}

func TestRegistrationRestartResetsProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.router.Handle(ctx, testUser, "register")
	env.router.Handle(ctx, testUser, "Aung Aung")
	require.Equal(t, 1, env.session(t, testUser).StepIndex)

	reply := env.router.Handle(ctx, testUser, "register")
	assert.Contains(t, reply, "Please enter your full name:")
	s := env.session(t, testUser)
	assert.Equal(t, 0, s.StepIndex)
	assert.Empty(t, s.Data)
}

func TestRegistrationPackageMenuFailureKeepsProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.router.Handle(ctx, testUser, "register")
	for _, answer := range registrationAnswers[:3] {
		env.router.Handle(ctx, testUser, answer)
	}
	before := env.session(t, testUser)

	// Reference data failing while rendering the package menu is transient.
	env.registration.wizard.def.steps[4].Prompt = packagesPrompt(failingReference{})

	reply := env.router.Handle(ctx, testUser, registrationAnswers[3])
	assert.Equal(t, MsgTryAgain, reply)
	after := env.session(t, testUser)
	assert.Equal(t, before.StepIndex, after.StepIndex)
	assert.Equal(t, before.Version, after.Version)
}

func TestRegistrationCollectsExactlySixFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.registration.wizard

	_, err := w.Start(ctx, testUser)
	require.NoError(t, err)
	s := env.session(t, testUser)

	var outcome StepOutcome
	for i, answer := range registrationAnswers {
		outcome, err = w.Advance(ctx, s, answer)
		require.NoError(t, err)
		if i < len(registrationAnswers)-1 {
			require.Equal(t, OutcomeNextPrompt, outcome.Kind, "answer %d", i)
			assert.Equal(t, i+1, s.StepIndex)
		}
	}

	require.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.Len(t, outcome.Data, 6)
	assert.ElementsMatch(t, []string{
		FieldFullName, FieldNRCPassport, FieldContactNumber,
		FieldAddress, FieldPackageID, FieldInstallationDate,
	}, fieldNames(outcome.Data))
	assert.Equal(t, "pkg-home", outcome.Data[FieldPackageID].Text)
	assert.Equal(t, models.KindDate, outcome.Data[FieldInstallationDate].Kind)
}

func fieldNames(data models.SessionData) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	return names
}
