package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
	"github.com/stretchr/testify/require"
)

const testUser = "whatsapp:+959123456789"

var yangon = mustLocation("Asia/Yangon")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// fixedNow is 10 January 2025, 10:00 in Yangon
func fixedNow() time.Time {
	return time.Date(2025, 1, 10, 10, 0, 0, 0, yangon)
}

type sentMessage struct {
	UserID string
	Text   string
}

// recordingOutbound captures outbound messages
type recordingOutbound struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (o *recordingOutbound) Send(ctx context.Context, userID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, sentMessage{UserID: userID, Text: text})
	return nil
}

func (o *recordingOutbound) Messages() []sentMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sentMessage(nil), o.sent...)
}

// countingAI returns a fixed answer and counts calls
type countingAI struct {
	mu     sync.Mutex
	answer string
	calls  int
}

func (a *countingAI) Reply(ctx context.Context, text string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.answer
}

func (a *countingAI) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// stubMeter returns a canned result or error
type stubMeter struct {
	result *SpeedResult
	err    error
	calls  int
}

func (m *stubMeter) Measure(ctx context.Context) (*SpeedResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// countingSessions wraps a session store and counts writes
type countingSessions struct {
	storage.SessionStore
	mu     sync.Mutex
	writes int
}

func (c *countingSessions) bump() {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
}

func (c *countingSessions) UpsertSession(ctx context.Context, s *models.Session) error {
	c.bump()
	return c.SessionStore.UpsertSession(ctx, s)
}

func (c *countingSessions) UpdateSession(ctx context.Context, s *models.Session) error {
	c.bump()
	return c.SessionStore.UpdateSession(ctx, s)
}

func (c *countingSessions) DeleteSession(ctx context.Context, userID string) error {
	c.bump()
	return c.SessionStore.DeleteSession(ctx, userID)
}

func (c *countingSessions) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// testEnv wires every workflow against a memory store
type testEnv struct {
	store        *storage.MemoryStore
	sessionStore *countingSessions
	sessions     *SessionManager
	outbound     *recordingOutbound
	ai           *countingAI
	meter        *stubMeter
	registration *RegistrationWorkflow
	payment      *PaymentWorkflow
	diagnostics  *DiagnosticsWorkflow
	chat         *ChatWorkflow
	operators    *OperatorService
	router       *Router
}

func seedPackages(t *testing.T, store storage.ReferenceData) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []*models.Package{
		{PackageID: "pkg-home", Name: "Home", Speed: "10 Mbps", Price: 15000, IsActive: true},
		{PackageID: "pkg-business", Name: "Business", Speed: "50 Mbps", Price: 50000, IsActive: true},
		{PackageID: "pkg-premium", Name: "Premium", Speed: "100 Mbps", Price: 80000, IsActive: true},
	} {
		_, err := store.CreatePackage(ctx, p)
		require.NoError(t, err)
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	store.SetClock(fixedNow)
	seedPackages(t, store)

	counted := &countingSessions{SessionStore: store}
	sessions := NewSessionManager(counted, time.Second)
	outbound := &recordingOutbound{}
	ai := &countingAI{answer: "Our office hours are 9am to 5pm."}
	meter := &stubMeter{result: &SpeedResult{DownloadMbps: 80, UploadMbps: 40, PingMs: 12, Server: "Yangon"}}

	registration, err := NewRegistrationWorkflow(sessions, DefaultValidators(store, yangon, fixedNow), store, store)
	require.NoError(t, err)
	payment := NewPaymentWorkflow(sessions, store, store, store)
	diagnostics := NewDiagnosticsWorkflow(sessions, store, store, meter, outbound, time.Second, yangon)
	chat := NewChatWorkflow(sessions, store, store, ai)
	chat.now = fixedNow
	operators := NewOperatorService(store, store, store, outbound, "test-secret", time.Hour)

	router, err := NewRouter(RouterDeps{
		Sessions:  sessions,
		Workflows: []Workflow{registration, payment, diagnostics, chat},
		Payments:  payment,
		History:   diagnostics,
		Relay:     chat,
		AI:        ai,
		Outbound:  outbound,
	})
	require.NoError(t, err)

	return &testEnv{
		store:        store,
		sessionStore: counted,
		sessions:     sessions,
		outbound:     outbound,
		ai:           ai,
		meter:        meter,
		registration: registration,
		payment:      payment,
		diagnostics:  diagnostics,
		chat:         chat,
		operators:    operators,
		router:       router,
	}
}

// registerCustomer creates a customer whose phone matches userID
func (e *testEnv) registerCustomer(t *testing.T, phone, packageID string) *models.Customer {
	t.Helper()
	c, err := e.store.CreateCustomer(context.Background(), &models.Customer{
		FullName:      "Aung Aung",
		NRCPassport:   "12/ABC(N)" + phone[len(phone)-6:],
		ContactNumber: phone,
		Address:       "No. 1, Pyay Road, Yangon",
		PackageID:     packageID,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) session(t *testing.T, userID string) *models.Session {
	t.Helper()
	s, err := e.store.GetSession(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) noSession(t *testing.T, userID string) {
	t.Helper()
	_, err := e.store.GetSession(context.Background(), userID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

var errStoreDown = errors.New("store unavailable")

// failingReference simulates an unreachable package catalogue
type failingReference struct{}

func (failingReference) ActivePackages(context.Context) ([]*models.Package, error) {
	return nil, errStoreDown
}

func (failingReference) GetPackage(context.Context, string) (*models.Package, error) {
	return nil, errStoreDown
}

func (failingReference) CreatePackage(context.Context, *models.Package) (*models.Package, error) {
	return nil, errStoreDown
}
