package storage

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmlink/ispbot-backend/internal/models"
)

// memorySession keeps the encoded form so the memory store round-trips data
// through the same codec as the database store.
type memorySession struct {
	workflow  models.WorkflowKind
	stepIndex int
	data      []byte
	version   int64
	updatedAt time.Time
}

// MemoryStore holds all data in memory for development and tests
type MemoryStore struct {
	sessions      map[string]*memorySession
	packages      map[string]*models.Package
	customers     map[string]*models.Customer
	payments      map[string]*models.Payment
	speedTests    []*models.SpeedTest
	operators     map[string]*models.Operator
	conversations map[string]*models.ChatConversation
	messages      []*models.ChatMessage
	notifications []*models.OperatorNotification

	// Mutexes for thread safety
	sessionMu  sync.RWMutex
	packageMu  sync.RWMutex
	customerMu sync.RWMutex
	paymentMu  sync.RWMutex
	speedMu    sync.RWMutex
	supportMu  sync.RWMutex

	// Counters for ID generation
	customerCounter uint
	speedCounter    uint
	operatorCounter uint
	messageCounter  uint

	now func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*memorySession),
		packages:      make(map[string]*models.Package),
		customers:     make(map[string]*models.Customer),
		payments:      make(map[string]*models.Payment),
		operators:     make(map[string]*models.Operator),
		conversations: make(map[string]*models.ChatConversation),
		now:           time.Now,
	}
}

// SetClock replaces the time source used for timestamps
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	m.now = now
}

func (m *MemoryStore) clock() time.Time {
	return m.now()
}

// Ping always succeeds for the memory store
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// Session operations

func (m *MemoryStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	row, exists := m.sessions[userID]
	if !exists {
		return nil, ErrNotFound
	}
	data, err := DecodeSessionData(row.data)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		UserID:    userID,
		Workflow:  row.workflow,
		StepIndex: row.stepIndex,
		Data:      data,
		Version:   row.version,
		UpdatedAt: row.updatedAt,
	}, nil
}

func (m *MemoryStore) UpsertSession(ctx context.Context, s *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := EncodeSessionData(s.Data)
	if err != nil {
		return err
	}

	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	s.UpdatedAt = m.clock()
	m.sessions[s.UserID] = &memorySession{
		workflow:  s.Workflow,
		stepIndex: s.StepIndex,
		data:      raw,
		version:   s.Version,
		updatedAt: s.UpdatedAt,
	}
	return nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, s *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := EncodeSessionData(s.Data)
	if err != nil {
		return err
	}

	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	row, exists := m.sessions[s.UserID]
	if !exists || row.version != s.Version {
		return ErrVersionConflict
	}

	row.workflow = s.Workflow
	row.stepIndex = s.StepIndex
	row.data = raw
	row.version = s.Version + 1
	row.updatedAt = m.clock()

	s.Version = row.version
	s.UpdatedAt = row.updatedAt
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	delete(m.sessions, userID)
	return nil
}

func (m *MemoryStore) DeleteIdleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var deleted int64
	for userID, row := range m.sessions {
		if row.updatedAt.Before(cutoff) {
			delete(m.sessions, userID)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) CountSessions(ctx context.Context) (int64, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	return int64(len(m.sessions)), ctx.Err()
}

// Package operations

func (m *MemoryStore) ActivePackages(ctx context.Context) ([]*models.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.packageMu.RLock()
	defer m.packageMu.RUnlock()

	active := []*models.Package{}
	for _, p := range m.packages {
		if p.IsActive {
			cp := *p
			active = append(active, &cp)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Price == active[j].Price {
			return active[i].Name < active[j].Name
		}
		return active[i].Price < active[j].Price
	})
	return active, nil
}

func (m *MemoryStore) GetPackage(ctx context.Context, packageID string) (*models.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.packageMu.RLock()
	defer m.packageMu.RUnlock()

	p, exists := m.packages[packageID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) CreatePackage(ctx context.Context, p *models.Package) (*models.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.BeforeCreate(nil); err != nil {
		return nil, err
	}

	m.packageMu.Lock()
	defer m.packageMu.Unlock()

	if _, exists := m.packages[p.PackageID]; exists {
		return nil, ErrDuplicate
	}
	p.CreatedAt = m.clock()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.packages[p.PackageID] = &cp
	return p, nil
}

// Customer operations

func (m *MemoryStore) FindCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	for _, c := range m.customers {
		if c.ContactNumber == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	c, exists := m.customers[customerID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.BeforeCreate(nil); err != nil {
		return nil, err
	}

	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	for _, existing := range m.customers {
		if existing.ContactNumber == c.ContactNumber || strings.EqualFold(existing.NRCPassport, c.NRCPassport) {
			return nil, ErrDuplicate
		}
	}

	m.customerCounter++
	c.ID = m.customerCounter
	c.CreatedAt = m.clock()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.customers[c.CustomerID] = &cp
	return c, nil
}

// Payment operations

func (m *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.paymentMu.Lock()
	defer m.paymentMu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := m.payments[p.ID]; exists {
		return nil, ErrDuplicate
	}
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	p.CreatedAt = m.clock()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.payments[p.ID] = &cp
	return p, nil
}

func (m *MemoryStore) MarkPaymentCompleted(ctx context.Context, paymentID string, from ...string) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.paymentMu.Lock()
	defer m.paymentMu.Unlock()

	p, exists := m.payments[paymentID]
	if !exists {
		return nil, ErrNotFound
	}
	if !slices.Contains(from, p.Status) {
		return nil, ErrStateMismatch
	}
	now := m.clock()
	p.Status = models.PaymentStatusCompleted
	p.CompletedAt = &now
	p.UpdatedAt = now
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	m.paymentMu.RLock()
	defer m.paymentMu.RUnlock()

	p, exists := m.payments[paymentID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, ctx.Err()
}

func (m *MemoryStore) PendingPayments(ctx context.Context) ([]*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.paymentMu.RLock()
	defer m.paymentMu.RUnlock()

	out := []*models.Payment{}
	for _, p := range m.payments {
		if p.Status != models.PaymentStatusCompleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Payments returns a snapshot of the ledger
func (m *MemoryStore) Payments() []*models.Payment {
	m.paymentMu.RLock()
	defer m.paymentMu.RUnlock()

	out := make([]*models.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// Speed test operations

func (m *MemoryStore) SaveSpeedTest(ctx context.Context, t *models.SpeedTest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.speedMu.Lock()
	defer m.speedMu.Unlock()

	m.speedCounter++
	t.ID = m.speedCounter
	t.CreatedAt = m.clock()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.speedTests = append(m.speedTests, &cp)
	return nil
}

func (m *MemoryStore) RecentSpeedTests(ctx context.Context, customerID string, limit int) ([]*models.SpeedTest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.speedMu.RLock()
	defer m.speedMu.RUnlock()

	results := []*models.SpeedTest{}
	for _, t := range m.speedTests {
		if t.CustomerID == customerID {
			cp := *t
			results = append(results, &cp)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Support operations

func (m *MemoryStore) CreateOperator(ctx context.Context, o *models.Operator) (*models.Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.BeforeCreate(nil); err != nil {
		return nil, err
	}

	m.supportMu.Lock()
	defer m.supportMu.Unlock()

	for _, existing := range m.operators {
		if strings.EqualFold(existing.Email, o.Email) {
			return nil, ErrDuplicate
		}
	}
	m.operatorCounter++
	o.ID = m.operatorCounter
	o.CreatedAt = m.clock()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.operators[o.OperatorID] = &cp
	return o, nil
}

func (m *MemoryStore) GetOperator(ctx context.Context, operatorID string) (*models.Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	o, exists := m.operators[operatorID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetOperatorByEmail(ctx context.Context, email string) (*models.Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	for _, o := range m.operators {
		if strings.EqualFold(o.Email, email) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateOperatorStatus(ctx context.Context, operatorID, status string, at time.Time) (*models.Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.Lock()
	defer m.supportMu.Unlock()

	o, exists := m.operators[operatorID]
	if !exists {
		return nil, ErrNotFound
	}
	o.Status = status
	o.LastActive = &at
	o.UpdatedAt = at
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) FindOnlineOperator(ctx context.Context) (*models.Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	var found *models.Operator
	for _, o := range m.operators {
		if o.Status != models.OperatorOnline {
			continue
		}
		if found == nil || o.ID < found.ID {
			found = o
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *MemoryStore) CreateConversation(ctx context.Context, c *models.ChatConversation) (*models.ChatConversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.BeforeCreate(nil); err != nil {
		return nil, err
	}

	m.supportMu.Lock()
	defer m.supportMu.Unlock()

	cp := *c
	m.conversations[c.ID] = &cp
	return c, nil
}

func (m *MemoryStore) GetConversation(ctx context.Context, conversationID string) (*models.ChatConversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	c, exists := m.conversations[conversationID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ActiveConversation(ctx context.Context, customerUserID string) (*models.ChatConversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	for _, c := range m.conversations {
		if c.CustomerUserID == customerUserID && c.Status == models.ConversationActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ActiveConversationsForOperator(ctx context.Context, operatorID string) ([]*models.ChatConversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	out := []*models.ChatConversation{}
	for _, c := range m.conversations {
		if c.OperatorID == operatorID && c.Status == models.ConversationActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *MemoryStore) EndConversation(ctx context.Context, conversationID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.supportMu.Lock()
	defer m.supportMu.Unlock()

	c, exists := m.conversations[conversationID]
	if !exists {
		return ErrNotFound
	}
	c.Status = models.ConversationEnded
	c.EndedAt = &at
	return nil
}

func (m *MemoryStore) PendingConversations(ctx context.Context) ([]*models.ChatConversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	out := []*models.ChatConversation{}
	for _, c := range m.conversations {
		if c.Status == models.ConversationPending {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (m *MemoryStore) AssignConversation(ctx context.Context, conversationID, operatorID string) (*models.ChatConversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.supportMu.Lock()
	defer m.supportMu.Unlock()

	c, exists := m.conversations[conversationID]
	if !exists || c.Status != models.ConversationPending {
		return nil, ErrNotFound
	}
	c.Status = models.ConversationActive
	c.OperatorID = operatorID
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.supportMu.Lock()
	defer m.supportMu.Unlock()

	m.messageCounter++
	msg.ID = m.messageCounter
	msg.CreatedAt = m.clock()
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *MemoryStore) Notify(ctx context.Context, n *models.OperatorNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.supportMu.Lock()
	defer m.supportMu.Unlock()

	n.CreatedAt = m.clock()
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

// Messages returns the stored messages of one conversation in order
func (m *MemoryStore) Messages(conversationID string) []*models.ChatMessage {
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	out := []*models.ChatMessage{}
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out
}

// Notifications returns the notifications addressed to an operator
func (m *MemoryStore) Notifications(operatorID string) []*models.OperatorNotification {
	m.supportMu.RLock()
	defer m.supportMu.RUnlock()

	out := []*models.OperatorNotification{}
	for _, n := range m.notifications {
		if n.OperatorID == operatorID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out
}
