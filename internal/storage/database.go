package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sessionRecord is the user_sessions row; Data holds the encoded SessionData
type sessionRecord struct {
	UserID     string         `gorm:"primaryKey"`
	WorkflowID string         `gorm:"column:workflow_id;not null"`
	StepIndex  int            `gorm:"not null"`
	Data       datatypes.JSON `gorm:"type:jsonb"`
	Version    int64          `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"index"`
}

func (sessionRecord) TableName() string { return "user_sessions" }

// Models lists every table the database store needs migrated
func Models() []interface{} {
	return []interface{}{
		&sessionRecord{},
		&models.Package{},
		&models.Customer{},
		&models.Payment{},
		&models.SpeedTest{},
		&models.Operator{},
		&models.ChatConversation{},
		&models.ChatMessage{},
		&models.OperatorNotification{},
	}
}

// DatabaseStore implements Store on top of gorm
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open gorm connection. The connection should be
// opened with TranslateError so unique violations map to ErrDuplicate.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// Ping verifies database connectivity
func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (d *DatabaseStore) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Session operations

func (d *DatabaseStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	var row sessionRecord
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	data, err := DecodeSessionData(row.Data)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		UserID:    row.UserID,
		Workflow:  models.WorkflowKind(row.WorkflowID),
		StepIndex: row.StepIndex,
		Data:      data,
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (d *DatabaseStore) UpsertSession(ctx context.Context, s *models.Session) error {
	raw, err := EncodeSessionData(s.Data)
	if err != nil {
		return err
	}
	row := sessionRecord{
		UserID:     s.UserID,
		WorkflowID: string(s.Workflow),
		StepIndex:  s.StepIndex,
		Data:       datatypes.JSON(raw),
		Version:    s.Version,
		UpdatedAt:  time.Now(),
	}
	err = d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"workflow_id", "step_index", "data", "version", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	s.UpdatedAt = row.UpdatedAt
	return nil
}

func (d *DatabaseStore) UpdateSession(ctx context.Context, s *models.Session) error {
	raw, err := EncodeSessionData(s.Data)
	if err != nil {
		return err
	}
	now := time.Now()
	res := d.db.WithContext(ctx).Model(&sessionRecord{}).
		Where("user_id = ? AND version = ?", s.UserID, s.Version).
		Updates(map[string]interface{}{
			"workflow_id": string(s.Workflow),
			"step_index":  s.StepIndex,
			"data":        datatypes.JSON(raw),
			"version":     s.Version + 1,
			"updated_at":  now,
		})
	if res.Error != nil {
		return fmt.Errorf("update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	s.Version++
	s.UpdatedAt = now
	return nil
}

func (d *DatabaseStore) DeleteSession(ctx context.Context, userID string) error {
	return d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&sessionRecord{}).Error
}

func (d *DatabaseStore) DeleteIdleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&sessionRecord{})
	return res.RowsAffected, res.Error
}

func (d *DatabaseStore) CountSessions(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&sessionRecord{}).Count(&n).Error
	return n, err
}

// Package operations

func (d *DatabaseStore) ActivePackages(ctx context.Context) ([]*models.Package, error) {
	var pkgs []*models.Package
	err := d.db.WithContext(ctx).Where("is_active = ?", true).Order("price asc, name asc").Find(&pkgs).Error
	return pkgs, err
}

func (d *DatabaseStore) GetPackage(ctx context.Context, packageID string) (*models.Package, error) {
	var p models.Package
	if err := d.db.WithContext(ctx).Where("package_id = ?", packageID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (d *DatabaseStore) CreatePackage(ctx context.Context, p *models.Package) (*models.Package, error) {
	if err := d.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// Customer operations

func (d *DatabaseStore) FindCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var c models.Customer
	if err := d.db.WithContext(ctx).Where("contact_number = ?", phone).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (d *DatabaseStore) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	var c models.Customer
	if err := d.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (d *DatabaseStore) CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	if err := d.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, translate(err)
	}
	return c, nil
}

// Payment operations

func (d *DatabaseStore) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	if err := d.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (d *DatabaseStore) MarkPaymentCompleted(ctx context.Context, paymentID string, from ...string) (*models.Payment, error) {
	if len(from) == 0 {
		return nil, ErrStateMismatch
	}
	var p models.Payment
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", paymentID, from).
			Updates(map[string]interface{}{
				"status":       models.PaymentStatusCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Tell an unknown id apart from one in the wrong state
			var count int64
			if err := tx.Model(&models.Payment{}).Where("id = ?", paymentID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrStateMismatch
		}
		return tx.Where("id = ?", paymentID).First(&p).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (d *DatabaseStore) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	var p models.Payment
	if err := d.db.WithContext(ctx).Where("id = ?", paymentID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (d *DatabaseStore) PendingPayments(ctx context.Context) ([]*models.Payment, error) {
	var out []*models.Payment
	err := d.db.WithContext(ctx).
		Where("status <> ?", models.PaymentStatusCompleted).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// Speed test operations

func (d *DatabaseStore) SaveSpeedTest(ctx context.Context, t *models.SpeedTest) error {
	return d.db.WithContext(ctx).Create(t).Error
}

func (d *DatabaseStore) RecentSpeedTests(ctx context.Context, customerID string, limit int) ([]*models.SpeedTest, error) {
	var tests []*models.SpeedTest
	err := d.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&tests).Error
	return tests, err
}

// Support operations

func (d *DatabaseStore) CreateOperator(ctx context.Context, o *models.Operator) (*models.Operator, error) {
	if err := d.db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, translate(err)
	}
	return o, nil
}

func (d *DatabaseStore) GetOperator(ctx context.Context, operatorID string) (*models.Operator, error) {
	var o models.Operator
	if err := d.db.WithContext(ctx).Where("operator_id = ?", operatorID).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (d *DatabaseStore) GetOperatorByEmail(ctx context.Context, email string) (*models.Operator, error) {
	var o models.Operator
	if err := d.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (d *DatabaseStore) UpdateOperatorStatus(ctx context.Context, operatorID, status string, at time.Time) (*models.Operator, error) {
	res := d.db.WithContext(ctx).Model(&models.Operator{}).
		Where("operator_id = ?", operatorID).
		Updates(map[string]interface{}{"status": status, "last_active": at})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return d.GetOperator(ctx, operatorID)
}

func (d *DatabaseStore) FindOnlineOperator(ctx context.Context) (*models.Operator, error) {
	var o models.Operator
	if err := d.db.WithContext(ctx).Where("status = ?", models.OperatorOnline).Order("id asc").First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (d *DatabaseStore) CreateConversation(ctx context.Context, c *models.ChatConversation) (*models.ChatConversation, error) {
	if err := d.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (d *DatabaseStore) GetConversation(ctx context.Context, conversationID string) (*models.ChatConversation, error) {
	var c models.ChatConversation
	if err := d.db.WithContext(ctx).Where("id = ?", conversationID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (d *DatabaseStore) ActiveConversation(ctx context.Context, customerUserID string) (*models.ChatConversation, error) {
	var c models.ChatConversation
	err := d.db.WithContext(ctx).
		Where("customer_user_id = ? AND status = ?", customerUserID, models.ConversationActive).
		Order("started_at desc").
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (d *DatabaseStore) ActiveConversationsForOperator(ctx context.Context, operatorID string) ([]*models.ChatConversation, error) {
	var out []*models.ChatConversation
	err := d.db.WithContext(ctx).
		Where("operator_id = ? AND status = ?", operatorID, models.ConversationActive).
		Order("started_at desc").
		Find(&out).Error
	return out, err
}

func (d *DatabaseStore) EndConversation(ctx context.Context, conversationID string, at time.Time) error {
	res := d.db.WithContext(ctx).Model(&models.ChatConversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{"status": models.ConversationEnded, "ended_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DatabaseStore) PendingConversations(ctx context.Context) ([]*models.ChatConversation, error) {
	var out []*models.ChatConversation
	err := d.db.WithContext(ctx).
		Where("status = ?", models.ConversationPending).
		Order("started_at asc").
		Find(&out).Error
	return out, err
}

func (d *DatabaseStore) AssignConversation(ctx context.Context, conversationID, operatorID string) (*models.ChatConversation, error) {
	res := d.db.WithContext(ctx).Model(&models.ChatConversation{}).
		Where("id = ? AND status = ?", conversationID, models.ConversationPending).
		Updates(map[string]interface{}{"status": models.ConversationActive, "operator_id": operatorID})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return d.GetConversation(ctx, conversationID)
}

func (d *DatabaseStore) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	return d.db.WithContext(ctx).Create(m).Error
}

func (d *DatabaseStore) Notify(ctx context.Context, n *models.OperatorNotification) error {
	return d.db.WithContext(ctx).Create(n).Error
}
