package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment status values
const (
	PaymentStatusPending             = "pending"
	PaymentStatusPendingVerification = "pending_verification"
	PaymentStatusCompleted           = "completed"
)

// PaymentMethodCash is the only method settled in person
const PaymentMethodCash = "cash"

// Payment is a ledger entry for a customer's bill payment
type Payment struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	CustomerID  string     `json:"customer_id" gorm:"index;not null"`
	Amount      float64    `json:"amount" gorm:"not null"`
	Method      string     `json:"payment_method" gorm:"not null"`
	Status      string     `json:"status" gorm:"default:'pending';index"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PaymentMethod is one entry of the payment menu
type PaymentMethod struct {
	ID           string
	Name         string
	Instructions string
}

// IsCash reports whether the method is settled at the office
func (m PaymentMethod) IsCash() bool {
	return m.ID == PaymentMethodCash
}

// SpeedTest is a persisted diagnostics measurement
type SpeedTest struct {
	gorm.Model
	CustomerID   string  `json:"customer_id" gorm:"index;not null"`
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
	PingMs       float64 `json:"ping_ms"`
	Server       string  `json:"server"`
}

// DownloadMBps converts the download rate to megabytes per second
func (s *SpeedTest) DownloadMBps() float64 { return s.DownloadMbps / 8 }

// UploadMBps converts the upload rate to megabytes per second
func (s *SpeedTest) UploadMBps() float64 { return s.UploadMbps / 8 }
