package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Package is a subscription plan offered to customers
type Package struct {
	gorm.Model
	PackageID   string  `json:"package_id" gorm:"uniqueIndex"`
	Name        string  `json:"name" gorm:"not null"`
	Speed       string  `json:"speed" gorm:"not null"`
	Price       float64 `json:"price" gorm:"not null"`
	Description string  `json:"description"`
	IsActive    bool    `json:"is_active" gorm:"default:true;index"`
}

// BeforeCreate assigns a PackageID when the caller did not
func (p *Package) BeforeCreate(tx *gorm.DB) error {
	if p.PackageID == "" {
		p.PackageID = uuid.NewString()
	}
	return nil
}

// Customer is a registered subscriber. ContactNumber is the natural identity.
type Customer struct {
	gorm.Model

	CustomerID       string         `json:"customer_id" gorm:"uniqueIndex"`
	FullName         string         `json:"full_name" gorm:"not null"`
	NRCPassport      string         `json:"nrc_passport" gorm:"uniqueIndex;not null"`
	ContactNumber    string         `json:"contact_number" gorm:"uniqueIndex;not null"`
	Address          string         `json:"address" gorm:"not null"`
	PackageID        string         `json:"package_id" gorm:"index"`
	InstallationDate datatypes.Date `json:"installation_date"`
}

// BeforeCreate generates the CustomerID and normalizes the contact number
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.CustomerID == "" {
		c.CustomerID = uuid.NewString()
	}
	c.ContactNumber = strings.TrimSpace(c.ContactNumber)
	c.NRCPassport = strings.ToUpper(strings.TrimSpace(c.NRCPassport))
	return nil
}

// Installation returns the installation date as a time.Time
func (c *Customer) Installation() time.Time {
	return time.Time(c.InstallationDate)
}

// PhoneFromUserID maps a messaging user id to the local phone format used for
// contact numbers, e.g. "whatsapp:+959123456789" -> "09123456789".
// Ids that are not Myanmar phone numbers are returned trimmed and unchanged.
func PhoneFromUserID(userID string) string {
	phone := strings.TrimSpace(strings.TrimPrefix(userID, "whatsapp:"))
	switch {
	case strings.HasPrefix(phone, "+959"):
		return "0" + strings.TrimPrefix(phone, "+95")
	case strings.HasPrefix(phone, "959") && len(phone) == 12:
		return "0" + strings.TrimPrefix(phone, "95")
	}
	return phone
}

// UserIDFromPhone is the inverse of PhoneFromUserID for Myanmar numbers
func UserIDFromPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "09") {
		return "whatsapp:+95" + strings.TrimPrefix(phone, "0")
	}
	return "whatsapp:" + phone
}
