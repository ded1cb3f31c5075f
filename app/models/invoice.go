package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvoiceStatusPaid = "PAID"
	InvoiceStatusVoid = "VOID"
)

// Invoice mirrors the paid/void state of exactly one Payment and is written
// in the same transaction as the payment it belongs to.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Number    string    `gorm:"type:char(36);not null;uniqueIndex" json:"number"`
	PaymentID uint      `gorm:"not null;uniqueIndex" json:"payment_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Status    string    `gorm:"type:varchar(10);not null;default:'PAID'" json:"status"`
	Total     int64     `gorm:"not null" json:"total"`
	Currency  string    `gorm:"type:varchar(3);not null;default:'IRR'" json:"currency"`
	IssuedAt  time.Time `gorm:"not null" json:"issued_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.Number == "" {
		i.Number = uuid.NewString()
	}
	return nil
}
