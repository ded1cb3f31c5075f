package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPaid     = "PAID"
	PaymentStatusPending  = "PENDING"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRefunded = "REFUNDED"
)

// Payment is the financial record for one gateway transaction. The pair
// (provider, provider_ref) is the idempotency key for the whole pipeline:
// redelivered callbacks for the same transaction always land on the same row.
type Payment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	PublicID          string    `gorm:"type:char(36);not null;uniqueIndex" json:"public_id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	CheckoutSessionID string    `gorm:"type:char(36);not null;index" json:"checkout_session_id"`
	Provider          string    `gorm:"type:varchar(20);not null;index:ux_payments_provider_ref,unique,priority:1" json:"provider"`
	ProviderRef       string    `gorm:"type:varchar(191);not null;index:ux_payments_provider_ref,unique,priority:2" json:"provider_ref"`
	Amount            int64     `gorm:"not null" json:"amount"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'IRR'" json:"currency"`
	Status            string    `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.PublicID == "" {
		p.PublicID = uuid.NewString()
	}
	return nil
}

// IsPaid reports whether the payment settled successfully.
func (p *Payment) IsPaid() bool {
	return p.Status == PaymentStatusPaid
}
