package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CheckoutStatusStarted = "STARTED"
	CheckoutStatusPending = "PENDING"
	CheckoutStatusSuccess = "SUCCESS"
	CheckoutStatusFailed  = "FAILED"
)

// CheckoutSession tracks one purchase attempt linking a user, a price and a
// payment provider. Its id is handed to the gateway and comes back on the
// callback payload.
type CheckoutSession struct {
	ID                  string    `gorm:"type:char(36);primaryKey" json:"id"`
	Provider            string    `gorm:"type:varchar(20);not null;index" json:"provider"`
	PriceID             uint      `gorm:"not null;index" json:"price_id"`
	UserID              uint      `gorm:"not null;index" json:"user_id"`
	Status              string    `gorm:"type:varchar(10);not null;default:'STARTED';index" json:"status"`
	LastCallbackPayload string    `gorm:"type:longtext" json:"-"`
	CreatedAt           time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *CheckoutSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal reports whether the session reached a final state. Terminal
// sessions are no longer transitioned by provider callbacks.
func (s *CheckoutSession) IsTerminal() bool {
	return s.Status == CheckoutStatusSuccess || s.Status == CheckoutStatusFailed
}
