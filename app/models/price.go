package models

import "time"

const CurrencyIRR = "IRR"

// Price is a purchasable offer. Besides the charge amount it carries the
// entitlement grant configuration applied once the purchase is paid.
type Price struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Amount            int64     `gorm:"not null" json:"amount" validate:"gte=0"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'IRR'" json:"currency" validate:"len=3"`
	Active            bool      `gorm:"default:true;index" json:"active"`
	GrantKind         string    `gorm:"type:varchar(50);not null;default:''" json:"grant_kind"`
	GrantCredits      int       `gorm:"not null;default:0" json:"grant_credits" validate:"gte=0"`
	GrantValidityDays int       `gorm:"not null;default:0" json:"grant_validity_days" validate:"gte=0"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GrantsCredits reports whether paying this price yields an entitlement bundle.
func (p *Price) GrantsCredits() bool {
	return p.GrantKind != "" && p.GrantCredits > 0
}

// GrantExpiry returns the bundle expiry for a grant issued now, or nil when
// the grant never expires.
func (p *Price) GrantExpiry(now time.Time) *time.Time {
	if p.GrantValidityDays <= 0 {
		return nil
	}
	t := now.AddDate(0, 0, p.GrantValidityDays)
	return &t
}
