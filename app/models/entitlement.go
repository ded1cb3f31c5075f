package models

import "time"

// Entitlement is one grant of N credits of a given kind, optionally expiring.
// A user may hold several bundles of the same kind from separate purchases.
// remaining_credits only decreases through the ledger's consume operation and
// only increases through a grant triggered by a paid payment.
type Entitlement struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index:idx_entitlements_user_kind,priority:1" json:"user_id"`
	Kind             string     `gorm:"type:varchar(50);not null;index:idx_entitlements_user_kind,priority:2;index:ux_entitlements_source_kind,unique,priority:2" json:"kind"`
	RemainingCredits int        `gorm:"not null;default:0" json:"remaining_credits"`
	ExpiresAt        *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	SourcePaymentID  *uint      `gorm:"default:null;index:ux_entitlements_source_kind,unique,priority:1" json:"source_payment_id,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// IsActive reports whether the bundle can still be consumed at the given
// instant: not expired and at least one credit left.
func (e *Entitlement) IsActive(now time.Time) bool {
	if e.RemainingCredits <= 0 {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// IsExpired reports whether the bundle is past its expiry window.
func (e *Entitlement) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}
