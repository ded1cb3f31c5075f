package models

import "time"

// WebhookEvent stores every inbound gateway callback with deduplication
// metadata. It is the audit trail for the reconciler and the queue an
// operator sweep reads when a post-commit entitlement grant failed
// (processed_at NULL with processing_error set while the payment is
// already PAID).
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_external,unique,priority:1;index" json:"provider"`
	ExternalID      string     `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_provider_external,unique,priority:2" json:"external_id"`
	SessionID       string     `gorm:"type:char(36);not null;default:'';index" json:"session_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
