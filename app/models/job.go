package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	JobStatusDraft     = "draft"
	JobStatusPublished = "published"
	JobStatusClosed    = "closed"
)

// Job is a casting call posted by a user. Publishing a draft spends one
// job-post credit from the entitlement ledger inside the same transaction.
type Job struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Description string         `gorm:"type:text" json:"description" validate:"max=10000"`
	City        string         `gorm:"type:varchar(100);default:''" json:"city" validate:"max=100"`
	Status      string         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	PublishedAt *time.Time     `gorm:"type:timestamp;default:null" json:"published_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (j *Job) Validate() error {
	v := validator.New()

	return v.Struct(j)
}

// IsPublished reports whether the job is visible to applicants.
func (j *Job) IsPublished() bool {
	return j.Status == JobStatusPublished
}
