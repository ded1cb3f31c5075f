package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/arminiranpour/cnaghsh/app/models"
	"github.com/arminiranpour/cnaghsh/internal/pkg/entitlements"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("job not found")
	ErrNotOwner         = errors.New("job does not belong to user")
	ErrAlreadyPublished = errors.New("job already published")
)

// publishRetries bounds how often a publish is re-attempted after losing a
// credit to a concurrent consumer.
const publishRetries = 2

// Service owns the job-posting lifecycle. Publishing spends one job-post
// credit and flips the job to published in a single transaction.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create stores a validated draft job for the user.
func (s *Service) Create(userID uint, title, description, city string) (*models.Job, error) {
	job := &models.Job{
		UserID:      userID,
		Title:       title,
		Description: description,
		City:        city,
		Status:      models.JobStatusDraft,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// Get loads a job owned by the user.
func (s *Service) Get(userID, jobID uint) (*models.Job, error) {
	var job models.Job
	if err := s.db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrNotOwner
	}
	return &job, nil
}

// Publish makes a draft job visible, spending one job-post credit inside the
// same transaction. A lost race on the credit aborts the whole transaction;
// the operation is retried from scratch a bounded number of times before the
// transient error reaches the caller.
func (s *Service) Publish(ctx context.Context, userID, jobID uint) (*models.Job, error) {
	for attempt := 0; ; attempt++ {
		job, err := s.publishOnce(ctx, userID, jobID)
		if errors.Is(err, entitlements.ErrConcurrentUpdate) && attempt < publishRetries {
			continue
		}
		return job, err
	}
}

func (s *Service) publishOnce(ctx context.Context, userID, jobID uint) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if job.UserID != userID {
			return ErrNotOwner
		}
		if job.IsPublished() {
			return ErrAlreadyPublished
		}

		if _, err := entitlements.Consume(tx, userID, entitlements.KindJobPost); err != nil {
			return err
		}

		now := time.Now()
		job.Status = models.JobStatusPublished
		job.PublishedAt = &now
		return tx.Model(&job).Updates(map[string]interface{}{
			"status":       models.JobStatusPublished,
			"published_at": &now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}
