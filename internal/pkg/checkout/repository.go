package checkout

import (
	"errors"
	"time"

	"github.com/arminiranpour/cnaghsh/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the reconciler. Transaction
// yields a repository scoped to one ACID transaction; everything called on it
// commits or rolls back together.
type Repository interface {
	CreateSession(s *models.CheckoutSession) error
	FindSession(id string) (*models.CheckoutSession, error)
	FindPrice(id uint) (*models.Price, error)
	// FindPaymentByProviderRef returns (nil, nil) when no payment exists yet.
	FindPaymentByProviderRef(provider, providerRef string) (*models.Payment, error)
	UpsertPayment(p *models.Payment) error
	UpsertInvoice(inv *models.Invoice) error
	SavePaymentStatus(paymentID uint, status string) error
	// UpdateSessionStatus transitions the session and stores the raw callback
	// payload. Only non-terminal sessions move; rewriting the same terminal
	// status is allowed so redelivered callbacks converge. Returns whether a
	// row was written.
	UpdateSessionStatus(id, status, rawPayload string) (bool, error)
	RecordWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingErr error) error
	Transaction(fn func(r Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a checkout repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateSession(s *models.CheckoutSession) error {
	return r.db.Create(s).Error
}

func (r *gormRepository) FindSession(id string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	if err := r.db.Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) FindPrice(id uint) (*models.Price, error) {
	var p models.Price
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindPaymentByProviderRef(provider, providerRef string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("provider = ? AND provider_ref = ?", provider, providerRef).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) UpsertPayment(p *models.Payment) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_ref"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"checkout_session_id",
			"amount",
			"currency",
			"status",
			"updated_at",
		}),
	}).Create(p).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND provider_ref = ?", p.Provider, p.ProviderRef).
		First(p).Error
}

func (r *gormRepository) UpsertInvoice(inv *models.Invoice) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"total",
			"currency",
			"updated_at",
		}),
	}).Create(inv).Error; err != nil {
		return err
	}

	return r.db.Where("payment_id = ?", inv.PaymentID).First(inv).Error
}

func (r *gormRepository) SavePaymentStatus(paymentID uint, status string) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", paymentID).
		Update("status", status).Error
}

func (r *gormRepository) UpdateSessionStatus(id, status, rawPayload string) (bool, error) {
	res := r.db.Model(&models.CheckoutSession{}).
		Where("id = ? AND (status IN ? OR status = ?)",
			id, []string{models.CheckoutStatusStarted, models.CheckoutStatusPending}, status).
		Updates(map[string]interface{}{
			"status":                status,
			"last_callback_payload": rawPayload,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) RecordWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND external_id = ?", event.Provider, event.ExternalID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingErr error) error {
	// A failed grant leaves processed_at NULL so the event stays visible to
	// the reconciliation sweep; only the error is recorded.
	updates := map[string]interface{}{}
	if processingErr != nil {
		updates["processing_error"] = processingErr.Error()
	} else {
		now := time.Now()
		updates["processed_at"] = &now
		updates["processing_error"] = ""
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) Transaction(fn func(r Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
