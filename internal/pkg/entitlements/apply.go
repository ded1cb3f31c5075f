package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arminiranpour/cnaghsh/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Grant creates a credit bundle. When sourcePaymentID is set the insert is
// keyed on (source_payment_id, kind), so re-applying the same payment is a
// no-op and the stored bundle is returned instead: the applier stays safe
// under at-least-once invocation.
func Grant(tx *gorm.DB, userID uint, kind string, credits int, expiresAt *time.Time, sourcePaymentID *uint) (*models.Entitlement, bool, error) {
	if credits <= 0 {
		return nil, false, fmt.Errorf("grant of %d credits is not valid", credits)
	}

	bundle := &models.Entitlement{
		UserID:           userID,
		Kind:             kind,
		RemainingCredits: credits,
		ExpiresAt:        expiresAt,
		SourcePaymentID:  sourcePaymentID,
	}
	if sourcePaymentID == nil {
		if err := tx.Create(bundle).Error; err != nil {
			return nil, false, err
		}
		return bundle, true, nil
	}

	res := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source_payment_id"},
			{Name: "kind"},
		},
		DoNothing: true,
	}).Create(bundle)
	if res.Error != nil {
		return nil, false, res.Error
	}

	created := res.RowsAffected > 0
	var stored models.Entitlement
	if err := tx.Where("source_payment_id = ? AND kind = ?", *sourcePaymentID, kind).
		First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

// Applier grants the credits a paid price entitles its buyer to. It is the
// collaborator the webhook reconciler invokes after committing payment state.
type Applier struct {
	db *gorm.DB
}

func NewApplier(db *gorm.DB) *Applier {
	return &Applier{db: db}
}

// Apply turns the price's grant configuration into an entitlement bundle for
// the buyer. Idempotent per payment through the (source_payment_id, kind)
// unique key; a price without grant configuration applies to nothing.
func (a *Applier) Apply(ctx context.Context, userID, priceID, paymentID uint) error {
	_ = ctx
	var price models.Price
	if err := a.db.First(&price, priceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("price %d not found for payment %d", priceID, paymentID)
		}
		return err
	}
	if !price.GrantsCredits() {
		return nil
	}

	_, _, err := Grant(a.db, userID, price.GrantKind, price.GrantCredits, price.GrantExpiry(time.Now()), &paymentID)
	return err
}
