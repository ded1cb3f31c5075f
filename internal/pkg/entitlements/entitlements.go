package entitlements

import (
	"errors"
	"sort"
	"time"

	"github.com/arminiranpour/cnaghsh/app/models"
	"gorm.io/gorm"
)

// Credit kinds consumable through the ledger.
const (
	KindJobPost       = "job_post"
	KindCoursePublish = "course_publish"
)

var (
	// ErrNoEntitlement: the user never purchased credits of this kind.
	ErrNoEntitlement = errors.New("no entitlement purchased")
	// ErrInsufficientCredits: bundles exist within their time window but all
	// remaining credits are spent.
	ErrInsufficientCredits = errors.New("entitlement credits exhausted")
	// ErrExpiredCredits: every bundle is past its expiry.
	ErrExpiredCredits = errors.New("entitlement credits expired")
	// ErrConcurrentUpdate: another consumer drained the selected bundle
	// between read and decrement. Transient; the caller decides whether to
	// retry its whole business transaction.
	ErrConcurrentUpdate = errors.New("entitlement consumed concurrently")
)

// Summary aggregates a user's active bundles of one kind. ExpiresAt is nil
// when any active bundle never expires, otherwise the soonest expiry.
type Summary struct {
	Total     int        `json:"total"`
	Remaining int        `json:"remaining"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// store is the ledger's persistence seam. The gorm implementation is the
// production one; tests supply their own.
type store interface {
	fetch(userID uint, kind string) ([]models.Entitlement, error)
	// decrementIfActive spends one credit iff the bundle is still active at
	// the given instant. Reports whether a row was written.
	decrementIfActive(id uint, now time.Time) (bool, error)
}

type gormStore struct {
	db *gorm.DB
}

func (g gormStore) fetch(userID uint, kind string) ([]models.Entitlement, error) {
	var bundles []models.Entitlement
	err := g.db.Where("user_id = ? AND kind = ?", userID, kind).Find(&bundles).Error
	return bundles, err
}

func (g gormStore) decrementIfActive(id uint, now time.Time) (bool, error) {
	res := g.db.Model(&models.Entitlement{}).
		Where("id = ? AND remaining_credits > 0 AND (expires_at IS NULL OR expires_at > ?)", id, now).
		UpdateColumns(map[string]interface{}{
			"remaining_credits": gorm.Expr("remaining_credits - 1"),
			"updated_at":        now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HasCredit reports whether at least one active bundle has credit left.
// Point-in-time read, no locking.
func HasCredit(db *gorm.DB, userID uint, kind string) (bool, error) {
	var count int64
	err := db.Model(&models.Entitlement{}).
		Where("user_id = ? AND kind = ? AND remaining_credits > 0 AND (expires_at IS NULL OR expires_at > ?)", userID, kind, time.Now()).
		Count(&count).Error
	return count > 0, err
}

// Summarize aggregates the active bundles of one kind. It returns nil (not a
// zero Summary) when no active bundle exists, so callers can distinguish
// "never purchased / all expired" from "purchased with credit left".
func Summarize(db *gorm.DB, userID uint, kind string) (*Summary, error) {
	return summarize(gormStore{db: db}, userID, kind, time.Now())
}

func summarize(s store, userID uint, kind string, now time.Time) (*Summary, error) {
	bundles, err := s.fetch(userID, kind)
	if err != nil {
		return nil, err
	}

	var sum *Summary
	for i := range bundles {
		b := &bundles[i]
		if !b.IsActive(now) {
			continue
		}
		if sum == nil {
			sum = &Summary{ExpiresAt: b.ExpiresAt}
		} else {
			switch {
			case sum.ExpiresAt == nil || b.ExpiresAt == nil:
				sum.ExpiresAt = nil
			case b.ExpiresAt.Before(*sum.ExpiresAt):
				sum.ExpiresAt = b.ExpiresAt
			}
		}
		sum.Remaining += b.RemainingCredits
	}
	if sum == nil {
		return nil, nil
	}
	sum.Total = sum.Remaining
	return sum, nil
}

// AssertHasCredit returns nil when a credit is consumable, otherwise the
// typed reason: ErrNoEntitlement, ErrInsufficientCredits or ErrExpiredCredits.
func AssertHasCredit(db *gorm.DB, userID uint, kind string) error {
	bundles, err := gormStore{db: db}.fetch(userID, kind)
	if err != nil {
		return err
	}
	return classify(bundles, time.Now())
}

// Consume spends one credit from the best active bundle. It must run inside
// the caller's transaction so "spend credit + perform action" stays atomic.
// The decrement is a conditional update guarded by the bundle still being
// active; zero rows affected means a concurrent consumer won the credit and
// the caller gets ErrConcurrentUpdate.
func Consume(tx *gorm.DB, userID uint, kind string) (*models.Entitlement, error) {
	return consume(gormStore{db: tx}, userID, kind, time.Now())
}

func consume(s store, userID uint, kind string, now time.Time) (*models.Entitlement, error) {
	bundles, err := s.fetch(userID, kind)
	if err != nil {
		return nil, err
	}

	selected := pick(bundles, now)
	if selected == nil {
		return nil, classify(bundles, now)
	}

	written, err := s.decrementIfActive(selected.ID, now)
	if err != nil {
		return nil, err
	}
	if !written {
		return nil, ErrConcurrentUpdate
	}

	selected.RemainingCredits--
	selected.UpdatedAt = now
	return selected, nil
}

// classify triages why no credit is consumable. A bundle that still sits in
// its time window but is drained reports "insufficient"; "expired" only when
// every bundle is past expiry.
func classify(bundles []models.Entitlement, now time.Time) error {
	if len(bundles) == 0 {
		return ErrNoEntitlement
	}
	inWindow := false
	for i := range bundles {
		if bundles[i].IsActive(now) {
			return nil
		}
		if !bundles[i].IsExpired(now) {
			inWindow = true
		}
	}
	if inWindow {
		return ErrInsufficientCredits
	}
	return ErrExpiredCredits
}

// pick selects the bundle to consume from: soonest expiry first with
// never-expiring bundles last, ties broken by oldest update. Expiring credit
// is spent before permanent credit so it is not wasted.
func pick(bundles []models.Entitlement, now time.Time) *models.Entitlement {
	var active []*models.Entitlement
	for i := range bundles {
		if bundles[i].IsActive(now) {
			active = append(active, &bundles[i])
		}
	}
	if len(active) == 0 {
		return nil
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return a.UpdatedAt.Before(b.UpdatedAt)
		case a.ExpiresAt == nil:
			return false
		case b.ExpiresAt == nil:
			return true
		case a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
	})
	return active[0]
}
