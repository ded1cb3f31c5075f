package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/arminiranpour/cnaghsh/app/models"
	"github.com/arminiranpour/cnaghsh/internal/pkg/gateway"
	"gorm.io/gorm"
)

// EntitlementApplier grants whatever a paid price entitles the buyer to.
// It is invoked after the payment transaction committed and must be
// idempotent on its own side; the reconciler calls it at most once per
// distinct gateway transaction but never retries a failed call.
type EntitlementApplier interface {
	Apply(ctx context.Context, userID, priceID, paymentID uint) error
}

// Service reconciles gateway callbacks into payment, invoice and session
// state exactly once per (provider, providerRef).
type Service struct {
	repo    Repository
	cfg     gateway.Config
	applier EntitlementApplier
}

func NewService(repo Repository, cfg gateway.Config, applier EntitlementApplier) *Service {
	return &Service{repo: repo, cfg: cfg, applier: applier}
}

// NewServiceFromDB creates a reconciler from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cfg gateway.Config, applier EntitlementApplier) *Service {
	return NewService(NewRepository(db), cfg, applier)
}

// Result is the terminal outcome reported back to the gateway.
type Result struct {
	Status string `json:"status"`
}

// ProcessCallback runs the full reconciliation state machine for one inbound
// webhook delivery: authenticate, parse, decode, resolve the session, then
// apply the paid or not-paid branch. Gateway-caused rejections come back as
// *Error (4xx); anything else is an internal fault.
func (s *Service) ProcessCallback(ctx context.Context, providerName, signatureHeader string, rawBody []byte) (*Result, error) {
	provider, ok := gateway.ByName(providerName)
	if !ok {
		return nil, ErrUnknownProvider
	}
	if !s.cfg.Verify(provider.Name(), signatureHeader) {
		return nil, ErrInvalidSignature
	}

	var payload gateway.Payload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, badPayload("malformed JSON body")
	}
	sessionID := gateway.SessionID(payload)
	if sessionID == "" {
		return nil, badPayload("missing sessionId")
	}

	event, err := gateway.Decode(provider, sessionID, payload)
	if err != nil {
		var decodeErr *gateway.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, badPayload(decodeErr.Error())
		}
		return nil, err
	}

	session, err := s.repo.FindSession(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Provider != provider.Name() {
		return nil, ErrProviderMismatch
	}

	// Audit journal. Dedupe is informational only: processing below is
	// idempotent by (provider, providerRef), which also covers redeliveries
	// arriving under a fresh gateway event id.
	_, stored, err := s.repo.RecordWebhookEvent(&models.WebhookEvent{
		Provider:       provider.Name(),
		ExternalID:     event.ExternalID,
		SessionID:      session.ID,
		PayloadJSON:    string(rawBody),
		SignatureValid: s.cfg.SecretFor(provider.Name()) != "",
	})
	if err != nil {
		return nil, err
	}

	if event.IsPaid() {
		return s.processPaid(ctx, session, event, stored, rawBody)
	}
	return s.processNotPaid(session, event, stored, rawBody)
}

func (s *Service) processPaid(ctx context.Context, session *models.CheckoutSession, event *gateway.Event, stored *models.WebhookEvent, rawBody []byte) (*Result, error) {
	price, err := s.repo.FindPrice(session.PriceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPriceNotFound
		}
		return nil, err
	}

	// The Price row is the amount of record; the gateway echo is advisory.
	if event.Amount != 0 && event.Amount != price.Amount {
		log.Printf("checkout %s: gateway amount %d differs from price amount %d (provider=%s ref=%s)",
			session.ID, event.Amount, price.Amount, event.Provider, event.ProviderRef)
	} else if event.Amount == 0 {
		log.Printf("checkout %s: gateway reported zero amount (provider=%s ref=%s)",
			session.ID, event.Provider, event.ProviderRef)
	}

	var shouldApply bool
	payment := models.Payment{
		UserID:            session.UserID,
		CheckoutSessionID: session.ID,
		Provider:          event.Provider,
		ProviderRef:       event.ProviderRef,
		Amount:            price.Amount,
		Currency:          price.Currency,
		Status:            models.PaymentStatusPaid,
	}

	err = s.repo.Transaction(func(r Repository) error {
		existing, err := r.FindPaymentByProviderRef(event.Provider, event.ProviderRef)
		if err != nil {
			return err
		}
		// Exactly-once gate: the grant fires only on the transition into PAID.
		shouldApply = existing == nil || existing.Status != models.PaymentStatusPaid

		if existing != nil {
			payment.ID = existing.ID
			payment.PublicID = existing.PublicID
		}
		if err := r.UpsertPayment(&payment); err != nil {
			return err
		}

		invoice := models.Invoice{
			PaymentID: payment.ID,
			UserID:    session.UserID,
			Status:    models.InvoiceStatusPaid,
			Total:     payment.Amount,
			Currency:  payment.Currency,
			IssuedAt:  time.Now(),
		}
		if err := r.UpsertInvoice(&invoice); err != nil {
			return err
		}

		_, err = r.UpdateSessionStatus(session.ID, models.CheckoutStatusSuccess, string(rawBody))
		return err
	})
	if err != nil {
		return nil, err
	}

	// Ledger truth is committed; the grant happens outside the transaction
	// and is never retried here. A failure leaves the webhook event row
	// carrying the error for the reconciliation sweep.
	var applyErr error
	if shouldApply {
		applyErr = s.applier.Apply(ctx, session.UserID, session.PriceID, payment.ID)
		if applyErr != nil {
			log.Printf("checkout %s: entitlement application failed for payment %d: %v",
				session.ID, payment.ID, applyErr)
		}
	}
	if err := s.repo.MarkWebhookProcessed(stored.ID, applyErr); err != nil {
		log.Printf("checkout %s: marking webhook event %d processed failed: %v", session.ID, stored.ID, err)
	}

	return &Result{Status: models.PaymentStatusPaid}, nil
}

func (s *Service) processNotPaid(session *models.CheckoutSession, event *gateway.Event, stored *models.WebhookEvent, rawBody []byte) (*Result, error) {
	err := s.repo.Transaction(func(r Repository) error {
		// A refund notice overwrites an existing payment's status; a refund
		// for a transaction never recorded creates nothing.
		if event.Status == gateway.StatusRefunded {
			existing, err := r.FindPaymentByProviderRef(event.Provider, event.ProviderRef)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := r.SavePaymentStatus(existing.ID, models.PaymentStatusRefunded); err != nil {
					return err
				}
			}
		}

		_, err := r.UpdateSessionStatus(session.ID, models.CheckoutStatusFailed, string(rawBody))
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkWebhookProcessed(stored.ID, nil); err != nil {
		log.Printf("checkout %s: marking webhook event %d processed failed: %v", session.ID, stored.ID, err)
	}

	// A failed payment notice is still a successfully processed webhook.
	return &Result{Status: models.PaymentStatusFailed}, nil
}

// StartSession opens a checkout session for a user buying a price through a
// provider. The session id is what the gateway echoes back on its callback.
func (s *Service) StartSession(userID uint, priceID uint, providerName string) (*models.CheckoutSession, error) {
	if _, ok := gateway.ByName(providerName); !ok {
		return nil, ErrUnknownProvider
	}
	price, err := s.repo.FindPrice(priceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPriceNotFound
		}
		return nil, err
	}
	// Deactivated prices are not purchasable; existing sessions still settle.
	if !price.Active {
		return nil, ErrPriceNotFound
	}

	session := &models.CheckoutSession{
		Provider: providerName,
		PriceID:  price.ID,
		UserID:   userID,
		Status:   models.CheckoutStatusStarted,
	}
	if err := s.repo.CreateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}
