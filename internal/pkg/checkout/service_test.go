package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arminiranpour/cnaghsh/app/models"
	"github.com/arminiranpour/cnaghsh/internal/pkg/gateway"
	"gorm.io/gorm"
)

// fakeRepository keeps the reconciler's state in maps so the full callback
// flow runs without a database.
type fakeRepository struct {
	sessions map[string]*models.CheckoutSession
	prices   map[uint]*models.Price
	payments map[string]*models.Payment
	invoices map[uint]*models.Invoice
	events   map[string]*models.WebhookEvent

	nextPaymentID uint
	nextEventID   uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		sessions:      make(map[string]*models.CheckoutSession),
		prices:        make(map[uint]*models.Price),
		payments:      make(map[string]*models.Payment),
		invoices:      make(map[uint]*models.Invoice),
		events:        make(map[string]*models.WebhookEvent),
		nextPaymentID: 1,
		nextEventID:   1,
	}
}

func paymentKey(provider, providerRef string) string {
	return provider + "/" + providerRef
}

func (f *fakeRepository) CreateSession(s *models.CheckoutSession) error {
	if s.ID == "" {
		s.ID = fmt.Sprintf("sess-%d", len(f.sessions)+1)
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeRepository) FindSession(id string) (*models.CheckoutSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeRepository) FindPrice(id uint) (*models.Price, error) {
	p, ok := f.prices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRepository) FindPaymentByProviderRef(provider, providerRef string) (*models.Payment, error) {
	p, ok := f.payments[paymentKey(provider, providerRef)]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRepository) UpsertPayment(p *models.Payment) error {
	key := paymentKey(p.Provider, p.ProviderRef)
	if existing, ok := f.payments[key]; ok {
		p.ID = existing.ID
		p.PublicID = existing.PublicID
	} else {
		p.ID = f.nextPaymentID
		f.nextPaymentID++
		p.PublicID = fmt.Sprintf("pub-%d", p.ID)
	}
	copied := *p
	f.payments[key] = &copied
	return nil
}

func (f *fakeRepository) UpsertInvoice(inv *models.Invoice) error {
	if existing, ok := f.invoices[inv.PaymentID]; ok {
		inv.ID = existing.ID
	} else {
		inv.ID = uint(len(f.invoices) + 1)
	}
	copied := *inv
	f.invoices[inv.PaymentID] = &copied
	return nil
}

func (f *fakeRepository) SavePaymentStatus(paymentID uint, status string) error {
	for _, p := range f.payments {
		if p.ID == paymentID {
			p.Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) UpdateSessionStatus(id, status, rawPayload string) (bool, error) {
	s, ok := f.sessions[id]
	if !ok {
		return false, nil
	}
	if s.IsTerminal() && s.Status != status {
		return false, nil
	}
	s.Status = status
	s.LastCallbackPayload = rawPayload
	return true, nil
}

func (f *fakeRepository) RecordWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.ExternalID
	if existing, ok := f.events[key]; ok {
		copied := *existing
		return false, &copied, nil
	}
	event.ID = f.nextEventID
	f.nextEventID++
	copied := *event
	f.events[key] = &copied
	stored := *event
	return true, &stored, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingErr error) error {
	for _, ev := range f.events {
		if ev.ID == id {
			if processingErr != nil {
				ev.ProcessingError = processingErr.Error()
			} else {
				now := time.Now()
				ev.ProcessedAt = &now
				ev.ProcessingError = ""
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) Transaction(fn func(r Repository) error) error {
	return fn(f)
}

type fakeApplier struct {
	calls []uint
	err   error
}

func (a *fakeApplier) Apply(ctx context.Context, userID, priceID, paymentID uint) error {
	a.calls = append(a.calls, paymentID)
	return a.err
}

func newTestService(t *testing.T) (*Service, *fakeRepository, *fakeApplier) {
	t.Helper()
	repo := newFakeRepository()
	repo.prices[10] = &models.Price{ID: 10, Name: "Job posting pack", Amount: 100000, Currency: "IRR", Active: true, GrantKind: "job_post", GrantCredits: 5}
	repo.sessions["S1"] = &models.CheckoutSession{ID: "S1", Provider: "idpay", PriceID: 10, UserID: 7, Status: models.CheckoutStatusStarted}
	applier := &fakeApplier{}
	cfg := gateway.Config{Secrets: map[string]string{"idpay": "hook-secret"}}
	return NewService(repo, cfg, applier), repo, applier
}

const paidIDPayBody = `{"sessionId":"S1","id":"idp_1","track_id":"trk_1","status":100,"amount":100000,"currency":"IRR"}`

func TestProcessCallback_PaidEndToEnd(t *testing.T) {
	svc, repo, applier := newTestService(t)

	res, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(paidIDPayBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != models.PaymentStatusPaid {
		t.Fatalf("expected PAID result, got %q", res.Status)
	}

	payment, ok := repo.payments[paymentKey("idpay", "trk_1")]
	if !ok {
		t.Fatalf("expected payment row for (idpay, trk_1)")
	}
	if payment.Status != models.PaymentStatusPaid || payment.Amount != 100000 || payment.UserID != 7 {
		t.Fatalf("unexpected payment: %+v", payment)
	}

	invoice, ok := repo.invoices[payment.ID]
	if !ok {
		t.Fatalf("expected invoice for payment %d", payment.ID)
	}
	if invoice.Total != 100000 || invoice.Status != models.InvoiceStatusPaid {
		t.Fatalf("unexpected invoice: %+v", invoice)
	}

	if repo.sessions["S1"].Status != models.CheckoutStatusSuccess {
		t.Fatalf("expected session SUCCESS, got %q", repo.sessions["S1"].Status)
	}
	if len(applier.calls) != 1 || applier.calls[0] != payment.ID {
		t.Fatalf("expected exactly one grant for payment %d, got %v", payment.ID, applier.calls)
	}
	ev, ok := repo.events["idpay/idp_1"]
	if !ok {
		t.Fatalf("expected webhook event journal entry")
	}
	if ev.ProcessedAt == nil || ev.ProcessingError != "" {
		t.Fatalf("expected event marked processed without error, got %+v", ev)
	}
}

func TestProcessCallback_RedeliveryIsIdempotent(t *testing.T) {
	svc, repo, applier := newTestService(t)

	for i := 0; i < 3; i++ {
		res, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(paidIDPayBody))
		if err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i+1, err)
		}
		if res.Status != models.PaymentStatusPaid {
			t.Fatalf("delivery %d: expected PAID result, got %q", i+1, res.Status)
		}
	}

	if len(repo.payments) != 1 {
		t.Fatalf("expected a single payment row, got %d", len(repo.payments))
	}
	if len(repo.invoices) != 1 {
		t.Fatalf("expected a single invoice row, got %d", len(repo.invoices))
	}
	if len(applier.calls) != 1 {
		t.Fatalf("expected the grant to fire once, got %d calls", len(applier.calls))
	}
	if repo.sessions["S1"].Status != models.CheckoutStatusSuccess {
		t.Fatalf("expected session to stay SUCCESS, got %q", repo.sessions["S1"].Status)
	}
}

func TestProcessCallback_RedeliveryUnderFreshEventID(t *testing.T) {
	svc, repo, applier := newTestService(t)

	if _, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(paidIDPayBody)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same settlement, different gateway event id: the payment key still dedupes.
	redelivered := `{"sessionId":"S1","id":"idp_1b","track_id":"trk_1","status":100,"amount":100000}`
	if _, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(redelivered)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.payments) != 1 {
		t.Fatalf("expected a single payment row, got %d", len(repo.payments))
	}
	if len(applier.calls) != 1 {
		t.Fatalf("expected the grant to fire once, got %d calls", len(applier.calls))
	}
	if len(repo.events) != 2 {
		t.Fatalf("expected both deliveries journaled, got %d", len(repo.events))
	}
}

func TestProcessCallback_InvalidSignature(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.ProcessCallback(context.Background(), "idpay", "wrong", []byte(paidIDPayBody))
	if err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	_, err = svc.ProcessCallback(context.Background(), "idpay", "", []byte(paidIDPayBody))
	if err != ErrInvalidSignature {
		t.Fatalf("expected empty signature to be rejected, got %v", err)
	}
	if len(repo.payments) != 0 || len(repo.events) != 0 {
		t.Fatalf("expected no state written for rejected deliveries")
	}
}

func TestProcessCallback_UnknownProvider(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ProcessCallback(context.Background(), "paypal", "", []byte(paidIDPayBody))
	if err != ErrUnknownProvider {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestProcessCallback_BadPayloads(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{not json`},
		{name: "missing session", body: `{"id":"idp_1","track_id":"trk_1","status":100}`},
		{name: "missing ref", body: `{"sessionId":"S1","id":"idp_1","status":100}`},
	}

	for _, tt := range tests {
		_, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(tt.body))
		var checkoutErr *Error
		if !errors.As(err, &checkoutErr) {
			t.Fatalf("%s: expected *Error, got %v", tt.name, err)
		}
		if checkoutErr.Status != 400 || checkoutErr.Code != "invalid_payload" {
			t.Fatalf("%s: expected 400 invalid_payload, got %d %s", tt.name, checkoutErr.Status, checkoutErr.Code)
		}
	}
}

func TestProcessCallback_SessionNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	body := `{"sessionId":"missing","id":"idp_1","track_id":"trk_1","status":100}`
	_, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(body))
	if err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestProcessCallback_ProviderMismatch(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.sessions["S2"] = &models.CheckoutSession{ID: "S2", Provider: "zarinpal", PriceID: 10, UserID: 7, Status: models.CheckoutStatusStarted}

	body := `{"sessionId":"S2","id":"idp_9","track_id":"trk_9","status":100}`
	_, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(body))
	if err != ErrProviderMismatch {
		t.Fatalf("expected ErrProviderMismatch, got %v", err)
	}
}

func TestProcessCallback_FailedPayment(t *testing.T) {
	svc, repo, applier := newTestService(t)

	body := `{"sessionId":"S1","id":"idp_1","track_id":"trk_1","status":3,"amount":100000}`
	res, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != models.PaymentStatusFailed {
		t.Fatalf("expected FAILED result, got %q", res.Status)
	}
	if repo.sessions["S1"].Status != models.CheckoutStatusFailed {
		t.Fatalf("expected session FAILED, got %q", repo.sessions["S1"].Status)
	}
	if len(repo.payments) != 0 {
		t.Fatalf("expected no payment row for a failed callback")
	}
	if len(applier.calls) != 0 {
		t.Fatalf("expected no grant for a failed callback")
	}
}

func TestProcessCallback_RefundOverwritesPayment(t *testing.T) {
	svc, repo, applier := newTestService(t)

	if _, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(paidIDPayBody)); err != nil {
		t.Fatalf("unexpected error on paid delivery: %v", err)
	}

	refund := `{"sessionId":"S1","id":"idp_1r","track_id":"trk_1","status":6,"amount":100000}`
	res, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(refund))
	if err != nil {
		t.Fatalf("unexpected error on refund delivery: %v", err)
	}
	if res.Status != models.PaymentStatusFailed {
		t.Fatalf("expected FAILED result for refund, got %q", res.Status)
	}

	payment := repo.payments[paymentKey("idpay", "trk_1")]
	if payment.Status != models.PaymentStatusRefunded {
		t.Fatalf("expected payment status REFUNDED, got %q", payment.Status)
	}
	if len(applier.calls) != 1 {
		t.Fatalf("expected the original grant untouched, got %d calls", len(applier.calls))
	}
}

func TestProcessCallback_RefundWithoutPayment(t *testing.T) {
	svc, repo, _ := newTestService(t)

	refund := `{"sessionId":"S1","id":"idp_1r","track_id":"trk_unknown","status":6}`
	res, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(refund))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != models.PaymentStatusFailed {
		t.Fatalf("expected FAILED result, got %q", res.Status)
	}
	if len(repo.payments) != 0 {
		t.Fatalf("expected no payment row created by a refund notice")
	}
}

func TestProcessCallback_ApplyFailureRecordedOnEvent(t *testing.T) {
	svc, repo, applier := newTestService(t)
	applier.err = errors.New("grant storage unavailable")

	res, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(paidIDPayBody))
	if err != nil {
		t.Fatalf("expected delivery to succeed despite grant failure, got %v", err)
	}
	if res.Status != models.PaymentStatusPaid {
		t.Fatalf("expected PAID result, got %q", res.Status)
	}

	ev := repo.events["idpay/idp_1"]
	if ev == nil || ev.ProcessingError != "grant storage unavailable" {
		t.Fatalf("expected grant failure recorded on the event, got %+v", ev)
	}
	// The sweep reads processed_at NULL + processing_error set.
	if ev.ProcessedAt != nil {
		t.Fatalf("expected a failed grant to leave the event unprocessed, got %v", ev.ProcessedAt)
	}
	if repo.payments[paymentKey("idpay", "trk_1")].Status != models.PaymentStatusPaid {
		t.Fatalf("expected the committed payment to stay PAID")
	}
}

func TestProcessCallback_AmountMismatchUsesPriceOfRecord(t *testing.T) {
	svc, repo, _ := newTestService(t)

	body := `{"sessionId":"S1","id":"idp_1","track_id":"trk_1","status":100,"amount":1}`
	if _, err := svc.ProcessCallback(context.Background(), "idpay", "hook-secret", []byte(body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment := repo.payments[paymentKey("idpay", "trk_1")]
	if payment.Amount != 100000 {
		t.Fatalf("expected price amount of record, got %d", payment.Amount)
	}
}

func TestStartSession(t *testing.T) {
	svc, repo, _ := newTestService(t)

	session, err := svc.StartSession(7, 10, "zarinpal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Status != models.CheckoutStatusStarted || session.Provider != "zarinpal" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if _, ok := repo.sessions[session.ID]; !ok {
		t.Fatalf("expected session persisted")
	}

	if _, err := svc.StartSession(7, 10, "paypal"); err != ErrUnknownProvider {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := svc.StartSession(7, 999, "idpay"); err != ErrPriceNotFound {
		t.Fatalf("expected ErrPriceNotFound, got %v", err)
	}
}

func TestStartSession_InactivePrice(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.prices[11] = &models.Price{ID: 11, Name: "Retired pack", Amount: 50000, Currency: "IRR", Active: false}

	if _, err := svc.StartSession(7, 11, "idpay"); err != ErrPriceNotFound {
		t.Fatalf("expected an inactive price to be rejected, got %v", err)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("expected no session created for an inactive price")
	}
}
