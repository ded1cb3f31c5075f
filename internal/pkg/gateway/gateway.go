package gateway

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PaymentStatus is the canonical settlement state shared by all providers.
type PaymentStatus string

const (
	StatusPaid     PaymentStatus = "PAID"
	StatusPending  PaymentStatus = "PENDING"
	StatusFailed   PaymentStatus = "FAILED"
	StatusRefunded PaymentStatus = "REFUNDED"
)

// DefaultCurrency is assumed when a callback payload carries no currency.
const DefaultCurrency = "IRR"

// Payload is the raw decoded JSON body of a gateway callback.
type Payload map[string]interface{}

// Provider normalizes one gateway's callback payload shape. Implementations
// are pure: no I/O, no state.
type Provider interface {
	Name() string
	// ExtractID returns the gateway's transaction identifier, or "" when the
	// provider-specific key is absent.
	ExtractID(p Payload) string
	// ExtractRef returns the gateway's settlement reference, or "".
	ExtractRef(p Payload) string
	// ExtractAmount returns the amount in smallest currency units plus the
	// currency code. Unparsable amounts coerce to 0, never an error.
	ExtractAmount(p Payload) (int64, string)
	// MapStatus maps the provider status onto the shared enum. Unknown values
	// map to StatusFailed, never StatusPaid.
	MapStatus(p Payload) PaymentStatus
}

// Event is the canonical view of one gateway callback.
type Event struct {
	Provider    string
	SessionID   string
	ExternalID  string
	ProviderRef string
	Amount      int64
	Currency    string
	Status      PaymentStatus
}

// IsPaid reports whether the callback signals a settled payment.
func (e *Event) IsPaid() bool {
	return e.Status == StatusPaid
}

// DecodeError marks a payload that cannot be normalized. It is a caller
// error (HTTP 400), not a server fault: gateways must not retry it.
type DecodeError struct {
	Provider string
	Field    string
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s payload: %s (%s)", e.Provider, e.Reason, e.Field)
}

var registry = map[string]Provider{}

func register(p Provider) {
	registry[p.Name()] = p
}

func init() {
	register(&Zarinpal{})
	register(&IDPay{})
	register(&NextPay{})
}

// ByName resolves a registered provider. The bool is false for gateways this
// deployment does not support.
func ByName(name string) (Provider, bool) {
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names lists all registered provider names, sorted for stable output.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Decode normalizes a callback payload into an Event. The session id must
// already have been pulled out of the payload by the caller; it is needed for
// the shared external-id fallback.
func Decode(p Provider, sessionID string, payload Payload) (*Event, error) {
	ref := p.ExtractRef(payload)
	if ref == "" {
		// Shared fallback keys seen across all three gateways' sandboxes.
		ref = lookupString(payload, "ref_id", "reference", "transaction_id")
	}
	if ref == "" {
		return nil, &DecodeError{Provider: p.Name(), Field: "provider_ref", Reason: "no settlement reference in payload"}
	}

	id := p.ExtractID(payload)
	if id == "" {
		// Compose a synthetic id from shared fields when the provider-specific
		// key is missing; fatal only when nothing usable exists.
		if sessionID == "" {
			return nil, &DecodeError{Provider: p.Name(), Field: "external_id", Reason: "no transaction id in payload"}
		}
		id = sessionID + ":" + ref
	}

	amount, currency := p.ExtractAmount(payload)

	return &Event{
		Provider:    p.Name(),
		SessionID:   sessionID,
		ExternalID:  id,
		ProviderRef: ref,
		Amount:      amount,
		Currency:    currency,
		Status:      p.MapStatus(payload),
	}, nil
}

// SessionID pulls the checkout session id all providers echo back on their
// callbacks.
func SessionID(p Payload) string {
	return lookupString(p, "sessionId", "session_id")
}

// lookup fetches a payload value by key, matching keys case-insensitively.
func lookup(p Payload, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := p[key]; ok {
			return v, true
		}
	}
	for _, key := range keys {
		for k, v := range p {
			if strings.EqualFold(k, key) {
				return v, true
			}
		}
	}
	return nil, false
}

func lookupString(p Payload, keys ...string) string {
	v, ok := lookup(p, keys...)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == math.Trunc(s) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// coerceAmount truncates numeric or numeric-string values to an integer
// smallest-unit amount. Anything unparsable is 0; the reconciler decides
// whether a zero amount matters.
func coerceAmount(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(math.Trunc(n))
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Trunc(f))
		}
		return 0
	default:
		return 0
	}
}

// extractAmount implements the shared amount/currency contract: the first of
// the given keys wins, currency defaults to IRR.
func extractAmount(p Payload, amountKeys ...string) (int64, string) {
	amount := int64(0)
	if v, ok := lookup(p, amountKeys...); ok {
		amount = coerceAmount(v)
	}
	currency := strings.ToUpper(lookupString(p, "currency"))
	if currency == "" {
		currency = DefaultCurrency
	}
	return amount, currency
}

// statusNumber reads a numeric status code, accepting numeric strings.
func statusNumber(p Payload, keys ...string) (int64, bool) {
	v, ok := lookup(p, keys...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
