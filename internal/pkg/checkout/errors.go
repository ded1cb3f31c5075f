package checkout

import "net/http"

// Error is a rejection the gateway caused and must not blindly retry. It
// carries the HTTP status and a short machine code for the response body so
// the controller never guesses. Anything else bubbling out of the reconciler
// is an internal fault and maps to 500, which gateways do retry.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

var (
	ErrInvalidSignature = &Error{Status: http.StatusUnauthorized, Code: "invalid_signature", Message: "Invalid signature"}
	ErrUnknownProvider  = &Error{Status: http.StatusBadRequest, Code: "unknown_provider", Message: "Unknown payment provider"}
	ErrProviderMismatch = &Error{Status: http.StatusBadRequest, Code: "provider_mismatch", Message: "Session belongs to a different provider"}
	ErrSessionNotFound  = &Error{Status: http.StatusNotFound, Code: "session_not_found", Message: "Session not found"}
	ErrPriceNotFound    = &Error{Status: http.StatusNotFound, Code: "price_not_found", Message: "Price not found"}
)

func badPayload(reason string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "invalid_payload", Message: reason}
}
