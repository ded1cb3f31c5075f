package gateway

import "strings"

// Zarinpal callbacks identify the transaction by its payment authority and
// report the outcome as a string enum.
type Zarinpal struct{}

func (z *Zarinpal) Name() string { return "zarinpal" }

func (z *Zarinpal) ExtractID(p Payload) string {
	return lookupString(p, "authority")
}

func (z *Zarinpal) ExtractRef(p Payload) string {
	return lookupString(p, "ref_id")
}

func (z *Zarinpal) ExtractAmount(p Payload) (int64, string) {
	return extractAmount(p, "amount")
}

func (z *Zarinpal) MapStatus(p Payload) PaymentStatus {
	switch strings.ToUpper(lookupString(p, "status")) {
	case "OK", "PAID", "SUCCESS":
		return StatusPaid
	case "PENDING", "IN_PROGRESS":
		return StatusPending
	case "REFUNDED":
		return StatusRefunded
	default:
		return StatusFailed
	}
}
