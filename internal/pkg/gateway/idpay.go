package gateway

// IDPay callbacks carry a transaction id plus a bank track id and report the
// outcome as a numeric code: 100 verified, 101 already verified, 200 settled.
type IDPay struct{}

func (i *IDPay) Name() string { return "idpay" }

func (i *IDPay) ExtractID(p Payload) string {
	return lookupString(p, "id")
}

func (i *IDPay) ExtractRef(p Payload) string {
	return lookupString(p, "track_id")
}

func (i *IDPay) ExtractAmount(p Payload) (int64, string) {
	return extractAmount(p, "amount")
}

func (i *IDPay) MapStatus(p Payload) PaymentStatus {
	code, ok := statusNumber(p, "status")
	if !ok {
		return StatusFailed
	}
	switch code {
	case 100, 101, 200:
		return StatusPaid
	case 1, 8, 10:
		return StatusPending
	case 5, 6:
		return StatusRefunded
	default:
		return StatusFailed
	}
}
