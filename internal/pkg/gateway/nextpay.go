package gateway

// NextPay callbacks use HTTP-style result codes on a trans_id keyed payload.
type NextPay struct{}

func (n *NextPay) Name() string { return "nextpay" }

func (n *NextPay) ExtractID(p Payload) string {
	return lookupString(p, "trans_id")
}

func (n *NextPay) ExtractRef(p Payload) string {
	return lookupString(p, "shaparak_ref_id")
}

func (n *NextPay) ExtractAmount(p Payload) (int64, string) {
	return extractAmount(p, "amount", "price")
}

func (n *NextPay) MapStatus(p Payload) PaymentStatus {
	code, ok := statusNumber(p, "code", "status")
	if !ok {
		return StatusFailed
	}
	switch code {
	case 200, 201:
		return StatusPaid
	case 100, 102:
		return StatusPending
	case 410:
		return StatusRefunded
	default:
		return StatusFailed
	}
}
