package payment

import "context"

// Intent is the gateway's view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	ChargeID     string
}

// Captured reports whether the gateway has settled the intent.
func (i Intent) Captured() bool {
	return i.Status == IntentStatusSucceeded
}

const (
	IntentStatusSucceeded       = "succeeded"
	IntentStatusRequiresCapture = "requires_capture"
)

const (
	RefundStatusFailed   = "failed"
	RefundStatusCanceled = "canceled"
)

type Refund struct {
	ID     string
	Status string
}

// Failed reports a refund the gateway will not pay out. Pending refunds are
// still expected to settle.
func (r Refund) Failed() bool {
	return r.Status == RefundStatusFailed || r.Status == RefundStatusCanceled
}

// Gateway is the payment provider. Intents are created for manual capture.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (Intent, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
	CaptureIntent(ctx context.Context, id string) (Intent, error)
	Refund(ctx context.Context, chargeID, reason string, metadata map[string]string) (Refund, error)
}
