package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/Domenick1991/studiobooking/internal/service/payment"
)

func TestToIntent(t *testing.T) {
	pi := &stripe.PaymentIntent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret",
		Status:       stripe.PaymentIntentStatusRequiresCapture,
		Amount:       5000,
		Currency:     stripe.CurrencyUSD,
		LatestCharge: &stripe.Charge{ID: "ch_1"},
	}

	intent := toIntent(pi)
	assert.Equal(t, payment.Intent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret",
		Status:       payment.IntentStatusRequiresCapture,
		Amount:       5000,
		Currency:     "usd",
		ChargeID:     "ch_1",
	}, intent)
	assert.False(t, intent.Captured())

	pi.Status = stripe.PaymentIntentStatusSucceeded
	assert.True(t, toIntent(pi).Captured())
}

func TestToIntent_NoCharge(t *testing.T) {
	intent := toIntent(&stripe.PaymentIntent{ID: "pi_2"})
	assert.Empty(t, intent.ChargeID)
	assert.Equal(t, payment.Intent{}, toIntent(nil))
}

func TestToRefund(t *testing.T) {
	assert.Equal(t, payment.Refund{ID: "re_1", Status: "succeeded"},
		toRefund(&stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded}))
	assert.Equal(t, payment.Refund{}, toRefund(nil))
	assert.True(t, toRefund(&stripe.Refund{ID: "re_2", Status: stripe.RefundStatusFailed}).Failed())
	assert.True(t, toRefund(&stripe.Refund{ID: "re_3", Status: stripe.RefundStatusCanceled}).Failed())
	assert.False(t, toRefund(&stripe.Refund{ID: "re_4", Status: stripe.RefundStatusPending}).Failed())
}

func TestNewStripeGateway(t *testing.T) {
	_, err := NewStripeGateway("")
	require.Error(t, err)

	g, err := NewStripeGateway("sk_test_123")
	require.NoError(t, err)
	assert.NotNil(t, g.sc)
}
