// Package gateway adapts the Stripe API to the payment coordinator.
package gateway

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v82"

	"github.com/Domenick1991/studiobooking/internal/service/payment"
)

type StripeGateway struct {
	sc *stripe.Client
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	return &StripeGateway{sc: stripe.NewClient(secretKey)}, nil
}

// NewStripeGatewayWithClient wraps an already configured client.
func NewStripeGatewayWithClient(sc *stripe.Client) *StripeGateway {
	return &StripeGateway{sc: sc}
}

// CreateIntent opens a manual-capture intent so the funds are only taken on
// an explicit capture.
func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (payment.Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := g.sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return payment.Intent{}, err
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (payment.Intent, error) {
	params := &stripe.PaymentIntentRetrieveParams{}
	params.AddExpand("latest_charge")
	pi, err := g.sc.V1PaymentIntents.Retrieve(ctx, id, params)
	if err != nil {
		return payment.Intent{}, err
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CaptureIntent(ctx context.Context, id string) (payment.Intent, error) {
	pi, err := g.sc.V1PaymentIntents.Capture(ctx, id, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		return payment.Intent{}, err
	}
	return toIntent(pi), nil
}

// Refund refunds chargeID in full. Stripe only accepts a fixed set of refund
// reasons; the caller's reason is expected in metadata.
func (g *StripeGateway) Refund(ctx context.Context, chargeID, _ string, metadata map[string]string) (payment.Refund, error) {
	params := &stripe.RefundCreateParams{
		Charge: stripe.String(chargeID),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	r, err := g.sc.V1Refunds.Create(ctx, params)
	if err != nil {
		return payment.Refund{}, err
	}
	return toRefund(r), nil
}

func toIntent(pi *stripe.PaymentIntent) payment.Intent {
	if pi == nil {
		return payment.Intent{}
	}
	intent := payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.LatestCharge != nil {
		intent.ChargeID = pi.LatestCharge.ID
	}
	return intent
}

func toRefund(r *stripe.Refund) payment.Refund {
	if r == nil {
		return payment.Refund{}
	}
	return payment.Refund{ID: r.ID, Status: string(r.Status)}
}

var _ payment.Gateway = (*StripeGateway)(nil)
