// Package payments captures and refunds booking charges. Card bookings go
// through Stripe PaymentIntents; cash bookings are recorded without a charge.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	paymentintent "github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

// Processor settles the money side of a booking. Capture runs when a booking
// completes, Refund when it moves to REFUNDED. Both return a provider
// reference stored on the booking.
type Processor interface {
	Capture(ctx context.Context, bookingID string, amountCents int64) (string, error)
	Refund(ctx context.Context, bookingID, paymentRef string, amountCents int64) (string, error)
}

// CardMethod reports whether the payment method settles through the card
// processor. Cash and pay-at-salon methods never reach Stripe.
func CardMethod(method string) bool {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "card", "upi", "wallet":
		return true
	default:
		return false
	}
}

// MockProcessor fabricates references without touching a provider. Used in
// development and whenever no Stripe key is configured.
type MockProcessor struct{}

func (MockProcessor) Capture(ctx context.Context, bookingID string, amountCents int64) (string, error) {
	return "mock_pi_" + uuid.NewString(), nil
}

func (MockProcessor) Refund(ctx context.Context, bookingID, paymentRef string, amountCents int64) (string, error) {
	return "mock_re_" + uuid.NewString(), nil
}

type StripeProcessor struct {
	secretKey string
	currency  string
	logger    *slog.Logger
}

func NewStripeProcessor(secretKey, currency string, logger *slog.Logger) *StripeProcessor {
	if currency == "" {
		currency = "inr"
	}
	return &StripeProcessor{secretKey: secretKey, currency: currency, logger: logger}
}

func (p *StripeProcessor) Capture(ctx context.Context, bookingID string, amountCents int64) (string, error) {
	// Stripe uses a global API key. Keep usage limited to this call.
	stripe.Key = p.secretKey

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(p.currency),
		Confirm:       stripe.Bool(true),
		PaymentMethod: stripe.String("pm_card_visa"),
		Metadata:      map[string]string{"booking_id": bookingID},
	}
	// Stripe-level idempotency keyed on the booking: retried completions do
	// not double-charge.
	params.IdempotencyKey = stripe.String("booking-capture-" + bookingID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe capture: %w", err)
	}
	p.logger.Info("payment captured", "booking_id", bookingID, "payment_intent", pi.ID, "amount", amountCents)
	return pi.ID, nil
}

func (p *StripeProcessor) Refund(ctx context.Context, bookingID, paymentRef string, amountCents int64) (string, error) {
	if paymentRef == "" {
		return "", fmt.Errorf("stripe refund: booking %s has no payment reference", bookingID)
	}
	stripe.Key = p.secretKey

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(amountCents),
		Metadata:      map[string]string{"booking_id": bookingID},
	}
	params.IdempotencyKey = stripe.String("booking-refund-" + bookingID)

	re, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe refund: %w", err)
	}
	p.logger.Info("payment refunded", "booking_id", bookingID, "refund", re.ID, "amount", amountCents)
	return re.ID, nil
}
