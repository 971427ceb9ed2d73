package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time
	Clients       *stripeClients
}

// StripeProvider implements the Provider interface over hosted Checkout Sessions.
// Order amounts arrive in whole SEK and are converted to öre for the API.
type StripeProvider struct {
	api           stripeClients
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
	clock         func() time.Time
	logger        StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, fmt.Errorf("%w: stripe api key is required", ErrProviderUnconfigured)
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{sessions: sc.CheckoutSessions}
	}

	if clients.sessions == nil {
		return nil, fmt.Errorf("%w: incomplete stripe client configuration", ErrProviderUnconfigured)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "sek"
	}

	return &StripeProvider{
		api:           clients,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		successURL:    strings.TrimSpace(cfg.SuccessURL),
		cancelURL:     strings.TrimSpace(cfg.CancelURL),
		currency:      currency,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateSession opens a hosted Checkout Session carrying the external
// reference as the client reference ID.
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if p == nil {
		return Session{}, errors.New("stripe: provider is nil")
	}
	if p.successURL == "" || p.cancelURL == "" {
		return Session{}, fmt.Errorf("%w: stripe redirect urls are required", ErrProviderUnconfigured)
	}
	reference := strings.TrimSpace(req.ExternalReference)
	if reference == "" {
		return Session{}, errors.New("stripe: external reference is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(reference),
	}
	params.Context = ctx
	params.SetIdempotencyKey(reference)
	params.Metadata = map[string]string{
		"orderId":           req.OrderID,
		"externalReference": reference,
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(max64(item.Quantity, 1)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.currency),
				UnitAmount: stripe.Int64(item.UnitPrice * 100),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	if len(lineItems) == 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.currency),
				UnitAmount: stripe.Int64(req.Amount * 100),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order"),
				},
			},
		})
	}
	params.LineItems = lineItems

	session, err := p.api.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("%w: create checkout session: %v", ErrProviderRequestFailed, err)
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"orderId":   req.OrderID,
		"reference": reference,
	})

	return Session{
		SessionID:         session.ID,
		ExternalReference: reference,
		CheckoutURL:       session.URL,
		ClientSecret:      session.ClientSecret,
	}, nil
}

// VerifyCallback authenticates the webhook signature before trusting any
// payload field, then maps the event type onto a lifecycle outcome.
func (p *StripeProvider) VerifyCallback(ctx context.Context, payload []byte, header string) (CallbackEvent, error) {
	if p == nil {
		return CallbackEvent{}, errors.New("stripe: provider is nil")
	}
	if p.webhookSecret == "" {
		return CallbackEvent{}, fmt.Errorf("%w: stripe webhook secret is required", ErrProviderUnconfigured)
	}

	event, err := webhook.ConstructEvent(payload, header, p.webhookSecret)
	if err != nil {
		return CallbackEvent{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return CallbackEvent{}, fmt.Errorf("%w: decode checkout session: %v", ErrMalformedCallback, err)
	}

	outcome := OutcomeIgnored
	switch event.Type {
	case "checkout.session.completed":
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusUnpaid {
			outcome = OutcomeSucceeded
		}
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		outcome = OutcomeFailed
	}

	p.logger(ctx, "payments.stripe.callback.verified", map[string]any{
		"eventType": string(event.Type),
		"reference": session.ClientReferenceID,
		"outcome":   string(outcome),
	})

	return CallbackEvent{
		ExternalReference: session.ClientReferenceID,
		Outcome:           outcome,
		ProviderEvent:     string(event.Type),
	}, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
