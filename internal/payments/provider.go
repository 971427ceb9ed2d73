package payments

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
)

// Sentinel errors shared across provider adapters.
var (
	// ErrUnsupportedMethod is returned when the gateway cannot locate a provider for the method.
	ErrUnsupportedMethod = errors.New("payments: unsupported payment method")
	// ErrProviderUnconfigured indicates missing credentials or certificates for the requested provider.
	ErrProviderUnconfigured = errors.New("payments: provider not configured")
	// ErrProviderRequestFailed indicates the upstream provider rejected or failed the request.
	ErrProviderRequestFailed = errors.New("payments: provider request failed")
	// ErrVerificationFailed indicates a callback signature could not be verified.
	ErrVerificationFailed = errors.New("payments: callback verification failed")
	// ErrMalformedCallback indicates a callback payload missing required fields.
	ErrMalformedCallback = errors.New("payments: malformed callback payload")
)

// SessionLineItem describes one order line forwarded to the provider checkout.
type SessionLineItem struct {
	Name      string
	Quantity  int64
	UnitPrice int64
}

// SessionRequest captures the payload required to open a provider payment session.
// Amounts are in whole SEK; adapters convert to provider units.
type SessionRequest struct {
	OrderID           string
	ExternalReference string
	Amount            int64
	UserID            string
	Items             []SessionLineItem
}

// Session is the provider session handed back to the client. Exactly one of
// CheckoutURL, SwishURL, or ClientSecret is populated depending on the method.
type Session struct {
	SessionID         string
	ExternalReference string
	CheckoutURL       string
	SwishURL          string
	ClientSecret      string
}

// CallbackOutcome normalises provider callback verdicts.
type CallbackOutcome string

const (
	// OutcomeSucceeded indicates the provider reports the payment as captured.
	OutcomeSucceeded CallbackOutcome = "succeeded"
	// OutcomeFailed indicates the provider reports a terminal failure.
	OutcomeFailed CallbackOutcome = "failed"
	// OutcomeIgnored indicates an event type the lifecycle does not act on.
	OutcomeIgnored CallbackOutcome = "ignored"
)

// CallbackEvent is the verified, normalised form of an inbound provider callback.
type CallbackEvent struct {
	ExternalReference string
	Outcome           CallbackOutcome
	ProviderEvent     string
}

// Provider is the contract payment adapters implement.
type Provider interface {
	// CreateSession opens a provider session for the given order.
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	// VerifyCallback authenticates and normalises a raw callback payload.
	// The header carries the provider's signature material where applicable.
	VerifyCallback(ctx context.Context, payload []byte, header string) (CallbackEvent, error)
}

// Gateway routes session creation and callback verification to the provider
// registered for each payment method.
type Gateway struct {
	providers map[domain.PaymentMethod]Provider
}

// NewGateway constructs a Gateway over the supplied providers.
func NewGateway(providers map[domain.PaymentMethod]Provider) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[domain.PaymentMethod]Provider, len(providers))
	for method, provider := range providers {
		if method == "" || provider == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for method %q", method)
		}
		copyMap[method] = provider
	}
	return &Gateway{providers: copyMap}, nil
}

func (g *Gateway) resolve(method domain.PaymentMethod) (Provider, error) {
	if g == nil || len(g.providers) == 0 {
		return nil, errors.New("payments: gateway is not initialised")
	}
	provider, ok := g.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return provider, nil
}

// CreateSession delegates to the provider registered for the method.
func (g *Gateway) CreateSession(ctx context.Context, method domain.PaymentMethod, req SessionRequest) (Session, error) {
	provider, err := g.resolve(method)
	if err != nil {
		return Session{}, err
	}
	return provider.CreateSession(ctx, req)
}

// VerifyCallback delegates to the provider registered for the method.
func (g *Gateway) VerifyCallback(ctx context.Context, method domain.PaymentMethod, payload []byte, header string) (CallbackEvent, error) {
	provider, err := g.resolve(method)
	if err != nil {
		return CallbackEvent{}, err
	}
	return provider.VerifyCallback(ctx, payload, header)
}
