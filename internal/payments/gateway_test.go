package payments

import (
	"context"
	"errors"
	"testing"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
)

type fakeProvider struct {
	lastOp  string
	session Session
	event   CallbackEvent
	err     error
}

func (f *fakeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	f.lastOp = "create"
	return f.session, f.err
}

func (f *fakeProvider) VerifyCallback(ctx context.Context, payload []byte, header string) (CallbackEvent, error) {
	f.lastOp = "verify"
	return f.event, f.err
}

func TestNewGatewayRequiresProviders(t *testing.T) {
	if _, err := NewGateway(nil); err == nil {
		t.Fatal("expected error for empty provider map")
	}
	if _, err := NewGateway(map[domain.PaymentMethod]Provider{domain.PaymentMethodCard: nil}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestGatewayRoutesByMethod(t *testing.T) {
	card := &fakeProvider{session: Session{SessionID: "cs_1", CheckoutURL: "https://checkout"}}
	swish := &fakeProvider{event: CallbackEvent{ExternalReference: "ref_1", Outcome: OutcomeSucceeded}}

	gateway, err := NewGateway(map[domain.PaymentMethod]Provider{
		domain.PaymentMethodCard:  card,
		domain.PaymentMethodSwish: swish,
	})
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}

	session, err := gateway.CreateSession(context.Background(), domain.PaymentMethodCard, SessionRequest{OrderID: "ord_1", ExternalReference: "ref_1", Amount: 10})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if session.SessionID != "cs_1" || card.lastOp != "create" {
		t.Fatalf("expected card provider to create session, got %+v (op %s)", session, card.lastOp)
	}

	event, err := gateway.VerifyCallback(context.Background(), domain.PaymentMethodSwish, []byte(`{}`), "")
	if err != nil {
		t.Fatalf("VerifyCallback returned error: %v", err)
	}
	if event.Outcome != OutcomeSucceeded || swish.lastOp != "verify" {
		t.Fatalf("expected swish provider to verify, got %+v (op %s)", event, swish.lastOp)
	}
}

func TestGatewayRejectsUnknownMethod(t *testing.T) {
	gateway, err := NewGateway(map[domain.PaymentMethod]Provider{
		domain.PaymentMethodCard: &fakeProvider{},
	})
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}

	if _, err := gateway.CreateSession(context.Background(), domain.PaymentMethodSwish, SessionRequest{}); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
	if _, err := gateway.VerifyCallback(context.Background(), "invoice", nil, ""); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}
