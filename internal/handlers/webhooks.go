package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	"github.com/khalidfrds/ikea-bistro-backend/internal/payments"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/httpx"
	"github.com/khalidfrds/ikea-bistro-backend/internal/services"
)

const maxWebhookBodyBytes = 256 * 1024

// StripeSignatureHeader carries the signed payload digest on Stripe callbacks.
const StripeSignatureHeader = "Stripe-Signature"

// WebhookHandlers receives provider payment callbacks. Callers are
// authenticated cryptographically: the payload signature is verified before
// any state is touched, so the routes carry no session auth.
type WebhookHandlers struct {
	orders services.OrderService
}

// NewWebhookHandlers validates dependencies and constructs the handlers.
func NewWebhookHandlers(orders services.OrderService) (*WebhookHandlers, error) {
	if orders == nil {
		return nil, errors.New("handlers: order service is required")
	}
	return &WebhookHandlers{orders: orders}, nil
}

// Register mounts the webhook routes on the provided router.
func (h *WebhookHandlers) Register(r chi.Router) {
	r.Post("/stripe", h.stripe)
	r.Post("/swish", h.swish)
}

type webhookResponse struct {
	Received bool   `json:"received"`
	OrderID  string `json:"orderId,omitempty"`
}

func (h *WebhookHandlers) stripe(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.PaymentMethodCard, r.Header.Get(StripeSignatureHeader))
}

func (h *WebhookHandlers) swish(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.PaymentMethodSwish, "")
}

func (h *WebhookHandlers) handle(w http.ResponseWriter, r *http.Request, method domain.PaymentMethod, header string) {
	// The raw body is passed through untouched so signature verification is
	// performed over the exact bytes the provider signed.
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "callback body could not be read", http.StatusBadRequest))
		return
	}
	_ = r.Body.Close()
	if int64(len(payload)) > maxWebhookBodyBytes {
		httpx.WriteError(r.Context(), w, httpx.NewError("body_too_large", "callback body exceeds the allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	result, err := h.orders.HandlePaymentCallback(r.Context(), method, payload, header)
	if err != nil {
		writeWebhookError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookResponse{Received: result.Received, OrderID: result.OrderID})
}

func writeWebhookError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, payments.ErrVerificationFailed):
		httpx.WriteError(r.Context(), w, httpx.NewError("verification_failed", "callback signature verification failed", http.StatusBadRequest))
	case errors.Is(err, payments.ErrMalformedCallback):
		httpx.WriteError(r.Context(), w, httpx.NewError("malformed_callback", "callback payload could not be parsed", http.StatusBadRequest))
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(r.Context(), w, httpx.NewError("session_not_found", "callback references an unknown payment session", http.StatusBadRequest))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("internal_error", "callback processing failed", http.StatusInternalServerError))
	}
}
