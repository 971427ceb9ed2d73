package payments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SwishLogger defines the logging contract for Swish provider operations.
type SwishLogger func(ctx context.Context, event string, fields map[string]any)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SwishProviderConfig configures the SwishProvider. The client certificate
// pair authenticates the merchant against the Swish API (mutual TLS).
type SwishProviderConfig struct {
	BaseURL       string
	PayeeAlias    string
	CallbackURL   string
	Currency      string
	ClientCertPEM []byte
	ClientKeyPEM  []byte
	RootCAPEM     []byte
	HTTPClient    httpDoer
	Logger        SwishLogger
	Clock         func() time.Time
}

// SwishProvider implements the Provider interface against the Swish merchant
// payment-request API. Callbacks arrive on the pre-registered callback URL;
// their authenticity rests on that registration, not on a payload signature.
type SwishProvider struct {
	client      httpDoer
	baseURL     string
	payeeAlias  string
	callbackURL string
	currency    string
	clock       func() time.Time
	logger      SwishLogger
}

// NewSwishProvider constructs a Swish Provider using the given configuration.
// A provider without certificate material is still constructed; session
// creation reports it as unconfigured so order creation can fail cleanly.
func NewSwishProvider(cfg SwishProviderConfig) (*SwishProvider, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "SEK"
	}

	client := cfg.HTTPClient
	if client == nil && len(cfg.ClientCertPEM) > 0 && len(cfg.ClientKeyPEM) > 0 {
		built, err := newSwishHTTPClient(cfg.ClientCertPEM, cfg.ClientKeyPEM, cfg.RootCAPEM)
		if err != nil {
			return nil, err
		}
		client = built
	}

	return &SwishProvider{
		client:      client,
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		payeeAlias:  strings.TrimSpace(cfg.PayeeAlias),
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		currency:    currency,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func newSwishHTTPClient(certPEM, keyPEM, rootCAPEM []byte) (*http.Client, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("swish: load client certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if len(rootCAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(rootCAPEM) {
			return nil, errors.New("swish: invalid root ca bundle")
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Timeout:   15 * time.Second,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

type swishPaymentRequest struct {
	PayeePaymentReference string `json:"payeePaymentReference"`
	CallbackURL           string `json:"callbackUrl"`
	PayeeAlias            string `json:"payeeAlias"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	Message               string `json:"message,omitempty"`
}

type swishCallbackPayload struct {
	Reference             string `json:"reference"`
	PayeePaymentReference string `json:"payeePaymentReference"`
	Status                string `json:"status"`
	Amount                string `json:"amount"`
}

// CreateSession registers a payment request with Swish and returns the app link.
func (p *SwishProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if p == nil {
		return Session{}, errors.New("swish: provider is nil")
	}
	if p.client == nil || p.baseURL == "" || p.payeeAlias == "" || p.callbackURL == "" {
		return Session{}, fmt.Errorf("%w: swish certificate or merchant settings missing", ErrProviderUnconfigured)
	}
	reference := strings.TrimSpace(req.ExternalReference)
	if reference == "" {
		return Session{}, errors.New("swish: external reference is required")
	}

	// Derived deterministically from the reference so a retried create lands
	// on the same payment request instead of opening a duplicate.
	instructionID := swishInstructionID(reference)

	body, err := json.Marshal(swishPaymentRequest{
		PayeePaymentReference: reference,
		CallbackURL:           p.callbackURL,
		PayeeAlias:            p.payeeAlias,
		Amount:                fmt.Sprintf("%d", req.Amount),
		Currency:              p.currency,
	})
	if err != nil {
		return Session{}, fmt.Errorf("swish: encode payment request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v2/paymentrequests/%s", p.baseURL, instructionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("swish: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("%w: swish request: %v", ErrProviderRequestFailed, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Session{}, fmt.Errorf("%w: swish responded %d", ErrProviderRequestFailed, resp.StatusCode)
	}

	token := strings.TrimSpace(resp.Header.Get("PaymentRequestToken"))
	swishURL := strings.TrimSpace(resp.Header.Get("Location"))
	if token != "" {
		swishURL = "swish://paymentrequest?token=" + token
	}

	p.logger(ctx, "payments.swish.session.created", map[string]any{
		"instructionId": instructionID,
		"orderId":       req.OrderID,
		"reference":     reference,
	})

	return Session{
		SessionID:         instructionID,
		ExternalReference: reference,
		SwishURL:          swishURL,
	}, nil
}

// VerifyCallback validates required fields and maps the Swish status onto a
// lifecycle outcome. The signature header is unused: Swish authenticates the
// merchant connection, not individual callbacks.
func (p *SwishProvider) VerifyCallback(ctx context.Context, payload []byte, _ string) (CallbackEvent, error) {
	if p == nil {
		return CallbackEvent{}, errors.New("swish: provider is nil")
	}

	var parsed swishCallbackPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return CallbackEvent{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	reference := strings.TrimSpace(parsed.PayeePaymentReference)
	if reference == "" {
		reference = strings.TrimSpace(parsed.Reference)
	}
	status := strings.ToUpper(strings.TrimSpace(parsed.Status))
	if reference == "" || status == "" {
		return CallbackEvent{}, fmt.Errorf("%w: reference and status are required", ErrMalformedCallback)
	}

	outcome := OutcomeIgnored
	switch status {
	case "PAID":
		outcome = OutcomeSucceeded
	case "DECLINED", "ERROR":
		outcome = OutcomeFailed
	}

	p.logger(ctx, "payments.swish.callback.verified", map[string]any{
		"reference": reference,
		"status":    status,
		"outcome":   string(outcome),
	})

	return CallbackEvent{
		ExternalReference: reference,
		Outcome:           outcome,
		ProviderEvent:     status,
	}, nil
}

func swishInstructionID(reference string) string {
	sum := sha256.Sum256([]byte(reference))
	return strings.ToUpper(hex.EncodeToString(sum[:16]))
}
