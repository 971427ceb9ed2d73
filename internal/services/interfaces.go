package services

import (
	"context"
	"time"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	"github.com/khalidfrds/ikea-bistro-backend/internal/payments"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order              = domain.Order
	LineItem           = domain.LineItem
	OrderStatus        = domain.OrderStatus
	PaymentMethod      = domain.PaymentMethod
	PaymentSession     = domain.PaymentSession
	SessionStatus      = domain.SessionStatus
	Receipt            = domain.Receipt
	UserContext        = domain.UserContext
	Favorite           = domain.Favorite
	CategoryStat       = domain.CategoryStat
	Store              = domain.Store
	CatalogItem        = domain.CatalogItem
	OrderEvent         = domain.OrderEvent
	SystemHealthReport = domain.SystemHealthReport
)

// Order lifecycle event types published for downstream consumers.
const (
	OrderEventConfirmed = "order.confirmed"
	OrderEventReady     = "order.ready"
)

// OrderService owns the order lifecycle: creation with authoritative pricing,
// webhook-driven confirmation, and the confirmed → ready transition.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error)
	HandlePaymentCallback(ctx context.Context, method PaymentMethod, payload []byte, header string) (CallbackResult, error)
	MarkReady(ctx context.Context, orderID string) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListHistory(ctx context.Context, userID string, limit int) ([]OrderSummary, error)
}

// ReceiptService guards receipt delivery against duplicate sends. The guard is
// advisory: the persisted flag is checked before sending and recorded after,
// not atomically with the send itself.
type ReceiptService interface {
	SendReceipt(ctx context.Context, order Order) bool
}

// UserService manages per-user context and favorite menu items.
type UserService interface {
	GetContext(ctx context.Context, userID string) (UserContext, error)
	UpsertContext(ctx context.Context, cmd UpsertUserContextCommand) (UserContext, error)
	ToggleFavorite(ctx context.Context, cmd ToggleFavoriteCommand) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]FavoriteItem, error)
}

// UpsellService records category co-occurrence per order and ranks suggestions
// against the categories already present in a cart.
type UpsellService interface {
	RecordOrder(ctx context.Context, categories []string) error
	Suggest(ctx context.Context, cmd SuggestCommand) ([]Suggestion, error)
}

// CounterService allocates sequence numbers on top of the counter repository.
type CounterService interface {
	Next(ctx context.Context, counterID string, opts CounterGenerationOptions) (int64, error)
	NextOrderNumber(ctx context.Context) (int64, error)
}

// SystemService aggregates utility surfaces such as health reporting.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// PaymentGateway is satisfied by payments.Gateway; services depend on the
// narrow surface so tests can stub provider behaviour.
type PaymentGateway interface {
	CreateSession(ctx context.Context, method domain.PaymentMethod, req payments.SessionRequest) (payments.Session, error)
	VerifyCallback(ctx context.Context, method domain.PaymentMethod, payload []byte, header string) (payments.CallbackEvent, error)
}

// MessageSender delivers a text message to a user over the bot channel.
// Satisfied by the Telegram sender in internal/notify.
type MessageSender interface {
	Send(ctx context.Context, recipient string, text string) bool
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// ReadyTransitionScheduler defers the confirmed → ready transition decoupled
// from the request that confirmed the order.
type ReadyTransitionScheduler interface {
	Schedule(orderID string)
}

// Command and DTO definitions ------------------------------------------------

// CartLine is one requested cart line; prices are never accepted from callers.
type CartLine struct {
	ItemID   string
	Quantity int
}

type CreateOrderCommand struct {
	UserID        string
	StoreID       string
	PaymentMethod PaymentMethod
	Items         []CartLine
}

// CreateOrderResult reports the persisted order plus the provider redirect
// artifact. Exactly one of CheckoutURL, SwishURL, or ClientSecret is set.
type CreateOrderResult struct {
	OrderID          string
	OrderNumber      int64
	Status           OrderStatus
	PaymentSessionID string
	Amount           int64
	CheckoutURL      string
	SwishURL         string
	ClientSecret     string
}

// CallbackResult reports the outcome of a verified provider callback.
type CallbackResult struct {
	Received bool
	OrderID  string
	Outcome  payments.CallbackOutcome
}

// OrderSummary is a history row with the store name denormalised from the seed.
type OrderSummary struct {
	OrderID       string
	OrderNumber   int64
	Status        OrderStatus
	TotalPrice    int64
	PaymentMethod PaymentMethod
	StoreID       string
	StoreName     string
	ReceiptSent   bool
	CreatedAt     time.Time
}

type UpsertUserContextCommand struct {
	UserID               string
	PreferredStoreID     *string
	NotificationsEnabled *bool
}

type ToggleFavoriteCommand struct {
	UserID string
	ItemID string
	Mark   bool
}

// FavoriteItem is a favorite joined with its current catalog entry.
type FavoriteItem struct {
	ItemID    string
	Name      string
	Category  string
	UnitPrice int64
	CreatedAt time.Time
}

type SuggestCommand struct {
	Items []CartLine
	Limit int
}

// Suggestion ranks a category by how often it co-occurred with the cart's
// categories in past orders.
type Suggestion struct {
	Category string
	Score    int64
}

// CounterGenerationOptions controls increment behaviour and bounds.
type CounterGenerationOptions struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// OrderListFilter re-exports the repository history filter.
type OrderListFilter = repositories.OrderListFilter

// BuildInfo carries build metadata surfaced by the health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}
