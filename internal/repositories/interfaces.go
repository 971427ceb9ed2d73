package repositories

import (
	"context"
	"time"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	PaymentSessions() PaymentSessionRepository
	Receipts() ReceiptRepository
	UserContexts() UserContextRepository
	Favorites() FavoriteRepository
	CategoryStats() CategoryStatsRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists order documents and provides user-scoped history queries.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, filter OrderListFilter) ([]domain.Order, error)
}

// OrderListFilter bounds history queries. Limit is applied after the service
// clamps it to its documented default and cap.
type OrderListFilter struct {
	Limit         int
	CreatedBefore *time.Time
}

// PaymentSessionRepository stores payment sessions keyed by session ID. The
// external reference is unique across sessions and is the only lookup used by
// callback handling.
type PaymentSessionRepository interface {
	Insert(ctx context.Context, session domain.PaymentSession) error
	Update(ctx context.Context, session domain.PaymentSession) error
	FindByID(ctx context.Context, sessionID string) (domain.PaymentSession, error)
	FindByExternalReference(ctx context.Context, reference string) (domain.PaymentSession, error)
}

// ReceiptRepository persists the at-most-once receipt delivery guard.
type ReceiptRepository interface {
	Get(ctx context.Context, orderID string) (domain.Receipt, error)
	MarkSent(ctx context.Context, orderID string, sentAt time.Time) error
}

// UserContextRepository stores per-user preferences.
type UserContextRepository interface {
	Get(ctx context.Context, userID string) (domain.UserContext, error)
	Upsert(ctx context.Context, uc domain.UserContext) (domain.UserContext, error)
}

// FavoriteRepository tracks favorite menu items per user.
type FavoriteRepository interface {
	List(ctx context.Context, userID string) ([]domain.Favorite, error)
	Exists(ctx context.Context, userID string, itemID string) (bool, error)
	Put(ctx context.Context, favorite domain.Favorite) error
	Delete(ctx context.Context, userID string, itemID string) error
}

// CategoryStatsRepository maintains co-occurrence counts for category pairs.
// Keys are canonical (ordered pair, smaller category first).
type CategoryStatsRepository interface {
	Increment(ctx context.Context, stat domain.CategoryStat) error
	List(ctx context.Context) ([]domain.CategoryStat, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
