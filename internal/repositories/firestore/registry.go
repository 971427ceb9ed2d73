package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/khalidfrds/ikea-bistro-backend/internal/platform/firestore"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	orders        *OrderRepository
	sessions      *PaymentSessionRepository
	receipts      *ReceiptRepository
	userContexts  *UserContextRepository
	favorites     *FavoriteRepository
	categoryStats *CategoryStatsRepository
	counters      *CounterRepository
	health        repositories.HealthRepository
}

// RegistryOption customises registry construction.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	counterOpts []CounterOption
	health      repositories.HealthRepository
}

// WithRegistryCounterOptions forwards options to the counter repository.
func WithRegistryCounterOptions(opts ...CounterOption) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.counterOpts = append(cfg.counterOpts, opts...)
	}
}

// WithRegistryHealth installs the health repository exposed through the registry.
func WithRegistryHealth(health repositories.HealthRepository) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.health = health
	}
}

// NewRegistry wires every Firestore repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	cfg := registryConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	sessions, err := NewPaymentSessionRepository(provider)
	if err != nil {
		return nil, err
	}
	receipts, err := NewReceiptRepository(provider)
	if err != nil {
		return nil, err
	}
	userContexts, err := NewUserContextRepository(provider)
	if err != nil {
		return nil, err
	}
	favorites, err := NewFavoriteRepository(provider)
	if err != nil {
		return nil, err
	}
	categoryStats, err := NewCategoryStatsRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider, cfg.counterOpts...)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:      provider,
		orders:        orders,
		sessions:      sessions,
		receipts:      receipts,
		userContexts:  userContexts,
		favorites:     favorites,
		categoryStats: categoryStats,
		counters:      counters,
		health:        cfg.health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }
func (r *Registry) PaymentSessions() repositories.PaymentSessionRepository { return r.sessions }
func (r *Registry) Receipts() repositories.ReceiptRepository { return r.receipts }
func (r *Registry) UserContexts() repositories.UserContextRepository { return r.userContexts }
func (r *Registry) Favorites() repositories.FavoriteRepository { return r.favorites }
func (r *Registry) CategoryStats() repositories.CategoryStatsRepository { return r.categoryStats }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

var _ repositories.Registry = (*Registry)(nil)
