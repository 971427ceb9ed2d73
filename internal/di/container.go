package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khalidfrds/ikea-bistro-backend/internal/catalog"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/config"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/observability"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
	"github.com/khalidfrds/ikea-bistro-backend/internal/services"

	"github.com/oklog/ulid/v2"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders   services.OrderService
	Users    services.UserService
	Upsell   services.UpsellService
	Receipts services.ReceiptService
	Counters services.CounterService
	System   services.SystemService
}

// Dependencies carries the externally constructed adapters the container wires
// into services: the payment gateway, the bot message channel, and the
// optional lifecycle event publisher.
type Dependencies struct {
	Gateway services.PaymentGateway
	Sender  services.MessageSender
	Events  services.OrderEventPublisher
	Logger  *zap.Logger
	Clock   func() time.Time
}

// Container wires repositories, services, and the ready-transition scheduler for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Catalog      *catalog.Catalog
	Services     Services
	Scheduler    *services.ReadyScheduler
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries and stub adapters.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Dependencies) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	if deps.Sender == nil {
		return nil, errors.New("message sender is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	menu := catalog.New(nil, nil)

	counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: reg.Counters(),
	})
	if err != nil {
		return nil, fmt.Errorf("build counter service: %w", err)
	}

	receiptSvc, err := services.NewReceiptService(services.ReceiptServiceDeps{
		Receipts: reg.Receipts(),
		Sender:   deps.Sender,
		Clock:    clock,
		Logger:   observability.EventLogger(logger.Named("receipts")),
	})
	if err != nil {
		return nil, fmt.Errorf("build receipt service: %w", err)
	}

	upsellSvc, err := services.NewUpsellService(services.UpsellServiceDeps{
		Stats:   reg.CategoryStats(),
		Catalog: menu,
		Clock:   clock,
		Logger:  observability.EventLogger(logger.Named("upsell")),
	})
	if err != nil {
		return nil, fmt.Errorf("build upsell service: %w", err)
	}

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Contexts:  reg.UserContexts(),
		Favorites: reg.Favorites(),
		Catalog:   menu,
		Clock:     clock,
		Logger:    observability.EventLogger(logger.Named("users")),
	})
	if err != nil {
		return nil, fmt.Errorf("build user service: %w", err)
	}

	scheduler := services.NewReadyScheduler(services.ReadySchedulerDeps{
		Delay:  cfg.Kitchen.ReadyDelay,
		Logger: observability.EventLogger(logger.Named("kitchen")),
	})

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Sessions:    reg.PaymentSessions(),
		Contexts:    reg.UserContexts(),
		Catalog:     menu,
		Counters:    counterSvc,
		Gateway:     deps.Gateway,
		Receipts:    receiptSvc,
		Upsell:      upsellSvc,
		Push:        deps.Sender,
		Events:      deps.Events,
		Scheduler:   scheduler,
		Clock:       clock,
		IDGenerator: func() string { return ulid.Make().String() },
		Logger:      observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}

	schedulerLogger := logger.Named("kitchen")
	if err := scheduler.Bind(func(ctx context.Context, orderID string) {
		if _, err := orderSvc.MarkReady(ctx, orderID); err != nil {
			schedulerLogger.Error("ready transition failed", zap.String("orderId", orderID), zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("bind ready scheduler: %w", err)
	}

	svc := Services{
		Orders:   orderSvc,
		Users:    userSvc,
		Upsell:   upsellSvc,
		Receipts: receiptSvc,
		Counters: counterSvc,
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			Health: healthRepo,
		})
		if err != nil {
			return nil, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Catalog:      menu,
		Services:     svc,
		Scheduler:    scheduler,
	}, nil
}

// Close drains the scheduler and releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var firstErr error
	if c.Scheduler != nil {
		if err := c.Scheduler.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
