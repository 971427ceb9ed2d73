package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/khalidfrds/ikea-bistro-backend/internal/catalog"
	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	"github.com/khalidfrds/ikea-bistro-backend/internal/payments"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
)

const (
	orderIDPrefix   = "ord_"
	sessionIDPrefix = "ps_"
	referencePrefix = "ref_"

	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid order data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrInvalidStore indicates the store id is not present in the seed data.
	ErrInvalidStore = errors.New("order: unknown store")
	// ErrSessionNotFound indicates a callback referenced no known payment session.
	ErrSessionNotFound = errors.New("order: payment session not found")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Sessions    repositories.PaymentSessionRepository
	Contexts    repositories.UserContextRepository
	Catalog     *catalog.Catalog
	Counters    CounterService
	Gateway     PaymentGateway
	Receipts    ReceiptService
	Upsell      UpsellService
	Push        MessageSender
	Events      OrderEventPublisher
	Scheduler   ReadyTransitionScheduler
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	sessions  repositories.PaymentSessionRepository
	contexts  repositories.UserContextRepository
	catalog   *catalog.Catalog
	counters  CounterService
	gateway   PaymentGateway
	receipts  ReceiptService
	upsell    UpsellService
	push      MessageSender
	events    OrderEventPublisher
	scheduler ReadyTransitionScheduler
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("order service: payment session repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter service is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:    deps.Orders,
		sessions:  deps.Sessions,
		contexts:  deps.Contexts,
		catalog:   deps.Catalog,
		counters:  deps.Counters,
		gateway:   deps.Gateway,
		receipts:  deps.Receipts,
		upsell:    deps.Upsell,
		push:      deps.Push,
		events:    deps.Events,
		scheduler: deps.Scheduler,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Create validates and prices the cart, allocates the order number, opens a
// provider payment session, and persists the order in pending. Validation
// failures never partially persist an order: every fallible step that can be
// caller-caused runs before the first write.
func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CreateOrderResult{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	storeID := strings.TrimSpace(cmd.StoreID)
	if storeID == "" {
		return CreateOrderResult{}, fmt.Errorf("%w: store id is required", ErrOrderInvalidInput)
	}
	if _, ok := s.catalog.Store(storeID); !ok {
		return CreateOrderResult{}, fmt.Errorf("%w: %s", ErrInvalidStore, storeID)
	}
	switch cmd.PaymentMethod {
	case domain.PaymentMethodCard, domain.PaymentMethodSwish:
	default:
		return CreateOrderResult{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	if len(cmd.Items) == 0 {
		return CreateOrderResult{}, fmt.Errorf("%w: cart must contain at least one item", ErrOrderInvalidInput)
	}

	lines := make([]domain.LineItem, 0, len(cmd.Items))
	var total int64
	for i, line := range cmd.Items {
		snapshot, err := s.catalog.PriceAndValidate(line.ItemID, line.Quantity)
		if err != nil {
			return CreateOrderResult{}, fmt.Errorf("%w: line %d: %v", ErrOrderInvalidInput, i, err)
		}
		lines = append(lines, domain.LineItem{
			ItemID:    snapshot.ItemID,
			Name:      snapshot.Name,
			Category:  snapshot.Category,
			Quantity:  snapshot.Quantity,
			UnitPrice: snapshot.UnitPrice,
		})
		total += snapshot.UnitPrice * int64(snapshot.Quantity)
	}

	number, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return CreateOrderResult{}, err
	}

	now := s.clock()
	orderID := orderIDPrefix + s.newID()
	sessionID := sessionIDPrefix + s.newID()
	reference := referencePrefix + s.newID()

	sessionItems := make([]payments.SessionLineItem, 0, len(lines))
	for _, line := range lines {
		sessionItems = append(sessionItems, payments.SessionLineItem{
			Name:      line.Name,
			Quantity:  int64(line.Quantity),
			UnitPrice: line.UnitPrice,
		})
	}

	// The provider call precedes any persistence so an unconfigured provider
	// surfaces as a clean validation error without a half-created order.
	providerSession, err := s.gateway.CreateSession(ctx, cmd.PaymentMethod, payments.SessionRequest{
		OrderID:           orderID,
		ExternalReference: reference,
		Amount:            total,
		UserID:            userID,
		Items:             sessionItems,
	})
	if err != nil {
		return CreateOrderResult{}, err
	}

	order := domain.Order{
		ID:               orderID,
		Number:           number,
		UserID:           userID,
		StoreID:          storeID,
		Items:            lines,
		TotalPrice:       total,
		PaymentMethod:    cmd.PaymentMethod,
		Status:           domain.OrderStatusPending,
		PaymentSessionID: sessionID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.orders.Insert(ctx, order); err != nil {
		return CreateOrderResult{}, fmt.Errorf("persist order: %w", err)
	}

	session := domain.PaymentSession{
		ID:                sessionID,
		OrderID:           orderID,
		Method:            cmd.PaymentMethod,
		Amount:            total,
		Status:            domain.SessionStatusCreated,
		ExternalReference: reference,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		return CreateOrderResult{}, fmt.Errorf("persist payment session: %w", err)
	}

	s.recordCategoryPairs(ctx, order)

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     orderID,
		"orderNumber": number,
		"userId":      userID,
		"storeId":     storeID,
		"method":      string(cmd.PaymentMethod),
		"total":       total,
	})

	return CreateOrderResult{
		OrderID:          orderID,
		OrderNumber:      number,
		Status:           domain.OrderStatusPending,
		PaymentSessionID: sessionID,
		Amount:           total,
		CheckoutURL:      providerSession.CheckoutURL,
		SwishURL:         providerSession.SwishURL,
		ClientSecret:     providerSession.ClientSecret,
	}, nil
}

// HandlePaymentCallback is the only path that confirms an order. The payload
// is verified at the adapter boundary before any field is trusted; unverified
// callbacks never reach order state.
func (s *orderService) HandlePaymentCallback(ctx context.Context, method PaymentMethod, payload []byte, header string) (CallbackResult, error) {
	event, err := s.gateway.VerifyCallback(ctx, method, payload, header)
	if err != nil {
		return CallbackResult{}, err
	}

	if event.Outcome == payments.OutcomeIgnored {
		s.logger(ctx, "payment.callback.ignored", map[string]any{
			"method":        string(method),
			"providerEvent": event.ProviderEvent,
		})
		return CallbackResult{Received: true, Outcome: payments.OutcomeIgnored}, nil
	}

	session, err := s.sessions.FindByExternalReference(ctx, event.ExternalReference)
	if err != nil {
		if isRepoNotFound(err) {
			return CallbackResult{}, fmt.Errorf("%w: reference %s", ErrSessionNotFound, event.ExternalReference)
		}
		return CallbackResult{}, err
	}

	now := s.clock()
	switch event.Outcome {
	case payments.OutcomeSucceeded:
		session.Status = domain.SessionStatusSucceeded
	case payments.OutcomeFailed:
		session.Status = domain.SessionStatusFailed
	}
	session.UpdatedAt = now
	if err := s.sessions.Update(ctx, session); err != nil {
		return CallbackResult{}, fmt.Errorf("update payment session: %w", err)
	}

	if event.Outcome == payments.OutcomeFailed {
		// A failed payment never moves the order; it stays pending.
		s.logger(ctx, "payment.callback.failed", map[string]any{
			"orderId":   session.OrderID,
			"sessionId": session.ID,
		})
		return CallbackResult{Received: true, OrderID: session.OrderID, Outcome: payments.OutcomeFailed}, nil
	}

	order, err := s.orders.FindByID(ctx, session.OrderID)
	if err != nil {
		if isRepoNotFound(err) {
			return CallbackResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, session.OrderID)
		}
		return CallbackResult{}, err
	}

	// Re-applying confirmed on a duplicate callback is safe; an order already
	// advanced to ready is never regressed.
	if order.Status != domain.OrderStatusReady {
		order.Status = domain.OrderStatusConfirmed
		order.UpdatedAt = now
		if err := s.orders.Update(ctx, order); err != nil {
			return CallbackResult{}, fmt.Errorf("confirm order: %w", err)
		}

		// Everything past the persisted transition is best-effort and never
		// rolls a payment-confirmed order back.
		if s.receipts != nil && s.receipts.SendReceipt(ctx, order) {
			order.ReceiptSent = true
			if err := s.orders.Update(ctx, order); err != nil {
				s.logger(ctx, "order.receipt_flag_update_failed", map[string]any{
					"orderId": order.ID,
					"error":   err.Error(),
				})
			}
		}

		s.publishEvent(ctx, OrderEventConfirmed, order)
		if s.scheduler != nil {
			s.scheduler.Schedule(order.ID)
		}
	}

	s.logger(ctx, "order.confirmed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.Number,
		"sessionId":   session.ID,
	})
	return CallbackResult{Received: true, OrderID: order.ID, Outcome: payments.OutcomeSucceeded}, nil
}

// MarkReady advances a confirmed order to ready. Any other current status is a
// no-op returning the unchanged order, which makes duplicate triggers (timer
// plus operator) harmless.
func (s *orderService) MarkReady(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return Order{}, err
	}

	if order.Status != domain.OrderStatusConfirmed {
		s.logger(ctx, "order.ready.noop", map[string]any{
			"orderId": orderID,
			"status":  string(order.Status),
		})
		return order, nil
	}

	order.Status = domain.OrderStatusReady
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, fmt.Errorf("mark order ready: %w", err)
	}

	s.notifyReady(ctx, order)
	s.publishEvent(ctx, OrderEventReady, order)

	s.logger(ctx, "order.ready", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.Number,
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return Order{}, err
	}
	return order, nil
}

// ListHistory returns the user's orders newest first. Limit defaults to 10
// and is capped at 50.
func (s *orderService) ListHistory(ctx context.Context, userID string, limit int) ([]OrderSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	orders, err := s.orders.ListByUser(ctx, userID, repositories.OrderListFilter{Limit: limit})
	if err != nil {
		return nil, err
	}

	summaries := make([]OrderSummary, 0, len(orders))
	for _, order := range orders {
		summaries = append(summaries, OrderSummary{
			OrderID:       order.ID,
			OrderNumber:   order.Number,
			Status:        order.Status,
			TotalPrice:    order.TotalPrice,
			PaymentMethod: order.PaymentMethod,
			StoreID:       order.StoreID,
			StoreName:     s.catalog.StoreName(order.StoreID),
			ReceiptSent:   order.ReceiptSent,
			CreatedAt:     order.CreatedAt,
		})
	}
	return summaries, nil
}

// recordCategoryPairs feeds the upsell counter best-effort; a failure must not
// fail the order that already persisted.
func (s *orderService) recordCategoryPairs(ctx context.Context, order domain.Order) {
	if s.upsell == nil {
		return
	}
	categories := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		categories = append(categories, item.Category)
	}
	if err := s.upsell.RecordOrder(ctx, categories); err != nil {
		s.logger(ctx, "order.category_stats_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

// notifyReady pushes a pickup notification iff the user enabled notifications.
func (s *orderService) notifyReady(ctx context.Context, order domain.Order) {
	if s.push == nil || s.contexts == nil {
		return
	}
	uc, err := s.contexts.Get(ctx, order.UserID)
	if err != nil {
		s.logger(ctx, "order.ready.push_context_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return
	}
	if !uc.NotificationsEnabled {
		return
	}
	text := fmt.Sprintf("Order #%d is ready for pickup at %s!", order.Number, s.catalog.StoreName(order.StoreID))
	if delivered := s.push.Send(ctx, order.UserID, text); !delivered {
		s.logger(ctx, "order.ready.push_failed", map[string]any{"orderId": order.ID})
	}
}

func (s *orderService) publishEvent(ctx context.Context, eventType string, order domain.Order) {
	if s.events == nil {
		return
	}
	event := domain.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		StoreID:     order.StoreID,
		Status:      string(order.Status),
		OccurredAt:  s.clock(),
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"type":    eventType,
			"error":   err.Error(),
		})
	}
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
