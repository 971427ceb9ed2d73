package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
)

// ReceiptServiceDeps bundles collaborators required to construct the receipt service.
type ReceiptServiceDeps struct {
	Receipts repositories.ReceiptRepository
	Sender   MessageSender
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type receiptService struct {
	receipts repositories.ReceiptRepository
	sender   MessageSender
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewReceiptService wires dependencies into a concrete ReceiptService implementation.
func NewReceiptService(deps ReceiptServiceDeps) (ReceiptService, error) {
	if deps.Receipts == nil {
		return nil, errors.New("receipt service: receipt repository is required")
	}
	if deps.Sender == nil {
		return nil, errors.New("receipt service: sender is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &receiptService{
		receipts: deps.Receipts,
		sender:   deps.Sender,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// SendReceipt attempts a single receipt delivery for the order. The persisted
// flag is checked before sending and recorded after; the two steps are not
// atomic, so a narrow duplicate window remains under concurrent confirms.
func (s *receiptService) SendReceipt(ctx context.Context, order Order) bool {
	receipt, err := s.receipts.Get(ctx, order.ID)
	if err != nil {
		s.logger(ctx, "receipt.guard.read_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return false
	}
	if receipt.Sent {
		s.logger(ctx, "receipt.skipped.already_sent", map[string]any{"orderId": order.ID})
		return false
	}

	delivered := s.sender.Send(ctx, order.UserID, formatReceiptText(order))
	if !delivered {
		s.logger(ctx, "receipt.delivery_failed", map[string]any{"orderId": order.ID})
		return false
	}

	if err := s.receipts.MarkSent(ctx, order.ID, s.clock()); err != nil {
		// Delivery happened; losing the flag only risks one duplicate later.
		s.logger(ctx, "receipt.guard.record_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
	return true
}

func formatReceiptText(order Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Receipt for order #%d\n", order.Number)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "%d x %s: %d kr\n", item.Quantity, item.Name, item.UnitPrice*int64(item.Quantity))
	}
	fmt.Fprintf(&b, "Total: %d kr", order.TotalPrice)
	return b.String()
}
