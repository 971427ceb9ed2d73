package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
)

type stubReceiptRepo struct {
	getFn    func(ctx context.Context, orderID string) (domain.Receipt, error)
	markErr  error
	markedAt []time.Time
	markedID []string
}

func (s *stubReceiptRepo) Get(ctx context.Context, orderID string) (domain.Receipt, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return domain.Receipt{OrderID: orderID}, nil
}

func (s *stubReceiptRepo) MarkSent(ctx context.Context, orderID string, sentAt time.Time) error {
	s.markedID = append(s.markedID, orderID)
	s.markedAt = append(s.markedAt, sentAt)
	return s.markErr
}

func confirmedOrder() domain.Order {
	return domain.Order{
		ID:     "ord_1",
		Number: 10,
		UserID: "chat-7",
		Items: []domain.LineItem{
			{ItemID: "hotdog_classic", Name: "Classic Hot Dog", Quantity: 2, UnitPrice: 5},
		},
		TotalPrice: 10,
		Status:     domain.OrderStatusConfirmed,
	}
}

func newReceiptService(t *testing.T, repo *stubReceiptRepo, sender MessageSender) ReceiptService {
	t.Helper()
	svc, err := NewReceiptService(ReceiptServiceDeps{
		Receipts: repo,
		Sender:   sender,
		Clock:    func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewReceiptService: %v", err)
	}
	return svc
}

func TestReceiptSendsOnceAndRecordsOutcome(t *testing.T) {
	repo := &stubReceiptRepo{}
	push := &stubPush{delivered: true}
	svc := newReceiptService(t, repo, push)

	if sent := svc.SendReceipt(context.Background(), confirmedOrder()); !sent {
		t.Fatal("expected sent=true")
	}
	if len(push.calls) != 1 || push.calls[0] != "chat-7" {
		t.Fatalf("expected one delivery to the owner, got %#v", push.calls)
	}
	if len(repo.markedID) != 1 || repo.markedID[0] != "ord_1" {
		t.Fatalf("expected guard recorded for ord_1, got %#v", repo.markedID)
	}
	if !repo.markedAt[0].Equal(fixedNow) {
		t.Fatalf("expected timestamp %v, got %v", fixedNow, repo.markedAt[0])
	}
}

func TestReceiptGuardSkipsSecondSend(t *testing.T) {
	sentAt := fixedNow.Add(-time.Minute)
	repo := &stubReceiptRepo{
		getFn: func(ctx context.Context, orderID string) (domain.Receipt, error) {
			return domain.Receipt{OrderID: orderID, Sent: true, SentAt: &sentAt}, nil
		},
	}
	push := &stubPush{delivered: true}
	svc := newReceiptService(t, repo, push)

	if sent := svc.SendReceipt(context.Background(), confirmedOrder()); sent {
		t.Fatal("expected sent=false when the flag is already set")
	}
	if len(push.calls) != 0 {
		t.Fatal("no delivery attempt may happen past the guard")
	}
	if len(repo.markedID) != 0 {
		t.Fatal("the guard must not be re-recorded")
	}
}

func TestReceiptDeliveryFailureIsNotRecorded(t *testing.T) {
	repo := &stubReceiptRepo{}
	svc := newReceiptService(t, repo, &stubPush{delivered: false})

	if sent := svc.SendReceipt(context.Background(), confirmedOrder()); sent {
		t.Fatal("expected sent=false for a failed delivery")
	}
	if len(repo.markedID) != 0 {
		t.Fatal("a failed delivery must leave the guard unset so a retry can send")
	}
}

func TestReceiptGuardReadFailureSkipsSend(t *testing.T) {
	repo := &stubReceiptRepo{
		getFn: func(ctx context.Context, orderID string) (domain.Receipt, error) {
			return domain.Receipt{}, errors.New("store unavailable")
		},
	}
	push := &stubPush{delivered: true}
	svc := newReceiptService(t, repo, push)

	if sent := svc.SendReceipt(context.Background(), confirmedOrder()); sent {
		t.Fatal("expected sent=false when the guard cannot be read")
	}
	if len(push.calls) != 0 {
		t.Fatal("no delivery without a readable guard")
	}
}

func TestReceiptRecordFailureStillReportsSent(t *testing.T) {
	repo := &stubReceiptRepo{markErr: errors.New("write failed")}
	svc := newReceiptService(t, repo, &stubPush{delivered: true})

	if sent := svc.SendReceipt(context.Background(), confirmedOrder()); !sent {
		t.Fatal("a delivered receipt counts even when recording the flag fails")
	}
}

func TestReceiptTextCarriesLinesAndTotal(t *testing.T) {
	text := formatReceiptText(confirmedOrder())
	for _, want := range []string{"order #10", "2 x Classic Hot Dog: 10 kr", "Total: 10 kr"} {
		if !strings.Contains(text, want) {
			t.Fatalf("receipt text missing %q:\n%s", want, text)
		}
	}
}
