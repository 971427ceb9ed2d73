package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	pfirestore "github.com/khalidfrds/ikea-bistro-backend/internal/platform/firestore"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
)

const receiptsCollection = "receipts"

type receiptDocument struct {
	Sent   bool       `firestore:"sent"`
	SentAt *time.Time `firestore:"sentAt,omitempty"`
}

// ReceiptRepository implements repositories.ReceiptRepository backed by Firestore.
// Documents are keyed by order ID.
type ReceiptRepository struct {
	receipts *pfirestore.BaseRepository[receiptDocument]
}

// NewReceiptRepository constructs a Firestore-backed receipt repository.
func NewReceiptRepository(provider *pfirestore.Provider) (*ReceiptRepository, error) {
	if provider == nil {
		return nil, errors.New("receipt repository requires firestore provider")
	}
	return &ReceiptRepository{
		receipts: pfirestore.NewBaseRepository[receiptDocument](provider, receiptsCollection, nil, nil),
	}, nil
}

// Get returns the delivery guard state for the order. A missing document
// reads as not sent.
func (r *ReceiptRepository) Get(ctx context.Context, orderID string) (domain.Receipt, error) {
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return domain.Receipt{}, errors.New("receipt repository: order id is required")
	}

	doc, err := r.receipts.Get(ctx, trimmed)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Receipt{OrderID: trimmed}, nil
		}
		return domain.Receipt{}, err
	}

	return domain.Receipt{
		OrderID: trimmed,
		Sent:    doc.Data.Sent,
		SentAt:  doc.Data.SentAt,
	}, nil
}

// MarkSent records the delivery outcome. The create precondition keeps the
// first writer's timestamp when two senders race.
func (r *ReceiptRepository) MarkSent(ctx context.Context, orderID string, sentAt time.Time) error {
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return errors.New("receipt repository: order id is required")
	}

	at := sentAt.UTC()
	_, err := r.receipts.Create(ctx, trimmed, receiptDocument{Sent: true, SentAt: &at})
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return nil
		}
		return err
	}
	return nil
}
