package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	pfirestore "github.com/khalidfrds/ikea-bistro-backend/internal/platform/firestore"
)

const paymentSessionsCollection = "paymentSessions"

type paymentSessionDocument struct {
	OrderID           string    `firestore:"orderId"`
	Method            string    `firestore:"method"`
	Amount            int64     `firestore:"amount"`
	Status            string    `firestore:"status"`
	ExternalReference string    `firestore:"externalReference"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

// PaymentSessionRepository implements repositories.PaymentSessionRepository backed by Firestore.
// The external reference carries a uniqueness expectation: it is generated per
// session and is the only key callback handling resolves sessions by.
type PaymentSessionRepository struct {
	sessions *pfirestore.BaseRepository[paymentSessionDocument]
}

// NewPaymentSessionRepository constructs a Firestore-backed payment session repository.
func NewPaymentSessionRepository(provider *pfirestore.Provider) (*PaymentSessionRepository, error) {
	if provider == nil {
		return nil, errors.New("payment session repository requires firestore provider")
	}
	return &PaymentSessionRepository{
		sessions: pfirestore.NewBaseRepository[paymentSessionDocument](provider, paymentSessionsCollection, nil, nil),
	}, nil
}

// Insert writes a new payment session document.
func (r *PaymentSessionRepository) Insert(ctx context.Context, session domain.PaymentSession) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("payment session repository: session id is required")
	}
	if strings.TrimSpace(session.ExternalReference) == "" {
		return errors.New("payment session repository: external reference is required")
	}
	_, err := r.sessions.Create(ctx, session.ID, encodePaymentSession(session))
	return err
}

// Update overwrites an existing payment session document.
func (r *PaymentSessionRepository) Update(ctx context.Context, session domain.PaymentSession) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("payment session repository: session id is required")
	}
	_, err := r.sessions.Set(ctx, session.ID, encodePaymentSession(session))
	return err
}

// FindByID fetches a session by its document ID.
func (r *PaymentSessionRepository) FindByID(ctx context.Context, sessionID string) (domain.PaymentSession, error) {
	doc, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.PaymentSession{}, err
	}
	return decodePaymentSession(doc.ID, doc.Data), nil
}

// FindByExternalReference resolves the session carrying the provider reference.
func (r *PaymentSessionRepository) FindByExternalReference(ctx context.Context, reference string) (domain.PaymentSession, error) {
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return domain.PaymentSession{}, errors.New("payment session repository: external reference is required")
	}

	docs, err := r.sessions.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("externalReference", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.PaymentSession{}, err
	}
	if len(docs) == 0 {
		return domain.PaymentSession{}, &notFoundError{op: "paymentSessions.findByExternalReference", msg: fmt.Sprintf("no session for reference %s", trimmed)}
	}
	return decodePaymentSession(docs[0].ID, docs[0].Data), nil
}

// notFoundError satisfies repositories.RepositoryError for query misses that
// Firestore reports as empty result sets rather than NotFound codes.
type notFoundError struct {
	op  string
	msg string
}

func (e *notFoundError) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %s", e.op, e.msg)
	}
	return e.msg
}

func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }

func encodePaymentSession(session domain.PaymentSession) paymentSessionDocument {
	return paymentSessionDocument{
		OrderID:           session.OrderID,
		Method:            string(session.Method),
		Amount:            session.Amount,
		Status:            string(session.Status),
		ExternalReference: session.ExternalReference,
		CreatedAt:         session.CreatedAt,
		UpdatedAt:         session.UpdatedAt,
	}
}

func decodePaymentSession(id string, doc paymentSessionDocument) domain.PaymentSession {
	return domain.PaymentSession{
		ID:                id,
		OrderID:           doc.OrderID,
		Method:            domain.PaymentMethod(doc.Method),
		Amount:            doc.Amount,
		Status:            domain.SessionStatus(doc.Status),
		ExternalReference: doc.ExternalReference,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}
