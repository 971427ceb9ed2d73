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

const userContextsCollection = "userContexts"

type userContextDocument struct {
	PreferredStoreID     string    `firestore:"preferredStoreId"`
	NotificationsEnabled bool      `firestore:"notificationsEnabled"`
	CreatedAt            time.Time `firestore:"createdAt"`
	UpdatedAt            time.Time `firestore:"updatedAt"`
}

// UserContextRepository implements repositories.UserContextRepository backed by Firestore.
// Documents are keyed by user ID.
type UserContextRepository struct {
	contexts *pfirestore.BaseRepository[userContextDocument]
}

// NewUserContextRepository constructs a Firestore-backed user context repository.
func NewUserContextRepository(provider *pfirestore.Provider) (*UserContextRepository, error) {
	if provider == nil {
		return nil, errors.New("user context repository requires firestore provider")
	}
	return &UserContextRepository{
		contexts: pfirestore.NewBaseRepository[userContextDocument](provider, userContextsCollection, nil, nil),
	}, nil
}

// Get returns the stored context. A missing document reads as the zero
// context with notifications disabled.
func (r *UserContextRepository) Get(ctx context.Context, userID string) (domain.UserContext, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return domain.UserContext{}, errors.New("user context repository: user id is required")
	}

	doc, err := r.contexts.Get(ctx, trimmed)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.UserContext{UserID: trimmed}, nil
		}
		return domain.UserContext{}, err
	}

	return domain.UserContext{
		UserID:               trimmed,
		PreferredStoreID:     doc.Data.PreferredStoreID,
		NotificationsEnabled: doc.Data.NotificationsEnabled,
		CreatedAt:            doc.Data.CreatedAt,
		UpdatedAt:            doc.Data.UpdatedAt,
	}, nil
}

// Upsert writes the full context document and returns the stored state.
func (r *UserContextRepository) Upsert(ctx context.Context, uc domain.UserContext) (domain.UserContext, error) {
	trimmed := strings.TrimSpace(uc.UserID)
	if trimmed == "" {
		return domain.UserContext{}, errors.New("user context repository: user id is required")
	}

	_, err := r.contexts.Set(ctx, trimmed, userContextDocument{
		PreferredStoreID:     uc.PreferredStoreID,
		NotificationsEnabled: uc.NotificationsEnabled,
		CreatedAt:            uc.CreatedAt,
		UpdatedAt:            uc.UpdatedAt,
	})
	if err != nil {
		return domain.UserContext{}, err
	}

	uc.UserID = trimmed
	return uc, nil
}
