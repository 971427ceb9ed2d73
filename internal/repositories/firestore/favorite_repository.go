package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	pfirestore "github.com/khalidfrds/ikea-bistro-backend/internal/platform/firestore"
)

const favoriteCollectionPattern = "users/%s/favorites"

type favoriteDocument struct {
	CreatedAt time.Time `firestore:"createdAt"`
}

// FavoriteRepository persists favorite menu items per user, keyed by item ID
// inside a per-user subcollection.
type FavoriteRepository struct {
	provider *pfirestore.Provider
}

// NewFavoriteRepository constructs a Firestore-backed favorite repository.
func NewFavoriteRepository(provider *pfirestore.Provider) (*FavoriteRepository, error) {
	if provider == nil {
		return nil, errors.New("favorite repository requires firestore provider")
	}
	return &FavoriteRepository{provider: provider}, nil
}

// List returns favorites ordered by most recent addition.
func (r *FavoriteRepository) List(ctx context.Context, userID string) ([]domain.Favorite, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var favorites []domain.Favorite
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("favorites.list", err)
		}
		var doc favoriteDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("favorites.list: decode %s: %w", snap.Ref.ID, err)
		}
		favorites = append(favorites, domain.Favorite{
			UserID:    strings.TrimSpace(userID),
			ItemID:    snap.Ref.ID,
			CreatedAt: doc.CreatedAt,
		})
	}
	return favorites, nil
}

// Exists reports whether the item is currently a favorite.
func (r *FavoriteRepository) Exists(ctx context.Context, userID string, itemID string) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return false, errors.New("favorite repository: item id is required")
	}

	_, err = coll.Doc(itemID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, pfirestore.WrapError("favorites.exists", err)
	}
	return true, nil
}

// Put stores the favorite, keeping the original timestamp when it exists.
func (r *FavoriteRepository) Put(ctx context.Context, favorite domain.Favorite) error {
	coll, err := r.collection(ctx, favorite.UserID)
	if err != nil {
		return err
	}
	itemID := strings.TrimSpace(favorite.ItemID)
	if itemID == "" {
		return errors.New("favorite repository: item id is required")
	}

	_, err = coll.Doc(itemID).Create(ctx, favoriteDocument{CreatedAt: favorite.CreatedAt})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return pfirestore.WrapError("favorites.put", err)
	}
	return nil
}

// Delete removes the favorite. Deleting a missing favorite is a no-op.
func (r *FavoriteRepository) Delete(ctx context.Context, userID string, itemID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errors.New("favorite repository: item id is required")
	}

	if _, err := coll.Doc(itemID).Delete(ctx); err != nil {
		return pfirestore.WrapError("favorites.delete", err)
	}
	return nil
}

func (r *FavoriteRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, errors.New("favorite repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(favoriteCollectionPattern, trimmed)), nil
}
