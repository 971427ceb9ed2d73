package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khalidfrds/ikea-bistro-backend/internal/catalog"
	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
)

var (
	// ErrUserInvalidInput signals the caller provided invalid user data.
	ErrUserInvalidInput = errors.New("user: invalid input")
)

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Contexts  repositories.UserContextRepository
	Favorites repositories.FavoriteRepository
	Catalog   *catalog.Catalog
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	contexts  repositories.UserContextRepository
	favorites repositories.FavoriteRepository
	catalog   *catalog.Catalog
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Contexts == nil {
		return nil, errors.New("user service: user context repository is required")
	}
	if deps.Favorites == nil {
		return nil, errors.New("user service: favorite repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("user service: catalog is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		contexts:  deps.Contexts,
		favorites: deps.Favorites,
		catalog:   deps.Catalog,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *userService) GetContext(ctx context.Context, userID string) (UserContext, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserContext{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	uc, err := s.contexts.Get(ctx, userID)
	if err != nil {
		return UserContext{}, err
	}
	if uc.UserID == "" {
		uc.UserID = userID
	}
	return uc, nil
}

// UpsertContext applies the supplied fields on top of the stored context,
// creating it on first sight. Nil fields leave stored values untouched.
func (s *userService) UpsertContext(ctx context.Context, cmd UpsertUserContextCommand) (UserContext, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserContext{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	if cmd.PreferredStoreID != nil {
		storeID := strings.TrimSpace(*cmd.PreferredStoreID)
		if storeID != "" {
			if _, ok := s.catalog.Store(storeID); !ok {
				return UserContext{}, fmt.Errorf("%w: unknown store %s", ErrUserInvalidInput, storeID)
			}
		}
	}

	current, err := s.contexts.Get(ctx, userID)
	if err != nil {
		return UserContext{}, err
	}

	now := s.clock()
	if current.UserID == "" {
		current = domain.UserContext{UserID: userID, CreatedAt: now}
	}
	if cmd.PreferredStoreID != nil {
		current.PreferredStoreID = strings.TrimSpace(*cmd.PreferredStoreID)
	}
	if cmd.NotificationsEnabled != nil {
		current.NotificationsEnabled = *cmd.NotificationsEnabled
	}
	current.UpdatedAt = now

	return s.contexts.Upsert(ctx, current)
}

// ToggleFavorite marks or unmarks a catalog item as a favorite. The returned
// boolean reports whether the item is a favorite after the call. The
// exists-then-write sequence is check-then-act, not atomic.
func (s *userService) ToggleFavorite(ctx context.Context, cmd ToggleFavoriteCommand) (bool, error) {
	userID := strings.TrimSpace(cmd.UserID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if userID == "" {
		return false, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	if itemID == "" {
		return false, fmt.Errorf("%w: item id is required", ErrUserInvalidInput)
	}
	if _, ok := s.catalog.Item(itemID); !ok {
		return false, fmt.Errorf("%w: unknown item %s", ErrUserInvalidInput, itemID)
	}

	exists, err := s.favorites.Exists(ctx, userID, itemID)
	if err != nil {
		return false, err
	}

	if cmd.Mark {
		if exists {
			return true, nil
		}
		favorite := domain.Favorite{
			UserID:    userID,
			ItemID:    itemID,
			CreatedAt: s.clock(),
		}
		if err := s.favorites.Put(ctx, favorite); err != nil {
			return false, err
		}
		return true, nil
	}

	if !exists {
		return false, nil
	}
	if err := s.favorites.Delete(ctx, userID, itemID); err != nil {
		return true, err
	}
	return false, nil
}

// ListFavorites joins favorites with their current catalog entries. Favorites
// whose item has left the menu are skipped rather than surfaced as errors.
func (s *userService) ListFavorites(ctx context.Context, userID string) ([]FavoriteItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	favorites, err := s.favorites.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]FavoriteItem, 0, len(favorites))
	for _, favorite := range favorites {
		item, ok := s.catalog.Item(favorite.ItemID)
		if !ok {
			s.logger(ctx, "favorites.item_missing_from_catalog", map[string]any{
				"userId": userID,
				"itemId": favorite.ItemID,
			})
			continue
		}
		items = append(items, FavoriteItem{
			ItemID:    item.ID,
			Name:      item.Name,
			Category:  item.Category,
			UnitPrice: item.UnitPrice,
			CreatedAt: favorite.CreatedAt,
		})
	}
	return items, nil
}
