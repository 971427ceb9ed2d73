package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khalidfrds/ikea-bistro-backend/internal/catalog"
	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
)

type memContextRepo struct {
	contexts map[string]domain.UserContext
}

func newMemContextRepo() *memContextRepo {
	return &memContextRepo{contexts: make(map[string]domain.UserContext)}
}

func (r *memContextRepo) Get(ctx context.Context, userID string) (domain.UserContext, error) {
	return r.contexts[userID], nil
}

func (r *memContextRepo) Upsert(ctx context.Context, uc domain.UserContext) (domain.UserContext, error) {
	r.contexts[uc.UserID] = uc
	return uc, nil
}

type memFavoriteRepo struct {
	favorites map[string]domain.Favorite
	putErr    error
}

func newMemFavoriteRepo() *memFavoriteRepo {
	return &memFavoriteRepo{favorites: make(map[string]domain.Favorite)}
}

func favKey(userID, itemID string) string { return userID + "/" + itemID }

func (r *memFavoriteRepo) List(ctx context.Context, userID string) ([]domain.Favorite, error) {
	var out []domain.Favorite
	for _, favorite := range r.favorites {
		if favorite.UserID == userID {
			out = append(out, favorite)
		}
	}
	return out, nil
}

func (r *memFavoriteRepo) Exists(ctx context.Context, userID, itemID string) (bool, error) {
	_, ok := r.favorites[favKey(userID, itemID)]
	return ok, nil
}

func (r *memFavoriteRepo) Put(ctx context.Context, favorite domain.Favorite) error {
	if r.putErr != nil {
		return r.putErr
	}
	r.favorites[favKey(favorite.UserID, favorite.ItemID)] = favorite
	return nil
}

func (r *memFavoriteRepo) Delete(ctx context.Context, userID, itemID string) error {
	delete(r.favorites, favKey(userID, itemID))
	return nil
}

func newUserFixture(t *testing.T) (UserService, *memContextRepo, *memFavoriteRepo) {
	t.Helper()
	contexts := newMemContextRepo()
	favorites := newMemFavoriteRepo()
	svc, err := NewUserService(UserServiceDeps{
		Contexts:  contexts,
		Favorites: favorites,
		Catalog:   catalog.New(nil, nil),
		Clock:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	return svc, contexts, favorites
}

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func TestUpsertContextCreatesAndMerges(t *testing.T) {
	svc, contexts, _ := newUserFixture(t)
	ctx := context.Background()

	created, err := svc.UpsertContext(ctx, UpsertUserContextCommand{
		UserID:               "chat-7",
		PreferredStoreID:     strPtr("store_barkarby"),
		NotificationsEnabled: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("UpsertContext: %v", err)
	}
	if created.PreferredStoreID != "store_barkarby" || !created.NotificationsEnabled {
		t.Fatalf("unexpected context %#v", created)
	}
	if !created.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected creation timestamp, got %v", created.CreatedAt)
	}

	// A partial update leaves unspecified fields untouched.
	updated, err := svc.UpsertContext(ctx, UpsertUserContextCommand{
		UserID:               "chat-7",
		NotificationsEnabled: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("UpsertContext: %v", err)
	}
	if updated.PreferredStoreID != "store_barkarby" {
		t.Fatalf("preferred store must survive a partial update, got %q", updated.PreferredStoreID)
	}
	if updated.NotificationsEnabled {
		t.Fatal("notifications flag should be off")
	}
	if stored := contexts.contexts["chat-7"]; stored.NotificationsEnabled {
		t.Fatal("stored context out of sync")
	}
}

func TestUpsertContextRejectsUnknownStore(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.UpsertContext(context.Background(), UpsertUserContextCommand{
		UserID:           "chat-7",
		PreferredStoreID: strPtr("store_nowhere"),
	})
	if !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestGetContextForNewUser(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	uc, err := svc.GetContext(context.Background(), "chat-new")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if uc.UserID != "chat-new" || uc.NotificationsEnabled {
		t.Fatalf("expected zero context for a new user, got %#v", uc)
	}
}

func TestToggleFavoriteMarkAndUnmark(t *testing.T) {
	svc, _, favorites := newUserFixture(t)
	ctx := context.Background()

	marked, err := svc.ToggleFavorite(ctx, ToggleFavoriteCommand{UserID: "chat-7", ItemID: "cinnamon_bun", Mark: true})
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if !marked {
		t.Fatal("expected marked=true")
	}
	if _, ok := favorites.favorites[favKey("chat-7", "cinnamon_bun")]; !ok {
		t.Fatal("favorite not persisted")
	}

	// Marking again is a no-op.
	if marked, err = svc.ToggleFavorite(ctx, ToggleFavoriteCommand{UserID: "chat-7", ItemID: "cinnamon_bun", Mark: true}); err != nil || !marked {
		t.Fatalf("re-mark: marked=%v err=%v", marked, err)
	}

	marked, err = svc.ToggleFavorite(ctx, ToggleFavoriteCommand{UserID: "chat-7", ItemID: "cinnamon_bun", Mark: false})
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if marked {
		t.Fatal("expected marked=false after unmark")
	}
	if len(favorites.favorites) != 0 {
		t.Fatal("favorite not removed")
	}
}

func TestToggleFavoriteRejectsUnknownItem(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.ToggleFavorite(context.Background(), ToggleFavoriteCommand{UserID: "chat-7", ItemID: "surströmming", Mark: true})
	if !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestListFavoritesJoinsCatalog(t *testing.T) {
	svc, _, favorites := newUserFixture(t)
	ctx := context.Background()
	favorites.favorites[favKey("chat-7", "cinnamon_bun")] = domain.Favorite{UserID: "chat-7", ItemID: "cinnamon_bun", CreatedAt: fixedNow}
	favorites.favorites[favKey("chat-7", "retired_item")] = domain.Favorite{UserID: "chat-7", ItemID: "retired_item", CreatedAt: fixedNow}

	items, err := svc.ListFavorites(ctx, "chat-7")
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("retired items are skipped, expected 1 row, got %d", len(items))
	}
	if items[0].Name != "Cinnamon Bun" || items[0].UnitPrice != 12 {
		t.Fatalf("unexpected join %#v", items[0])
	}
}
