package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/auth"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/httpx"
	"github.com/khalidfrds/ikea-bistro-backend/internal/services"
)

const maxMeBodyBytes = 16 * 1024

// MeHandlers serves user context and favorites for the authenticated user.
type MeHandlers struct {
	users services.UserService
}

// NewMeHandlers validates dependencies and constructs the handlers.
func NewMeHandlers(users services.UserService) (*MeHandlers, error) {
	if users == nil {
		return nil, errors.New("handlers: user service is required")
	}
	return &MeHandlers{users: users}, nil
}

// Register mounts the user scoped routes on the provided router.
func (h *MeHandlers) Register(r chi.Router) {
	r.Get("/context", h.getContext)
	r.Put("/context", h.putContext)
	r.Get("/favorites", h.listFavorites)
	r.Post("/favorites/{itemID}", h.markFavorite)
	r.Delete("/favorites/{itemID}", h.unmarkFavorite)
}

type userContextResponse struct {
	UserID               string     `json:"userId"`
	PreferredStoreID     string     `json:"preferredStoreId,omitempty"`
	NotificationsEnabled bool       `json:"notificationsEnabled"`
	CreatedAt            *time.Time `json:"createdAt,omitempty"`
	UpdatedAt            *time.Time `json:"updatedAt,omitempty"`
}

func toUserContextResponse(ctx services.UserContext) userContextResponse {
	resp := userContextResponse{
		UserID:               ctx.UserID,
		PreferredStoreID:     ctx.PreferredStoreID,
		NotificationsEnabled: ctx.NotificationsEnabled,
	}
	if !ctx.CreatedAt.IsZero() {
		created := ctx.CreatedAt
		resp.CreatedAt = &created
	}
	if !ctx.UpdatedAt.IsZero() {
		updated := ctx.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func (h *MeHandlers) getContext(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	ctx, err := h.users.GetContext(r.Context(), identity.UserID)
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserContextResponse(ctx))
}

type putContextPayload struct {
	PreferredStoreID     *string `json:"preferredStoreId"`
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
}

func (h *MeHandlers) putContext(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	body, err := readLimitedBody(r, maxMeBodyBytes)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	var payload putContextPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	ctx, err := h.users.UpsertContext(r.Context(), services.UpsertUserContextCommand{
		UserID:               identity.UserID,
		PreferredStoreID:     payload.PreferredStoreID,
		NotificationsEnabled: payload.NotificationsEnabled,
	})
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserContextResponse(ctx))
}

type favoriteItemResponse struct {
	ItemID    string    `json:"itemId"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	UnitPrice int64     `json:"unitPrice"`
	CreatedAt time.Time `json:"createdAt"`
}

type favoritesResponse struct {
	Favorites []favoriteItemResponse `json:"favorites"`
}

func (h *MeHandlers) listFavorites(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	favorites, err := h.users.ListFavorites(r.Context(), identity.UserID)
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	resp := favoritesResponse{Favorites: make([]favoriteItemResponse, 0, len(favorites))}
	for _, fav := range favorites {
		resp.Favorites = append(resp.Favorites, favoriteItemResponse{
			ItemID:    fav.ItemID,
			Name:      fav.Name,
			Category:  fav.Category,
			UnitPrice: fav.UnitPrice,
			CreatedAt: fav.CreatedAt,
		})
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

type toggleFavoriteResponse struct {
	ItemID   string `json:"itemId"`
	Favorite bool   `json:"favorite"`
}

func (h *MeHandlers) markFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggleFavorite(w, r, true)
}

func (h *MeHandlers) unmarkFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggleFavorite(w, r, false)
}

func (h *MeHandlers) toggleFavorite(w http.ResponseWriter, r *http.Request, mark bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_item_id", "item id is required", http.StatusBadRequest))
		return
	}

	favorite, err := h.users.ToggleFavorite(r.Context(), services.ToggleFavoriteCommand{
		UserID: identity.UserID,
		ItemID: itemID,
		Mark:   mark,
	})
	if err != nil {
		writeUserError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toggleFavoriteResponse{ItemID: itemID, Favorite: favorite})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "user identity is required", http.StatusUnauthorized))
}

func writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("internal_error", "user operation failed", http.StatusInternalServerError))
	}
}
