package catalog

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
)

var (
	// ErrUnknownItem indicates the item id is not present in the catalog.
	ErrUnknownItem = errors.New("catalog: unknown item")
	// ErrInvalidQuantity indicates the requested quantity is not an integer >= 1.
	ErrInvalidQuantity = errors.New("catalog: invalid quantity")
	// ErrUnknownStore indicates the store id is not present in the seed data.
	ErrUnknownStore = errors.New("catalog: unknown store")
)

// LineSnapshot is the priced, validated snapshot of one cart line. Name and
// unit price are frozen here and must never be re-read from the catalog later.
type LineSnapshot struct {
	ItemID    string
	Name      string
	Category  string
	Quantity  int
	UnitPrice int64
}

// Catalog is the authoritative price list. It is a leaf with no dependencies
// and no side effects; menu and store data are static seed input.
type Catalog struct {
	items  map[string]domain.CatalogItem
	stores map[string]domain.Store
}

// New constructs a Catalog over the supplied seed data, defaulting to the
// built-in bistro menu when nil.
func New(items []domain.CatalogItem, stores []domain.Store) *Catalog {
	if items == nil {
		items = seedItems
	}
	if stores == nil {
		stores = seedStores
	}
	c := &Catalog{
		items:  make(map[string]domain.CatalogItem, len(items)),
		stores: make(map[string]domain.Store, len(stores)),
	}
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		c.items[id] = item
	}
	for _, store := range stores {
		id := strings.TrimSpace(store.ID)
		if id == "" {
			continue
		}
		c.stores[id] = store
	}
	return c
}

// PriceAndValidate resolves the catalog item and freezes its name and price
// into a snapshot for the requested quantity.
func (c *Catalog) PriceAndValidate(itemID string, quantity int) (LineSnapshot, error) {
	if c == nil {
		return LineSnapshot{}, ErrUnknownItem
	}
	if quantity < 1 {
		return LineSnapshot{}, fmt.Errorf("%w: quantity %d for item %s", ErrInvalidQuantity, quantity, strings.TrimSpace(itemID))
	}
	item, ok := c.items[strings.TrimSpace(itemID)]
	if !ok {
		return LineSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownItem, strings.TrimSpace(itemID))
	}
	return LineSnapshot{
		ItemID:    item.ID,
		Name:      item.Name,
		Category:  item.Category,
		Quantity:  quantity,
		UnitPrice: item.UnitPrice,
	}, nil
}

// Item returns the catalog item by id.
func (c *Catalog) Item(itemID string) (domain.CatalogItem, bool) {
	if c == nil {
		return domain.CatalogItem{}, false
	}
	item, ok := c.items[strings.TrimSpace(itemID)]
	return item, ok
}

// Store returns the store by id.
func (c *Catalog) Store(storeID string) (domain.Store, bool) {
	if c == nil {
		return domain.Store{}, false
	}
	store, ok := c.stores[strings.TrimSpace(storeID)]
	return store, ok
}

// StoreName returns the display name for a store id, falling back to the id
// itself when the store is unknown (denormalised history rows stay readable).
func (c *Catalog) StoreName(storeID string) string {
	if store, ok := c.Store(storeID); ok {
		return store.Name
	}
	return strings.TrimSpace(storeID)
}
