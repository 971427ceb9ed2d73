package catalog

import (
	"errors"
	"testing"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
)

func TestPriceAndValidateSnapshotsSeedPrice(t *testing.T) {
	c := New(nil, nil)

	snap, err := c.PriceAndValidate("hotdog_classic", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.UnitPrice != 5 {
		t.Fatalf("expected unit price 5, got %d", snap.UnitPrice)
	}
	if snap.Name != "Classic Hot Dog" {
		t.Fatalf("expected name snapshot, got %s", snap.Name)
	}
	if snap.Category != "hotdogs" {
		t.Fatalf("expected category hotdogs, got %s", snap.Category)
	}
	if snap.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", snap.Quantity)
	}
}

func TestPriceAndValidateUnknownItem(t *testing.T) {
	c := New(nil, nil)

	_, err := c.PriceAndValidate("krabby_patty", 1)
	if !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected unknown item error, got %v", err)
	}
}

func TestPriceAndValidateRejectsQuantityBelowOne(t *testing.T) {
	c := New(nil, nil)

	for _, qty := range []int{0, -1} {
		_, err := c.PriceAndValidate("hotdog_classic", qty)
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected invalid quantity error, got %v", qty, err)
		}
	}
}

func TestStoreNameFallsBackToID(t *testing.T) {
	c := New(nil, []domain.Store{{ID: "store_a", Name: "Store A"}})

	if name := c.StoreName("store_a"); name != "Store A" {
		t.Fatalf("expected Store A, got %s", name)
	}
	if name := c.StoreName("store_missing"); name != "store_missing" {
		t.Fatalf("expected fallback to id, got %s", name)
	}
}

func TestCustomSeedOverridesBuiltin(t *testing.T) {
	c := New([]domain.CatalogItem{{ID: "only_item", Name: "Only", Category: "misc", UnitPrice: 3}}, nil)

	if _, err := c.PriceAndValidate("hotdog_classic", 1); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected built-in menu replaced, got %v", err)
	}
	snap, err := c.PriceAndValidate("only_item", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.UnitPrice != 3 {
		t.Fatalf("expected price 3, got %d", snap.UnitPrice)
	}
}
