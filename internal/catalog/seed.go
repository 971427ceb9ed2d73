package catalog

import domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"

// Built-in bistro menu. Prices are whole SEK.
var seedItems = []domain.CatalogItem{
	{ID: "hotdog_classic", Name: "Classic Hot Dog", Category: "hotdogs", UnitPrice: 5},
	{ID: "hotdog_veggie", Name: "Veggie Dog", Category: "hotdogs", UnitPrice: 7},
	{ID: "hotdog_cheese", Name: "Cheese Dog", Category: "hotdogs", UnitPrice: 9},
	{ID: "meatballs_plate", Name: "Meatball Plate", Category: "plates", UnitPrice: 49},
	{ID: "plantballs_plate", Name: "Plant Ball Plate", Category: "plates", UnitPrice: 45},
	{ID: "salmon_plate", Name: "Salmon Fillet Plate", Category: "plates", UnitPrice: 69},
	{ID: "fries_small", Name: "Fries Small", Category: "sides", UnitPrice: 15},
	{ID: "fries_large", Name: "Fries Large", Category: "sides", UnitPrice: 25},
	{ID: "cinnamon_bun", Name: "Cinnamon Bun", Category: "bakery", UnitPrice: 12},
	{ID: "princess_cake", Name: "Princess Cake Slice", Category: "bakery", UnitPrice: 25},
	{ID: "soft_ice", Name: "Soft Ice Cone", Category: "desserts", UnitPrice: 8},
	{ID: "soda_fountain", Name: "Fountain Soda", Category: "drinks", UnitPrice: 10},
	{ID: "coffee", Name: "Filter Coffee", Category: "drinks", UnitPrice: 12},
	{ID: "lingonberry_drink", Name: "Lingonberry Drink", Category: "drinks", UnitPrice: 14},
}

var seedStores = []domain.Store{
	{ID: "store_kungens_kurva", Name: "Kungens Kurva"},
	{ID: "store_barkarby", Name: "Barkarby"},
	{ID: "store_gentofte", Name: "Gentofte"},
	{ID: "store_vastra_hamnen", Name: "Västra Hamnen"},
}
