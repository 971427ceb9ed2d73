package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/khalidfrds/ikea-bistro-backend/internal/catalog"
	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
)

const defaultSuggestionLimit = 3

// ErrUpsellInvalidInput signals the caller provided invalid suggestion input.
var ErrUpsellInvalidInput = errors.New("upsell: invalid input")

// UpsellServiceDeps bundles collaborators required to construct the upsell service.
type UpsellServiceDeps struct {
	Stats   repositories.CategoryStatsRepository
	Catalog *catalog.Catalog
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type upsellService struct {
	stats   repositories.CategoryStatsRepository
	catalog *catalog.Catalog
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewUpsellService wires dependencies into a concrete UpsellService implementation.
func NewUpsellService(deps UpsellServiceDeps) (UpsellService, error) {
	if deps.Stats == nil {
		return nil, errors.New("upsell service: category stats repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("upsell service: catalog is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &upsellService{
		stats:   deps.Stats,
		catalog: deps.Catalog,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// RecordOrder increments the co-occurrence counter for every unordered pair of
// distinct categories present in one order.
func (s *upsellService) RecordOrder(ctx context.Context, categories []string) error {
	distinct := distinctCategories(categories)
	if len(distinct) < 2 {
		return nil
	}

	now := s.clock()
	for i := 0; i < len(distinct); i++ {
		for j := i + 1; j < len(distinct); j++ {
			a, b := canonicalPair(distinct[i], distinct[j])
			stat := domain.CategoryStat{
				Key:       CategoryPairKey(a, b),
				CategoryA: a,
				CategoryB: b,
				Count:     1,
				UpdatedAt: now,
			}
			if err := s.stats.Increment(ctx, stat); err != nil {
				return fmt.Errorf("increment category pair %s: %w", stat.Key, err)
			}
		}
	}
	return nil
}

// Suggest ranks categories not yet in the cart by how often they co-occurred
// with the cart's categories in past orders.
func (s *upsellService) Suggest(ctx context.Context, cmd SuggestCommand) ([]Suggestion, error) {
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrUpsellInvalidInput)
	}

	inCart := make(map[string]bool)
	for _, line := range cmd.Items {
		quantity := line.Quantity
		if quantity < 1 {
			quantity = 1
		}
		snapshot, err := s.catalog.PriceAndValidate(line.ItemID, quantity)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpsellInvalidInput, err)
		}
		inCart[snapshot.Category] = true
	}

	stats, err := s.stats.List(ctx)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int64)
	for _, stat := range stats {
		aIn, bIn := inCart[stat.CategoryA], inCart[stat.CategoryB]
		switch {
		case aIn && !bIn:
			scores[stat.CategoryB] += stat.Count
		case bIn && !aIn:
			scores[stat.CategoryA] += stat.Count
		}
	}

	suggestions := make([]Suggestion, 0, len(scores))
	for category, score := range scores {
		suggestions = append(suggestions, Suggestion{Category: category, Score: score})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Category < suggestions[j].Category
	})

	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// CategoryPairKey builds the canonical key for an unordered category pair:
// the pair (a, b) and (b, a) collapse to the same key.
func CategoryPairKey(a, b string) string {
	a, b = canonicalPair(a, b)
	return a + "|" + b
}

func canonicalPair(a, b string) (string, string) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if b < a {
		return b, a
	}
	return a, b
}

func distinctCategories(categories []string) []string {
	seen := make(map[string]bool, len(categories))
	distinct := make([]string, 0, len(categories))
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" || seen[category] {
			continue
		}
		seen[category] = true
		distinct = append(distinct, category)
	}
	sort.Strings(distinct)
	return distinct
}
