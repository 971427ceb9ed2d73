package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	pfirestore "github.com/khalidfrds/ikea-bistro-backend/internal/platform/firestore"
)

const categoryStatsCollection = "categoryStats"

type categoryStatDocument struct {
	CategoryA string    `firestore:"categoryA"`
	CategoryB string    `firestore:"categoryB"`
	Count     int64     `firestore:"count"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CategoryStatsRepository implements repositories.CategoryStatsRepository
// backed by Firestore. Documents are keyed by the canonical pair key.
type CategoryStatsRepository struct {
	provider *pfirestore.Provider
	stats    *pfirestore.BaseRepository[categoryStatDocument]
}

// NewCategoryStatsRepository constructs a Firestore-backed co-occurrence store.
func NewCategoryStatsRepository(provider *pfirestore.Provider) (*CategoryStatsRepository, error) {
	if provider == nil {
		return nil, errors.New("category stats repository requires firestore provider")
	}
	return &CategoryStatsRepository{
		provider: provider,
		stats:    pfirestore.NewBaseRepository[categoryStatDocument](provider, categoryStatsCollection, nil, nil),
	}, nil
}

// Increment bumps the pair counter by the stat's count, creating the document
// on first sight.
func (r *CategoryStatsRepository) Increment(ctx context.Context, stat domain.CategoryStat) error {
	key := strings.TrimSpace(stat.Key)
	if key == "" {
		return errors.New("category stats repository: pair key is required")
	}
	step := stat.Count
	if step <= 0 {
		step = 1
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.stats.DocumentRef(ctx, key)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			return tx.Create(ref, categoryStatDocument{
				CategoryA: stat.CategoryA,
				CategoryB: stat.CategoryB,
				Count:     step,
				UpdatedAt: stat.UpdatedAt,
			})
		case codes.OK:
			// proceed
		default:
			return err
		}

		var doc categoryStatDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}
		doc.Count += step
		doc.UpdatedAt = stat.UpdatedAt
		return tx.Set(ref, doc)
	})
}

// List returns every pair counter, highest count first.
func (r *CategoryStatsRepository) List(ctx context.Context) ([]domain.CategoryStat, error) {
	docs, err := r.stats.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("count", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	stats := make([]domain.CategoryStat, 0, len(docs))
	for _, doc := range docs {
		stats = append(stats, domain.CategoryStat{
			Key:       doc.ID,
			CategoryA: doc.Data.CategoryA,
			CategoryB: doc.Data.CategoryB,
			Count:     doc.Data.Count,
			UpdatedAt: doc.Data.UpdatedAt,
		})
	}
	return stats, nil
}
