package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	pfirestore "github.com/khalidfrds/ikea-bistro-backend/internal/platform/firestore"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
)

const ordersCollection = "orders"

type lineItemDocument struct {
	ItemID    string `firestore:"itemId"`
	Name      string `firestore:"name"`
	Category  string `firestore:"category"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
}

type orderDocument struct {
	Number           int64              `firestore:"number"`
	UserID           string             `firestore:"userId"`
	StoreID          string             `firestore:"storeId"`
	Items            []lineItemDocument `firestore:"items"`
	TotalPrice       int64              `firestore:"totalPrice"`
	PaymentMethod    string             `firestore:"paymentMethod"`
	Status           string             `firestore:"status"`
	PaymentSessionID string             `firestore:"paymentSessionId"`
	ReceiptSent      bool               `firestore:"receiptSent"`
	CreatedAt        time.Time          `firestore:"createdAt"`
	UpdatedAt        time.Time          `firestore:"updatedAt"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	orders *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		orders: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert writes a new order document, failing when the ID is already taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.orders.Create(ctx, order.ID, encodeOrder(order))
	return err
}

// Update overwrites an existing order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.orders.Set(ctx, order.ID, encodeOrder(order))
	return err
}

// FindByID fetches an order by its document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// ListByUser returns the user's orders newest first, bounded by the filter limit.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		q := query.Where("userId", "==", trimmed).OrderBy("createdAt", firestore.Desc)
		if filter.CreatedBefore != nil {
			q = q.Where("createdAt", "<", *filter.CreatedBefore)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]lineItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineItemDocument{
			ItemID:    item.ItemID,
			Name:      item.Name,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderDocument{
		Number:           order.Number,
		UserID:           order.UserID,
		StoreID:          order.StoreID,
		Items:            items,
		TotalPrice:       order.TotalPrice,
		PaymentMethod:    string(order.PaymentMethod),
		Status:           string(order.Status),
		PaymentSessionID: order.PaymentSessionID,
		ReceiptSent:      order.ReceiptSent,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.LineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.LineItem{
			ItemID:    item.ItemID,
			Name:      item.Name,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return domain.Order{
		ID:               id,
		Number:           doc.Number,
		UserID:           doc.UserID,
		StoreID:          doc.StoreID,
		Items:            items,
		TotalPrice:       doc.TotalPrice,
		PaymentMethod:    domain.PaymentMethod(doc.PaymentMethod),
		Status:           domain.OrderStatus(doc.Status),
		PaymentSessionID: doc.PaymentSessionID,
		ReceiptSent:      doc.ReceiptSent,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}
