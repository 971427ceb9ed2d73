package domain

import "time"

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates payment succeeded and the kitchen is preparing the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusReady indicates the order can be picked up.
	OrderStatusReady OrderStatus = "ready"
)

// There is deliberately no failed or cancelled order status: an order whose
// payment fails stays pending while the payment session records the failure.

// PaymentMethod identifies which provider backs a payment session.
type PaymentMethod string

const (
	// PaymentMethodCard pays through the hosted card checkout provider.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodSwish pays through the Swish merchant payment-request API.
	PaymentMethodSwish PaymentMethod = "swish"
)

// SessionStatus enumerates payment session states.
type SessionStatus string

const (
	SessionStatusCreated    SessionStatus = "created"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusSucceeded  SessionStatus = "succeeded"
	SessionStatusFailed     SessionStatus = "failed"
)

// LineItem is an immutable snapshot of a catalog item taken at order creation.
// Catalog price changes after creation never alter existing orders.
type LineItem struct {
	ItemID    string
	Name      string
	Category  string
	Quantity  int
	UnitPrice int64
}

// Order is the durable record owned by the lifecycle engine. Orders are
// append-only: created once in pending and never deleted.
type Order struct {
	ID               string
	Number           int64
	UserID           string
	StoreID          string
	Items            []LineItem
	TotalPrice       int64
	PaymentMethod    PaymentMethod
	Status           OrderStatus
	PaymentSessionID string
	ReceiptSent      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PaymentSession links an order to an external provider session. The external
// reference is unique and is the sole correlation key for inbound callbacks.
type PaymentSession struct {
	ID                string
	OrderID           string
	Method            PaymentMethod
	Amount            int64
	Status            SessionStatus
	ExternalReference string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Receipt tracks the at-most-once receipt delivery guard for an order.
type Receipt struct {
	OrderID string
	Sent    bool
	SentAt  *time.Time
}

// UserContext stores per-user preferences consulted by the lifecycle engine.
type UserContext struct {
	UserID               string
	PreferredStoreID     string
	NotificationsEnabled bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Favorite marks a menu item a user pinned for quick reordering.
type Favorite struct {
	UserID    string
	ItemID    string
	CreatedAt time.Time
}

// Store is static reference data, read-only to the core.
type Store struct {
	ID   string
	Name string
}

// CatalogItem is static reference data, read-only to the core. UnitPrice is
// expressed in whole SEK.
type CatalogItem struct {
	ID        string
	Name      string
	Category  string
	UnitPrice int64
}

// CategoryStat counts how often two catalog categories appeared together in a
// single order. Key is canonical: the pair (a, b) is stored once with a <= b.
type CategoryStat struct {
	Key       string
	CategoryA string
	CategoryB string
	Count     int64
	UpdatedAt time.Time
}

// OrderEvent is published best-effort on lifecycle transitions for downstream
// consumers such as the kitchen display feed.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"orderId"`
	OrderNumber int64     `json:"orderNumber"`
	UserID      string    `json:"userId"`
	StoreID     string    `json:"storeId"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurredAt"`
}
