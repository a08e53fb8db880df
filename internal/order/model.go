package order

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/money"
)

type OrderStatus string

const (
	StatusCompleted OrderStatus = "COMPLETED"
)

func (os OrderStatus) String() string {
	return string(os)
}

type OrderItem struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	OrderID   uuid.UUID    `json:"order_id" db:"order_id"`
	ProductID uuid.UUID    `json:"product_id" db:"product_id"`
	SellerID  uuid.UUID    `json:"seller_id" db:"-"`
	Title     string       `json:"title" db:"-"`
	Quantity  int          `json:"quantity" db:"quantity"`
	UnitPrice money.Amount `json:"unit_price" db:"unit_price"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

type Order struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	OrderNumber     string       `json:"order_number" db:"order_number"`
	UserID          uuid.UUID    `json:"user_id" db:"user_id"`
	Status          OrderStatus  `json:"status" db:"status"`
	Items           []OrderItem  `json:"items,omitempty" db:"-"`
	TotalAmount     money.Amount `json:"total_amount" db:"total_amount"`
	FullName        string       `json:"full_name" db:"full_name"`
	Email           string       `json:"email" db:"email"`
	Phone           string       `json:"phone" db:"phone"`
	DeliveryAddress string       `json:"delivery_address" db:"delivery_address"`
	DeliveryNotes   string       `json:"delivery_notes" db:"delivery_notes"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func (o *Order) computeTotal() money.Amount {
	return money.Total(o.Items,
		func(it OrderItem) money.Amount { return it.UnitPrice },
		func(it OrderItem) int { return it.Quantity },
	)
}

// CheckoutRequest carries the delivery details entered at confirmation.
type CheckoutRequest struct {
	FullName        string `json:"full_name" validate:"required,max=200"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Phone           string `json:"phone" validate:"required,min=5,max=40"`
	DeliveryAddress string `json:"delivery_address" validate:"required,max=1000"`
	DeliveryNotes   string `json:"delivery_notes" validate:"max=1000"`
	IdempotencyKey  string `json:"-" validate:"max=128"`
}

func (r *CheckoutRequest) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.DeliveryAddress = strings.TrimSpace(r.DeliveryAddress)
	r.DeliveryNotes = strings.TrimSpace(r.DeliveryNotes)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
}

type Receipt struct {
	OrderID         uuid.UUID    `json:"order_id"`
	OrderNumber     string       `json:"order_number"`
	TotalAmount     money.Amount `json:"total_amount"`
	CustomerName    string       `json:"customer_name"`
	DeliveryAddress string       `json:"delivery_address"`
	ItemCount       int          `json:"item_count"`
}

func newReceipt(o *Order) *Receipt {
	return &Receipt{
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		TotalAmount:     o.TotalAmount,
		CustomerName:    o.FullName,
		DeliveryAddress: o.DeliveryAddress,
		ItemCount:       o.ItemCount(),
	}
}

// OrderSummary is one row of a purchase history.
type OrderSummary struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	OrderNumber   string       `json:"order_number" db:"order_number"`
	TotalAmount   money.Amount `json:"total_amount" db:"total_amount"`
	Status        OrderStatus  `json:"status" db:"status"`
	ItemCount     int          `json:"item_count" db:"item_count"`
	ProductTitles string       `json:"product_titles" db:"product_titles"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

type DetailLine struct {
	ProductID      uuid.UUID    `json:"product_id" db:"product_id"`
	Title          string       `json:"title" db:"title"`
	ImageURL       string       `json:"image_url" db:"image_url"`
	Quantity       int          `json:"quantity" db:"quantity"`
	UnitPrice      money.Amount `json:"unit_price" db:"unit_price"`
	Subtotal       money.Amount `json:"subtotal" db:"-"`
	SellerID       uuid.UUID    `json:"seller_id" db:"seller_id"`
	SellerUsername string       `json:"seller_username" db:"seller_username"`
	SellerName     string       `json:"seller_name" db:"seller_name"`
}

type OrderDetail struct {
	Order
	Lines []DetailLine `json:"lines"`
}

// Sale is an order line seen from the seller's side.
type Sale struct {
	OrderID         uuid.UUID    `json:"order_id" db:"order_id"`
	OrderNumber     string       `json:"order_number" db:"order_number"`
	Status          OrderStatus  `json:"status" db:"status"`
	ProductID       uuid.UUID    `json:"product_id" db:"product_id"`
	Title           string       `json:"title" db:"title"`
	Quantity        int          `json:"quantity" db:"quantity"`
	UnitPrice       money.Amount `json:"unit_price" db:"unit_price"`
	Subtotal        money.Amount `json:"subtotal" db:"-"`
	BuyerName       string       `json:"buyer_name" db:"buyer_name"`
	BuyerEmail      string       `json:"buyer_email" db:"buyer_email"`
	BuyerPhone      string       `json:"buyer_phone" db:"buyer_phone"`
	DeliveryAddress string       `json:"delivery_address" db:"delivery_address"`
	OrderedAt       time.Time    `json:"ordered_at" db:"ordered_at"`
}

type RecentOrder struct {
	OrderSummary
	BuyerUsername string `json:"buyer_username" db:"buyer_username"`
}

type Overview struct {
	Users             int64         `json:"users" db:"users"`
	Products          int64         `json:"products" db:"products"`
	AvailableProducts int64         `json:"available_products" db:"available_products"`
	SoldProducts      int64         `json:"sold_products" db:"sold_products"`
	Orders            int64         `json:"orders" db:"orders"`
	Revenue           money.Amount  `json:"revenue" db:"revenue"`
	RecentOrders      []RecentOrder `json:"recent_orders" db:"-"`
}
