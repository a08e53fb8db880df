package cart

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/money"
)

// Line is a cart entry joined with the current state of its product. Price is
// read from the catalog on every list; the cart never caches it.
type Line struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	ProductID uuid.UUID      `json:"product_id"`
	Quantity  int            `json:"quantity"`
	Title     string         `json:"title"`
	Price     money.Amount   `json:"price"`
	SellerID  uuid.UUID      `json:"seller_id"`
	ImageURL  string         `json:"image_url"`
	Status    catalog.Status `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (l Line) Subtotal() money.Amount {
	return money.LineTotal(l.Price, l.Quantity)
}

type View struct {
	Lines     []Line       `json:"lines"`
	Total     money.Amount `json:"total"`
	ItemCount int          `json:"item_count"`
}

func NewView(lines []Line) View {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return View{
		Lines:     lines,
		Total:     money.Total(lines, func(l Line) money.Amount { return l.Price }, func(l Line) int { return l.Quantity }),
		ItemCount: count,
	}
}
