package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/money"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
)

func (s Status) String() string {
	return string(s)
}

type Product struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	SellerID    uuid.UUID    `json:"seller_id" db:"seller_id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Price       money.Amount `json:"price" db:"price"`
	Category    string       `json:"category" db:"category"`
	Condition   string       `json:"condition" db:"condition"`
	ImageURL    string       `json:"image_url" db:"image_url"`
	Status      Status       `json:"status" db:"status"`
	ViewCount   int64        `json:"view_count" db:"view_count"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// Availability is the slice of a product the cart and checkout care about.
type Availability struct {
	ProductID uuid.UUID
	SellerID  uuid.UUID
	Title     string
	Price     money.Amount
	Status    Status
}

func (a Availability) Available() bool {
	return a.Status == StatusAvailable
}
