package order

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cart"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/db"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/money"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/outbox"
)

type Repository interface {
	// PlaceOrder writes the order, marks its products sold, removes the
	// checked out cart lines and records an order.completed event, all or
	// nothing.
	PlaceOrder(ctx context.Context, o *Order) error
}

type postgresRepository struct {
	db    db.TxBeginner
	topic string
}

func NewRepository(pool db.TxBeginner, eventTopic string) Repository {
	return &postgresRepository{db: pool, topic: eventTopic}
}

type completedItem struct {
	ProductID uuid.UUID    `json:"product_id"`
	SellerID  uuid.UUID    `json:"seller_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice money.Amount `json:"unit_price"`
}

type completedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	TotalAmount money.Amount    `json:"total_amount"`
	Items       []completedItem `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newCompletedEvent(o *Order) completedEvent {
	items := make([]completedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, completedItem{
			ProductID: it.ProductID,
			SellerID:  it.SellerID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return completedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Items:       items,
		CreatedAt:   o.CreatedAt,
	}
}

func (r *postgresRepository) PlaceOrder(ctx context.Context, o *Order) error {
	if len(o.Items) == 0 {
		return errors.New("repository: order must contain at least one item")
	}
	if err := assignIDs(o); err != nil {
		return err
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	// Concurrent checkouts sharing products must lock them in the same order.
	slices.SortFunc(o.Items, func(a, b OrderItem) int {
		return bytes.Compare(a.ProductID.Bytes(), b.ProductID.Bytes())
	})

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := cart.LockUser(ctx, tx, o.UserID); err != nil {
			return err
		}
		if err := insertHeader(ctx, tx, o); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, o); err != nil {
			return err
		}

		sold, err := catalog.NewRepository(tx).MarkSold(ctx, o.ProductIDs())
		if err != nil {
			return err
		}
		if sold != int64(len(o.Items)) {
			log.Warn().
				Str("order_number", o.OrderNumber).
				Int64("marked_sold", sold).
				Int("lines", len(o.Items)).
				Msg("repository: product sold by a concurrent checkout")
			return ErrProductNoLongerAvailable
		}

		if _, err := cart.NewRepository(tx).RemoveCheckedOut(ctx, o.UserID, o.ProductIDs()); err != nil {
			return err
		}

		_, err = outbox.Insert(ctx, tx, r.topic, o.OrderNumber, outbox.EventOrderCompleted, newCompletedEvent(o))
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateOrderNumber) || errors.Is(err, ErrProductNoLongerAvailable) {
			return err
		}
		if db.IsDeadlock(err) {
			log.Warn().Err(err).Str("order_number", o.OrderNumber).Msg("repository: checkout lost a lock cycle")
			return ErrProductNoLongerAvailable
		}
		return fmt.Errorf("repository: failed to place order %s: %w", o.OrderNumber, err)
	}
	return nil
}

func assignIDs(o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		o.ID = id
	}
	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == uuid.Nil {
			id, err := uuid.NewV4()
			if err != nil {
				return fmt.Errorf("repository: failed to generate order item ID: %w", err)
			}
			item.ID = id
		}
		item.OrderID = o.ID
	}
	return nil
}

func insertHeader(ctx context.Context, tx pgx.Tx, o *Order) error {
	query := `
		INSERT INTO orders (id, order_number, user_id, total_amount, status, full_name, email, phone, delivery_address, delivery_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.Exec(ctx, query,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.TotalAmount.StringFixed(2),
		string(o.Status),
		o.FullName,
		o.Email,
		o.Phone,
		o.DeliveryAddress,
		o.DeliveryNotes,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err, "orders_order_number_key") {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}
	return nil
}

// insertItems sends every line in one batch round trip.
func insertItems(ctx context.Context, tx pgx.Tx, o *Order) (err error) {
	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for i := range o.Items {
		item := &o.Items[i]
		item.CreatedAt = o.CreatedAt
		batch.Queue(query, item.ID, o.ID, item.ProductID, item.Quantity, item.UnitPrice.StringFixed(2), item.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	defer func() {
		if closeErr := results.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("repository: failed to close order item batch: %w", closeErr)
		}
	}()

	for _, item := range o.Items {
		if _, err := results.Exec(); err != nil {
			if db.IsUniqueViolation(err, "order_items_product_id_key") {
				return ErrProductNoLongerAvailable
			}
			return fmt.Errorf("repository: failed to insert order item for product %s: %w", item.ProductID, err)
		}
	}
	return nil
}
