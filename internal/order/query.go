package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/money"
)

const recentOrdersLimit = 10

// QueryRepository serves the read-only views over placed orders.
type QueryRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]OrderSummary, error)
	GetDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	ListSales(ctx context.Context, sellerID uuid.UUID) ([]Sale, error)
	Overview(ctx context.Context) (*Overview, error)
}

type sqlxQueryRepository struct {
	db *sqlx.DB
}

func NewQueryRepository(x *sqlx.DB) QueryRepository {
	return &sqlxQueryRepository{db: x}
}

func (r *sqlxQueryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]OrderSummary, error) {
	query := `
		SELECT o.id, o.order_number, o.total_amount::text AS total_amount, o.status, o.created_at,
		       COALESCE(SUM(oi.quantity), 0) AS item_count,
		       COALESCE(string_agg(p.title, ', ' ORDER BY oi.created_at, oi.id), '') AS product_titles
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE o.user_id = $1
		GROUP BY o.id
		ORDER BY o.created_at DESC, o.id
	`

	orders := make([]OrderSummary, 0)
	if err := r.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %s: %w", userID, err)
	}
	return orders, nil
}

func (r *sqlxQueryRepository) GetDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	headerQuery := `
		SELECT id, order_number, user_id, total_amount::text AS total_amount, status, full_name, email, phone,
		       delivery_address, delivery_notes, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var detail OrderDetail
	if err := r.db.GetContext(ctx, &detail.Order, headerQuery, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	linesQuery := `
		SELECT oi.product_id, p.title, p.image_url, oi.quantity, oi.unit_price::text AS unit_price,
		       p.seller_id, u.username AS seller_username, u.full_name AS seller_name
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		JOIN users u ON u.id = p.seller_id
		WHERE oi.order_id = $1
		ORDER BY oi.created_at, oi.id
	`

	detail.Lines = make([]DetailLine, 0)
	if err := r.db.SelectContext(ctx, &detail.Lines, linesQuery, orderID); err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order id %s: %w", orderID, err)
	}
	for i := range detail.Lines {
		l := &detail.Lines[i]
		l.Subtotal = money.LineTotal(l.UnitPrice, l.Quantity)
	}

	return &detail, nil
}

func (r *sqlxQueryRepository) ListSales(ctx context.Context, sellerID uuid.UUID) ([]Sale, error) {
	query := `
		SELECT o.id AS order_id, o.order_number, o.status, oi.product_id, p.title, oi.quantity,
		       oi.unit_price::text AS unit_price, o.full_name AS buyer_name, o.email AS buyer_email,
		       o.phone AS buyer_phone, o.delivery_address, o.created_at AS ordered_at
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE p.seller_id = $1
		ORDER BY o.created_at DESC, oi.id
	`

	sales := make([]Sale, 0)
	if err := r.db.SelectContext(ctx, &sales, query, sellerID); err != nil {
		return nil, fmt.Errorf("repository: failed to query sales for seller %s: %w", sellerID, err)
	}
	for i := range sales {
		s := &sales[i]
		s.Subtotal = money.LineTotal(s.UnitPrice, s.Quantity)
	}
	return sales, nil
}

func (r *sqlxQueryRepository) Overview(ctx context.Context) (*Overview, error) {
	countsQuery := `
		SELECT
			(SELECT count(*) FROM users) AS users,
			(SELECT count(*) FROM products) AS products,
			(SELECT count(*) FROM products WHERE status = $1) AS available_products,
			(SELECT count(*) FROM products WHERE status = $2) AS sold_products,
			(SELECT count(*) FROM orders) AS orders,
			(SELECT COALESCE(SUM(total_amount), 0)::text FROM orders) AS revenue
	`

	var overview Overview
	err := r.db.GetContext(ctx, &overview, countsQuery, string(catalog.StatusAvailable), string(catalog.StatusSold))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to count marketplace totals: %w", err)
	}

	recentQuery := `
		SELECT o.id, o.order_number, o.total_amount::text AS total_amount, o.status, o.created_at,
		       u.username AS buyer_username,
		       COALESCE(SUM(oi.quantity), 0) AS item_count,
		       COALESCE(string_agg(p.title, ', ' ORDER BY oi.created_at, oi.id), '') AS product_titles
		FROM orders o
		JOIN users u ON u.id = o.user_id
		LEFT JOIN order_items oi ON oi.order_id = o.id
		LEFT JOIN products p ON p.id = oi.product_id
		GROUP BY o.id, u.username
		ORDER BY o.created_at DESC, o.id
		LIMIT $1
	`

	overview.RecentOrders = make([]RecentOrder, 0, recentOrdersLimit)
	if err := r.db.SelectContext(ctx, &overview.RecentOrders, recentQuery, recentOrdersLimit); err != nil {
		return nil, fmt.Errorf("repository: failed to query recent orders: %w", err)
	}
	return &overview, nil
}
