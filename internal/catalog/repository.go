package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/db"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetAvailability(ctx context.Context, productID uuid.UUID) (*Availability, error)
	GetAvailabilities(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]Availability, error)
	MarkSold(ctx context.Context, productIDs []uuid.UUID) (int64, error)
}

type postgresRepository struct {
	db db.Querier
}

// NewRepository accepts the pool or a pgx.Tx; checkout passes its transaction
// so the sold flip commits together with the order.
func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

func (r *postgresRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}
	if p.Status == "" {
		p.Status = StatusAvailable
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO products (id, seller_id, title, description, price, category, condition, image_url, status, view_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.SellerID,
		p.Title,
		p.Description,
		p.Price.StringFixed(2),
		p.Category,
		p.Condition,
		p.ImageURL,
		string(p.Status),
		p.ViewCount,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetAvailability(ctx context.Context, productID uuid.UUID) (*Availability, error) {
	query := `
		SELECT id, seller_id, title, price::text, status
		FROM products
		WHERE id = $1
	`

	a, err := scanAvailability(r.db.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product %s: %w", productID, err)
	}
	return &a, nil
}

func (r *postgresRepository) GetAvailabilities(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]Availability, error) {
	out := make(map[uuid.UUID]Availability, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT id, seller_id, title, price::text, status
		FROM products
		WHERE id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		out[a.ProductID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}
	return out, nil
}

// MarkSold flips available products to sold and returns how many rows
// actually changed. Products that are already sold are skipped, not errors.
func (r *postgresRepository) MarkSold(ctx context.Context, productIDs []uuid.UUID) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE products
		SET status = $1, updated_at = $2
		WHERE id = ANY($3) AND status = $4
	`
	tag, err := r.db.Exec(ctx, query,
		string(StatusSold),
		time.Now().UTC(),
		productIDs,
		string(StatusAvailable),
	)
	if err != nil {
		log.Error().Err(err).Int("products", len(productIDs)).Msg("repository: failed to mark products sold")
		return 0, fmt.Errorf("repository: failed to mark products sold: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanAvailability(row pgx.Row) (Availability, error) {
	var (
		a      Availability
		price  string
		status string
	)
	if err := row.Scan(&a.ProductID, &a.SellerID, &a.Title, &price, &status); err != nil {
		return Availability{}, err
	}
	if err := a.Price.Scan(price); err != nil {
		return Availability{}, fmt.Errorf("invalid price %q: %w", price, err)
	}
	a.Status = Status(status)
	return a, nil
}
