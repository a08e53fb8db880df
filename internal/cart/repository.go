package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/db"
)

var ErrLineNotFound = errors.New("cart line not found")

type Repository interface {
	Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Line, error)
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error
	Delete(ctx context.Context, userID, lineID uuid.UUID) (bool, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	RemoveCheckedOut(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (int64, error)
	ListAvailable(ctx context.Context, userID uuid.UUID) ([]Line, error)
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

// LockUser takes a transaction-scoped advisory lock so cart edits and
// checkout for one user run one at a time.
func LockUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID.String())
	if err != nil {
		return fmt.Errorf("repository: failed to lock cart for user %s: %w", userID, err)
	}
	return nil
}

func (r *postgresRepository) inUserTx(ctx context.Context, userID uuid.UUID, fn func(q db.Querier) error) error {
	beginner, ok := r.db.(db.TxBeginner)
	if !ok {
		return fn(r.db)
	}
	return db.WithTx(ctx, beginner, func(tx pgx.Tx) error {
		if err := LockUser(ctx, tx, userID); err != nil {
			return err
		}
		return fn(tx)
	})
}

func (r *postgresRepository) Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Line, error) {
	lineID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart line ID: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT ON CONSTRAINT cart_items_user_product_key
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, product_id, quantity, created_at, updated_at
	`

	var line Line
	err = r.inUserTx(ctx, userID, func(q db.Querier) error {
		return q.QueryRow(ctx, query, lineID, userID, productID, quantity, now).Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.CreatedAt,
			&line.UpdatedAt,
		)
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to upsert cart line: %w", err)
	}
	return &line, nil
}

func (r *postgresRepository) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
	`

	var affected int64
	err := r.inUserTx(ctx, userID, func(q db.Querier) error {
		tag, err := q.Exec(ctx, query, quantity, time.Now().UTC(), lineID, userID)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("repository: failed to update cart line %s: %w", lineID, err)
	}
	if affected == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, userID, lineID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, lineID, userID)
	if err != nil {
		return false, fmt.Errorf("repository: failed to delete cart line %s: %w", lineID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("repository: failed to clear cart for user %s: %w", userID, err)
	}
	return nil
}

// RemoveCheckedOut deletes the ordered lines together with any line whose
// product is already sold. Lines added after the cart was priced survive.
func (r *postgresRepository) RemoveCheckedOut(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (int64, error) {
	query := `
		DELETE FROM cart_items ci
		USING products p
		WHERE ci.user_id = $1
		  AND p.id = ci.product_id
		  AND (ci.product_id = ANY($2) OR p.status = $3)
	`
	tag, err := r.db.Exec(ctx, query, userID, productIDs, string(catalog.StatusSold))
	if err != nil {
		return 0, fmt.Errorf("repository: failed to remove checked out lines for user %s: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

// ListAvailable skips lines whose product has been sold. They stay in the
// table until the next clear or checkout.
func (r *postgresRepository) ListAvailable(ctx context.Context, userID uuid.UUID) ([]Line, error) {
	query := `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		       p.title, p.price::text, p.seller_id, p.image_url, p.status
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1 AND p.status = $2
		ORDER BY ci.created_at, ci.id
	`

	rows, err := r.db.Query(ctx, query, userID, string(catalog.StatusAvailable))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart for user %s: %w", userID, err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		var (
			line   Line
			price  string
			status string
		)
		err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.CreatedAt,
			&line.UpdatedAt,
			&line.Title,
			&price,
			&line.SellerID,
			&line.ImageURL,
			&status,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart line for user %s: %w", userID, err)
		}
		if err := line.Price.Scan(price); err != nil {
			return nil, fmt.Errorf("repository: invalid price %q for product %s: %w", price, line.ProductID, err)
		}
		line.Status = catalog.Status(status)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart for user %s: %w", userID, err)
	}
	return lines, nil
}
