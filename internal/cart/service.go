package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
)

var (
	ErrSelfPurchase    = errors.New("cannot add your own listing to the cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

type CatalogReader interface {
	GetAvailability(ctx context.Context, productID uuid.UUID) (*catalog.Availability, error)
}

type Service interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Line, error)
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, userID, lineID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) (*View, error)
}

type service struct {
	repo    Repository
	catalog CatalogReader
}

func NewService(repo Repository, catalog CatalogReader) Service {
	return &service{repo: repo, catalog: catalog}
}

// AddItem defaults a zero quantity to one. Quantity is not capped.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Line, error) {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.catalog.GetAvailability(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to look up product for cart")
		return nil, fmt.Errorf("service: failed to look up product: %w", err)
	}

	if !product.Available() {
		return nil, catalog.ErrProductUnavailable
	}
	if product.SellerID == userID {
		return nil, ErrSelfPurchase
	}

	line, err := s.repo.Upsert(ctx, userID, productID, quantity)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		log.Error().Err(err).Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: failed to add cart line")
		return nil, fmt.Errorf("service: failed to add cart line: %w", err)
	}

	line.Title = product.Title
	line.Price = product.Price
	line.SellerID = product.SellerID
	line.Status = product.Status

	log.Debug().Stringer("user_id", userID).Stringer("product_id", productID).Int("quantity", line.Quantity).Msg("service: cart line added")
	return line, nil
}

// UpdateQuantity removes the line when quantity drops below one.
func (s *service) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error {
	if quantity < 1 {
		removed, err := s.repo.Delete(ctx, userID, lineID)
		if err != nil {
			log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to remove cart line")
			return fmt.Errorf("service: failed to remove cart line: %w", err)
		}
		if !removed {
			return ErrLineNotFound
		}
		return nil
	}

	err := s.repo.UpdateQuantity(ctx, userID, lineID, quantity)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to update cart line")
		return fmt.Errorf("service: failed to update cart line: %w", err)
	}
	return nil
}

func (s *service) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) error {
	if _, err := s.repo.Delete(ctx, userID, lineID); err != nil {
		log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to remove cart line")
		return fmt.Errorf("service: failed to remove cart line: %w", err)
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to clear cart")
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*View, error) {
	lines, err := s.repo.ListAvailable(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to list cart")
		return nil, fmt.Errorf("service: failed to list cart: %w", err)
	}

	view := NewView(lines)
	return &view, nil
}
