package order

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cart"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
)

const (
	maxNumberAttempts      = 5
	defaultCheckoutTimeout = 15 * time.Second
)

// Checkout outcomes reported to the observer.
const (
	OutcomeSuccess      = "success"
	OutcomeReplayed     = "replayed"
	OutcomeInvalid      = "invalid"
	OutcomeEmptyCart    = "empty_cart"
	OutcomeConflict     = "conflict"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

type CartReader interface {
	List(ctx context.Context, userID uuid.UUID) (*cart.View, error)
}

type CatalogReader interface {
	GetAvailabilities(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]catalog.Availability, error)
}

type CheckoutObserver interface {
	ObserveCheckout(outcome string, elapsed time.Duration)
}

type Service interface {
	Checkout(ctx context.Context, id auth.Identity, req CheckoutRequest) (*Receipt, error)
	History(ctx context.Context, id auth.Identity) ([]OrderSummary, error)
	Detail(ctx context.Context, id auth.Identity, orderID uuid.UUID) (*OrderDetail, error)
	Sales(ctx context.Context, id auth.Identity) ([]Sale, error)
	Overview(ctx context.Context, id auth.Identity) (*Overview, error)
}

type Option func(*service)

func WithReceiptCache(c ReceiptCache) Option {
	return func(s *service) { s.receipts = c }
}

func WithObserver(o CheckoutObserver) Option {
	return func(s *service) { s.observer = o }
}

func WithNumberGenerator(g NumberGenerator) Option {
	return func(s *service) { s.numbers = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithCheckoutTimeout bounds the persistence phase, which ignores request
// cancellation once it starts.
func WithCheckoutTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

type service struct {
	orderRepo Repository
	queries   QueryRepository
	carts     CartReader
	catalog   CatalogReader
	receipts  ReceiptCache
	observer  CheckoutObserver
	numbers   NumberGenerator
	now       func() time.Time
	timeout   time.Duration
	validate  *validator.Validate
}

func NewService(orderRepo Repository, queries QueryRepository, carts CartReader, catalog CatalogReader, opts ...Option) Service {
	s := &service{
		orderRepo: orderRepo,
		queries:   queries,
		carts:     carts,
		catalog:   catalog,
		numbers:   NewOrderNumber,
		now:       time.Now,
		timeout:   defaultCheckoutTimeout,
		validate:  newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func (s *service) Checkout(ctx context.Context, id auth.Identity, req CheckoutRequest) (*Receipt, error) {
	started := s.now()
	receipt, replayed, err := s.checkout(ctx, id, req)
	if s.observer != nil {
		s.observer.ObserveCheckout(outcomeOf(err, replayed), s.now().Sub(started))
	}
	return receipt, err
}

func (s *service) checkout(ctx context.Context, id auth.Identity, req CheckoutRequest) (*Receipt, bool, error) {
	if err := auth.Authorize(id, auth.Authenticated()); err != nil {
		return nil, false, err
	}
	c := newCheckout(id.UserID)

	req.normalize()
	if err := s.validateRequest(req); err != nil {
		return nil, false, c.reject(err)
	}

	if req.IdempotencyKey != "" {
		if receipt := s.replay(ctx, id.UserID, req.IdempotencyKey); receipt != nil {
			return receipt, true, nil
		}
	}

	view, err := s.carts.List(ctx, id.UserID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", id.UserID).Msg("service: failed to read cart for checkout")
		return nil, false, c.reject(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if len(view.Lines) == 0 {
		return nil, false, c.reject(ErrEmptyCart)
	}
	if err := c.advance(stateValidated); err != nil {
		return nil, false, err
	}

	o, err := s.price(ctx, id.UserID, view.Lines)
	if err != nil {
		return nil, false, c.reject(err)
	}
	o.FullName = req.FullName
	o.Email = req.Email
	o.Phone = req.Phone
	o.DeliveryAddress = req.DeliveryAddress
	o.DeliveryNotes = req.DeliveryNotes
	if err := c.advance(statePriced); err != nil {
		return nil, false, err
	}

	// Once writes begin the request may no longer cancel them.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.persist(pctx, o); err != nil {
		return nil, false, c.reject(err)
	}
	if err := c.advance(statePersisted); err != nil {
		return nil, false, err
	}

	receipt := newReceipt(o)
	if req.IdempotencyKey != "" && s.receipts != nil {
		if err := s.receipts.Put(pctx, id.UserID, req.IdempotencyKey, receipt); err != nil {
			log.Warn().Err(err).Stringer("order_id", o.ID).Msg("service: failed to cache checkout receipt")
		}
	}
	if err := c.advance(stateFinalized); err != nil {
		return nil, false, err
	}

	log.Info().
		Stringer("order_id", o.ID).
		Str("order_number", o.OrderNumber).
		Stringer("user_id", o.UserID).
		Stringer("total_amount", o.TotalAmount).
		Int("lines", len(o.Items)).
		Msg("service: order placed")

	return receipt, false, nil
}

func (s *service) validateRequest(req CheckoutRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("service: failed to validate checkout request: %w", err)
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

func (s *service) replay(ctx context.Context, userID uuid.UUID, key string) *Receipt {
	if s.receipts == nil {
		return nil
	}
	receipt, err := s.receipts.Get(ctx, userID, key)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("service: receipt cache lookup failed")
		return nil
	}
	if receipt != nil {
		log.Info().Stringer("user_id", userID).Str("order_number", receipt.OrderNumber).Msg("service: replaying checkout receipt")
	}
	return receipt
}

// price re-reads every line from the catalog. Lines whose product vanished or
// was sold since the cart was listed are dropped.
func (s *service) price(ctx context.Context, userID uuid.UUID, lines []cart.Line) (*Order, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	current, err := s.catalog.GetAvailabilities(ctx, ids)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to price cart")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	o := &Order{
		UserID: userID,
		Status: StatusCompleted,
		Items:  make([]OrderItem, 0, len(lines)),
	}
	for _, l := range lines {
		a, ok := current[l.ProductID]
		if !ok || !a.Available() {
			log.Info().Stringer("user_id", userID).Stringer("product_id", l.ProductID).Msg("service: skipping cart line that is no longer available")
			continue
		}
		o.Items = append(o.Items, OrderItem{
			ProductID: l.ProductID,
			SellerID:  a.SellerID,
			Title:     a.Title,
			Quantity:  l.Quantity,
			UnitPrice: a.Price,
		})
	}
	if len(o.Items) == 0 {
		return nil, ErrEmptyCart
	}

	o.TotalAmount = o.computeTotal()
	return o, nil
}

func (s *service) persist(ctx context.Context, o *Order) error {
	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := s.numbers(s.now())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		o.OrderNumber = number

		err = s.orderRepo.PlaceOrder(ctx, o)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrDuplicateOrderNumber):
			log.Warn().Str("order_number", number).Int("attempt", attempt).Msg("service: order number collision, retrying")
			lastErr = err
			continue
		case errors.Is(err, ErrProductNoLongerAvailable):
			return ErrProductNoLongerAvailable
		default:
			log.Error().Err(err).Stringer("user_id", o.UserID).Msg("service: failed to place order")
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}

	log.Error().Err(lastErr).Stringer("user_id", o.UserID).Int("attempts", maxNumberAttempts).Msg("service: gave up generating a unique order number")
	return fmt.Errorf("%w: %w", ErrPersistence, lastErr)
}

func (s *service) History(ctx context.Context, id auth.Identity) ([]OrderSummary, error) {
	if err := auth.Authorize(id, auth.Authenticated()); err != nil {
		return nil, err
	}

	orders, err := s.queries.ListByUser(ctx, id.UserID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", id.UserID).Msg("service: failed to fetch order history")
		return nil, fmt.Errorf("service: failed to fetch order history: %w", err)
	}
	return orders, nil
}

func (s *service) Detail(ctx context.Context, id auth.Identity, orderID uuid.UUID) (*OrderDetail, error) {
	if err := auth.Authorize(id, auth.Authenticated()); err != nil {
		return nil, err
	}

	detail, err := s.queries.GetDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", orderID).Msg("service: order not found")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch order detail")
		return nil, fmt.Errorf("service: failed to fetch order detail: %w", err)
	}

	if err := auth.Authorize(id, auth.Either(auth.Owner(detail.UserID), auth.AnyRole(auth.RoleAdmin))); err != nil {
		log.Warn().Stringer("order_id", orderID).Stringer("user_id", id.UserID).Msg("service: order detail denied")
		return nil, err
	}
	return detail, nil
}

func (s *service) Sales(ctx context.Context, id auth.Identity) ([]Sale, error) {
	if err := auth.Authorize(id, auth.AnyRole(auth.RoleSeller, auth.RoleAdmin)); err != nil {
		return nil, err
	}

	sales, err := s.queries.ListSales(ctx, id.UserID)
	if err != nil {
		log.Error().Err(err).Stringer("seller_id", id.UserID).Msg("service: failed to fetch sales")
		return nil, fmt.Errorf("service: failed to fetch sales: %w", err)
	}
	return sales, nil
}

func (s *service) Overview(ctx context.Context, id auth.Identity) (*Overview, error) {
	if err := auth.Authorize(id, auth.AnyRole(auth.RoleAdmin)); err != nil {
		return nil, err
	}

	overview, err := s.queries.Overview(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to build admin overview")
		return nil, fmt.Errorf("service: failed to build admin overview: %w", err)
	}
	return overview, nil
}

func outcomeOf(err error, replayed bool) string {
	var validationErr *ValidationError
	switch {
	case err == nil && replayed:
		return OutcomeReplayed
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &validationErr):
		return OutcomeInvalid
	case errors.Is(err, ErrEmptyCart):
		return OutcomeEmptyCart
	case errors.Is(err, ErrProductNoLongerAvailable):
		return OutcomeConflict
	case errors.Is(err, auth.ErrUnauthorized):
		return OutcomeUnauthorized
	default:
		return OutcomeError
	}
}
