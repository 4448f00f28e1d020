package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartCatalogRequired    = errors.New("cart service: catalog is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartProductUnavailable indicates the product cannot be added because it is inactive or out of stock.
var ErrCartProductUnavailable = errors.New("cart service: product unavailable")

// CartServiceDeps wires the repositories and pricing rule for cart operations.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	Catalog    repositories.CatalogRepository
	Pricing    PricingRule
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	repo    repositories.CartRepository
	catalog repositories.CatalogRepository
	pricing PricingRule
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	pricing := deps.Pricing
	pricing.Currency = strings.ToUpper(strings.TrimSpace(pricing.Currency))
	if pricing.Currency == "" {
		pricing.Currency = "SYP"
	}

	return &cartService{
		repo:    deps.Repository,
		catalog: deps.Catalog,
		pricing: pricing,
		now:     func() time.Time { return deps.Clock().UTC() },
		logger:  logger,
	}, nil
}

// GetCart loads the stored lines, joins fresh product snapshots and computes
// totals. Lines whose product has disappeared or been deactivated are kept out
// of the view without being deleted.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	return s.loadCart(ctx, uid)
}

// AddItem verifies the product is orderable and adds the requested quantity,
// merging into an existing line for the same product.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	quantity := cmd.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return Cart{}, fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, fmt.Errorf("%w: product not found", ErrCartInvalidInput)
		}
		return Cart{}, s.translateRepoError(err)
	}
	if !product.InStock() {
		return Cart{}, ErrCartProductUnavailable
	}

	// Repeated adds always accumulate: the stored quantity is the sum of
	// every requested quantity, with no upper clamp.
	if _, err := s.repo.AddOrIncrement(ctx, uid, productID, quantity, s.now()); err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.item_added", map[string]any{
		"userID":    uid,
		"productID": productID,
		"quantity":  quantity,
	})
	return s.loadCart(ctx, uid)
}

// UpdateQuantity overwrites the stored quantity for an existing line. A
// quantity below one leaves the cart untouched and returns the current state.
func (s *cartService) UpdateQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	if cmd.Quantity < 1 {
		return s.loadCart(ctx, uid)
	}

	if _, err := s.repo.SetQuantity(ctx, uid, productID, cmd.Quantity, s.now()); err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	return s.loadCart(ctx, uid)
}

// RemoveItem deletes the line for the product. Removing an absent line is a
// benign no-op so repeated removals converge on the same state.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	if err := s.repo.DeleteLine(ctx, uid, productID); err != nil && !isRepoNotFound(err) {
		return Cart{}, s.translateRepoError(err)
	}
	return s.loadCart(ctx, uid)
}

// ClearCart deletes every line for the user.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}
	if err := s.repo.Clear(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) loadCart(ctx context.Context, userID string) (Cart, error) {
	lines, err := s.repo.ListLines(ctx, userID)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	cart := domain.Cart{
		UserID:   userID,
		Currency: s.pricing.Currency,
		Entries:  []domain.CartEntry{},
	}
	if len(lines) == 0 {
		cart.Totals = domain.ComputeTotals(nil, s.pricing)
		cart.UpdatedAt = s.now()
		return cart, nil
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	var latest time.Time
	for _, line := range lines {
		if line.UpdatedAt.After(latest) {
			latest = line.UpdatedAt
		}
		product, ok := products[line.ProductID]
		if !ok || !product.Active {
			s.logger(ctx, "cart.line_skipped", map[string]any{
				"userID":    userID,
				"productID": line.ProductID,
			})
			continue
		}
		cart.Entries = append(cart.Entries, domain.CartEntry{Line: line, Product: product})
	}

	sort.Slice(cart.Entries, func(i, j int) bool {
		return cart.Entries[i].Line.AddedAt.Before(cart.Entries[j].Line.AddedAt)
	})

	cart.Totals = domain.ComputeTotals(cart.Entries, s.pricing)
	if latest.IsZero() {
		latest = s.now()
	}
	cart.UpdatedAt = latest
	return cart, nil
}

func (s *cartService) translateRepoError(err error) error {
	return translateRepoError(err, ErrCartNotFound, ErrCartConflict, ErrCartUnavailable)
}
