package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

var (
	errWishlistRepositoryRequired = errors.New("wishlist service: repository is required")
	errWishlistCatalogRequired    = errors.New("wishlist service: catalog is required")
	errWishlistClockRequired      = errors.New("wishlist service: clock is required")
)

const defaultWishlistPageSize = 50

// ErrWishlistInvalidInput indicates the caller supplied invalid input.
var ErrWishlistInvalidInput = errors.New("wishlist service: invalid input")

// ErrWishlistUnavailable indicates the wishlist backend cannot fulfil the request.
var ErrWishlistUnavailable = errors.New("wishlist service: unavailable")

// ErrWishlistNotFound indicates the requested entry does not exist.
var ErrWishlistNotFound = errors.New("wishlist service: not found")

// ErrWishlistLimitReached indicates the wishlist has reached its maximum size.
var ErrWishlistLimitReached = errors.New("wishlist service: limit reached")

// WishlistServiceDeps wires the repositories for wishlist operations.
// Limit caps entries per user when positive; zero leaves the wishlist
// unbounded.
type WishlistServiceDeps struct {
	Repository repositories.WishlistRepository
	Catalog    repositories.CatalogRepository
	Limit      int
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type wishlistService struct {
	repo    repositories.WishlistRepository
	catalog repositories.CatalogRepository
	limit   int
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewWishlistService constructs a WishlistService enforcing dependency validation.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Repository == nil {
		return nil, errWishlistRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errWishlistCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errWishlistClockRequired
	}

	limit := deps.Limit
	if limit < 0 {
		limit = 0
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &wishlistService{
		repo:    deps.Repository,
		catalog: deps.Catalog,
		limit:   limit,
		now:     func() time.Time { return deps.Clock().UTC() },
		logger:  logger,
	}, nil
}

// List returns the saved products joined with fresh product snapshots, newest
// first. Entries whose product has disappeared are shown without a snapshot so
// the client can still offer removal.
func (s *wishlistService) List(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[WishlistItem], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[WishlistItem]{}, ErrWishlistUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[WishlistItem]{}, ErrWishlistInvalidInput
	}
	if pager.PageSize <= 0 {
		pager.PageSize = defaultWishlistPageSize
	}

	page, err := s.repo.List(ctx, uid, pager)
	if err != nil {
		return domain.CursorPage[WishlistItem]{}, s.translateRepoError(err)
	}

	ids := make([]string, 0, len(page.Items))
	for _, entry := range page.Items {
		ids = append(ids, entry.ProductID)
	}
	products := map[string]domain.Product{}
	if len(ids) > 0 {
		products, err = s.catalog.GetProducts(ctx, ids)
		if err != nil {
			return domain.CursorPage[WishlistItem]{}, s.translateRepoError(err)
		}
	}

	items := make([]WishlistItem, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, WishlistItem{
			Entry:   entry,
			Product: products[entry.ProductID],
		})
	}

	return domain.CursorPage[WishlistItem]{
		Items:         items,
		NextPageToken: page.NextPageToken,
	}, nil
}

// Contains reports membership for a single product.
func (s *wishlistService) Contains(ctx context.Context, userID string, productID string) (bool, error) {
	if s == nil || s.repo == nil {
		return false, ErrWishlistUnavailable
	}
	uid := strings.TrimSpace(userID)
	pid := strings.TrimSpace(productID)
	if uid == "" || pid == "" {
		return false, ErrWishlistInvalidInput
	}
	present, err := s.repo.Contains(ctx, uid, pid)
	if err != nil {
		return false, s.translateRepoError(err)
	}
	return present, nil
}

// Add saves the product. Adding a product already present is a benign no-op.
func (s *wishlistService) Add(ctx context.Context, cmd WishlistCommand) error {
	if s == nil || s.repo == nil {
		return ErrWishlistUnavailable
	}
	uid, pid, err := s.validate(cmd)
	if err != nil {
		return err
	}

	if _, err := s.catalog.GetProduct(ctx, pid); err != nil {
		if isRepoNotFound(err) {
			return fmt.Errorf("%w: product not found", ErrWishlistInvalidInput)
		}
		return s.translateRepoError(err)
	}

	if _, err := s.repo.Put(ctx, uid, pid, s.now(), s.limit); err != nil {
		if isRepoConflict(err) {
			return ErrWishlistLimitReached
		}
		return s.translateRepoError(err)
	}
	return nil
}

// Remove deletes the product from the wishlist. Removing an absent product is
// a benign no-op.
func (s *wishlistService) Remove(ctx context.Context, cmd WishlistCommand) error {
	if s == nil || s.repo == nil {
		return ErrWishlistUnavailable
	}
	uid, pid, err := s.validate(cmd)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, uid, pid); err != nil && !isRepoNotFound(err) {
		return s.translateRepoError(err)
	}
	return nil
}

// Toggle atomically flips membership and reports whether the product is now saved.
func (s *wishlistService) Toggle(ctx context.Context, cmd WishlistCommand) (bool, error) {
	if s == nil || s.repo == nil {
		return false, ErrWishlistUnavailable
	}
	uid, pid, err := s.validate(cmd)
	if err != nil {
		return false, err
	}

	present, err := s.repo.Toggle(ctx, uid, pid, s.now())
	if err != nil {
		return false, s.translateRepoError(err)
	}

	s.logger(ctx, "wishlist.toggled", map[string]any{
		"userID":    uid,
		"productID": pid,
		"saved":     present,
	})
	return present, nil
}

func (s *wishlistService) validate(cmd WishlistCommand) (string, string, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return "", "", ErrWishlistInvalidInput
	}
	pid := strings.TrimSpace(cmd.ProductID)
	if pid == "" {
		return "", "", fmt.Errorf("%w: product id is required", ErrWishlistInvalidInput)
	}
	return uid, pid, nil
}

func (s *wishlistService) translateRepoError(err error) error {
	return translateRepoError(err, ErrWishlistNotFound, ErrWishlistLimitReached, ErrWishlistUnavailable)
}
