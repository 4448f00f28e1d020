package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/textutil"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

var (
	errCatalogRepositoryRequired = errors.New("catalog service: repository is required")
	errCatalogClockRequired      = errors.New("catalog service: clock is required")
)

const (
	defaultCatalogPageSize = 24
	maxCatalogPageSize     = 100
	maxProductImages       = 10
)

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrCatalogNotFound indicates the requested catalog entity does not exist.
var ErrCatalogNotFound = errors.New("catalog service: not found")

// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

// ErrCatalogForbidden indicates the actor may not modify the product.
var ErrCatalogForbidden = errors.New("catalog service: forbidden")

// CatalogServiceDeps wires the repository for storefront catalog reads and
// vendor product management.
type CatalogServiceDeps struct {
	Repository  repositories.CatalogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	repo   repositories.CatalogRepository
	now    func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errCatalogRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCatalogClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		repo:   deps.Repository,
		now:    func() time.Time { return deps.Clock().UTC() },
		newID:  idGen,
		logger: logger,
	}, nil
}

// ListProducts serves the storefront product listings. Only active products
// are visible; filters narrow by category, vendor, featured and flash-sale.
func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Product]{}, ErrCatalogUnavailable
	}

	pager := filter.Pagination
	if pager.PageSize <= 0 {
		pager.PageSize = defaultCatalogPageSize
	}
	if pager.PageSize > maxCatalogPageSize {
		pager.PageSize = maxCatalogPageSize
	}

	repoFilter := repositories.ProductListFilter{
		CategoryID: trimPtr(filter.CategoryID),
		VendorID:   trimPtr(filter.VendorID),
		Featured:   filter.Featured,
		FlashSale:  filter.FlashSale,
		Search:     strings.TrimSpace(filter.Search),
		OnlyActive: true,
		SortOrder:  domain.SortDesc,
		Pagination: pager,
	}

	page, err := s.repo.ListProducts(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Product]{}, s.translateRepoError(err)
	}
	return page, nil
}

// GetProduct returns a single product detail view. Inactive products are not
// exposed to the storefront.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return Product{}, ErrCatalogInvalidInput
	}

	product, err := s.repo.GetProduct(ctx, pid)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	if !product.Active {
		return Product{}, ErrCatalogNotFound
	}
	return product, nil
}

// ListCategories returns the active category tree in display order.
func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCatalogUnavailable
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return categories, nil
}

// ListBanners returns the banners currently visible on the home view.
func (s *catalogService) ListBanners(ctx context.Context) ([]Banner, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCatalogUnavailable
	}
	banners, err := s.repo.ListBanners(ctx, s.now())
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return banners, nil
}

// UpsertProduct creates or updates a product on behalf of a vendor or admin.
// Vendors may only touch their own products.
func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}

	vendorID := strings.TrimSpace(cmd.VendorID)
	if vendorID == "" {
		return Product{}, fmt.Errorf("%w: vendor id is required", ErrCatalogInvalidInput)
	}
	if err := validateProductInput(cmd); err != nil {
		return Product{}, err
	}

	now := s.now()
	product := domain.Product{
		VendorID:    vendorID,
		CategoryID:  strings.TrimSpace(cmd.CategoryID),
		Name:        trimLocalized(cmd.Name),
		Description: trimLocalized(cmd.Description),
		Price:       cmd.Price,
		SalePrice:   cmd.SalePrice,
		Currency:    "SYP",
		Stock:       cmd.Stock,
		ImageURLs:   cmd.ImageURLs,
		Featured:    cmd.Featured,
		FlashSale:   cmd.FlashSale,
		Active:      cmd.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if cmd.ProductID != nil {
		pid := strings.TrimSpace(*cmd.ProductID)
		if pid == "" {
			return Product{}, fmt.Errorf("%w: product id must not be blank", ErrCatalogInvalidInput)
		}
		existing, err := s.repo.GetProduct(ctx, pid)
		if err != nil {
			return Product{}, s.translateRepoError(err)
		}
		if existing.VendorID != vendorID {
			return Product{}, ErrCatalogForbidden
		}
		product.ID = pid
		product.CreatedAt = existing.CreatedAt
		product.RatingSum = existing.RatingSum
		product.RatingCount = existing.RatingCount
	} else {
		product.ID = s.newID()
	}

	saved, err := s.repo.UpsertProduct(ctx, product)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}

	s.logger(ctx, "catalog.product_upserted", map[string]any{
		"productID": saved.ID,
		"vendorID":  vendorID,
		"actorID":   cmd.ActorID,
	})
	return saved, nil
}

func validateProductInput(cmd UpsertProductCommand) error {
	if len(trimLocalized(cmd.Name)) == 0 {
		return fmt.Errorf("%w: product name is required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(cmd.CategoryID) == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if cmd.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	if cmd.SalePrice < 0 || (cmd.SalePrice > 0 && cmd.SalePrice >= cmd.Price) {
		return fmt.Errorf("%w: sale price must be below the list price", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
	}
	if len(cmd.ImageURLs) > maxProductImages {
		return fmt.Errorf("%w: at most %d images are allowed", ErrCatalogInvalidInput, maxProductImages)
	}
	return nil
}

func trimLocalized(text map[string]string) domain.LocalizedText {
	normalized := textutil.NormalizeStringMap(text)
	out := domain.LocalizedText{}
	for lang, value := range normalized {
		lang = strings.ToLower(lang)
		if value == "" {
			continue
		}
		out[lang] = value
	}
	return out
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *catalogService) translateRepoError(err error) error {
	return translateRepoError(err, ErrCatalogNotFound, ErrCatalogInvalidInput, ErrCatalogUnavailable)
}
