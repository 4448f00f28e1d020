package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/httpx"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
	defaultReviewPageSize  = 20
	maxReviewPageSize      = 50

	publicRateLimit  = 120
	publicRateWindow = time.Minute
)

// PublicHandlers exposes unauthenticated storefront listing endpoints.
type PublicHandlers struct {
	catalog services.CatalogService
	reviews services.ReviewService
	limiter rateLimiter
}

// NewPublicHandlers constructs handlers serving the public catalog surface.
func NewPublicHandlers(catalog services.CatalogService, reviews services.ReviewService, opts ...PublicOption) *PublicHandlers {
	h := &PublicHandlers{
		catalog: catalog,
		reviews: reviews,
		limiter: newSimpleRateLimiter(publicRateLimit, publicRateWindow, time.Now),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// PublicOption customises public handler construction.
type PublicOption func(*PublicHandlers)

// WithPublicRateLimiter throttles anonymous listing traffic per client IP.
func WithPublicRateLimiter(limiter rateLimiter) PublicOption {
	return func(h *PublicHandlers) {
		h.limiter = limiter
	}
}

// WithPublicRateLimit replaces the default limiter with one sized from configuration.
// A non-positive limit disables throttling.
func WithPublicRateLimit(perMinute int) PublicOption {
	return func(h *PublicHandlers) {
		h.limiter = newSimpleRateLimiter(perMinute, publicRateWindow, time.Now)
	}
}

// Routes wires the /public endpoints onto the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/products/{productID}/reviews", h.listProductReviews)
	r.Get("/categories", h.listCategories)
	r.Get("/banners", h.listBanners)
}

func (h *PublicHandlers) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(r.RemoteAddr)
}

func (h *PublicHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	filter, err := parseProductListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := productListResponse{
		Products:      make([]productPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Items {
		payload.Products = append(payload.Products, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PublicHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *PublicHandlers) listProductReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	pager, err := parsePagination(r, defaultReviewPageSize, maxReviewPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.reviews.ListByProduct(ctx, services.ListProductReviewsCommand{
		ProductID:  productID,
		Pagination: pager,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	payload := reviewListResponse{
		Reviews:       make([]reviewPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, review := range page.Items {
		payload.Reviews = append(payload.Reviews, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PublicHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := categoryListResponse{Categories: make([]categoryPayload, 0, len(categories))}
	for _, category := range categories {
		payload.Categories = append(payload.Categories, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PublicHandlers) listBanners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	banners, err := h.catalog.ListBanners(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := bannerListResponse{Banners: make([]bannerPayload, 0, len(banners))}
	for _, banner := range banners {
		payload.Banners = append(payload.Banners, buildBannerPayload(banner))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func parseProductListFilter(r *http.Request) (services.ProductListFilter, error) {
	values := r.URL.Query()

	var filter services.ProductListFilter
	if category := strings.TrimSpace(values.Get("category")); category != "" {
		filter.CategoryID = &category
	}
	if vendor := strings.TrimSpace(values.Get("vendor")); vendor != "" {
		filter.VendorID = &vendor
	}
	if raw := strings.TrimSpace(values.Get("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return services.ProductListFilter{}, errors.New("featured must be a boolean")
		}
		filter.Featured = &featured
	}
	if raw := strings.TrimSpace(values.Get("flash_sale")); raw != "" {
		flashSale, err := strconv.ParseBool(raw)
		if err != nil {
			return services.ProductListFilter{}, errors.New("flash_sale must be a boolean")
		}
		filter.FlashSale = &flashSale
	}
	filter.Search = strings.TrimSpace(values.Get("q"))

	pager, err := parsePagination(r, defaultProductPageSize, maxProductPageSize)
	if err != nil {
		return services.ProductListFilter{}, err
	}
	filter.Pagination = pager

	return filter, nil
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "operation not allowed", http.StatusForbidden))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to read catalog", http.StatusInternalServerError))
	}
}

func buildProductPayload(product services.Product) productPayload {
	payload := productPayload{
		ID:             strings.TrimSpace(product.ID),
		VendorID:       strings.TrimSpace(product.VendorID),
		CategoryID:     strings.TrimSpace(product.CategoryID),
		Name:           product.Name,
		Description:    product.Description,
		Price:          product.Price,
		EffectivePrice: product.EffectivePrice(),
		Currency:       strings.ToUpper(strings.TrimSpace(product.Currency)),
		Stock:          product.Stock,
		InStock:        product.InStock(),
		ImageURLs:      product.ImageURLs,
		Featured:       product.Featured,
		FlashSale:      product.FlashSale,
		RatingCount:    product.RatingCount,
		AverageRating:  product.AverageRating(),
	}
	if product.SalePrice > 0 {
		payload.SalePrice = &product.SalePrice
	}
	if !product.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(product.CreatedAt)
	}
	if !product.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(product.UpdatedAt)
	}
	return payload
}

func buildCategoryPayload(category services.Category) categoryPayload {
	return categoryPayload{
		ID:        strings.TrimSpace(category.ID),
		Slug:      strings.TrimSpace(category.Slug),
		Name:      category.Name,
		ImageURL:  strings.TrimSpace(category.ImageURL),
		SortIndex: category.SortIndex,
	}
}

func buildBannerPayload(banner services.Banner) bannerPayload {
	payload := bannerPayload{
		ID:        strings.TrimSpace(banner.ID),
		Title:     banner.Title,
		ImageURL:  strings.TrimSpace(banner.ImageURL),
		TargetURL: strings.TrimSpace(banner.TargetURL),
		SortIndex: banner.SortIndex,
	}
	if banner.StartsAt != nil {
		payload.StartsAt = formatTime(*banner.StartsAt)
	}
	if banner.EndsAt != nil {
		payload.EndsAt = formatTime(*banner.EndsAt)
	}
	return payload
}

func buildReviewPayload(review services.Review) reviewPayload {
	payload := reviewPayload{
		ID:        strings.TrimSpace(review.ID),
		ProductID: strings.TrimSpace(review.ProductID),
		UserID:    strings.TrimSpace(review.UserID),
		Rating:    review.Rating,
		Comment:   review.Comment,
		Status:    string(review.Status),
	}
	if !review.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(review.CreatedAt)
	}
	return payload
}

type productListResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID             string               `json:"id"`
	VendorID       string               `json:"vendor_id"`
	CategoryID     string               `json:"category_id"`
	Name           domain.LocalizedText `json:"name"`
	Description    domain.LocalizedText `json:"description,omitempty"`
	Price          int64                `json:"price"`
	SalePrice      *int64               `json:"sale_price,omitempty"`
	EffectivePrice int64                `json:"effective_price"`
	Currency       string               `json:"currency"`
	Stock          int                  `json:"stock"`
	InStock        bool                 `json:"in_stock"`
	ImageURLs      []string             `json:"image_urls,omitempty"`
	Featured       bool                 `json:"featured"`
	FlashSale      bool                 `json:"flash_sale"`
	RatingCount    int64                `json:"rating_count"`
	AverageRating  float64              `json:"average_rating"`
	CreatedAt      string               `json:"created_at,omitempty"`
	UpdatedAt      string               `json:"updated_at,omitempty"`
}

type categoryListResponse struct {
	Categories []categoryPayload `json:"categories"`
}

type categoryPayload struct {
	ID        string               `json:"id"`
	Slug      string               `json:"slug"`
	Name      domain.LocalizedText `json:"name"`
	ImageURL  string               `json:"image_url,omitempty"`
	SortIndex int                  `json:"sort_index"`
}

type bannerListResponse struct {
	Banners []bannerPayload `json:"banners"`
}

type bannerPayload struct {
	ID        string               `json:"id"`
	Title     domain.LocalizedText `json:"title"`
	ImageURL  string               `json:"image_url"`
	TargetURL string               `json:"target_url,omitempty"`
	SortIndex int                  `json:"sort_index"`
	StartsAt  string               `json:"starts_at,omitempty"`
	EndsAt    string               `json:"ends_at,omitempty"`
}

type reviewListResponse struct {
	Reviews       []reviewPayload `json:"reviews"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type reviewPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}
