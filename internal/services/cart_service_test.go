package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

type repoErr struct {
	err      error
	notFound bool
	conflict bool
}

func (e *repoErr) Error() string       { return e.err.Error() }
func (e *repoErr) Unwrap() error       { return e.err }
func (e *repoErr) IsNotFound() bool    { return e.notFound }
func (e *repoErr) IsConflict() bool    { return e.conflict }
func (e *repoErr) IsUnavailable() bool { return false }

func repoNotFound(format string, args ...any) error {
	return &repoErr{err: fmt.Errorf(format, args...), notFound: true}
}

func repoConflict(format string, args ...any) error {
	return &repoErr{err: fmt.Errorf(format, args...), conflict: true}
}

type memoryCartRepo struct {
	store map[string]map[string]domain.CartLine
}

func newMemoryCartRepo() *memoryCartRepo {
	return &memoryCartRepo{store: make(map[string]map[string]domain.CartLine)}
}

func (m *memoryCartRepo) ListLines(_ context.Context, userID string) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(m.store[userID]))
	for _, line := range m.store[userID] {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (m *memoryCartRepo) GetLine(_ context.Context, userID, productID string) (domain.CartLine, error) {
	line, ok := m.store[userID][productID]
	if !ok {
		return domain.CartLine{}, repoNotFound("cart line %s not found", productID)
	}
	return line, nil
}

func (m *memoryCartRepo) AddOrIncrement(_ context.Context, userID, productID string, quantity int, now time.Time) (domain.CartLine, error) {
	if m.store[userID] == nil {
		m.store[userID] = make(map[string]domain.CartLine)
	}
	line, ok := m.store[userID][productID]
	if ok {
		line.Quantity += quantity
		line.UpdatedAt = now
	} else {
		line = domain.CartLine{ProductID: productID, Quantity: quantity, AddedAt: now, UpdatedAt: now}
	}
	m.store[userID][productID] = line
	return line, nil
}

func (m *memoryCartRepo) SetQuantity(_ context.Context, userID, productID string, quantity int, now time.Time) (domain.CartLine, error) {
	line, ok := m.store[userID][productID]
	if !ok {
		return domain.CartLine{}, repoNotFound("cart line %s not found", productID)
	}
	line.Quantity = quantity
	line.UpdatedAt = now
	m.store[userID][productID] = line
	return line, nil
}

func (m *memoryCartRepo) DeleteLine(_ context.Context, userID, productID string) error {
	if _, ok := m.store[userID][productID]; !ok {
		return repoNotFound("cart line %s not found", productID)
	}
	delete(m.store[userID], productID)
	return nil
}

func (m *memoryCartRepo) Clear(_ context.Context, userID string) error {
	delete(m.store, userID)
	return nil
}

type memoryCatalogRepo struct {
	products   map[string]domain.Product
	categories []domain.Category
	banners    []domain.Banner
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{products: make(map[string]domain.Product)}
}

func (m *memoryCatalogRepo) ListProducts(_ context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	var items []domain.Product
	for _, product := range m.products {
		if filter.OnlyActive && !product.Active {
			continue
		}
		if filter.CategoryID != nil && product.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.VendorID != nil && product.VendorID != *filter.VendorID {
			continue
		}
		if filter.Featured != nil && product.Featured != *filter.Featured {
			continue
		}
		if filter.FlashSale != nil && product.FlashSale != *filter.FlashSale {
			continue
		}
		items = append(items, product)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.Product]{Items: items}, nil
}

func (m *memoryCatalogRepo) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	product, ok := m.products[productID]
	if !ok {
		return domain.Product{}, repoNotFound("product %s not found", productID)
	}
	return product, nil
}

func (m *memoryCatalogRepo) GetProducts(_ context.Context, productIDs []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if product, ok := m.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (m *memoryCatalogRepo) ListCategories(_ context.Context) ([]domain.Category, error) {
	return m.categories, nil
}

func (m *memoryCatalogRepo) ListBanners(_ context.Context, now time.Time) ([]domain.Banner, error) {
	var visible []domain.Banner
	for _, banner := range m.banners {
		if banner.VisibleAt(now) {
			visible = append(visible, banner)
		}
	}
	return visible, nil
}

func (m *memoryCatalogRepo) UpsertProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	m.products[product.ID] = product
	return product, nil
}

func (m *memoryCatalogRepo) AdjustStock(_ context.Context, productID string, delta int) error {
	product, ok := m.products[productID]
	if !ok {
		return repoNotFound("product %s not found", productID)
	}
	if product.Stock+delta < 0 {
		return repoConflict("insufficient stock for %s", productID)
	}
	product.Stock += delta
	m.products[productID] = product
	return nil
}

func (m *memoryCatalogRepo) ApplyRating(_ context.Context, productID string, rating int) error {
	product, ok := m.products[productID]
	if !ok {
		return repoNotFound("product %s not found", productID)
	}
	product.RatingSum += int64(rating)
	product.RatingCount++
	m.products[productID] = product
	return nil
}

func testPricing() PricingRule {
	return PricingRule{FreeShippingThreshold: 5000, ShippingFee: 599, Currency: "SYP"}
}

func testClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
}

func seedProduct(catalog *memoryCatalogRepo, id string, price int64, stock int) {
	catalog.products[id] = domain.Product{
		ID:       id,
		Name:     domain.LocalizedText{"en": "Product " + id},
		Price:    price,
		Currency: "SYP",
		Stock:    stock,
		Active:   true,
	}
}

func newTestCartService(t *testing.T, repo *memoryCartRepo, catalog *memoryCatalogRepo) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Catalog:    catalog,
		Pricing:    testPricing(),
		Clock:      testClock(),
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestCartServiceAddItemAccumulatesQuantity(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 1000, 10)
	svc := newTestCartService(t, repo, catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p1", Quantity: 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	cart, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p1", Quantity: 3})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if len(cart.Entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(cart.Entries))
	}
	if got := cart.Entries[0].Line.Quantity; got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}
	if cart.Totals.Subtotal != 5000 {
		t.Fatalf("expected subtotal 5000, got %d", cart.Totals.Subtotal)
	}

	// Large repeated adds keep summing; the stored quantity is never clamped.
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p1", Quantity: 60}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	cart, err = svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p1", Quantity: 60})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if got := cart.Entries[0].Line.Quantity; got != 125 {
		t.Fatalf("expected quantity 125, got %d", got)
	}
}

func TestCartServiceAddItemAcceptsLargeQuantity(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 1000, 10)
	svc := newTestCartService(t, repo, catalog)

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{UserID: "u1", ProductID: "p1", Quantity: 150})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if got := cart.Entries[0].Line.Quantity; got != 150 {
		t.Fatalf("expected quantity 150, got %d", got)
	}
}

func TestCartServiceAddItemDefaultsQuantityToOne(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 250, 3)
	svc := newTestCartService(t, repo, catalog)

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{UserID: "u1", ProductID: "p1"})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if got := cart.Entries[0].Line.Quantity; got != 1 {
		t.Fatalf("expected quantity 1, got %d", got)
	}
}

func TestCartServiceAddItemRejectsUnavailableProduct(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 1000, 0)
	svc := newTestCartService(t, repo, catalog)

	if _, err := svc.AddItem(context.Background(), AddCartItemCommand{UserID: "u1", ProductID: "p1"}); !errors.Is(err, ErrCartProductUnavailable) {
		t.Fatalf("expected ErrCartProductUnavailable, got %v", err)
	}
	if _, err := svc.AddItem(context.Background(), AddCartItemCommand{UserID: "u1", ProductID: "missing"}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceUpdateQuantityBelowOneIsNoOp(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 1000, 10)
	svc := newTestCartService(t, repo, catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p1", Quantity: 4}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cart, err := svc.UpdateQuantity(ctx, UpdateCartQuantityCommand{UserID: "u1", ProductID: "p1", Quantity: 0})
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if got := cart.Entries[0].Line.Quantity; got != 4 {
		t.Fatalf("expected quantity unchanged at 4, got %d", got)
	}

	cart, err = svc.UpdateQuantity(ctx, UpdateCartQuantityCommand{UserID: "u1", ProductID: "p1", Quantity: -3})
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if got := cart.Entries[0].Line.Quantity; got != 4 {
		t.Fatalf("expected quantity unchanged at 4, got %d", got)
	}
}

func TestCartServiceUpdateQuantityMissingLine(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 1000, 10)
	svc := newTestCartService(t, repo, catalog)

	if _, err := svc.UpdateQuantity(context.Background(), UpdateCartQuantityCommand{UserID: "u1", ProductID: "p1", Quantity: 2}); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartServiceRemoveItemIsIdempotent(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 1000, 10)
	svc := newTestCartService(t, repo, catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p1"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cart, err := svc.RemoveItem(ctx, RemoveCartItemCommand{UserID: "u1", ProductID: "p1"})
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Entries) != 0 {
		t.Fatalf("expected empty cart, got %d entries", len(cart.Entries))
	}

	cart, err = svc.RemoveItem(ctx, RemoveCartItemCommand{UserID: "u1", ProductID: "p1"})
	if err != nil {
		t.Fatalf("second RemoveItem: %v", err)
	}
	if len(cart.Entries) != 0 {
		t.Fatalf("expected empty cart after repeated removal, got %d entries", len(cart.Entries))
	}
}

func TestCartServiceTotalsApplyShippingRule(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "cheap", 1000, 10)
	seedProduct(catalog, "dear", 5500, 10)
	svc := newTestCartService(t, repo, catalog)

	ctx := context.Background()
	cart, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "cheap", Quantity: 2})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if cart.Totals.Shipping != 599 || cart.Totals.Total != 2599 {
		t.Fatalf("expected 599/2599, got %d/%d", cart.Totals.Shipping, cart.Totals.Total)
	}

	cart, err = svc.AddItem(ctx, AddCartItemCommand{UserID: "u2", ProductID: "dear"})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if cart.Totals.Shipping != 0 || cart.Totals.Total != 5500 {
		t.Fatalf("expected free shipping at 5500, got %d/%d", cart.Totals.Shipping, cart.Totals.Total)
	}
}

func TestCartServiceGetCartSkipsInactiveProducts(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 1000, 10)
	seedProduct(catalog, "p2", 2000, 10)
	svc := newTestCartService(t, repo, catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p1"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p2"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	deactivated := catalog.products["p2"]
	deactivated.Active = false
	catalog.products["p2"] = deactivated

	cart, err := svc.GetCart(ctx, "u1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(cart.Entries) != 1 {
		t.Fatalf("expected one visible entry, got %d", len(cart.Entries))
	}
	if cart.Entries[0].Product.ID != "p1" {
		t.Fatalf("expected p1 to remain, got %s", cart.Entries[0].Product.ID)
	}
	if cart.Totals.Subtotal != 1000 {
		t.Fatalf("expected subtotal 1000, got %d", cart.Totals.Subtotal)
	}

	if line, err := repo.GetLine(ctx, "u1", "p2"); err != nil || line.Quantity != 1 {
		t.Fatalf("expected hidden line to stay stored, got %+v err %v", line, err)
	}
}

func TestCartServiceClearCart(t *testing.T) {
	repo := newMemoryCartRepo()
	catalog := newMemoryCatalogRepo()
	seedProduct(catalog, "p1", 1000, 10)
	svc := newTestCartService(t, repo, catalog)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, AddCartItemCommand{UserID: "u1", ProductID: "p1", Quantity: 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := svc.ClearCart(ctx, "u1"); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	cart, err := svc.GetCart(ctx, "u1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(cart.Entries) != 0 || cart.Totals.Total != 0 {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}
