package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/daniyalaisha/syriamall-sub001/internal/platform/firestore"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

// Registry bundles the Firestore repositories behind the repositories.Registry
// interface for dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	catalog  *CatalogRepository
	carts    *CartRepository
	wishlist *WishlistRepository
	orders   *OrderRepository
	reviews  *ReviewRepository
	vendors  *VendorApplicationRepository
	users    *UserRepository
	address  *AddressRepository
	audit    *AuditLogRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

// NewRegistry constructs every Firestore repository over a shared provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	wishlist, err := NewWishlistRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	reviews, err := NewReviewRepository(provider)
	if err != nil {
		return nil, err
	}
	vendors, err := NewVendorApplicationRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	address, err := NewAddressRepository(provider)
	if err != nil {
		return nil, err
	}
	audit, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		catalog:  catalog,
		carts:    carts,
		wishlist: wishlist,
		orders:   orders,
		reviews:  reviews,
		vendors:  vendors,
		users:    users,
		address:  address,
		audit:    audit,
		counters: counters,
		health:   health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Catalog() repositories.CatalogRepository       { return r.catalog }
func (r *Registry) Carts() repositories.CartRepository            { return r.carts }
func (r *Registry) Wishlists() repositories.WishlistRepository    { return r.wishlist }
func (r *Registry) Orders() repositories.OrderRepository          { return r.orders }
func (r *Registry) Reviews() repositories.ReviewRepository        { return r.reviews }
func (r *Registry) Users() repositories.UserRepository            { return r.users }
func (r *Registry) Addresses() repositories.AddressRepository     { return r.address }
func (r *Registry) AuditLogs() repositories.AuditLogRepository    { return r.audit }
func (r *Registry) Counters() repositories.CounterRepository      { return r.counters }
func (r *Registry) Health() repositories.HealthRepository         { return r.health }

func (r *Registry) VendorApplications() repositories.VendorApplicationRepository {
	return r.vendors
}

// RunInTx groups repository calls in one logical unit. The repositories run
// their own Firestore transactions where atomicity matters, so this is a
// plain passthrough rather than a nested transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return fn(ctx)
}

// Ensure interface compliance.
var _ repositories.Registry = (*Registry)(nil)
