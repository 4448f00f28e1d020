package repositories

import (
	"context"
	"time"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Carts() CartRepository
	Wishlists() WishlistRepository
	Orders() OrderRepository
	Reviews() ReviewRepository
	VendorApplications() VendorApplicationRepository
	Users() UserRepository
	Addresses() AddressRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CatalogRepository serves the read-only storefront projections for products,
// categories and banners.
type CatalogRepository interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	// GetProducts loads product snapshots for the given IDs; missing or
	// inactive products are simply absent from the result map.
	GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListBanners(ctx context.Context, now time.Time) ([]domain.Banner, error)

	UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	// AdjustStock changes a product's stock by delta atomically; a resulting
	// negative stock must fail with a conflict.
	AdjustStock(ctx context.Context, productID string, delta int) error
	// ApplyRating folds an approved review rating into the product aggregates.
	ApplyRating(ctx context.Context, productID string, rating int) error
}

// CartRepository persists cart line items keyed by (user, product).
type CartRepository interface {
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	GetLine(ctx context.Context, userID string, productID string) (domain.CartLine, error)
	// AddOrIncrement inserts the line or adds quantity to the existing one as
	// a single atomic operation, returning the stored line.
	AddOrIncrement(ctx context.Context, userID string, productID string, quantity int, now time.Time) (domain.CartLine, error)
	// SetQuantity overwrites the stored quantity for an existing line.
	SetQuantity(ctx context.Context, userID string, productID string, quantity int, now time.Time) (domain.CartLine, error)
	DeleteLine(ctx context.Context, userID string, productID string) error
	Clear(ctx context.Context, userID string) error
}

// WishlistRepository tracks saved products per user with set semantics.
type WishlistRepository interface {
	List(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WishlistEntry], error)
	Contains(ctx context.Context, userID string, productID string) (bool, error)
	// Toggle atomically flips membership and reports the new state.
	Toggle(ctx context.Context, userID string, productID string, addedAt time.Time) (bool, error)
	Put(ctx context.Context, userID string, productID string, addedAt time.Time, limit int) (bool, error)
	Delete(ctx context.Context, userID string, productID string) error
}

// OrderRepository persists order records and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, update OrderStatusUpdate) (domain.Order, error)
}

// OrderStatusUpdate carries optional fields mutated alongside a status transition.
type OrderStatusUpdate struct {
	UpdatedAt   time.Time
	CancelledAt *time.Time
	DeliveredAt *time.Time
}

// ReviewRepository stores product reviews and their moderation state.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	FindByUserProduct(ctx context.Context, userID string, productID string) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string, filter ReviewListFilter) (domain.CursorPage[domain.Review], error)
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
	ListPending(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
	UpdateStatus(ctx context.Context, reviewID string, status domain.ReviewStatus, update ReviewModerationUpdate) (domain.Review, error)
}

// VendorApplicationRepository stores vendor onboarding applications.
type VendorApplicationRepository interface {
	Insert(ctx context.Context, application domain.VendorApplication) error
	FindByID(ctx context.Context, applicationID string) (domain.VendorApplication, error)
	FindByUser(ctx context.Context, userID string) (domain.VendorApplication, error)
	List(ctx context.Context, filter VendorApplicationListFilter) (domain.CursorPage[domain.VendorApplication], error)
	Decide(ctx context.Context, applicationID string, decision VendorDecisionUpdate) (domain.VendorApplication, error)
}

// VendorDecisionUpdate records an admin decision on an application.
type VendorDecisionUpdate struct {
	Status    domain.VendorApplicationStatus
	Reason    string
	DecidedBy string
	DecidedAt time.Time
}

// UserRepository stores storefront user profiles.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
}

// AddressRepository stores shipping addresses per user.
type AddressRepository interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID string, addressID string) (domain.Address, error)
	Upsert(ctx context.Context, userID string, addressID *string, addr domain.Address) (domain.Address, error)
	Delete(ctx context.Context, userID string, addressID string) error
	SetDefault(ctx context.Context, userID string, addressID string) (domain.Address, error)
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditLog], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type ProductListFilter struct {
	CategoryID *string
	VendorID   *string
	Featured   *bool
	FlashSale  *bool
	Search     string
	OnlyActive bool
	SortOrder  domain.SortOrder
	Pagination domain.Pagination
}

type OrderListFilter struct {
	UserID     string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type ReviewListFilter struct {
	Status     []string
	Pagination domain.Pagination
}

// ReviewModerationUpdate carries moderation metadata for status transitions.
type ReviewModerationUpdate struct {
	ModeratedBy string
	ModeratedAt time.Time
}

type VendorApplicationListFilter struct {
	Status     []string
	Pagination domain.Pagination
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
