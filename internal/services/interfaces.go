package services

import (
	"context"
	"time"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Product            = domain.Product
	Category           = domain.Category
	Banner             = domain.Banner
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	CartEntry          = domain.CartEntry
	CartTotals         = domain.CartTotals
	PricingRule        = domain.PricingRule
	WishlistEntry      = domain.WishlistEntry
	WishlistItem       = domain.WishlistItem
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderTimeline      = domain.OrderTimeline
	Review             = domain.Review
	ReviewStatus       = domain.ReviewStatus
	VendorApplication  = domain.VendorApplication
	Address            = domain.Address
	UserProfile        = domain.UserProfile
	AuditLog           = domain.AuditLog
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService serves the read-only storefront listing projections.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListBanners(ctx context.Context) ([]Banner, error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
}

// CartService keeps the user's cart synchronized with the backing store.
// Every operation re-reads remote state; nothing is cached between calls.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// WishlistService keeps the user's saved-products set synchronized.
type WishlistService interface {
	List(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[WishlistItem], error)
	Contains(ctx context.Context, userID string, productID string) (bool, error)
	Add(ctx context.Context, cmd WishlistCommand) error
	Remove(ctx context.Context, cmd WishlistCommand) error
	Toggle(ctx context.Context, cmd WishlistCommand) (bool, error)
}

// OrderService encapsulates order placement, reads and status transitions.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	Timeline(ctx context.Context, cmd GetOrderCommand) (OrderTimeline, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// ReviewService coordinates review creation and moderation workflows.
type ReviewService interface {
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	ListByProduct(ctx context.Context, cmd ListProductReviewsCommand) (domain.CursorPage[Review], error)
	ListByUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Review], error)
	ListPending(ctx context.Context, pager Pagination) (domain.CursorPage[Review], error)
	Moderate(ctx context.Context, cmd ModerateReviewCommand) (Review, error)
}

// VendorService handles vendor onboarding applications and admin decisions.
type VendorService interface {
	Apply(ctx context.Context, cmd VendorApplyCommand) (VendorApplication, error)
	GetApplication(ctx context.Context, userID string) (VendorApplication, error)
	ListApplications(ctx context.Context, filter VendorApplicationFilter) (domain.CursorPage[VendorApplication], error)
	IssueDocumentUpload(ctx context.Context, cmd VendorDocumentUploadCommand) (VendorDocumentUpload, error)
	Approve(ctx context.Context, cmd VendorDecisionCommand) (VendorApplication, error)
	Reject(ctx context.Context, cmd VendorDecisionCommand) (VendorApplication, error)
}

// UserService manages profile and address book surfaces.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	UpsertAddress(ctx context.Context, cmd UpsertAddressCommand) (Address, error)
	DeleteAddress(ctx context.Context, cmd DeleteAddressCommand) error
	SetDefaultAddress(ctx context.Context, cmd DeleteAddressCommand) (Address, error)
}

// RoleGranter assigns an auth role claim to a user account.
type RoleGranter interface {
	GrantRole(ctx context.Context, uid string, role string) error
}

// SystemService aggregates utility endpoints (health checks, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// AuditLogService centralizes immutable audit log persistence and retrieval.
type AuditLogService interface {
	Record(ctx context.Context, record AuditLogRecord)
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLog], error)
}

// Command and DTO definitions ------------------------------------------------

type ProductListFilter struct {
	CategoryID *string
	VendorID   *string
	Featured   *bool
	FlashSale  *bool
	Search     string
	Pagination
}

type UpsertProductCommand struct {
	ProductID   *string
	VendorID    string
	CategoryID  string
	Name        map[string]string
	Description map[string]string
	Price       int64
	SalePrice   int64
	Stock       int
	ImageURLs   []string
	Featured    bool
	FlashSale   bool
	Active      bool
	ActorID     string
}

type AddCartItemCommand struct {
	UserID    string
	ProductID string
	// Quantity defaults to 1 when zero.
	Quantity int
}

type UpdateCartQuantityCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

type RemoveCartItemCommand struct {
	UserID    string
	ProductID string
}

type WishlistCommand struct {
	UserID    string
	ProductID string
}

type OrderListFilter = repositories.OrderListFilter

type PlaceOrderCommand struct {
	UserID    string
	AddressID string
	Note      string
}

type GetOrderCommand struct {
	OrderID string
	ActorID string
	// Staff actors may read any order; customers only their own.
	Staff bool
}

type OrderStatusTransitionCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	ActorID      string
	Reason       string
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

type CreateReviewCommand struct {
	UserID    string
	ProductID string
	Rating    int
	Comment   string
}

type ListProductReviewsCommand struct {
	ProductID string
	// IncludeUnmoderated widens the listing beyond approved reviews for staff.
	IncludeUnmoderated bool
	Pagination
}

type ModerateReviewCommand struct {
	ReviewID string
	Approve  bool
	ActorID  string
}

type VendorApplyCommand struct {
	UserID       string
	StoreName    string
	Description  string
	Phone        string
	City         string
	DocumentRefs []string
}

type VendorApplicationFilter struct {
	Status []string
	Pagination
}

type VendorDocumentUploadCommand struct {
	UserID      string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// VendorDocumentUpload carries the signed upload target returned to clients.
type VendorDocumentUpload struct {
	ObjectPath string
	UploadURL  string
	PublicURL  string
	ExpiresAt  time.Time
	Headers    map[string]string
}

type VendorDecisionCommand struct {
	ApplicationID string
	ActorID       string
	Reason        string
}

type UpdateProfileCommand struct {
	UserID      string
	DisplayName *string
	Phone       *string
	Locale      *string
	PhotoURL    *string
}

type UpsertAddressCommand struct {
	UserID    string
	AddressID *string
	Address   Address
}

type DeleteAddressCommand struct {
	UserID    string
	AddressID string
}

type AuditLogFilter struct {
	TargetRef string
	Actor     string
	Action    string
	From      *time.Time
	To        *time.Time
	Pagination
}

type AuditLogRecord struct {
	ActorUID  string
	Action    string
	TargetRef string
	Detail    map[string]any
}

type CounterCommand struct {
	CounterID string
	Step      int64
}
