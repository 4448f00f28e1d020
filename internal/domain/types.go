package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// LocalizedText stores per-locale variants of a display string keyed by BCP 47 tag.
type LocalizedText map[string]string

// Category groups products for storefront navigation.
type Category struct {
	ID        string
	Slug      string
	Name      LocalizedText
	ImageURL  string
	SortIndex int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is the catalog entry shown on listing and detail views.
type Product struct {
	ID          string
	VendorID    string
	CategoryID  string
	Name        LocalizedText
	Description LocalizedText
	Price       int64
	SalePrice   int64
	Currency    string
	Stock       int
	ImageURLs   []string
	Featured    bool
	FlashSale   bool
	RatingSum   int64
	RatingCount int64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectivePrice returns the sale price when one is set, otherwise the list price.
func (p Product) EffectivePrice() int64 {
	if p.SalePrice > 0 && p.SalePrice < p.Price {
		return p.SalePrice
	}
	return p.Price
}

// InStock reports whether the product can currently be ordered.
func (p Product) InStock() bool {
	return p.Active && p.Stock > 0
}

// AverageRating returns the mean approved review rating, or zero when unrated.
func (p Product) AverageRating() float64 {
	if p.RatingCount == 0 {
		return 0
	}
	return float64(p.RatingSum) / float64(p.RatingCount)
}

// Banner is a promotional slide shown on the storefront home view.
type Banner struct {
	ID        string
	Title     LocalizedText
	ImageURL  string
	TargetURL string
	SortIndex int
	Active    bool
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VisibleAt reports whether the banner should be displayed at the given instant.
func (b Banner) VisibleAt(now time.Time) bool {
	if !b.Active {
		return false
	}
	if b.StartsAt != nil && now.Before(*b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && now.After(*b.EndsAt) {
		return false
	}
	return true
}

// CartLine stores a single product entry within a user's cart.
// Lines are unique per (user, product); quantity is always at least one.
type CartLine struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
	UpdatedAt time.Time
}

// CartEntry joins a stored cart line with a fresh product snapshot for display.
type CartEntry struct {
	Line    CartLine
	Product Product
}

// LineTotal returns the entry's contribution to the cart subtotal in minor units.
func (e CartEntry) LineTotal() int64 {
	return e.Product.EffectivePrice() * int64(e.Line.Quantity)
}

// Cart aggregates the loaded cart entries and computed totals for a user.
type Cart struct {
	UserID    string
	Currency  string
	Entries   []CartEntry
	Totals    CartTotals
	UpdatedAt time.Time
}

// ItemCount returns the total quantity across all cart entries.
func (c Cart) ItemCount() int {
	count := 0
	for _, entry := range c.Entries {
		count += entry.Line.Quantity
	}
	return count
}

// WishlistEntry marks a product a user saved for later. Membership is a set:
// at most one entry per (user, product).
type WishlistEntry struct {
	ProductID string
	AddedAt   time.Time
}

// WishlistItem joins a wishlist entry with a fresh product snapshot.
type WishlistItem struct {
	Entry   WishlistEntry
	Product Product
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is placed and awaits confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates the order is being prepared for shipment.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the carrier confirmed delivery.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further status transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderItem snapshots a purchased product line at placement time.
type OrderItem struct {
	ProductID string
	Name      LocalizedText
	UnitPrice int64
	Quantity  int
	ImageURL  string
}

// LineTotal returns the item's contribution to the order subtotal.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order is the immutable record of a placed purchase. Customers only read
// orders; status moves through admin, ops, or carrier channels.
type Order struct {
	ID          string
	Number      string
	UserID      string
	Status      OrderStatus
	Items       []OrderItem
	Totals      CartTotals
	Currency    string
	Address     Address
	Note        string
	PlacedAt    time.Time
	UpdatedAt   time.Time
	CancelledAt *time.Time
	DeliveredAt *time.Time
}

// Address stores a shipping destination from the user's address book.
type Address struct {
	ID          string
	Label       string
	Recipient   string
	Phone       string
	City        string
	District    string
	Street      string
	Details     string
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReviewStatus tracks the moderation lifecycle of a product review.
type ReviewStatus string

const (
	// ReviewStatusPending indicates the review awaits moderation.
	ReviewStatusPending ReviewStatus = "pending"
	// ReviewStatusApproved indicates the review is publicly visible.
	ReviewStatusApproved ReviewStatus = "approved"
	// ReviewStatusRejected indicates the review was rejected by moderation.
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Review is a customer's rating and comment on a purchased product.
type Review struct {
	ID          string
	ProductID   string
	UserID      string
	OrderID     string
	Rating      int
	Comment     string
	Status      ReviewStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ModeratedBy string
}

// VendorApplicationStatus tracks the review lifecycle of a vendor application.
type VendorApplicationStatus string

const (
	// VendorApplicationPending indicates the application awaits an admin decision.
	VendorApplicationPending VendorApplicationStatus = "pending"
	// VendorApplicationApproved indicates the applicant was granted the vendor role.
	VendorApplicationApproved VendorApplicationStatus = "approved"
	// VendorApplicationRejected indicates the application was declined.
	VendorApplicationRejected VendorApplicationStatus = "rejected"
)

// VendorApplication captures a user's request to sell on the storefront.
type VendorApplication struct {
	ID           string
	UserID       string
	StoreName    string
	Description  string
	Phone        string
	City         string
	DocumentRefs []string
	Status       VendorApplicationStatus
	Reason       string
	DecidedBy    string
	DecidedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserProfile stores storefront-facing account details alongside the auth record.
type UserProfile struct {
	UID         string
	DisplayName string
	Email       string
	Phone       string
	Locale      string
	PhotoURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditLog records an administrative action for later inspection.
type AuditLog struct {
	ID        string
	ActorUID  string
	Action    string
	TargetRef string
	Detail    map[string]any
	CreatedAt time.Time
}
