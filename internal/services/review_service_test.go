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

type memoryReviewRepo struct {
	store map[string]domain.Review
}

func newMemoryReviewRepo() *memoryReviewRepo {
	return &memoryReviewRepo{store: make(map[string]domain.Review)}
}

func (m *memoryReviewRepo) Insert(_ context.Context, review domain.Review) (domain.Review, error) {
	for _, existing := range m.store {
		if existing.UserID == review.UserID && existing.ProductID == review.ProductID {
			return domain.Review{}, repoConflict("review already exists")
		}
	}
	m.store[review.ID] = review
	return review, nil
}

func (m *memoryReviewRepo) FindByID(_ context.Context, reviewID string) (domain.Review, error) {
	review, ok := m.store[reviewID]
	if !ok {
		return domain.Review{}, repoNotFound("review %s not found", reviewID)
	}
	return review, nil
}

func (m *memoryReviewRepo) FindByUserProduct(_ context.Context, userID, productID string) (domain.Review, error) {
	for _, review := range m.store {
		if review.UserID == userID && review.ProductID == productID {
			return review, nil
		}
	}
	return domain.Review{}, repoNotFound("review for %s/%s not found", userID, productID)
}

func (m *memoryReviewRepo) list(match func(domain.Review) bool) []domain.Review {
	var reviews []domain.Review
	for _, review := range m.store {
		if match(review) {
			reviews = append(reviews, review)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.Before(reviews[j].CreatedAt) })
	return reviews
}

func statusMatches(status domain.ReviewStatus, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, candidate := range filter {
		if string(status) == candidate {
			return true
		}
	}
	return false
}

func (m *memoryReviewRepo) ListByProduct(_ context.Context, productID string, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
	reviews := m.list(func(r domain.Review) bool {
		return r.ProductID == productID && statusMatches(r.Status, filter.Status)
	})
	return domain.CursorPage[domain.Review]{Items: reviews}, nil
}

func (m *memoryReviewRepo) ListByUser(_ context.Context, userID string, _ domain.Pagination) (domain.CursorPage[domain.Review], error) {
	reviews := m.list(func(r domain.Review) bool { return r.UserID == userID })
	return domain.CursorPage[domain.Review]{Items: reviews}, nil
}

func (m *memoryReviewRepo) ListPending(_ context.Context, _ domain.Pagination) (domain.CursorPage[domain.Review], error) {
	reviews := m.list(func(r domain.Review) bool { return r.Status == domain.ReviewStatusPending })
	return domain.CursorPage[domain.Review]{Items: reviews}, nil
}

func (m *memoryReviewRepo) UpdateStatus(_ context.Context, reviewID string, status domain.ReviewStatus, update repositories.ReviewModerationUpdate) (domain.Review, error) {
	review, ok := m.store[reviewID]
	if !ok {
		return domain.Review{}, repoNotFound("review %s not found", reviewID)
	}
	review.Status = status
	review.ModeratedBy = update.ModeratedBy
	review.UpdatedAt = update.ModeratedAt
	m.store[reviewID] = review
	return review, nil
}

type reviewFixture struct {
	reviews *memoryReviewRepo
	orders  *memoryOrderRepo
	catalog *memoryCatalogRepo
	svc     ReviewService
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := &reviewFixture{
		reviews: newMemoryReviewRepo(),
		orders:  newMemoryOrderRepo(),
		catalog: newMemoryCatalogRepo(),
	}
	seq := 0
	svc, err := NewReviewService(ReviewServiceDeps{
		Reviews: f.reviews,
		Orders:  f.orders,
		Catalog: f.catalog,
		Clock:   testClock(),
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("%04d", seq)
		},
	})
	if err != nil {
		t.Fatalf("NewReviewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *reviewFixture) seedDeliveredOrder(t *testing.T, orderID, userID string, productIDs ...string) {
	t.Helper()
	items := make([]domain.OrderItem, 0, len(productIDs))
	for _, pid := range productIDs {
		items = append(items, domain.OrderItem{ProductID: pid, Quantity: 1, UnitPrice: 1000})
	}
	order := domain.Order{
		ID:       orderID,
		UserID:   userID,
		Status:   domain.OrderStatusDelivered,
		Items:    items,
		PlacedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := f.orders.Insert(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestReviewServiceCreateRequiresDeliveredOrder(t *testing.T) {
	f := newReviewFixture(t)
	seedProduct(f.catalog, "p1", 1000, 5)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateReviewCommand{UserID: "u1", ProductID: "p1", Rating: 5})
	if !errors.Is(err, ErrReviewNotEligible) {
		t.Fatalf("expected ErrReviewNotEligible, got %v", err)
	}

	// A pending order for the product is not enough.
	pending := domain.Order{ID: "o0", UserID: "u1", Status: domain.OrderStatusPending,
		Items: []domain.OrderItem{{ProductID: "p1", Quantity: 1}}}
	if err := f.orders.Insert(ctx, pending); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateReviewCommand{UserID: "u1", ProductID: "p1", Rating: 5}); !errors.Is(err, ErrReviewNotEligible) {
		t.Fatalf("expected ErrReviewNotEligible, got %v", err)
	}

	f.seedDeliveredOrder(t, "o1", "u1", "p1")
	review, err := f.svc.Create(ctx, CreateReviewCommand{UserID: "u1", ProductID: "p1", Rating: 5, Comment: "great"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if review.Status != domain.ReviewStatusPending || review.OrderID != "o1" {
		t.Fatalf("unexpected review %+v", review)
	}
}

func TestReviewServiceCreateValidatesRating(t *testing.T) {
	f := newReviewFixture(t)
	f.seedDeliveredOrder(t, "o1", "u1", "p1")

	for _, rating := range []int{0, -1, 6} {
		if _, err := f.svc.Create(context.Background(), CreateReviewCommand{UserID: "u1", ProductID: "p1", Rating: rating}); !errors.Is(err, ErrReviewInvalidInput) {
			t.Fatalf("rating %d: expected ErrReviewInvalidInput, got %v", rating, err)
		}
	}
}

func TestReviewServiceCreateStripsMarkup(t *testing.T) {
	f := newReviewFixture(t)
	f.seedDeliveredOrder(t, "o1", "u1", "p1")

	review, err := f.svc.Create(context.Background(), CreateReviewCommand{
		UserID:    "u1",
		ProductID: "p1",
		Rating:    4,
		Comment:   `nice <script>alert("x")</script> lamp`,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if review.Comment != "nice  lamp" {
		t.Fatalf("expected markup stripped, got %q", review.Comment)
	}
}

func TestReviewServiceCreateRejectsDuplicate(t *testing.T) {
	f := newReviewFixture(t)
	f.seedDeliveredOrder(t, "o1", "u1", "p1")
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, CreateReviewCommand{UserID: "u1", ProductID: "p1", Rating: 4}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateReviewCommand{UserID: "u1", ProductID: "p1", Rating: 2}); !errors.Is(err, ErrReviewDuplicate) {
		t.Fatalf("expected ErrReviewDuplicate, got %v", err)
	}
}

func TestReviewServiceModerationAppliesRating(t *testing.T) {
	f := newReviewFixture(t)
	seedProduct(f.catalog, "p1", 1000, 5)
	f.seedDeliveredOrder(t, "o1", "u1", "p1")
	ctx := context.Background()

	review, err := f.svc.Create(ctx, CreateReviewCommand{UserID: "u1", ProductID: "p1", Rating: 4})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := f.svc.Moderate(ctx, ModerateReviewCommand{ReviewID: review.ID, Approve: true, ActorID: "admin1"})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}
	if approved.Status != domain.ReviewStatusApproved || approved.ModeratedBy != "admin1" {
		t.Fatalf("unexpected review %+v", approved)
	}

	product := f.catalog.products["p1"]
	if product.RatingSum != 4 || product.RatingCount != 1 {
		t.Fatalf("expected rating folded into product, got %d/%d", product.RatingSum, product.RatingCount)
	}

	if _, err := f.svc.Moderate(ctx, ModerateReviewCommand{ReviewID: review.ID, Approve: false, ActorID: "admin1"}); !errors.Is(err, ErrReviewInvalidState) {
		t.Fatalf("expected ErrReviewInvalidState on second moderation, got %v", err)
	}
}

func TestReviewServiceListByProductDefaultsToApproved(t *testing.T) {
	f := newReviewFixture(t)
	seedProduct(f.catalog, "p1", 1000, 5)
	f.seedDeliveredOrder(t, "o1", "u1", "p1")
	f.seedDeliveredOrder(t, "o2", "u2", "p1")
	ctx := context.Background()

	first, err := f.svc.Create(ctx, CreateReviewCommand{UserID: "u1", ProductID: "p1", Rating: 4})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateReviewCommand{UserID: "u2", ProductID: "p1", Rating: 2}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Moderate(ctx, ModerateReviewCommand{ReviewID: first.ID, Approve: true, ActorID: "admin1"}); err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	page, err := f.svc.ListByProduct(ctx, ListProductReviewsCommand{ProductID: "p1"})
	if err != nil {
		t.Fatalf("ListByProduct: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != first.ID {
		t.Fatalf("expected only approved review, got %+v", page.Items)
	}

	page, err = f.svc.ListByProduct(ctx, ListProductReviewsCommand{ProductID: "p1", IncludeUnmoderated: true})
	if err != nil {
		t.Fatalf("ListByProduct: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected both reviews for staff, got %d", len(page.Items))
	}
}
