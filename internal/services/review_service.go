package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const (
	reviewIDPrefix       = "rev_"
	minReviewRating      = 1
	maxReviewRating      = 5
	maxReviewComment     = 2000
	defaultReviewPerPage = 20
)

var (
	// ErrReviewInvalidInput indicates validation failures for review operations.
	ErrReviewInvalidInput = errors.New("review service: invalid input")
	// ErrReviewNotFound indicates a review could not be located.
	ErrReviewNotFound = errors.New("review service: not found")
	// ErrReviewNotEligible indicates the user has no delivered order containing the product.
	ErrReviewNotEligible = errors.New("review service: no delivered order for product")
	// ErrReviewDuplicate signals the user already reviewed the product.
	ErrReviewDuplicate = errors.New("review service: already reviewed")
	// ErrReviewInvalidState is returned when an invalid status transition is attempted.
	ErrReviewInvalidState = errors.New("review service: invalid state transition")
	// ErrReviewUnavailable indicates the review backend cannot fulfil the request.
	ErrReviewUnavailable = errors.New("review service: unavailable")
)

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Orders      repositories.OrderRepository
	Catalog     repositories.CatalogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Sanitizer   func(string) string
	Logger      func(context.Context, string, map[string]any)
}

type reviewService struct {
	reviews  repositories.ReviewRepository
	orders   repositories.OrderRepository
	catalog  repositories.CatalogRepository
	clock    func() time.Time
	newID    func() string
	sanitize func(string) string
	logger   func(context.Context, string, map[string]any)
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("review service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("review service: catalog repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		policy := bluemonday.StrictPolicy()
		sanitize = func(input string) string {
			return strings.TrimSpace(policy.Sanitize(input))
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reviewService{
		reviews:  deps.Reviews,
		orders:   deps.Orders,
		catalog:  deps.Catalog,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		sanitize: sanitize,
		logger:   logger,
	}, nil
}

// Create submits a pending review. The user must have a delivered order
// containing the product and may review each product at most once.
func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return Review{}, ErrReviewInvalidInput
	}
	if cmd.Rating < minReviewRating || cmd.Rating > maxReviewRating {
		return Review{}, fmt.Errorf("%w: rating must be between %d and %d", ErrReviewInvalidInput, minReviewRating, maxReviewRating)
	}
	comment := s.sanitize(cmd.Comment)
	if len(comment) > maxReviewComment {
		return Review{}, fmt.Errorf("%w: comment must be %d characters or fewer", ErrReviewInvalidInput, maxReviewComment)
	}

	orderID, err := s.findDeliveredOrder(ctx, userID, productID)
	if err != nil {
		return Review{}, err
	}

	if _, err := s.reviews.FindByUserProduct(ctx, userID, productID); err == nil {
		return Review{}, ErrReviewDuplicate
	} else if !isRepoNotFound(err) {
		return Review{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	review := domain.Review{
		ID:        reviewIDPrefix + s.newID(),
		ProductID: productID,
		UserID:    userID,
		OrderID:   orderID,
		Rating:    cmd.Rating,
		Comment:   comment,
		Status:    domain.ReviewStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.reviews.Insert(ctx, review)
	if err != nil {
		if isRepoConflict(err) {
			return Review{}, ErrReviewDuplicate
		}
		return Review{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "review.created", map[string]any{
		"reviewID":  created.ID,
		"productID": productID,
		"userID":    userID,
	})
	return created, nil
}

// ListByProduct returns approved reviews for the product, or every status for staff.
func (s *reviewService) ListByProduct(ctx context.Context, cmd ListProductReviewsCommand) (domain.CursorPage[Review], error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return domain.CursorPage[Review]{}, ErrReviewInvalidInput
	}

	pager := cmd.Pagination
	if pager.PageSize <= 0 {
		pager.PageSize = defaultReviewPerPage
	}

	filter := repositories.ReviewListFilter{Pagination: pager}
	if !cmd.IncludeUnmoderated {
		filter.Status = []string{string(domain.ReviewStatusApproved)}
	}

	page, err := s.reviews.ListByProduct(ctx, productID, filter)
	if err != nil {
		return domain.CursorPage[Review]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// ListByUser returns the user's own reviews in every status.
func (s *reviewService) ListByUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Review], error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[Review]{}, ErrReviewInvalidInput
	}
	if pager.PageSize <= 0 {
		pager.PageSize = defaultReviewPerPage
	}
	page, err := s.reviews.ListByUser(ctx, uid, pager)
	if err != nil {
		return domain.CursorPage[Review]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// ListPending returns the moderation queue, oldest first.
func (s *reviewService) ListPending(ctx context.Context, pager Pagination) (domain.CursorPage[Review], error) {
	if pager.PageSize <= 0 {
		pager.PageSize = defaultReviewPerPage
	}
	page, err := s.reviews.ListPending(ctx, pager)
	if err != nil {
		return domain.CursorPage[Review]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// Moderate approves or rejects a pending review. Approval folds the rating
// into the product aggregates.
func (s *reviewService) Moderate(ctx context.Context, cmd ModerateReviewCommand) (Review, error) {
	reviewID := strings.TrimSpace(cmd.ReviewID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if reviewID == "" || actorID == "" {
		return Review{}, ErrReviewInvalidInput
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return Review{}, s.mapRepositoryError(err)
	}
	if review.Status != domain.ReviewStatusPending {
		return Review{}, fmt.Errorf("%w: review already %s", ErrReviewInvalidState, review.Status)
	}

	target := domain.ReviewStatusRejected
	if cmd.Approve {
		target = domain.ReviewStatusApproved
	}

	now := s.clock()
	updated, err := s.reviews.UpdateStatus(ctx, reviewID, target, repositories.ReviewModerationUpdate{
		ModeratedBy: actorID,
		ModeratedAt: now,
	})
	if err != nil {
		return Review{}, s.mapRepositoryError(err)
	}

	if target == domain.ReviewStatusApproved {
		if err := s.catalog.ApplyRating(ctx, updated.ProductID, updated.Rating); err != nil {
			s.logger(ctx, "review.rating_apply_failed", map[string]any{
				"reviewID":  updated.ID,
				"productID": updated.ProductID,
				"error":     err.Error(),
			})
		}
	}

	s.logger(ctx, "review.moderated", map[string]any{
		"reviewID": updated.ID,
		"status":   string(updated.Status),
		"actorID":  actorID,
	})
	return updated, nil
}

func (s *reviewService) findDeliveredOrder(ctx context.Context, userID, productID string) (string, error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:     userID,
		Status:     []string{string(domain.OrderStatusDelivered)},
		Pagination: domain.Pagination{PageSize: 100},
	})
	if err != nil {
		return "", s.mapRepositoryError(err)
	}
	for _, order := range page.Items {
		for _, item := range order.Items {
			if item.ProductID == productID {
				return order.ID, nil
			}
		}
	}
	return "", ErrReviewNotEligible
}

func (s *reviewService) mapRepositoryError(err error) error {
	return translateRepoError(err, ErrReviewNotFound, ErrReviewDuplicate, ErrReviewUnavailable)
}
