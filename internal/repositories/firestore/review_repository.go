package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	pfirestore "github.com/daniyalaisha/syriamall-sub001/internal/platform/firestore"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const reviewCollection = "reviews"

// ReviewRepository persists product reviews in a flat collection indexed by
// product, user and moderation status.
type ReviewRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[reviewDocument]
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[reviewDocument](provider, reviewCollection, nil, nil),
	}, nil
}

// Insert creates the review; a second review for the same (user, product)
// pair is a conflict.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	id := strings.TrimSpace(review.ID)
	if id == "" {
		return domain.Review{}, errors.New("review repository: review id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Review{}, err
	}

	doc := reviewDocumentFrom(review)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		dupQuery := client.Collection(reviewCollection).
			Where("userId", "==", review.UserID).
			Where("productId", "==", review.ProductID).
			Limit(1)
		snaps, err := tx.Documents(dupQuery).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if len(snaps) > 0 {
			return status.Error(codes.AlreadyExists, "review already exists for product")
		}
		return tx.Create(client.Collection(reviewCollection).Doc(id), doc)
	})
	if err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.insert", err)
	}
	return doc.toDomain(id), nil
}

// FindByID fetches a review by ID.
func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(reviewID))
	if err != nil {
		return domain.Review{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByUserProduct returns the user's review of the product, if any.
func (r *ReviewRepository) FindByUserProduct(ctx context.Context, userID string, productID string) (domain.Review, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Review{}, err
	}

	iter := client.Collection(reviewCollection).
		Where("userId", "==", strings.TrimSpace(userID)).
		Where("productId", "==", strings.TrimSpace(productID)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Review{}, pfirestore.WrapError("reviews.findByUserProduct", status.Error(codes.NotFound, "review not found"))
	}
	if err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.findByUserProduct", err)
	}
	return decodeReview(snap)
}

// ListByProduct returns reviews for a product filtered by moderation status.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}

	query := client.Collection(reviewCollection).Where("productId", "==", strings.TrimSpace(productID))
	if len(filter.Status) > 0 {
		query = query.Where("status", "in", filter.Status)
	}
	return r.page(ctx, query, filter.Pagination, "reviews.listByProduct")
}

// ListByUser returns the user's reviews, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}

	query := client.Collection(reviewCollection).Where("userId", "==", strings.TrimSpace(userID))
	return r.page(ctx, query, pager, "reviews.listByUser")
}

// ListPending returns reviews awaiting moderation, oldest decision first.
func (r *ReviewRepository) ListPending(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}

	query := client.Collection(reviewCollection).Where("status", "==", string(domain.ReviewStatusPending))
	return r.page(ctx, query, pager, "reviews.listPending")
}

// UpdateStatus records a moderation decision.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, reviewID string, newStatus domain.ReviewStatus, update repositories.ReviewModerationUpdate) (domain.Review, error) {
	reviewID = strings.TrimSpace(reviewID)
	if reviewID == "" {
		return domain.Review{}, errors.New("review repository: review id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Review{}, err
	}

	var result domain.Review
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := client.Collection(reviewCollection).Doc(reviewID)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc reviewDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode review %s: %w", reviewID, err)
		}
		doc.Status = string(newStatus)
		doc.ModeratedBy = update.ModeratedBy
		doc.UpdatedAt = update.ModeratedAt.UTC()
		result = doc.toDomain(reviewID)
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.updateStatus", err)
	}
	return result, nil
}

func (r *ReviewRepository) page(ctx context.Context, query firestore.Query, pager domain.Pagination, op string) (domain.CursorPage[domain.Review], error) {
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}
	var fetchLimit int
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeCatalogToken(token)
		if err != nil {
			return domain.CursorPage[domain.Review]{}, fmt.Errorf("%s: invalid page token: %w", op, err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var reviews []domain.Review
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Review]{}, pfirestore.WrapError(op, err)
		}
		review, err := decodeReview(snap)
		if err != nil {
			return domain.CursorPage[domain.Review]{}, err
		}
		reviews = append(reviews, review)
	}

	nextToken := ""
	if limit > 0 && len(reviews) == fetchLimit {
		last := reviews[len(reviews)-1]
		nextToken = encodeCatalogToken(last.CreatedAt, last.ID)
		reviews = reviews[:len(reviews)-1]
	}

	return domain.CursorPage[domain.Review]{
		Items:         reviews,
		NextPageToken: nextToken,
	}, nil
}

func decodeReview(snap *firestore.DocumentSnapshot) (domain.Review, error) {
	var doc reviewDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Review{}, fmt.Errorf("decode review %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

type reviewDocument struct {
	ProductID   string    `firestore:"productId"`
	UserID      string    `firestore:"userId"`
	OrderID     string    `firestore:"orderId"`
	Rating      int       `firestore:"rating"`
	Comment     string    `firestore:"comment"`
	Status      string    `firestore:"status"`
	ModeratedBy string    `firestore:"moderatedBy,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func reviewDocumentFrom(review domain.Review) reviewDocument {
	return reviewDocument{
		ProductID:   review.ProductID,
		UserID:      review.UserID,
		OrderID:     review.OrderID,
		Rating:      review.Rating,
		Comment:     review.Comment,
		Status:      string(review.Status),
		ModeratedBy: review.ModeratedBy,
		CreatedAt:   review.CreatedAt.UTC(),
		UpdatedAt:   review.UpdatedAt.UTC(),
	}
}

func (d reviewDocument) toDomain(id string) domain.Review {
	return domain.Review{
		ID:          id,
		ProductID:   d.ProductID,
		UserID:      d.UserID,
		OrderID:     d.OrderID,
		Rating:      d.Rating,
		Comment:     d.Comment,
		Status:      domain.ReviewStatus(d.Status),
		ModeratedBy: d.ModeratedBy,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.ReviewRepository = (*ReviewRepository)(nil)
