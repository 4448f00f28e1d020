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
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/pagination"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const wishlistCollectionPattern = "users/%s/wishlist"

// WishlistRepository persists saved products per user. Document IDs are
// product IDs, so membership is a set by construction.
type WishlistRepository struct {
	provider *pfirestore.Provider
}

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	return &WishlistRepository{provider: provider}, nil
}

// List returns wishlist entries ordered by most recent addition.
func (r *WishlistRepository) List(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WishlistEntry], error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CursorPage[domain.WishlistEntry]{}, err
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}

	query := coll.OrderBy("addedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	var fetchLimit int
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeWishlistToken(token)
		if err != nil {
			return domain.CursorPage[domain.WishlistEntry]{}, fmt.Errorf("wishlist.list: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []domain.WishlistEntry
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.WishlistEntry]{}, pfirestore.WrapError("wishlist.list", err)
		}
		entry, err := decodeWishlistEntry(snap)
		if err != nil {
			return domain.CursorPage[domain.WishlistEntry]{}, err
		}
		entries = append(entries, entry)
	}

	nextToken := ""
	if limit > 0 && len(entries) == fetchLimit {
		last := entries[len(entries)-1]
		nextToken = encodeWishlistToken(last.AddedAt, last.ProductID)
		entries = entries[:len(entries)-1]
	}

	return domain.CursorPage[domain.WishlistEntry]{
		Items:         entries,
		NextPageToken: nextToken,
	}, nil
}

// Contains reports current membership without mutating it.
func (r *WishlistRepository) Contains(ctx context.Context, userID string, productID string) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("wishlist repository: product id is required")
	}

	_, err = coll.Doc(productID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, pfirestore.WrapError("wishlist.contains", err)
	}
	return true, nil
}

// Toggle flips membership inside one transaction and reports the new state,
// so two racing toggles resolve to a flip each rather than a lost update.
func (r *WishlistRepository) Toggle(ctx context.Context, userID string, productID string, addedAt time.Time) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("wishlist repository: product id is required")
	}

	present := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(productID)
		_, err := tx.Get(docRef)
		switch {
		case err == nil:
			present = false
			return tx.Delete(docRef)
		case status.Code(err) == codes.NotFound:
			present = true
			return tx.Set(docRef, wishlistDocument{AddedAt: addedAt.UTC()})
		default:
			return err
		}
	})
	if err != nil {
		return false, pfirestore.WrapError("wishlist.toggle", err)
	}
	return present, nil
}

// Put stores the entry if absent, enforcing an optional size limit. It
// reports whether a new entry was created.
func (r *WishlistRepository) Put(ctx context.Context, userID string, productID string, addedAt time.Time, limit int) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("wishlist repository: product id is required")
	}

	created := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(productID)
		if _, err := tx.Get(docRef); err == nil {
			created = false
			return nil
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		if limit > 0 {
			countQuery := coll.Select("addedAt").Limit(limit)
			snaps, err := tx.Documents(countQuery).GetAll()
			if err != nil {
				return err
			}
			if len(snaps) >= limit {
				return status.Error(codes.FailedPrecondition, "wishlist limit reached")
			}
		}

		if err := tx.Set(docRef, wishlistDocument{AddedAt: addedAt.UTC()}); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, pfirestore.WrapError("wishlist.put", err)
	}
	return created, nil
}

// Delete removes the entry; removing an absent entry is not an error.
func (r *WishlistRepository) Delete(ctx context.Context, userID string, productID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("wishlist repository: product id is required")
	}
	if _, err := coll.Doc(productID).Delete(ctx); err != nil {
		return pfirestore.WrapError("wishlist.delete", err)
	}
	return nil
}

func (r *WishlistRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("wishlist repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("wishlist repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(wishlistCollectionPattern, uid)), nil
}

func decodeWishlistEntry(snap *firestore.DocumentSnapshot) (domain.WishlistEntry, error) {
	var doc wishlistDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.WishlistEntry{}, fmt.Errorf("decode wishlist entry %s: %w", snap.Ref.ID, err)
	}
	return domain.WishlistEntry{
		ProductID: snap.Ref.ID,
		AddedAt:   doc.AddedAt,
	}, nil
}

type wishlistDocument struct {
	AddedAt time.Time `firestore:"addedAt"`
}

func encodeWishlistToken(addedAt time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{addedAt.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeWishlistToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", errors.New("invalid token format")
	}
	raw, rawOK := cursor.StartAfter[0].(string)
	docID, idOK := cursor.StartAfter[1].(string)
	if !rawOK || !idOK || docID == "" {
		return time.Time{}, "", errors.New("invalid token format")
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, docID, nil
}

// Ensure interface compliance.
var _ repositories.WishlistRepository = (*WishlistRepository)(nil)
