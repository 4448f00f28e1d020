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

const cartItemsCollectionPattern = "carts/%s/items"

// CartRepository persists cart line items as a per-user subcollection keyed by
// product ID, which makes the (user, product) uniqueness structural.
type CartRepository struct {
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

// ListLines returns all cart lines for the user ordered by insertion time.
func (r *CartRepository) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("addedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var lines []domain.CartLine
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("cart.list", err)
		}
		line, err := decodeCartLine(snap)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// GetLine fetches a single cart line.
func (r *CartRepository) GetLine(ctx context.Context, userID string, productID string) (domain.CartLine, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CartLine{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CartLine{}, errors.New("cart repository: product id is required")
	}

	snap, err := coll.Doc(productID).Get(ctx)
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("cart.get", err)
	}
	return decodeCartLine(snap)
}

// AddOrIncrement inserts the line or adds the requested quantity to the stored
// one inside a single transaction, so concurrent adds cannot lose increments.
func (r *CartRepository) AddOrIncrement(ctx context.Context, userID string, productID string, quantity int, now time.Time) (domain.CartLine, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CartLine{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CartLine{}, errors.New("cart repository: product id is required")
	}
	if quantity < 1 {
		return domain.CartLine{}, errors.New("cart repository: quantity must be at least 1")
	}

	var stored cartLineDocument
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(productID)
		snap, err := tx.Get(docRef)
		switch {
		case err == nil:
			var existing cartLineDocument
			if err := snap.DataTo(&existing); err != nil {
				return fmt.Errorf("decode cart line %s: %w", productID, err)
			}
			stored = cartLineDocument{
				Quantity:  existing.Quantity + quantity,
				AddedAt:   existing.AddedAt,
				UpdatedAt: now.UTC(),
			}
		case status.Code(err) == codes.NotFound:
			stored = cartLineDocument{
				Quantity:  quantity,
				AddedAt:   now.UTC(),
				UpdatedAt: now.UTC(),
			}
		default:
			return err
		}
		return tx.Set(docRef, stored)
	})
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("cart.add", err)
	}

	return domain.CartLine{
		ProductID: productID,
		Quantity:  stored.Quantity,
		AddedAt:   stored.AddedAt,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

// SetQuantity overwrites the quantity of an existing line. Missing lines
// surface as not-found so callers can distinguish stale updates.
func (r *CartRepository) SetQuantity(ctx context.Context, userID string, productID string, quantity int, now time.Time) (domain.CartLine, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CartLine{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CartLine{}, errors.New("cart repository: product id is required")
	}
	if quantity < 1 {
		return domain.CartLine{}, errors.New("cart repository: quantity must be at least 1")
	}

	var stored cartLineDocument
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(productID)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var existing cartLineDocument
		if err := snap.DataTo(&existing); err != nil {
			return fmt.Errorf("decode cart line %s: %w", productID, err)
		}
		stored = cartLineDocument{
			Quantity:  quantity,
			AddedAt:   existing.AddedAt,
			UpdatedAt: now.UTC(),
		}
		return tx.Set(docRef, stored)
	})
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("cart.setQuantity", err)
	}

	return domain.CartLine{
		ProductID: productID,
		Quantity:  stored.Quantity,
		AddedAt:   stored.AddedAt,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

// DeleteLine removes a line; deleting an absent line is not an error.
func (r *CartRepository) DeleteLine(ctx context.Context, userID string, productID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("cart repository: product id is required")
	}
	if _, err := coll.Doc(productID).Delete(ctx); err != nil {
		return pfirestore.WrapError("cart.delete", err)
	}
	return nil
}

// Clear removes every line in the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	iter := coll.Select().Documents(ctx)
	defer iter.Stop()

	bw := client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
	}
	bw.End()
	return nil
}

func (r *CartRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("cart repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(cartItemsCollectionPattern, uid)), nil
}

func decodeCartLine(snap *firestore.DocumentSnapshot) (domain.CartLine, error) {
	var doc cartLineDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.CartLine{}, fmt.Errorf("decode cart line %s: %w", snap.Ref.ID, err)
	}
	return domain.CartLine{
		ProductID: snap.Ref.ID,
		Quantity:  doc.Quantity,
		AddedAt:   doc.AddedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

type cartLineDocument struct {
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Ensure interface compliance.
var _ repositories.CartRepository = (*CartRepository)(nil)
