package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	pfirestore "github.com/daniyalaisha/syriamall-sub001/internal/platform/firestore"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists placed orders.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
	}, nil
}

// Insert creates the order document; an existing ID is a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, orderDocumentFrom(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// FindByID fetches an order by ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns a page of orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	query := client.Collection(orderCollection).Query
	if uid := strings.TrimSpace(filter.UserID); uid != "" {
		query = query.Where("userId", "==", uid)
	}
	if len(filter.Status) > 0 {
		query = query.Where("status", "in", filter.Status)
	}
	if filter.DateRange.From != nil {
		query = query.Where("placedAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("placedAt", "<=", filter.DateRange.To.UTC())
	}
	query = query.OrderBy("placedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	var fetchLimit int
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeCatalogToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("orders.list: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	nextToken := ""
	if limit > 0 && len(orders) == fetchLimit {
		last := orders[len(orders)-1]
		nextToken = encodeCatalogToken(last.PlacedAt, last.ID)
		orders = orders[:len(orders)-1]
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStatus writes the new status and companion timestamps, returning the
// updated order. Runs in a transaction so concurrent transitions serialize.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	var result domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := client.Collection(orderCollection).Doc(orderID)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		doc.Status = string(newStatus)
		doc.UpdatedAt = update.UpdatedAt.UTC()
		if update.CancelledAt != nil {
			utc := update.CancelledAt.UTC()
			doc.CancelledAt = &utc
		}
		if update.DeliveredAt != nil {
			utc := update.DeliveredAt.UTC()
			doc.DeliveredAt = &utc
		}

		result = doc.toDomain(orderID)
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.updateStatus", err)
	}
	return result, nil
}

type orderDocument struct {
	Number      string              `firestore:"number"`
	UserID      string              `firestore:"userId"`
	Status      string              `firestore:"status"`
	Items       []orderItemDocument `firestore:"items"`
	Subtotal    int64               `firestore:"subtotal"`
	Shipping    int64               `firestore:"shipping"`
	Total       int64               `firestore:"total"`
	Currency    string              `firestore:"currency"`
	Address     addressDocument     `firestore:"address"`
	Note        string              `firestore:"note"`
	PlacedAt    time.Time           `firestore:"placedAt"`
	UpdatedAt   time.Time           `firestore:"updatedAt"`
	CancelledAt *time.Time          `firestore:"cancelledAt"`
	DeliveredAt *time.Time          `firestore:"deliveredAt"`
}

type orderItemDocument struct {
	ProductID string            `firestore:"productId"`
	Name      map[string]string `firestore:"name"`
	UnitPrice int64             `firestore:"unitPrice"`
	Quantity  int               `firestore:"quantity"`
	ImageURL  string            `firestore:"imageUrl"`
}

func orderDocumentFrom(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}
	return orderDocument{
		Number:      order.Number,
		UserID:      order.UserID,
		Status:      string(order.Status),
		Items:       items,
		Subtotal:    order.Totals.Subtotal,
		Shipping:    order.Totals.Shipping,
		Total:       order.Totals.Total,
		Currency:    order.Currency,
		Address:     addressDocumentFrom(order.Address),
		Note:        order.Note,
		PlacedAt:    order.PlacedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		CancelledAt: order.CancelledAt,
		DeliveredAt: order.DeliveredAt,
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      domain.LocalizedText(item.Name),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}
	return domain.Order{
		ID:     id,
		Number: d.Number,
		UserID: d.UserID,
		Status: domain.OrderStatus(d.Status),
		Items:  items,
		Totals: domain.CartTotals{
			Subtotal: d.Subtotal,
			Shipping: d.Shipping,
			Total:    d.Total,
		},
		Currency:    d.Currency,
		Address:     d.Address.toDomain(""),
		Note:        d.Note,
		PlacedAt:    d.PlacedAt,
		UpdatedAt:   d.UpdatedAt,
		CancelledAt: d.CancelledAt,
		DeliveredAt: d.DeliveredAt,
	}
}

// Ensure interface compliance.
var _ repositories.OrderRepository = (*OrderRepository)(nil)
