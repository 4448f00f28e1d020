package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix       = "ord_"
	orderCounterID      = "orders"
	defaultOrderPageMax = 50
	maxOrderNoteLength  = 500
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order service: not found")
	// ErrOrderForbidden indicates the actor may not access the order.
	ErrOrderForbidden = errors.New("order service: forbidden")
	// ErrOrderEmptyCart indicates placement was attempted with no orderable items.
	ErrOrderEmptyCart = errors.New("order service: cart is empty")
	// ErrOrderOutOfStock indicates a cart line exceeds the available stock.
	ErrOrderOutOfStock = errors.New("order service: insufficient stock")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order service: invalid status transition")
	// ErrOrderConflict indicates concurrent modification or duplicate placement.
	ErrOrderConflict = errors.New("order service: conflict")
	// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
	ErrOrderUnavailable = errors.New("order service: unavailable")
)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	UserID         string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Catalog     repositories.CatalogRepository
	Addresses   repositories.AddressRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Pricing     PricingRule
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	carts      repositories.CartRepository
	catalog    repositories.CatalogRepository
	addresses  repositories.AddressRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	pricing    PricingRule
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("order service: address repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	pricing := deps.Pricing
	pricing.Currency = strings.ToUpper(strings.TrimSpace(pricing.Currency))
	if pricing.Currency == "" {
		pricing.Currency = "SYP"
	}

	return &orderService{
		orders:     deps.Orders,
		carts:      deps.Carts,
		catalog:    deps.Catalog,
		addresses:  deps.Addresses,
		counters:   deps.Counters,
		unitOfWork: unit,
		pricing:    pricing,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		events:     deps.Events,
		logger:     logger,
	}, nil
}

// PlaceOrder converts the user's cart into an order paid on delivery. Item
// prices and names are snapshotted at placement; stock is decremented per
// line before the order is persisted and the cart is cleared afterwards.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	addressID := strings.TrimSpace(cmd.AddressID)
	if addressID == "" {
		return Order{}, fmt.Errorf("%w: address id is required", ErrOrderInvalidInput)
	}
	note := strings.TrimSpace(cmd.Note)
	if len(note) > maxOrderNoteLength {
		return Order{}, fmt.Errorf("%w: note must be %d characters or fewer", ErrOrderInvalidInput, maxOrderNoteLength)
	}

	address, err := s.addresses.Get(ctx, userID, addressID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, fmt.Errorf("%w: address not found", ErrOrderInvalidInput)
		}
		return Order{}, s.mapRepositoryError(err)
	}

	lines, err := s.carts.ListLines(ctx, userID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	items, err := s.buildOrderItems(ctx, lines)
	if err != nil {
		return Order{}, err
	}
	if len(items) == 0 {
		return Order{}, ErrOrderEmptyCart
	}

	now := s.clock()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	order := domain.Order{
		ID:        orderIDPrefix + s.newID(),
		Number:    number,
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		Items:     items,
		Totals:    domain.TotalsForItems(items, s.pricing),
		Currency:  s.pricing.Currency,
		Address:   address,
		Note:      note,
		PlacedAt:  now,
		UpdatedAt: now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		for _, item := range order.Items {
			if err := s.catalog.AdjustStock(txCtx, item.ProductID, -item.Quantity); err != nil {
				if isRepoConflict(err) {
					return fmt.Errorf("%w: %s", ErrOrderOutOfStock, item.ProductID)
				}
				return s.mapRepositoryError(err)
			}
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		s.logger(ctx, "order.cart_clear_failed", map[string]any{
			"orderID": order.ID,
			"userID":  userID,
			"error":   err.Error(),
		})
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		UserID:        userID,
		CurrentStatus: string(order.Status),
		ActorID:       userID,
		OccurredAt:    now,
	})
	return order, nil
}

// ListOrders returns a page of orders for the given filter.
func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if filter.Pagination.PageSize <= 0 || filter.Pagination.PageSize > defaultOrderPageMax {
		filter.Pagination.PageSize = defaultOrderPageMax
	}
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// GetOrder returns the order when the actor owns it or is staff.
func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	return s.loadAuthorized(ctx, cmd)
}

// Timeline projects the order status onto the fixed fulfilment stages.
func (s *orderService) Timeline(ctx context.Context, cmd GetOrderCommand) (OrderTimeline, error) {
	order, err := s.loadAuthorized(ctx, cmd)
	if err != nil {
		return OrderTimeline{}, err
	}
	return domain.ProjectTimeline(order.Status, order.PlacedAt), nil
}

// TransitionStatus applies a staff-driven forward transition. Cancelling via
// transition restocks the ordered quantities.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if !validOrderStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !transitionAllowed(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.clock()
	update := repositories.OrderStatusUpdate{UpdatedAt: now}
	switch target {
	case domain.OrderStatusCancelled:
		update.CancelledAt = &now
	case domain.OrderStatusDelivered:
		update.DeliveredAt = &now
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, target, update)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if target == domain.OrderStatusCancelled {
		s.restock(ctx, updated)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.Number,
		UserID:         updated.UserID,
		PreviousStatus: string(order.Status),
		CurrentStatus:  string(updated.Status),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     now,
	})
	return updated, nil
}

// Cancel lets the owning customer cancel an order that has not started
// processing. The ordered quantities are returned to stock.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if orderID == "" || actorID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.UserID != actorID {
		return Order{}, ErrOrderForbidden
	}
	if order.Status != domain.OrderStatusPending {
		return Order{}, fmt.Errorf("%w: only pending orders can be cancelled", ErrOrderInvalidState)
	}

	now := s.clock()
	updated, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled, repositories.OrderStatusUpdate{
		UpdatedAt:   now,
		CancelledAt: &now,
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.restock(ctx, updated)

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.Number,
		UserID:         updated.UserID,
		PreviousStatus: string(order.Status),
		CurrentStatus:  string(updated.Status),
		ActorID:        actorID,
		OccurredAt:     now,
	})
	return updated, nil
}

func (s *orderService) loadAuthorized(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !cmd.Staff && order.UserID != strings.TrimSpace(cmd.ActorID) {
		return Order{}, ErrOrderForbidden
	}
	return order, nil
}

func (s *orderService) buildOrderItems(ctx context.Context, lines []domain.CartLine) ([]domain.OrderItem, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		product, ok := products[line.ProductID]
		if !ok || !product.Active {
			continue
		}
		if product.Stock < line.Quantity {
			return nil, fmt.Errorf("%w: %s", ErrOrderOutOfStock, line.ProductID)
		}
		imageURL := ""
		if len(product.ImageURLs) > 0 {
			imageURL = product.ImageURLs[0]
		}
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Name:      product.Name,
			UnitPrice: product.EffectivePrice(),
			Quantity:  line.Quantity,
			ImageURL:  imageURL,
		})
	}
	return items, nil
}

func (s *orderService) restock(ctx context.Context, order Order) {
	for _, item := range order.Items {
		if err := s.catalog.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger(ctx, "order.restock_failed", map[string]any{
				"orderID":   order.ID,
				"productID": item.ProductID,
				"error":     err.Error(),
			})
		}
	}
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderCounterID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SM-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	return translateRepoError(err, ErrOrderNotFound, ErrOrderConflict, ErrOrderUnavailable)
}

func validOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusShipped,
		domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, allowed := range orderStateTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
