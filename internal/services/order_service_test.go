package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

type memoryOrderRepo struct {
	store map[string]domain.Order
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{store: make(map[string]domain.Order)}
}

func (m *memoryOrderRepo) Insert(_ context.Context, order domain.Order) error {
	if _, ok := m.store[order.ID]; ok {
		return repoConflict("order %s already exists", order.ID)
	}
	m.store[order.ID] = order
	return nil
}

func (m *memoryOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := m.store[orderID]
	if !ok {
		return domain.Order{}, repoNotFound("order %s not found", orderID)
	}
	return order, nil
}

func (m *memoryOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	var orders []domain.Order
	for _, order := range m.store {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, status := range filter.Status {
				if string(order.Status) == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].PlacedAt.After(orders[j].PlacedAt) })
	return domain.CursorPage[domain.Order]{Items: orders}, nil
}

func (m *memoryOrderRepo) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	order, ok := m.store[orderID]
	if !ok {
		return domain.Order{}, repoNotFound("order %s not found", orderID)
	}
	order.Status = status
	order.UpdatedAt = update.UpdatedAt
	if update.CancelledAt != nil {
		order.CancelledAt = update.CancelledAt
	}
	if update.DeliveredAt != nil {
		order.DeliveredAt = update.DeliveredAt
	}
	m.store[orderID] = order
	return order, nil
}

type memoryAddressRepo struct {
	store map[string]map[string]domain.Address
	seq   int
}

func newMemoryAddressRepo() *memoryAddressRepo {
	return &memoryAddressRepo{store: make(map[string]map[string]domain.Address)}
}

func (m *memoryAddressRepo) List(_ context.Context, userID string) ([]domain.Address, error) {
	addresses := make([]domain.Address, 0, len(m.store[userID]))
	for _, addr := range m.store[userID] {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		if addresses[i].IsDefault != addresses[j].IsDefault {
			return addresses[i].IsDefault
		}
		return addresses[i].ID < addresses[j].ID
	})
	return addresses, nil
}

func (m *memoryAddressRepo) Get(_ context.Context, userID, addressID string) (domain.Address, error) {
	addr, ok := m.store[userID][addressID]
	if !ok {
		return domain.Address{}, repoNotFound("address %s not found", addressID)
	}
	return addr, nil
}

func (m *memoryAddressRepo) Upsert(_ context.Context, userID string, addressID *string, addr domain.Address) (domain.Address, error) {
	if m.store[userID] == nil {
		m.store[userID] = make(map[string]domain.Address)
	}
	if addressID != nil {
		if _, ok := m.store[userID][*addressID]; !ok {
			return domain.Address{}, repoNotFound("address %s not found", *addressID)
		}
		addr.ID = *addressID
	} else {
		m.seq++
		addr.ID = fmt.Sprintf("addr-%d", m.seq)
	}
	if addr.IsDefault {
		for id, other := range m.store[userID] {
			other.IsDefault = false
			m.store[userID][id] = other
		}
	}
	m.store[userID][addr.ID] = addr
	return addr, nil
}

func (m *memoryAddressRepo) Delete(_ context.Context, userID, addressID string) error {
	if _, ok := m.store[userID][addressID]; !ok {
		return repoNotFound("address %s not found", addressID)
	}
	delete(m.store[userID], addressID)
	return nil
}

func (m *memoryAddressRepo) SetDefault(_ context.Context, userID, addressID string) (domain.Address, error) {
	if _, ok := m.store[userID][addressID]; !ok {
		return domain.Address{}, repoNotFound("address %s not found", addressID)
	}
	for id, other := range m.store[userID] {
		other.IsDefault = id == addressID
		m.store[userID][id] = other
	}
	return m.store[userID][addressID], nil
}

type memoryCounterRepo struct {
	values map[string]int64
}

func newMemoryCounterRepo() *memoryCounterRepo {
	return &memoryCounterRepo{values: make(map[string]int64)}
}

func (m *memoryCounterRepo) Next(_ context.Context, counterID string, step int64) (int64, error) {
	if step <= 0 {
		step = 1
	}
	m.values[counterID] += step
	return m.values[counterID], nil
}

func (m *memoryCounterRepo) Configure(_ context.Context, _ string, _ repositories.CounterConfig) error {
	return nil
}

type recordingPublisher struct {
	events []OrderEvent
	fail   bool
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	if p.fail {
		return errors.New("publish failed")
	}
	p.events = append(p.events, event)
	return nil
}

type orderFixture struct {
	orders    *memoryOrderRepo
	carts     *memoryCartRepo
	catalog   *memoryCatalogRepo
	addresses *memoryAddressRepo
	counters  *memoryCounterRepo
	publisher *recordingPublisher
	svc       OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		orders:    newMemoryOrderRepo(),
		carts:     newMemoryCartRepo(),
		catalog:   newMemoryCatalogRepo(),
		addresses: newMemoryAddressRepo(),
		counters:  newMemoryCounterRepo(),
		publisher: &recordingPublisher{},
	}
	seq := 0
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:    f.orders,
		Carts:     f.carts,
		Catalog:   f.catalog,
		Addresses: f.addresses,
		Counters:  f.counters,
		Pricing:   testPricing(),
		Clock:     testClock(),
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("%08d", seq)
		},
		Events: f.publisher,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *orderFixture) seedAddress(t *testing.T, userID string) domain.Address {
	t.Helper()
	addr, err := f.addresses.Upsert(context.Background(), userID, nil, domain.Address{
		Label:     "home",
		Recipient: "Test User",
		Phone:     "0999000000",
		City:      "Damascus",
		Street:    "Main St",
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return addr
}

func (f *orderFixture) seedCartLine(t *testing.T, userID, productID string, quantity int) {
	t.Helper()
	if _, err := f.carts.AddOrIncrement(context.Background(), userID, productID, quantity, testClock()()); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
}

func TestOrderServicePlaceOrderSnapshotsCart(t *testing.T) {
	f := newOrderFixture(t)
	seedProduct(f.catalog, "p1", 2000, 5)
	seedProduct(f.catalog, "p2", 1500, 5)
	addr := f.seedAddress(t, "u1")
	f.seedCartLine(t, "u1", "p1", 2)
	f.seedCartLine(t, "u1", "p2", 1)

	order, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:    "u1",
		AddressID: addr.ID,
		Note:      "leave at the door",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if order.Number != "SM-2025-000001" {
		t.Fatalf("unexpected order number %s", order.Number)
	}
	if !strings.HasPrefix(order.ID, "ord_") {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected two items, got %d", len(order.Items))
	}
	// 2*2000 + 1500 = 5500 clears the free shipping threshold.
	if order.Totals.Subtotal != 5500 || order.Totals.Shipping != 0 || order.Totals.Total != 5500 {
		t.Fatalf("unexpected totals %+v", order.Totals)
	}
	if order.Address.City != "Damascus" {
		t.Fatalf("expected address snapshot, got %+v", order.Address)
	}

	// Stock decremented per line.
	if f.catalog.products["p1"].Stock != 3 || f.catalog.products["p2"].Stock != 4 {
		t.Fatalf("expected stock decremented, got %d/%d", f.catalog.products["p1"].Stock, f.catalog.products["p2"].Stock)
	}

	// Cart cleared after placement.
	lines, err := f.carts.ListLines(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListLines: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected cleared cart, got %d lines", len(lines))
	}

	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != orderEventCreated {
		t.Fatalf("expected created event, got %+v", f.publisher.events)
	}
}

func TestOrderServicePlaceOrderShippingBelowThreshold(t *testing.T) {
	f := newOrderFixture(t)
	seedProduct(f.catalog, "p1", 2000, 5)
	addr := f.seedAddress(t, "u1")
	f.seedCartLine(t, "u1", "p1", 1)

	order, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{UserID: "u1", AddressID: addr.ID})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Totals.Shipping != 599 || order.Totals.Total != 2599 {
		t.Fatalf("expected 599/2599, got %d/%d", order.Totals.Shipping, order.Totals.Total)
	}
}

func TestOrderServicePlaceOrderEmptyCart(t *testing.T) {
	f := newOrderFixture(t)
	addr := f.seedAddress(t, "u1")

	if _, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{UserID: "u1", AddressID: addr.ID}); !errors.Is(err, ErrOrderEmptyCart) {
		t.Fatalf("expected ErrOrderEmptyCart, got %v", err)
	}
}

func TestOrderServicePlaceOrderInsufficientStock(t *testing.T) {
	f := newOrderFixture(t)
	seedProduct(f.catalog, "p1", 2000, 1)
	addr := f.seedAddress(t, "u1")
	f.seedCartLine(t, "u1", "p1", 3)

	if _, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{UserID: "u1", AddressID: addr.ID}); !errors.Is(err, ErrOrderOutOfStock) {
		t.Fatalf("expected ErrOrderOutOfStock, got %v", err)
	}
	if len(f.orders.store) != 0 {
		t.Fatalf("expected no order persisted, got %d", len(f.orders.store))
	}
}

func TestOrderServicePlaceOrderUnknownAddress(t *testing.T) {
	f := newOrderFixture(t)
	seedProduct(f.catalog, "p1", 2000, 5)
	f.seedCartLine(t, "u1", "p1", 1)

	if _, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{UserID: "u1", AddressID: "ghost"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func placeTestOrder(t *testing.T, f *orderFixture) Order {
	t.Helper()
	seedProduct(f.catalog, "p1", 2000, 5)
	addr := f.seedAddress(t, "u1")
	f.seedCartLine(t, "u1", "p1", 2)
	order, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{UserID: "u1", AddressID: addr.ID})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	return order
}

func TestOrderServiceTransitionStatusFollowsLifecycle(t *testing.T) {
	f := newOrderFixture(t)
	order := placeTestOrder(t, f)
	ctx := context.Background()

	updated, err := f.svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusProcessing,
		ActorID:      "admin1",
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}

	if _, err := f.svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusDelivered,
		ActorID:      "admin1",
	}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState for processing -> delivered, got %v", err)
	}

	for _, status := range []domain.OrderStatus{domain.OrderStatusShipped, domain.OrderStatusDelivered} {
		if updated, err = f.svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
			OrderID:      order.ID,
			TargetStatus: status,
			ActorID:      "admin1",
		}); err != nil {
			t.Fatalf("TransitionStatus %s: %v", status, err)
		}
	}
	if updated.DeliveredAt == nil {
		t.Fatal("expected delivered timestamp")
	}

	if _, err := f.svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCancelled,
		ActorID:      "admin1",
	}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected terminal state to reject transitions, got %v", err)
	}
}

func TestOrderServiceCancelRestocksAndPublishes(t *testing.T) {
	f := newOrderFixture(t)
	order := placeTestOrder(t, f)
	ctx := context.Background()

	if f.catalog.products["p1"].Stock != 3 {
		t.Fatalf("expected stock 3 after placement, got %d", f.catalog.products["p1"].Stock)
	}

	cancelled, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: order.ID, ActorID: "u1"})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled order %+v", cancelled)
	}
	if f.catalog.products["p1"].Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", f.catalog.products["p1"].Stock)
	}

	last := f.publisher.events[len(f.publisher.events)-1]
	if last.Type != orderEventStatusChanged || last.CurrentStatus != string(domain.OrderStatusCancelled) {
		t.Fatalf("unexpected final event %+v", last)
	}
}

func TestOrderServiceCancelRules(t *testing.T) {
	f := newOrderFixture(t)
	order := placeTestOrder(t, f)
	ctx := context.Background()

	if _, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: order.ID, ActorID: "intruder"}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}

	if _, err := f.svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusProcessing,
		ActorID:      "admin1",
	}); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, CancelOrderCommand{OrderID: order.ID, ActorID: "u1"}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState once processing, got %v", err)
	}
}

func TestOrderServiceGetOrderAuthorization(t *testing.T) {
	f := newOrderFixture(t)
	order := placeTestOrder(t, f)
	ctx := context.Background()

	if _, err := f.svc.GetOrder(ctx, GetOrderCommand{OrderID: order.ID, ActorID: "u1"}); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, GetOrderCommand{OrderID: order.ID, ActorID: "u2"}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, GetOrderCommand{OrderID: order.ID, ActorID: "staff", Staff: true}); err != nil {
		t.Fatalf("staff read: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, GetOrderCommand{OrderID: "ghost", ActorID: "u1"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderServiceTimelineProjection(t *testing.T) {
	f := newOrderFixture(t)
	order := placeTestOrder(t, f)
	ctx := context.Background()

	timeline, err := f.svc.Timeline(ctx, GetOrderCommand{OrderID: order.ID, ActorID: "u1"})
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline.Stages) != 4 {
		t.Fatalf("expected four stages, got %d", len(timeline.Stages))
	}
	if timeline.Stages[0].State != domain.StageActive {
		t.Fatalf("expected pending stage active, got %s", timeline.Stages[0].State)
	}

	if _, err := f.svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusProcessing,
		ActorID:      "admin1",
	}); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if _, err := f.svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusShipped,
		ActorID:      "admin1",
	}); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}

	timeline, err = f.svc.Timeline(ctx, GetOrderCommand{OrderID: order.ID, ActorID: "u1"})
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	wantStates := []domain.StageState{domain.StageCompleted, domain.StageCompleted, domain.StageActive, domain.StageUpcoming}
	for i, want := range wantStates {
		if timeline.Stages[i].State != want {
			t.Fatalf("stage %d: expected %s, got %s", i, want, timeline.Stages[i].State)
		}
	}
}

func TestOrderServiceListOrdersFiltersByUser(t *testing.T) {
	f := newOrderFixture(t)
	placeTestOrder(t, f)

	page, err := f.svc.ListOrders(context.Background(), OrderListFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one order, got %d", len(page.Items))
	}

	page, err = f.svc.ListOrders(context.Background(), OrderListFilter{UserID: "u2"})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected no orders for u2, got %d", len(page.Items))
	}
}
