package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/auth"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/httpx"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

const (
	maxOrderBodySize     = 16 * 1024
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// OrderHandlers exposes authenticated order endpoints for the current user.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs handlers enforcing Firebase authentication before invoking the order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.placeOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/timeline", h.getTimeline)
	r.Post("/{orderID}:cancel", h.cancelOrder)
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req placeOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	addressID := strings.TrimSpace(req.AddressID)
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address_id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID:    identity.UID,
		AddressID: addressID,
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	filter, err := parseOrderListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.UserID = identity.UID

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := h.requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := h.requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	timeline, err := h.orders.Timeline(ctx, services.GetOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildTimelinePayload(timeline))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := h.requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	var reason string
	if r.ContentLength > 0 {
		body, err := readLimitedBody(r, maxOrderBodySize)
		if err != nil && !errors.Is(err, errEmptyBody) {
			writeBodyError(ctx, w, err)
			return
		}
		if len(body) > 0 {
			var req cancelOrderRequest
			if err := json.Unmarshal(body, &req); err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
				return
			}
			reason = strings.TrimSpace(req.Reason)
		}
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		Reason:  reason,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *OrderHandlers) requireOrderID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func parseOrderListFilter(r *http.Request) (services.OrderListFilter, error) {
	values := r.URL.Query()

	var filter services.OrderListFilter
	filter.Status = parseFilterValues(values["status"])

	if raw := strings.TrimSpace(values.Get("placed_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderListFilter{}, errors.New("placed_after " + err.Error())
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(values.Get("placed_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderListFilter{}, errors.New("placed_before " + err.Error())
		}
		filter.DateRange.To = &ts
	}

	pager, err := parsePagination(r, defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		return services.OrderListFilter{}, err
	}
	filter.Pagination = pager

	return filter, nil
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrOrderForbidden):
		// Orders owned by other users are indistinguishable from missing ones.
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderOutOfStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order", http.StatusInternalServerError))
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:       strings.TrimSpace(order.ID),
		Number:   strings.TrimSpace(order.Number),
		UserID:   strings.TrimSpace(order.UserID),
		Status:   string(order.Status),
		Currency: strings.ToUpper(strings.TrimSpace(order.Currency)),
		Items:    buildOrderItems(order.Items),
		Totals: cartTotalsPayload{
			Subtotal: order.Totals.Subtotal,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		Address: buildAddressPayload(order.Address),
	}
	if note := strings.TrimSpace(order.Note); note != "" {
		payload.Note = note
	}
	if !order.PlacedAt.IsZero() {
		payload.PlacedAt = formatTime(order.PlacedAt)
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(order.UpdatedAt)
	}
	if order.CancelledAt != nil && !order.CancelledAt.IsZero() {
		payload.CancelledAt = formatTime(*order.CancelledAt)
	}
	if order.DeliveredAt != nil && !order.DeliveredAt.IsZero() {
		payload.DeliveredAt = formatTime(*order.DeliveredAt)
	}
	return payload
}

func buildOrderItems(items []services.OrderItem) []orderItemPayload {
	if len(items) == 0 {
		return []orderItemPayload{}
	}

	payload := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, orderItemPayload{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
			ImageURL:  strings.TrimSpace(item.ImageURL),
		})
	}
	return payload
}

func buildTimelinePayload(timeline services.OrderTimeline) orderTimelineResponse {
	payload := orderTimelineResponse{
		Stages:    make([]timelineStagePayload, 0, len(timeline.Stages)),
		Cancelled: timeline.Cancelled,
	}
	for _, stage := range timeline.Stages {
		payload.Stages = append(payload.Stages, timelineStagePayload{
			Status: string(stage.Status),
			State:  string(stage.State),
		})
	}
	if !timeline.PlacedAt.IsZero() {
		payload.PlacedAt = formatTime(timeline.PlacedAt)
	}
	return payload
}

type placeOrderRequest struct {
	AddressID string `json:"address_id"`
	Note      string `json:"note"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID          string             `json:"id"`
	Number      string             `json:"number"`
	UserID      string             `json:"user_id"`
	Status      string             `json:"status"`
	Items       []orderItemPayload `json:"items"`
	Totals      cartTotalsPayload  `json:"totals"`
	Currency    string             `json:"currency"`
	Address     addressPayload     `json:"address"`
	Note        string             `json:"note,omitempty"`
	PlacedAt    string             `json:"placed_at,omitempty"`
	UpdatedAt   string             `json:"updated_at,omitempty"`
	CancelledAt string             `json:"cancelled_at,omitempty"`
	DeliveredAt string             `json:"delivered_at,omitempty"`
}

type orderItemPayload struct {
	ProductID string               `json:"product_id"`
	Name      domain.LocalizedText `json:"name"`
	UnitPrice int64                `json:"unit_price"`
	Quantity  int                  `json:"quantity"`
	LineTotal int64                `json:"line_total"`
	ImageURL  string               `json:"image_url,omitempty"`
}

type orderTimelineResponse struct {
	Stages    []timelineStagePayload `json:"stages"`
	Cancelled bool                   `json:"cancelled"`
	PlacedAt  string                 `json:"placed_at,omitempty"`
}

type timelineStagePayload struct {
	Status string `json:"status"`
	State  string `json:"state"`
}
