package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/httpx"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

const maxWebhookBodySize = 64 * 1024

// carrierActorID identifies carrier callbacks in order history and audit logs.
const carrierActorID = "carrier"

// carrierStatuses restricts which transitions carrier callbacks may request.
var carrierStatuses = map[string]domain.OrderStatus{
	"shipped":   domain.OrderStatusShipped,
	"delivered": domain.OrderStatusDelivered,
}

// WebhookHandlers receives signed callbacks from external delivery partners.
// Request authenticity is enforced by the HMAC middleware on the route group.
type WebhookHandlers struct {
	orders services.OrderService
}

// NewWebhookHandlers constructs handlers for partner webhook endpoints.
func NewWebhookHandlers(orders services.OrderService) *WebhookHandlers {
	return &WebhookHandlers{orders: orders}
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/carrier", h.carrierStatus)
}

func (h *WebhookHandlers) carrierStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req carrierStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id is required", http.StatusBadRequest))
		return
	}

	status, ok := carrierStatuses[strings.ToLower(strings.TrimSpace(req.Status))]
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be shipped or delivered", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:      orderID,
		TargetStatus: status,
		ActorID:      carrierActorID,
		Reason:       strings.TrimSpace(req.TrackingRef),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, carrierStatusResponse{
		OrderID: order.ID,
		Status:  string(order.Status),
	})
}

type carrierStatusRequest struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	TrackingRef string `json:"tracking_ref"`
	OccurredAt  string `json:"occurred_at"`
}

type carrierStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
