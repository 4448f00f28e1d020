package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/httpx"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

const maxInternalBodySize = 64 * 1024

// InternalHandlers serves service-to-service operations endpoints.
// Caller identity is established by the OIDC middleware on the route group.
type InternalHandlers struct {
	orders services.OrderService
	system services.SystemService
}

// NewInternalHandlers constructs handlers for the /internal surface.
func NewInternalHandlers(orders services.OrderService, system services.SystemService) *InternalHandlers {
	return &InternalHandlers{
		orders: orders,
		system: system,
	}
}

// Routes wires the /internal endpoints onto the provided router.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/{orderID}:status", h.transitionOrderStatus)
	r.Post("/counters/{counterID}:next", h.nextCounterValue)
}

func (h *InternalHandlers) transitionOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxInternalBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req internalOrderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	target := strings.ToLower(strings.TrimSpace(req.Status))
	if target == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor = "ops"
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:      orderID,
		TargetStatus: domain.OrderStatus(target),
		ActorID:      actor,
		Reason:       strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *InternalHandlers) nextCounterValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_service_unavailable", "system service is unavailable", http.StatusServiceUnavailable))
		return
	}

	counterID := strings.TrimSpace(chi.URLParam(r, "counterID"))
	if counterID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "counter id is required", http.StatusBadRequest))
		return
	}

	var step int64 = 1
	if raw := strings.TrimSpace(r.URL.Query().Get("step")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "step must be a positive integer", http.StatusBadRequest))
			return
		}
		step = parsed
	}

	value, err := h.system.NextCounterValue(ctx, services.CounterCommand{
		CounterID: counterID,
		Step:      step,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("counter_error", err.Error(), http.StatusBadRequest))
		return
	}

	writeJSONResponse(w, http.StatusOK, counterValueResponse{CounterID: counterID, Value: value})
}

type internalOrderStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type counterValueResponse struct {
	CounterID string `json:"counter_id"`
	Value     int64  `json:"value"`
}
