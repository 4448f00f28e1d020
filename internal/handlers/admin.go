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
	maxAdminBodySize         = 64 * 1024
	defaultAuditPageSize     = 50
	maxAuditPageSize         = 200
	defaultVendorAppPageSize = 20
	maxVendorAppPageSize     = 100
)

// AdminHandlers exposes admin-only management endpoints.
type AdminHandlers struct {
	authn   *auth.Authenticator
	orders  services.OrderService
	reviews services.ReviewService
	vendors services.VendorService
	catalog services.CatalogService
	audit   services.AuditLogService
}

// AdminDeps carries the services wired into the admin surface.
type AdminDeps struct {
	Orders   services.OrderService
	Reviews  services.ReviewService
	Vendors  services.VendorService
	Catalog  services.CatalogService
	AuditLog services.AuditLogService
}

// NewAdminHandlers constructs handlers restricted to identities carrying the admin role.
func NewAdminHandlers(authn *auth.Authenticator, deps AdminDeps) *AdminHandlers {
	return &AdminHandlers{
		authn:   authn,
		orders:  deps.Orders,
		reviews: deps.Reviews,
		vendors: deps.Vendors,
		catalog: deps.Catalog,
		audit:   deps.AuditLog,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}:status", h.transitionOrderStatus)
	r.Get("/reviews", h.listPendingReviews)
	r.Post("/reviews/{reviewID}:moderate", h.moderateReview)
	r.Get("/vendor-applications", h.listVendorApplications)
	r.Post("/vendor-applications/{applicationID}:approve", h.approveVendorApplication)
	r.Post("/vendor-applications/{applicationID}:reject", h.rejectVendorApplication)
	r.Post("/products", h.createProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Get("/audit-logs", h.listAuditLogs)
}

func (h *AdminHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	filter, err := parseOrderListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.UserID = strings.TrimSpace(r.URL.Query().Get("user"))

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

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		Staff:   true,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) transitionOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req orderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	target := strings.ToLower(strings.TrimSpace(req.Status))
	if target == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:      orderID,
		TargetStatus: domain.OrderStatus(target),
		ActorID:      identity.UID,
		Reason:       strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) listPendingReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	pager, err := parsePagination(r, defaultReviewPageSize, maxReviewPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.reviews.ListPending(ctx, pager)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	payload := reviewListResponse{
		Reviews:       make([]reviewPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, review := range page.Items {
		payload.Reviews = append(payload.Reviews, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) moderateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	reviewID := strings.TrimSpace(chi.URLParam(r, "reviewID"))
	if reviewID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "review id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req moderateReviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if req.Approve == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "approve is required", http.StatusBadRequest))
		return
	}

	review, err := h.reviews.Moderate(ctx, services.ModerateReviewCommand{
		ReviewID: reviewID,
		Approve:  *req.Approve,
		ActorID:  identity.UID,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *AdminHandlers) listVendorApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.vendors == nil {
		httpx.WriteError(ctx, w, httpx.NewError("vendor_service_unavailable", "vendor service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	pager, err := parsePagination(r, defaultVendorAppPageSize, maxVendorAppPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.vendors.ListApplications(ctx, services.VendorApplicationFilter{
		Status:     parseFilterValues(r.URL.Query()["status"]),
		Pagination: pager,
	})
	if err != nil {
		writeVendorError(ctx, w, err)
		return
	}

	payload := vendorApplicationListResponse{
		Applications:  make([]vendorApplicationPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, application := range page.Items {
		payload.Applications = append(payload.Applications, buildVendorApplicationPayload(application))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) approveVendorApplication(w http.ResponseWriter, r *http.Request) {
	h.decideVendorApplication(w, r, true)
}

func (h *AdminHandlers) rejectVendorApplication(w http.ResponseWriter, r *http.Request) {
	h.decideVendorApplication(w, r, false)
}

func (h *AdminHandlers) decideVendorApplication(w http.ResponseWriter, r *http.Request, approve bool) {
	ctx := r.Context()
	if h.vendors == nil {
		httpx.WriteError(ctx, w, httpx.NewError("vendor_service_unavailable", "vendor service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	applicationID := strings.TrimSpace(chi.URLParam(r, "applicationID"))
	if applicationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "application id is required", http.StatusBadRequest))
		return
	}

	var reason string
	if r.ContentLength > 0 {
		body, err := readLimitedBody(r, maxAdminBodySize)
		if err != nil && !errors.Is(err, errEmptyBody) {
			writeBodyError(ctx, w, err)
			return
		}
		if len(body) > 0 {
			var req vendorDecisionRequest
			if err := json.Unmarshal(body, &req); err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
				return
			}
			reason = strings.TrimSpace(req.Reason)
		}
	}
	if !approve && reason == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "reason is required when rejecting", http.StatusBadRequest))
		return
	}

	cmd := services.VendorDecisionCommand{
		ApplicationID: applicationID,
		ActorID:       identity.UID,
		Reason:        reason,
	}

	var (
		application services.VendorApplication
		err         error
	)
	if approve {
		application, err = h.vendors.Approve(ctx, cmd)
	} else {
		application, err = h.vendors.Reject(ctx, cmd)
	}
	if err != nil {
		writeVendorError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, vendorApplicationResponse{Application: buildVendorApplicationPayload(application)})
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	h.upsertProduct(w, r, nil)
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}
	h.upsertProduct(w, r, &productID)
}

func (h *AdminHandlers) upsertProduct(w http.ResponseWriter, r *http.Request, productID *string) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpsertProduct(ctx, services.UpsertProductCommand{
		ProductID:   productID,
		VendorID:    strings.TrimSpace(req.VendorID),
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		SalePrice:   req.SalePrice,
		Stock:       req.Stock,
		ImageURLs:   req.ImageURLs,
		Featured:    req.Featured,
		FlashSale:   req.FlashSale,
		Active:      req.Active,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if productID == nil {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.audit == nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_log_unavailable", "audit log service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	values := r.URL.Query()
	filter := services.AuditLogFilter{
		TargetRef: strings.TrimSpace(values.Get("target")),
		Actor:     strings.TrimSpace(values.Get("actor")),
		Action:    strings.TrimSpace(values.Get("action")),
	}
	if raw := strings.TrimSpace(values.Get("from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from "+err.Error(), http.StatusBadRequest))
			return
		}
		filter.From = &ts
	}
	if raw := strings.TrimSpace(values.Get("to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to "+err.Error(), http.StatusBadRequest))
			return
		}
		filter.To = &ts
	}

	pager, err := parsePagination(r, defaultAuditPageSize, maxAuditPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.Pagination = pager

	page, err := h.audit.List(ctx, filter)
	if err != nil {
		writeAuditLogError(ctx, w, err)
		return
	}

	payload := auditLogListResponse{
		Entries:       make([]auditLogPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, entry := range page.Items {
		payload.Entries = append(payload.Entries, buildAuditLogPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func writeAuditLogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrAuditLogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAuditLogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("audit_log_unavailable", "audit log service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("audit_log_error", "failed to read audit logs", http.StatusInternalServerError))
	}
}

func buildAuditLogPayload(entry services.AuditLog) auditLogPayload {
	payload := auditLogPayload{
		ID:        strings.TrimSpace(entry.ID),
		ActorUID:  strings.TrimSpace(entry.ActorUID),
		Action:    strings.TrimSpace(entry.Action),
		TargetRef: strings.TrimSpace(entry.TargetRef),
		Detail:    entry.Detail,
	}
	if !entry.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(entry.CreatedAt)
	}
	return payload
}

type orderStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type moderateReviewRequest struct {
	Approve *bool `json:"approve"`
}

type vendorDecisionRequest struct {
	Reason string `json:"reason"`
}

type vendorApplicationListResponse struct {
	Applications  []vendorApplicationPayload `json:"applications"`
	NextPageToken string                     `json:"next_page_token,omitempty"`
}

type upsertProductRequest struct {
	VendorID    string            `json:"vendor_id"`
	CategoryID  string            `json:"category_id"`
	Name        map[string]string `json:"name"`
	Description map[string]string `json:"description"`
	Price       int64             `json:"price"`
	SalePrice   int64             `json:"sale_price"`
	Stock       int               `json:"stock"`
	ImageURLs   []string          `json:"image_urls"`
	Featured    bool              `json:"featured"`
	FlashSale   bool              `json:"flash_sale"`
	Active      bool              `json:"active"`
}

type auditLogListResponse struct {
	Entries       []auditLogPayload `json:"entries"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type auditLogPayload struct {
	ID        string         `json:"id"`
	ActorUID  string         `json:"actor_uid"`
	Action    string         `json:"action"`
	TargetRef string         `json:"target_ref,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}
