package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/auth"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

type stubAuditLogService struct {
	recordFunc func(ctx context.Context, record services.AuditLogRecord)
	listFunc   func(ctx context.Context, filter services.AuditLogFilter) (domain.CursorPage[services.AuditLog], error)
}

func (s *stubAuditLogService) Record(ctx context.Context, record services.AuditLogRecord) {
	if s.recordFunc != nil {
		s.recordFunc(ctx, record)
	}
}

func (s *stubAuditLogService) List(ctx context.Context, filter services.AuditLogFilter) (domain.CursorPage[services.AuditLog], error) {
	return s.listFunc(ctx, filter)
}

var _ services.AuditLogService = (*stubAuditLogService)(nil)

func newAdminRouter(deps AdminDeps) chi.Router {
	handler := NewAdminHandlers(nil, deps)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	return router
}

func adminRequest(method string, target string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}))
}

func TestAdminHandlersTransitionOrderStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := &stubOrderService{
		transitionFunc: func(_ context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			if cmd.OrderID != "ord_1" || cmd.TargetStatus != domain.OrderStatusShipped || cmd.ActorID != "admin-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			order := sampleOrder(now)
			order.Status = domain.OrderStatusShipped
			return order, nil
		},
	}

	router := newAdminRouter(AdminDeps{Orders: orders})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_1:status", `{"status":"shipped","reason":"carrier pickup"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != string(domain.OrderStatusShipped) {
		t.Fatalf("expected shipped status, got %q", resp.Order.Status)
	}
}

func TestAdminHandlersTransitionOrderStatusRequiresStatus(t *testing.T) {
	router := newAdminRouter(AdminDeps{Orders: &stubOrderService{}})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_1:status", `{"reason":"missing status"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersModerateReview(t *testing.T) {
	reviews := &stubReviewService{
		moderateFunc: func(_ context.Context, cmd services.ModerateReviewCommand) (services.Review, error) {
			if cmd.ReviewID != "rev_1" || !cmd.Approve || cmd.ActorID != "admin-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.Review{ID: cmd.ReviewID, Status: domain.ReviewStatusApproved}, nil
		},
	}

	router := newAdminRouter(AdminDeps{Reviews: reviews})

	req := adminRequest(http.MethodPost, "/admin/reviews/rev_1:moderate", `{"approve":true}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp reviewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Review.Status != string(domain.ReviewStatusApproved) {
		t.Fatalf("expected approved review, got %+v", resp.Review)
	}
}

func TestAdminHandlersModerateReviewRequiresDecision(t *testing.T) {
	router := newAdminRouter(AdminDeps{Reviews: &stubReviewService{}})

	req := adminRequest(http.MethodPost, "/admin/reviews/rev_1:moderate", `{}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersApproveVendorApplication(t *testing.T) {
	vendors := &stubVendorService{
		approveFunc: func(_ context.Context, cmd services.VendorDecisionCommand) (services.VendorApplication, error) {
			if cmd.ApplicationID != "vap_1" || cmd.ActorID != "admin-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.VendorApplication{ID: cmd.ApplicationID, Status: domain.VendorApplicationApproved}, nil
		},
	}

	router := newAdminRouter(AdminDeps{Vendors: vendors})

	req := adminRequest(http.MethodPost, "/admin/vendor-applications/vap_1:approve", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp vendorApplicationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Application.Status != string(domain.VendorApplicationApproved) {
		t.Fatalf("expected approved application, got %+v", resp.Application)
	}
}

func TestAdminHandlersRejectVendorApplicationRequiresReason(t *testing.T) {
	router := newAdminRouter(AdminDeps{Vendors: &stubVendorService{}})

	req := adminRequest(http.MethodPost, "/admin/vendor-applications/vap_1:reject", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersRejectVendorApplication(t *testing.T) {
	vendors := &stubVendorService{
		rejectFunc: func(_ context.Context, cmd services.VendorDecisionCommand) (services.VendorApplication, error) {
			if cmd.Reason != "missing documents" {
				t.Fatalf("unexpected reason %q", cmd.Reason)
			}
			return services.VendorApplication{ID: cmd.ApplicationID, Status: domain.VendorApplicationRejected, Reason: cmd.Reason}, nil
		},
	}

	router := newAdminRouter(AdminDeps{Vendors: vendors})

	req := adminRequest(http.MethodPost, "/admin/vendor-applications/vap_1:reject", `{"reason":"missing documents"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersCreateProduct(t *testing.T) {
	catalog := &stubCatalogService{
		upsertProductFunc: func(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			if cmd.ProductID != nil {
				t.Fatalf("expected create, got update for %v", *cmd.ProductID)
			}
			if cmd.VendorID != "ven_1" || cmd.Price != 1500 || cmd.ActorID != "admin-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return sampleProduct(), nil
		},
	}

	router := newAdminRouter(AdminDeps{Catalog: catalog})

	body := `{"vendor_id":"ven_1","category_id":"cat_1","name":{"en":"Olive Soap"},"price":1500,"stock":5,"active":true}`
	req := adminRequest(http.MethodPost, "/admin/products", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersUpdateProduct(t *testing.T) {
	catalog := &stubCatalogService{
		upsertProductFunc: func(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			if cmd.ProductID == nil || *cmd.ProductID != "prod_1" {
				t.Fatalf("expected update of prod_1, got %+v", cmd)
			}
			return sampleProduct(), nil
		},
	}

	router := newAdminRouter(AdminDeps{Catalog: catalog})

	req := adminRequest(http.MethodPut, "/admin/products/prod_1", `{"vendor_id":"ven_1","price":1500,"active":true}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersListAuditLogs(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	audit := &stubAuditLogService{
		listFunc: func(_ context.Context, filter services.AuditLogFilter) (domain.CursorPage[services.AuditLog], error) {
			if filter.Actor != "admin-1" || filter.Action != "review.moderated" {
				t.Fatalf("unexpected filter %+v", filter)
			}
			return domain.CursorPage[services.AuditLog]{
				Items: []services.AuditLog{
					{ID: "aud_1", ActorUID: "admin-1", Action: "review.moderated", TargetRef: "reviews/rev_1", CreatedAt: now},
				},
			}, nil
		},
	}

	router := newAdminRouter(AdminDeps{AuditLog: audit})

	req := adminRequest(http.MethodGet, "/admin/audit-logs?actor=admin-1&action=review.moderated", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp auditLogListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].TargetRef != "reviews/rev_1" {
		t.Fatalf("unexpected entries %+v", resp.Entries)
	}
}
