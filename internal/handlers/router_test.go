package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestNewRouterDefaultsToNotImplemented(t *testing.T) {
	router := NewRouter()

	paths := []string{
		"/api/v1/public/products",
		"/api/v1/cart",
		"/api/v1/wishlist",
		"/api/v1/orders",
		"/api/v1/me/profile",
		"/api/v1/products/prod_1/reviews",
		"/api/v1/vendor/application",
		"/api/v1/admin/orders",
		"/api/v1/webhooks/carrier",
		"/api/v1/internal/counters/orders:next",
	}

	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected 501 for %s, got %d", path, rr.Code)
		}

		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode body for %s: %v", path, err)
		}
		if body["error"] != "not_implemented" {
			t.Fatalf("expected not_implemented code for %s, got %v", path, body["error"])
		}
	}
}

func TestNewRouterHealthEndpoints(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /readyz, got %d", rr.Code)
	}
}

func TestNewRouterUnknownRoute(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("expected route_not_found envelope, got %v", body)
	}
}

func TestNewRouterMountsRegistrars(t *testing.T) {
	router := NewRouter(
		WithPublicRoutes(func(r chi.Router) {
			r.Get("/products", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
		WithCartRoutes(func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
		WithReviewRoutes(func(r chi.Router) {
			r.Get("/reviews", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
	)

	for _, path := range []string{"/api/v1/public/products", "/api/v1/cart", "/api/v1/reviews"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rr.Code)
		}
	}
}

func TestNewRouterAppliesGroupMiddlewares(t *testing.T) {
	var webhookSeen, internalSeen bool

	marker := func(seen *bool) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*seen = true
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewRouter(
		WithWebhookRoutes(func(r chi.Router) {
			r.Post("/carrier", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
		WithWebhookMiddlewares(marker(&webhookSeen)),
		WithInternalRoutes(func(r chi.Router) {
			r.Post("/counters/{counterID}:next", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
		WithInternalMiddlewares(marker(&internalSeen)),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from webhook route, got %d", rr.Code)
	}
	if !webhookSeen {
		t.Fatalf("expected webhook middleware to run")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/internal/counters/orders:next", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from internal route, got %d", rr.Code)
	}
	if !internalSeen {
		t.Fatalf("expected internal middleware to run")
	}
}
