package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/daniyalaisha/syriamall-sub001/internal/platform/auth"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/httpx"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

const (
	defaultWishlistPageSize = 20
	maxWishlistPageSize     = 100
)

// WishlistHandlers exposes authenticated wishlist endpoints for the current user.
type WishlistHandlers struct {
	authn     *auth.Authenticator
	wishlists services.WishlistService
}

// NewWishlistHandlers constructs handlers enforcing Firebase authentication before invoking the wishlist service.
func NewWishlistHandlers(authn *auth.Authenticator, wishlists services.WishlistService) *WishlistHandlers {
	return &WishlistHandlers{
		authn:     authn,
		wishlists: wishlists,
	}
}

// Routes wires the /wishlist endpoints onto the provided router.
func (h *WishlistHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.list)
	r.Put("/{productID}", h.add)
	r.Delete("/{productID}", h.remove)
	r.Post("/{productID}:toggle", h.toggle)
}

func (h *WishlistHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	pager, err := parsePagination(r, defaultWishlistPageSize, maxWishlistPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.wishlists.List(ctx, identity.UID, pager)
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}

	payload := wishlistResponse{
		Items:         make([]wishlistItemPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, item := range page.Items {
		payload.Items = append(payload.Items, buildWishlistItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *WishlistHandlers) add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID, ok := h.requireProductID(ctx, w, r)
	if !ok {
		return
	}

	if err := h.wishlists.Add(ctx, services.WishlistCommand{UserID: identity.UID, ProductID: productID}); err != nil {
		writeWishlistError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, wishlistMembershipResponse{ProductID: productID, Saved: true})
}

func (h *WishlistHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID, ok := h.requireProductID(ctx, w, r)
	if !ok {
		return
	}

	if err := h.wishlists.Remove(ctx, services.WishlistCommand{UserID: identity.UID, ProductID: productID}); err != nil {
		writeWishlistError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WishlistHandlers) toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID, ok := h.requireProductID(ctx, w, r)
	if !ok {
		return
	}

	saved, err := h.wishlists.Toggle(ctx, services.WishlistCommand{UserID: identity.UID, ProductID: productID})
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, wishlistMembershipResponse{ProductID: productID, Saved: saved})
}

func (h *WishlistHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.wishlists == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_service_unavailable", "wishlist service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *WishlistHandlers) requireProductID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return "", false
	}
	return productID, true
}

func writeWishlistError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrWishlistInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWishlistNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrWishlistLimitReached):
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_limit_reached", "wishlist limit reached", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrWishlistUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_service_unavailable", "wishlist service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_error", "failed to update wishlist", http.StatusInternalServerError))
	}
}

func buildWishlistItemPayload(item services.WishlistItem) wishlistItemPayload {
	payload := wishlistItemPayload{
		Product: buildProductPayload(item.Product),
	}
	if !item.Entry.AddedAt.IsZero() {
		payload.AddedAt = formatTime(item.Entry.AddedAt)
	}
	return payload
}

type wishlistResponse struct {
	Items         []wishlistItemPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type wishlistItemPayload struct {
	Product productPayload `json:"product"`
	AddedAt string         `json:"added_at,omitempty"`
}

type wishlistMembershipResponse struct {
	ProductID string `json:"product_id"`
	Saved     bool   `json:"saved"`
}
