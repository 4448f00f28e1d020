package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/daniyalaisha/syriamall-sub001/internal/platform/auth"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/httpx"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

const maxVendorBodySize = 64 * 1024

// VendorHandlers exposes vendor onboarding endpoints for authenticated users.
type VendorHandlers struct {
	authn   *auth.Authenticator
	vendors services.VendorService
}

// NewVendorHandlers constructs handlers enforcing Firebase authentication before invoking the vendor service.
func NewVendorHandlers(authn *auth.Authenticator, vendors services.VendorService) *VendorHandlers {
	return &VendorHandlers{
		authn:   authn,
		vendors: vendors,
	}
}

// Routes wires the /vendor endpoints onto the provided router.
func (h *VendorHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/applications", h.apply)
	r.Get("/application", h.getApplication)
	r.Post("/documents:sign", h.signDocumentUpload)
}

func (h *VendorHandlers) apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxVendorBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req vendorApplyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	application, err := h.vendors.Apply(ctx, services.VendorApplyCommand{
		UserID:       identity.UID,
		StoreName:    strings.TrimSpace(req.StoreName),
		Description:  strings.TrimSpace(req.Description),
		Phone:        strings.TrimSpace(req.Phone),
		City:         strings.TrimSpace(req.City),
		DocumentRefs: req.DocumentRefs,
	})
	if err != nil {
		writeVendorError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, vendorApplicationResponse{Application: buildVendorApplicationPayload(application)})
}

func (h *VendorHandlers) getApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	application, err := h.vendors.GetApplication(ctx, identity.UID)
	if err != nil {
		writeVendorError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, vendorApplicationResponse{Application: buildVendorApplicationPayload(application)})
}

func (h *VendorHandlers) signDocumentUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxVendorBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req vendorDocumentSignRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	upload, err := h.vendors.IssueDocumentUpload(ctx, services.VendorDocumentUploadCommand{
		UserID:      identity.UID,
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		writeVendorError(ctx, w, err)
		return
	}

	payload := vendorDocumentUploadResponse{
		ObjectPath: upload.ObjectPath,
		UploadURL:  upload.UploadURL,
		PublicURL:  upload.PublicURL,
		Headers:    upload.Headers,
	}
	if !upload.ExpiresAt.IsZero() {
		payload.ExpiresAt = formatTime(upload.ExpiresAt)
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *VendorHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.vendors == nil {
		httpx.WriteError(ctx, w, httpx.NewError("vendor_service_unavailable", "vendor service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeVendorError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrVendorInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrVendorNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("application_not_found", "vendor application not found", http.StatusNotFound))
	case errors.Is(err, services.ErrVendorApplicationExists):
		httpx.WriteError(ctx, w, httpx.NewError("application_exists", "vendor application already submitted", http.StatusConflict))
	case errors.Is(err, services.ErrVendorAlreadyDecided):
		httpx.WriteError(ctx, w, httpx.NewError("application_decided", "vendor application already decided", http.StatusConflict))
	case errors.Is(err, services.ErrVendorUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("vendor_service_unavailable", "vendor service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("vendor_error", "failed to process vendor request", http.StatusInternalServerError))
	}
}

func buildVendorApplicationPayload(application services.VendorApplication) vendorApplicationPayload {
	payload := vendorApplicationPayload{
		ID:           strings.TrimSpace(application.ID),
		UserID:       strings.TrimSpace(application.UserID),
		StoreName:    strings.TrimSpace(application.StoreName),
		Description:  strings.TrimSpace(application.Description),
		Phone:        strings.TrimSpace(application.Phone),
		City:         strings.TrimSpace(application.City),
		DocumentRefs: application.DocumentRefs,
		Status:       string(application.Status),
		Reason:       strings.TrimSpace(application.Reason),
	}
	if application.DecidedAt != nil && !application.DecidedAt.IsZero() {
		payload.DecidedAt = formatTime(*application.DecidedAt)
	}
	if !application.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(application.CreatedAt)
	}
	if !application.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(application.UpdatedAt)
	}
	return payload
}

type vendorApplyRequest struct {
	StoreName    string   `json:"store_name"`
	Description  string   `json:"description"`
	Phone        string   `json:"phone"`
	City         string   `json:"city"`
	DocumentRefs []string `json:"document_refs"`
}

type vendorDocumentSignRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type vendorApplicationResponse struct {
	Application vendorApplicationPayload `json:"application"`
}

type vendorApplicationPayload struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	StoreName    string   `json:"store_name"`
	Description  string   `json:"description,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	City         string   `json:"city,omitempty"`
	DocumentRefs []string `json:"document_refs,omitempty"`
	Status       string   `json:"status"`
	Reason       string   `json:"reason,omitempty"`
	DecidedAt    string   `json:"decided_at,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

type vendorDocumentUploadResponse struct {
	ObjectPath string            `json:"object_path"`
	UploadURL  string            `json:"upload_url"`
	PublicURL  string            `json:"public_url,omitempty"`
	ExpiresAt  string            `json:"expires_at,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}
