package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/auth"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/httpx"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

const maxProfileBodySize = 64 * 1024

// MeHandlers exposes authenticated profile and address book endpoints.
type MeHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewMeHandlers constructs handlers enforcing Firebase authentication before invoking the user service.
func NewMeHandlers(authn *auth.Authenticator, users services.UserService) *MeHandlers {
	return &MeHandlers{
		authn: authn,
		users: users,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/profile", h.getProfile)
	r.Patch("/profile", h.updateProfile)
	r.Route("/addresses", h.addressRoutes)
}

func (h *MeHandlers) addressRoutes(r chi.Router) {
	r.Get("/", h.listAddresses)
	r.Post("/", h.createAddress)
	r.Route("/{addressID}", func(sr chi.Router) {
		sr.Put("/", h.updateAddress)
		sr.Delete("/", h.deleteAddress)
	})
	r.Post("/{addressID}:default", h.setDefaultAddress)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	profile, err := h.users.GetProfile(ctx, identity.UID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	record, _ := identity.User(ctx)

	writeJSONResponse(w, http.StatusOK, meResponse{Profile: buildProfilePayload(profile, identity, record)})
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	updateReq, err := parseUpdateProfileRequest(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	profile, err := h.users.UpdateProfile(ctx, services.UpdateProfileCommand{
		UserID:      identity.UID,
		DisplayName: updateReq.displayName,
		Phone:       updateReq.phone,
		Locale:      updateReq.locale,
		PhotoURL:    updateReq.photoURL,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	record, _ := identity.User(ctx)

	writeJSONResponse(w, http.StatusOK, meResponse{Profile: buildProfilePayload(profile, identity, record)})
}

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	addresses, err := h.users.ListAddresses(ctx, identity.UID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	payload := addressListResponse{Addresses: make([]addressPayload, 0, len(addresses))}
	for _, address := range addresses {
		payload.Addresses = append(payload.Addresses, buildAddressPayload(address))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *MeHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	h.upsertAddress(w, r, nil)
}

func (h *MeHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}
	h.upsertAddress(w, r, &addressID)
}

func (h *MeHandlers) upsertAddress(w http.ResponseWriter, r *http.Request, addressID *string) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	address, err := decodeAddressRequest(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	saved, err := h.users.UpsertAddress(ctx, services.UpsertAddressCommand{
		UserID:    identity.UID,
		AddressID: addressID,
		Address:   address,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if addressID == nil {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, addressResponse{Address: buildAddressPayload(saved)})
}

func (h *MeHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	if err := h.users.DeleteAddress(ctx, services.DeleteAddressCommand{
		UserID:    identity.UID,
		AddressID: addressID,
	}); err != nil {
		writeUserError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	address, err := h.users.SetDefaultAddress(ctx, services.DeleteAddressCommand{
		UserID:    identity.UID,
		AddressID: addressID,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, addressResponse{Address: buildAddressPayload(address)})
}

func (h *MeHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "resource was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrUserUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("profile_error", "failed to process profile request", http.StatusInternalServerError))
	}
}

type updateProfileRequest struct {
	displayName *string
	phone       *string
	locale      *string
	photoURL    *string
}

func parseUpdateProfileRequest(data []byte) (updateProfileRequest, error) {
	var req updateProfileRequest
	if len(strings.TrimSpace(string(data))) == 0 {
		return req, errEmptyBody
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return req, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if len(raw) == 0 {
		return req, errNoEditableFields
	}

	for key, value := range raw {
		switch key {
		case "display_name":
			if isJSONNull(value) {
				return req, errors.New("display_name must not be null")
			}
			var name string
			if err := json.Unmarshal(value, &name); err != nil {
				return req, errors.New("display_name must be a string")
			}
			req.displayName = &name
		case "phone":
			if isJSONNull(value) {
				empty := ""
				req.phone = &empty
				continue
			}
			var phone string
			if err := json.Unmarshal(value, &phone); err != nil {
				return req, errors.New("phone must be a string or null")
			}
			req.phone = &phone
		case "locale":
			if isJSONNull(value) {
				empty := ""
				req.locale = &empty
				continue
			}
			var locale string
			if err := json.Unmarshal(value, &locale); err != nil {
				return req, errors.New("locale must be a string or null")
			}
			req.locale = &locale
		case "photo_url":
			if isJSONNull(value) {
				empty := ""
				req.photoURL = &empty
				continue
			}
			var photo string
			if err := json.Unmarshal(value, &photo); err != nil {
				return req, errors.New("photo_url must be a string or null")
			}
			req.photoURL = &photo
		default:
			return req, fmt.Errorf("field %q is not editable", key)
		}
	}

	if req.displayName == nil && req.phone == nil && req.locale == nil && req.photoURL == nil {
		return req, errNoEditableFields
	}

	return req, nil
}

func decodeAddressRequest(body []byte) (domain.Address, error) {
	var req addressRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.Address{}, errors.New("invalid JSON payload")
	}

	address := domain.Address{
		Label:     strings.TrimSpace(req.Label),
		Recipient: strings.TrimSpace(req.Recipient),
		Phone:     strings.TrimSpace(req.Phone),
		City:      strings.TrimSpace(req.City),
		District:  strings.TrimSpace(req.District),
		Street:    strings.TrimSpace(req.Street),
		Details:   strings.TrimSpace(req.Details),
		IsDefault: req.IsDefault,
	}
	if address.Recipient == "" {
		return domain.Address{}, errors.New("recipient is required")
	}
	if address.Phone == "" {
		return domain.Address{}, errors.New("phone is required")
	}
	if address.City == "" {
		return domain.Address{}, errors.New("city is required")
	}
	if address.Street == "" {
		return domain.Address{}, errors.New("street is required")
	}
	return address, nil
}

func buildProfilePayload(profile services.UserProfile, identity *auth.Identity, record *firebaseauth.UserRecord) meProfilePayload {
	payload := meProfilePayload{
		UID:         strings.TrimSpace(profile.UID),
		DisplayName: strings.TrimSpace(profile.DisplayName),
		Email:       strings.TrimSpace(strings.ToLower(profile.Email)),
		Phone:       strings.TrimSpace(profile.Phone),
		Locale:      strings.TrimSpace(profile.Locale),
		PhotoURL:    strings.TrimSpace(profile.PhotoURL),
	}
	if identity != nil {
		if payload.UID == "" {
			payload.UID = identity.UID
		}
		if payload.Email == "" {
			payload.Email = strings.TrimSpace(strings.ToLower(identity.Email))
		}
		if payload.Locale == "" {
			payload.Locale = strings.TrimSpace(identity.Locale)
		}
		payload.Roles = identity.Roles
	}
	if record != nil && record.UserInfo != nil {
		if payload.DisplayName == "" {
			payload.DisplayName = strings.TrimSpace(record.UserInfo.DisplayName)
		}
		if payload.PhotoURL == "" {
			payload.PhotoURL = strings.TrimSpace(record.UserInfo.PhotoURL)
		}
	}
	if !profile.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(profile.CreatedAt)
	}
	if !profile.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(profile.UpdatedAt)
	}
	return payload
}

func buildAddressPayload(address services.Address) addressPayload {
	payload := addressPayload{
		ID:        strings.TrimSpace(address.ID),
		Label:     strings.TrimSpace(address.Label),
		Recipient: strings.TrimSpace(address.Recipient),
		Phone:     strings.TrimSpace(address.Phone),
		City:      strings.TrimSpace(address.City),
		District:  strings.TrimSpace(address.District),
		Street:    strings.TrimSpace(address.Street),
		Details:   strings.TrimSpace(address.Details),
		IsDefault: address.IsDefault,
	}
	if !address.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(address.CreatedAt)
	}
	if !address.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(address.UpdatedAt)
	}
	return payload
}

type meResponse struct {
	Profile meProfilePayload `json:"profile"`
}

type meProfilePayload struct {
	UID         string   `json:"uid"`
	DisplayName string   `json:"display_name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Locale      string   `json:"locale,omitempty"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

type addressRequest struct {
	Label     string `json:"label"`
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	District  string `json:"district"`
	Street    string `json:"street"`
	Details   string `json:"details"`
	IsDefault bool   `json:"is_default"`
}

type addressListResponse struct {
	Addresses []addressPayload `json:"addresses"`
}

type addressResponse struct {
	Address addressPayload `json:"address"`
}

type addressPayload struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	District  string `json:"district,omitempty"`
	Street    string `json:"street"`
	Details   string `json:"details,omitempty"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
