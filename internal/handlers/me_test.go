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

type stubUserService struct {
	getProfileFunc    func(ctx context.Context, userID string) (services.UserProfile, error)
	updateProfileFunc func(ctx context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error)
	listAddressesFunc func(ctx context.Context, userID string) ([]services.Address, error)
	upsertAddressFunc func(ctx context.Context, cmd services.UpsertAddressCommand) (services.Address, error)
	deleteAddressFunc func(ctx context.Context, cmd services.DeleteAddressCommand) error
	setDefaultFunc    func(ctx context.Context, cmd services.DeleteAddressCommand) (services.Address, error)
}

func (s *stubUserService) GetProfile(ctx context.Context, userID string) (services.UserProfile, error) {
	return s.getProfileFunc(ctx, userID)
}

func (s *stubUserService) UpdateProfile(ctx context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error) {
	return s.updateProfileFunc(ctx, cmd)
}

func (s *stubUserService) ListAddresses(ctx context.Context, userID string) ([]services.Address, error) {
	return s.listAddressesFunc(ctx, userID)
}

func (s *stubUserService) UpsertAddress(ctx context.Context, cmd services.UpsertAddressCommand) (services.Address, error) {
	return s.upsertAddressFunc(ctx, cmd)
}

func (s *stubUserService) DeleteAddress(ctx context.Context, cmd services.DeleteAddressCommand) error {
	return s.deleteAddressFunc(ctx, cmd)
}

func (s *stubUserService) SetDefaultAddress(ctx context.Context, cmd services.DeleteAddressCommand) (services.Address, error) {
	return s.setDefaultFunc(ctx, cmd)
}

var _ services.UserService = (*stubUserService)(nil)

func newMeRouter(users services.UserService) chi.Router {
	handler := NewMeHandlers(nil, users)
	router := chi.NewRouter()
	router.Route("/me", handler.Routes)
	return router
}

func TestMeHandlersGetProfile(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	users := &stubUserService{
		getProfileFunc: func(_ context.Context, userID string) (services.UserProfile, error) {
			if userID != "user-7" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return services.UserProfile{
				UID:         "user-7",
				DisplayName: "Lina",
				Email:       "Lina@Example.com",
				Locale:      "ar-SY",
				CreatedAt:   now,
			}, nil
		},
	}

	router := newMeRouter(users)

	req := httptest.NewRequest(http.MethodGet, "/me/profile", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7", Roles: []string{auth.RoleCustomer}}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp meResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Profile.UID != "user-7" || resp.Profile.DisplayName != "Lina" {
		t.Fatalf("unexpected profile %+v", resp.Profile)
	}
	if resp.Profile.Email != "lina@example.com" {
		t.Fatalf("expected lowercased email, got %q", resp.Profile.Email)
	}
	if len(resp.Profile.Roles) != 1 || resp.Profile.Roles[0] != auth.RoleCustomer {
		t.Fatalf("unexpected roles %v", resp.Profile.Roles)
	}
}

func TestMeHandlersUpdateProfile(t *testing.T) {
	users := &stubUserService{
		updateProfileFunc: func(_ context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error) {
			if cmd.DisplayName == nil || *cmd.DisplayName != "Lina K" {
				t.Fatalf("expected display name update, got %+v", cmd)
			}
			if cmd.Phone == nil || *cmd.Phone != "" {
				t.Fatalf("expected phone cleared, got %+v", cmd)
			}
			return services.UserProfile{UID: cmd.UserID, DisplayName: *cmd.DisplayName}, nil
		},
	}

	router := newMeRouter(users)

	req := httptest.NewRequest(http.MethodPatch, "/me/profile", strings.NewReader(`{"display_name":"Lina K","phone":null}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMeHandlersUpdateProfileRejectsUnknownField(t *testing.T) {
	router := newMeRouter(&stubUserService{})

	req := httptest.NewRequest(http.MethodPatch, "/me/profile", strings.NewReader(`{"email":"new@example.com"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMeHandlersListAddresses(t *testing.T) {
	users := &stubUserService{
		listAddressesFunc: func(_ context.Context, userID string) ([]services.Address, error) {
			return []services.Address{
				{ID: "addr_1", Recipient: "Lina", Phone: "0999", City: "Damascus", Street: "Main", IsDefault: true},
			}, nil
		},
	}

	router := newMeRouter(users)

	req := httptest.NewRequest(http.MethodGet, "/me/addresses", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp addressListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Addresses) != 1 || !resp.Addresses[0].IsDefault {
		t.Fatalf("unexpected addresses %+v", resp.Addresses)
	}
}

func TestMeHandlersCreateAddress(t *testing.T) {
	users := &stubUserService{
		upsertAddressFunc: func(_ context.Context, cmd services.UpsertAddressCommand) (services.Address, error) {
			if cmd.AddressID != nil {
				t.Fatalf("expected create, got update for %v", *cmd.AddressID)
			}
			if cmd.Address.Recipient != "Lina" || cmd.Address.City != "Aleppo" {
				t.Fatalf("unexpected address %+v", cmd.Address)
			}
			address := cmd.Address
			address.ID = "addr_2"
			return address, nil
		},
	}

	router := newMeRouter(users)

	body := `{"recipient":"Lina","phone":"0999","city":"Aleppo","street":"Castle Rd"}`
	req := httptest.NewRequest(http.MethodPost, "/me/addresses", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp addressResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Address.ID != "addr_2" {
		t.Fatalf("expected generated id, got %q", resp.Address.ID)
	}
}

func TestMeHandlersCreateAddressValidation(t *testing.T) {
	router := newMeRouter(&stubUserService{})

	req := httptest.NewRequest(http.MethodPost, "/me/addresses", strings.NewReader(`{"recipient":"Lina"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMeHandlersDeleteAddress(t *testing.T) {
	users := &stubUserService{
		deleteAddressFunc: func(_ context.Context, cmd services.DeleteAddressCommand) error {
			if cmd.AddressID != "addr_1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return nil
		},
	}

	router := newMeRouter(users)

	req := httptest.NewRequest(http.MethodDelete, "/me/addresses/addr_1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}

func TestMeHandlersSetDefaultAddress(t *testing.T) {
	users := &stubUserService{
		setDefaultFunc: func(_ context.Context, cmd services.DeleteAddressCommand) (services.Address, error) {
			if cmd.AddressID != "addr_1" || cmd.UserID != "user-7" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return domain.Address{ID: "addr_1", Recipient: "Lina", Phone: "0999", City: "Damascus", Street: "Main", IsDefault: true}, nil
		},
	}

	router := newMeRouter(users)

	req := httptest.NewRequest(http.MethodPost, "/me/addresses/addr_1:default", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp addressResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Address.IsDefault {
		t.Fatalf("expected default address, got %+v", resp.Address)
	}
}

func TestMeHandlersDeleteAddressNotFound(t *testing.T) {
	users := &stubUserService{
		deleteAddressFunc: func(context.Context, services.DeleteAddressCommand) error {
			return services.ErrUserNotFound
		},
	}

	router := newMeRouter(users)

	req := httptest.NewRequest(http.MethodDelete, "/me/addresses/addr_9", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
