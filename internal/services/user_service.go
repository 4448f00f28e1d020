package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const maxAddressBookSize = 10

var (
	// ErrUserInvalidInput indicates validation failures for profile operations.
	ErrUserInvalidInput = errors.New("user service: invalid input")
	// ErrUserNotFound indicates the profile or address could not be located.
	ErrUserNotFound = errors.New("user service: not found")
	// ErrUserConflict indicates concurrent modification of the profile.
	ErrUserConflict = errors.New("user service: conflict")
	// ErrUserUnavailable indicates the user backend cannot fulfil the request.
	ErrUserUnavailable = errors.New("user service: unavailable")
)

// supportedLocales are the storefront display languages.
var supportedLocales = language.NewMatcher([]language.Tag{
	language.Arabic,
	language.English,
})

// UserServiceDeps bundles collaborators required to construct a UserService.
type UserServiceDeps struct {
	Users     repositories.UserRepository
	Addresses repositories.AddressRepository
	Clock     func() time.Time
	Logger    func(context.Context, string, map[string]any)
}

type userService struct {
	users     repositories.UserRepository
	addresses repositories.AddressRepository
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("user service: address repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users:     deps.Users,
		addresses: deps.Addresses,
		clock:     func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// GetProfile loads the profile for the authenticated user.
func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return UserProfile{}, ErrUserInvalidInput
	}
	profile, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return UserProfile{}, s.mapRepositoryError(err)
	}
	return profile, nil
}

// UpdateProfile applies the provided fields onto the stored profile. Nil
// fields are left untouched.
func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return UserProfile{}, ErrUserInvalidInput
	}

	profile, err := s.users.FindByID(ctx, uid)
	if err != nil {
		if !isRepoNotFound(err) {
			return UserProfile{}, s.mapRepositoryError(err)
		}
		profile = domain.UserProfile{UID: uid}
	}

	if cmd.DisplayName != nil {
		name := strings.TrimSpace(*cmd.DisplayName)
		if name == "" {
			return UserProfile{}, fmt.Errorf("%w: display name must not be blank", ErrUserInvalidInput)
		}
		profile.DisplayName = name
	}
	if cmd.Phone != nil {
		profile.Phone = strings.TrimSpace(*cmd.Phone)
	}
	if cmd.Locale != nil {
		locale, err := normaliseLocale(*cmd.Locale)
		if err != nil {
			return UserProfile{}, err
		}
		profile.Locale = locale
	}
	if cmd.PhotoURL != nil {
		profile.PhotoURL = strings.TrimSpace(*cmd.PhotoURL)
	}

	updated, err := s.users.UpdateProfile(ctx, profile)
	if err != nil {
		return UserProfile{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

// ListAddresses returns the user's address book, default first.
func (s *userService) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrUserInvalidInput
	}
	addresses, err := s.addresses.List(ctx, uid)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return addresses, nil
}

// UpsertAddress creates or updates an address book entry.
func (s *userService) UpsertAddress(ctx context.Context, cmd UpsertAddressCommand) (Address, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Address{}, ErrUserInvalidInput
	}
	addr, err := normaliseAddress(cmd.Address)
	if err != nil {
		return Address{}, err
	}

	if cmd.AddressID == nil {
		existing, err := s.addresses.List(ctx, uid)
		if err != nil {
			return Address{}, s.mapRepositoryError(err)
		}
		if len(existing) >= maxAddressBookSize {
			return Address{}, fmt.Errorf("%w: at most %d addresses are allowed", ErrUserInvalidInput, maxAddressBookSize)
		}
		// The first saved address becomes the default.
		if len(existing) == 0 {
			addr.IsDefault = true
		}
	}

	saved, err := s.addresses.Upsert(ctx, uid, cmd.AddressID, addr)
	if err != nil {
		return Address{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

// DeleteAddress removes an address book entry.
func (s *userService) DeleteAddress(ctx context.Context, cmd DeleteAddressCommand) error {
	uid := strings.TrimSpace(cmd.UserID)
	addressID := strings.TrimSpace(cmd.AddressID)
	if uid == "" || addressID == "" {
		return ErrUserInvalidInput
	}
	if err := s.addresses.Delete(ctx, uid, addressID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// SetDefaultAddress marks one address as the default shipping destination.
func (s *userService) SetDefaultAddress(ctx context.Context, cmd DeleteAddressCommand) (Address, error) {
	uid := strings.TrimSpace(cmd.UserID)
	addressID := strings.TrimSpace(cmd.AddressID)
	if uid == "" || addressID == "" {
		return Address{}, ErrUserInvalidInput
	}
	addr, err := s.addresses.SetDefault(ctx, uid, addressID)
	if err != nil {
		return Address{}, s.mapRepositoryError(err)
	}
	return addr, nil
}

func normaliseAddress(addr Address) (Address, error) {
	addr.Label = strings.TrimSpace(addr.Label)
	addr.Recipient = strings.TrimSpace(addr.Recipient)
	addr.Phone = strings.TrimSpace(addr.Phone)
	addr.City = strings.TrimSpace(addr.City)
	addr.District = strings.TrimSpace(addr.District)
	addr.Street = strings.TrimSpace(addr.Street)
	addr.Details = strings.TrimSpace(addr.Details)

	if addr.Recipient == "" {
		return Address{}, fmt.Errorf("%w: recipient is required", ErrUserInvalidInput)
	}
	if addr.Phone == "" {
		return Address{}, fmt.Errorf("%w: phone is required", ErrUserInvalidInput)
	}
	if addr.City == "" {
		return Address{}, fmt.Errorf("%w: city is required", ErrUserInvalidInput)
	}
	if addr.Street == "" {
		return Address{}, fmt.Errorf("%w: street is required", ErrUserInvalidInput)
	}
	return addr, nil
}

func normaliseLocale(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("%w: locale must not be blank", ErrUserInvalidInput)
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: unsupported locale %q", ErrUserInvalidInput, input)
	}
	matched, _, _ := supportedLocales.Match(tag)
	base, _ := matched.Base()
	return base.String(), nil
}

func (s *userService) mapRepositoryError(err error) error {
	return translateRepoError(err, ErrUserNotFound, ErrUserConflict, ErrUserUnavailable)
}
