package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/daniyalaisha/syriamall-sub001/internal/platform/config"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
	"github.com/daniyalaisha/syriamall-sub001/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog  services.CatalogService
	Cart     services.CartService
	Wishlist services.WishlistService
	Orders   services.OrderService
	Reviews  services.ReviewService
	Users    services.UserService
	Vendors  services.VendorService
	System   services.SystemService
	Audit    services.AuditLogService
}

// Infra carries external collaborators whose clients are constructed by the
// caller (Pub/Sub topics, Cloud Storage signers, Firebase admin access).
type Infra struct {
	Roles          services.RoleGranter
	DocumentSigner services.DocumentSigner
	DocumentCopier services.ObjectCopier
	OrderEvents    services.OrderEventPublisher
	Build          services.BuildInfo
	Logger         *zap.Logger
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infra) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infra) (Services, error) {
	var svc Services
	if reg == nil {
		return svc, nil
	}

	logEvent := eventLogger(infra.Logger)
	pricing := services.PricingRule{
		Currency:              cfg.Pricing.Currency,
		ShippingFee:           cfg.Pricing.ShippingFee,
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
	}

	if auditRepo := reg.AuditLogs(); auditRepo != nil {
		auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
			Repository: auditRepo,
			Clock:      time.Now,
			Logger:     logEvent,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build audit log service: %w", err)
		}
		svc.Audit = auditSvc
	}

	catalogRepo := reg.Catalog()
	if catalogRepo != nil {
		catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
			Repository: catalogRepo,
			Clock:      time.Now,
			Logger:     logEvent,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build catalog service: %w", err)
		}
		svc.Catalog = catalogSvc
	}

	if cartRepo := reg.Carts(); cartRepo != nil && catalogRepo != nil {
		cartSvc, err := services.NewCartService(services.CartServiceDeps{
			Repository: cartRepo,
			Catalog:    catalogRepo,
			Pricing:    pricing,
			Clock:      time.Now,
			Logger:     logEvent,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build cart service: %w", err)
		}
		svc.Cart = cartSvc
	}

	if wishlistRepo := reg.Wishlists(); wishlistRepo != nil && catalogRepo != nil {
		wishlistSvc, err := services.NewWishlistService(services.WishlistServiceDeps{
			Repository: wishlistRepo,
			Catalog:    catalogRepo,
			Limit:      cfg.Wishlist.MaxItems,
			Clock:      time.Now,
			Logger:     logEvent,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build wishlist service: %w", err)
		}
		svc.Wishlist = wishlistSvc
	}

	if usersRepo := reg.Users(); usersRepo != nil && reg.Addresses() != nil {
		userSvc, err := services.NewUserService(services.UserServiceDeps{
			Users:     usersRepo,
			Addresses: reg.Addresses(),
			Clock:     time.Now,
			Logger:    logEvent,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build user service: %w", err)
		}
		svc.Users = userSvc
	}

	counterRepo := reg.Counters()
	if healthRepo := reg.Health(); healthRepo != nil && counterRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			Health:   healthRepo,
			Counters: counterRepo,
			Clock:    time.Now,
			Build:    buildInfo(cfg, infra),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	ordersRepo := reg.Orders()
	if ordersRepo != nil && reg.Carts() != nil && catalogRepo != nil && reg.Addresses() != nil && counterRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:     ordersRepo,
			Carts:      reg.Carts(),
			Catalog:    catalogRepo,
			Addresses:  reg.Addresses(),
			Counters:   counterRepo,
			UnitOfWork: reg,
			Pricing:    pricing,
			Clock:      time.Now,
			Events:     infra.OrderEvents,
			Logger:     logEvent,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if reviewRepo := reg.Reviews(); reviewRepo != nil && ordersRepo != nil && catalogRepo != nil {
		reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
			Reviews: reviewRepo,
			Orders:  ordersRepo,
			Catalog: catalogRepo,
			Clock:   time.Now,
			Logger:  logEvent,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build review service: %w", err)
		}
		svc.Reviews = reviewSvc
	}

	if vendorRepo := reg.VendorApplications(); vendorRepo != nil && infra.Roles != nil {
		vendorSvc, err := services.NewVendorService(services.VendorServiceDeps{
			Applications:  vendorRepo,
			Roles:         infra.Roles,
			Signer:        infra.DocumentSigner,
			Copier:        infra.DocumentCopier,
			Audit:         svc.Audit,
			UploadBucket:  cfg.Storage.VendorDocsBucket,
			ArchiveBucket: cfg.Storage.ArchiveBucket,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			Clock:         time.Now,
			Logger:        logEvent,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build vendor service: %w", err)
		}
		svc.Vendors = vendorSvc
	}

	return svc, nil
}

func buildInfo(cfg config.Config, infra Infra) services.BuildInfo {
	build := infra.Build
	if build.Environment == "" {
		build.Environment = cfg.Security.Environment
	}
	if build.StartedAt.IsZero() {
		build.StartedAt = time.Now().UTC()
	}
	return build
}

func eventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	if logger == nil {
		return func(context.Context, string, map[string]any) {}
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
