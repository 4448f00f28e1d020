package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	pfirestore "github.com/daniyalaisha/syriamall-sub001/internal/platform/firestore"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const vendorApplicationCollection = "vendorApplications"

// VendorApplicationRepository persists vendor onboarding applications.
type VendorApplicationRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[vendorApplicationDocument]
}

// NewVendorApplicationRepository constructs a Firestore-backed vendor application repository.
func NewVendorApplicationRepository(provider *pfirestore.Provider) (*VendorApplicationRepository, error) {
	if provider == nil {
		return nil, errors.New("vendor application repository requires firestore provider")
	}
	return &VendorApplicationRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[vendorApplicationDocument](provider, vendorApplicationCollection, nil, nil),
	}, nil
}

// Insert creates the application; a live application for the same user is a conflict.
func (r *VendorApplicationRepository) Insert(ctx context.Context, application domain.VendorApplication) error {
	id := strings.TrimSpace(application.ID)
	if id == "" {
		return errors.New("vendor application repository: application id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	doc := vendorApplicationDocumentFrom(application)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		dupQuery := client.Collection(vendorApplicationCollection).
			Where("userId", "==", application.UserID).
			Where("status", "in", []string{
				string(domain.VendorApplicationPending),
				string(domain.VendorApplicationApproved),
			}).
			Limit(1)
		snaps, err := tx.Documents(dupQuery).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if len(snaps) > 0 {
			return status.Error(codes.AlreadyExists, "vendor application already exists")
		}
		return tx.Create(client.Collection(vendorApplicationCollection).Doc(id), doc)
	})
	if err != nil {
		return pfirestore.WrapError("vendorApplications.insert", err)
	}
	return nil
}

// FindByID fetches an application by ID.
func (r *VendorApplicationRepository) FindByID(ctx context.Context, applicationID string) (domain.VendorApplication, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(applicationID))
	if err != nil {
		return domain.VendorApplication{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByUser returns the user's most recent application.
func (r *VendorApplicationRepository) FindByUser(ctx context.Context, userID string) (domain.VendorApplication, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.VendorApplication{}, err
	}

	iter := client.Collection(vendorApplicationCollection).
		Where("userId", "==", strings.TrimSpace(userID)).
		OrderBy("createdAt", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.VendorApplication{}, pfirestore.WrapError("vendorApplications.findByUser", status.Error(codes.NotFound, "vendor application not found"))
	}
	if err != nil {
		return domain.VendorApplication{}, pfirestore.WrapError("vendorApplications.findByUser", err)
	}

	var doc vendorApplicationDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.VendorApplication{}, fmt.Errorf("decode vendor application %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// List returns a page of applications matching the filter, newest first.
func (r *VendorApplicationRepository) List(ctx context.Context, filter repositories.VendorApplicationListFilter) (domain.CursorPage[domain.VendorApplication], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.VendorApplication]{}, err
	}

	query := client.Collection(vendorApplicationCollection).Query
	if len(filter.Status) > 0 {
		query = query.Where("status", "in", filter.Status)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	var fetchLimit int
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeCatalogToken(token)
		if err != nil {
			return domain.CursorPage[domain.VendorApplication]{}, fmt.Errorf("vendorApplications.list: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var applications []domain.VendorApplication
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.VendorApplication]{}, pfirestore.WrapError("vendorApplications.list", err)
		}
		var doc vendorApplicationDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.VendorApplication]{}, fmt.Errorf("decode vendor application %s: %w", snap.Ref.ID, err)
		}
		applications = append(applications, doc.toDomain(snap.Ref.ID))
	}

	nextToken := ""
	if limit > 0 && len(applications) == fetchLimit {
		last := applications[len(applications)-1]
		nextToken = encodeCatalogToken(last.CreatedAt, last.ID)
		applications = applications[:len(applications)-1]
	}

	return domain.CursorPage[domain.VendorApplication]{
		Items:         applications,
		NextPageToken: nextToken,
	}, nil
}

// Decide records an admin decision; only pending applications can be decided.
func (r *VendorApplicationRepository) Decide(ctx context.Context, applicationID string, decision repositories.VendorDecisionUpdate) (domain.VendorApplication, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return domain.VendorApplication{}, errors.New("vendor application repository: application id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.VendorApplication{}, err
	}

	var result domain.VendorApplication
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := client.Collection(vendorApplicationCollection).Doc(applicationID)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc vendorApplicationDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode vendor application %s: %w", applicationID, err)
		}
		if doc.Status != string(domain.VendorApplicationPending) {
			return status.Error(codes.FailedPrecondition, "vendor application already decided")
		}

		decidedAt := decision.DecidedAt.UTC()
		doc.Status = string(decision.Status)
		doc.Reason = strings.TrimSpace(decision.Reason)
		doc.DecidedBy = decision.DecidedBy
		doc.DecidedAt = &decidedAt
		doc.UpdatedAt = decidedAt

		result = doc.toDomain(applicationID)
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return domain.VendorApplication{}, pfirestore.WrapError("vendorApplications.decide", err)
	}
	return result, nil
}

type vendorApplicationDocument struct {
	UserID       string     `firestore:"userId"`
	StoreName    string     `firestore:"storeName"`
	Description  string     `firestore:"description"`
	Phone        string     `firestore:"phone"`
	City         string     `firestore:"city"`
	DocumentRefs []string   `firestore:"documentRefs"`
	Status       string     `firestore:"status"`
	Reason       string     `firestore:"reason,omitempty"`
	DecidedBy    string     `firestore:"decidedBy,omitempty"`
	DecidedAt    *time.Time `firestore:"decidedAt"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	UpdatedAt    time.Time  `firestore:"updatedAt"`
}

func vendorApplicationDocumentFrom(app domain.VendorApplication) vendorApplicationDocument {
	return vendorApplicationDocument{
		UserID:       app.UserID,
		StoreName:    app.StoreName,
		Description:  app.Description,
		Phone:        app.Phone,
		City:         app.City,
		DocumentRefs: app.DocumentRefs,
		Status:       string(app.Status),
		Reason:       app.Reason,
		DecidedBy:    app.DecidedBy,
		DecidedAt:    app.DecidedAt,
		CreatedAt:    app.CreatedAt.UTC(),
		UpdatedAt:    app.UpdatedAt.UTC(),
	}
}

func (d vendorApplicationDocument) toDomain(id string) domain.VendorApplication {
	return domain.VendorApplication{
		ID:           id,
		UserID:       d.UserID,
		StoreName:    d.StoreName,
		Description:  d.Description,
		Phone:        d.Phone,
		City:         d.City,
		DocumentRefs: d.DocumentRefs,
		Status:       domain.VendorApplicationStatus(d.Status),
		Reason:       d.Reason,
		DecidedBy:    d.DecidedBy,
		DecidedAt:    d.DecidedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.VendorApplicationRepository = (*VendorApplicationRepository)(nil)
