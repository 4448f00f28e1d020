package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/storage"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const (
	vendorApplicationIDPrefix = "vap_"
	vendorRoleName            = "vendor"
	maxVendorDocuments        = 5
	maxVendorDocumentBytes    = 10 << 20
	vendorUploadExpiry        = 15 * time.Minute
	defaultVendorPageSize     = 20
)

var vendorDocumentContentTypes = []string{"application/pdf", "image/jpeg", "image/png"}

var (
	// ErrVendorInvalidInput indicates validation failures for vendor operations.
	ErrVendorInvalidInput = errors.New("vendor service: invalid input")
	// ErrVendorNotFound indicates the application could not be located.
	ErrVendorNotFound = errors.New("vendor service: not found")
	// ErrVendorApplicationExists signals the user already has a live application.
	ErrVendorApplicationExists = errors.New("vendor service: application already exists")
	// ErrVendorAlreadyDecided is returned when deciding a non-pending application.
	ErrVendorAlreadyDecided = errors.New("vendor service: application already decided")
	// ErrVendorUnavailable indicates the vendor backend cannot fulfil the request.
	ErrVendorUnavailable = errors.New("vendor service: unavailable")
)

// DocumentSigner issues signed upload URLs for application documents.
type DocumentSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// ObjectCopier moves accepted documents into long-term storage.
type ObjectCopier interface {
	CopyObject(ctx context.Context, sourceBucket, sourceObject, destBucket, destObject string) error
}

// VendorServiceDeps bundles collaborators required to construct a VendorService.
type VendorServiceDeps struct {
	Applications  repositories.VendorApplicationRepository
	Roles         RoleGranter
	Signer        DocumentSigner
	Copier        ObjectCopier
	Audit         AuditLogService
	UploadBucket  string
	ArchiveBucket string
	PublicBaseURL string
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(context.Context, string, map[string]any)
}

type vendorService struct {
	applications  repositories.VendorApplicationRepository
	roles         RoleGranter
	signer        DocumentSigner
	copier        ObjectCopier
	audit         AuditLogService
	uploadBucket  string
	archiveBucket string
	publicBaseURL string
	clock         func() time.Time
	newID         func() string
	sanitize      func(string) string
	logger        func(context.Context, string, map[string]any)
}

// NewVendorService wires dependencies into a concrete VendorService implementation.
func NewVendorService(deps VendorServiceDeps) (VendorService, error) {
	if deps.Applications == nil {
		return nil, errors.New("vendor service: application repository is required")
	}
	if deps.Roles == nil {
		return nil, errors.New("vendor service: role granter is required")
	}
	if strings.TrimSpace(deps.UploadBucket) == "" {
		return nil, errors.New("vendor service: upload bucket is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	policy := bluemonday.StrictPolicy()

	return &vendorService{
		applications:  deps.Applications,
		roles:         deps.Roles,
		signer:        deps.Signer,
		copier:        deps.Copier,
		audit:         deps.Audit,
		uploadBucket:  strings.TrimSpace(deps.UploadBucket),
		archiveBucket: strings.TrimSpace(deps.ArchiveBucket),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/"),
		clock:         func() time.Time { return clock().UTC() },
		newID:         idGen,
		sanitize: func(input string) string {
			return strings.TrimSpace(policy.Sanitize(input))
		},
		logger: logger,
	}, nil
}

// Apply submits a vendor onboarding application. A user may have at most one
// live (pending or approved) application.
func (s *vendorService) Apply(ctx context.Context, cmd VendorApplyCommand) (VendorApplication, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return VendorApplication{}, ErrVendorInvalidInput
	}
	storeName := s.sanitize(cmd.StoreName)
	if storeName == "" {
		return VendorApplication{}, fmt.Errorf("%w: store name is required", ErrVendorInvalidInput)
	}
	phone := strings.TrimSpace(cmd.Phone)
	if phone == "" {
		return VendorApplication{}, fmt.Errorf("%w: phone is required", ErrVendorInvalidInput)
	}
	if len(cmd.DocumentRefs) > maxVendorDocuments {
		return VendorApplication{}, fmt.Errorf("%w: at most %d documents are allowed", ErrVendorInvalidInput, maxVendorDocuments)
	}
	refs := make([]string, 0, len(cmd.DocumentRefs))
	for _, ref := range cmd.DocumentRefs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if !strings.HasPrefix(ref, "assets/vendors/"+userID+"/") {
			return VendorApplication{}, fmt.Errorf("%w: document ref outside the user's upload area", ErrVendorInvalidInput)
		}
		refs = append(refs, ref)
	}

	now := s.clock()
	application := domain.VendorApplication{
		ID:           vendorApplicationIDPrefix + s.newID(),
		UserID:       userID,
		StoreName:    storeName,
		Description:  s.sanitize(cmd.Description),
		Phone:        phone,
		City:         strings.TrimSpace(cmd.City),
		DocumentRefs: refs,
		Status:       domain.VendorApplicationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.applications.Insert(ctx, application); err != nil {
		if isRepoConflict(err) {
			return VendorApplication{}, ErrVendorApplicationExists
		}
		return VendorApplication{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "vendor.application_submitted", map[string]any{
		"applicationID": application.ID,
		"userID":        userID,
	})
	return application, nil
}

// GetApplication returns the user's most recent application.
func (s *vendorService) GetApplication(ctx context.Context, userID string) (VendorApplication, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return VendorApplication{}, ErrVendorInvalidInput
	}
	application, err := s.applications.FindByUser(ctx, uid)
	if err != nil {
		return VendorApplication{}, s.mapRepositoryError(err)
	}
	return application, nil
}

// ListApplications returns a page of applications for admin review.
func (s *vendorService) ListApplications(ctx context.Context, filter VendorApplicationFilter) (domain.CursorPage[VendorApplication], error) {
	pager := filter.Pagination
	if pager.PageSize <= 0 {
		pager.PageSize = defaultVendorPageSize
	}
	page, err := s.applications.List(ctx, repositories.VendorApplicationListFilter{
		Status:     filter.Status,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[VendorApplication]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// IssueDocumentUpload returns a short-lived signed URL the applicant uploads a
// document to. The object path is returned so it can be referenced in Apply.
func (s *vendorService) IssueDocumentUpload(ctx context.Context, cmd VendorDocumentUploadCommand) (VendorDocumentUpload, error) {
	if s.signer == nil {
		return VendorDocumentUpload{}, ErrVendorUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return VendorDocumentUpload{}, ErrVendorInvalidInput
	}
	contentType := strings.TrimSpace(cmd.ContentType)
	if contentType == "" {
		return VendorDocumentUpload{}, fmt.Errorf("%w: content type is required", ErrVendorInvalidInput)
	}
	if cmd.SizeBytes > maxVendorDocumentBytes {
		return VendorDocumentUpload{}, fmt.Errorf("%w: document exceeds %d bytes", ErrVendorInvalidInput, maxVendorDocumentBytes)
	}

	objectPath, err := storage.BuildObjectPath(storage.PurposeVendorDocument, storage.PathParams{
		UserID:   userID,
		UploadID: s.newID(),
		FileName: cmd.FileName,
	})
	if err != nil {
		return VendorDocumentUpload{}, fmt.Errorf("%w: %v", ErrVendorInvalidInput, err)
	}

	result, err := s.signer.SignedURL(ctx, s.uploadBucket, objectPath, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			ContentType:         contentType,
			AllowedContentTypes: vendorDocumentContentTypes,
			MaxSize:             maxVendorDocumentBytes,
			ExpiresIn:           vendorUploadExpiry,
		},
	})
	if err != nil {
		return VendorDocumentUpload{}, fmt.Errorf("%w: %v", ErrVendorInvalidInput, err)
	}

	upload := VendorDocumentUpload{
		ObjectPath: objectPath,
		UploadURL:  result.URL,
		ExpiresAt:  result.ExpiresAt,
		Headers:    result.Headers,
	}
	if s.publicBaseURL != "" {
		upload.PublicURL = s.publicBaseURL + "/" + objectPath
	}
	return upload, nil
}

// Approve grants the applicant the vendor role and archives the submitted
// documents.
func (s *vendorService) Approve(ctx context.Context, cmd VendorDecisionCommand) (VendorApplication, error) {
	application, err := s.decide(ctx, cmd, domain.VendorApplicationApproved)
	if err != nil {
		return VendorApplication{}, err
	}

	if err := s.roles.GrantRole(ctx, application.UserID, vendorRoleName); err != nil {
		s.logger(ctx, "vendor.role_grant_failed", map[string]any{
			"applicationID": application.ID,
			"userID":        application.UserID,
			"error":         err.Error(),
		})
		return VendorApplication{}, ErrVendorUnavailable
	}

	s.archiveDocuments(ctx, application)
	s.recordAudit(ctx, cmd.ActorID, "vendor.application.approved", application.ID, nil)
	return application, nil
}

// Reject declines the application with a reason for the applicant.
func (s *vendorService) Reject(ctx context.Context, cmd VendorDecisionCommand) (VendorApplication, error) {
	if strings.TrimSpace(cmd.Reason) == "" {
		return VendorApplication{}, fmt.Errorf("%w: rejection reason is required", ErrVendorInvalidInput)
	}
	application, err := s.decide(ctx, cmd, domain.VendorApplicationRejected)
	if err != nil {
		return VendorApplication{}, err
	}
	s.recordAudit(ctx, cmd.ActorID, "vendor.application.rejected", application.ID, map[string]any{
		"reason": application.Reason,
	})
	return application, nil
}

func (s *vendorService) decide(ctx context.Context, cmd VendorDecisionCommand, status domain.VendorApplicationStatus) (VendorApplication, error) {
	applicationID := strings.TrimSpace(cmd.ApplicationID)
	actorID := strings.TrimSpace(cmd.ActorID)
	if applicationID == "" || actorID == "" {
		return VendorApplication{}, ErrVendorInvalidInput
	}

	application, err := s.applications.Decide(ctx, applicationID, repositories.VendorDecisionUpdate{
		Status:    status,
		Reason:    strings.TrimSpace(cmd.Reason),
		DecidedBy: actorID,
		DecidedAt: s.clock(),
	})
	if err != nil {
		if isRepoConflict(err) {
			return VendorApplication{}, ErrVendorAlreadyDecided
		}
		return VendorApplication{}, s.mapRepositoryError(err)
	}
	return application, nil
}

func (s *vendorService) archiveDocuments(ctx context.Context, application VendorApplication) {
	if s.copier == nil || s.archiveBucket == "" || s.archiveBucket == s.uploadBucket {
		return
	}
	for _, ref := range application.DocumentRefs {
		if err := s.copier.CopyObject(ctx, s.uploadBucket, ref, s.archiveBucket, ref); err != nil {
			s.logger(ctx, "vendor.document_archive_failed", map[string]any{
				"applicationID": application.ID,
				"object":        ref,
				"error":         err.Error(),
			})
		}
	}
}

func (s *vendorService) recordAudit(ctx context.Context, actorID, action, applicationID string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditLogRecord{
		ActorUID:  strings.TrimSpace(actorID),
		Action:    action,
		TargetRef: "vendorApplications/" + applicationID,
		Detail:    detail,
	})
}

func (s *vendorService) mapRepositoryError(err error) error {
	return translateRepoError(err, ErrVendorNotFound, ErrVendorApplicationExists, ErrVendorUnavailable)
}
