package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

type memoryVendorRepo struct {
	store map[string]domain.VendorApplication
}

func newMemoryVendorRepo() *memoryVendorRepo {
	return &memoryVendorRepo{store: make(map[string]domain.VendorApplication)}
}

func (m *memoryVendorRepo) Insert(_ context.Context, application domain.VendorApplication) error {
	for _, existing := range m.store {
		if existing.UserID != application.UserID {
			continue
		}
		if existing.Status == domain.VendorApplicationPending || existing.Status == domain.VendorApplicationApproved {
			return repoConflict("vendor application already exists")
		}
	}
	m.store[application.ID] = application
	return nil
}

func (m *memoryVendorRepo) FindByID(_ context.Context, applicationID string) (domain.VendorApplication, error) {
	application, ok := m.store[applicationID]
	if !ok {
		return domain.VendorApplication{}, repoNotFound("vendor application %s not found", applicationID)
	}
	return application, nil
}

func (m *memoryVendorRepo) FindByUser(_ context.Context, userID string) (domain.VendorApplication, error) {
	var candidates []domain.VendorApplication
	for _, application := range m.store {
		if application.UserID == userID {
			candidates = append(candidates, application)
		}
	}
	if len(candidates) == 0 {
		return domain.VendorApplication{}, repoNotFound("vendor application for %s not found", userID)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.After(candidates[j].CreatedAt) })
	return candidates[0], nil
}

func (m *memoryVendorRepo) List(_ context.Context, filter repositories.VendorApplicationListFilter) (domain.CursorPage[domain.VendorApplication], error) {
	var applications []domain.VendorApplication
	for _, application := range m.store {
		if len(filter.Status) > 0 && !statusInList(string(application.Status), filter.Status) {
			continue
		}
		applications = append(applications, application)
	}
	sort.Slice(applications, func(i, j int) bool { return applications[i].CreatedAt.After(applications[j].CreatedAt) })
	return domain.CursorPage[domain.VendorApplication]{Items: applications}, nil
}

func statusInList(status string, list []string) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func (m *memoryVendorRepo) Decide(_ context.Context, applicationID string, decision repositories.VendorDecisionUpdate) (domain.VendorApplication, error) {
	application, ok := m.store[applicationID]
	if !ok {
		return domain.VendorApplication{}, repoNotFound("vendor application %s not found", applicationID)
	}
	if application.Status != domain.VendorApplicationPending {
		return domain.VendorApplication{}, repoConflict("vendor application already decided")
	}
	decidedAt := decision.DecidedAt
	application.Status = decision.Status
	application.Reason = decision.Reason
	application.DecidedBy = decision.DecidedBy
	application.DecidedAt = &decidedAt
	application.UpdatedAt = decidedAt
	m.store[applicationID] = application
	return application, nil
}

type recordingRoleGranter struct {
	grants map[string]string
	fail   bool
}

func (r *recordingRoleGranter) GrantRole(_ context.Context, uid, role string) error {
	if r.fail {
		return errors.New("claims backend down")
	}
	if r.grants == nil {
		r.grants = make(map[string]string)
	}
	r.grants[uid] = role
	return nil
}

type recordingCopier struct {
	copies []string
}

func (r *recordingCopier) CopyObject(_ context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	r.copies = append(r.copies, fmt.Sprintf("%s/%s -> %s/%s", srcBucket, srcObject, dstBucket, dstObject))
	return nil
}

type vendorFixture struct {
	repo   *memoryVendorRepo
	roles  *recordingRoleGranter
	copier *recordingCopier
	svc    VendorService
}

func newVendorFixture(t *testing.T) *vendorFixture {
	t.Helper()
	f := &vendorFixture{
		repo:   newMemoryVendorRepo(),
		roles:  &recordingRoleGranter{},
		copier: &recordingCopier{},
	}
	seq := 0
	svc, err := NewVendorService(VendorServiceDeps{
		Applications:  f.repo,
		Roles:         f.roles,
		Copier:        f.copier,
		UploadBucket:  "uploads",
		ArchiveBucket: "archive",
		Clock:         testClock(),
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("%04d", seq)
		},
	})
	if err != nil {
		t.Fatalf("NewVendorService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *vendorFixture) apply(t *testing.T, userID string) VendorApplication {
	t.Helper()
	application, err := f.svc.Apply(context.Background(), VendorApplyCommand{
		UserID:    userID,
		StoreName: "Damascus Crafts",
		Phone:     "0999000000",
		City:      "Damascus",
		DocumentRefs: []string{
			"assets/vendors/" + userID + "/documents/up1/licence.pdf",
		},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return application
}

func TestVendorServiceApplyRejectsSecondLiveApplication(t *testing.T) {
	f := newVendorFixture(t)
	f.apply(t, "u1")

	_, err := f.svc.Apply(context.Background(), VendorApplyCommand{
		UserID:    "u1",
		StoreName: "Second Store",
		Phone:     "0999000001",
	})
	if !errors.Is(err, ErrVendorApplicationExists) {
		t.Fatalf("expected ErrVendorApplicationExists, got %v", err)
	}
}

func TestVendorServiceApplyValidation(t *testing.T) {
	f := newVendorFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Apply(ctx, VendorApplyCommand{UserID: "u1", Phone: "0999"}); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected ErrVendorInvalidInput for missing store name, got %v", err)
	}
	if _, err := f.svc.Apply(ctx, VendorApplyCommand{UserID: "u1", StoreName: "Store"}); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected ErrVendorInvalidInput for missing phone, got %v", err)
	}
	if _, err := f.svc.Apply(ctx, VendorApplyCommand{
		UserID:       "u1",
		StoreName:    "Store",
		Phone:        "0999",
		DocumentRefs: []string{"assets/vendors/other/documents/up1/file.pdf"},
	}); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected ErrVendorInvalidInput for foreign document ref, got %v", err)
	}
}

func TestVendorServiceApproveGrantsRoleAndArchives(t *testing.T) {
	f := newVendorFixture(t)
	application := f.apply(t, "u1")

	approved, err := f.svc.Approve(context.Background(), VendorDecisionCommand{
		ApplicationID: application.ID,
		ActorID:       "admin1",
	})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != domain.VendorApplicationApproved || approved.DecidedBy != "admin1" {
		t.Fatalf("unexpected application %+v", approved)
	}
	if f.roles.grants["u1"] != "vendor" {
		t.Fatalf("expected vendor role granted, got %+v", f.roles.grants)
	}
	if len(f.copier.copies) != 1 {
		t.Fatalf("expected one archived document, got %v", f.copier.copies)
	}
}

func TestVendorServiceRejectRequiresReason(t *testing.T) {
	f := newVendorFixture(t)
	application := f.apply(t, "u1")
	ctx := context.Background()

	if _, err := f.svc.Reject(ctx, VendorDecisionCommand{ApplicationID: application.ID, ActorID: "admin1"}); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected ErrVendorInvalidInput, got %v", err)
	}

	rejected, err := f.svc.Reject(ctx, VendorDecisionCommand{
		ApplicationID: application.ID,
		ActorID:       "admin1",
		Reason:        "incomplete documents",
	})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != domain.VendorApplicationRejected || rejected.Reason != "incomplete documents" {
		t.Fatalf("unexpected application %+v", rejected)
	}
	if len(f.roles.grants) != 0 {
		t.Fatalf("expected no role grant on rejection, got %+v", f.roles.grants)
	}
}

func TestVendorServiceDecideTwiceConflicts(t *testing.T) {
	f := newVendorFixture(t)
	application := f.apply(t, "u1")
	ctx := context.Background()

	if _, err := f.svc.Approve(ctx, VendorDecisionCommand{ApplicationID: application.ID, ActorID: "admin1"}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := f.svc.Reject(ctx, VendorDecisionCommand{
		ApplicationID: application.ID,
		ActorID:       "admin1",
		Reason:        "changed my mind",
	}); !errors.Is(err, ErrVendorAlreadyDecided) {
		t.Fatalf("expected ErrVendorAlreadyDecided, got %v", err)
	}
}

func TestVendorServiceApproveSurfacesRoleFailure(t *testing.T) {
	f := newVendorFixture(t)
	application := f.apply(t, "u1")
	f.roles.fail = true

	if _, err := f.svc.Approve(context.Background(), VendorDecisionCommand{
		ApplicationID: application.ID,
		ActorID:       "admin1",
	}); !errors.Is(err, ErrVendorUnavailable) {
		t.Fatalf("expected ErrVendorUnavailable, got %v", err)
	}
}
