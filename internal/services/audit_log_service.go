package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const (
	auditLogIDPrefix        = "log_"
	maxAuditActionLength    = 120
	maxAuditTargetRefLength = 200
	defaultAuditPageSize    = 50
)

// ErrAuditLogInvalidInput indicates an unusable audit log query.
var ErrAuditLogInvalidInput = errors.New("audit log service: invalid input")

// ErrAuditLogUnavailable indicates the audit backend cannot fulfil the request.
var ErrAuditLogUnavailable = errors.New("audit log service: unavailable")

// AuditLogServiceDeps bundles constructor inputs for the audit writer service.
type AuditLogServiceDeps struct {
	Repository  repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type auditLogService struct {
	repo   repositories.AuditLogRepository
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewAuditLogService creates an audit log writer backed by the supplied repository.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Repository == nil {
		return nil, errors.New("audit log service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &auditLogService{
		repo:   deps.Repository,
		clock:  func() time.Time { return clock().UTC() },
		newID:  newID,
		logger: logger,
	}, nil
}

// Record appends an audit entry. Persistence failures are logged but never
// returned, so that a broken audit trail does not block the primary mutation.
func (s *auditLogService) Record(ctx context.Context, record AuditLogRecord) {
	action := truncate(strings.TrimSpace(record.Action), maxAuditActionLength)
	if action == "" {
		return
	}

	entry := domain.AuditLog{
		ID:        auditLogIDPrefix + s.newID(),
		ActorUID:  strings.TrimSpace(record.ActorUID),
		Action:    action,
		TargetRef: truncate(strings.TrimSpace(record.TargetRef), maxAuditTargetRefLength),
		Detail:    record.Detail,
		CreatedAt: s.clock(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger(ctx, "audit.append_failed", map[string]any{
			"action":     entry.Action,
			"target_ref": entry.TargetRef,
			"error":      err.Error(),
		})
	}
}

// List retrieves a page of audit entries matching the filter.
func (s *auditLogService) List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLog], error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultAuditPageSize
	}

	dateRange := domain.RangeQuery[time.Time]{From: filter.From, To: filter.To}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return domain.CursorPage[AuditLog]{}, ErrAuditLogInvalidInput
	}

	page, err := s.repo.List(ctx, repositories.AuditLogFilter{
		TargetRef: strings.TrimSpace(filter.TargetRef),
		Actor:     strings.TrimSpace(filter.Actor),
		Action:    strings.TrimSpace(filter.Action),
		DateRange: dateRange,
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: filter.PageToken,
		},
	})
	if err != nil {
		return domain.CursorPage[AuditLog]{}, translateRepoError(err, ErrAuditLogInvalidInput, ErrAuditLogInvalidInput, ErrAuditLogUnavailable)
	}
	return page, nil
}

func truncate(input string, limit int) string {
	if len(input) <= limit {
		return input
	}
	return input[:limit]
}
