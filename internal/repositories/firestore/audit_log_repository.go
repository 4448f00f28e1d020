package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	pfirestore "github.com/daniyalaisha/syriamall-sub001/internal/platform/firestore"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const auditLogCollection = "auditLogs"

// AuditLogRepository persists append-only audit entries.
type AuditLogRepository struct {
	provider *pfirestore.Provider
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	return &AuditLogRepository{provider: provider}, nil
}

// Append writes the entry; entries are never updated or deleted.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLog) error {
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return errors.New("audit log repository: entry id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	doc := auditLogDocument{
		ActorUID:  entry.ActorUID,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Detail:    entry.Detail,
		CreatedAt: entry.CreatedAt.UTC(),
	}
	if _, err := client.Collection(auditLogCollection).Doc(id).Create(ctx, doc); err != nil {
		return pfirestore.WrapError("auditLogs.append", err)
	}
	return nil
}

// List returns a page of entries matching the filter, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLog], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.AuditLog]{}, err
	}

	query := client.Collection(auditLogCollection).Query
	if target := strings.TrimSpace(filter.TargetRef); target != "" {
		query = query.Where("targetRef", "==", target)
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		query = query.Where("actorUid", "==", actor)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action", "==", action)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
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
			return domain.CursorPage[domain.AuditLog]{}, fmt.Errorf("auditLogs.list: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []domain.AuditLog
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.AuditLog]{}, pfirestore.WrapError("auditLogs.list", err)
		}
		var doc auditLogDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.AuditLog]{}, fmt.Errorf("decode audit log %s: %w", snap.Ref.ID, err)
		}
		entries = append(entries, domain.AuditLog{
			ID:        snap.Ref.ID,
			ActorUID:  doc.ActorUID,
			Action:    doc.Action,
			TargetRef: doc.TargetRef,
			Detail:    doc.Detail,
			CreatedAt: doc.CreatedAt,
		})
	}

	nextToken := ""
	if limit > 0 && len(entries) == fetchLimit {
		last := entries[len(entries)-1]
		nextToken = encodeCatalogToken(last.CreatedAt, last.ID)
		entries = entries[:len(entries)-1]
	}

	return domain.CursorPage[domain.AuditLog]{
		Items:         entries,
		NextPageToken: nextToken,
	}, nil
}

type auditLogDocument struct {
	ActorUID  string         `firestore:"actorUid"`
	Action    string         `firestore:"action"`
	TargetRef string         `firestore:"targetRef"`
	Detail    map[string]any `firestore:"detail,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

// Ensure interface compliance.
var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
