package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bloomfield/api/internal/domain"
	pfirestore "github.com/bloomfield/api/internal/platform/firestore"
	"github.com/bloomfield/api/internal/repositories"
)

const auditLogsCollection = "auditLogs"

// AuditLogRepository appends immutable audit entries. Documents are never
// updated or deleted once written.
type AuditLogRepository struct {
	provider *pfirestore.Provider
	entries  *pfirestore.BaseRepository[auditLogDocument]
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	return &AuditLogRepository{
		provider: provider,
		entries:  pfirestore.NewBaseRepository[auditLogDocument](provider, auditLogsCollection, nil, nil),
	}, nil
}

// Append writes a new audit entry.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if r == nil || r.entries == nil {
		return errors.New("audit log repository not initialised")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return errors.New("audit log repository: entry id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(auditLogsCollection).Doc(id).Create(ctx, auditLogToDocument(entry))
	return pfirestore.WrapError("auditLogs.append", err)
}

// List returns a page of audit entries newest first.
func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.Page[domain.AuditLogEntry], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.AuditLogEntry]{}, errors.New("audit log repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.AuditLogEntry]{}, err
	}

	query := client.Collection(auditLogsCollection).Query
	if target := strings.TrimSpace(filter.TargetRef); target != "" {
		query = query.Where("targetRef", "==", target)
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		query = query.Where("actor", "==", actor)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action", "==", action)
	}

	total, err := countDocuments(ctx, query)
	if err != nil {
		return domain.Page[domain.AuditLogEntry]{}, pfirestore.WrapError("auditLogs.count", err)
	}

	pager := normalisePager(filter.Pagination)
	query = query.OrderBy("createdAt", firestore.Desc).
		Offset(pagerOffset(pager)).
		Limit(pager.Limit)

	docs, err := r.entries.Query(ctx, func(firestore.Query) firestore.Query { return query })
	if err != nil {
		return domain.Page[domain.AuditLogEntry]{}, err
	}

	items := make([]domain.AuditLogEntry, 0, len(docs))
	for _, doc := range docs {
		items = append(items, auditLogFromDocument(doc.ID, doc.Data))
	}
	return newPage(items, pager, total), nil
}

type auditLogDocument struct {
	Actor     string         `firestore:"actor"`
	ActorType string         `firestore:"actorType"`
	Action    string         `firestore:"action"`
	TargetRef string         `firestore:"targetRef"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	Severity  string         `firestore:"severity,omitempty"`
	RequestID string         `firestore:"requestId,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

func auditLogToDocument(entry domain.AuditLogEntry) auditLogDocument {
	return auditLogDocument{
		Actor:     entry.Actor,
		ActorType: entry.ActorType,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Metadata:  entry.Metadata,
		Severity:  entry.Severity,
		RequestID: entry.RequestID,
		CreatedAt: entry.CreatedAt.UTC(),
	}
}

func auditLogFromDocument(id string, doc auditLogDocument) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:        id,
		Actor:     doc.Actor,
		ActorType: doc.ActorType,
		Action:    doc.Action,
		TargetRef: doc.TargetRef,
		Metadata:  doc.Metadata,
		Severity:  doc.Severity,
		RequestID: doc.RequestID,
		CreatedAt: doc.CreatedAt,
	}
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
