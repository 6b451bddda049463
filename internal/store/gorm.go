package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"tenant-config-service/internal/model"
)

// DocumentRecord is the head row per (tenant, kind) pair. The unique index
// enforces first-write semantics; the current_revision column carries the
// optimistic concurrency check.
type DocumentRecord struct {
	ID              uint      `gorm:"primaryKey"`
	TenantID        string    `gorm:"type:varchar(64);uniqueIndex:idx_documents_tenant_kind;index"`
	Kind            string    `gorm:"type:varchar(32);uniqueIndex:idx_documents_tenant_kind"`
	CurrentRevision string    `gorm:"type:varchar(36);not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RevisionRecord is one immutable revision in a document's history.
type RevisionRecord struct {
	ID         uint      `gorm:"primaryKey"`
	TenantID   string    `gorm:"type:varchar(64);index:idx_revisions_doc"`
	Kind       string    `gorm:"type:varchar(32);index:idx_revisions_doc"`
	RevisionID string    `gorm:"type:varchar(36);uniqueIndex"`
	Content    string    `gorm:"type:jsonb"`
	Author     string    `gorm:"type:varchar(100)"`
	Message    string    `gorm:"type:text"`
	CreatedAt  time.Time
}

const (
	writeAttempts  = 3
	initialBackoff = 250 * time.Millisecond
)

// GormStore is the PostgreSQL-backed DocumentStore.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialized gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Read(ctx context.Context, tenantID string, kind model.DocumentKind) (*model.Document, error) {
	var doc *model.Document
	err := s.withRetry(ctx, func() error {
		var head DocumentRecord
		result := s.db.WithContext(ctx).
			Where("tenant_id = ? AND kind = ?", tenantID, string(kind)).
			First(&head)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("document %s/%s: %w", tenantID, kind, model.ErrNotFound)
		}
		if result.Error != nil {
			return result.Error
		}

		var rev RevisionRecord
		result = s.db.WithContext(ctx).
			Where("revision_id = ?", head.CurrentRevision).
			First(&rev)
		if result.Error != nil {
			return result.Error
		}

		doc = &model.Document{
			TenantID:   tenantID,
			Kind:       kind,
			Content:    json.RawMessage(rev.Content),
			RevisionID: rev.RevisionID,
			Author:     rev.Author,
			Message:    rev.Message,
			Timestamp:  rev.CreatedAt,
		}
		return nil
	})
	return doc, err
}

func (s *GormStore) Write(ctx context.Context, req WriteRequest) (string, error) {
	revisionID := uuid.NewString()
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if req.ExpectedRevision == RevisionNone {
				// First-write: the unique index on (tenant_id, kind) rejects
				// a concurrent creator. The violation must be classified from
				// the Create error itself; the transaction is aborted at that
				// point and no further query inside it can succeed.
				head := DocumentRecord{
					TenantID:        req.TenantID,
					Kind:            string(req.Kind),
					CurrentRevision: revisionID,
				}
				if err := tx.Create(&head).Error; err != nil {
					if isUniqueViolation(err) {
						return fmt.Errorf("document %s/%s: %w", req.TenantID, req.Kind, model.ErrAlreadyExists)
					}
					return err
				}
			} else {
				// Optimistic update: succeeds only if the caller's expected
				// revision is still current.
				result := tx.Model(&DocumentRecord{}).
					Where("tenant_id = ? AND kind = ? AND current_revision = ?",
						req.TenantID, string(req.Kind), req.ExpectedRevision).
					Update("current_revision", revisionID)
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					var existing DocumentRecord
					err := tx.Where("tenant_id = ? AND kind = ?", req.TenantID, string(req.Kind)).
						First(&existing).Error
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("document %s/%s: %w", req.TenantID, req.Kind, model.ErrNotFound)
					}
					if err != nil {
						return err
					}
					return fmt.Errorf("document %s/%s: expected revision %s: %w",
						req.TenantID, req.Kind, req.ExpectedRevision, model.ErrConflict)
				}
			}

			rev := RevisionRecord{
				TenantID:   req.TenantID,
				Kind:       string(req.Kind),
				RevisionID: revisionID,
				Content:    string(req.Content),
				Author:     req.Author,
				Message:    req.Message,
			}
			return tx.Create(&rev).Error
		})
	})
	if err != nil {
		return "", err
	}
	return revisionID, nil
}

func (s *GormStore) History(ctx context.Context, tenantID string, kind model.DocumentKind, limit int) ([]model.RevisionMeta, error) {
	var metas []model.RevisionMeta
	err := s.withRetry(ctx, func() error {
		var head DocumentRecord
		result := s.db.WithContext(ctx).
			Where("tenant_id = ? AND kind = ?", tenantID, string(kind)).
			First(&head)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("document %s/%s: %w", tenantID, kind, model.ErrNotFound)
		}
		if result.Error != nil {
			return result.Error
		}

		query := s.db.WithContext(ctx).
			Where("tenant_id = ? AND kind = ?", tenantID, string(kind)).
			Order("id DESC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		var revs []RevisionRecord
		if err := query.Find(&revs).Error; err != nil {
			return err
		}

		metas = make([]model.RevisionMeta, 0, len(revs))
		for _, rev := range revs {
			metas = append(metas, model.RevisionMeta{
				RevisionID: rev.RevisionID,
				Author:     rev.Author,
				Message:    rev.Message,
				Timestamp:  rev.CreatedAt,
			})
		}
		return nil
	})
	return metas, err
}

func (s *GormStore) ReadAt(ctx context.Context, tenantID string, kind model.DocumentKind, revisionID string) (json.RawMessage, error) {
	var content json.RawMessage
	err := s.withRetry(ctx, func() error {
		var rev RevisionRecord
		result := s.db.WithContext(ctx).
			Where("tenant_id = ? AND kind = ? AND revision_id = ?", tenantID, string(kind), revisionID).
			First(&rev)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("document %s/%s revision %s: %w", tenantID, kind, revisionID, model.ErrNotFound)
		}
		if result.Error != nil {
			return result.Error
		}
		content = json.RawMessage(rev.Content)
		return nil
	})
	return content, err
}

func (s *GormStore) List(ctx context.Context, prefix string) ([]string, error) {
	var tenants []string
	err := s.withRetry(ctx, func() error {
		query := s.db.WithContext(ctx).
			Model(&DocumentRecord{}).
			Distinct("tenant_id").
			Order("tenant_id")
		if prefix != "" {
			query = query.Where("tenant_id LIKE ?", prefix+"%")
		}
		return query.Pluck("tenant_id", &tenants).Error
	})
	return tenants, err
}

func (s *GormStore) Remove(ctx context.Context, tenantID string, kind model.DocumentKind) error {
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Where("tenant_id = ? AND kind = ?", tenantID, string(kind)).
				Delete(&DocumentRecord{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("document %s/%s: %w", tenantID, kind, model.ErrNotFound)
			}
			return tx.Where("tenant_id = ? AND kind = ?", tenantID, string(kind)).
				Delete(&RevisionRecord{}).Error
		})
	})
}

// withRetry retries transient backend failures with exponential backoff
// before surfacing Unavailable. Taxonomy errors and context cancellation
// are never retried.
func (s *GormStore) withRetry(ctx context.Context, op func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		err = op()
		if err == nil || !transient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("backing store unreachable after %d attempts: %v: %w", writeAttempts, err, model.ErrUnavailable)
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func transient(err error) bool {
	switch {
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrAlreadyExists),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
