package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tenant-config-service/internal/model"
)

// MemoryStore is an embedded DocumentStore keeping full revision history in
// process memory. It backs tests and the STORE_DRIVER=memory configuration.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*memoryDoc
}

type memoryDoc struct {
	tenantID  string
	kind      model.DocumentKind
	current   string
	revisions []memoryRevision // oldest first
}

type memoryRevision struct {
	revisionID string
	content    []byte
	author     string
	message    string
	timestamp  time.Time
}

// NewMemoryStore returns an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*memoryDoc)}
}

func docKey(tenantID string, kind model.DocumentKind) string {
	return tenantID + "/" + string(kind)
}

func (s *MemoryStore) Read(ctx context.Context, tenantID string, kind model.DocumentKind) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey(tenantID, kind)]
	if !ok {
		return nil, fmt.Errorf("document %s/%s: %w", tenantID, kind, model.ErrNotFound)
	}
	head := doc.revisions[len(doc.revisions)-1]
	return &model.Document{
		TenantID:   tenantID,
		Kind:       kind,
		Content:    append([]byte(nil), head.content...),
		RevisionID: head.revisionID,
		Author:     head.author,
		Message:    head.message,
		Timestamp:  head.timestamp,
	}, nil
}

func (s *MemoryStore) Write(ctx context.Context, req WriteRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey(req.TenantID, req.Kind)
	doc, exists := s.docs[key]

	switch {
	case req.ExpectedRevision == RevisionNone && exists:
		return "", fmt.Errorf("document %s/%s: %w", req.TenantID, req.Kind, model.ErrAlreadyExists)
	case req.ExpectedRevision != RevisionNone && !exists:
		return "", fmt.Errorf("document %s/%s: %w", req.TenantID, req.Kind, model.ErrNotFound)
	case exists && doc.current != req.ExpectedRevision:
		return "", fmt.Errorf("document %s/%s: expected revision %s: %w",
			req.TenantID, req.Kind, req.ExpectedRevision, model.ErrConflict)
	}

	if !exists {
		doc = &memoryDoc{tenantID: req.TenantID, kind: req.Kind}
		s.docs[key] = doc
	}

	rev := memoryRevision{
		revisionID: uuid.NewString(),
		content:    append([]byte(nil), req.Content...),
		author:     req.Author,
		message:    req.Message,
		timestamp:  time.Now().UTC(),
	}
	doc.revisions = append(doc.revisions, rev)
	doc.current = rev.revisionID
	return rev.revisionID, nil
}

func (s *MemoryStore) History(ctx context.Context, tenantID string, kind model.DocumentKind, limit int) ([]model.RevisionMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey(tenantID, kind)]
	if !ok {
		return nil, fmt.Errorf("document %s/%s: %w", tenantID, kind, model.ErrNotFound)
	}

	metas := make([]model.RevisionMeta, 0, len(doc.revisions))
	for i := len(doc.revisions) - 1; i >= 0; i-- {
		if limit > 0 && len(metas) >= limit {
			break
		}
		rev := doc.revisions[i]
		metas = append(metas, model.RevisionMeta{
			RevisionID: rev.revisionID,
			Author:     rev.author,
			Message:    rev.message,
			Timestamp:  rev.timestamp,
		})
	}
	return metas, nil
}

func (s *MemoryStore) ReadAt(ctx context.Context, tenantID string, kind model.DocumentKind, revisionID string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docKey(tenantID, kind)]
	if !ok {
		return nil, fmt.Errorf("document %s/%s: %w", tenantID, kind, model.ErrNotFound)
	}
	for _, rev := range doc.revisions {
		if rev.revisionID == revisionID {
			return append([]byte(nil), rev.content...), nil
		}
	}
	return nil, fmt.Errorf("document %s/%s revision %s: %w", tenantID, kind, revisionID, model.ErrNotFound)
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, doc := range s.docs {
		if strings.HasPrefix(doc.tenantID, prefix) {
			seen[doc.tenantID] = struct{}{}
		}
	}
	tenants := make([]string, 0, len(seen))
	for id := range seen {
		tenants = append(tenants, id)
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (s *MemoryStore) Remove(ctx context.Context, tenantID string, kind model.DocumentKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey(tenantID, kind)
	if _, ok := s.docs[key]; !ok {
		return fmt.Errorf("document %s/%s: %w", tenantID, kind, model.ErrNotFound)
	}
	delete(s.docs, key)
	return nil
}
