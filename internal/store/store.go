// Package store provides the versioned document store backing every tenant
// document. All mutation goes through Write with an expected-revision check
// so concurrent editors cannot silently clobber each other.
package store

import (
	"context"
	"encoding/json"

	"tenant-config-service/internal/model"
)

// RevisionNone is the expected-revision sentinel requiring first-write
// semantics: the write fails with AlreadyExists if the document exists.
const RevisionNone = ""

// WriteRequest describes one document write.
type WriteRequest struct {
	TenantID         string
	Kind             model.DocumentKind
	Content          json.RawMessage
	ExpectedRevision string
	Author           string
	Message          string
}

// DocumentStore is the versioned document store contract. Every write
// produces a new immutable revision; each (tenant, kind) pair has exactly
// one current revision and all prior revisions stay retrievable.
type DocumentStore interface {
	// Read returns the current revision of a document. Fails with NotFound
	// if the tenant or kind has never been written.
	Read(ctx context.Context, tenantID string, kind model.DocumentKind) (*model.Document, error)

	// Write atomically advances the current revision and appends to
	// history. Fails with Conflict if ExpectedRevision does not match the
	// current revision, or AlreadyExists when ExpectedRevision is
	// RevisionNone and the document already exists.
	Write(ctx context.Context, req WriteRequest) (string, error)

	// History returns revision metadata newest first, at most limit
	// entries.
	History(ctx context.Context, tenantID string, kind model.DocumentKind, limit int) ([]model.RevisionMeta, error)

	// ReadAt returns the content of a specific revision.
	ReadAt(ctx context.Context, tenantID string, kind model.DocumentKind, revisionID string) (json.RawMessage, error)

	// List returns the tenant IDs known to the store whose ID starts with
	// prefix. An empty prefix lists everything.
	List(ctx context.Context, prefix string) ([]string, error)

	// Remove deletes a document and its history. It exists solely for
	// compensating rollback of a failed multi-document commit; normal
	// deactivation is a status flag on the profile document.
	Remove(ctx context.Context, tenantID string, kind model.DocumentKind) error
}

// SessionStore persists onboarding sessions. Sessions live outside the
// document store so draft tenants never show up in List.
type SessionStore interface {
	Create(ctx context.Context, session *model.OnboardingSession) error
	Get(ctx context.Context, token string) (*model.OnboardingSession, error)
	Update(ctx context.Context, session *model.OnboardingSession) error
	List(ctx context.Context) ([]model.OnboardingSession, error)
	Delete(ctx context.Context, token string) error
}
