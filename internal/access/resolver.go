// Package access resolves user permissions per tenant from the tiered
// access list document and owns every mutation of that document.
package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
	"tenant-config-service/pkg/logger"
)

// DefaultInitialPassword is assigned to newly granted users until they
// change it.
const DefaultInitialPassword = "changeme123"

// Operator is the actor name for out-of-band administration (the CLI and
// the admin API surface). It passes every capability check without ever
// appearing on an access list.
const Operator = "operator"

// TenantTier pairs a tenant with the tier a user holds on it.
type TenantTier struct {
	TenantID string     `json:"tenant_id"`
	Tier     model.Tier `json:"tier"`
}

// Resolver answers capability queries and maintains access lists. The
// access list is the one shared mutable document per tenant; the expected
// revision check plus a single logic-level retry is the only mutation
// discipline.
type Resolver struct {
	docs store.DocumentStore
}

// NewResolver returns a resolver over the given document store.
func NewResolver(docs store.DocumentStore) *Resolver {
	return &Resolver{docs: docs}
}

// ResolvePermissions computes the effective permission set for email on
// the tenant. Absent entries (or an absent access list) yield the empty
// set: there is no implicit access.
func (r *Resolver) ResolvePermissions(ctx context.Context, tenantID, email string) ([]model.Permission, error) {
	list, _, err := r.loadList(ctx, tenantID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	entry := list.Find(email)
	if entry == nil {
		return nil, nil
	}
	return entry.Tier.Permissions(), nil
}

// Authorize reports whether email holds the capability on the tenant.
func (r *Resolver) Authorize(ctx context.Context, tenantID, email string, capability model.Permission) (bool, error) {
	perms, err := r.ResolvePermissions(ctx, tenantID, email)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == capability {
			return true, nil
		}
	}
	return false, nil
}

// Grant upserts an access entry with the given tier. The actor must hold
// manage_access on the tenant; the tenant's first entry is seeded by the
// onboarding commit, never through Grant. On a revision conflict the upsert
// is re-read and re-applied once before surfacing Conflict.
func (r *Resolver) Grant(ctx context.Context, tenantID, email string, tier model.Tier, actor string) (*model.AccessEntry, error) {
	if err := r.requireCapability(ctx, tenantID, actor, model.PermManageAccess); err != nil {
		return nil, err
	}
	if !model.ValidEmail(email) {
		return nil, &model.ValidationError{Fields: []string{"email"}}
	}

	var granted model.AccessEntry
	err := r.mutateList(ctx, tenantID, actor,
		fmt.Sprintf("Grant %s tier %s", strings.ToLower(email), tier),
		func(list *model.AccessList) error {
			now := time.Now().UTC()
			if entry := list.Find(email); entry != nil {
				entry.Tier = tier
				granted = *entry
				return nil
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(DefaultInitialPassword), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			entry := model.AccessEntry{
				Email:        strings.ToLower(email),
				Tier:         tier,
				Role:         "viewer",
				PasswordHash: string(hash),
				AddedAt:      now,
				AddedBy:      actor,
			}
			list.Users = append(list.Users, entry)
			granted = entry
			return nil
		})
	if err != nil {
		return nil, err
	}
	return &granted, nil
}

// Revoke removes an access entry. Same authorization rule and conflict
// retry as Grant.
func (r *Resolver) Revoke(ctx context.Context, tenantID, email, actor string) error {
	if err := r.requireCapability(ctx, tenantID, actor, model.PermManageAccess); err != nil {
		return err
	}
	return r.mutateList(ctx, tenantID, actor,
		fmt.Sprintf("Revoke %s", strings.ToLower(email)),
		func(list *model.AccessList) error {
			for i := range list.Users {
				if strings.EqualFold(list.Users[i].Email, email) {
					list.Users = append(list.Users[:i], list.Users[i+1:]...)
					return nil
				}
			}
			return fmt.Errorf("user %s on tenant %s: %w", email, tenantID, model.ErrNotFound)
		})
}

// ListTenantsForUser scans every tenant's access list for the email. This
// is the only list-all operation in the engine and is O(tenants); callers
// are expected to cache the result.
func (r *Resolver) ListTenantsForUser(ctx context.Context, email string) ([]TenantTier, error) {
	tenants, err := r.docs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var memberships []TenantTier
	for _, tenantID := range tenants {
		list, _, err := r.loadList(ctx, tenantID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if entry := list.Find(email); entry != nil {
			memberships = append(memberships, TenantTier{TenantID: tenantID, Tier: entry.Tier})
		}
	}
	return memberships, nil
}

// Authenticate verifies the user's password on a tenant. It returns the
// matching entry so callers can mint a token carrying the tier.
func (r *Resolver) Authenticate(ctx context.Context, tenantID, email, password string) (*model.AccessEntry, error) {
	list, _, err := r.loadList(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	entry := list.Find(email)
	if entry == nil {
		return nil, fmt.Errorf("user %s on tenant %s: %w", email, tenantID, model.ErrNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(entry.PasswordHash), []byte(password)); err != nil {
		return nil, &model.UnauthorizedError{TenantID: tenantID, Email: email}
	}
	return entry, nil
}

// ChangePassword rotates a user's own password after verifying the old
// one.
func (r *Resolver) ChangePassword(ctx context.Context, tenantID, email, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return &model.ValidationError{Fields: []string{"new_password"}}
	}
	if _, err := r.Authenticate(ctx, tenantID, email, oldPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return r.mutateList(ctx, tenantID, email, fmt.Sprintf("Password change for %s", strings.ToLower(email)),
		func(list *model.AccessList) error {
			entry := list.Find(email)
			if entry == nil {
				return fmt.Errorf("user %s on tenant %s: %w", email, tenantID, model.ErrNotFound)
			}
			entry.PasswordHash = string(hash)
			return nil
		})
}

func (r *Resolver) requireCapability(ctx context.Context, tenantID, actor string, capability model.Permission) error {
	if actor == Operator {
		return nil
	}
	ok, err := r.Authorize(ctx, tenantID, actor, capability)
	if err != nil {
		return err
	}
	if !ok {
		return &model.UnauthorizedError{TenantID: tenantID, Email: actor, Capability: capability}
	}
	return nil
}

func (r *Resolver) loadList(ctx context.Context, tenantID string) (*model.AccessList, string, error) {
	doc, err := r.docs.Read(ctx, tenantID, model.KindAccessList)
	if err != nil {
		return nil, "", err
	}
	var list model.AccessList
	if err := json.Unmarshal(doc.Content, &list); err != nil {
		return nil, "", fmt.Errorf("tenant %s: decode access list: %w", tenantID, err)
	}
	return &list, doc.RevisionID, nil
}

// mutateList re-reads and re-applies the caller's diff once on Conflict,
// then surfaces the conflict rather than retrying forever against a hot
// document.
func (r *Resolver) mutateList(ctx context.Context, tenantID, author, message string, apply func(*model.AccessList) error) error {
	log := logger.FromContext(ctx)
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		list, revision, err := r.loadList(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := apply(list); err != nil {
			return err
		}
		content, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("tenant %s: encode access list: %w", tenantID, err)
		}
		_, err = r.docs.Write(ctx, store.WriteRequest{
			TenantID:         tenantID,
			Kind:             model.KindAccessList,
			Content:          content,
			ExpectedRevision: revision,
			Author:           author,
			Message:          message,
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return err
		}
		lastErr = err
		log.Warn("Access list write conflicted, re-applying",
			zap.String("tenant_id", tenantID),
			zap.String("author", author))
	}
	return lastErr
}
