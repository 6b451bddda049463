// Package registry is a thin index over the document store enumerating
// tenants and their profile summary. It owns status changes; tenants are
// deactivated by flag, never deleted.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
	"tenant-config-service/pkg/logger"
)

// TenantInfo is the summary row for one tenant.
type TenantInfo struct {
	TenantID         string             `json:"tenant_id"`
	Status           model.TenantStatus `json:"status"`
	ContactName      string             `json:"contact_name,omitempty"`
	ContactEmail     string             `json:"contact_email,omitempty"`
	SubscriptionTier model.Tier         `json:"subscription_tier,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Registry enumerates and administers tenants through their profile
// documents.
type Registry struct {
	docs store.DocumentStore
}

// New returns a registry over the given document store.
func New(docs store.DocumentStore) *Registry {
	return &Registry{docs: docs}
}

// List returns a summary for every tenant known to the store. Tenants
// whose profile document is missing report Pending.
func (r *Registry) List(ctx context.Context) ([]TenantInfo, error) {
	tenants, err := r.docs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	infos := make([]TenantInfo, 0, len(tenants))
	for _, tenantID := range tenants {
		info, err := r.Info(ctx, tenantID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				infos = append(infos, TenantInfo{TenantID: tenantID, Status: model.StatusPending})
				continue
			}
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// Info returns the summary for one tenant.
func (r *Registry) Info(ctx context.Context, tenantID string) (*TenantInfo, error) {
	profile, err := r.loadProfile(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &TenantInfo{
		TenantID:         tenantID,
		Status:           profile.Status,
		ContactName:      profile.ContactName,
		ContactEmail:     profile.ContactEmail,
		SubscriptionTier: profile.SubscriptionTier,
		CreatedAt:        profile.StartDate,
	}, nil
}

// SetStatus flips the tenant's lifecycle flag on the profile document,
// re-applying once on a revision conflict.
func (r *Registry) SetStatus(ctx context.Context, tenantID string, status model.TenantStatus, actor string) error {
	log := logger.FromContext(ctx)
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		doc, err := r.docs.Read(ctx, tenantID, model.KindProfile)
		if err != nil {
			return err
		}
		var profile model.Profile
		if err := json.Unmarshal(doc.Content, &profile); err != nil {
			return fmt.Errorf("tenant %s: decode profile: %w", tenantID, err)
		}
		profile.Status = status
		content, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("tenant %s: encode profile: %w", tenantID, err)
		}
		_, err = r.docs.Write(ctx, store.WriteRequest{
			TenantID:         tenantID,
			Kind:             model.KindProfile,
			Content:          content,
			ExpectedRevision: doc.RevisionID,
			Author:           actor,
			Message:          fmt.Sprintf("Set status to %s", status),
		})
		if err == nil {
			log.Info("Tenant status changed",
				zap.String("tenant_id", tenantID),
				zap.String("status", string(status)),
				zap.String("actor", actor))
			return nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (r *Registry) loadProfile(ctx context.Context, tenantID string) (*model.Profile, error) {
	doc, err := r.docs.Read(ctx, tenantID, model.KindProfile)
	if err != nil {
		return nil, err
	}
	var profile model.Profile
	if err := json.Unmarshal(doc.Content, &profile); err != nil {
		return nil, fmt.Errorf("tenant %s: decode profile: %w", tenantID, err)
	}
	return &profile, nil
}
