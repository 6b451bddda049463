package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
)

func seedProfile(t *testing.T, docs store.DocumentStore, tenantID string, status model.TenantStatus) {
	t.Helper()
	raw, err := json.Marshal(model.Profile{
		ContactName:      "Jordan Li",
		ContactEmail:     "jordan@" + tenantID + ".example.com",
		SubscriptionTier: model.TierStandard,
		Status:           status,
		StartDate:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = docs.Write(context.Background(), store.WriteRequest{
		TenantID:         tenantID,
		Kind:             model.KindProfile,
		Content:          raw,
		ExpectedRevision: store.RevisionNone,
		Author:           "onboarding",
	})
	require.NoError(t, err)
}

func TestListReportsStatusAndPendingFallback(t *testing.T) {
	docs := store.NewMemoryStore()
	reg := New(docs)
	ctx := context.Background()

	seedProfile(t, docs, "acme", model.StatusActive)
	seedProfile(t, docs, "zen", model.StatusSuspended)

	// A tenant with documents but no profile yet reads as Pending.
	_, err := docs.Write(ctx, store.WriteRequest{
		TenantID:         "halfway",
		Kind:             model.KindBranding,
		Content:          json.RawMessage(`{}`),
		ExpectedRevision: store.RevisionNone,
	})
	require.NoError(t, err)

	infos, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "acme", infos[0].TenantID)
	assert.Equal(t, model.StatusActive, infos[0].Status)
	assert.Equal(t, "halfway", infos[1].TenantID)
	assert.Equal(t, model.StatusPending, infos[1].Status)
	assert.Equal(t, model.StatusSuspended, infos[2].Status)
}

func TestSetStatusWritesNewRevision(t *testing.T) {
	docs := store.NewMemoryStore()
	reg := New(docs)
	ctx := context.Background()

	seedProfile(t, docs, "acme", model.StatusActive)

	require.NoError(t, reg.SetStatus(ctx, "acme", model.StatusSuspended, "admin"))

	info, err := reg.Info(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuspended, info.Status)

	// The status change is an auditable revision, not an overwrite.
	metas, err := docs.History(ctx, "acme", model.KindProfile, 0)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "admin", metas[0].Author)
	assert.Equal(t, "Set status to Suspended", metas[0].Message)

	err = reg.SetStatus(ctx, "ghost", model.StatusActive, "admin")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
