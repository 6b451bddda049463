package access

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
)

// seedTenant writes an access list with an admin on the given tier.
func seedTenant(t *testing.T, docs store.DocumentStore, tenantID, adminEmail string, tier model.Tier) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	list := model.AccessList{Users: []model.AccessEntry{{
		Email:        adminEmail,
		Tier:         tier,
		Role:         "admin",
		PasswordHash: string(hash),
		AddedBy:      "onboarding",
	}}}
	raw, err := json.Marshal(list)
	require.NoError(t, err)

	_, err = docs.Write(context.Background(), store.WriteRequest{
		TenantID:         tenantID,
		Kind:             model.KindAccessList,
		Content:          raw,
		ExpectedRevision: store.RevisionNone,
		Author:           "onboarding",
	})
	require.NoError(t, err)
}

func TestResolvePermissionsByTier(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "basictown", "b@example.com", model.TierBasic)
	seedTenant(t, docs, "standardtown", "s@example.com", model.TierStandard)
	seedTenant(t, docs, "premiumtown", "p@example.com", model.TierPremium)

	perms, err := r.ResolvePermissions(ctx, "basictown", "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{model.PermView}, perms)

	perms, err = r.ResolvePermissions(ctx, "standardtown", "s@example.com")
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{model.PermView, model.PermGenerate}, perms)

	perms, err = r.ResolvePermissions(ctx, "premiumtown", "p@example.com")
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{
		model.PermView, model.PermGenerate, model.PermEditConfig, model.PermManageAccess,
	}, perms)
}

func TestResolvePermissionsAbsentUserIsEmptyNotError(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "admin@example.com", model.TierPremium)

	perms, err := r.ResolvePermissions(ctx, "acme", "stranger@example.com")
	require.NoError(t, err)
	assert.Empty(t, perms)

	// Tenant without an access list behaves the same way.
	perms, err = r.ResolvePermissions(ctx, "ghost", "stranger@example.com")
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestFindIsCaseInsensitive(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "admin@example.com", model.TierStandard)

	ok, err := r.Authorize(ctx, "acme", "Admin@Example.COM", model.PermGenerate)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBasicTierCannotGenerate(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "viewer@example.com", model.TierBasic)

	ok, err := r.Authorize(ctx, "acme", "viewer@example.com", model.PermGenerate)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantRequiresManageAccess(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "admin@example.com", model.TierPremium)
	seedTenant(t, docs, "other", "standard@example.com", model.TierStandard)

	// A standard user on a different tenant cannot grant on acme.
	_, err := r.Grant(ctx, "acme", "new@example.com", model.TierBasic, "standard@example.com")
	var uerr *model.UnauthorizedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, model.PermManageAccess, uerr.Capability)

	// The premium admin can.
	entry, err := r.Grant(ctx, "acme", "new@example.com", model.TierBasic, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", entry.Email)
	assert.Equal(t, model.TierBasic, entry.Tier)
	assert.Equal(t, "viewer", entry.Role)
	assert.NotEmpty(t, entry.PasswordHash)
}

func TestGrantExistingUserChangesTierOnly(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "admin@example.com", model.TierPremium)

	first, err := r.Grant(ctx, "acme", "user@example.com", model.TierBasic, "admin@example.com")
	require.NoError(t, err)

	second, err := r.Grant(ctx, "acme", "User@Example.com", model.TierStandard, "admin@example.com")
	require.NoError(t, err)

	assert.Equal(t, model.TierStandard, second.Tier)
	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, first.PasswordHash, second.PasswordHash)
}

func TestGrantOperatorBypassesCapabilityCheck(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "admin@example.com", model.TierPremium)

	entry, err := r.Grant(ctx, "acme", "ops@example.com", model.TierStandard, Operator)
	require.NoError(t, err)
	assert.Equal(t, Operator, entry.AddedBy)
}

func TestRevoke(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "admin@example.com", model.TierPremium)
	_, err := r.Grant(ctx, "acme", "user@example.com", model.TierBasic, "admin@example.com")
	require.NoError(t, err)

	require.NoError(t, r.Revoke(ctx, "acme", "user@example.com", "admin@example.com"))

	perms, err := r.ResolvePermissions(ctx, "acme", "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, perms)

	err = r.Revoke(ctx, "acme", "user@example.com", "admin@example.com")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListTenantsForUser(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "shared@example.com", model.TierPremium)
	seedTenant(t, docs, "zen", "shared@example.com", model.TierBasic)
	seedTenant(t, docs, "other", "someone@example.com", model.TierStandard)

	memberships, err := r.ListTenantsForUser(ctx, "shared@example.com")
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.Equal(t, "acme", memberships[0].TenantID)
	assert.Equal(t, model.TierPremium, memberships[0].Tier)
	assert.Equal(t, "zen", memberships[1].TenantID)
	assert.Equal(t, model.TierBasic, memberships[1].Tier)
}

func TestAuthenticate(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "admin@example.com", model.TierPremium)

	entry, err := r.Authenticate(ctx, "acme", "admin@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, model.TierPremium, entry.Tier)

	_, err = r.Authenticate(ctx, "acme", "admin@example.com", "wrong password")
	var uerr *model.UnauthorizedError
	assert.ErrorAs(t, err, &uerr)

	_, err = r.Authenticate(ctx, "acme", "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	docs := store.NewMemoryStore()
	r := NewResolver(docs)
	ctx := context.Background()

	seedTenant(t, docs, "acme", "admin@example.com", model.TierPremium)

	err := r.ChangePassword(ctx, "acme", "admin@example.com", "correct horse", "short")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"new_password"}, verr.Fields)

	err = r.ChangePassword(ctx, "acme", "admin@example.com", "wrong password", "a new password")
	var uerr *model.UnauthorizedError
	assert.ErrorAs(t, err, &uerr)

	require.NoError(t, r.ChangePassword(ctx, "acme", "admin@example.com", "correct horse", "a new password"))

	_, err = r.Authenticate(ctx, "acme", "admin@example.com", "a new password")
	assert.NoError(t, err)
}
