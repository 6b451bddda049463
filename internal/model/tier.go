package model

import (
	"fmt"
	"strings"
)

// Tier is a fixed permission level assigned per user per tenant. It is the
// sole authority for permissions; the role field on an access entry is
// informational metadata and never consulted for authorization.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Permission is a single capability a user can hold on a tenant.
type Permission string

const (
	PermView         Permission = "view"
	PermGenerate     Permission = "generate"
	PermEditConfig   Permission = "edit_config"
	PermManageAccess Permission = "manage_access"
)

// tierPermissions is the global tier-to-permission mapping. Permission sets
// are always recomputed from here, never stored alongside the entry.
var tierPermissions = map[Tier][]Permission{
	TierBasic:    {PermView},
	TierStandard: {PermView, PermGenerate},
	TierPremium:  {PermView, PermGenerate, PermEditConfig, PermManageAccess},
}

// Permissions returns the capability set for the tier. Unknown tiers get no
// permissions.
func (t Tier) Permissions() []Permission {
	perms := tierPermissions[t]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Has reports whether the tier includes the capability.
func (t Tier) Has(capability Permission) bool {
	for _, p := range tierPermissions[t] {
		if p == capability {
			return true
		}
	}
	return false
}

// ParseTier normalizes and validates a tier string.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierBasic:
		return TierBasic, nil
	case TierStandard:
		return TierStandard, nil
	case TierPremium:
		return TierPremium, nil
	}
	return "", fmt.Errorf("unknown tier %q: %w", s, &ValidationError{Fields: []string{"tier"}})
}
