package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenant-config-service/internal/model"
	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"
)

// GrantAccess adds a user to a tenant's access list or adjusts the tier of
// an existing entry. The resolver enforces that the actor holds
// manage_access on the tenant.
func GrantAccess(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")

	var req struct {
		Email string `json:"email"`
		Tier  string `json:"tier"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse grant request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	tier, err := model.ParseTier(req.Tier)
	if err != nil {
		return respondError(c, err)
	}

	entry, err := resolver.Grant(requestContext(c), tenantID, req.Email, tier, actor)
	if err != nil {
		return respondError(c, err)
	}
	prometheus.RecordAccessOperation("grant")

	log.Info("Access granted",
		zap.String("tenant_id", tenantID),
		zap.String("email", entry.Email),
		zap.String("tier", string(entry.Tier)),
		zap.String("actor", actor))
	return c.JSON(http.StatusOK, echo.Map{
		"email":       entry.Email,
		"tier":        entry.Tier,
		"role":        entry.Role,
		"permissions": entry.Tier.Permissions(),
	})
}

// RevokeAccess removes a user from a tenant's access list.
func RevokeAccess(c echo.Context) error {
	log := logger.FromEcho(c)

	actor, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")
	email := c.Param("email")

	if err := resolver.Revoke(requestContext(c), tenantID, email, actor); err != nil {
		return respondError(c, err)
	}
	prometheus.RecordAccessOperation("revoke")

	log.Info("Access revoked",
		zap.String("tenant_id", tenantID),
		zap.String("email", email),
		zap.String("actor", actor))
	return c.JSON(http.StatusOK, echo.Map{"message": "access revoked"})
}

// ListPermissions returns the caller's effective permissions on a tenant.
// Users not on the access list get an empty set, not an error.
func ListPermissions(c echo.Context) error {
	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")

	perms, err := resolver.ResolvePermissions(requestContext(c), tenantID, email)
	if err != nil {
		return respondError(c, err)
	}
	prometheus.RecordAccessOperation("resolve")
	return c.JSON(http.StatusOK, echo.Map{
		"tenant_id":   tenantID,
		"email":       email,
		"permissions": perms,
	})
}

// ListMyTenants returns every tenant the caller appears on, with the tier
// held there.
func ListMyTenants(c echo.Context) error {
	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	memberships, err := resolver.ListTenantsForUser(requestContext(c), email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"email": email, "tenants": memberships})
}
