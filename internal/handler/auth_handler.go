package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenant-config-service/pkg/jwtutil"
	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"
)

// Login authenticates a user against a tenant's access list and issues a
// JWT carrying the tenant context and tier.
func Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordAccessOperation("login")

	// Parse request
	var req struct {
		TenantID string `json:"tenant_id"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.TenantID == "" || req.Email == "" || req.Password == "" {
		prometheus.RecordError("incomplete_login")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id, email and password are required"})
	}

	entry, err := resolver.Authenticate(requestContext(c), req.TenantID, req.Email, req.Password)
	if err != nil {
		// Uniform response for unknown user and wrong password
		log.Warn("Login failed",
			zap.String("tenant_id", req.TenantID),
			zap.String("email", req.Email))
		prometheus.RecordError("login_failed")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := jwtutil.GenerateToken(entry.Email, req.TenantID, string(entry.Tier))
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in",
		zap.String("tenant_id", req.TenantID),
		zap.String("email", entry.Email),
		zap.String("tier", string(entry.Tier)))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": echo.Map{
			"email":       entry.Email,
			"tenant_id":   req.TenantID,
			"tier":        entry.Tier,
			"permissions": entry.Tier.Permissions(),
		},
	})
}

// ChangePassword rotates the authenticated user's password on a tenant.
func ChangePassword(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordAccessOperation("password_change")

	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse password change request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := resolver.ChangePassword(requestContext(c), tenantID, email, req.OldPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}

	log.Info("Password changed",
		zap.String("tenant_id", tenantID),
		zap.String("email", email))
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}
