package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenant-config-service/internal/model"
	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"
)

// CreateInvitation opens an onboarding session for a prospective tenant
// and returns the invitation link for manual delivery alongside the
// notifier send.
func CreateInvitation(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTransition("invite")

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse invitation request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	session, link, err := flow.Invite(requestContext(c), req.Email)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"token":      session.Token,
		"email":      session.Email,
		"link":       link,
		"expires_at": session.ExpiresAt,
	})
}

// ListSessions lists every onboarding session with lazy expiry applied.
func ListSessions(c echo.Context) error {
	sessions, err := flow.ListSessions(requestContext(c))
	if err != nil {
		return respondError(c, err)
	}

	pending := 0
	for _, s := range sessions {
		if !s.State.Terminal() {
			pending++
		}
	}
	prometheus.UpdatePendingSessions(pending)

	return c.JSON(http.StatusOK, sessions)
}

// ApproveSession commits a submitted session into the document store.
func ApproveSession(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTransition("approve")

	var req struct {
		TenantID string `json:"tenant_id"`
		Tier     string `json:"tier"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse approval request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	tier := model.TierPremium
	if req.Tier != "" {
		var err error
		if tier, err = model.ParseTier(req.Tier); err != nil {
			return respondError(c, err)
		}
	}

	session, err := flow.Approve(requestContext(c), c.Param("token"), req.TenantID, tier)
	if err != nil {
		return respondError(c, err)
	}

	log.Info("Tenant approved",
		zap.String("token", session.Token),
		zap.String("tenant_id", session.AssignedTenantID))
	return c.JSON(http.StatusOK, echo.Map{
		"token":     session.Token,
		"state":     session.State,
		"tenant_id": session.AssignedTenantID,
	})
}

// RequestChanges returns a submitted session to the prospective tenant
// with a review note.
func RequestChanges(c echo.Context) error {
	prometheus.RecordTransition("request_changes")

	var req struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	session, err := flow.RequestChanges(requestContext(c), c.Param("token"), req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token": session.Token,
		"state": session.State,
		"note":  session.ReviewNote,
	})
}

// ManualEntry builds a submitted session directly from administrator
// input, skipping the invitation flow.
func ManualEntry(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTransition("manual_entry")

	var req struct {
		Email string      `json:"email"`
		Draft model.Draft `json:"draft"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse manual entry request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	session, err := flow.ManualEntry(requestContext(c), req.Email, req.Draft)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"token": session.Token,
		"state": session.State,
	})
}

// ListTenants lists every tenant with its profile summary.
func ListTenants(c echo.Context) error {
	infos, err := tenants.List(requestContext(c))
	if err != nil {
		return respondError(c, err)
	}
	prometheus.UpdateActiveTenants(len(infos))
	return c.JSON(http.StatusOK, infos)
}

// SetTenantStatus flips a tenant's lifecycle flag.
func SetTenantStatus(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	status, err := model.ParseTenantStatus(req.Status)
	if err != nil {
		return respondError(c, err)
	}

	tenantID := c.Param("id")
	if err := tenants.SetStatus(requestContext(c), tenantID, status, "admin"); err != nil {
		return respondError(c, err)
	}

	log.Info("Tenant status updated",
		zap.String("tenant_id", tenantID),
		zap.String("status", string(status)))
	return c.JSON(http.StatusOK, echo.Map{"tenant_id": tenantID, "status": status})
}
