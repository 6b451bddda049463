package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenant-config-service/internal/model"
	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"
)

// CheckUsage reports whether a content item has already been used by the
// tenant. Unknown tenants simply have no usage yet.
func CheckUsage(c echo.Context) error {
	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")

	if err := requireCapability(c, tenantID, email, model.PermView); err != nil {
		return err
	}

	used, err := tracker.IsUsed(requestContext(c), tenantID, c.Param("item"))
	if err != nil {
		return respondError(c, err)
	}
	prometheus.RecordUsageOperation("check")
	return c.JSON(http.StatusOK, echo.Map{"item_id": c.Param("item"), "used": used})
}

// MarkUsed records a batch of content items as consumed by one newsletter
// issue. The batch lands atomically: if any item was already used, none
// are marked.
func MarkUsed(c echo.Context) error {
	log := logger.FromEcho(c)

	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")

	var req struct {
		ItemIDs       []string `json:"item_ids"`
		NewsletterRef string   `json:"newsletter_ref"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse usage request", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := requireCapability(c, tenantID, email, model.PermGenerate); err != nil {
		return err
	}

	records, err := tracker.MarkManyUsed(requestContext(c), tenantID, req.ItemIDs, req.NewsletterRef)
	if err != nil {
		return respondError(c, err)
	}
	prometheus.RecordUsageOperation("mark")

	log.Info("Usage recorded",
		zap.String("tenant_id", tenantID),
		zap.Int("items", len(records)),
		zap.String("newsletter_ref", req.NewsletterRef))
	return c.JSON(http.StatusOK, echo.Map{"marked": records})
}
