package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenant-config-service/internal/access"
	"tenant-config-service/internal/model"
	"tenant-config-service/internal/onboarding"
	"tenant-config-service/internal/registry"
	"tenant-config-service/internal/store"
	"tenant-config-service/internal/usage"
	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"
)

// Engine wiring shared by every handler, set once at startup.
var (
	docs     store.DocumentStore
	resolver *access.Resolver
	flow     *onboarding.Workflow
	tenants  *registry.Registry
	tracker  *usage.Tracker
)

// Init wires the handlers to the engine services.
func Init(d store.DocumentStore, r *access.Resolver, w *onboarding.Workflow, reg *registry.Registry, t *usage.Tracker) {
	docs = d
	resolver = r
	flow = w
	tenants = reg
	tracker = t
}

// requestContext carries the request-scoped logger into the engine.
func requestContext(c echo.Context) context.Context {
	return logger.WithContext(c.Request().Context(), logger.FromEcho(c))
}

// actorEmail returns the authenticated user's email from the JWT claims.
func actorEmail(c echo.Context) (string, bool) {
	email, ok := c.Get("email").(string)
	return email, ok && email != ""
}

// respondError maps engine errors onto HTTP statuses with enough
// structured detail for the caller to decide whether to retry, fix input,
// or escalate.
func respondError(c echo.Context, err error) error {
	log := logger.FromEcho(c)

	var verr *model.ValidationError
	var uerr *model.UnauthorizedError
	switch {
	case errors.As(err, &verr):
		prometheus.RecordError("validation")
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "validation failed", "kind": "validation", "fields": verr.Fields,
		})
	case errors.As(err, &uerr):
		prometheus.RecordError("unauthorized")
		return c.JSON(http.StatusForbidden, echo.Map{
			"error": uerr.Error(), "kind": "unauthorized", "capability": string(uerr.Capability),
		})
	case errors.Is(err, model.ErrTokenExpired):
		prometheus.RecordError("token_expired")
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error(), "kind": "token_expired"})
	case errors.Is(err, model.ErrTokenInvalid):
		prometheus.RecordError("token_invalid")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown onboarding token", "kind": "token_invalid"})
	case errors.Is(err, model.ErrNotFound):
		prometheus.RecordError("not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error(), "kind": "not_found"})
	case errors.Is(err, model.ErrAlreadyExists):
		prometheus.RecordError("already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "kind": "already_exists"})
	case errors.Is(err, model.ErrAlreadyUsed):
		prometheus.RecordError("already_used")
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "kind": "already_used"})
	case errors.Is(err, model.ErrConflict):
		prometheus.RecordError("conflict")
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "kind": "conflict"})
	case errors.Is(err, model.ErrUnavailable):
		prometheus.RecordError("unavailable")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error(), "kind": "unavailable"})
	}

	log.Error("Unhandled engine error", zap.Error(err))
	prometheus.RecordError("internal")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "kind": "internal"})
}
