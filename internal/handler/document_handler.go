package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"
)

// ReadDocument returns the current revision of a tenant document. Any
// member of the tenant may read.
func ReadDocument(c echo.Context) error {
	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")
	kind, err := model.ParseDocumentKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}

	ctx := requestContext(c)
	if err := requireCapability(c, tenantID, email, model.PermView); err != nil {
		return err
	}

	defer prometheus.TrackStoreOperation("read")(time.Now())
	doc, err := docs.Read(ctx, tenantID, kind)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// WriteDocument writes a new revision of a tenant document with the
// caller's expected revision. The access list is mutated only through the
// access routes so the tier discipline cannot be bypassed.
func WriteDocument(c echo.Context) error {
	log := logger.FromEcho(c)

	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")
	kind, err := model.ParseDocumentKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}
	if kind == model.KindAccessList {
		prometheus.RecordError("access_list_direct_write")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access_list is mutated through the access routes"})
	}

	var req struct {
		Content          json.RawMessage `json:"content"`
		ExpectedRevision string          `json:"expected_revision"`
		Message          string          `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse document write", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if len(req.Content) == 0 {
		return respondError(c, &model.ValidationError{Fields: []string{"content"}})
	}

	ctx := requestContext(c)
	if err := requireCapability(c, tenantID, email, model.PermEditConfig); err != nil {
		return err
	}

	defer prometheus.TrackStoreOperation("write")(time.Now())
	revisionID, err := docs.Write(ctx, store.WriteRequest{
		TenantID:         tenantID,
		Kind:             kind,
		Content:          req.Content,
		ExpectedRevision: req.ExpectedRevision,
		Author:           email,
		Message:          req.Message,
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrAlreadyExists) {
			prometheus.RecordConflict(string(kind))
			prometheus.RecordDocumentWrite(string(kind), "conflict")
		} else {
			prometheus.RecordDocumentWrite(string(kind), "error")
		}
		return respondError(c, err)
	}
	prometheus.RecordDocumentWrite(string(kind), "ok")

	log.Info("Document written",
		zap.String("tenant_id", tenantID),
		zap.String("kind", string(kind)),
		zap.String("revision_id", revisionID),
		zap.String("author", email))
	return c.JSON(http.StatusOK, echo.Map{"revision_id": revisionID})
}

// DocumentHistory lists revision metadata newest first.
func DocumentHistory(c echo.Context) error {
	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")
	kind, err := model.ParseDocumentKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx := requestContext(c)
	if err := requireCapability(c, tenantID, email, model.PermView); err != nil {
		return err
	}

	defer prometheus.TrackStoreOperation("history")(time.Now())
	metas, err := docs.History(ctx, tenantID, kind, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, metas)
}

// ReadDocumentAt returns the content of one historical revision.
func ReadDocumentAt(c echo.Context) error {
	email, ok := actorEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID := c.Param("id")
	kind, err := model.ParseDocumentKind(c.Param("kind"))
	if err != nil {
		return respondError(c, err)
	}

	ctx := requestContext(c)
	if err := requireCapability(c, tenantID, email, model.PermView); err != nil {
		return err
	}

	content, err := docs.ReadAt(ctx, tenantID, kind, c.Param("rev"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"tenant_id":   tenantID,
		"kind":        kind,
		"revision_id": c.Param("rev"),
		"content":     content,
	})
}

// requireCapability consults the resolver and writes the HTTP error
// itself; a nil return means the actor may proceed.
func requireCapability(c echo.Context, tenantID, email string, capability model.Permission) error {
	ok, err := resolver.Authorize(requestContext(c), tenantID, email, capability)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		logger.FromEcho(c).Warn("Capability check failed",
			zap.String("tenant_id", tenantID),
			zap.String("email", email),
			zap.String("capability", string(capability)))
		return respondError(c, &model.UnauthorizedError{TenantID: tenantID, Email: email, Capability: capability})
	}
	return nil
}
