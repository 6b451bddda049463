package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenant-config-service/internal/model"
	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"
)

// sessionView is the token-holder's view of a session: the draft plus any
// review note, never internal identifiers.
func sessionView(session *model.OnboardingSession) (echo.Map, error) {
	draft, err := session.Draft()
	if err != nil {
		return nil, err
	}
	return echo.Map{
		"token":       session.Token,
		"email":       session.Email,
		"state":       session.State,
		"draft":       draft,
		"review_note": session.ReviewNote,
		"expires_at":  session.ExpiresAt,
	}, nil
}

// OpenSession lets a prospective tenant open their invitation token.
func OpenSession(c echo.Context) error {
	prometheus.RecordTransition("open")

	session, err := flow.Open(requestContext(c), c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}
	view, err := sessionView(session)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// SaveDraft overwrites the session's draft with partial progress.
func SaveDraft(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTransition("save")

	var draft model.Draft
	if err := c.Bind(&draft); err != nil {
		log.Error("Failed to parse draft", zap.Error(err))
		prometheus.RecordError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	session, err := flow.SaveDraft(requestContext(c), c.Param("token"), draft)
	if err != nil {
		return respondError(c, err)
	}
	view, err := sessionView(session)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// SubmitSession submits a completed draft for administrator review.
func SubmitSession(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordTransition("submit")

	session, err := flow.Submit(requestContext(c), c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}

	log.Info("Onboarding session submitted", zap.String("token", session.Token))
	view, err := sessionView(session)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}
