package onboarding

import (
	"context"

	"go.uber.org/zap"

	"tenant-config-service/internal/model"
	"tenant-config-service/pkg/logger"
)

// Notifier delivers onboarding mail. Send failures must never block a
// state transition; the workflow logs them and hands the raw invitation
// link back for manual delivery.
type Notifier interface {
	SendInvitation(ctx context.Context, email, link string) error
	SendStatusChange(ctx context.Context, email string, state model.SessionState, note string) error
}

// LogNotifier records the messages it would send instead of delivering
// them. It stands in wherever no mail transport is configured.
type LogNotifier struct{}

func (LogNotifier) SendInvitation(ctx context.Context, email, link string) error {
	logger.FromContext(ctx).Info("Invitation ready for delivery",
		zap.String("email", email),
		zap.String("link", link))
	return nil
}

func (LogNotifier) SendStatusChange(ctx context.Context, email string, state model.SessionState, note string) error {
	logger.FromContext(ctx).Info("Status change ready for delivery",
		zap.String("email", email),
		zap.String("state", string(state)),
		zap.String("note", note))
	return nil
}
