package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/token-authority/internal/events"
)

// StartAuditWorker subscribes the audit log to token lifecycle events. Every
// issuance and revocation leaves one structured audit line.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}

	audit := logger.Named("audit")
	handler := func(_ context.Context, event events.Event) error {
		audit.Info("token lifecycle event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("actor", event.Actor),
			zap.Time("at", event.Timestamp),
			zap.Any("payload", event.Payload),
		)
		return nil
	}

	dispatcher.Subscribe(events.EventTokenGenerated, handler)
	dispatcher.Subscribe(events.EventTokenRevoked, handler)
}
