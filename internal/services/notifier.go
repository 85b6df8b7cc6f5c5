package services

import (
	"context"

	"github.com/google/uuid"

	jobsruntime "github.com/yungbote/studypath-backend/internal/jobs/runtime"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/realtime"
	"github.com/yungbote/studypath-backend/internal/realtime/bus"
)

// Notifier publishes ingestion and retrieval events to the notification
// bus, addressed to the owning user's channel. Publish failures are
// logged and swallowed: a dead bus must never fail a pipeline run.
type Notifier struct {
	log *logger.Logger
	bus bus.Bus
}

var _ jobsruntime.Notifier = (*Notifier)(nil)

func NewNotifier(log *logger.Logger, b bus.Bus) *Notifier {
	return &Notifier{
		log: log.With("service", "Notifier"),
		bus: b,
	}
}

func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]any) {
	if n == nil || n.bus == nil || userID == uuid.Nil || eventType == "" {
		return
	}

	msg := realtime.SSEMessage{
		Channel: userID.String(),
		Event:   eventType,
		Data:    payload,
	}
	if err := n.bus.Publish(ctx, msg); err != nil {
		n.log.Warn("notification publish failed", "event", eventType, "error", err.Error())
	}
}
