package bus

import (
	"context"

	"github.com/yungbote/studypath-backend/internal/realtime"
)

// Bus moves notifications between the publishing side (services) and the
// SSE hub. The redis implementation spans processes; the local one keeps
// everything in-process when no redis is configured.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
