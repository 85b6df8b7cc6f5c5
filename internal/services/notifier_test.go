package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/realtime"
)

type captureBus struct {
	published []realtime.SSEMessage
	err       error
}

func (b *captureBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, msg)
	return nil
}

func (b *captureBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	return nil
}

func (b *captureBus) Close() error { return nil }

func TestNotifierAddressesUserChannel(t *testing.T) {
	cb := &captureBus{}
	n := NewNotifier(logger.NewNop(), cb)
	userID := uuid.New()

	n.Notify(context.Background(), userID, realtime.EventFileProcessed, map[string]any{
		"file_id": uuid.New().String(),
	})

	if len(cb.published) != 1 {
		t.Fatalf("published: want=1 got=%d", len(cb.published))
	}
	msg := cb.published[0]
	if msg.Channel != userID.String() {
		t.Fatalf("channel: want=%s got=%s", userID.String(), msg.Channel)
	}
	if msg.Event != realtime.EventFileProcessed {
		t.Fatalf("event: want=%s got=%s", realtime.EventFileProcessed, msg.Event)
	}
}

func TestNotifierSkipsNilUser(t *testing.T) {
	cb := &captureBus{}
	n := NewNotifier(logger.NewNop(), cb)

	n.Notify(context.Background(), uuid.Nil, realtime.EventFileStatus, nil)

	if len(cb.published) != 0 {
		t.Fatalf("nil user should publish nothing, got=%d", len(cb.published))
	}
}

func TestNotifierSwallowsPublishError(t *testing.T) {
	cb := &captureBus{err: fmt.Errorf("bus down")}
	n := NewNotifier(logger.NewNop(), cb)

	n.Notify(context.Background(), uuid.New(), realtime.EventFileFailed, map[string]any{"reason": "x"})
}
