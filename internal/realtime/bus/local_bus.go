package bus

import (
	"context"
	"sync"

	"github.com/yungbote/studypath-backend/internal/realtime"
)

type localBus struct {
	mu    sync.RWMutex
	onMsg func(m realtime.SSEMessage)
}

// NewLocalBus is the in-process fallback used when REDIS_ADDR is not
// configured. Messages published before a forwarder is registered are
// dropped, matching pub/sub semantics.
func NewLocalBus() Bus {
	return &localBus{}
}

func (b *localBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	onMsg := b.onMsg
	b.mu.RUnlock()

	if onMsg == nil {
		return nil
	}
	onMsg(msg)
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	b.mu.Lock()
	b.onMsg = onMsg
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error { return nil }
