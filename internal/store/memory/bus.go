package memory

import (
	"context"
	"path"
	"strconv"
	"sync"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// SignalBus implements domain.SignalBus in process. It stands in for Redis
// when none is configured so the websocket hub still sees agent events.
// Slow subscribers drop messages rather than block publishers.
type SignalBus struct {
	mu      sync.RWMutex
	subs    map[int]subscription
	nextID  int
	streams map[string][]domain.StreamMessage
}

type subscription struct {
	pattern string
	ch      chan []byte
}

// NewSignalBus creates an empty bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[int]subscription),
		streams: make(map[string][]domain.StreamMessage),
	}
}

func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		msg := append([]byte(nil), payload...)
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers for channel, which may be a glob pattern. The
// returned channel closes when ctx ends.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{pattern: channel, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.streams[stream]
	id := strconv.Itoa(len(entries)+1) + "-0"
	b.streams[stream] = append(entries, domain.StreamMessage{ID: id, Payload: append([]byte(nil), payload...)})
	return nil
}

// StreamRead returns up to count entries after lastID; "0" and "" read from
// the start.
func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.streams[stream]
	start := 0
	if lastID != "" && lastID != "0" && lastID != "0-0" {
		for i, e := range entries {
			if e.ID == lastID {
				start = i + 1
				break
			}
		}
	}
	out := make([]domain.StreamMessage, 0)
	for _, e := range entries[start:] {
		if count > 0 && len(out) >= count {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
